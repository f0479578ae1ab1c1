package rt

import "fmt"

// ---------------------------------------------------------------------------
// Type encodings
// ---------------------------------------------------------------------------
//
// Method signatures use single-character type encodings in the Objective-C
// tradition. The first character is the return type; the remaining
// characters are argument types. Every method implicitly receives the
// receiver and the selector, so a valid encoding always starts its argument
// list with "@:". A zero-argument void method is therefore "v@:".

// Encoding characters.
const (
	EncVoid     = 'v' // no return value
	EncObject   = '@' // object reference
	EncSelector = ':' // selector
	EncInt      = 'i' // 32-bit integer
	EncLong     = 'l' // long (64-bit)
	EncLongLong = 'q' // 64-bit integer
	EncFloat    = 'f' // 32-bit float
	EncDouble   = 'd' // 64-bit float
	EncCString  = '*' // byte string
	EncPointer  = '^' // raw pointer
	EncClass    = '#' // class reference
	EncUnknown  = '?' // unknown / function pointer
)

func isTypeChar(ch byte) bool {
	switch ch {
	case EncVoid, EncObject, EncSelector, EncInt, EncLong, EncLongLong,
		EncFloat, EncDouble, EncCString, EncPointer, EncClass, EncUnknown:
		return true
	}
	return false
}

// SizeOfType returns the storage size in bytes for an encoding character.
// The second result is false for unrecognized characters.
func SizeOfType(ch byte) (int, bool) {
	switch ch {
	case EncVoid:
		return 0, true
	case EncInt, EncFloat:
		return 4, true
	case EncObject, EncSelector, EncLong, EncLongLong, EncDouble,
		EncCString, EncPointer, EncClass, EncUnknown:
		return 8, true
	}
	return 0, false
}

// ValidateEncoding checks that an encoding string is well formed: a valid
// return type followed by at least the implicit "@:" receiver and selector
// arguments, all drawn from the known type characters.
func ValidateEncoding(encoding string) error {
	if len(encoding) < 3 {
		return fmt.Errorf("%w: %q too short", ErrInvalidEncoding, encoding)
	}
	for i := 0; i < len(encoding); i++ {
		if !isTypeChar(encoding[i]) {
			return fmt.Errorf("%w: %q has invalid type char %q",
				ErrInvalidEncoding, encoding, encoding[i])
		}
	}
	if encoding[1] != EncObject || encoding[2] != EncSelector {
		return fmt.Errorf("%w: %q must begin its arguments with \"@:\"",
			ErrInvalidEncoding, encoding)
	}
	return nil
}

// ParseSignature splits a validated encoding into its return type and
// argument types. The argument types include the implicit receiver and
// selector, so the caller-visible argument count is len(args)-2.
func ParseSignature(encoding string) (ret byte, args []byte, err error) {
	if err := ValidateEncoding(encoding); err != nil {
		return 0, nil, err
	}
	return encoding[0], []byte(encoding[1:]), nil
}

// encodedArgCount returns the caller-visible argument count for a validated
// encoding.
func encodedArgCount(encoding string) int {
	return len(encoding) - 3
}
