package rt

import "sync/atomic"

// ---------------------------------------------------------------------------
// Method: selector + implementation + type encoding
// ---------------------------------------------------------------------------

// Imp is a method implementation. args carries the caller's word-encoded
// arguments; for non-void encodings the implementation writes its result
// through ret.
type Imp func(self *Object, cmd *Selector, args []Word, ret *Word)

// Method binds a selector to an implementation and its type encoding. The
// implementation pointer is atomic so swizzling exchanges it without
// dispatchers ever observing a torn value.
type Method struct {
	selector *Selector
	imp      atomic.Pointer[Imp]
	encoding string
	numArgs  int
	voidRet  bool
}

// NewMethod validates the encoding and builds a Method.
func NewMethod(sel *Selector, imp Imp, encoding string) (*Method, error) {
	if err := ValidateEncoding(encoding); err != nil {
		return nil, err
	}
	m := &Method{
		selector: sel,
		encoding: encoding,
		numArgs:  encodedArgCount(encoding),
		voidRet:  encoding[0] == EncVoid,
	}
	m.imp.Store(&imp)
	return m, nil
}

// Selector returns the method's selector.
func (m *Method) Selector() *Selector { return m.selector }

// Encoding returns the method's type encoding string.
func (m *Method) Encoding() string { return m.encoding }

// NumArgs returns the caller-visible argument count from the encoding.
func (m *Method) NumArgs() int { return m.numArgs }

// IsVoid reports whether the method returns no value.
func (m *Method) IsVoid() bool { return m.voidRet }

// Imp returns the current implementation. Concurrent with a swizzle this
// observes either the old or the new implementation, never a mix.
func (m *Method) Imp() Imp {
	return *m.imp.Load()
}

// exchangeImp atomically swaps in a new implementation and returns the old
// one. Used by swizzling.
func (m *Method) exchangeImp(imp Imp) Imp {
	old := m.imp.Swap(&imp)
	return *old
}

func (m *Method) invoke(self *Object, args []Word) (Word, bool) {
	var ret Word
	imp := m.Imp()
	imp(self, m.selector, args, &ret)
	if m.voidRet {
		return 0, false
	}
	return ret, true
}
