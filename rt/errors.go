package rt

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------
//
// Externally reachable operations validate their inputs and return these
// errors. Invariant violations that indicate a runtime bug (refcount
// overflow, over-release, arena exhaustion) panic instead; they are never
// recoverable conditions.

var (
	// ErrSelectorNotFound is returned when a message send exhausts ordinary
	// dispatch and every forwarding stage. An unhandled message is a hard
	// failure in this messaging model.
	ErrSelectorNotFound = errors.New("rt: does not recognize selector")

	// ErrClassExists is returned when registering a class whose name is
	// already taken.
	ErrClassExists = errors.New("rt: class already registered")

	// ErrClassCycle is returned when a registration would link a class
	// hierarchy into a cycle.
	ErrClassCycle = errors.New("rt: class hierarchy cycle")

	// ErrCategoryExists is returned when a class already has a category
	// with the given name.
	ErrCategoryExists = errors.New("rt: category already exists")

	// ErrProtocolMethodExists is returned when a protocol already declares
	// the given selector.
	ErrProtocolMethodExists = errors.New("rt: protocol method already declared")

	// ErrInvalidEncoding is returned for malformed type encoding strings.
	ErrInvalidEncoding = errors.New("rt: invalid type encoding")

	// ErrNoSuchMethod is returned when swizzling a selector the class does
	// not implement itself.
	ErrNoSuchMethod = errors.New("rt: no such method on class")
)

// ArgumentCountError reports a mismatch between the arguments supplied to a
// send and the method's type encoding.
type ArgumentCountError struct {
	Selector string
	Expected int
	Got      int
}

func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("rt: %s: argument count mismatch: expected %d, got %d",
		e.Selector, e.Expected, e.Got)
}

// ForwardingDepthError reports a forwarding chain that exceeded the
// configured maximum depth. This bounds redirect cycles structurally;
// the condition is fatal to the send.
type ForwardingDepthError struct {
	Selector string
	Depth    int
}

func (e *ForwardingDepthError) Error() string {
	return fmt.Sprintf("rt: %s: forwarding depth exceeded (%d)", e.Selector, e.Depth)
}

// ForwardingFailedError reports that a forwarding target was produced but
// could not handle the selector either.
type ForwardingFailedError struct {
	Selector string
	Reason   string
}

func (e *ForwardingFailedError) Error() string {
	return fmt.Sprintf("rt: forwarding %s failed: %s", e.Selector, e.Reason)
}

// MissingProtocolMethodError names the first required selector a class
// failed to satisfy during conformance validation.
type MissingProtocolMethodError struct {
	Class    string
	Protocol string
	Selector string
}

func (e *MissingProtocolMethodError) Error() string {
	return fmt.Sprintf("rt: class %s does not implement %s required by protocol %s",
		e.Class, e.Selector, e.Protocol)
}

// DoesNotRecognizeError wraps ErrSelectorNotFound with the selector and
// receiver class for diagnostics.
type DoesNotRecognizeError struct {
	Class    string
	Selector string
}

func (e *DoesNotRecognizeError) Error() string {
	return fmt.Sprintf("rt: %s does not recognize %s", e.Class, e.Selector)
}

// Unwrap lets errors.Is(err, ErrSelectorNotFound) hold for the wrapped form.
func (e *DoesNotRecognizeError) Unwrap() error { return ErrSelectorNotFound }
