package rt

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Object: reference-counted instances
// ---------------------------------------------------------------------------

// Word is the machine-word currency of message sends: arguments and return
// values cross the dispatch boundary as word-encoded values.
type Word = uintptr

// inlinePayloadSize is the threshold below which instance storage lives in
// the object header itself, avoiding a second allocation.
const inlinePayloadSize = 24

const flagExternalPayload uint32 = 1 << 0

// Object is a reference-counted instance of a Class. Its class reference is
// immutable and always valid. The refcount starts at 1 on allocation and
// destruction runs exactly once, when it transitions to zero.
type Object struct {
	class  *Class
	flags  uint32
	refs   atomic.Int32
	inline [inlinePayloadSize]byte
	ext    []byte // arena-backed payload when the layout exceeds the inline area
}

// NewObject allocates an instance of c with refcount 1. The payload is
// sized from the class's instance-variable layout: small layouts are inline
// in the header, larger ones come from the global arena.
func NewObject(c *Class) *Object {
	o := &Object{class: c}
	o.refs.Store(1)
	size := c.InstanceSize()
	if size > inlinePayloadSize {
		p := GlobalArena().Alloc(size, defaultAlign)
		o.ext = unsafe.Slice((*byte)(p), size)
		o.flags |= flagExternalPayload
	}
	return o
}

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }

// Payload returns the instance-variable storage.
func (o *Object) Payload() []byte {
	if o.flags&flagExternalPayload != 0 {
		return o.ext
	}
	size := o.class.InstanceSize()
	return o.inline[:size]
}

// Retain increments the reference count. Overflow is an unrecoverable
// runtime bug and panics; the counter never silently wraps.
func (o *Object) Retain() *Object {
	n := o.refs.Add(1)
	if n <= 1 || n == math.MaxInt32 {
		panic(fmt.Sprintf("rt: refcount overflow or resurrection on %s (count %d)",
			o.class.Name(), n))
	}
	return o
}

// Release decrements the reference count. The transition to zero runs the
// class finalizer and drops the payload, exactly once.
func (o *Object) Release() {
	n := o.refs.Add(-1)
	switch {
	case n == 0:
		o.destroy()
	case n < 0:
		panic(fmt.Sprintf("rt: over-release of %s", o.class.Name()))
	}
}

// RefCount returns the current reference count. Diagnostic use only: the
// value may be stale by the time the caller looks at it.
func (o *Object) RefCount() int32 {
	return o.refs.Load()
}

func (o *Object) destroy() {
	if fin := o.class.finalizer; fin != nil {
		fin(o)
	}
	clearObjectHooks(o)
	// Arena payloads are reclaimed in bulk with their arena; dropping the
	// reference is all the per-object work there is.
	o.ext = nil
}

func (o *Object) String() string {
	return fmt.Sprintf("<%s %p rc=%d>", o.class.Name(), o, o.refs.Load())
}

// ---------------------------------------------------------------------------
// Word-level payload access
// ---------------------------------------------------------------------------
//
// Payload storage is raw bytes; these accessors never assume natural
// alignment of the underlying buffer.

// PayloadWord reads the word at byte offset off in the payload.
func (o *Object) PayloadWord(off uintptr) Word {
	p := o.Payload()
	return Word(hostOrder.Uint64(p[off : off+8]))
}

// SetPayloadWord writes the word at byte offset off in the payload.
func (o *Object) SetPayloadWord(off uintptr, w Word) {
	p := o.Payload()
	hostOrder.PutUint64(p[off:off+8], uint64(w))
}
