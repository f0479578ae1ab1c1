package rt

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
)

// hostOrder reads and writes word slots through byte slices. This is the
// alignment-safe path: slot storage is raw bytes and is never cast to a
// word pointer that would assume natural alignment.
var hostOrder = binary.NativeEndian

// ---------------------------------------------------------------------------
// Invocation: a reified, mutable pending message send
// ---------------------------------------------------------------------------

// MaxInvocationArgs bounds an invocation's argument slots.
const MaxInvocationArgs = 16

const wordSize = 8 // slot width; holds pointer-width values on all targets

type invocationFlags struct {
	invoked           bool
	targetModified    bool
	selectorModified  bool
	argumentsModified bool
}

// Invocation carries a pending send through forwarding stage 3. It owns its
// argument storage, tracks which of target/selector/arguments a handler
// rewrote, and can be handed between goroutines, though it is not meant to
// be touched by two goroutines at once.
type Invocation struct {
	target    *Object
	selector  *Selector
	signature string

	argBuf   [MaxInvocationArgs * wordSize]byte
	argCount int

	retBuf [wordSize]byte
	hasRet bool

	flags invocationFlags
}

// NewInvocation builds an invocation from a send's receiver, selector and
// word-encoded arguments. Argument counts beyond the fixed capacity are
// rejected.
func NewInvocation(target *Object, sel *Selector, args []Word) (*Invocation, error) {
	inv := &Invocation{}
	if err := inv.load(target, sel, args); err != nil {
		return nil, err
	}
	return inv, nil
}

// load resets the invocation in place; shared by NewInvocation and pooling.
func (inv *Invocation) load(target *Object, sel *Selector, args []Word) error {
	if len(args) > MaxInvocationArgs {
		return &ArgumentCountError{
			Selector: sel.Name(),
			Expected: MaxInvocationArgs,
			Got:      len(args),
		}
	}
	inv.target = target
	inv.selector = sel
	inv.signature = ""
	inv.argCount = len(args)
	for i, w := range args {
		hostOrder.PutUint64(inv.slot(i), uint64(w))
	}
	inv.hasRet = false
	inv.flags = invocationFlags{}
	return nil
}

func (inv *Invocation) slot(i int) []byte {
	return inv.argBuf[i*wordSize : (i+1)*wordSize]
}

// Target returns the pending send's receiver.
func (inv *Invocation) Target() *Object { return inv.target }

// SetTarget rewrites the receiver and records the modification.
func (inv *Invocation) SetTarget(o *Object) {
	inv.target = o
	inv.flags.targetModified = true
}

// Selector returns the pending send's selector.
func (inv *Invocation) Selector() *Selector { return inv.selector }

// SetSelector rewrites the selector and records the modification.
func (inv *Invocation) SetSelector(sel *Selector) {
	inv.selector = sel
	inv.flags.selectorModified = true
}

// Signature returns the type encoding attached by the forwarding pipeline.
func (inv *Invocation) Signature() string { return inv.signature }

// SetSignature attaches the resolved type encoding.
func (inv *Invocation) SetSignature(sig string) { inv.signature = sig }

// ArgumentCount returns the number of argument slots in use.
func (inv *Invocation) ArgumentCount() int { return inv.argCount }

// Argument reads the word in slot i.
func (inv *Invocation) Argument(i int) (Word, error) {
	if i < 0 || i >= inv.argCount {
		return 0, fmt.Errorf("rt: invocation argument %d out of range (count %d)", i, inv.argCount)
	}
	return Word(hostOrder.Uint64(inv.slot(i))), nil
}

// SetArgument writes the word in slot i and records the modification.
func (inv *Invocation) SetArgument(i int, w Word) error {
	if i < 0 || i >= inv.argCount {
		return fmt.Errorf("rt: invocation argument %d out of range (count %d)", i, inv.argCount)
	}
	hostOrder.PutUint64(inv.slot(i), uint64(w))
	inv.flags.argumentsModified = true
	return nil
}

// arguments copies the slots back out as words for re-dispatch.
func (inv *Invocation) arguments() []Word {
	args := make([]Word, inv.argCount)
	for i := range args {
		args[i] = Word(hostOrder.Uint64(inv.slot(i)))
	}
	return args
}

// ReturnWord returns the word produced by Invoke, and whether the invoked
// method produced one at all (void methods do not).
func (inv *Invocation) ReturnWord() (Word, bool) {
	if !inv.hasRet {
		return 0, false
	}
	return Word(hostOrder.Uint64(inv.retBuf[:])), true
}

func (inv *Invocation) setReturn(w Word) {
	hostOrder.PutUint64(inv.retBuf[:], uint64(w))
	inv.hasRet = true
}

// Invoked reports whether the invocation has been delivered.
func (inv *Invocation) Invoked() bool { return inv.flags.invoked }

// Modified reports which parts a forwarding handler rewrote.
func (inv *Invocation) Modified() (target, selector, arguments bool) {
	return inv.flags.targetModified, inv.flags.selectorModified, inv.flags.argumentsModified
}

// invoke re-enters dispatch with the invocation's (possibly rewritten)
// target, selector and arguments, at the given forwarding depth.
func (inv *Invocation) invoke(depth int) (Word, bool, error) {
	inv.flags.invoked = true
	ret, ok, err := sendDepth(inv.target, inv.selector, inv.arguments(), depth)
	if err != nil {
		return 0, false, err
	}
	if ok {
		inv.setReturn(ret)
	}
	return ret, ok, nil
}

// Invoke delivers the invocation from outside the forwarding pipeline.
func (inv *Invocation) Invoke() (Word, bool, error) {
	return inv.invoke(0)
}

// ---------------------------------------------------------------------------
// Invocation pooling
// ---------------------------------------------------------------------------

// PoolStats reports invocation pool behavior.
type PoolStats struct {
	PoolSize int
	Hits     uint64
	Misses   uint64
	Rejected uint64
}

// InvocationPool is a bounded free list of invocations. Forwarding stage 3
// is the hot consumer; reuse keeps it from allocating on every unresolved
// send.
type InvocationPool struct {
	mu   sync.Mutex
	free []*Invocation

	hits     atomic.Uint64
	misses   atomic.Uint64
	rejected atomic.Uint64
}

// NewInvocationPool creates an empty pool.
func NewInvocationPool() *InvocationPool {
	return &InvocationPool{}
}

// Acquire returns a loaded invocation, reusing a pooled one when possible.
func (p *InvocationPool) Acquire(target *Object, sel *Selector, args []Word) (*Invocation, error) {
	p.mu.Lock()
	var inv *Invocation
	if n := len(p.free); n > 0 {
		inv = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if inv == nil {
		p.misses.Add(1)
		return NewInvocation(target, sel, args)
	}
	p.hits.Add(1)
	if err := inv.load(target, sel, args); err != nil {
		return nil, err
	}
	return inv, nil
}

// Release returns an invocation for reuse. Beyond the configured bound the
// invocation is dropped and counted as rejected.
func (p *InvocationPool) Release(inv *Invocation) {
	limit := activeConfig().Invocation.PoolSize
	p.mu.Lock()
	if len(p.free) < limit {
		p.free = append(p.free, inv)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.rejected.Add(1)
}

// Stats returns pool counters.
func (p *InvocationPool) Stats() PoolStats {
	p.mu.Lock()
	size := len(p.free)
	p.mu.Unlock()
	return PoolStats{
		PoolSize: size,
		Hits:     p.hits.Load(),
		Misses:   p.misses.Load(),
		Rejected: p.rejected.Load(),
	}
}

// invocations is the pipeline's shared pool.
var invocations = NewInvocationPool()

// Invocations returns the forwarding pipeline's shared invocation pool.
func Invocations() *InvocationPool {
	return invocations
}
