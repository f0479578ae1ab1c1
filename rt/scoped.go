package rt

import (
	"sync"
	"unsafe"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var arenaLog = commonlog.GetLogger("tern.rt.arena")

// ---------------------------------------------------------------------------
// ScopedArena: single-owner, deterministically released regions
// ---------------------------------------------------------------------------

// allocRecord is kept per allocation when debug tracking is enabled.
type allocRecord struct {
	size  uintptr
	align uintptr
	tag   string
}

// leakTracker records live allocations for a scoped arena. It costs nothing
// when disabled: the arena holds a nil tracker and skips every call.
type leakTracker struct {
	live map[unsafe.Pointer]allocRecord
}

func (t *leakTracker) track(p unsafe.Pointer, size, align uintptr, tag string) {
	if t == nil {
		return
	}
	t.live[p] = allocRecord{size: size, align: align, tag: tag}
}

func (t *leakTracker) release(p unsafe.Pointer) {
	if t == nil {
		return
	}
	delete(t.live, p)
}

// ScopedArena is the single-owner allocation regime: one goroutine owns it,
// allocates without contention, may Reset it between phases, and releases
// everything at once with Close. The zero value is not usable; construct
// with NewScopedArena.
type ScopedArena struct {
	id      string
	current *chunk
	retired []*chunk
	tracker *leakTracker
	closed  bool
}

// NewScopedArena creates a scoped arena with the given initial chunk size.
// Debug leak tracking follows the active runtime configuration.
func NewScopedArena(initial uintptr) *ScopedArena {
	s := &ScopedArena{
		id:      uuid.NewString(),
		current: newChunk(initial),
	}
	if activeConfig().Arena.DebugTracking {
		s.tracker = &leakTracker{live: make(map[unsafe.Pointer]allocRecord)}
	}
	return s
}

// ID returns the arena's tag used in leak reports.
func (s *ScopedArena) ID() string { return s.id }

// Alloc returns size bytes aligned to align, valid until Reset or Close.
func (s *ScopedArena) Alloc(size, align uintptr) unsafe.Pointer {
	return s.AllocTagged(size, align, "")
}

// AllocTagged is Alloc with a type tag recorded by the debug leak tracker.
func (s *ScopedArena) AllocTagged(size, align uintptr, tag string) unsafe.Pointer {
	if s.closed {
		panic("rt: allocation from closed ScopedArena")
	}
	if align == 0 {
		align = defaultAlign
	}
	for {
		if p := s.current.tryAllocSerial(size, align); p != nil {
			s.tracker.track(p, size, align, tag)
			return p
		}
		size2 := s.current.capacity() * 2
		if size2 > maxChunkSize {
			size2 = maxChunkSize
		}
		if size2 < size {
			size2 = size
		}
		s.retired = append(s.retired, s.current)
		s.current = newChunk(size2)
	}
}

// Release marks a tracked allocation as returned. It only affects debug
// leak reports; memory is reclaimed in bulk regardless.
func (s *ScopedArena) Release(p unsafe.Pointer) {
	s.tracker.release(p)
}

// Reset discards all allocations but keeps the current chunk for reuse
// between phases. Pointers handed out before Reset become invalid.
func (s *ScopedArena) Reset() {
	if s.closed {
		return
	}
	s.retired = nil
	s.current.off.Store(0)
	if s.tracker != nil {
		s.tracker.live = make(map[unsafe.Pointer]allocRecord)
	}
}

// Close releases the arena. With debug tracking enabled, any allocation not
// explicitly Released is reported as a leak. Close is idempotent.
func (s *ScopedArena) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.tracker != nil && len(s.tracker.live) > 0 {
		for p, rec := range s.tracker.live {
			arenaLog.Warningf("scoped arena %s leaked %d bytes (align %d, tag %q) at %p",
				s.id, rec.size, rec.align, rec.tag, p)
		}
	}
	s.current = nil
	s.retired = nil
	s.tracker = nil
}

// LeakCount returns the number of tracked allocations not yet released.
// Always zero when debug tracking is off.
func (s *ScopedArena) LeakCount() int {
	if s.tracker == nil {
		return 0
	}
	return len(s.tracker.live)
}

// ---------------------------------------------------------------------------
// LocalPool: per-worker arenas without contention
// ---------------------------------------------------------------------------

// LocalPool hands out scoped arenas for transient per-goroutine work. Go
// has no thread-local storage, so the zero-contention regime is a pool:
// Acquire gives the caller exclusive ownership, Release resets the arena
// and returns it for reuse.
type LocalPool struct {
	chunkSize uintptr
	pool      sync.Pool
}

// NewLocalPool creates a pool handing out arenas with the given chunk size.
func NewLocalPool(chunkSize uintptr) *LocalPool {
	p := &LocalPool{chunkSize: chunkSize}
	p.pool.New = func() any {
		return NewScopedArena(p.chunkSize)
	}
	return p
}

// Acquire returns an arena owned exclusively by the caller.
func (p *LocalPool) Acquire() *ScopedArena {
	return p.pool.Get().(*ScopedArena)
}

// Release resets the arena and makes it available for reuse. The caller
// must not touch the arena afterwards.
func (p *LocalPool) Release(s *ScopedArena) {
	s.Reset()
	p.pool.Put(s)
}
