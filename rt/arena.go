package rt

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Arena: region-based memory for runtime metadata
// ---------------------------------------------------------------------------
//
// Classes, selectors, protocols and large object payloads live in arenas.
// An arena owns a chain of chunks; allocation bumps a cursor, and memory is
// only ever released in bulk when the whole region goes away. Pointers
// returned by an arena are stable for the arena's lifetime.
//
// The global arena is a process-wide singleton: it is initialized once,
// shared by every goroutine, and never torn down.

const (
	defaultAlign = 8
	minChunkSize = 4 * 1024
	maxChunkSize = 1024 * 1024
)

// chunk is a contiguous byte buffer with an atomic bump cursor. The cursor
// is an offset, not a pointer: result addresses are always reconstructed
// from the preserved base pointer so they keep the buffer's provenance.
type chunk struct {
	buf  []byte
	base unsafe.Pointer // &buf[0], cached once
	off  atomic.Uintptr
}

func newChunk(size uintptr) *chunk {
	if size < minChunkSize {
		size = minChunkSize
	}
	size = nextPow2(size)
	buf := make([]byte, size)
	return &chunk{
		buf:  buf,
		base: unsafe.Pointer(unsafe.SliceData(buf)),
	}
}

func nextPow2(n uintptr) uintptr {
	p := uintptr(1)
	for p < n {
		p <<= 1
	}
	return p
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// tryAlloc bumps the cursor by CAS. Returns nil when the chunk cannot hold
// the request; the caller is responsible for growing the arena.
func (c *chunk) tryAlloc(size, align uintptr) unsafe.Pointer {
	baseAddr := uintptr(c.base)
	for {
		cur := c.off.Load()
		start := alignUp(baseAddr+cur, align) - baseAddr
		end := start + alignUp(size, align)
		if end > uintptr(len(c.buf)) {
			return nil
		}
		if c.off.CompareAndSwap(cur, end) {
			return unsafe.Add(c.base, start)
		}
	}
}

// tryAllocSerial is the single-owner variant used by scoped arenas. No
// atomics: the owner is the only mutator.
func (c *chunk) tryAllocSerial(size, align uintptr) unsafe.Pointer {
	baseAddr := uintptr(c.base)
	cur := c.off.Load()
	start := alignUp(baseAddr+cur, align) - baseAddr
	end := start + alignUp(size, align)
	if end > uintptr(len(c.buf)) {
		return nil
	}
	c.off.Store(end)
	return unsafe.Add(c.base, start)
}

func (c *chunk) capacity() uintptr { return uintptr(len(c.buf)) }

// ArenaStats summarizes an arena's memory usage.
type ArenaStats struct {
	TotalAllocated uint64
	ChunkCount     int
	TotalCapacity  uint64
}

// Arena is the thread-safe, shared, never-reset allocation regime. Any
// goroutine may allocate concurrently; the only structural mutation is
// appending a fresh chunk, done by compare-and-exchange with explicit
// ownership handoff.
type Arena struct {
	current atomic.Pointer[chunk]

	mu      sync.Mutex
	retired []*chunk // full chunks, retained until the arena itself dies

	allocated atomic.Uint64
}

// NewArena creates an arena with the given initial chunk size. Sizes below
// the minimum are rounded up; all chunk sizes are powers of two.
func NewArena(initial uintptr) *Arena {
	a := &Arena{}
	a.current.Store(newChunk(initial))
	return a
}

// Alloc returns size bytes aligned to align. The pointer is valid and
// stable for the arena's lifetime. Alignment must be a power of two.
// Allocation never fails recoverably: OS memory exhaustion panics inside
// make.
func (a *Arena) Alloc(size, align uintptr) unsafe.Pointer {
	if align == 0 {
		align = defaultAlign
	}
	for {
		c := a.current.Load()
		if p := c.tryAlloc(size, align); p != nil {
			a.allocated.Add(uint64(size))
			return p
		}
		a.grow(c, size)
	}
}

// AllocBytes copies b into the arena and returns the stable copy.
func (a *Arena) AllocBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	p := a.Alloc(uintptr(len(b)), 1)
	dst := unsafe.Slice((*byte)(p), len(b))
	copy(dst, b)
	return dst
}

// grow installs a replacement for the exhausted chunk. The new chunk is
// constructed and owned by the calling goroutine; ownership transfers to
// the arena only when the compare-and-exchange succeeds. On success the old
// chunk is retired, not freed (bulk teardown only). On failure another
// goroutine already installed a chunk, and the caller's candidate is simply
// dropped; it was never reachable from the arena, so there is exactly one
// live owner at every point of the handoff.
func (a *Arena) grow(exhausted *chunk, need uintptr) {
	size := exhausted.capacity() * 2
	if size > maxChunkSize {
		size = maxChunkSize
	}
	if size < need {
		size = need
	}
	candidate := newChunk(size)
	if a.current.CompareAndSwap(exhausted, candidate) {
		a.mu.Lock()
		a.retired = append(a.retired, exhausted)
		a.mu.Unlock()
	}
	// Lost the race: candidate stays caller-owned and dies here.
}

// Stats reports current usage.
func (a *Arena) Stats() ArenaStats {
	a.mu.Lock()
	retired := make([]*chunk, len(a.retired))
	copy(retired, a.retired)
	a.mu.Unlock()

	cur := a.current.Load()
	stats := ArenaStats{
		TotalAllocated: a.allocated.Load(),
		ChunkCount:     len(retired) + 1,
		TotalCapacity:  uint64(cur.capacity()),
	}
	for _, c := range retired {
		stats.TotalCapacity += uint64(c.capacity())
	}
	return stats
}

// ---------------------------------------------------------------------------
// Global arena singleton
// ---------------------------------------------------------------------------

var (
	globalArenaOnce sync.Once
	globalArena     *Arena
)

// GlobalArena returns the process-wide arena. It is created on first use
// and lives for the rest of the process; pointers into it never move and
// are never reclaimed.
func GlobalArena() *Arena {
	globalArenaOnce.Do(func() {
		globalArena = NewArena(uintptr(activeConfig().Arena.ChunkSize))
	})
	return globalArena
}
