package rt

import (
	"sync"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// ---------------------------------------------------------------------------
// Selector interning
// ---------------------------------------------------------------------------
//
// Selectors are canonical, pointer-comparable method names. The registry is
// a process-wide singleton split into independent shards so concurrent
// interning from different goroutines rarely touches the same lock. Shard
// and bucket are both masked out of a single hash, no modulo, so shard
// selection adds no work over an unsharded table in the single-threaded
// case.

const (
	selectorShards  = 16 // power of two
	bucketsPerShard = 256
	shardMask       = selectorShards - 1
	bucketMask      = bucketsPerShard - 1

	// Names at or below this length are stored inline in the Selector.
	selectorInlineLen = 16
)

// Selector is an interned method name. There is exactly one Selector per
// unique name for the life of the process, so equality is pointer equality.
type Selector struct {
	name   string // views inline[:] or global-arena storage
	hash   uint64
	inline [selectorInlineLen]byte
	next   *Selector // bucket chain, guarded by the shard lock
}

// Name returns the selector's name.
func (s *Selector) Name() string { return s.name }

// Hash returns the selector's precomputed hash.
func (s *Selector) Hash() uint64 { return s.hash }

func (s *Selector) String() string { return s.name }

type selectorShard struct {
	mu      sync.RWMutex
	buckets [bucketsPerShard]*Selector
}

// SelectorRegistry is the sharded interning table. Use the package-level
// Intern for the process-wide instance.
type SelectorRegistry struct {
	shards [selectorShards]selectorShard
}

// NewSelectorRegistry creates an empty registry. Only tests and embedders
// with unusual isolation needs want their own; the runtime proper uses the
// global one.
func NewSelectorRegistry() *SelectorRegistry {
	return &SelectorRegistry{}
}

// newSelector builds the canonical Selector for name. Short names live
// inline in the struct; long names are copied into the global arena. Both
// views are built from the storage's own base pointer.
func newSelector(name string, hash uint64) *Selector {
	s := &Selector{hash: hash}
	if len(name) <= selectorInlineLen && len(name) > 0 {
		copy(s.inline[:], name)
		s.name = unsafe.String(&s.inline[0], len(name))
	} else if len(name) > 0 {
		stored := GlobalArena().AllocBytes([]byte(name))
		s.name = unsafe.String(unsafe.SliceData(stored), len(stored))
	}
	return s
}

// Intern returns the canonical Selector for name, creating it if needed.
// Idempotent and safe for concurrent use: when two goroutines race to
// intern the same new name, exactly one candidate wins and the loser
// returns the winner's pointer.
func (r *SelectorRegistry) Intern(name string) *Selector {
	hash := xxhash.Sum64String(name)
	shard := &r.shards[hash&shardMask]
	bucket := (hash >> 4) & bucketMask

	// Fast path: read-locked chain walk. Compare hash, then length, then
	// bytes, so most mismatches short-circuit cheaply.
	shard.mu.RLock()
	for s := shard.buckets[bucket]; s != nil; s = s.next {
		if s.hash == hash && len(s.name) == len(name) && s.name == name {
			shard.mu.RUnlock()
			return s
		}
	}
	shard.mu.RUnlock()

	// Slow path: write-lock this shard only and re-walk; another goroutine
	// may have inserted while we waited.
	shard.mu.Lock()
	defer shard.mu.Unlock()
	for s := shard.buckets[bucket]; s != nil; s = s.next {
		if s.hash == hash && s.name == name {
			return s
		}
	}
	s := newSelector(name, hash)
	s.next = shard.buckets[bucket]
	shard.buckets[bucket] = s
	return s
}

// Lookup returns the Selector for name without creating one, or nil.
func (r *SelectorRegistry) Lookup(name string) *Selector {
	hash := xxhash.Sum64String(name)
	shard := &r.shards[hash&shardMask]
	bucket := (hash >> 4) & bucketMask

	shard.mu.RLock()
	defer shard.mu.RUnlock()
	for s := shard.buckets[bucket]; s != nil; s = s.next {
		if s.hash == hash && s.name == name {
			return s
		}
	}
	return nil
}

// Len returns the number of interned selectors.
func (r *SelectorRegistry) Len() int {
	n := 0
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.RLock()
		for b := range shard.buckets {
			for s := shard.buckets[b]; s != nil; s = s.next {
				n++
			}
		}
		shard.mu.RUnlock()
	}
	return n
}

// All returns every interned selector name. Allocates; debugging only.
func (r *SelectorRegistry) All() []string {
	var names []string
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.RLock()
		for b := range shard.buckets {
			for s := shard.buckets[b]; s != nil; s = s.next {
				names = append(names, s.name)
			}
		}
		shard.mu.RUnlock()
	}
	return names
}

// ---------------------------------------------------------------------------
// Global selector registry
// ---------------------------------------------------------------------------

var (
	selectorsOnce sync.Once
	selectors     *SelectorRegistry
)

// Selectors returns the process-wide registry.
func Selectors() *SelectorRegistry {
	selectorsOnce.Do(func() {
		selectors = NewSelectorRegistry()
	})
	return selectors
}

// Intern returns the canonical Selector for name from the process-wide
// registry.
func Intern(name string) *Selector {
	return Selectors().Intern(name)
}
