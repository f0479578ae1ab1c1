package rt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Class: method tables, caches, hierarchy
// ---------------------------------------------------------------------------

// cacheEntry is a resolved dispatch result. origin is the class whose table
// actually held the method; version is origin's table version at fill time.
// A version mismatch on read means the origin's table changed and the entry
// revalidates lazily. The mutated class itself deletes its own entry under
// the table write lock, so it can never serve stale data.
type cacheEntry struct {
	method  *Method
	origin  *Class
	version uint64
}

// Class is a single-inheritance class with a growable method table, a
// per-class dispatch cache, categories, and protocol declarations.
// Name and superclass are immutable after registration; the method table
// may grow at any time via AddMethod, categories and swizzles.
type Class struct {
	name         string
	super        *Class
	instanceSize uintptr
	finalizer    func(*Object)

	mu         sync.RWMutex
	methods    map[*Selector]*Method
	categories []*Category // install order; newest shadows
	cache      map[*Selector]*cacheEntry
	sigCache   map[*Selector]string
	protocols  []*Protocol
	version    atomic.Uint64

	hooks classHooks
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Superclass returns the parent class, or nil for a root class.
func (c *Class) Superclass() *Class { return c.super }

// InstanceSize returns the payload size of instances, in bytes.
func (c *Class) InstanceSize() uintptr { return c.instanceSize }

// SetFinalizer installs fn to run when an instance's refcount reaches zero.
func (c *Class) SetFinalizer(fn func(*Object)) { c.finalizer = fn }

func (c *Class) String() string { return c.name }

// IsSubclassOf reports whether c is other or a descendant of other.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.super {
		if k == other {
			return true
		}
	}
	return false
}

// NewInstance allocates an instance of c with refcount 1.
func (c *Class) NewInstance() *Object {
	return NewObject(c)
}

// ---------------------------------------------------------------------------
// Method table
// ---------------------------------------------------------------------------

// AddMethod registers or replaces the implementation for sel on this class.
// The table write, the dispatch-cache invalidation and the signature-cache
// invalidation for sel happen under one write lock, so a concurrent sender
// observes either the old method or the new one, never a torn state.
func (c *Class) AddMethod(sel *Selector, imp Imp, encoding string) (*Method, error) {
	m, err := NewMethod(sel, imp, encoding)
	if err != nil {
		return nil, fmt.Errorf("add %s to %s: %w", sel.Name(), c.name, err)
	}
	c.mu.Lock()
	c.methods[sel] = m
	c.invalidateLocked(sel)
	c.mu.Unlock()
	return m, nil
}

// invalidateLocked drops cached dispatch and signature state for sel and
// bumps the table version so subclass caches revalidate lazily.
// Caller holds c.mu.
func (c *Class) invalidateLocked(sel *Selector) {
	delete(c.cache, sel)
	delete(c.sigCache, sel)
	c.version.Add(1)
}

// lookupOwnLocked finds sel among this class's own methods: categories
// newest-first (the most recently installed category method shadows), then
// the base table. Caller holds c.mu in at least read mode.
func (c *Class) lookupOwnLocked(sel *Selector) *Method {
	for i := len(c.categories) - 1; i >= 0; i-- {
		if m := c.categories[i].methods[sel]; m != nil {
			return m
		}
	}
	return c.methods[sel]
}

// LookupOwn finds sel among this class's own methods only, including
// categories. Does not consult the superclass chain.
func (c *Class) LookupOwn(sel *Selector) *Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookupOwnLocked(sel)
}

// LookupMethod finds sel anywhere in the hierarchy, without touching the
// dispatch cache.
func (c *Class) LookupMethod(sel *Selector) *Method {
	for k := c; k != nil; k = k.super {
		if m := k.LookupOwn(sel); m != nil {
			return m
		}
	}
	return nil
}

// RespondsTo reports whether instances of c handle sel through ordinary
// dispatch (forwarding not considered).
func (c *Class) RespondsTo(sel *Selector) bool {
	return c.LookupMethod(sel) != nil
}

// resolve is the dispatch engine's lookup: per-class cache, then the local
// table, then the superclass chain, inserting the result into this class's
// cache. Own methods always shadow inherited ones, identically whether the
// cache is cold or warm.
func (c *Class) resolve(sel *Selector) *Method {
	c.mu.RLock()
	e := c.cache[sel]
	c.mu.RUnlock()
	if e != nil && e.origin.version.Load() == e.version {
		return e.method
	}

	for k := c; k != nil; k = k.super {
		k.mu.RLock()
		m := k.lookupOwnLocked(sel)
		ver := k.version.Load()
		k.mu.RUnlock()
		if m != nil {
			c.mu.Lock()
			c.cache[sel] = &cacheEntry{method: m, origin: k, version: ver}
			c.mu.Unlock()
			return m
		}
	}
	return nil
}

// Version returns the method-table version, bumped on every mutation.
func (c *Class) Version() uint64 { return c.version.Load() }

// ---------------------------------------------------------------------------
// Class registry
// ---------------------------------------------------------------------------

// ClassRegistry maps names to registered classes. Process-wide singleton;
// initialized once, never torn down.
type ClassRegistry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassRegistry creates an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{classes: make(map[string]*Class, 64)}
}

var (
	classesOnce sync.Once
	classes     *ClassRegistry
)

// Classes returns the process-wide class registry.
func Classes() *ClassRegistry {
	classesOnce.Do(func() {
		classes = NewClassRegistry()
	})
	return classes
}

// Register creates and registers a class. A nil super registers a root
// class. instanceSize is the payload size of this class's own layout; it
// must already include any inherited layout (pass at least
// super.InstanceSize()). Registration fails on duplicate names and on
// hierarchy cycles; both checks happen once, here, because name and
// superclass are immutable afterwards.
func (r *ClassRegistry) Register(name string, super *Class, instanceSize uintptr) (*Class, error) {
	if super != nil {
		if err := checkHierarchyCycle(name, super); err != nil {
			return nil, err
		}
		if instanceSize < super.instanceSize {
			instanceSize = super.instanceSize
		}
	}

	c := &Class{
		name:         arenaString(name),
		super:        super,
		instanceSize: instanceSize,
		methods:      make(map[*Selector]*Method),
		cache:        make(map[*Selector]*cacheEntry),
		sigCache:     make(map[*Selector]string),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.classes[name]; dup {
		return nil, fmt.Errorf("%w: %s", ErrClassExists, name)
	}
	r.classes[name] = c
	return c, nil
}

// checkHierarchyCycle rejects linking super under a class named name when
// that would close a cycle. The chain is acyclic by construction afterwards
// since superclasses are immutable.
func checkHierarchyCycle(name string, super *Class) error {
	for k := super; k != nil; k = k.super {
		if k.name == name {
			return fmt.Errorf("%w: %s already appears above itself", ErrClassCycle, name)
		}
	}
	return nil
}

// Lookup finds a class by name, or nil.
func (r *ClassRegistry) Lookup(name string) *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classes[name]
}

// All returns all registered classes.
func (r *ClassRegistry) All() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered classes.
func (r *ClassRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}

// RegisterClass registers a class with the process-wide registry.
func RegisterClass(name string, super *Class) (*Class, error) {
	return Classes().Register(name, super, 0)
}

// RegisterClassWithSize registers a class with an explicit instance layout
// size.
func RegisterClassWithSize(name string, super *Class, instanceSize uintptr) (*Class, error) {
	return Classes().Register(name, super, instanceSize)
}

// LookupClass finds a class in the process-wide registry, or nil.
func LookupClass(name string) *Class {
	return Classes().Lookup(name)
}

// arenaString copies s into the global arena and returns a string view of
// the stable storage.
func arenaString(s string) string {
	if len(s) == 0 {
		return ""
	}
	stored := GlobalArena().AllocBytes([]byte(s))
	return unsafe.String(unsafe.SliceData(stored), len(stored))
}
