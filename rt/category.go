package rt

import "fmt"

// ---------------------------------------------------------------------------
// Categories: runtime method-table mutation
// ---------------------------------------------------------------------------

// Category is a named set of methods installed on an already-registered
// class. Category methods shadow the class's base methods and any earlier
// category's methods for the same selector; the newest installation wins.
type Category struct {
	name    string
	class   *Class
	methods map[*Selector]*Method // guarded by class.mu
}

// Name returns the category name.
func (cat *Category) Name() string { return cat.name }

// Class returns the class the category extends.
func (cat *Category) Class() *Class { return cat.class }

// AddCategory attaches a new, empty named category to the class. Category
// names are unique per class.
func (c *Class) AddCategory(name string) (*Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cat := range c.categories {
		if cat.name == name {
			return nil, fmt.Errorf("%w: %s on %s", ErrCategoryExists, name, c.name)
		}
	}
	cat := &Category{
		name:    arenaString(name),
		class:   c,
		methods: make(map[*Selector]*Method),
	}
	c.categories = append(c.categories, cat)
	return cat, nil
}

// AddMethod installs or replaces a method through the category. The table
// mutation and the cache invalidation for sel happen under the class's
// write lock as one step, so a concurrent sender never observes a torn
// update: it resolves either the previous implementation or the new one.
func (cat *Category) AddMethod(sel *Selector, imp Imp, encoding string) (*Method, error) {
	m, err := NewMethod(sel, imp, encoding)
	if err != nil {
		return nil, fmt.Errorf("category %s add %s: %w", cat.name, sel.Name(), err)
	}
	c := cat.class
	c.mu.Lock()
	cat.methods[sel] = m
	c.invalidateLocked(sel)
	c.mu.Unlock()
	return m, nil
}

// Categories returns the class's categories in install order.
func (c *Class) Categories() []*Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Category, len(c.categories))
	copy(out, c.categories)
	return out
}
