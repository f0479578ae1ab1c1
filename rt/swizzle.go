package rt

import "fmt"

// ---------------------------------------------------------------------------
// Swizzling: atomic implementation exchange
// ---------------------------------------------------------------------------

// Swizzle atomically exchanges the implementation for sel on this class and
// returns the original for optional restoration. The exchange happens on
// the method's atomic implementation pointer, so concurrent dispatchers,
// including ones holding a warm cache entry for this method, observe
// either the pre- or post-swizzle implementation, never a corrupted
// intermediate.
//
// The selector must resolve on the class itself (base table or a category);
// swizzling an inherited implementation would silently mutate the ancestor,
// so that is rejected.
func (c *Class) Swizzle(sel *Selector, newImp Imp) (Imp, error) {
	m := c.LookupOwn(sel)
	if m == nil {
		return nil, fmt.Errorf("%w: swizzle %s on %s", ErrNoSuchMethod, sel.Name(), c.name)
	}
	return m.exchangeImp(newImp), nil
}

// Swizzle exchanges the implementation for (class, selector) and returns
// the original.
func Swizzle(c *Class, sel *Selector, newImp Imp) (Imp, error) {
	return c.Swizzle(sel, newImp)
}
