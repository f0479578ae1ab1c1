package rt

import "sync"

// ---------------------------------------------------------------------------
// Forwarding pipeline
// ---------------------------------------------------------------------------
//
// Entered only after ordinary dispatch fails at the root of the superclass
// chain. Four stages, each consulting hooks at object, class, then global
// granularity:
//
//  1. fast redirect:        alternate target, restart dispatch against it
//  2. signature resolution: type encoding needed to reify the send
//  3. invocation dispatch:  hand a mutable Invocation to a handler
//  4. does-not-recognize:   diagnostic event, then a hard failure
//
// Redirect chains are bounded structurally by a depth counter threaded
// through the send path (Go has no thread-local storage, so the counter is
// an explicit parameter rather than TLS state like a C runtime would use).

// RedirectHook supplies an alternate receiver for an unresolved selector,
// or nil to decline.
type RedirectHook func(obj *Object, sel *Selector) *Object

// SignatureHook supplies the type encoding for an unresolved selector.
type SignatureHook func(obj *Object, sel *Selector) (string, bool)

// InvocationHook receives a reified send and may rewrite its target,
// selector or arguments before it is re-dispatched.
type InvocationHook func(inv *Invocation)

// UnrecognizedHook observes a send that exhausted the pipeline, just before
// the fatal error is raised.
type UnrecognizedHook func(obj *Object, sel *Selector)

// classHooks hold a class's forwarding hooks. A class's zero value means no
// hooks installed.
type classHooks struct {
	mu           sync.RWMutex
	redirect     RedirectHook
	signature    SignatureHook
	invocation   InvocationHook
	unrecognized UnrecognizedHook
}

// SetRedirectHook installs the class's fast-redirect hook.
func (c *Class) SetRedirectHook(h RedirectHook) {
	c.hooks.mu.Lock()
	c.hooks.redirect = h
	c.hooks.mu.Unlock()
}

// SetSignatureHook installs the class's signature-resolution hook.
func (c *Class) SetSignatureHook(h SignatureHook) {
	c.hooks.mu.Lock()
	c.hooks.signature = h
	c.hooks.mu.Unlock()
}

// SetInvocationHook installs the class's invocation-dispatch hook.
func (c *Class) SetInvocationHook(h InvocationHook) {
	c.hooks.mu.Lock()
	c.hooks.invocation = h
	c.hooks.mu.Unlock()
}

// SetUnrecognizedHook installs the class's does-not-recognize hook.
func (c *Class) SetUnrecognizedHook(h UnrecognizedHook) {
	c.hooks.mu.Lock()
	c.hooks.unrecognized = h
	c.hooks.mu.Unlock()
}

func (c *Class) redirectHook() RedirectHook {
	c.hooks.mu.RLock()
	defer c.hooks.mu.RUnlock()
	return c.hooks.redirect
}

func (c *Class) signatureHook() SignatureHook {
	c.hooks.mu.RLock()
	defer c.hooks.mu.RUnlock()
	return c.hooks.signature
}

func (c *Class) invocationHook() InvocationHook {
	c.hooks.mu.RLock()
	defer c.hooks.mu.RUnlock()
	return c.hooks.invocation
}

func (c *Class) unrecognizedHook() UnrecognizedHook {
	c.hooks.mu.RLock()
	defer c.hooks.mu.RUnlock()
	return c.hooks.unrecognized
}

// ---------------------------------------------------------------------------
// Per-object and global hooks
// ---------------------------------------------------------------------------

type objectHooks struct {
	redirect     RedirectHook
	signature    SignatureHook
	invocation   InvocationHook
	unrecognized UnrecognizedHook
}

var (
	objectHooksMu  sync.RWMutex
	objectHooksMap = make(map[*Object]*objectHooks)
)

// setObjectHook mutates one object's hook set under the write lock, so
// concurrent senders reading the set never observe a half-written update.
func setObjectHook(o *Object, mutate func(*objectHooks)) {
	objectHooksMu.Lock()
	defer objectHooksMu.Unlock()
	h := objectHooksMap[o]
	if h == nil {
		h = &objectHooks{}
		objectHooksMap[o] = h
	}
	mutate(h)
}

// objectHookSet returns a copy of one object's hooks, or the zero set.
func objectHookSet(o *Object) objectHooks {
	objectHooksMu.RLock()
	defer objectHooksMu.RUnlock()
	if h := objectHooksMap[o]; h != nil {
		return *h
	}
	return objectHooks{}
}

// SetObjectRedirectHook installs a fast-redirect hook on one object.
func SetObjectRedirectHook(o *Object, h RedirectHook) {
	setObjectHook(o, func(oh *objectHooks) { oh.redirect = h })
}

// SetObjectSignatureHook installs a signature hook on one object.
func SetObjectSignatureHook(o *Object, h SignatureHook) {
	setObjectHook(o, func(oh *objectHooks) { oh.signature = h })
}

// SetObjectInvocationHook installs an invocation hook on one object.
func SetObjectInvocationHook(o *Object, h InvocationHook) {
	setObjectHook(o, func(oh *objectHooks) { oh.invocation = h })
}

// SetObjectUnrecognizedHook installs a does-not-recognize hook on one
// object.
func SetObjectUnrecognizedHook(o *Object, h UnrecognizedHook) {
	setObjectHook(o, func(oh *objectHooks) { oh.unrecognized = h })
}

// clearObjectHooks drops an object's hooks on destruction.
func clearObjectHooks(o *Object) {
	objectHooksMu.Lock()
	delete(objectHooksMap, o)
	objectHooksMu.Unlock()
	dropRedirectCache(o)
}

var (
	globalHooksMu sync.RWMutex
	globalHooks   objectHooks
)

// SetGlobalRedirectHook installs the process-wide fast-redirect hook.
func SetGlobalRedirectHook(h RedirectHook) {
	globalHooksMu.Lock()
	globalHooks.redirect = h
	globalHooksMu.Unlock()
}

// SetGlobalSignatureHook installs the process-wide signature hook.
func SetGlobalSignatureHook(h SignatureHook) {
	globalHooksMu.Lock()
	globalHooks.signature = h
	globalHooksMu.Unlock()
}

// SetGlobalInvocationHook installs the process-wide invocation hook.
func SetGlobalInvocationHook(h InvocationHook) {
	globalHooksMu.Lock()
	globalHooks.invocation = h
	globalHooksMu.Unlock()
}

// SetGlobalUnrecognizedHook installs the process-wide does-not-recognize
// hook.
func SetGlobalUnrecognizedHook(h UnrecognizedHook) {
	globalHooksMu.Lock()
	globalHooks.unrecognized = h
	globalHooksMu.Unlock()
}

func globalHookSet() objectHooks {
	globalHooksMu.RLock()
	defer globalHooksMu.RUnlock()
	return globalHooks
}

// ---------------------------------------------------------------------------
// Redirect target cache
// ---------------------------------------------------------------------------
//
// Successful stage-1 redirects are cached per (object, selector), validated
// against the object's class version so a later method install on the class
// takes precedence over a stale redirect.

type redirectKey struct {
	obj *Object
	sel *Selector
}

type redirectEntry struct {
	target  *Object
	version uint64
}

var (
	redirectCacheMu sync.RWMutex
	redirectCache   = make(map[redirectKey]redirectEntry)
)

func cachedRedirect(o *Object, sel *Selector) *Object {
	redirectCacheMu.RLock()
	e, ok := redirectCache[redirectKey{o, sel}]
	redirectCacheMu.RUnlock()
	if !ok || e.version != o.class.version.Load() {
		return nil
	}
	return e.target
}

func cacheRedirect(o *Object, sel *Selector, target *Object) {
	redirectCacheMu.Lock()
	redirectCache[redirectKey{o, sel}] = redirectEntry{
		target:  target,
		version: o.class.version.Load(),
	}
	redirectCacheMu.Unlock()
}

func dropRedirectCache(o *Object) {
	redirectCacheMu.Lock()
	for k := range redirectCache {
		if k.obj == o {
			delete(redirectCache, k)
		}
	}
	redirectCacheMu.Unlock()
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

func resolveRedirect(o *Object, sel *Selector) *Object {
	if t := cachedRedirect(o, sel); t != nil {
		return t
	}
	var target *Object
	if h := objectHookSet(o).redirect; h != nil {
		target = h(o, sel)
	}
	if target == nil {
		if h := o.class.redirectHook(); h != nil {
			target = h(o, sel)
		}
	}
	if target == nil {
		if h := globalHookSet().redirect; h != nil {
			target = h(o, sel)
		}
	}
	if target != nil {
		cacheRedirect(o, sel, target)
	}
	return target
}

// signatureFor resolves the type encoding for an unresolved selector,
// consulting the per-(class, selector) cache first. The cache lives in the
// class and is invalidated whenever the class's method table changes.
func signatureFor(o *Object, sel *Selector) (string, bool) {
	c := o.class
	c.mu.RLock()
	sig, ok := c.sigCache[sel]
	c.mu.RUnlock()
	if ok {
		return sig, true
	}

	var resolved string
	found := false
	if h := objectHookSet(o).signature; h != nil {
		resolved, found = h(o, sel)
	}
	if !found {
		if h := c.signatureHook(); h != nil {
			resolved, found = h(o, sel)
		}
	}
	if !found {
		if h := globalHookSet().signature; h != nil {
			resolved, found = h(o, sel)
		}
	}
	if !found {
		return "", false
	}

	c.mu.Lock()
	c.sigCache[sel] = resolved
	c.mu.Unlock()
	return resolved, true
}

func resolveInvocationHook(o *Object) InvocationHook {
	if h := objectHookSet(o).invocation; h != nil {
		return h
	}
	if h := o.class.invocationHook(); h != nil {
		return h
	}
	return globalHookSet().invocation
}

// doesNotRecognize is stage 4: emit the diagnostic event, notify the most
// specific unrecognized hook, and produce the fatal error.
func doesNotRecognize(o *Object, sel *Selector) error {
	emitForwardingEvent(ForwardingEvent{
		Kind:     ForwardingUnrecognized,
		Object:   o,
		Selector: sel,
	})
	if h := objectHookSet(o).unrecognized; h != nil {
		h(o, sel)
	} else if h := o.class.unrecognizedHook(); h != nil {
		h(o, sel)
	} else if h := globalHookSet().unrecognized; h != nil {
		h(o, sel)
	}
	return &DoesNotRecognizeError{Class: o.class.name, Selector: sel.Name()}
}

// forward runs the pipeline for a send that ordinary dispatch could not
// resolve. depth counts how many times this send has already been
// forwarded.
func forward(o *Object, sel *Selector, args []Word, depth int) (Word, bool, error) {
	next := depth + 1
	if next > MaxForwardingDepth() {
		emitForwardingEvent(ForwardingEvent{
			Kind:     ForwardingLoop,
			Object:   o,
			Selector: sel,
			Depth:    next,
		})
		return 0, false, &ForwardingDepthError{Selector: sel.Name(), Depth: next}
	}
	emitForwardingEvent(ForwardingEvent{
		Kind:     ForwardingAttempt,
		Object:   o,
		Selector: sel,
		Depth:    depth,
	})

	// Stage 1: fast redirect.
	if target := resolveRedirect(o, sel); target != nil && target != o {
		emitForwardingEvent(ForwardingEvent{
			Kind:     ForwardingRedirect,
			Object:   o,
			Selector: sel,
			Target:   target,
			Depth:    depth,
		})
		return sendDepth(target, sel, args, next)
	}

	// Stage 2: signature resolution. Without a signature the send cannot
	// be reified, so the pipeline skips straight to stage 4.
	sig, ok := signatureFor(o, sel)
	if !ok {
		return 0, false, doesNotRecognize(o, sel)
	}

	// Stage 3: invocation dispatch.
	handler := resolveInvocationHook(o)
	if handler == nil {
		return 0, false, doesNotRecognize(o, sel)
	}
	inv, err := invocations.Acquire(o, sel, args)
	if err != nil {
		return 0, false, err
	}
	inv.SetSignature(sig)
	handler(inv)
	// An untouched invocation would re-dispatch the identical send and
	// burn forwarding depth without ever resolving.
	if target, selector, arguments := inv.Modified(); !target && !selector && !arguments {
		invocations.Release(inv)
		return 0, false, &ForwardingFailedError{
			Selector: sel.Name(),
			Reason:   "invocation handler left the send unchanged",
		}
	}
	ret, hasRet, err := inv.invoke(next)
	invocations.Release(inv)
	return ret, hasRet, err
}
