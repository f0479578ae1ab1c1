package rt

import "sync"

// ---------------------------------------------------------------------------
// Proxies: transparent stand-ins built on stage-1 forwarding
// ---------------------------------------------------------------------------
//
// A proxy class implements nothing itself; every send to a proxy instance
// misses dispatch and fast-redirects to the backing object. The proxy
// retains its backing object and releases it on destruction.

var (
	proxyMu      sync.RWMutex
	proxyBacking = make(map[*Object]*Object)
)

// NewProxyClass registers a class whose instances forward every selector to
// a backing object installed by NewProxy.
func NewProxyClass(name string) (*Class, error) {
	c, err := RegisterClass(name, nil)
	if err != nil {
		return nil, err
	}
	c.SetRedirectHook(func(o *Object, _ *Selector) *Object {
		proxyMu.RLock()
		defer proxyMu.RUnlock()
		return proxyBacking[o]
	})
	c.SetFinalizer(func(o *Object) {
		proxyMu.Lock()
		backing := proxyBacking[o]
		delete(proxyBacking, o)
		proxyMu.Unlock()
		if backing != nil {
			backing.Release()
		}
	})
	return c, nil
}

// NewProxy creates a proxy instance standing in for backing. The backing
// object is retained for the proxy's lifetime.
func NewProxy(class *Class, backing *Object) *Object {
	o := class.NewInstance()
	backing.Retain()
	proxyMu.Lock()
	proxyBacking[o] = backing
	proxyMu.Unlock()
	return o
}

// ProxyBacking returns the object a proxy stands in for, or nil.
func ProxyBacking(o *Object) *Object {
	proxyMu.RLock()
	defer proxyMu.RUnlock()
	return proxyBacking[o]
}
