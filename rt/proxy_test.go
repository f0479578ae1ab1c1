package rt

import "testing"

func TestProxyForwardsEverything(t *testing.T) {
	real, err := RegisterClass("ProxiedReal", nil)
	if err != nil {
		t.Fatal(err)
	}
	real.AddMethod(Intern("proxyPing"), func(self *Object, cmd *Selector, args []Word, ret *Word) {
		*ret = 1
	}, "l@:")
	real.AddMethod(Intern("proxyEcho:"), func(self *Object, cmd *Selector, args []Word, ret *Word) {
		*ret = args[0]
	}, "l@:l")

	proxyClass, err := NewProxyClass("ProxyStandIn")
	if err != nil {
		t.Fatal(err)
	}

	backing := real.NewInstance()
	proxy := NewProxy(proxyClass, backing)
	if ProxyBacking(proxy) != backing {
		t.Error("ProxyBacking should return the wrapped object")
	}

	ret, _, err := SendByName(proxy, "proxyPing", nil)
	if err != nil || ret != 1 {
		t.Errorf("proxyPing through proxy: (%d, %v)", ret, err)
	}
	ret, _, err = SendByName(proxy, "proxyEcho:", []Word{77})
	if err != nil || ret != 77 {
		t.Errorf("proxyEcho: through proxy: (%d, %v)", ret, err)
	}

	backing.Release()
	proxy.Release()
}

func TestProxyRetainsBacking(t *testing.T) {
	real, _ := RegisterClass("ProxiedCounted", nil)
	destroyed := 0
	real.SetFinalizer(func(*Object) { destroyed++ })

	proxyClass, err := NewProxyClass("ProxyCounting")
	if err != nil {
		t.Fatal(err)
	}

	backing := real.NewInstance()
	proxy := NewProxy(proxyClass, backing)

	// The creator's reference goes away; the proxy's keeps it alive.
	backing.Release()
	if destroyed != 0 {
		t.Fatal("Backing destroyed while proxy holds it")
	}

	_, _, err = SendByName(proxy, "proxyAbsent", nil)
	if err == nil {
		t.Error("Missing method on the backing should still fail")
	}

	proxy.Release()
	if destroyed != 1 {
		t.Errorf("Expected backing destroyed with the proxy, got %d", destroyed)
	}
	if ProxyBacking(proxy) != nil {
		t.Error("Backing entry should be cleared on proxy destruction")
	}
}
