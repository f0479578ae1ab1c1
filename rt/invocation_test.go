package rt

import (
	"errors"
	"testing"
)

func TestInvocationSlots(t *testing.T) {
	c, _ := RegisterClass("InvSlotThing", nil)
	o := c.NewInstance()
	defer o.Release()

	sel := Intern("invWith:args:")
	inv, err := NewInvocation(o, sel, []Word{11, 22})
	if err != nil {
		t.Fatal(err)
	}

	if inv.Target() != o || inv.Selector() != sel {
		t.Error("Wrong target or selector")
	}
	if inv.ArgumentCount() != 2 {
		t.Fatalf("Expected 2 arguments, got %d", inv.ArgumentCount())
	}
	for i, want := range []Word{11, 22} {
		got, err := inv.Argument(i)
		if err != nil || got != want {
			t.Errorf("Argument %d: got (%d, %v), want %d", i, got, err, want)
		}
	}
	if _, err := inv.Argument(2); err == nil {
		t.Error("Out-of-range argument should error")
	}
	if err := inv.SetArgument(-1, 0); err == nil {
		t.Error("Negative index should error")
	}
}

func TestInvocationModificationFlags(t *testing.T) {
	c, _ := RegisterClass("InvFlagThing", nil)
	o := c.NewInstance()
	o2 := c.NewInstance()
	defer o.Release()
	defer o2.Release()

	inv, err := NewInvocation(o, Intern("invFlag:"), []Word{1})
	if err != nil {
		t.Fatal(err)
	}

	target, selector, arguments := inv.Modified()
	if target || selector || arguments {
		t.Error("Fresh invocation should have no modifications")
	}

	inv.SetTarget(o2)
	inv.SetSelector(Intern("invFlagOther:"))
	inv.SetArgument(0, 2)

	target, selector, arguments = inv.Modified()
	if !target || !selector || !arguments {
		t.Error("All three modifications should be recorded")
	}
}

func TestInvocationTooManyArgs(t *testing.T) {
	c, _ := RegisterClass("InvWideThing", nil)
	o := c.NewInstance()
	defer o.Release()

	args := make([]Word, MaxInvocationArgs+1)
	_, err := NewInvocation(o, Intern("invWide"), args)
	var ace *ArgumentCountError
	if !errors.As(err, &ace) {
		t.Fatalf("Expected ArgumentCountError, got %v", err)
	}
}

func TestInvocationInvoke(t *testing.T) {
	c, _ := RegisterClass("InvRunThing", nil)
	sel := Intern("invDouble:")
	c.AddMethod(sel, func(self *Object, cmd *Selector, args []Word, ret *Word) {
		*ret = args[0] * 2
	}, "l@:l")

	o := c.NewInstance()
	defer o.Release()

	inv, err := NewInvocation(o, sel, []Word{21})
	if err != nil {
		t.Fatal(err)
	}
	if inv.Invoked() {
		t.Error("Not yet invoked")
	}
	if _, ok := inv.ReturnWord(); ok {
		t.Error("No return value before Invoke")
	}

	ret, ok, err := inv.Invoke()
	if err != nil {
		t.Fatal(err)
	}
	if !ok || ret != 42 {
		t.Errorf("Expected 42, got (%d, %v)", ret, ok)
	}
	if !inv.Invoked() {
		t.Error("Invoked flag not set")
	}
	if stored, ok := inv.ReturnWord(); !ok || stored != 42 {
		t.Errorf("ReturnWord: got (%d, %v)", stored, ok)
	}
}

func TestInvocationPoolReuse(t *testing.T) {
	c, _ := RegisterClass("InvPoolThing", nil)
	o := c.NewInstance()
	defer o.Release()

	p := NewInvocationPool()
	sel := Intern("invPooled")

	inv1, err := p.Acquire(o, sel, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(inv1)

	inv2, err := p.Acquire(o, sel, []Word{5})
	if err != nil {
		t.Fatal(err)
	}
	if inv2 != inv1 {
		t.Error("Expected the pooled invocation back")
	}
	if inv2.ArgumentCount() != 1 {
		t.Error("Reused invocation not reloaded")
	}
	if got, _ := inv2.Argument(0); got != 5 {
		t.Error("Reused invocation carries stale arguments")
	}

	stats := p.Stats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Errorf("Expected 1 miss and 1 hit, got %d/%d", stats.Misses, stats.Hits)
	}
}

func TestInvocationPoolBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Invocation.PoolSize = 2
	Configure(cfg)
	defer Configure(DefaultConfig())

	c, _ := RegisterClass("InvBoundThing", nil)
	o := c.NewInstance()
	defer o.Release()

	p := NewInvocationPool()
	sel := Intern("invBounded")

	invs := make([]*Invocation, 4)
	for i := range invs {
		inv, err := p.Acquire(o, sel, nil)
		if err != nil {
			t.Fatal(err)
		}
		invs[i] = inv
	}
	for _, inv := range invs {
		p.Release(inv)
	}

	stats := p.Stats()
	if stats.PoolSize != 2 {
		t.Errorf("Expected pool capped at 2, got %d", stats.PoolSize)
	}
	if stats.Rejected != 2 {
		t.Errorf("Expected 2 rejected returns, got %d", stats.Rejected)
	}
}
