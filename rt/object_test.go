package rt

import (
	"sync"
	"testing"
)

func TestObjectLifecycle(t *testing.T) {
	c, err := RegisterClass("LifecycleThing", nil)
	if err != nil {
		t.Fatal(err)
	}
	destroyed := 0
	c.SetFinalizer(func(*Object) { destroyed++ })

	o := c.NewInstance()
	if o.RefCount() != 1 {
		t.Errorf("Expected initial refcount 1, got %d", o.RefCount())
	}
	if o.Class() != c {
		t.Error("Wrong class")
	}

	o.Retain()
	o.Retain()
	if o.RefCount() != 3 {
		t.Errorf("Expected refcount 3, got %d", o.RefCount())
	}

	o.Release()
	o.Release()
	if destroyed != 0 {
		t.Error("Destroyed while references remain")
	}
	o.Release()
	if destroyed != 1 {
		t.Errorf("Expected exactly one destruction, got %d", destroyed)
	}
}

func TestObjectConcurrentRetainRelease(t *testing.T) {
	c, err := RegisterClass("SharedThing", nil)
	if err != nil {
		t.Fatal(err)
	}
	var destroyed int
	c.SetFinalizer(func(*Object) { destroyed++ })

	o := c.NewInstance()
	const workers = 8
	const rounds = 1000

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				o.Retain()
				o.Release()
			}
		}()
	}
	wg.Wait()

	if destroyed != 0 {
		t.Error("Balanced retain/release pairs must not destroy")
	}
	if o.RefCount() != 1 {
		t.Errorf("Expected refcount back at 1, got %d", o.RefCount())
	}
	o.Release()
	if destroyed != 1 {
		t.Errorf("Expected exactly one destruction, got %d", destroyed)
	}
}

func TestObjectOverReleasePanics(t *testing.T) {
	c, err := RegisterClass("FragileThing", nil)
	if err != nil {
		t.Fatal(err)
	}
	o := c.NewInstance()
	o.Release()

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on over-release")
		}
	}()
	o.Release()
}

func TestObjectResurrectionPanics(t *testing.T) {
	c, err := RegisterClass("GhostThing", nil)
	if err != nil {
		t.Fatal(err)
	}
	o := c.NewInstance()
	o.Release()

	defer func() {
		if recover() == nil {
			t.Error("Expected panic retaining a destroyed object")
		}
	}()
	o.Retain()
}

func TestObjectInlinePayload(t *testing.T) {
	c, err := RegisterClassWithSize("SmallThing", nil, 16)
	if err != nil {
		t.Fatal(err)
	}
	o := c.NewInstance()
	if len(o.Payload()) != 16 {
		t.Errorf("Expected 16-byte payload, got %d", len(o.Payload()))
	}

	o.SetPayloadWord(0, 42)
	o.SetPayloadWord(8, 99)
	if o.PayloadWord(0) != 42 || o.PayloadWord(8) != 99 {
		t.Error("Payload words did not round-trip")
	}
}

func TestObjectExternalPayload(t *testing.T) {
	c, err := RegisterClassWithSize("BigThing", nil, 256)
	if err != nil {
		t.Fatal(err)
	}
	o := c.NewInstance()
	if len(o.Payload()) != 256 {
		t.Errorf("Expected 256-byte payload, got %d", len(o.Payload()))
	}

	for off := uintptr(0); off < 256; off += 8 {
		o.SetPayloadWord(off, Word(off))
	}
	for off := uintptr(0); off < 256; off += 8 {
		if o.PayloadWord(off) != Word(off) {
			t.Fatalf("Payload word at %d corrupted", off)
		}
	}
}

func TestSubclassInheritsInstanceSize(t *testing.T) {
	parent, err := RegisterClassWithSize("SizedParent", nil, 64)
	if err != nil {
		t.Fatal(err)
	}
	child, err := RegisterClassWithSize("SizedChild", parent, 8)
	if err != nil {
		t.Fatal(err)
	}
	if child.InstanceSize() != 64 {
		t.Errorf("Child layout must cover the parent's, got %d", child.InstanceSize())
	}
}
