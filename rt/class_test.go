package rt

import (
	"errors"
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	c, err := RegisterClass("RegLookupThing", nil)
	if err != nil {
		t.Fatal(err)
	}
	if LookupClass("RegLookupThing") != c {
		t.Error("Lookup should find the registered class")
	}
	if LookupClass("RegLookupMissing") != nil {
		t.Error("Lookup of unknown name should return nil")
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	if _, err := RegisterClass("DupThing", nil); err != nil {
		t.Fatal(err)
	}
	_, err := RegisterClass("DupThing", nil)
	if !errors.Is(err, ErrClassExists) {
		t.Errorf("Expected ErrClassExists, got %v", err)
	}
}

func TestRegisterCycleFails(t *testing.T) {
	root, err := RegisterClass("CycleRoot", nil)
	if err != nil {
		t.Fatal(err)
	}
	mid, err := RegisterClass("CycleMid", root)
	if err != nil {
		t.Fatal(err)
	}
	// A class may not appear above itself.
	_, err = Classes().Register("CycleRoot", mid, 0)
	if !errors.Is(err, ErrClassCycle) {
		t.Errorf("Expected ErrClassCycle, got %v", err)
	}
}

func TestIsSubclassOf(t *testing.T) {
	a, _ := RegisterClass("SubA", nil)
	b, _ := RegisterClass("SubB", a)
	c, _ := RegisterClass("SubC", b)

	if !c.IsSubclassOf(a) || !c.IsSubclassOf(b) || !c.IsSubclassOf(c) {
		t.Error("Expected subclass chain to hold")
	}
	if a.IsSubclassOf(c) {
		t.Error("Superclass is not a subclass of its descendant")
	}
}

func TestAddMethodAndLookup(t *testing.T) {
	c, err := RegisterClass("MethodHolder", nil)
	if err != nil {
		t.Fatal(err)
	}
	sel := Intern("holderDoIt")
	m, err := c.AddMethod(sel, func(self *Object, cmd *Selector, args []Word, ret *Word) {}, "v@:")
	if err != nil {
		t.Fatal(err)
	}
	if c.LookupOwn(sel) != m {
		t.Error("LookupOwn should find the added method")
	}
	if !c.RespondsTo(sel) {
		t.Error("RespondsTo should be true")
	}
	if c.RespondsTo(Intern("holderNope")) {
		t.Error("RespondsTo should be false for unknown selector")
	}
}

func TestAddMethodBadEncoding(t *testing.T) {
	c, err := RegisterClass("BadEncHolder", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.AddMethod(Intern("badEnc"), func(*Object, *Selector, []Word, *Word) {}, "zz")
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("Expected ErrInvalidEncoding, got %v", err)
	}
}

func TestInheritedLookup(t *testing.T) {
	parent, _ := RegisterClass("LookParent", nil)
	child, _ := RegisterClass("LookChild", parent)

	sel := Intern("lookInherited")
	m, err := parent.AddMethod(sel, func(*Object, *Selector, []Word, *Word) {}, "v@:")
	if err != nil {
		t.Fatal(err)
	}

	if child.LookupOwn(sel) != nil {
		t.Error("LookupOwn must not see inherited methods")
	}
	if child.LookupMethod(sel) != m {
		t.Error("LookupMethod should walk the superclass chain")
	}
	if !child.RespondsTo(sel) {
		t.Error("Child responds via inheritance")
	}
}

func TestVersionBumpsOnMutation(t *testing.T) {
	c, err := RegisterClass("VersionedThing", nil)
	if err != nil {
		t.Fatal(err)
	}
	v0 := c.Version()
	if _, err := c.AddMethod(Intern("verTick"), func(*Object, *Selector, []Word, *Word) {}, "v@:"); err != nil {
		t.Fatal(err)
	}
	if c.Version() <= v0 {
		t.Error("Expected version to advance on AddMethod")
	}
}
