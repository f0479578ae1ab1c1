package rt

import (
	"errors"
	"testing"
)

func TestCategoryAddAndShadow(t *testing.T) {
	c, err := RegisterClass("CatThing", nil)
	if err != nil {
		t.Fatal(err)
	}
	sel := Intern("catValue")
	c.AddMethod(sel, func(self *Object, cmd *Selector, args []Word, ret *Word) {
		*ret = 1
	}, "l@:")

	o := c.NewInstance()
	defer o.Release()

	if ret, _, _ := Send(o, sel, nil); ret != 1 {
		t.Fatalf("Expected base method, got %d", ret)
	}

	// A category method replaces the base implementation for all future
	// sends, including receivers whose cache is already warm.
	cat, err := c.AddCategory("extras")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cat.AddMethod(sel, func(self *Object, cmd *Selector, args []Word, ret *Word) {
		*ret = 2
	}, "l@:"); err != nil {
		t.Fatal(err)
	}

	if ret, _, _ := Send(o, sel, nil); ret != 2 {
		t.Errorf("Category method not observed, got %d", ret)
	}
}

func TestCategoryNewestShadows(t *testing.T) {
	c, _ := RegisterClass("CatLayered", nil)
	sel := Intern("catLayer")

	first, _ := c.AddCategory("first")
	first.AddMethod(sel, func(self *Object, cmd *Selector, args []Word, ret *Word) {
		*ret = 10
	}, "l@:")

	second, _ := c.AddCategory("second")
	second.AddMethod(sel, func(self *Object, cmd *Selector, args []Word, ret *Word) {
		*ret = 20
	}, "l@:")

	o := c.NewInstance()
	defer o.Release()

	if ret, _, _ := Send(o, sel, nil); ret != 20 {
		t.Errorf("Most recent category must win, got %d", ret)
	}
}

func TestCategoryDuplicateName(t *testing.T) {
	c, _ := RegisterClass("CatDupHolder", nil)
	if _, err := c.AddCategory("same"); err != nil {
		t.Fatal(err)
	}
	_, err := c.AddCategory("same")
	if !errors.Is(err, ErrCategoryExists) {
		t.Errorf("Expected ErrCategoryExists, got %v", err)
	}
}

func TestCategoryVisibleToSubclass(t *testing.T) {
	parent, _ := RegisterClass("CatParent", nil)
	child, _ := RegisterClass("CatChild", parent)

	sel := Intern("catGift")
	cat, _ := parent.AddCategory("gifts")
	cat.AddMethod(sel, func(self *Object, cmd *Selector, args []Word, ret *Word) {
		*ret = 5
	}, "l@:")

	o := child.NewInstance()
	defer o.Release()

	ret, _, err := Send(o, sel, nil)
	if err != nil || ret != 5 {
		t.Errorf("Category method not inherited: (%d, %v)", ret, err)
	}
}

func TestCategoriesListed(t *testing.T) {
	c, _ := RegisterClass("CatListed", nil)
	c.AddCategory("a")
	c.AddCategory("b")

	cats := c.Categories()
	if len(cats) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(cats))
	}
	if cats[0].Name() != "a" || cats[1].Name() != "b" {
		t.Error("Categories out of install order")
	}
	if cats[0].Class() != c {
		t.Error("Category should point back to its class")
	}
}
