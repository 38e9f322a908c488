package core

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestIDTableReusesReleasedSlots(t *testing.T) {
	tbl := NewIDTable[string]()
	a := tbl.Acquire("a")
	b := tbl.Acquire("b")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("Acquire() = %d, %d, want distinct non-zero ids", a, b)
	}
	if v, err := tbl.Release(a); err != nil || v != "a" {
		t.Errorf("Release(%d) = %q, %v, want \"a\", nil", a, v, err)
	}
	if _, err := tbl.Release(a); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Release(%d) = %v, want %v", a, err, ErrNotFound)
	}
	c := tbl.Acquire("c")
	if c != a {
		t.Errorf("Acquire() after release = %d, want reused %d", c, a)
	}
	if got, ok := tbl.Get(c); !ok || got != "c" {
		t.Errorf("Get(%d) = %q, %v, want \"c\", true", c, got, ok)
	}
	if tbl.Live() != 2 {
		t.Errorf("Live() = %d, want 2", tbl.Live())
	}
	if _, ok := tbl.Get(0); ok {
		t.Error("Get(0) = ok, want not found")
	}
}

func TestRegistryKeepsInsertionOrder(t *testing.T) {
	r := NewRegistry[int]()
	r.Put("monkey", 1)
	r.Put("triangle", 2)
	first, _ := r.ID("monkey")
	r.Put("monkey", 3)
	second, _ := r.ID("monkey")
	if first == second {
		t.Error("Put() on existing name kept the old id")
	}

	var names []string
	r.Each(func(name string, v int) { names = append(names, name) })
	if len(names) != 2 || names[0] != "monkey" || names[1] != "triangle" {
		t.Errorf("Each() names = %v, want [monkey triangle]", names)
	}
	if v, ok := r.Get("monkey"); !ok || v != 3 {
		t.Errorf("Get(monkey) = %d, %v, want 3, true", v, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) = ok, want not found")
	}
}
