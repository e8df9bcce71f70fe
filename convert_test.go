package pygo_test

import (
	"testing"

	"github.com/mkysylov/pygo"
)

func TestListRoundTrip(t *testing.T) {
	_, py := newPy(t)

	list, err := py.From([]string{"foo", "bar", "baz"})
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if got := mustStr(t, list); got != "['foo', 'bar', 'baz']" {
		t.Errorf("str(list) = %q", got)
	}

	elems, err := list.Seq()
	if err != nil {
		t.Fatalf("Seq: %v", err)
	}
	want := []string{"foo", "bar", "baz"}
	if len(elems) != len(want) {
		t.Fatalf("imported %d elements, want %d", len(elems), len(want))
	}
	for i, e := range elems {
		if got := mustStr(t, e); got != want[i] {
			t.Errorf("element %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestScalarConversions(t *testing.T) {
	_, py := newPy(t)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"bool", true, "True"},
		{"int", 42, "42"},
		{"int8", int8(-3), "-3"},
		{"uint32", uint32(7), "7"},
		{"float64", 2.5, "2.5"},
		{"float-whole", 2.0, "2.0"},
		{"string", "hi", "hi"},
		{"nil", nil, "None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := py.From(tt.in)
			if err != nil {
				t.Fatalf("From(%v): %v", tt.in, err)
			}
			if got := mustStr(t, o); got != tt.want {
				t.Errorf("str(From(%v)) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOverflowingUintIsRejected(t *testing.T) {
	_, py := newPy(t)
	if _, err := py.From(uint64(1) << 63); err == nil {
		t.Error("expected an overflow error")
	}
}

func TestUnconvertibleValueIsRejected(t *testing.T) {
	_, py := newPy(t)
	if _, err := py.From(make(chan int)); err == nil {
		t.Error("expected a conversion error")
	}
}

func TestDictConversion(t *testing.T) {
	_, py := newPy(t)

	d, err := py.From(map[string]int64{"a": 1})
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	items, err := d.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("imported %d pairs, want 1", len(items))
	}
	if got := mustStr(t, items[0].Key); got != "a" {
		t.Errorf("key = %q, want a", got)
	}
	if got := mustInt(t, items[0].Value); got != 1 {
		t.Errorf("value = %d, want 1", got)
	}
}

func TestSetConversion(t *testing.T) {
	_, py := newPy(t)

	// map[T]struct{} is the conventional Go set and crosses as one.
	s, err := py.From(map[string]struct{}{"x": {}})
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if got := mustStr(t, s); got != "{'x'}" {
		t.Errorf("str(set) = %q, want {'x'}", got)
	}
	elems, err := s.Set()
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(elems) != 1 || mustStr(t, elems[0]) != "x" {
		t.Errorf("imported set = %v", elems)
	}
}

func TestRangeConversion(t *testing.T) {
	_, py := newPy(t)

	tests := []struct {
		name string
		in   pygo.Range
		want string
	}{
		{"exclusive", pygo.Range{Start: 1, Stop: 10, Step: 2}, "slice(1, 10, 2)"},
		{"inclusive", pygo.Range{Start: 1, Stop: 10, Step: 2, Inclusive: true}, "slice(1, 11, 2)"},
		{"inclusive-down", pygo.Range{Start: 10, Stop: 1, Step: -1, Inclusive: true}, "slice(10, 0, -1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := py.From(tt.in)
			if err != nil {
				t.Fatalf("From: %v", err)
			}
			if got := mustStr(t, o); got != tt.want {
				t.Errorf("str = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNestedConversion(t *testing.T) {
	_, py := newPy(t)

	o, err := py.From([]any{int64(1), "two", []int64{3}})
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if got := mustStr(t, o); got != "[1, 'two', [3]]" {
		t.Errorf("str = %q", got)
	}
}

func TestFromPassesProxiesThrough(t *testing.T) {
	_, py := newPy(t)

	a, _ := py.From(1)
	b, err := py.From(a)
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if a != b {
		t.Error("From on a proxy should be the identity")
	}
}

func TestNilProxyConvertsToNone(t *testing.T) {
	_, py := newPy(t)

	// The null handle wraps to a nil proxy; feeding that proxy back as
	// an argument must cross as None, like an untyped nil.
	absent := py.Receive(0)
	if absent != nil {
		t.Fatalf("Receive(0) = %v, want nil", absent)
	}

	d, err := py.From(map[string]int64{})
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if err := d.SetItem("k", absent); err != nil {
		t.Fatalf("SetItem with a nil proxy: %v", err)
	}
	v, err := d.Item("k")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	ok, err := v.Equal(py.None())
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if !ok {
		t.Error("stored value should be None")
	}

	boxed, err := py.From(absent)
	if err != nil {
		t.Fatalf("From on a nil proxy: %v", err)
	}
	if ok, _ := boxed.Equal(py.None()); !ok {
		t.Error("From on a nil proxy should yield None")
	}
}
