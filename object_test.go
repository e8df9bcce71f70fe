package pygo_test

import (
	"testing"

	"github.com/mkysylov/pygo"
	"github.com/mkysylov/pygo/capi"
)

func TestApplyDisambiguation(t *testing.T) {
	rt, py := newPy(t)
	tab := rt.Table()

	// Non-callable receiver with one argument: subscript.
	list, err := py.From([]int64{10, 20, 30})
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	elem, err := list.Apply(1)
	if err != nil {
		t.Fatalf("Apply on list: %v", err)
	}
	if got := mustInt(t, elem); got != 20 {
		t.Errorf("list[1] = %d, want 20", got)
	}

	// Callable receiver with one argument: call, even though a lookup
	// with the same shape would also be expressible.
	double := py.Receive(rt.NewFunc("double", func(args []capi.Handle, kwargs capi.Handle) capi.Handle {
		v := tab.LongAsInt64(args[0])
		return tab.LongFromInt64(v * 2)
	}))
	result, err := double.Apply(21)
	if err != nil {
		t.Fatalf("Apply on callable: %v", err)
	}
	if got := mustInt(t, result); got != 42 {
		t.Errorf("double(21) = %d, want 42", got)
	}
}

func TestCallWithKeywords(t *testing.T) {
	rt, py := newPy(t)
	tab := rt.Table()

	fn := py.Receive(rt.NewFunc("kw", func(args []capi.Handle, kwargs capi.Handle) capi.Handle {
		if kwargs == 0 {
			rt.Raise("TypeError", "missing keyword arguments")
			return 0
		}
		key := tab.UnicodeFromString("flag")
		defer tab.DecRef(key)
		v := tab.GetItem(kwargs, key)
		if v == 0 {
			return 0
		}
		return v
	}))

	result, err := fn.CallWith(nil, map[string]any{"flag": int64(7)})
	if err != nil {
		t.Fatalf("CallWith: %v", err)
	}
	if got := mustInt(t, result); got != 7 {
		t.Errorf("kwargs flag = %d, want 7", got)
	}
}

func TestCallMethod(t *testing.T) {
	rt, py := newPy(t)
	tab := rt.Table()

	inc := rt.NewFunc("inc", func(args []capi.Handle, kwargs capi.Handle) capi.Handle {
		return tab.LongFromInt64(tab.LongAsInt64(args[0]) + 1)
	})
	mod := py.Borrow(rt.NewModule("counter", map[string]capi.Handle{"inc": inc}))
	tab.DecRef(inc)

	result, err := mod.CallMethod("inc", 41)
	if err != nil {
		t.Fatalf("CallMethod: %v", err)
	}
	if got := mustInt(t, result); got != 42 {
		t.Errorf("counter.inc(41) = %d, want 42", got)
	}
}

func TestAttrRoundTrip(t *testing.T) {
	rt, py := newPy(t)

	mod := py.Borrow(rt.NewModule("state", nil))
	if err := mod.SetAttr("level", 3); err != nil {
		t.Fatalf("SetAttr: %v", err)
	}
	got, err := mod.Attr("level")
	if err != nil {
		t.Fatalf("Attr: %v", err)
	}
	if v := mustInt(t, got); v != 3 {
		t.Errorf("state.level = %d, want 3", v)
	}

	if _, err := mod.Attr("missing"); err == nil {
		t.Error("expected an attribute error")
	}
}

func TestBinaryOperators(t *testing.T) {
	_, py := newPy(t)

	seven, err := py.From(7)
	if err != nil {
		t.Fatalf("From: %v", err)
	}

	tests := []struct {
		name string
		op   func() (*pygo.Obj, error)
		want int64
	}{
		{"floordiv", func() (*pygo.Obj, error) { return seven.FloorDiv(2) }, 3},
		{"mod", func() (*pygo.Obj, error) { return seven.Mod(2) }, 1},
		{"add", func() (*pygo.Obj, error) { return seven.Add(5) }, 12},
		{"sub", func() (*pygo.Obj, error) { return seven.Sub(9) }, -2},
		{"mul", func() (*pygo.Obj, error) { return seven.Mul(6) }, 42},
		{"lshift", func() (*pygo.Obj, error) { return seven.Lshift(1) }, 14},
		{"and", func() (*pygo.Obj, error) { return seven.BitAnd(3) }, 3},
		{"or", func() (*pygo.Obj, error) { return seven.BitOr(8) }, 15},
		{"xor", func() (*pygo.Obj, error) { return seven.BitXor(1) }, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.op()
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if got := mustInt(t, result); got != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestDivisionSemantics(t *testing.T) {
	_, py := newPy(t)

	seven, _ := py.From(7)
	quotient, err := seven.TrueDiv(2)
	if err != nil {
		t.Fatalf("TrueDiv: %v", err)
	}
	f, err := quotient.Float()
	if err != nil {
		t.Fatalf("Float: %v", err)
	}
	if f != 3.5 {
		t.Errorf("7/2 = %v, want 3.5", f)
	}

	eleven, _ := py.From(11)
	rem, err := eleven.Mod(3)
	if err != nil {
		t.Fatalf("Mod: %v", err)
	}
	if got := mustInt(t, rem); got != 2 {
		t.Errorf("11 %% 3 = %d, want 2", got)
	}

	neg, _ := py.From(-7)
	fd, err := neg.FloorDiv(2)
	if err != nil {
		t.Fatalf("FloorDiv: %v", err)
	}
	if got := mustInt(t, fd); got != -4 {
		t.Errorf("-7 // 2 = %d, want -4 (floored)", got)
	}
}

func TestPower(t *testing.T) {
	_, py := newPy(t)

	three, _ := py.From(3)
	p, err := three.Pow(4)
	if err != nil {
		t.Fatalf("Pow: %v", err)
	}
	if got := mustInt(t, p); got != 81 {
		t.Errorf("3**4 = %d, want 81", got)
	}

	pm, err := three.PowMod(4, 5)
	if err != nil {
		t.Fatalf("PowMod: %v", err)
	}
	if got := mustInt(t, pm); got != 1 {
		t.Errorf("pow(3, 4, 5) = %d, want 1", got)
	}
}

func TestUnaryOperators(t *testing.T) {
	_, py := newPy(t)

	seven, _ := py.From(7)
	n, err := seven.Neg()
	if err != nil {
		t.Fatalf("Neg: %v", err)
	}
	if got := mustInt(t, n); got != -7 {
		t.Errorf("-7 = %d", got)
	}
	inv, err := seven.Invert()
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	if got := mustInt(t, inv); got != -8 {
		t.Errorf("~7 = %d, want -8", got)
	}
}

func TestInPlaceReplacesHandle(t *testing.T) {
	rt, py := newPy(t)

	a, err := py.From(1)
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	before := a.Handle()
	if err := a.IAdd(2); err != nil {
		t.Fatalf("IAdd: %v", err)
	}
	if got := mustInt(t, a); got != 3 {
		t.Errorf("after a += 2, a = %d, want 3", got)
	}
	if a.Handle() == before {
		t.Error("immutable in-place result should be a fresh object")
	}
	if got := rt.RefCount(before); got != 0 {
		t.Errorf("previous object still has %d references", got)
	}
}

func TestInPlaceOnMutatingType(t *testing.T) {
	rt, py := newPy(t)

	list, err := py.From([]int64{1})
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	before := list.Handle()
	countBefore := rt.RefCount(before)
	if err := list.IAdd([]int64{2, 3}); err != nil {
		t.Fatalf("IAdd: %v", err)
	}
	if list.Handle() != before {
		t.Error("mutating in-place should keep the same object")
	}
	if got := rt.RefCount(before); got != countBefore {
		t.Errorf("count drifted from %d to %d across in-place", countBefore, got)
	}
	if got := mustStr(t, list); got != "[1, 2, 3]" {
		t.Errorf("list = %s, want [1, 2, 3]", got)
	}
}

func TestEquality(t *testing.T) {
	_, py := newPy(t)

	a, _ := py.From(5)
	b, _ := py.From(5)
	c, _ := py.From(6)

	if eq, err := a.Equal(b); err != nil || !eq {
		t.Errorf("5 == 5: got %v, %v", eq, err)
	}
	if eq, err := a.Equal(c); err != nil || eq {
		t.Errorf("5 == 6: got %v, %v", eq, err)
	}
	// Non-proxy comparands are unequal by definition, with no foreign
	// call involved.
	if eq, err := a.Equal(5); err != nil || eq {
		t.Errorf("proxy == raw Go value: got %v, %v", eq, err)
	}
	if eq, err := a.Equal(nil); err != nil || eq {
		t.Errorf("proxy == nil: got %v, %v", eq, err)
	}
}

func TestOrdering(t *testing.T) {
	_, py := newPy(t)

	a, _ := py.From(3)
	b, _ := py.From(5)

	if less, err := a.Less(b); err != nil || !less {
		t.Errorf("3 < 5: got %v, %v", less, err)
	}
	if ge, err := a.GreaterEq(b); err != nil || ge {
		t.Errorf("3 >= 5: got %v, %v", ge, err)
	}

	s, _ := py.From("x")
	if _, err := a.Less(s); err == nil {
		t.Error("ordering across incompatible types should fail")
	} else if perr, ok := err.(*pygo.Error); !ok || perr.Type != "TypeError" {
		t.Errorf("got %v, want a TypeError", err)
	}
}

func TestHashSentinel(t *testing.T) {
	_, py := newPy(t)

	// -1 is a legitimate hash value, not a failure.
	minusOne, _ := py.From(-1)
	h, err := minusOne.Hash()
	if err != nil {
		t.Fatalf("Hash(-1): %v", err)
	}
	if h != -1 {
		t.Errorf("hash(-1) = %d, want -1", h)
	}

	list, _ := py.From([]int64{1})
	if _, err := list.Hash(); err == nil {
		t.Error("hashing a list should fail")
	}
}

func TestStrAndBool(t *testing.T) {
	_, py := newPy(t)

	v, _ := py.From(3.5)
	if got := mustStr(t, v); got != "3.5" {
		t.Errorf("str(3.5) = %q", got)
	}

	empty, _ := py.From("")
	if b, err := empty.Bool(); err != nil || b {
		t.Errorf("bool(\"\") = %v, %v, want false", b, err)
	}
	full, _ := py.From("x")
	if b, err := full.Bool(); err != nil || !b {
		t.Errorf("bool(\"x\") = %v, %v, want true", b, err)
	}
}

func TestItemAccess(t *testing.T) {
	_, py := newPy(t)

	d, err := py.From(map[string]int64{"a": 1})
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	v, err := d.Item("a")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if got := mustInt(t, v); got != 1 {
		t.Errorf("d[a] = %d, want 1", got)
	}
	if err := d.SetItem("b", 2); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	v2, err := d.Item("b")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if got := mustInt(t, v2); got != 2 {
		t.Errorf("d[b] = %d, want 2", got)
	}
	if _, err := d.Item("missing"); err == nil {
		t.Error("expected a key error")
	}
}
