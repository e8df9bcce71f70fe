package fakepy

import "testing"

func TestTupleSlotSteals(t *testing.T) {
	rt := New()
	tab := rt.Table()

	item := rt.NewInt(5)
	tuple := tab.TupleNew(1)
	if rc := tab.TupleSetItem(tuple, 0, item); rc != 0 {
		t.Fatalf("TupleSetItem = %d", rc)
	}
	// The slot consumed the caller's reference: one count, held by the
	// tuple.
	if got := rt.RefCount(item); got != 1 {
		t.Errorf("item count = %d, want 1", got)
	}
	tab.DecRef(tuple)
	if got := rt.RefCount(item); got != 0 {
		t.Errorf("item count after container free = %d, want 0", got)
	}
}

func TestSlotStealsEvenOnFailure(t *testing.T) {
	rt := New()
	tab := rt.Table()

	item := rt.NewInt(5)
	tuple := tab.TupleNew(1)
	if rc := tab.TupleSetItem(tuple, 9, item); rc != -1 {
		t.Fatalf("out-of-range TupleSetItem = %d, want -1", rc)
	}
	if got := rt.RefCount(item); got != 0 {
		t.Errorf("failed slot assignment leaked %d references", got)
	}
	typ, val, tb := tab.ErrFetch()
	tab.DecRef(typ)
	tab.DecRef(val)
	tab.DecRef(tb)
	tab.DecRef(tuple)
}

func TestDictInsertDoesNotSteal(t *testing.T) {
	rt := New()
	tab := rt.Table()

	d := tab.DictNew()
	key := rt.NewStr("k")
	val := rt.NewInt(1)
	if rc := tab.DictSetItem(d, key, val); rc != 0 {
		t.Fatalf("DictSetItem = %d", rc)
	}
	// Caller keeps its references; the dict holds its own.
	if got := rt.RefCount(key); got != 2 {
		t.Errorf("key count = %d, want 2", got)
	}
	if got := rt.RefCount(val); got != 2 {
		t.Errorf("value count = %d, want 2", got)
	}
	tab.DecRef(key)
	tab.DecRef(val)
	tab.DecRef(d)
	if got := rt.RefCount(key); got != 0 {
		t.Errorf("key survived with %d references", got)
	}
}

func TestErrFetchTransfersAndClears(t *testing.T) {
	rt := New()
	tab := rt.Table()

	rt.Raise("ValueError", "boom")
	if tab.ErrOccurred() == 0 {
		t.Fatal("indicator should be set")
	}
	typ, val, tb := tab.ErrFetch()
	if tab.ErrOccurred() != 0 {
		t.Error("fetch should clear the indicator")
	}
	if typ == 0 || val == 0 {
		t.Fatal("fetch lost the error pair")
	}
	if tb != 0 {
		t.Error("plain raise should have no traceback")
	}

	// Normalization turns the bare string value into an instance.
	typ, val, tb = tab.ErrNormalize(typ, val, tb)
	if got := rt.render(val, false); got != "boom" {
		t.Errorf("normalized value renders %q, want boom", got)
	}
	tab.DecRef(typ)
	tab.DecRef(val)
	tab.DecRef(tb)
}

func TestPythonDivision(t *testing.T) {
	rt := New()
	tab := rt.Table()

	tests := []struct {
		a, b int64
		div  int64
		mod  int64
	}{
		{7, 2, 3, 1},
		{-7, 2, -4, 1},
		{7, -2, -4, -1},
		{11, 3, 3, 2},
	}
	for _, tt := range tests {
		a := tab.LongFromInt64(tt.a)
		b := tab.LongFromInt64(tt.b)
		q := tab.FloorDivide(a, b)
		m := tab.Remainder(a, b)
		if got := tab.LongAsInt64(q); got != tt.div {
			t.Errorf("%d // %d = %d, want %d", tt.a, tt.b, got, tt.div)
		}
		if got := tab.LongAsInt64(m); got != tt.mod {
			t.Errorf("%d %% %d = %d, want %d", tt.a, tt.b, got, tt.mod)
		}
		tab.DecRef(a)
		tab.DecRef(b)
		tab.DecRef(q)
		tab.DecRef(m)
	}
}
