package pygo_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/mkysylov/pygo"
	"github.com/mkysylov/pygo/capi"
	"github.com/mkysylov/pygo/internal/fakepy"
)

// waitFreed polls until the collector's deferred release reaches the
// runtime. Cleanups fire asynchronously after GC, and the decrement
// itself only lands on the next acquisition or explicit Reclaim.
func waitFreed(t *testing.T, rt *fakepy.Runtime, py *pygo.Python, h capi.Handle) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rt.RefCount(h) == 0 {
			return
		}
		runtime.GC()
		py.Reclaim()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("handle %d still has %d references", h, rt.RefCount(h))
}

func TestReceiveAdoptsReference(t *testing.T) {
	rt, py := newPy(t)

	h := rt.NewInt(7)
	if got := rt.RefCount(h); got != 1 {
		t.Fatalf("fresh object has %d references, want 1", got)
	}
	o := py.Receive(h)
	if got := rt.RefCount(h); got != 1 {
		t.Errorf("receive changed the count to %d, want 1", got)
	}
	o.Close()
	if got := rt.RefCount(h); got != 0 {
		t.Errorf("after close count = %d, want 0", got)
	}
}

func TestBorrowAddsReference(t *testing.T) {
	rt, py := newPy(t)

	h := rt.NewInt(7)
	defer rt.Table().DecRef(h)

	o := py.Borrow(h)
	if got := rt.RefCount(h); got != 2 {
		t.Errorf("after borrow count = %d, want 2", got)
	}
	o.Close()
	if got := rt.RefCount(h); got != 1 {
		t.Errorf("after close count = %d, want 1", got)
	}
}

func TestNullHandleWrapsToNil(t *testing.T) {
	_, py := newPy(t)
	if py.Receive(0) != nil {
		t.Error("Receive(null) should be nil")
	}
	if py.Borrow(0) != nil {
		t.Error("Borrow(null) should be nil")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	rt, py := newPy(t)

	h := rt.NewInt(7)
	rt.Table().IncRef(h)
	defer rt.Table().DecRef(h)

	o := py.Receive(h)
	o.Close()
	o.Close()
	o.Close()
	if got := rt.RefCount(h); got != 1 {
		t.Errorf("count = %d after repeated close, want 1", got)
	}
}

func TestCollectorReleasesDroppedProxies(t *testing.T) {
	rt, py := newPy(t)

	h := rt.NewInt(1234)
	py.Receive(h) // dropped immediately
	waitFreed(t, rt, py, h)
}

func TestCloseThenCollectReleasesOnce(t *testing.T) {
	rt, py := newPy(t)

	h := rt.NewInt(7)
	rt.Table().IncRef(h)
	defer rt.Table().DecRef(h)

	func() {
		o := py.Receive(h)
		o.Close()
	}()
	for i := 0; i < 3; i++ {
		runtime.GC()
		py.Reclaim()
		time.Sleep(10 * time.Millisecond)
	}
	if got := rt.RefCount(h); got != 1 {
		t.Errorf("count = %d, want 1: close and collection double-released", got)
	}
}

func TestAcquisitionDrainsPending(t *testing.T) {
	rt, py := newPy(t)

	h := rt.NewInt(55)
	py.Receive(h)
	runtime.GC()
	time.Sleep(50 * time.Millisecond) // let the cleanup enqueue

	// A fresh acquisition must apply the pending release; no explicit
	// Reclaim here.
	deadline := time.Now().Add(5 * time.Second)
	for rt.RefCount(h) != 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
		o, err := py.From(1)
		if err != nil {
			t.Fatalf("From: %v", err)
		}
		o.Close()
	}
	if got := rt.RefCount(h); got != 0 {
		t.Errorf("pending release not applied on acquisition, count = %d", got)
	}
}

func TestWorkloadIsReferenceBalanced(t *testing.T) {
	rt, py := newPy(t)
	baseline := rt.Live()

	h := rt.NewInt(10)
	func() {
		o := py.Receive(h)
		for i := 0; i < 50; i++ {
			sum, err := o.Add(i)
			if err != nil {
				t.Fatalf("Add: %v", err)
			}
			sum.Close()
		}
		list, err := py.From([]string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("From: %v", err)
		}
		elems, err := list.Seq()
		if err != nil {
			t.Fatalf("Seq: %v", err)
		}
		for _, e := range elems {
			e.Close()
		}
		list.Close()
		o.Close()
	}()

	deadline := time.Now().Add(5 * time.Second)
	for rt.Live() != baseline && time.Now().Before(deadline) {
		runtime.GC()
		py.Reclaim()
		time.Sleep(10 * time.Millisecond)
	}
	if got := rt.Live(); got != baseline {
		t.Errorf("%d objects live after workload, want the baseline %d", got, baseline)
	}
}
