package pygo

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/mkysylov/pygo/capi"
)

// ref owns exactly one foreign reference to one handle. For as long as
// the ref is live and unreleased, the foreign reference count of its
// handle is held incremented by one on the ref's behalf. The decrement
// happens exactly once: either synchronously through release, or
// deferred through the reclamation queue when the ref is collected.
type ref struct {
	py       *Python
	h        capi.Handle
	cleanup  runtime.Cleanup
	released atomic.Bool
}

// newRef wraps a handle in a managed reference. With incref set, the
// foreign count is incremented first (borrow mode: the caller does not
// own a reference yet); without it the caller's existing reference is
// adopted (receive mode). A null handle yields nil. Pending deferred
// releases are always applied first, so unreclaimed foreign memory is
// bounded by the number of references created between acquisitions.
func (py *Python) newRef(h capi.Handle, incref bool) *ref {
	py.reclaim()
	if h == 0 {
		return nil
	}
	if incref {
		py.tab.IncRef(h)
	}
	r := &ref{py: py, h: h}
	// The cleanup only enqueues the raw handle; the decrement itself
	// runs on a later acquiring goroutine, never on the finalizer
	// goroutine.
	r.cleanup = runtime.AddCleanup(r, py.queue.put, h)
	return r
}

// release decrements the foreign count now instead of waiting for the
// garbage collector. Safe to call more than once; the deferred cleanup
// is cancelled so the decrement stays single-fire.
func (r *ref) release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	r.cleanup.Stop()
	r.py.tab.DecRef(r.h)
}

// steal hands the foreign reference over to a callee that consumes it
// (tuple and list slot assignment steal their item reference). The ref
// is dead afterwards and will not decrement.
func (r *ref) steal() capi.Handle {
	if r == nil {
		return 0
	}
	if r.released.CompareAndSwap(false, true) {
		r.cleanup.Stop()
	}
	return r.h
}

// reclaimQueue collects handles whose owning ref was collected by the
// garbage collector but whose foreign decrement is still owed. Cleanups
// enqueue from whatever goroutine the collector uses; draining happens
// on goroutines making new acquisitions. A mutex plus swap keeps the
// enqueue path cheap and the drain bounded: it takes whatever is
// pending and stops, it does not wait for quiescence.
type reclaimQueue struct {
	mu      sync.Mutex
	pending []capi.Handle
}

func (q *reclaimQueue) put(h capi.Handle) {
	q.mu.Lock()
	q.pending = append(q.pending, h)
	q.mu.Unlock()
}

func (q *reclaimQueue) take() []capi.Handle {
	q.mu.Lock()
	p := q.pending
	q.pending = nil
	q.mu.Unlock()
	return p
}

// reclaim applies every pending deferred release. Each handle was
// enqueued exactly once per release event, so one decrement each.
func (py *Python) reclaim() {
	for _, h := range py.queue.take() {
		py.tab.DecRef(h)
	}
}
