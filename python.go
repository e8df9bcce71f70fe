package pygo

import (
	"fmt"

	"github.com/mkysylov/pygo/capi"
)

// Python is the bridge to one embedded runtime. It is created once per
// process from a call table that a bootstrap backend (runtime/libpython
// or runtime/wasm) has already loaded and initialized, and it is never
// re-created: the foreign runtime's lifecycle is process-wide.
//
// The foreign runtime serializes execution itself; the bridge adds no
// locking around foreign calls. Every operation is synchronous and
// blocks its calling goroutine for the duration of the foreign call.
type Python struct {
	tab   *capi.Table
	queue reclaimQueue

	none     *Obj
	builtins *Obj
}

// New wraps an initialized call table. The table must belong to a
// runtime that has already been through its one-time initialization.
func New(tab *capi.Table) (*Python, error) {
	py := &Python{tab: tab}

	nh := tab.BuildValue("")
	if nh == 0 {
		return nil, fmt.Errorf("pygo: runtime did not produce None: %w", py.failed())
	}
	py.none = py.Receive(nh)

	bh := tab.GetBuiltins()
	if bh == 0 {
		return nil, fmt.Errorf("pygo: runtime did not expose builtins: %w", py.failed())
	}
	py.builtins = py.Borrow(bh)

	return py, nil
}

// Receive wraps a handle whose reference was transferred to the caller
// (the foreign entry point returned an owned reference). Returns nil
// for the null handle, which means "no object", not failure.
func (py *Python) Receive(h capi.Handle) *Obj {
	r := py.newRef(h, false)
	if r == nil {
		return nil
	}
	return &Obj{py: py, ref: r}
}

// Borrow wraps a handle the caller does not own a reference to (the
// foreign entry point lent it). The foreign count is incremented before
// wrapping. Returns nil for the null handle.
func (py *Python) Borrow(h capi.Handle) *Obj {
	r := py.newRef(h, true)
	if r == nil {
		return nil
	}
	return &Obj{py: py, ref: r}
}

// None returns the runtime's None singleton.
func (py *Python) None() *Obj {
	return py.none
}

// Builtins returns the runtime's builtin namespace as a proxy.
func (py *Python) Builtins() *Obj {
	return py.builtins
}

// Import imports a module by name and returns a proxy for it.
func (py *Python) Import(name string) (*Obj, error) {
	return py.received(py.tab.ImportModule(name))
}

// Run executes source in the foreign runtime's __main__ module. The
// underlying entry point reports failure without exposing the
// exception, so the returned error carries no translated detail.
func (py *Python) Run(source string) error {
	if py.tab.RunSimpleString(source) < 0 {
		return fmt.Errorf("pygo: execution failed in __main__")
	}
	return nil
}

// Eval evaluates a single expression through the builtin eval and
// returns the result as a proxy.
func (py *Python) Eval(expr string) (*Obj, error) {
	eval, err := py.builtins.Item("eval")
	if err != nil {
		return nil, err
	}
	defer eval.Close()
	return eval.Call(expr)
}

// From converts a Go value to a proxy using the coercion rules
// documented in the package comment. A *Obj passes through unchanged.
func (py *Python) From(v any) (*Obj, error) {
	if o, ok := v.(*Obj); ok && o != nil {
		return o, nil
	}
	r, err := py.box(v)
	if err != nil {
		return nil, err
	}
	return &Obj{py: py, ref: r}, nil
}

// Reclaim applies any pending deferred releases immediately. Releases
// are otherwise piggy-backed onto the next acquisition; hosts that stop
// creating references can call this to bound foreign memory themselves.
func (py *Python) Reclaim() {
	py.reclaim()
}

// received wraps a handle-returning foreign result: null means the call
// failed and the error indicator explains how.
func (py *Python) received(h capi.Handle) (*Obj, error) {
	if h == 0 {
		return nil, py.failed()
	}
	return py.Receive(h), nil
}

// status folds a status-returning foreign result (0 ok, -1 failed).
func (py *Python) status(rc int32) error {
	if rc >= 0 {
		return nil
	}
	return py.failed()
}
