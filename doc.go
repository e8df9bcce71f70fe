// Package pygo bridges Go to an embedded CPython runtime.
//
// # Overview
//
// pygo lets a Go program call into and hold live references to objects
// owned by the reference-counted Python runtime, without leaking Python
// memory or corrupting its reference counts. It provides:
//
//   - A polymorphic proxy (Obj) for attribute access, item access,
//     calls, operators, comparison, iteration and type coercion
//   - A reference manager that reconciles Go garbage collection with
//     Python's manual reference counting
//   - Translated errors carrying the Python exception type, message
//     and a merged Python-then-Go stack trace
//
// # Quick Start
//
//	import (
//	    "github.com/mkysylov/pygo"
//	    "github.com/mkysylov/pygo/runtime/libpython"
//	)
//
//	func main() {
//	    bridge, _ := libpython.Open(libpython.Config{})
//	    defer bridge.Close()
//
//	    py, _ := pygo.New(bridge.Table())
//
//	    math, _ := py.Import("math")
//	    sqrt, _ := math.Attr("sqrt")
//	    result, _ := sqrt.Call(2)
//	    text, _ := result.Str() // "1.4142135623730951"
//	    fmt.Println(text)
//	}
//
// # Reference Ownership
//
// Every proxy owns exactly one Python reference. When a proxy becomes
// unreachable on the Go side, its handle is queued and the Python
// decrement is applied on the next acquisition, never on the collector's
// own goroutine. Close releases a proxy synchronously; either way the
// decrement happens exactly once.
//
// # Supported Conversions
//
// Go to Python:
//   - bool → bool
//   - int, int8..int64, uint8..uint32, uint, uint64 → int
//   - float32, float64 → float
//   - string → str (UTF-8)
//   - []T, [N]T → list
//   - map[K]V → dict
//   - map[T]struct{} → set
//   - Range → slice
//   - nil → None
//
// Python to Go:
//   - Obj.Int, Obj.Float, Obj.Bool, Obj.Str
//   - Obj.Seq, Obj.Set → []*Obj
//   - Obj.Map → []MapItem
//
// # Concurrency
//
// The Python runtime serializes execution process-wide; pygo adds no
// locking of its own around Python calls. Every operation blocks its
// calling goroutine for the duration of the underlying call; there is
// no cancellation or timeout at this layer.
package pygo
