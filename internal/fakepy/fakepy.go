// Package fakepy is an in-memory stand-in for the embedded Python
// runtime. It implements every entry point of the call table with the
// real ownership conventions (received results, borrowed error types,
// stolen tuple and list slots) over a reference-counted object graph,
// so bridge tests can assert reference-count balance without loading a
// real runtime.
package fakepy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/mkysylov/pygo/capi"
)

type kind int

const (
	kNone kind = iota
	kBool
	kInt
	kFloat
	kStr
	kTuple
	kList
	kDict
	kSet
	kSlice
	kFunc
	kType
	kExc
	kTraceback
	kFrame
	kCode
	kIter
	kModule
)

// Func is a host-implemented callable. It returns an owned handle, or
// the null handle after setting the error indicator through Raise.
type Func func(args []capi.Handle, kwargs capi.Handle) capi.Handle

// TraceFrame describes one fabricated traceback entry, oldest first.
type TraceFrame struct {
	Function string
	File     string
	Line     int
}

type object struct {
	refs  int
	kind  kind
	i     int64
	f     float64
	s     string
	elems []capi.Handle
	pairs [][2]capi.Handle
	attrs map[string]capi.Handle
	fn    Func
	src   capi.Handle
	pos   int
}

// Runtime is one fake interpreter. All entry points serialize on one
// mutex, mirroring the real runtime's global execution lock.
type Runtime struct {
	mu   sync.Mutex
	objs map[capi.Handle]*object
	next capi.Handle

	none     capi.Handle
	vTrue    capi.Handle
	vFalse   capi.Handle
	builtins capi.Handle
	modules  map[string]capi.Handle
	types    map[string]capi.Handle

	errType, errValue, errTB capi.Handle

	progName    string
	initialized bool
	threaded    bool
	ranSources  []string
}

// New creates an empty fake runtime with its singletons allocated.
func New() *Runtime {
	r := &Runtime{
		objs:    make(map[capi.Handle]*object),
		next:    1,
		modules: make(map[string]capi.Handle),
		types:   make(map[string]capi.Handle),
	}
	r.none = r.alloc(&object{kind: kNone})
	r.vTrue = r.alloc(&object{kind: kBool, i: 1})
	r.vFalse = r.alloc(&object{kind: kBool, i: 0})
	r.builtins = r.alloc(&object{kind: kDict})
	return r
}

// alloc registers an object with an initial reference count of one.
func (r *Runtime) alloc(o *object) capi.Handle {
	o.refs = 1
	h := r.next
	r.next++
	r.objs[h] = o
	return h
}

func (r *Runtime) incref(h capi.Handle) {
	if h == 0 {
		return
	}
	r.objs[h].refs++
}

func (r *Runtime) decref(h capi.Handle) {
	if h == 0 {
		return
	}
	o := r.objs[h]
	o.refs--
	if o.refs > 0 {
		return
	}
	if o.refs < 0 {
		panic(fmt.Sprintf("fakepy: negative reference count for handle %d", h))
	}
	delete(r.objs, h)
	for _, e := range o.elems {
		r.decref(e)
	}
	for _, p := range o.pairs {
		r.decref(p[0])
		r.decref(p[1])
	}
	for _, a := range o.attrs {
		r.decref(a)
	}
	r.decref(o.src)
}

// setAttrOwned stores an attribute, taking over the caller's reference.
func (r *Runtime) setAttrOwned(o *object, name string, h capi.Handle) {
	if o.attrs == nil {
		o.attrs = make(map[string]capi.Handle)
	}
	if old, ok := o.attrs[name]; ok {
		r.decref(old)
	}
	o.attrs[name] = h
}

// typeObj returns the cached exception/type object for a name.
func (r *Runtime) typeObj(name string) capi.Handle {
	if h, ok := r.types[name]; ok {
		return h
	}
	t := &object{kind: kType, s: name}
	h := r.alloc(t)
	r.setAttrOwned(t, "__name__", r.alloc(&object{kind: kStr, s: name}))
	r.types[name] = h
	return h
}

// raise sets the error indicator with an unnormalized (type, bare
// string value) pair, overwriting whatever was set before.
func (r *Runtime) raise(typ, msg string) {
	r.clearErr()
	t := r.typeObj(typ)
	r.incref(t)
	r.errType = t
	r.errValue = r.alloc(&object{kind: kStr, s: msg})
	r.errTB = 0
}

func (r *Runtime) clearErr() {
	r.decref(r.errType)
	r.decref(r.errValue)
	r.decref(r.errTB)
	r.errType, r.errValue, r.errTB = 0, 0, 0
}

func (r *Runtime) typeName(o *object) string {
	switch o.kind {
	case kNone:
		return "NoneType"
	case kBool:
		return "bool"
	case kInt:
		return "int"
	case kFloat:
		return "float"
	case kStr:
		return "str"
	case kTuple:
		return "tuple"
	case kList:
		return "list"
	case kDict:
		return "dict"
	case kSet:
		return "set"
	case kSlice:
		return "slice"
	case kFunc:
		return "function"
	case kType:
		return "type"
	case kExc:
		return o.s
	case kModule:
		return "module"
	case kIter:
		return "iterator"
	}
	return "object"
}

func (r *Runtime) isNumeric(o *object) bool {
	return o.kind == kInt || o.kind == kBool || o.kind == kFloat
}

func (r *Runtime) numOf(o *object) float64 {
	if o.kind == kFloat {
		return o.f
	}
	return float64(o.i)
}

// eqH compares two handles by value for numbers and strings, by
// identity otherwise.
func (r *Runtime) eqH(a, b capi.Handle) bool {
	if a == b {
		return true
	}
	x, y := r.objs[a], r.objs[b]
	if r.isNumeric(x) && r.isNumeric(y) {
		return r.numOf(x) == r.numOf(y)
	}
	if x.kind == kStr && y.kind == kStr {
		return x.s == y.s
	}
	return false
}

func pyFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// render produces str() or repr() text for an object.
func (r *Runtime) render(h capi.Handle, repr bool) string {
	o := r.objs[h]
	switch o.kind {
	case kNone:
		return "None"
	case kBool:
		if o.i != 0 {
			return "True"
		}
		return "False"
	case kInt:
		return strconv.FormatInt(o.i, 10)
	case kFloat:
		return pyFloat(o.f)
	case kStr:
		if repr {
			return "'" + strings.ReplaceAll(o.s, "'", "\\'") + "'"
		}
		return o.s
	case kList:
		return "[" + r.renderElems(o.elems) + "]"
	case kTuple:
		if len(o.elems) == 1 {
			return "(" + r.render(o.elems[0], true) + ",)"
		}
		return "(" + r.renderElems(o.elems) + ")"
	case kSet:
		if len(o.elems) == 0 {
			return "set()"
		}
		return "{" + r.renderElems(o.elems) + "}"
	case kDict:
		parts := make([]string, len(o.pairs))
		for i, p := range o.pairs {
			parts[i] = r.render(p[0], true) + ": " + r.render(p[1], true)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case kSlice:
		return "slice(" + r.renderElems(o.elems) + ")"
	case kFunc:
		return "<function " + o.s + ">"
	case kType:
		return "<class '" + o.s + "'>"
	case kExc:
		return o.s
	case kModule:
		return "<module '" + o.s + "'>"
	}
	return "<object>"
}

func (r *Runtime) renderElems(elems []capi.Handle) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = r.render(e, true)
	}
	return strings.Join(parts, ", ")
}

// --- test helpers ---------------------------------------------------

// RefCount reports the current reference count of a handle, or 0 if
// the object has been freed.
func (r *Runtime) RefCount(h capi.Handle) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.objs[h]
	if !ok {
		return 0
	}
	return o.refs
}

// Live reports the number of live objects, singletons included.
func (r *Runtime) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objs)
}

// None returns the None singleton handle (borrowed).
func (r *Runtime) None() capi.Handle { return r.none }

// NewInt allocates an integer and returns an owned handle.
func (r *Runtime) NewInt(v int64) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc(&object{kind: kInt, i: v})
}

// NewStr allocates a string and returns an owned handle.
func (r *Runtime) NewStr(s string) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc(&object{kind: kStr, s: s})
}

// NewList allocates a list holding the given elements (each gets an
// additional reference) and returns an owned handle.
func (r *Runtime) NewList(elems ...capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range elems {
		r.incref(e)
	}
	return r.alloc(&object{kind: kList, elems: append([]capi.Handle(nil), elems...)})
}

// NewFunc allocates a callable backed by a host function and returns an
// owned handle.
func (r *Runtime) NewFunc(name string, fn Func) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc(&object{kind: kFunc, s: name, fn: fn})
}

// NewModule allocates a module object with the given attributes; the
// attribute values gain a reference each. The module is registered for
// import under its name. Returns a borrowed handle.
func (r *Runtime) NewModule(name string, attrs map[string]capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &object{kind: kModule, s: name}
	h := r.alloc(m)
	for k, v := range attrs {
		r.incref(v)
		r.setAttrOwned(m, k, v)
	}
	r.modules[name] = h
	return h
}

// Register adds an entry to the builtins mapping (the value gains a
// reference).
func (r *Runtime) Register(name string, h capi.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.objs[r.builtins]
	key := r.alloc(&object{kind: kStr, s: name})
	r.incref(h)
	b.pairs = append(b.pairs, [2]capi.Handle{key, h})
}

// Raise sets the error indicator. Meant to be called from Func
// implementations before returning the null handle.
func (r *Runtime) Raise(typ, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raise(typ, msg)
}

// RaiseWithTrace sets the error indicator with a fabricated traceback
// chain; frames are given oldest first, matching how the real runtime
// links tracebacks.
func (r *Runtime) RaiseWithTrace(typ, msg string, frames []TraceFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raise(typ, msg)
	next := capi.Handle(0)
	for i := len(frames) - 1; i >= 0; i-- {
		fr := frames[i]
		code := &object{kind: kCode}
		codeH := r.alloc(code)
		r.setAttrOwned(code, "co_name", r.alloc(&object{kind: kStr, s: fr.Function}))
		r.setAttrOwned(code, "co_filename", r.alloc(&object{kind: kStr, s: fr.File}))

		frame := &object{kind: kFrame}
		frameH := r.alloc(frame)
		r.setAttrOwned(frame, "f_code", codeH)

		tb := &object{kind: kTraceback}
		tbH := r.alloc(tb)
		r.setAttrOwned(tb, "tb_lineno", r.alloc(&object{kind: kInt, i: int64(fr.Line)}))
		r.setAttrOwned(tb, "tb_frame", frameH)
		if next == 0 {
			r.incref(r.none)
			r.setAttrOwned(tb, "tb_next", r.none)
		} else {
			r.setAttrOwned(tb, "tb_next", next)
		}
		next = tbH
	}
	r.errTB = next
}

// Initialized reports whether the lifecycle entry points ran.
func (r *Runtime) Initialized() (program string, initialized, threaded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progName, r.initialized, r.threaded
}

// RanSources returns the sources passed to the very-high-level
// execution entry point, in order.
func (r *Runtime) RanSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ranSources...)
}
