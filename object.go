package pygo

import (
	"runtime"

	"github.com/mkysylov/pygo/capi"
)

// Obj is a proxy for one foreign object. It holds exactly one managed
// reference at a time; in-place operators replace that reference with
// whatever the foreign runtime returns. Equality, ordering, hashing and
// truthiness all delegate to the foreign runtime rather than comparing
// handles structurally.
//
// A nil *Obj means "no object" (the foreign null handle where null is a
// valid result). Operations on a nil proxy panic, the same way a nil
// map write does.
type Obj struct {
	py  *Python
	ref *ref
}

func (o *Obj) handle() capi.Handle {
	return o.ref.h
}

// Python returns the bridge this proxy belongs to.
func (o *Obj) Python() *Python {
	return o.py
}

// Handle exposes the raw foreign handle for interop with backend code.
// The proxy keeps owning its reference; do not decrement it.
func (o *Obj) Handle() capi.Handle {
	return o.handle()
}

// Close releases the proxy's foreign reference now instead of waiting
// for the garbage collector. Using the proxy afterwards is invalid.
// Close is idempotent, also against a later collector-driven release.
func (o *Obj) Close() error {
	o.ref.release()
	return nil
}

// Attr returns the attribute with the given name.
func (o *Obj) Attr(name string) (*Obj, error) {
	h := o.py.tab.GetAttr(o.handle(), name)
	runtime.KeepAlive(o)
	return o.py.received(h)
}

// SetAttr sets the attribute with the given name.
func (o *Obj) SetAttr(name string, value any) error {
	v, err := o.py.box(value)
	if err != nil {
		return err
	}
	defer v.release()
	rc := o.py.tab.SetAttr(o.handle(), name, v.h)
	runtime.KeepAlive(o)
	return o.py.status(rc)
}

// Item returns the element keyed by key, through the foreign mapping
// or sequence protocol.
func (o *Obj) Item(key any) (*Obj, error) {
	k, err := o.py.box(key)
	if err != nil {
		return nil, err
	}
	defer k.release()
	h := o.py.tab.GetItem(o.handle(), k.h)
	runtime.KeepAlive(o)
	return o.py.received(h)
}

// SetItem maps key to value.
func (o *Obj) SetItem(key, value any) error {
	k, err := o.py.box(key)
	if err != nil {
		return err
	}
	defer k.release()
	v, err := o.py.box(value)
	if err != nil {
		return err
	}
	defer v.release()
	rc := o.py.tab.SetItem(o.handle(), k.h, v.h)
	runtime.KeepAlive(o)
	return o.py.status(rc)
}

// Call invokes the object with positional arguments.
func (o *Obj) Call(args ...any) (*Obj, error) {
	return o.CallWith(args, nil)
}

// CallWith invokes the object with positional and named arguments. The
// named arguments are marshaled into a foreign mapping, the positional
// ones into a fixed-length tuple, before the call.
func (o *Obj) CallWith(args []any, kwargs map[string]any) (*Obj, error) {
	t, err := o.py.packTuple(args)
	if err != nil {
		return nil, err
	}
	defer t.release()

	var kwh capi.Handle
	if len(kwargs) > 0 {
		kw, err := o.py.packDict(kwargs)
		if err != nil {
			return nil, err
		}
		defer kw.release()
		kwh = kw.h
	}

	h := o.py.tab.Call(o.handle(), t.h, kwh)
	runtime.KeepAlive(o)
	return o.py.received(h)
}

// CallMethod looks up the named attribute and calls it in one
// operation, so the intermediate bound-method reference lives only for
// the duration of the call.
func (o *Obj) CallMethod(name string, args ...any) (*Obj, error) {
	nh := o.py.tab.UnicodeFromString(name)
	if nh == 0 {
		return nil, o.py.failed()
	}
	nameRef := o.py.newRef(nh, false)
	defer nameRef.release()

	boxed, err := o.py.boxAll(args)
	if err != nil {
		return nil, err
	}
	defer releaseAll(boxed)

	h := o.py.tab.CallMethodObjArgs(o.handle(), nameRef.h, handlesOf(boxed))
	runtime.KeepAlive(o)
	return o.py.received(h)
}

// Apply resolves the host's single bracket-style invocation: exactly
// one argument against a non-callable receiver is an item lookup; every
// other shape is a call. The distinction is decided before dispatch,
// never by retrying a failed attempt.
func (o *Obj) Apply(args ...any) (*Obj, error) {
	if len(args) == 1 && !o.Callable() {
		return o.Item(args[0])
	}
	return o.Call(args...)
}

// Callable reports whether the foreign runtime considers the object
// callable.
func (o *Obj) Callable() bool {
	rc := o.py.tab.CallableCheck(o.handle())
	runtime.KeepAlive(o)
	return rc == 1
}

// Equal delegates to the foreign equality protocol. A comparand that is
// not a proxy compares unequal without involving the foreign runtime.
func (o *Obj) Equal(v any) (bool, error) {
	other, ok := v.(*Obj)
	if !ok || other == nil {
		return false, nil
	}
	return o.compare(other, capi.EQ)
}

// Less delegates to the foreign ordering protocol.
func (o *Obj) Less(other *Obj) (bool, error) { return o.compare(other, capi.LT) }

// LessEq delegates to the foreign ordering protocol.
func (o *Obj) LessEq(other *Obj) (bool, error) { return o.compare(other, capi.LE) }

// Greater delegates to the foreign ordering protocol.
func (o *Obj) Greater(other *Obj) (bool, error) { return o.compare(other, capi.GT) }

// GreaterEq delegates to the foreign ordering protocol.
func (o *Obj) GreaterEq(other *Obj) (bool, error) { return o.compare(other, capi.GE) }

func (o *Obj) compare(other *Obj, op int) (bool, error) {
	rc := o.py.tab.RichCompareBool(o.handle(), other.handle(), op)
	runtime.KeepAlive(o)
	runtime.KeepAlive(other)
	if rc < 0 {
		return false, o.py.failed()
	}
	return rc == 1, nil
}

// Hash delegates to the foreign hash protocol. The foreign protocol
// overloads -1 as its failure sentinel, so -1 is only a failure when
// the error indicator is actually set; otherwise it is the object's
// legitimate hash value.
func (o *Obj) Hash() (int64, error) {
	h := o.py.tab.Hash(o.handle())
	runtime.KeepAlive(o)
	if h == -1 {
		if err := o.py.errCheck(); err != nil {
			return 0, err
		}
	}
	return h, nil
}

// Str returns the foreign string conversion of the object.
func (o *Obj) Str() (string, error) {
	sh := o.py.tab.Str(o.handle())
	runtime.KeepAlive(o)
	if sh == 0 {
		return "", o.py.failed()
	}
	sr := o.py.newRef(sh, false)
	defer sr.release()
	s, ok := o.py.tab.UnicodeAsUTF8(sr.h)
	if !ok {
		return "", o.py.failed()
	}
	return s, nil
}

// Bool delegates to the foreign truth-value protocol.
func (o *Obj) Bool() (bool, error) {
	rc := o.py.tab.IsTrue(o.handle())
	runtime.KeepAlive(o)
	if rc < 0 {
		return false, o.py.failed()
	}
	return rc == 1, nil
}

// Int unboxes the object as a 64-bit integer. -1 is only a failure when
// the error indicator is set.
func (o *Obj) Int() (int64, error) {
	v := o.py.tab.LongAsInt64(o.handle())
	runtime.KeepAlive(o)
	if v == -1 {
		if err := o.py.errCheck(); err != nil {
			return 0, err
		}
	}
	return v, nil
}

// Float unboxes the object as a float64. -1.0 is only a failure when
// the error indicator is set.
func (o *Obj) Float() (float64, error) {
	v := o.py.tab.FloatAsFloat64(o.handle())
	runtime.KeepAlive(o)
	if v == -1.0 {
		if err := o.py.errCheck(); err != nil {
			return 0, err
		}
	}
	return v, nil
}
