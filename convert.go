package pygo

import (
	"fmt"
	"math"
	"reflect"
	"runtime"

	"github.com/mkysylov/pygo/capi"
)

// Range describes an integer range with a step, exported to the foreign
// runtime as a slice object. An inclusive range has its stop bound
// adjusted by one step-direction unit, because the foreign slice is
// half-open on the stop bound.
type Range struct {
	Start, Stop, Step int64
	Inclusive         bool
}

// MapItem is one key-value pair imported from a foreign mapping.
type MapItem struct {
	Key, Value *Obj
}

// box converts a Go value into an owned managed reference. This is the
// export half of the coercion table; it is invoked explicitly at every
// argument-marshaling boundary.
func (py *Python) box(v any) (*ref, error) {
	switch x := v.(type) {
	case nil:
		return py.newRef(py.none.handle(), true), nil
	case *Obj:
		// A nil proxy is the bridge's own "no object" value; it crosses
		// back as None, like an untyped nil.
		if x == nil {
			return py.newRef(py.none.handle(), true), nil
		}
		r := py.newRef(x.handle(), true)
		runtime.KeepAlive(x)
		return r, nil
	case bool:
		n := 0
		if x {
			n = 1
		}
		return py.built(py.tab.BoolFromInt(n))
	case int:
		return py.built(py.tab.LongFromInt64(int64(x)))
	case int8:
		return py.built(py.tab.LongFromInt64(int64(x)))
	case int16:
		return py.built(py.tab.LongFromInt64(int64(x)))
	case int32:
		return py.built(py.tab.LongFromInt64(int64(x)))
	case int64:
		return py.built(py.tab.LongFromInt64(x))
	case uint8:
		return py.built(py.tab.LongFromInt64(int64(x)))
	case uint16:
		return py.built(py.tab.LongFromInt64(int64(x)))
	case uint32:
		return py.built(py.tab.LongFromInt64(int64(x)))
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, fmt.Errorf("pygo: %d overflows the foreign integer width", x)
		}
		return py.built(py.tab.LongFromInt64(int64(x)))
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("pygo: %d overflows the foreign integer width", x)
		}
		return py.built(py.tab.LongFromInt64(int64(x)))
	case float32:
		return py.built(py.tab.FloatFromFloat64(float64(x)))
	case float64:
		return py.built(py.tab.FloatFromFloat64(x))
	case string:
		return py.built(py.tab.UnicodeFromString(x))
	case Range:
		return py.boxRange(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return py.boxList(rv)
	case reflect.Map:
		// map[T]struct{} is the conventional Go set; everything else
		// is a mapping.
		if rv.Type().Elem() == reflect.TypeOf(struct{}{}) {
			return py.boxSet(rv)
		}
		return py.boxDict(rv)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return py.newRef(py.none.handle(), true), nil
		}
	}
	return nil, fmt.Errorf("pygo: cannot convert %T to a foreign value", v)
}

// built wraps a constructor result, which is always a received
// reference or null on failure.
func (py *Python) built(h capi.Handle) (*ref, error) {
	if h == 0 {
		return nil, py.failed()
	}
	return py.newRef(h, false), nil
}

// boxList exports a Go slice or array as a foreign list, pre-sized and
// filled per index. List slot assignment steals the element reference.
func (py *Python) boxList(rv reflect.Value) (*ref, error) {
	n := rv.Len()
	list, err := py.built(py.tab.ListNew(int64(n)))
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		elem, err := py.box(rv.Index(i).Interface())
		if err != nil {
			list.release()
			return nil, err
		}
		if rc := py.tab.ListSetItem(list.h, int64(i), elem.steal()); rc < 0 {
			list.release()
			return nil, py.failed()
		}
	}
	return list, nil
}

// packTuple marshals positional arguments into a fixed-length foreign
// tuple. Tuple slot assignment steals the element reference.
func (py *Python) packTuple(args []any) (*ref, error) {
	tuple, err := py.built(py.tab.TupleNew(int64(len(args))))
	if err != nil {
		return nil, err
	}
	for i, a := range args {
		elem, err := py.box(a)
		if err != nil {
			tuple.release()
			return nil, err
		}
		if rc := py.tab.TupleSetItem(tuple.h, int64(i), elem.steal()); rc < 0 {
			tuple.release()
			return nil, py.failed()
		}
	}
	return tuple, nil
}

// packDict marshals named arguments into a foreign mapping. Dict
// insertion does not steal, so the temporaries are released here.
func (py *Python) packDict(kwargs map[string]any) (*ref, error) {
	dict, err := py.built(py.tab.DictNew())
	if err != nil {
		return nil, err
	}
	for name, v := range kwargs {
		if err := py.dictSetNamed(dict, name, v); err != nil {
			dict.release()
			return nil, err
		}
	}
	return dict, nil
}

func (py *Python) dictSetNamed(dict *ref, name string, v any) error {
	key, err := py.built(py.tab.UnicodeFromString(name))
	if err != nil {
		return err
	}
	defer key.release()
	val, err := py.box(v)
	if err != nil {
		return err
	}
	defer val.release()
	return py.status(py.tab.DictSetItem(dict.h, key.h, val.h))
}

// boxDict exports a Go map as a foreign mapping. Iteration order is not
// preserved; the foreign mapping keeps its own.
func (py *Python) boxDict(rv reflect.Value) (*ref, error) {
	dict, err := py.built(py.tab.DictNew())
	if err != nil {
		return nil, err
	}
	iter := rv.MapRange()
	for iter.Next() {
		key, err := py.box(iter.Key().Interface())
		if err != nil {
			dict.release()
			return nil, err
		}
		val, err := py.box(iter.Value().Interface())
		if err != nil {
			key.release()
			dict.release()
			return nil, err
		}
		rc := py.tab.DictSetItem(dict.h, key.h, val.h)
		key.release()
		val.release()
		if rc < 0 {
			dict.release()
			return nil, py.failed()
		}
	}
	return dict, nil
}

// boxSet exports a map[T]struct{} as a foreign set.
func (py *Python) boxSet(rv reflect.Value) (*ref, error) {
	set, err := py.built(py.tab.SetNew(0))
	if err != nil {
		return nil, err
	}
	iter := rv.MapRange()
	for iter.Next() {
		elem, err := py.box(iter.Key().Interface())
		if err != nil {
			set.release()
			return nil, err
		}
		rc := py.tab.SetAdd(set.h, elem.h)
		elem.release()
		if rc < 0 {
			set.release()
			return nil, py.failed()
		}
	}
	return set, nil
}

// boxRange exports an integer range as a foreign slice object.
func (py *Python) boxRange(r Range) (*ref, error) {
	stop := r.Stop
	if r.Inclusive {
		if r.Step >= 0 {
			stop++
		} else {
			stop--
		}
	}
	start, err := py.built(py.tab.LongFromInt64(r.Start))
	if err != nil {
		return nil, err
	}
	defer start.release()
	stopRef, err := py.built(py.tab.LongFromInt64(stop))
	if err != nil {
		return nil, err
	}
	defer stopRef.release()
	step, err := py.built(py.tab.LongFromInt64(r.Step))
	if err != nil {
		return nil, err
	}
	defer step.release()
	return py.built(py.tab.SliceNew(start.h, stopRef.h, step.h))
}

func (py *Python) boxAll(args []any) ([]*ref, error) {
	refs := make([]*ref, 0, len(args))
	for _, a := range args {
		r, err := py.box(a)
		if err != nil {
			releaseAll(refs)
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, nil
}

func releaseAll(refs []*ref) {
	for _, r := range refs {
		r.release()
	}
}

func handlesOf(refs []*ref) []capi.Handle {
	hs := make([]capi.Handle, len(refs))
	for i, r := range refs {
		hs[i] = r.h
	}
	return hs
}

// Seq imports the object as an ordered sequence of proxies, through the
// iteration protocol.
func (o *Obj) Seq() ([]*Obj, error) {
	it, err := o.Iter()
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []*Obj
	for it.Next() {
		out = append(out, it.Value())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Set imports the object's elements through the iteration protocol.
// Element uniqueness is the foreign set's own guarantee; order is
// unspecified.
func (o *Obj) Set() ([]*Obj, error) {
	return o.Seq()
}

// Map imports the object as key-value pairs, through the foreign
// mapping's items view; each pair is unpacked by sequence indexing.
func (o *Obj) Map() ([]MapItem, error) {
	ih := o.py.tab.MappingItems(o.handle())
	runtime.KeepAlive(o)
	items, err := o.py.received(ih)
	if err != nil {
		return nil, err
	}
	defer items.Close()

	it, err := items.Iter()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []MapItem
	for it.Next() {
		pair := it.Value()
		key, err := o.py.received(o.py.tab.SequenceGetItem(pair.handle(), 0))
		if err != nil {
			return nil, err
		}
		val, err := o.py.received(o.py.tab.SequenceGetItem(pair.handle(), 1))
		if err != nil {
			return nil, err
		}
		runtime.KeepAlive(pair)
		out = append(out, MapItem{Key: key, Value: val})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
