package fakepy

import (
	"hash/fnv"
	"math"

	"github.com/mkysylov/pygo/capi"
)

// Table builds a call table backed by this runtime. Every closure takes
// the runtime lock; callables registered through NewFunc run unlocked so
// they can re-enter the table.
func (r *Runtime) Table() *capi.Table {
	return &capi.Table{
		IncRef: r.tIncRef,
		DecRef: r.tDecRef,

		ErrOccurred:  r.tErrOccurred,
		ErrFetch:     r.tErrFetch,
		ErrNormalize: r.tErrNormalize,

		RunSimpleString: r.tRunSimpleString,

		ImportModule: r.tImportModule,
		GetBuiltins:  r.tGetBuiltins,
		BuildValue:   r.tBuildValue,

		GetAttr:         r.tGetAttr,
		SetAttr:         r.tSetAttr,
		RichCompareBool: r.tRichCompareBool,
		Str:             r.tStr,
		Hash:            r.tHash,
		IsTrue:          r.tIsTrue,
		GetItem:         r.tGetItem,
		SetItem:         r.tSetItem,
		GetIter:         r.tGetIter,

		Call:                r.tCall,
		CallFunctionObjArgs: r.tCallFunctionObjArgs,
		CallMethodObjArgs:   r.tCallMethodObjArgs,
		CallableCheck:       r.tCallableCheck,

		Add:            r.binOp("+"),
		Subtract:       r.binOp("-"),
		Multiply:       r.binOp("*"),
		MatrixMultiply: r.binOp("@"),
		FloorDivide:    r.binOp("//"),
		TrueDivide:     r.binOp("/"),
		Remainder:      r.binOp("%"),
		Power:          r.tPower,
		Lshift:         r.binOp("<<"),
		Rshift:         r.binOp(">>"),
		And:            r.binOp("&"),
		Xor:            r.binOp("^"),
		Or:             r.binOp("|"),

		InPlaceAdd:            r.inPlaceOp("+"),
		InPlaceSubtract:       r.inPlaceOp("-"),
		InPlaceMultiply:       r.inPlaceOp("*"),
		InPlaceMatrixMultiply: r.inPlaceOp("@"),
		InPlaceFloorDivide:    r.inPlaceOp("//"),
		InPlaceTrueDivide:     r.inPlaceOp("/"),
		InPlaceRemainder:      r.inPlaceOp("%"),
		InPlacePower:          r.tPower,
		InPlaceLshift:         r.inPlaceOp("<<"),
		InPlaceRshift:         r.inPlaceOp(">>"),
		InPlaceAnd:            r.inPlaceOp("&"),
		InPlaceXor:            r.inPlaceOp("^"),
		InPlaceOr:             r.inPlaceOp("|"),

		Negative: r.unaryOp("-"),
		Positive: r.unaryOp("+"),
		Invert:   r.unaryOp("~"),

		SequenceGetItem: r.tSequenceGetItem,
		MappingItems:    r.tMappingItems,
		IterNext:        r.tIterNext,

		LongFromInt64:     r.tLongFromInt64,
		LongAsInt64:       r.tLongAsInt64,
		BoolFromInt:       r.tBoolFromInt,
		FloatFromFloat64:  r.tFloatFromFloat64,
		FloatAsFloat64:    r.tFloatAsFloat64,
		UnicodeFromString: r.tUnicodeFromString,
		UnicodeAsUTF8:     r.tUnicodeAsUTF8,

		TupleNew:     r.tTupleNew,
		TupleSetItem: r.tTupleSetItem,
		ListNew:      r.tListNew,
		ListSetItem:  r.tListSetItem,
		ListAppend:   r.tListAppend,
		DictNew:      r.tDictNew,
		DictSetItem:  r.tDictSetItem,
		SetNew:       r.tSetNew,
		SetAdd:       r.tSetAdd,
		SliceNew:     r.tSliceNew,

		SetProgramName: r.tSetProgramName,
		InitializeEx:   r.tInitializeEx,
		InitThreads:    r.tInitThreads,
	}
}

func (r *Runtime) tIncRef(o capi.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incref(o)
}

func (r *Runtime) tDecRef(o capi.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decref(o)
}

func (r *Runtime) tErrOccurred() capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errType
}

func (r *Runtime) tErrFetch() (capi.Handle, capi.Handle, capi.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, v, tb := r.errType, r.errValue, r.errTB
	r.errType, r.errValue, r.errTB = 0, 0, 0
	return t, v, tb
}

func (r *Runtime) tErrNormalize(typ, value, tb capi.Handle) (capi.Handle, capi.Handle, capi.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if typ == 0 {
		return typ, value, tb
	}
	if value != 0 && r.objs[value].kind == kExc {
		return typ, value, tb
	}
	msg := ""
	if value != 0 {
		msg = r.render(value, false)
		r.decref(value)
	}
	return typ, r.alloc(&object{kind: kExc, s: msg}), tb
}

func (r *Runtime) tRunSimpleString(source string) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranSources = append(r.ranSources, source)
	return 0
}

func (r *Runtime) tImportModule(name string) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.modules[name]; ok {
		r.incref(h)
		return h
	}
	r.raise("ModuleNotFoundError", "No module named '"+name+"'")
	return 0
}

func (r *Runtime) tGetBuiltins() capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builtins
}

func (r *Runtime) tBuildValue(format string) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if format == "" {
		r.incref(r.none)
		return r.none
	}
	r.raise("SystemError", "bad format string")
	return 0
}

// getAttrLocked returns an owned reference to an attribute, or 0 with
// the error indicator set.
func (r *Runtime) getAttrLocked(o capi.Handle, name string) capi.Handle {
	obj := r.objs[o]
	if h, ok := obj.attrs[name]; ok {
		r.incref(h)
		return h
	}
	r.raise("AttributeError", "'"+r.typeName(obj)+"' object has no attribute '"+name+"'")
	return 0
}

func (r *Runtime) tGetAttr(o capi.Handle, name string) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getAttrLocked(o, name)
}

func (r *Runtime) tSetAttr(o capi.Handle, name string, v capi.Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incref(v)
	r.setAttrOwned(r.objs[o], name, v)
	return 0
}

func (r *Runtime) tRichCompareBool(a, b capi.Handle, op int) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, y := r.objs[a], r.objs[b]
	ordered := false
	var cmp int
	switch {
	case r.isNumeric(x) && r.isNumeric(y):
		ordered = true
		fx, fy := r.numOf(x), r.numOf(y)
		switch {
		case fx < fy:
			cmp = -1
		case fx > fy:
			cmp = 1
		}
	case x.kind == kStr && y.kind == kStr:
		ordered = true
		switch {
		case x.s < y.s:
			cmp = -1
		case x.s > y.s:
			cmp = 1
		}
	}
	switch op {
	case capi.EQ:
		if r.eqH(a, b) {
			return 1
		}
		return 0
	case capi.NE:
		if r.eqH(a, b) {
			return 0
		}
		return 1
	}
	if !ordered {
		r.raise("TypeError", "'<' not supported between instances of '"+
			r.typeName(x)+"' and '"+r.typeName(y)+"'")
		return -1
	}
	var ok bool
	switch op {
	case capi.LT:
		ok = cmp < 0
	case capi.LE:
		ok = cmp <= 0
	case capi.GT:
		ok = cmp > 0
	case capi.GE:
		ok = cmp >= 0
	}
	if ok {
		return 1
	}
	return 0
}

func (r *Runtime) tStr(o capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc(&object{kind: kStr, s: r.render(o, false)})
}

func (r *Runtime) hashLocked(h capi.Handle) (int64, bool) {
	o := r.objs[h]
	switch o.kind {
	case kInt, kBool:
		return o.i, true
	case kFloat:
		if o.f == math.Trunc(o.f) && math.Abs(o.f) < 1e18 {
			return int64(o.f), true
		}
		return int64(math.Float64bits(o.f)), true
	case kStr:
		d := fnv.New64a()
		d.Write([]byte(o.s))
		return int64(d.Sum64()), true
	case kNone:
		return 0, true
	case kTuple:
		acc := int64(0x345678)
		for _, e := range o.elems {
			eh, ok := r.hashLocked(e)
			if !ok {
				return -1, false
			}
			acc = acc*1000003 ^ eh
		}
		return acc, true
	case kList, kDict, kSet, kSlice:
		r.raise("TypeError", "unhashable type: '"+r.typeName(o)+"'")
		return -1, false
	}
	return int64(h), true
}

func (r *Runtime) tHash(o capi.Handle) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, _ := r.hashLocked(o)
	return h
}

func (r *Runtime) tIsTrue(o capi.Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objs[o]
	truthy := false
	switch obj.kind {
	case kNone:
	case kBool, kInt:
		truthy = obj.i != 0
	case kFloat:
		truthy = obj.f != 0
	case kStr:
		truthy = obj.s != ""
	case kList, kTuple, kSet:
		truthy = len(obj.elems) > 0
	case kDict:
		truthy = len(obj.pairs) > 0
	default:
		truthy = true
	}
	if truthy {
		return 1
	}
	return 0
}

// index resolves an integer subscript against a sequence length, with
// negative wrap-around.
func (r *Runtime) index(key *object, n int, what string) (int, bool) {
	if key.kind != kInt && key.kind != kBool {
		r.raise("TypeError", what+" indices must be integers")
		return 0, false
	}
	i := int(key.i)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		r.raise("IndexError", what+" index out of range")
		return 0, false
	}
	return i, true
}

func (r *Runtime) tGetItem(o, key capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, k := r.objs[o], r.objs[key]
	switch obj.kind {
	case kList, kTuple:
		i, ok := r.index(k, len(obj.elems), r.typeName(obj))
		if !ok {
			return 0
		}
		r.incref(obj.elems[i])
		return obj.elems[i]
	case kStr:
		i, ok := r.index(k, len(obj.s), "string")
		if !ok {
			return 0
		}
		return r.alloc(&object{kind: kStr, s: obj.s[i : i+1]})
	case kDict:
		for _, p := range obj.pairs {
			if r.eqH(p[0], key) {
				r.incref(p[1])
				return p[1]
			}
		}
		r.raise("KeyError", r.render(key, true))
		return 0
	}
	r.raise("TypeError", "'"+r.typeName(obj)+"' object is not subscriptable")
	return 0
}

func (r *Runtime) unhashableKey(key capi.Handle) bool {
	switch r.objs[key].kind {
	case kList, kDict, kSet, kSlice:
		r.raise("TypeError", "unhashable type: '"+r.typeName(r.objs[key])+"'")
		return true
	}
	return false
}

// dictPutLocked upserts a key; both key and value gain a reference on
// insert, only the value reference moves on replace.
func (r *Runtime) dictPutLocked(d *object, key, value capi.Handle) {
	for i, p := range d.pairs {
		if r.eqH(p[0], key) {
			r.incref(value)
			r.decref(p[1])
			d.pairs[i][1] = value
			return
		}
	}
	r.incref(key)
	r.incref(value)
	d.pairs = append(d.pairs, [2]capi.Handle{key, value})
}

func (r *Runtime) tSetItem(o, key, v capi.Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objs[o]
	switch obj.kind {
	case kList:
		i, ok := r.index(r.objs[key], len(obj.elems), "list")
		if !ok {
			return -1
		}
		r.incref(v)
		r.decref(obj.elems[i])
		obj.elems[i] = v
		return 0
	case kDict:
		if r.unhashableKey(key) {
			return -1
		}
		r.dictPutLocked(obj, key, v)
		return 0
	}
	r.raise("TypeError", "'"+r.typeName(obj)+"' object does not support item assignment")
	return -1
}

func (r *Runtime) tGetIter(o capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objs[o]
	switch obj.kind {
	case kIter:
		r.incref(o)
		return o
	case kList, kTuple, kSet, kStr, kDict:
		r.incref(o)
		return r.alloc(&object{kind: kIter, src: o})
	}
	r.raise("TypeError", "'"+r.typeName(obj)+"' object is not iterable")
	return 0
}

func (r *Runtime) tIterNext(o capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	it := r.objs[o]
	src := r.objs[it.src]
	switch src.kind {
	case kList, kTuple, kSet:
		if it.pos >= len(src.elems) {
			return 0
		}
		h := src.elems[it.pos]
		it.pos++
		r.incref(h)
		return h
	case kStr:
		if it.pos >= len(src.s) {
			return 0
		}
		h := r.alloc(&object{kind: kStr, s: src.s[it.pos : it.pos+1]})
		it.pos++
		return h
	case kDict:
		if it.pos >= len(src.pairs) {
			return 0
		}
		h := src.pairs[it.pos][0]
		it.pos++
		r.incref(h)
		return h
	}
	return 0
}

// callLocked dispatches a call on a callable whose args have already
// been flattened. It releases the lock around host function bodies so
// they may re-enter the table.
func (r *Runtime) callLocked(callable capi.Handle, argv []capi.Handle, kwargs capi.Handle) capi.Handle {
	co := r.objs[callable]
	switch co.kind {
	case kFunc:
		fn := co.fn
		r.mu.Unlock()
		h := fn(argv, kwargs)
		r.mu.Lock()
		return h
	case kType:
		msg := ""
		if len(argv) > 0 {
			if a := r.objs[argv[0]]; a.kind == kStr {
				msg = a.s
			}
		}
		return r.alloc(&object{kind: kExc, s: msg})
	}
	r.raise("TypeError", "'"+r.typeName(co)+"' object is not callable")
	return 0
}

func (r *Runtime) tCall(callable, args, kwargs capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var argv []capi.Handle
	if args != 0 {
		argv = append(argv, r.objs[args].elems...)
	}
	return r.callLocked(callable, argv, kwargs)
}

func (r *Runtime) tCallFunctionObjArgs(callable capi.Handle, args []capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callLocked(callable, append([]capi.Handle(nil), args...), 0)
}

func (r *Runtime) tCallMethodObjArgs(receiver, name capi.Handle, args []capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	attr := r.getAttrLocked(receiver, r.objs[name].s)
	if attr == 0 {
		return 0
	}
	h := r.callLocked(attr, append([]capi.Handle(nil), args...), 0)
	r.decref(attr)
	return h
}

func (r *Runtime) tCallableCheck(o capi.Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.objs[o].kind {
	case kFunc, kType:
		return 1
	}
	return 0
}

// --- number protocol ------------------------------------------------

func flooredDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func flooredMod(a, b int64) int64 {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func (r *Runtime) binaryLocked(op string, a, b capi.Handle) capi.Handle {
	x, y := r.objs[a], r.objs[b]

	if op == "+" {
		switch {
		case x.kind == kStr && y.kind == kStr:
			return r.alloc(&object{kind: kStr, s: x.s + y.s})
		case x.kind == kList && y.kind == kList:
			elems := make([]capi.Handle, 0, len(x.elems)+len(y.elems))
			elems = append(elems, x.elems...)
			elems = append(elems, y.elems...)
			for _, e := range elems {
				r.incref(e)
			}
			return r.alloc(&object{kind: kList, elems: elems})
		}
	}

	if op == "@" || !r.isNumeric(x) || !r.isNumeric(y) {
		r.raise("TypeError", "unsupported operand type(s) for "+op+": '"+
			r.typeName(x)+"' and '"+r.typeName(y)+"'")
		return 0
	}

	bothInt := x.kind != kFloat && y.kind != kFloat
	fx, fy := r.numOf(x), r.numOf(y)

	switch op {
	case "+", "-", "*":
		if bothInt {
			var v int64
			switch op {
			case "+":
				v = x.i + y.i
			case "-":
				v = x.i - y.i
			case "*":
				v = x.i * y.i
			}
			return r.alloc(&object{kind: kInt, i: v})
		}
		var v float64
		switch op {
		case "+":
			v = fx + fy
		case "-":
			v = fx - fy
		case "*":
			v = fx * fy
		}
		return r.alloc(&object{kind: kFloat, f: v})
	case "/":
		if fy == 0 {
			r.raise("ZeroDivisionError", "division by zero")
			return 0
		}
		return r.alloc(&object{kind: kFloat, f: fx / fy})
	case "//":
		if fy == 0 {
			r.raise("ZeroDivisionError", "integer division or modulo by zero")
			return 0
		}
		if bothInt {
			return r.alloc(&object{kind: kInt, i: flooredDiv(x.i, y.i)})
		}
		return r.alloc(&object{kind: kFloat, f: math.Floor(fx / fy)})
	case "%":
		if fy == 0 {
			r.raise("ZeroDivisionError", "integer division or modulo by zero")
			return 0
		}
		if bothInt {
			return r.alloc(&object{kind: kInt, i: flooredMod(x.i, y.i)})
		}
		m := math.Mod(fx, fy)
		if m != 0 && (m < 0) != (fy < 0) {
			m += fy
		}
		return r.alloc(&object{kind: kFloat, f: m})
	case "<<", ">>", "&", "^", "|":
		if !bothInt {
			r.raise("TypeError", "unsupported operand type(s) for "+op+": '"+
				r.typeName(x)+"' and '"+r.typeName(y)+"'")
			return 0
		}
		var v int64
		switch op {
		case "<<":
			v = x.i << uint(y.i)
		case ">>":
			v = x.i >> uint(y.i)
		case "&":
			v = x.i & y.i
		case "^":
			v = x.i ^ y.i
		case "|":
			v = x.i | y.i
		}
		return r.alloc(&object{kind: kInt, i: v})
	}
	r.raise("SystemError", "unknown operator "+op)
	return 0
}

func (r *Runtime) binOp(op string) func(a, b capi.Handle) capi.Handle {
	return func(a, b capi.Handle) capi.Handle {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.binaryLocked(op, a, b)
	}
}

// inPlaceOp augments the binary path with true mutation for lists, the
// one case where the result handle must be the original object.
func (r *Runtime) inPlaceOp(op string) func(a, b capi.Handle) capi.Handle {
	return func(a, b capi.Handle) capi.Handle {
		r.mu.Lock()
		defer r.mu.Unlock()
		x, y := r.objs[a], r.objs[b]
		if op == "+" && x.kind == kList && y.kind == kList {
			for _, e := range y.elems {
				r.incref(e)
				x.elems = append(x.elems, e)
			}
			r.incref(a)
			return a
		}
		return r.binaryLocked(op, a, b)
	}
}

func ipow(base, exp int64) int64 {
	v := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			v *= base
		}
		base *= base
		exp >>= 1
	}
	return v
}

func (r *Runtime) tPower(a, b, mod capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, y := r.objs[a], r.objs[b]
	if !r.isNumeric(x) || !r.isNumeric(y) {
		r.raise("TypeError", "unsupported operand type(s) for **: '"+
			r.typeName(x)+"' and '"+r.typeName(y)+"'")
		return 0
	}
	bothInt := x.kind != kFloat && y.kind != kFloat

	if mod != 0 && r.objs[mod].kind != kNone {
		m := r.objs[mod]
		if !bothInt || (m.kind != kInt && m.kind != kBool) {
			r.raise("TypeError", "pow() 3rd argument not allowed unless all arguments are integers")
			return 0
		}
		if m.i == 0 {
			r.raise("ValueError", "pow() 3rd argument cannot be 0")
			return 0
		}
		base, exp := x.i, y.i
		if exp < 0 {
			r.raise("ValueError", "pow() 2nd argument cannot be negative when 3rd argument specified")
			return 0
		}
		v := int64(1)
		base = flooredMod(base, m.i)
		for exp > 0 {
			if exp&1 == 1 {
				v = flooredMod(v*base, m.i)
			}
			base = flooredMod(base*base, m.i)
			exp >>= 1
		}
		return r.alloc(&object{kind: kInt, i: v})
	}

	if bothInt && y.i >= 0 {
		return r.alloc(&object{kind: kInt, i: ipow(x.i, y.i)})
	}
	return r.alloc(&object{kind: kFloat, f: math.Pow(r.numOf(x), r.numOf(y))})
}

func (r *Runtime) unaryOp(op string) func(o capi.Handle) capi.Handle {
	return func(o capi.Handle) capi.Handle {
		r.mu.Lock()
		defer r.mu.Unlock()
		x := r.objs[o]
		if op == "~" {
			if x.kind != kInt && x.kind != kBool {
				r.raise("TypeError", "bad operand type for unary ~: '"+r.typeName(x)+"'")
				return 0
			}
			return r.alloc(&object{kind: kInt, i: ^x.i})
		}
		if !r.isNumeric(x) {
			r.raise("TypeError", "bad operand type for unary "+op+": '"+r.typeName(x)+"'")
			return 0
		}
		neg := op == "-"
		if x.kind == kFloat {
			v := x.f
			if neg {
				v = -v
			}
			return r.alloc(&object{kind: kFloat, f: v})
		}
		v := x.i
		if neg {
			v = -v
		}
		return r.alloc(&object{kind: kInt, i: v})
	}
}

// --- sequence and mapping -------------------------------------------

func (r *Runtime) tSequenceGetItem(o capi.Handle, i int64) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := &object{kind: kInt, i: i}
	obj := r.objs[o]
	switch obj.kind {
	case kList, kTuple:
		idx, ok := r.index(key, len(obj.elems), r.typeName(obj))
		if !ok {
			return 0
		}
		r.incref(obj.elems[idx])
		return obj.elems[idx]
	case kStr:
		idx, ok := r.index(key, len(obj.s), "string")
		if !ok {
			return 0
		}
		return r.alloc(&object{kind: kStr, s: obj.s[idx : idx+1]})
	}
	r.raise("TypeError", "'"+r.typeName(obj)+"' object does not support indexing")
	return 0
}

func (r *Runtime) tMappingItems(o capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objs[o]
	if obj.kind != kDict {
		r.raise("TypeError", "'"+r.typeName(obj)+"' object is not a mapping")
		return 0
	}
	elems := make([]capi.Handle, len(obj.pairs))
	for i, p := range obj.pairs {
		r.incref(p[0])
		r.incref(p[1])
		elems[i] = r.alloc(&object{kind: kTuple, elems: []capi.Handle{p[0], p[1]}})
	}
	return r.alloc(&object{kind: kList, elems: elems})
}

// --- constructors and unboxers --------------------------------------

func (r *Runtime) tLongFromInt64(v int64) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc(&object{kind: kInt, i: v})
}

func (r *Runtime) tLongAsInt64(o capi.Handle) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objs[o]
	if obj.kind == kInt || obj.kind == kBool {
		return obj.i
	}
	r.raise("TypeError", "an integer is required, not '"+r.typeName(obj)+"'")
	return -1
}

func (r *Runtime) tBoolFromInt(v int) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.vFalse
	if v != 0 {
		h = r.vTrue
	}
	r.incref(h)
	return h
}

func (r *Runtime) tFloatFromFloat64(v float64) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc(&object{kind: kFloat, f: v})
}

func (r *Runtime) tFloatAsFloat64(o capi.Handle) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objs[o]
	switch obj.kind {
	case kFloat:
		return obj.f
	case kInt, kBool:
		return float64(obj.i)
	}
	r.raise("TypeError", "must be real number, not '"+r.typeName(obj)+"'")
	return -1
}

func (r *Runtime) tUnicodeFromString(s string) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc(&object{kind: kStr, s: s})
}

func (r *Runtime) tUnicodeAsUTF8(o capi.Handle) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objs[o]
	if obj.kind != kStr {
		r.raise("TypeError", "bad argument type for built-in operation")
		return "", false
	}
	return obj.s, true
}

func (r *Runtime) tTupleNew(length int64) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc(&object{kind: kTuple, elems: make([]capi.Handle, length)})
}

// setSlot implements the stolen-reference slot assignment shared by
// tuple and list. The item reference is consumed even on failure.
func (r *Runtime) setSlot(container capi.Handle, want kind, pos int64, item capi.Handle) int32 {
	obj := r.objs[container]
	if obj.kind != want || pos < 0 || pos >= int64(len(obj.elems)) {
		r.decref(item)
		r.raise("SystemError", "bad argument to internal function")
		return -1
	}
	r.decref(obj.elems[pos])
	obj.elems[pos] = item
	return 0
}

func (r *Runtime) tTupleSetItem(tuple capi.Handle, pos int64, item capi.Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setSlot(tuple, kTuple, pos, item)
}

func (r *Runtime) tListNew(length int64) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc(&object{kind: kList, elems: make([]capi.Handle, length)})
}

func (r *Runtime) tListSetItem(list capi.Handle, pos int64, item capi.Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setSlot(list, kList, pos, item)
}

func (r *Runtime) tListAppend(list, item capi.Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objs[list]
	if obj.kind != kList {
		r.raise("SystemError", "bad argument to internal function")
		return -1
	}
	r.incref(item)
	obj.elems = append(obj.elems, item)
	return 0
}

func (r *Runtime) tDictNew() capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alloc(&object{kind: kDict})
}

func (r *Runtime) tDictSetItem(dict, key, value capi.Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objs[dict]
	if obj.kind != kDict {
		r.raise("SystemError", "bad argument to internal function")
		return -1
	}
	if r.unhashableKey(key) {
		return -1
	}
	r.dictPutLocked(obj, key, value)
	return 0
}

func (r *Runtime) setAddLocked(set *object, key capi.Handle) int32 {
	if r.unhashableKey(key) {
		return -1
	}
	for _, e := range set.elems {
		if r.eqH(e, key) {
			return 0
		}
	}
	r.incref(key)
	set.elems = append(set.elems, key)
	return 0
}

func (r *Runtime) tSetNew(iterable capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := &object{kind: kSet}
	h := r.alloc(set)
	if iterable == 0 {
		return h
	}
	src := r.objs[iterable]
	switch src.kind {
	case kList, kTuple, kSet:
		for _, e := range src.elems {
			if r.setAddLocked(set, e) < 0 {
				r.decref(h)
				return 0
			}
		}
	default:
		r.decref(h)
		r.raise("TypeError", "'"+r.typeName(src)+"' object is not iterable")
		return 0
	}
	return h
}

func (r *Runtime) tSetAdd(set, key capi.Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objs[set]
	if obj.kind != kSet {
		r.raise("SystemError", "bad argument to internal function")
		return -1
	}
	return r.setAddLocked(obj, key)
}

func (r *Runtime) tSliceNew(start, stop, step capi.Handle) capi.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	bounds := [3]capi.Handle{start, stop, step}
	elems := make([]capi.Handle, 3)
	for i, b := range bounds {
		if b == 0 {
			b = r.none
		}
		r.incref(b)
		elems[i] = b
	}
	return r.alloc(&object{kind: kSlice, elems: elems})
}

// --- lifecycle ------------------------------------------------------

func (r *Runtime) tSetProgramName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progName = name
}

func (r *Runtime) tInitializeEx(initsigs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = true
}

func (r *Runtime) tInitThreads() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threaded = true
}
