package wasm

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/mkysylov/pygo/capi"
)

// buildTable wires every call-table entry to an exported function. The
// module is 32-bit: handles and sizes narrow to uint32 on the way in
// and widen on the way out, and the hash type narrows to a signed
// 32-bit value.
func (rt *Runtime) buildTable() *capi.Table {
	t := &capi.Table{}

	incref := rt.fn("Py_IncRef")
	t.IncRef = func(o capi.Handle) { rt.call(incref, uint64(o)) }
	decref := rt.fn("Py_DecRef")
	t.DecRef = func(o capi.Handle) { rt.call(decref, uint64(o)) }

	errOccurred := rt.fn("PyErr_Occurred")
	t.ErrOccurred = func() capi.Handle { return handle(rt.call(errOccurred)) }

	errFetch := rt.fn("PyErr_Fetch")
	t.ErrFetch = func() (capi.Handle, capi.Handle, capi.Handle) {
		p := rt.alloc(12)
		defer rt.release(p)
		rt.call(errFetch, uint64(p), uint64(p+4), uint64(p+8))
		return rt.readHandle(p), rt.readHandle(p + 4), rt.readHandle(p + 8)
	}

	errNormalize := rt.fn("PyErr_NormalizeException")
	t.ErrNormalize = func(typ, value, tb capi.Handle) (capi.Handle, capi.Handle, capi.Handle) {
		p := rt.alloc(12)
		defer rt.release(p)
		rt.writeHandle(p, typ)
		rt.writeHandle(p+4, value)
		rt.writeHandle(p+8, tb)
		rt.call(errNormalize, uint64(p), uint64(p+4), uint64(p+8))
		return rt.readHandle(p), rt.readHandle(p + 4), rt.readHandle(p + 8)
	}

	runSimpleString := rt.fn("PyRun_SimpleString")
	t.RunSimpleString = func(source string) int32 {
		return int32(uint32(rt.withCString(source, func(p uint32) uint64 {
			return rt.call(runSimpleString, uint64(p))
		})))
	}

	importModule := rt.fn("PyImport_ImportModule")
	t.ImportModule = func(name string) capi.Handle {
		return handle(rt.withCString(name, func(p uint32) uint64 {
			return rt.call(importModule, uint64(p))
		}))
	}
	getBuiltins := rt.fn("PyEval_GetBuiltins")
	t.GetBuiltins = func() capi.Handle { return handle(rt.call(getBuiltins)) }
	buildValue := rt.fn("Py_BuildValue")
	t.BuildValue = func(format string) capi.Handle {
		return handle(rt.withCString(format, func(p uint32) uint64 {
			return rt.call(buildValue, uint64(p))
		}))
	}

	getAttrString := rt.fn("PyObject_GetAttrString")
	t.GetAttr = func(o capi.Handle, name string) capi.Handle {
		return handle(rt.withCString(name, func(p uint32) uint64 {
			return rt.call(getAttrString, uint64(o), uint64(p))
		}))
	}
	setAttrString := rt.fn("PyObject_SetAttrString")
	t.SetAttr = func(o capi.Handle, name string, v capi.Handle) int32 {
		return int32(uint32(rt.withCString(name, func(p uint32) uint64 {
			return rt.call(setAttrString, uint64(o), uint64(p), uint64(v))
		})))
	}
	richCompareBool := rt.fn("PyObject_RichCompareBool")
	t.RichCompareBool = func(a, b capi.Handle, op int) int32 {
		return int32(uint32(rt.call(richCompareBool, uint64(a), uint64(b), uint64(uint32(op)))))
	}
	t.Str = rt.h1("PyObject_Str")
	hash := rt.fn("PyObject_Hash")
	t.Hash = func(o capi.Handle) int64 {
		return int64(int32(uint32(rt.call(hash, uint64(o)))))
	}
	t.IsTrue = rt.status1("PyObject_IsTrue")
	t.GetItem = rt.h2("PyObject_GetItem")
	setItem := rt.fn("PyObject_SetItem")
	t.SetItem = func(o, key, v capi.Handle) int32 {
		return int32(uint32(rt.call(setItem, uint64(o), uint64(key), uint64(v))))
	}
	t.GetIter = rt.h1("PyObject_GetIter")

	t.Call = rt.h3("PyObject_Call")
	t.CallableCheck = rt.status1("PyCallable_Check")
	getAttrObj := rt.h2("PyObject_GetAttr")

	packArgs := func(args []capi.Handle) capi.Handle {
		tuple := t.TupleNew(int64(len(args)))
		if tuple == 0 {
			return 0
		}
		for i, a := range args {
			t.IncRef(a)
			if t.TupleSetItem(tuple, int64(i), a) < 0 {
				t.DecRef(tuple)
				return 0
			}
		}
		return tuple
	}
	t.CallFunctionObjArgs = func(callable capi.Handle, args []capi.Handle) capi.Handle {
		tuple := packArgs(args)
		if tuple == 0 {
			return 0
		}
		res := t.Call(callable, tuple, 0)
		t.DecRef(tuple)
		return res
	}
	t.CallMethodObjArgs = func(receiver, name capi.Handle, args []capi.Handle) capi.Handle {
		method := getAttrObj(receiver, name)
		if method == 0 {
			return 0
		}
		res := t.CallFunctionObjArgs(method, args)
		t.DecRef(method)
		return res
	}

	t.Add = rt.h2("PyNumber_Add")
	t.Subtract = rt.h2("PyNumber_Subtract")
	t.Multiply = rt.h2("PyNumber_Multiply")
	t.MatrixMultiply = rt.h2("PyNumber_MatrixMultiply")
	t.FloorDivide = rt.h2("PyNumber_FloorDivide")
	t.TrueDivide = rt.h2("PyNumber_TrueDivide")
	t.Remainder = rt.h2("PyNumber_Remainder")
	t.Power = rt.h3("PyNumber_Power")
	t.Lshift = rt.h2("PyNumber_Lshift")
	t.Rshift = rt.h2("PyNumber_Rshift")
	t.And = rt.h2("PyNumber_And")
	t.Xor = rt.h2("PyNumber_Xor")
	t.Or = rt.h2("PyNumber_Or")

	t.InPlaceAdd = rt.h2("PyNumber_InPlaceAdd")
	t.InPlaceSubtract = rt.h2("PyNumber_InPlaceSubtract")
	t.InPlaceMultiply = rt.h2("PyNumber_InPlaceMultiply")
	t.InPlaceMatrixMultiply = rt.h2("PyNumber_InPlaceMatrixMultiply")
	t.InPlaceFloorDivide = rt.h2("PyNumber_InPlaceFloorDivide")
	t.InPlaceTrueDivide = rt.h2("PyNumber_InPlaceTrueDivide")
	t.InPlaceRemainder = rt.h2("PyNumber_InPlaceRemainder")
	t.InPlacePower = rt.h3("PyNumber_InPlacePower")
	t.InPlaceLshift = rt.h2("PyNumber_InPlaceLshift")
	t.InPlaceRshift = rt.h2("PyNumber_InPlaceRshift")
	t.InPlaceAnd = rt.h2("PyNumber_InPlaceAnd")
	t.InPlaceXor = rt.h2("PyNumber_InPlaceXor")
	t.InPlaceOr = rt.h2("PyNumber_InPlaceOr")

	t.Negative = rt.h1("PyNumber_Negative")
	t.Positive = rt.h1("PyNumber_Positive")
	t.Invert = rt.h1("PyNumber_Invert")

	sequenceGetItem := rt.fn("PySequence_GetItem")
	t.SequenceGetItem = func(o capi.Handle, i int64) capi.Handle {
		return handle(rt.call(sequenceGetItem, uint64(o), uint64(uint32(i))))
	}
	t.MappingItems = rt.h1("PyMapping_Items")
	t.IterNext = rt.h1("PyIter_Next")

	longFromLongLong := rt.fn("PyLong_FromLongLong")
	t.LongFromInt64 = func(v int64) capi.Handle {
		return handle(rt.call(longFromLongLong, uint64(v)))
	}
	longAsLongLong := rt.fn("PyLong_AsLongLong")
	t.LongAsInt64 = func(o capi.Handle) int64 {
		return int64(rt.call(longAsLongLong, uint64(o)))
	}
	boolFromLong := rt.fn("PyBool_FromLong")
	t.BoolFromInt = func(v int) capi.Handle {
		return handle(rt.call(boolFromLong, uint64(uint32(v))))
	}
	floatFromDouble := rt.fn("PyFloat_FromDouble")
	t.FloatFromFloat64 = func(v float64) capi.Handle {
		return handle(rt.call(floatFromDouble, api.EncodeF64(v)))
	}
	floatAsDouble := rt.fn("PyFloat_AsDouble")
	t.FloatAsFloat64 = func(o capi.Handle) float64 {
		return api.DecodeF64(rt.call(floatAsDouble, uint64(o)))
	}
	unicodeFromString := rt.fn("PyUnicode_FromString")
	t.UnicodeFromString = func(s string) capi.Handle {
		return handle(rt.withCString(s, func(p uint32) uint64 {
			return rt.call(unicodeFromString, uint64(p))
		}))
	}
	asUTF8 := rt.fn("PyUnicode_AsUTF8")
	t.UnicodeAsUTF8 = func(o capi.Handle) (string, bool) {
		p := uint32(rt.call(asUTF8, uint64(o)))
		if p == 0 {
			return "", false
		}
		return rt.readString(p), true
	}

	tupleNew := rt.fn("PyTuple_New")
	t.TupleNew = func(length int64) capi.Handle {
		return handle(rt.call(tupleNew, uint64(uint32(length))))
	}
	tupleSetItem := rt.fn("PyTuple_SetItem")
	t.TupleSetItem = func(tuple capi.Handle, pos int64, item capi.Handle) int32 {
		return int32(uint32(rt.call(tupleSetItem, uint64(tuple), uint64(uint32(pos)), uint64(item))))
	}
	listNew := rt.fn("PyList_New")
	t.ListNew = func(length int64) capi.Handle {
		return handle(rt.call(listNew, uint64(uint32(length))))
	}
	listSetItem := rt.fn("PyList_SetItem")
	t.ListSetItem = func(list capi.Handle, pos int64, item capi.Handle) int32 {
		return int32(uint32(rt.call(listSetItem, uint64(list), uint64(uint32(pos)), uint64(item))))
	}
	listAppend := rt.fn("PyList_Append")
	t.ListAppend = func(list, item capi.Handle) int32 {
		return int32(uint32(rt.call(listAppend, uint64(list), uint64(item))))
	}
	dictNew := rt.fn("PyDict_New")
	t.DictNew = func() capi.Handle { return handle(rt.call(dictNew)) }
	dictSetItem := rt.fn("PyDict_SetItem")
	t.DictSetItem = func(dict, key, value capi.Handle) int32 {
		return int32(uint32(rt.call(dictSetItem, uint64(dict), uint64(key), uint64(value))))
	}
	t.SetNew = rt.h1("PySet_New")
	setAdd := rt.fn("PySet_Add")
	t.SetAdd = func(set, key capi.Handle) int32 {
		return int32(uint32(rt.call(setAdd, uint64(set), uint64(key))))
	}
	t.SliceNew = rt.h3("PySlice_New")

	// A wasm build boots through its own entry point; the program name
	// matters only when the module exports the locale decoder.
	decodeLocale := rt.module.ExportedFunction("Py_DecodeLocale")
	setProgramName := rt.module.ExportedFunction("Py_SetProgramName")
	t.SetProgramName = func(name string) {
		if decodeLocale == nil || setProgramName == nil {
			return
		}
		w := rt.withCString(name, func(p uint32) uint64 {
			return rt.call(decodeLocale, uint64(p), 0)
		})
		if w != 0 {
			rt.call(setProgramName, w)
		}
	}
	initializeEx := rt.fn("Py_InitializeEx")
	t.InitializeEx = func(initsigs int) {
		rt.call(initializeEx, uint64(uint32(initsigs)))
	}
	initThreads := rt.module.ExportedFunction("PyEval_InitThreads")
	t.InitThreads = func() {
		if initThreads != nil {
			rt.call(initThreads)
		}
	}

	return t
}

func (rt *Runtime) readHandle(p uint32) capi.Handle {
	v, ok := rt.memory.ReadUint32Le(p)
	if !ok {
		panic("wasm: handle read out of range")
	}
	return capi.Handle(v)
}

func (rt *Runtime) writeHandle(p uint32, h capi.Handle) {
	if !rt.memory.WriteUint32Le(p, uint32(h)) {
		panic("wasm: handle write out of range")
	}
}
