//go:build darwin || linux

// Package libpython loads a shared CPython interpreter library at run
// time and exposes it as a call table. No cgo: symbols are resolved
// with dlopen/dlsym and called through purego.
package libpython

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/tliron/commonlog"

	"github.com/mkysylov/pygo/capi"
)

var log = commonlog.GetLogger("pygo.libpython")

// Bridge owns one loaded interpreter library. The interpreter is
// process-global; opening a second Bridge in the same process is not
// supported.
type Bridge struct {
	lib  uintptr
	path string
	tab  *capi.Table

	finalize func() int32
}

// Open locates the interpreter library, loads it, resolves every entry
// point and initializes the runtime.
func Open(cfg Config) (*Bridge, error) {
	cfg = cfg.withEnv()
	path, err := Locate(cfg)
	if err != nil {
		return nil, err
	}
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", path, err)
	}
	log.Infof("loaded interpreter library %s", path)

	b := &Bridge{lib: lib, path: path}
	b.tab = b.register()
	b.initialize(cfg)
	return b, nil
}

// Table returns the populated call table.
func (b *Bridge) Table() *capi.Table {
	return b.tab
}

// Close finalizes the interpreter and unloads the library. Objects
// still referenced on the Go side are dead after this.
func (b *Bridge) Close() error {
	if b.finalize != nil {
		if rc := b.finalize(); rc != 0 {
			log.Errorf("interpreter finalization flushed with status %d", rc)
		}
	}
	return purego.Dlclose(b.lib)
}

func (b *Bridge) reg(fptr any, name string) {
	purego.RegisterLibFunc(fptr, b.lib, name)
}

// regOptional resolves a symbol that newer interpreter versions have
// removed; returns false if the symbol is absent.
func (b *Bridge) regOptional(fptr any, name string) bool {
	if _, err := purego.Dlsym(b.lib, name); err != nil {
		log.Debugf("symbol %s not exported, skipping", name)
		return false
	}
	purego.RegisterLibFunc(fptr, b.lib, name)
	return true
}

// goString copies a NUL-terminated C string. The source buffer is owned
// by the interpreter and only valid while the originating object lives.
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(p + uintptr(n))) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

// register resolves every entry point of the call table. Variadic C
// entry points (the obj-args call forms) cannot cross purego, so they
// are lowered onto tuple packing plus the plain call entry, which the
// interpreter treats identically.
func (b *Bridge) register() *capi.Table {
	t := &capi.Table{}

	b.reg(&t.IncRef, "Py_IncRef")
	b.reg(&t.DecRef, "Py_DecRef")

	b.reg(&t.ErrOccurred, "PyErr_Occurred")
	var errFetch func(typ, value, traceback unsafe.Pointer)
	b.reg(&errFetch, "PyErr_Fetch")
	t.ErrFetch = func() (capi.Handle, capi.Handle, capi.Handle) {
		var typ, value, traceback capi.Handle
		errFetch(unsafe.Pointer(&typ), unsafe.Pointer(&value), unsafe.Pointer(&traceback))
		return typ, value, traceback
	}
	var errNormalize func(typ, value, traceback unsafe.Pointer)
	b.reg(&errNormalize, "PyErr_NormalizeException")
	t.ErrNormalize = func(typ, value, traceback capi.Handle) (capi.Handle, capi.Handle, capi.Handle) {
		errNormalize(unsafe.Pointer(&typ), unsafe.Pointer(&value), unsafe.Pointer(&traceback))
		return typ, value, traceback
	}

	b.reg(&t.RunSimpleString, "PyRun_SimpleString")

	b.reg(&t.ImportModule, "PyImport_ImportModule")
	b.reg(&t.GetBuiltins, "PyEval_GetBuiltins")
	b.reg(&t.BuildValue, "Py_BuildValue")

	b.reg(&t.GetAttr, "PyObject_GetAttrString")
	b.reg(&t.SetAttr, "PyObject_SetAttrString")
	var richCompareBool func(a, b capi.Handle, op int32) int32
	b.reg(&richCompareBool, "PyObject_RichCompareBool")
	t.RichCompareBool = func(a, bb capi.Handle, op int) int32 {
		return richCompareBool(a, bb, int32(op))
	}
	b.reg(&t.Str, "PyObject_Str")
	b.reg(&t.Hash, "PyObject_Hash")
	b.reg(&t.IsTrue, "PyObject_IsTrue")
	b.reg(&t.GetItem, "PyObject_GetItem")
	b.reg(&t.SetItem, "PyObject_SetItem")
	b.reg(&t.GetIter, "PyObject_GetIter")

	b.reg(&t.Call, "PyObject_Call")
	b.reg(&t.CallableCheck, "PyCallable_Check")
	var getAttrObj func(o, name capi.Handle) capi.Handle
	b.reg(&getAttrObj, "PyObject_GetAttr")

	// packArgs borrows the argument handles; tuple slots steal, so each
	// argument gains a reference first.
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

	b.reg(&t.Add, "PyNumber_Add")
	b.reg(&t.Subtract, "PyNumber_Subtract")
	b.reg(&t.Multiply, "PyNumber_Multiply")
	b.reg(&t.MatrixMultiply, "PyNumber_MatrixMultiply")
	b.reg(&t.FloorDivide, "PyNumber_FloorDivide")
	b.reg(&t.TrueDivide, "PyNumber_TrueDivide")
	b.reg(&t.Remainder, "PyNumber_Remainder")
	b.reg(&t.Power, "PyNumber_Power")
	b.reg(&t.Lshift, "PyNumber_Lshift")
	b.reg(&t.Rshift, "PyNumber_Rshift")
	b.reg(&t.And, "PyNumber_And")
	b.reg(&t.Xor, "PyNumber_Xor")
	b.reg(&t.Or, "PyNumber_Or")

	b.reg(&t.InPlaceAdd, "PyNumber_InPlaceAdd")
	b.reg(&t.InPlaceSubtract, "PyNumber_InPlaceSubtract")
	b.reg(&t.InPlaceMultiply, "PyNumber_InPlaceMultiply")
	b.reg(&t.InPlaceMatrixMultiply, "PyNumber_InPlaceMatrixMultiply")
	b.reg(&t.InPlaceFloorDivide, "PyNumber_InPlaceFloorDivide")
	b.reg(&t.InPlaceTrueDivide, "PyNumber_InPlaceTrueDivide")
	b.reg(&t.InPlaceRemainder, "PyNumber_InPlaceRemainder")
	b.reg(&t.InPlacePower, "PyNumber_InPlacePower")
	b.reg(&t.InPlaceLshift, "PyNumber_InPlaceLshift")
	b.reg(&t.InPlaceRshift, "PyNumber_InPlaceRshift")
	b.reg(&t.InPlaceAnd, "PyNumber_InPlaceAnd")
	b.reg(&t.InPlaceXor, "PyNumber_InPlaceXor")
	b.reg(&t.InPlaceOr, "PyNumber_InPlaceOr")

	b.reg(&t.Negative, "PyNumber_Negative")
	b.reg(&t.Positive, "PyNumber_Positive")
	b.reg(&t.Invert, "PyNumber_Invert")

	b.reg(&t.SequenceGetItem, "PySequence_GetItem")
	b.reg(&t.MappingItems, "PyMapping_Items")
	b.reg(&t.IterNext, "PyIter_Next")

	b.reg(&t.LongFromInt64, "PyLong_FromLongLong")
	b.reg(&t.LongAsInt64, "PyLong_AsLongLong")
	b.reg(&t.BoolFromInt, "PyBool_FromLong")
	b.reg(&t.FloatFromFloat64, "PyFloat_FromDouble")
	b.reg(&t.FloatAsFloat64, "PyFloat_AsDouble")
	b.reg(&t.UnicodeFromString, "PyUnicode_FromString")
	var asUTF8 func(o capi.Handle) uintptr
	b.reg(&asUTF8, "PyUnicode_AsUTF8")
	t.UnicodeAsUTF8 = func(o capi.Handle) (string, bool) {
		p := asUTF8(o)
		if p == 0 {
			return "", false
		}
		return goString(p), true
	}

	b.reg(&t.TupleNew, "PyTuple_New")
	b.reg(&t.TupleSetItem, "PyTuple_SetItem")
	b.reg(&t.ListNew, "PyList_New")
	b.reg(&t.ListSetItem, "PyList_SetItem")
	b.reg(&t.ListAppend, "PyList_Append")
	b.reg(&t.DictNew, "PyDict_New")
	b.reg(&t.DictSetItem, "PyDict_SetItem")
	b.reg(&t.SetNew, "PySet_New")
	b.reg(&t.SetAdd, "PySet_Add")
	b.reg(&t.SliceNew, "PySlice_New")

	var decodeLocale func(arg string, size unsafe.Pointer) uintptr
	b.reg(&decodeLocale, "Py_DecodeLocale")
	var setProgramName func(name uintptr)
	b.reg(&setProgramName, "Py_SetProgramName")
	t.SetProgramName = func(name string) {
		if w := decodeLocale(name, nil); w != 0 {
			setProgramName(w)
		}
	}
	var initializeEx func(initsigs int32)
	b.reg(&initializeEx, "Py_InitializeEx")
	t.InitializeEx = func(initsigs int) { initializeEx(int32(initsigs)) }

	// Removed in recent interpreter versions, where initialization
	// already enables the global call serialization.
	var initThreads func()
	if b.regOptional(&initThreads, "PyEval_InitThreads") {
		t.InitThreads = initThreads
	} else {
		t.InitThreads = func() {}
	}

	b.regOptional(&b.finalize, "Py_FinalizeEx")

	return t
}

// initialize boots the interpreter: program name first, then the
// runtime itself with signal handlers left to the host, then the
// sys module fixups an embedded interpreter does not get for free.
func (b *Bridge) initialize(cfg Config) {
	program := cfg.Program
	if program == "" {
		program = cfg.Python
	}
	b.tab.SetProgramName(program)
	b.tab.InitializeEx(0)
	b.tab.InitThreads()

	fixup := fmt.Sprintf(
		"import sys\nsys.argv = ['']\nsys.executable = %q\n", program)
	if rc := b.tab.RunSimpleString(fixup); rc != 0 {
		log.Errorf("sys fixup failed with status %d", rc)
	}
	log.Debugf("interpreter initialized as %s", program)
}
