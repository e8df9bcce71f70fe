// Package capi declares the foreign call table: the raw entry points into
// an embedded CPython runtime that the bridge consumes. The table is a
// struct of function values so that any backend (a shared library loaded
// at run time, a wasm build of the runtime, or an in-memory double) can
// populate it without the core knowing how calls are transported.
//
// Every field documents its ownership convention. "received" means the
// caller owns a reference to the returned handle and must eventually
// decrement it; "borrowed" means the callee retains ownership; "steals"
// means the callee takes over the caller's reference to an argument.
// Choosing the wrong convention at a call site is the classic way to
// corrupt the foreign reference counts, so the conventions live here,
// next to the entry points, rather than in the callers.
package capi

// Handle is an opaque address identifying one foreign object. The zero
// value is the null handle. Handles are never dereferenced on the Go
// side; they are only passed back into the table.
type Handle uintptr

// Rich-comparison operator codes, numbered as the foreign runtime
// numbers them (Py_LT..Py_GE).
const (
	LT = 0
	LE = 1
	EQ = 2
	NE = 3
	GT = 4
	GE = 5
)

// Table is the foreign call table. A backend fills in every field before
// handing the table to the core; the core treats a nil field as a broken
// backend and will crash on it, by intent.
type Table struct {
	// Reference counting. Both are null-safe: a null handle is a no-op.
	IncRef func(o Handle)
	DecRef func(o Handle)

	// Error state. ErrOccurred returns the exception type if the error
	// indicator is set (borrowed) or null if it is clear. ErrFetch
	// clears the indicator and transfers ownership of the (type, value,
	// traceback) triple to the caller; value and traceback may be null
	// even when type is not. ErrNormalize turns an unnormalized pair
	// (class + bare value) into a proper instance, in place.
	ErrOccurred  func() Handle
	ErrFetch     func() (typ, value, traceback Handle)
	ErrNormalize func(typ, value, traceback Handle) (Handle, Handle, Handle)

	// Very high level layer. RunSimpleString executes source in the
	// __main__ module and returns -1 if an exception was raised (the
	// exception itself is not retrievable through this entry point).
	RunSimpleString func(source string) int32

	// Importing and reflection. ImportModule returns a received
	// reference to the imported module or null with the error indicator
	// set. GetBuiltins returns a borrowed reference to the builtins
	// mapping. BuildValue constructs a value from a format string; the
	// core uses it with an empty format only, which yields None
	// (received).
	ImportModule func(name string) Handle
	GetBuiltins  func() Handle
	BuildValue   func(format string) Handle

	// Object protocol. Handle-returning entry points return received
	// references or null on failure with the error indicator set.
	// Status-returning entry points return 0 on success, -1 on failure.
	// Hash returns -1 on failure, but -1 is also a legal hash value;
	// the error indicator disambiguates. IsTrue returns 1, 0 or -1.
	GetAttr         func(o Handle, name string) Handle
	SetAttr         func(o Handle, name string, v Handle) int32
	RichCompareBool func(a, b Handle, op int) int32
	Str             func(o Handle) Handle
	Hash            func(o Handle) int64
	IsTrue          func(o Handle) int32
	GetItem         func(o, key Handle) Handle
	SetItem         func(o, key, v Handle) int32
	GetIter         func(o Handle) Handle

	// Call protocol. Call takes a non-null positional tuple and an
	// optional (possibly null) keyword mapping. The obj-args forms take
	// bare positional handles; backends without a variadic transport
	// lower them onto tuple packing plus Call, which is equivalent.
	// The core marshals through Call and CallMethodObjArgs only;
	// CallFunctionObjArgs is part of the transported surface for
	// backends and embedders that want the direct form.
	// All three return received references. CallableCheck returns 1 or 0.
	Call                func(callable, args, kwargs Handle) Handle
	CallFunctionObjArgs func(callable Handle, args []Handle) Handle
	CallMethodObjArgs   func(receiver, name Handle, args []Handle) Handle
	CallableCheck       func(o Handle) int32

	// Number protocol. Every entry returns a received reference or null
	// on failure. Power takes a modulus operand; pass None (not null)
	// to ignore it. The in-place variants mutate the left operand when
	// its type supports that and return a reference to the result
	// either way, which may or may not be the original object.
	Add            func(a, b Handle) Handle
	Subtract       func(a, b Handle) Handle
	Multiply       func(a, b Handle) Handle
	MatrixMultiply func(a, b Handle) Handle
	FloorDivide    func(a, b Handle) Handle
	TrueDivide     func(a, b Handle) Handle
	Remainder      func(a, b Handle) Handle
	Power          func(a, b, mod Handle) Handle
	Lshift         func(a, b Handle) Handle
	Rshift         func(a, b Handle) Handle
	And            func(a, b Handle) Handle
	Xor            func(a, b Handle) Handle
	Or             func(a, b Handle) Handle

	InPlaceAdd            func(a, b Handle) Handle
	InPlaceSubtract       func(a, b Handle) Handle
	InPlaceMultiply       func(a, b Handle) Handle
	InPlaceMatrixMultiply func(a, b Handle) Handle
	InPlaceFloorDivide    func(a, b Handle) Handle
	InPlaceTrueDivide     func(a, b Handle) Handle
	InPlaceRemainder      func(a, b Handle) Handle
	InPlacePower          func(a, b, mod Handle) Handle
	InPlaceLshift         func(a, b Handle) Handle
	InPlaceRshift         func(a, b Handle) Handle
	InPlaceAnd            func(a, b Handle) Handle
	InPlaceXor            func(a, b Handle) Handle
	InPlaceOr             func(a, b Handle) Handle

	Negative func(o Handle) Handle
	Positive func(o Handle) Handle
	Invert   func(o Handle) Handle

	// Sequence, mapping and iterator protocols. SequenceGetItem returns
	// a received reference to the i-th element. MappingItems returns a
	// received list of key-value tuples. IterNext returns a received
	// reference to the next element, or null: null with the error
	// indicator clear means the iterator is exhausted, null with it set
	// means the step failed.
	SequenceGetItem func(o Handle, i int64) Handle
	MappingItems    func(o Handle) Handle
	IterNext        func(o Handle) Handle

	// Constructors and unboxers. The From* entries return received
	// references. LongAsInt64 and FloatAsFloat64 return -1/-1.0 on
	// failure; the error indicator disambiguates the legitimate values.
	// UnicodeAsUTF8 returns the decoded text and whether decoding
	// succeeded (on failure the error indicator is set).
	LongFromInt64     func(v int64) Handle
	LongAsInt64       func(o Handle) int64
	BoolFromInt       func(v int) Handle
	FloatFromFloat64  func(v float64) Handle
	FloatAsFloat64    func(o Handle) float64
	UnicodeFromString func(s string) Handle
	UnicodeAsUTF8     func(o Handle) (string, bool)

	// Container constructors. TupleSetItem and ListSetItem steal the
	// item reference; DictSetItem and SetAdd do not. TupleNew and
	// ListNew pre-size the container; the caller must fill every slot
	// before the container crosses back into foreign code. SliceNew
	// accepts null for any bound, which becomes None. The core pre-sizes
	// lists and fills them with ListSetItem; ListAppend is carried for
	// embedders growing a list incrementally.
	TupleNew     func(length int64) Handle
	TupleSetItem func(tuple Handle, pos int64, item Handle) int32
	ListNew      func(length int64) Handle
	ListSetItem  func(list Handle, pos int64, item Handle) int32
	ListAppend   func(list, item Handle) int32
	DictNew      func() Handle
	DictSetItem  func(dict, key, value Handle) int32
	SetNew       func(iterable Handle) Handle
	SetAdd       func(set, key Handle) int32
	SliceNew     func(start, stop, step Handle) Handle

	// Lifecycle. Called once per process by the bootstrap collaborator,
	// never by the core. InitializeEx(0) skips signal handler
	// installation. InitThreads enables the runtime's global call
	// serialization on versions that do not do so during initialization.
	SetProgramName func(name string)
	InitializeEx   func(initsigs int)
	InitThreads    func()
}
