package pygo

import (
	"fmt"
	"runtime"

	"github.com/mkysylov/pygo/capi"
)

// Op identifies one arithmetic or bitwise operator. The proxy exposes
// named sugar methods per operator, but every one of them dispatches
// through the same three entry points (Binary, InPlace, Unary) so the
// mapping onto the foreign number protocol lives in one place.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpMatMul
	OpFloorDiv
	OpTrueDiv
	OpMod
	OpPow
	OpLshift
	OpRshift
	OpAnd
	OpXor
	OpOr
	OpNeg
	OpPos
	OpInvert
)

var opNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpMatMul: "@",
	OpFloorDiv: "//", OpTrueDiv: "/", OpMod: "%", OpPow: "**",
	OpLshift: "<<", OpRshift: ">>", OpAnd: "&", OpXor: "^", OpOr: "|",
	OpNeg: "-", OpPos: "+", OpInvert: "~",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

func binaryEntry(t *capi.Table, op Op) func(a, b capi.Handle) capi.Handle {
	switch op {
	case OpAdd:
		return t.Add
	case OpSub:
		return t.Subtract
	case OpMul:
		return t.Multiply
	case OpMatMul:
		return t.MatrixMultiply
	case OpFloorDiv:
		return t.FloorDivide
	case OpTrueDiv:
		return t.TrueDivide
	case OpMod:
		return t.Remainder
	case OpLshift:
		return t.Lshift
	case OpRshift:
		return t.Rshift
	case OpAnd:
		return t.And
	case OpXor:
		return t.Xor
	case OpOr:
		return t.Or
	}
	return nil
}

func inPlaceEntry(t *capi.Table, op Op) func(a, b capi.Handle) capi.Handle {
	switch op {
	case OpAdd:
		return t.InPlaceAdd
	case OpSub:
		return t.InPlaceSubtract
	case OpMul:
		return t.InPlaceMultiply
	case OpMatMul:
		return t.InPlaceMatrixMultiply
	case OpFloorDiv:
		return t.InPlaceFloorDivide
	case OpTrueDiv:
		return t.InPlaceTrueDivide
	case OpMod:
		return t.InPlaceRemainder
	case OpLshift:
		return t.InPlaceLshift
	case OpRshift:
		return t.InPlaceRshift
	case OpAnd:
		return t.InPlaceAnd
	case OpXor:
		return t.InPlaceXor
	case OpOr:
		return t.InPlaceOr
	}
	return nil
}

// Binary applies a binary operator with the object on the left and
// returns a new proxy for the result.
func (o *Obj) Binary(op Op, operand any) (*Obj, error) {
	b, err := o.py.box(operand)
	if err != nil {
		return nil, err
	}
	defer b.release()

	var h capi.Handle
	if op == OpPow {
		h = o.py.tab.Power(o.handle(), b.h, o.py.none.handle())
	} else {
		entry := binaryEntry(o.py.tab, op)
		if entry == nil {
			return nil, fmt.Errorf("pygo: %v is not a binary operator", op)
		}
		h = entry(o.handle(), b.h)
	}
	runtime.KeepAlive(o)
	return o.py.received(h)
}

// InPlace applies an in-place operator and replaces the proxy's managed
// reference with whatever the foreign runtime returned: the same
// object when the type mutated in place, a fresh one otherwise. The
// previous reference is released synchronously.
func (o *Obj) InPlace(op Op, operand any) error {
	b, err := o.py.box(operand)
	if err != nil {
		return err
	}
	defer b.release()

	var h capi.Handle
	if op == OpPow {
		h = o.py.tab.InPlacePower(o.handle(), b.h, o.py.none.handle())
	} else {
		entry := inPlaceEntry(o.py.tab, op)
		if entry == nil {
			return fmt.Errorf("pygo: %v is not an in-place operator", op)
		}
		h = entry(o.handle(), b.h)
	}
	if h == 0 {
		runtime.KeepAlive(o)
		return o.py.failed()
	}
	next := o.py.newRef(h, false)
	prev := o.ref
	o.ref = next
	prev.release()
	return nil
}

// Unary applies a unary operator and returns a new proxy.
func (o *Obj) Unary(op Op) (*Obj, error) {
	var h capi.Handle
	switch op {
	case OpNeg:
		h = o.py.tab.Negative(o.handle())
	case OpPos:
		h = o.py.tab.Positive(o.handle())
	case OpInvert:
		h = o.py.tab.Invert(o.handle())
	default:
		return nil, fmt.Errorf("pygo: %v is not a unary operator", op)
	}
	runtime.KeepAlive(o)
	return o.py.received(h)
}

// PowMod returns the object raised to exp modulo mod, through the
// three-operand power entry point.
func (o *Obj) PowMod(exp, mod any) (*Obj, error) {
	e, err := o.py.box(exp)
	if err != nil {
		return nil, err
	}
	defer e.release()
	m, err := o.py.box(mod)
	if err != nil {
		return nil, err
	}
	defer m.release()
	h := o.py.tab.Power(o.handle(), e.h, m.h)
	runtime.KeepAlive(o)
	return o.py.received(h)
}

// Named operator sugar. Thin host-side wrappers over the generic
// dispatch points.

func (o *Obj) Add(v any) (*Obj, error)      { return o.Binary(OpAdd, v) }
func (o *Obj) Sub(v any) (*Obj, error)      { return o.Binary(OpSub, v) }
func (o *Obj) Mul(v any) (*Obj, error)      { return o.Binary(OpMul, v) }
func (o *Obj) MatMul(v any) (*Obj, error)   { return o.Binary(OpMatMul, v) }
func (o *Obj) FloorDiv(v any) (*Obj, error) { return o.Binary(OpFloorDiv, v) }
func (o *Obj) TrueDiv(v any) (*Obj, error)  { return o.Binary(OpTrueDiv, v) }
func (o *Obj) Mod(v any) (*Obj, error)      { return o.Binary(OpMod, v) }
func (o *Obj) Pow(v any) (*Obj, error)      { return o.Binary(OpPow, v) }
func (o *Obj) Lshift(v any) (*Obj, error)   { return o.Binary(OpLshift, v) }
func (o *Obj) Rshift(v any) (*Obj, error)   { return o.Binary(OpRshift, v) }
func (o *Obj) BitAnd(v any) (*Obj, error)   { return o.Binary(OpAnd, v) }
func (o *Obj) BitXor(v any) (*Obj, error)   { return o.Binary(OpXor, v) }
func (o *Obj) BitOr(v any) (*Obj, error)    { return o.Binary(OpOr, v) }

func (o *Obj) IAdd(v any) error      { return o.InPlace(OpAdd, v) }
func (o *Obj) ISub(v any) error      { return o.InPlace(OpSub, v) }
func (o *Obj) IMul(v any) error      { return o.InPlace(OpMul, v) }
func (o *Obj) IMatMul(v any) error   { return o.InPlace(OpMatMul, v) }
func (o *Obj) IFloorDiv(v any) error { return o.InPlace(OpFloorDiv, v) }
func (o *Obj) ITrueDiv(v any) error  { return o.InPlace(OpTrueDiv, v) }
func (o *Obj) IMod(v any) error      { return o.InPlace(OpMod, v) }
func (o *Obj) IPow(v any) error      { return o.InPlace(OpPow, v) }
func (o *Obj) ILshift(v any) error   { return o.InPlace(OpLshift, v) }
func (o *Obj) IRshift(v any) error   { return o.InPlace(OpRshift, v) }
func (o *Obj) IBitAnd(v any) error   { return o.InPlace(OpAnd, v) }
func (o *Obj) IBitXor(v any) error   { return o.InPlace(OpXor, v) }
func (o *Obj) IBitOr(v any) error    { return o.InPlace(OpOr, v) }

func (o *Obj) Neg() (*Obj, error)    { return o.Unary(OpNeg) }
func (o *Obj) Pos() (*Obj, error)    { return o.Unary(OpPos) }
func (o *Obj) Invert() (*Obj, error) { return o.Unary(OpInvert) }
