package pygo_test

import (
	"testing"

	"github.com/mkysylov/pygo"
	"github.com/mkysylov/pygo/capi"
	"github.com/mkysylov/pygo/internal/fakepy"
)

// newPy builds a bridge over a fresh fake runtime with a usable eval
// builtin: it answers "6*7" with 42 and anything else with None.
func newPy(t *testing.T) (*fakepy.Runtime, *pygo.Python) {
	t.Helper()
	rt := fakepy.New()
	tab := rt.Table()

	eval := rt.NewFunc("eval", func(args []capi.Handle, kwargs capi.Handle) capi.Handle {
		if len(args) != 1 {
			rt.Raise("TypeError", "eval expected 1 argument")
			return 0
		}
		expr, ok := tab.UnicodeAsUTF8(args[0])
		if !ok {
			return 0
		}
		if expr == "6*7" {
			return tab.LongFromInt64(42)
		}
		return tab.BuildValue("")
	})
	rt.Register("eval", eval)
	tab.DecRef(eval)

	py, err := pygo.New(tab)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rt, py
}

func mustInt(t *testing.T, o *pygo.Obj) int64 {
	t.Helper()
	v, err := o.Int()
	if err != nil {
		t.Fatalf("Int: %v", err)
	}
	return v
}

func mustStr(t *testing.T, o *pygo.Obj) string {
	t.Helper()
	s, err := o.Str()
	if err != nil {
		t.Fatalf("Str: %v", err)
	}
	return s
}

func TestEval(t *testing.T) {
	_, py := newPy(t)

	result, err := py.Eval("6*7")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got := mustInt(t, result); got != 42 {
		t.Errorf("Eval(6*7) = %d, want 42", got)
	}
}

func TestEvalNone(t *testing.T) {
	_, py := newPy(t)

	result, err := py.Eval("pass")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	eq, err := result.Equal(py.None())
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if !eq {
		t.Error("expected the None singleton")
	}
}

func TestImport(t *testing.T) {
	rt, py := newPy(t)
	answer := rt.NewInt(42)
	rt.NewModule("answers", map[string]capi.Handle{"ultimate": answer})
	rt.Table().DecRef(answer)

	mod, err := py.Import("answers")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	attr, err := mod.Attr("ultimate")
	if err != nil {
		t.Fatalf("Attr: %v", err)
	}
	if got := mustInt(t, attr); got != 42 {
		t.Errorf("answers.ultimate = %d, want 42", got)
	}
}

func TestImportMissing(t *testing.T) {
	_, py := newPy(t)

	_, err := py.Import("no_such_module")
	if err == nil {
		t.Fatal("expected an import error")
	}
	perr, ok := err.(*pygo.Error)
	if !ok {
		t.Fatalf("error type = %T, want *pygo.Error", err)
	}
	if perr.Type != "ModuleNotFoundError" {
		t.Errorf("Type = %q, want ModuleNotFoundError", perr.Type)
	}
}

func TestRun(t *testing.T) {
	rt, py := newPy(t)

	if err := py.Run("x = 1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	sources := rt.RanSources()
	if len(sources) == 0 || sources[len(sources)-1] != "x = 1" {
		t.Errorf("runtime saw sources %q, want trailing %q", sources, "x = 1")
	}
}

func TestBuiltins(t *testing.T) {
	_, py := newPy(t)

	eval, err := py.Builtins().Item("eval")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if !eval.Callable() {
		t.Error("eval should be callable")
	}
}
