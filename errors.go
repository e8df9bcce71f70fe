package pygo

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/mkysylov/pygo/capi"
)

// foreignModule marks frames that executed inside the foreign runtime.
const foreignModule = "<python>"

// modulePath is trimmed from the host side of merged stack traces: the
// frames of the translation machinery itself are noise to the caller.
const modulePath = "github.com/mkysylov/pygo."

// Frame is one entry of a merged stack trace.
type Frame struct {
	Module   string
	Function string
	File     string
	Line     int
}

// Error is a foreign runtime error translated into a host error. The
// trace lists foreign frames first, innermost first, followed by the
// host frames below the translation boundary. It is immutable once
// constructed and always recoverable by the caller.
type Error struct {
	// Type is the foreign exception type name, e.g. "ValueError".
	Type string
	// Message is the foreign exception text.
	Message string
	// Trace is the merged stack, innermost frame first.
	Trace []Frame
}

func (e *Error) Error() string {
	return "[" + e.Type + "] " + e.Message
}

// Traceback renders the merged trace, one frame per line, innermost
// first.
func (e *Error) Traceback() string {
	var b strings.Builder
	b.WriteString(e.Error())
	for _, f := range e.Trace {
		b.WriteString("\n\tat ")
		b.WriteString(f.Module)
		b.WriteByte('.')
		b.WriteString(f.Function)
		b.WriteByte('(')
		b.WriteString(f.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
		b.WriteByte(')')
	}
	return b.String()
}

// failed resolves a failure sentinel from a foreign call. If the error
// indicator is set, the error is fetched and translated. A sentinel
// with no error set is a defect in the bridge or the backend, not a
// runtime condition, and is fatal.
func (py *Python) failed() error {
	if err := py.errCheck(); err != nil {
		return err
	}
	panic("pygo: foreign call failed but the error indicator is clear")
}

// errCheck is the single chokepoint for error-state inspection: if the
// indicator is set it fetches and clears the (type, value, traceback)
// triple, normalizes it, and builds the translated error. Returns nil
// when the indicator is clear.
func (py *Python) errCheck() error {
	if py.tab.ErrOccurred() == 0 {
		return nil
	}
	t, v, tb := py.tab.ErrFetch()
	t, v, tb = py.tab.ErrNormalize(t, v, tb)

	e := &Error{Type: "Exception"}
	if t != 0 {
		if name, ok := py.quietAttrStr(t, "__name__"); ok {
			e.Type = name
		}
	}
	if v != 0 {
		if msg, ok := py.quietStr(v); ok {
			e.Message = msg
		}
	}
	e.Trace = append(py.foreignFrames(tb), py.hostFrames()...)

	py.tab.DecRef(t)
	py.tab.DecRef(v)
	py.tab.DecRef(tb)
	return e
}

// foreignFrames walks the traceback chain, oldest frame first, then
// reverses so the deepest foreign frame ends up innermost.
func (py *Python) foreignFrames(tb capi.Handle) []Frame {
	noneH := py.none.handle()
	var frames []Frame

	// Walking borrows nothing: every attribute fetched here is an owned
	// intermediate that is dropped before the next step.
	cur := tb
	if cur != 0 {
		py.tab.IncRef(cur)
	}
	for cur != 0 && cur != noneH {
		var f Frame
		f.Module = foreignModule

		if lineObj := py.quietAttr(cur, "tb_lineno"); lineObj != 0 {
			f.Line = int(py.tab.LongAsInt64(lineObj))
			py.quietClear()
			py.tab.DecRef(lineObj)
		}
		if frameObj := py.quietAttr(cur, "tb_frame"); frameObj != 0 {
			if codeObj := py.quietAttr(frameObj, "f_code"); codeObj != 0 {
				f.Function, _ = py.quietAttrStr(codeObj, "co_name")
				f.File, _ = py.quietAttrStr(codeObj, "co_filename")
				py.tab.DecRef(codeObj)
			}
			py.tab.DecRef(frameObj)
		}
		frames = append(frames, f)

		next := py.quietAttr(cur, "tb_next")
		py.tab.DecRef(cur)
		cur = next
	}
	if cur != 0 {
		py.tab.DecRef(cur)
	}

	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}

// hostFrames captures the host stack below the translation boundary,
// trimming every frame that belongs to this package.
func (py *Python) hostFrames() []Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	iter := runtime.CallersFrames(pcs[:n])

	var frames []Frame
	trimming := true
	for {
		fr, more := iter.Next()
		internal := strings.HasPrefix(fr.Function, modulePath)
		if trimming && internal {
			if !more {
				break
			}
			continue
		}
		trimming = false
		pkg, fn := splitFuncName(fr.Function)
		frames = append(frames, Frame{Module: pkg, Function: fn, File: fr.File, Line: fr.Line})
		if !more {
			break
		}
	}
	return frames
}

// quietAttr fetches an attribute without entering error translation;
// failure clears the indicator and yields the null handle.
func (py *Python) quietAttr(o capi.Handle, name string) capi.Handle {
	h := py.tab.GetAttr(o, name)
	if h == 0 {
		py.quietClear()
	}
	return h
}

// quietAttrStr fetches an attribute and decodes its str() text.
func (py *Python) quietAttrStr(o capi.Handle, name string) (string, bool) {
	h := py.quietAttr(o, name)
	if h == 0 {
		return "", false
	}
	defer py.tab.DecRef(h)
	return py.quietStr(h)
}

// quietStr decodes str(o) without entering error translation.
func (py *Python) quietStr(o capi.Handle) (string, bool) {
	sh := py.tab.Str(o)
	if sh == 0 {
		py.quietClear()
		return "", false
	}
	defer py.tab.DecRef(sh)
	s, ok := py.tab.UnicodeAsUTF8(sh)
	if !ok {
		py.quietClear()
		return "", false
	}
	return s, true
}

// quietClear discards whatever the error indicator holds. Used only by
// the translator's own best-effort helpers.
func (py *Python) quietClear() {
	t, v, tb := py.tab.ErrFetch()
	py.tab.DecRef(t)
	py.tab.DecRef(v)
	py.tab.DecRef(tb)
}

func splitFuncName(full string) (pkg, name string) {
	// runtime func names look like "path/to/pkg.Func" or
	// "path/to/pkg.(*Type).Method".
	slash := strings.LastIndexByte(full, '/')
	dot := strings.IndexByte(full[slash+1:], '.')
	if dot < 0 {
		return "", full
	}
	dot += slash + 1
	return full[:dot], full[dot+1:]
}
