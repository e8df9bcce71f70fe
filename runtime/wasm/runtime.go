// Package wasm drives a WebAssembly build of the CPython interpreter
// through wazero. Exported C API symbols become call-table entries;
// handles are the module's 32-bit object pointers, widened.
package wasm

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tliron/commonlog"

	"github.com/mkysylov/pygo/capi"
)

var log = commonlog.GetLogger("pygo.wasm")

// Runtime wraps one instantiated interpreter module.
type Runtime struct {
	ctx     context.Context
	runtime wazero.Runtime
	module  api.Module
	memory  api.Memory

	malloc api.Function
	free   api.Function
	// bump allocation fallback for modules without an exported malloc;
	// such scratch memory is never reclaimed.
	bump uint32

	tab *capi.Table
}

// Open compiles and instantiates an interpreter module from a wasm
// binary on disk.
func Open(ctx context.Context, path string) (*Runtime, error) {
	binary, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	r := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	cfg := wazero.NewModuleConfig().
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithName("interpreter")
	module, err := r.InstantiateWithConfig(ctx, binary, cfg)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("instantiate %s: %w", path, err)
	}

	rt := &Runtime{
		ctx:     ctx,
		runtime: r,
		module:  module,
		memory:  module.Memory(),
		malloc:  module.ExportedFunction("malloc"),
		free:    module.ExportedFunction("free"),
	}
	if rt.malloc == nil {
		if heap := module.ExportedGlobal("__heap_base"); heap != nil {
			rt.bump = uint32(heap.Get())
		} else {
			rt.bump = uint32(rt.memory.Size())
			log.Noticef("no malloc or __heap_base export, growing memory for scratch")
		}
	}
	rt.tab = rt.buildTable()
	log.Infof("instantiated interpreter module %s", path)
	return rt, nil
}

// Table returns the populated call table.
func (rt *Runtime) Table() *capi.Table {
	return rt.tab
}

// Close releases the module and the wazero runtime.
func (rt *Runtime) Close() error {
	return rt.runtime.Close(rt.ctx)
}

// call invokes an exported function, treating a trap as a fatal
// backend failure.
func (rt *Runtime) call(f api.Function, args ...uint64) uint64 {
	results, err := f.Call(rt.ctx, args...)
	if err != nil {
		panic(fmt.Sprintf("wasm: interpreter trap: %v", err))
	}
	if len(results) == 0 {
		return 0
	}
	return results[0]
}

func (rt *Runtime) fn(name string) api.Function {
	f := rt.module.ExportedFunction(name)
	if f == nil {
		panic("wasm: interpreter module does not export " + name)
	}
	return f
}

// alloc reserves scratch memory inside the module.
func (rt *Runtime) alloc(n uint32) uint32 {
	if rt.malloc != nil {
		return uint32(rt.call(rt.malloc, uint64(n)))
	}
	p := rt.bump
	rt.bump += n
	for rt.bump > uint32(rt.memory.Size()) {
		if _, ok := rt.memory.Grow(1); !ok {
			panic("wasm: cannot grow interpreter memory")
		}
	}
	return p
}

func (rt *Runtime) release(p uint32) {
	if rt.free != nil {
		rt.call(rt.free, uint64(p))
	}
}

// writeString copies a Go string into module memory, NUL-terminated,
// and returns its address.
func (rt *Runtime) writeString(s string) uint32 {
	p := rt.alloc(uint32(len(s)) + 1)
	if !rt.memory.Write(p, append([]byte(s), 0)) {
		panic("wasm: string write out of range")
	}
	return p
}

// readString copies a NUL-terminated string out of module memory.
func (rt *Runtime) readString(p uint32) string {
	if p == 0 {
		return ""
	}
	var buf []byte
	for {
		b, ok := rt.memory.ReadByte(p + uint32(len(buf)))
		if !ok || b == 0 {
			return string(buf)
		}
		buf = append(buf, b)
	}
}

func handle(v uint64) capi.Handle {
	return capi.Handle(uint32(v))
}

// h1 wraps a one-handle-in, one-handle-out export.
func (rt *Runtime) h1(name string) func(capi.Handle) capi.Handle {
	f := rt.fn(name)
	return func(o capi.Handle) capi.Handle {
		return handle(rt.call(f, uint64(o)))
	}
}

// h2 wraps a two-handles-in, handle-out export.
func (rt *Runtime) h2(name string) func(a, b capi.Handle) capi.Handle {
	f := rt.fn(name)
	return func(a, b capi.Handle) capi.Handle {
		return handle(rt.call(f, uint64(a), uint64(b)))
	}
}

// h3 wraps a three-handles-in, handle-out export.
func (rt *Runtime) h3(name string) func(a, b, c capi.Handle) capi.Handle {
	f := rt.fn(name)
	return func(a, b, c capi.Handle) capi.Handle {
		return handle(rt.call(f, uint64(a), uint64(b), uint64(c)))
	}
}

// status1 wraps a handle-in, C-int-out export.
func (rt *Runtime) status1(name string) func(capi.Handle) int32 {
	f := rt.fn(name)
	return func(o capi.Handle) int32 {
		return int32(uint32(rt.call(f, uint64(o))))
	}
}

// withCString runs fn with a string temporarily placed in module memory.
func (rt *Runtime) withCString(s string, fn func(p uint32) uint64) uint64 {
	p := rt.writeString(s)
	defer rt.release(p)
	return fn(p)
}
