// Package native implements Kate's Native Bridge: a registry mapping
// class.method:descriptor to host functions, used for methods carrying the
// ACC_NATIVE flag instead of a Code attribute.
//
// The registry table is grounded on the teacher's RegisterBuiltin /
// functions map[string]*bytecode.Function pattern in internal/vm/vm.go,
// keyed here by (class, method, descriptor) instead of by bare name.
package native

import (
	"io"

	cmap "github.com/orcaman/concurrent-map/v2"

	"kate/internal/heap"
	"kate/internal/value"
)

// Context is the host-capability handle a native function receives: the
// heap (for allocating and reading objects), the configured
// stdout/stderr writers the CLI contract names in SPEC_FULL.md §6, a
// callback to snapshot the current call stack for fillInStackTrace, and a
// callback to construct a throwable by class name. Kept as
// a plain struct (rather than an interface into internal/vm) so that
// internal/native never imports internal/vm — internal/vm is the one that
// depends on internal/native, not the other way around.
type Context struct {
	Heap              *heap.Heap
	Stdout            io.Writer
	Stderr            io.Writer
	CaptureStackTrace func() []heap.StackTraceElement
	Raise             func(className, message string) value.ObjectRef
}

// Func is a native method implementation. It returns at most one of a
// result value or a thrown ObjectRef (a non-zero Thrown means the call
// raised an exception instead of returning normally); err is reserved for
// genuine host-level failures (among the bundled natives, System.arraycopy
// returns one when src or dst is not an array), which the VM treats as an
// internal error.
type Func func(args []value.Value, ctx *Context) (result *value.Value, thrown value.ObjectRef, err error)

// Registry is the process-wide (really: VM-scoped — see spec.md §9's "no
// process-wide singletons" note, Registry lives on the VM value) table of
// native implementations.
type Registry struct {
	funcs cmap.ConcurrentMap[string, Func]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: cmap.New[Func]()}
}

func key(class, method, descriptor string) string { return class + "." + method + ":" + descriptor }

// Register binds (class, method, descriptor) to fn, overwriting any prior
// binding.
func (r *Registry) Register(class, method, descriptor string, fn Func) {
	r.funcs.Set(key(class, method, descriptor), fn)
}

// Lookup finds the native bound to (class, method, descriptor).
func (r *Registry) Lookup(class, method, descriptor string) (Func, bool) {
	return r.funcs.Get(key(class, method, descriptor))
}
