package vm

import (
	"fmt"
	"io"
	"os"

	"kate/internal/classfile"
	"kate/internal/heap"
	"kate/internal/katelog"
	"kate/internal/kerrors"
	"kate/internal/loader"
	"kate/internal/native"
	"kate/internal/value"
)

// VM is Kate's interpreter: the call-frame stack, the output writers, and
// the handles to the Heap, Loader, and Native Bridge it drives.
// Per spec.md §9's "no process-wide singletons" design note, everything
// a running program needs lives on this value rather than in package-level
// state — there is exactly one VM per run, constructed by cmd/kate.
type VM struct {
	Loader  *loader.Loader
	Heap    *heap.Heap
	Natives *native.Registry
	Log     katelog.Logger

	Stdout io.Writer
	Stderr io.Writer

	frames []*Frame // the live call stack, for fillInStackTrace snapshots
}

// New wires a VM over an already-constructed Loader, Heap, and Native
// Registry, and sets the Loader's ClinitRunner to vm.RunClinit. Callers
// (cmd/kate, tests) are responsible for registering bootstrap natives
// before the first Load.
func New(l *loader.Loader, h *heap.Heap, natives *native.Registry, log katelog.Logger) *VM {
	if log == nil {
		log = katelog.Nop()
	}
	vm := &VM{Loader: l, Heap: h, Natives: natives, Log: log, Stdout: os.Stdout, Stderr: os.Stderr}
	l.SetClinitRunner(vm.RunClinit)
	return vm
}

// RunClinit executes a class's <clinit>, if present, as ordinary bytecode —
// the callback the Loader invokes from EnsureInitialized, per spec.md §4.4.
func (vm *VM) RunClinit(lc *loader.LoadedClass) error {
	m, ok := lc.MethodTable["<clinit>:()V"]
	if !ok {
		return nil
	}
	vm.resolveConstantValueStrings(lc)
	_, _, thrown := vm.callMethod(lc, m, nil)
	if thrown != 0 {
		return vm.exceptionInInitializerError(lc.Name, thrown)
	}
	return nil
}

// resolveConstantValueStrings eagerly interns String-typed ConstantValue
// static fields, per link.go's constantPoolValue deferral note: the linker
// cannot intern heap strings (it has no Heap access ordering guarantee
// before the VM exists), so the VM finishes that job right before running
// <clinit>, which is the first point a static String constant is observable.
func (vm *VM) resolveConstantValueStrings(lc *loader.LoadedClass) {
	if lc.CF == nil {
		return
	}
	for _, f := range lc.CF.Fields {
		if !f.IsStatic() {
			continue
		}
		cv, ok := classfile.FindAttribute(f.Attributes, "ConstantValue")
		if !ok {
			continue
		}
		idx, err := classfile.ConstantValueIndex(cv)
		if err != nil {
			continue
		}
		entry, err := lc.CF.ConstantPool.At(idx)
		if err != nil {
			continue
		}
		se, ok := entry.(classfile.StringEntry)
		if !ok {
			continue
		}
		s, err := lc.CF.ConstantPool.Utf8(se.StringIndex)
		if err != nil {
			continue
		}
		if slot, ok := lc.StaticSlots[f.Name+":"+f.Descriptor]; ok {
			*slot = value.Reference(vm.Heap.NewString([]byte(s), heap.EncodingUTF16))
		}
	}
}

// Run loads mainClass, builds a String[] from args, and invokes its
// public static void main(String[]) method, per spec.md §6's CLI contract.
// It returns the process exit code: 0 on normal termination, nonzero on an
// uncaught exception or a host-level load failure.
func (vm *VM) Run(mainClass string, args []string) int {
	lc, err := vm.Loader.Load(mainClass)
	if err != nil {
		fmt.Fprintf(vm.Stderr, "kate: cannot load %s: %v\n", mainClass, err)
		return 1
	}
	m, owner := vm.Loader.LookupMethod(lc, "main", "([Ljava/lang/String;)V")
	if m == nil {
		fmt.Fprintf(vm.Stderr, "kate: no main([Ljava/lang/String;)V in %s\n", mainClass)
		return 1
	}
	if err := vm.Loader.EnsureInitialized(lc); err != nil {
		fmt.Fprintf(vm.Stderr, "kate: %v\n", err)
		return 1
	}

	argsRef := vm.buildArgsArray(args)
	_, _, thrown := vm.callMethod(owner, m, []value.Value{value.Reference(argsRef)})
	if thrown != 0 {
		vm.printUncaught(thrown)
		return 1
	}
	return 0
}

func (vm *VM) buildArgsArray(args []string) value.ObjectRef {
	ref := vm.Heap.NewArray(heap.ElemRef, 0, len(args))
	arr := vm.Heap.Get(ref).(*heap.ArrayObject)
	data := arr.Data.([]value.ObjectRef)
	for i, a := range args {
		data[i] = vm.Heap.NewString([]byte(a), heap.EncodingUTF16)
	}
	return ref
}

// callMethod invokes method on class with already-marshaled argument
// values (one value.Value per descriptor parameter slot-group, i.e.
// category-2 arguments are a single entry here — see frame-setup below for
// the locals expansion), dispatching to the Native Bridge if the method
// carries ACC_NATIVE, per spec.md §4.7's "Native methods" rule.
func (vm *VM) callMethod(class *loader.LoadedClass, method *classfile.MethodInfo, args []value.Value) (result value.Value, hasResult bool, thrown value.ObjectRef) {
	if method.IsNative() {
		return vm.callNative(class, method, args)
	}
	if method.Code == nil {
		panic(kerrors.Internal("method %s.%s%s has no Code and is not native", class.Name, method.Name, method.Descriptor))
	}

	mt, err := classfile.ParseMethod(method.Descriptor)
	if err != nil {
		panic(kerrors.Internal("bad descriptor %q on %s.%s: %v", method.Descriptor, class.Name, method.Name, err))
	}

	locals := make([]value.Value, method.Code.MaxLocals)
	for i := range locals {
		locals[i] = value.Int32(0)
	}
	li := 0
	for _, a := range args {
		locals[li] = a
		if a.Slots() == 2 {
			locals[li+1] = value.Top
		}
		li += a.Slots()
	}

	f := NewFrame(class, method, locals)
	vm.frames = append(vm.frames, f)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()

	result, hasResult, thrown = vm.runFrame(f)
	_ = mt
	return
}

func (vm *VM) callNative(class *loader.LoadedClass, method *classfile.MethodInfo, args []value.Value) (result value.Value, hasResult bool, thrown value.ObjectRef) {
	fn, ok := vm.Natives.Lookup(class.Name, method.Name, method.Descriptor)
	if !ok {
		return value.Value{}, false, vm.raise("java/lang/UnsatisfiedLinkError", class.Name+"."+method.Name+method.Descriptor)
	}
	ctx := &native.Context{
		Heap:              vm.Heap,
		Stdout:            vm.Stdout,
		Stderr:            vm.Stderr,
		CaptureStackTrace: vm.snapshotStackTrace,
		Raise:             vm.raise,
	}
	res, thr, err := fn(args, ctx)
	if err != nil {
		panic(kerrors.Internal("native %s.%s%s failed: %v", class.Name, method.Name, method.Descriptor, err))
	}
	if thr != 0 {
		return value.Value{}, false, thr
	}
	if res == nil {
		return value.Value{}, false, 0
	}
	return *res, true, 0
}

// snapshotStackTrace captures the live call stack, innermost frame first,
// per spec.md §4.9's fillInStackTrace semantics.
func (vm *VM) snapshotStackTrace() []heap.StackTraceElement {
	out := make([]heap.StackTraceElement, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		out = append(out, heap.StackTraceElement{ClassName: f.Class.Name, MethodName: f.Method.Name})
	}
	return out
}

// printUncaught renders the literal diagnostic named in spec.md §4.9.
func (vm *VM) printUncaught(thrown value.ObjectRef) {
	inst, ok := vm.Heap.Get(thrown).(*heap.Instance)
	if !ok {
		fmt.Fprintf(vm.Stderr, "Uncaught exception in main: <non-throwable object>\n")
		return
	}
	className := "<unknown>"
	if lc := vm.Loader.ByID(inst.Class); lc != nil {
		className = lc.Name
	}
	msg := vm.throwableMessage(inst)
	if msg != "" {
		fmt.Fprintf(vm.Stderr, "Uncaught exception in main: %s: %s\n", className, msg)
	} else {
		fmt.Fprintf(vm.Stderr, "Uncaught exception in main: %s\n", className)
	}
	for _, e := range inst.StackTrace {
		fmt.Fprintf(vm.Stderr, "at %s.%s\n", e.ClassName, e.MethodName)
	}
}

// throwableMessage reads a throwable instance's message: the String field
// "message" if its class declares one, otherwise java.lang.Throwable's
// "detailMessage"; "" when neither exists or the field is null.
func (vm *VM) throwableMessage(inst *heap.Instance) string {
	lc := vm.Loader.ByID(inst.Class)
	if lc == nil {
		return ""
	}
	for _, name := range []string{"message", "detailMessage"} {
		if slot, ok := lc.FieldSlotIndex(name, "Ljava/lang/String;"); ok {
			v := inst.Fields[slot]
			if v.IsNull() {
				return ""
			}
			so, ok := vm.Heap.Get(v.Ref).(*heap.StringObject)
			if !ok {
				return ""
			}
			return stringObjectText(so)
		}
	}
	return ""
}

func stringObjectText(so *heap.StringObject) string {
	if so.Encoding == heap.EncodingLatin1 {
		return string(so.Bytes)
	}
	return classfile.DecodeModifiedUTF8(so.Bytes)
}

func (vm *VM) exceptionInInitializerError(className string, cause value.ObjectRef) error {
	inst, _ := vm.Heap.Get(cause).(*heap.Instance)
	msg := className
	if inst != nil {
		msg = className + ": " + vm.throwableMessage(inst)
	}
	return kerrors.Link("ExceptionInInitializerError: %s", msg)
}
