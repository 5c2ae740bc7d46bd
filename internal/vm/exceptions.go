package vm

import (
	"kate/internal/classfile"
	"kate/internal/heap"
	"kate/internal/kerrors"
	"kate/internal/loader"
	"kate/internal/value"
)

// tryHandle implements spec.md §4.9's exception-table search: the first
// entry in f's method whose [start,end) range contains pc and whose
// catch_type is either 0 (any/finally) or assignable-from thrown's class.
// On a match it resets the operand stack, pushes the throwable, and moves
// pc to the handler, returning true. On no match it returns false, leaving
// f untouched so the caller can pop the frame and propagate.
func (vm *VM) tryHandle(f *Frame, pc int, thrown value.ObjectRef) bool {
	inst, ok := vm.Heap.Get(thrown).(*heap.Instance)
	if !ok {
		return false
	}
	if f.Code == nil {
		return false
	}
	for _, e := range f.Code.ExceptionTable {
		if pc < int(e.StartPC) || pc >= int(e.EndPC) {
			continue
		}
		if e.CatchType == 0 {
			f.PC = int(e.HandlerPC)
			f.SP = 0
			f.Push(value.Reference(thrown))
			return true
		}
		catchName, err := f.Class.CF.ConstantPool.ClassName(e.CatchType)
		if err != nil {
			continue
		}
		catchClass, err := vm.Loader.Load(catchName)
		if err != nil {
			continue
		}
		if vm.Loader.IsAssignableFrom(inst.Class, catchClass.ID) {
			f.PC = int(e.HandlerPC)
			f.SP = 0
			f.Push(value.Reference(thrown))
			return true
		}
	}
	return false
}

// raise synthesizes a VM-internal throwable of className carrying message,
// per spec.md §4.9: constructed by invoking the class's constructor via
// the normal invocation path, exactly like a user-thrown exception.
func (vm *VM) raise(className, message string) value.ObjectRef {
	lc, err := vm.Loader.Load(className)
	if err != nil {
		panic(kerrors.Internal("cannot synthesize %s: bootstrap class missing: %v", className, err))
	}
	return vm.construct(lc, message)
}

// construct allocates an instance of lc and runs its String-message (or
// no-arg) constructor, capturing a stack-trace snapshot unconditionally —
// Kate's automatic fillInStackTrace-at-construction-time policy, per
// SPEC_FULL.md supplement #3.
func (vm *VM) construct(lc *loader.LoadedClass, message string) value.ObjectRef {
	if err := vm.Loader.EnsureInitialized(lc); err != nil {
		panic(kerrors.Internal("cannot initialize %s: %v", lc.Name, err))
	}
	fields := make([]value.Value, len(lc.FieldLayout))
	for i, slot := range lc.FieldLayout {
		ft, _, _ := classfile.ParseField(slot.Descriptor)
		fields[i] = value.DefaultFor(ft.Kind)
	}
	ref := vm.Heap.NewInstance(lc.ID, fields)
	if inst, ok := vm.Heap.Get(ref).(*heap.Instance); ok {
		inst.StackTrace = vm.snapshotStackTrace()
	}

	if m, owner := vm.Loader.LookupMethod(lc, "<init>", "(Ljava/lang/String;)V"); m != nil && message != "" {
		msgRef := vm.Heap.NewString([]byte(message), heap.EncodingUTF16)
		vm.callMethod(owner, m, []value.Value{value.Reference(ref), value.Reference(msgRef)})
		return ref
	}
	if m, owner := vm.Loader.LookupMethod(lc, "<init>", "()V"); m != nil {
		vm.callMethod(owner, m, []value.Value{value.Reference(ref)})
		if message != "" {
			if slot, ok := lc.FieldSlotIndex("message", "Ljava/lang/String;"); ok {
				msgRef := vm.Heap.NewString([]byte(message), heap.EncodingUTF16)
				vm.Heap.SetField(ref, slot, value.Reference(msgRef))
			}
		}
		return ref
	}
	return ref
}

// raiseOrHandle synthesizes a throwable of className (spec.md §4.9's VM-
// raised exceptions: NPE, ArithmeticException, ArrayIndexOutOfBounds, ...)
// and immediately searches f's own exception table starting at pc, since a
// VM-raised exception's "throwing instruction" is simply the opcode that
// detected the fault. handled reports whether f.PC/f.SP were rewound to a
// catch handler; when handled is false, runFrame must return thrown to its
// caller unchanged.
func (vm *VM) raiseOrHandle(f *Frame, pc int, className, message string) (handled bool, thrown value.ObjectRef) {
	thrown = vm.raise(className, message)
	return vm.tryHandle(f, pc, thrown), thrown
}
