package vm

import (
	"kate/internal/classfile"
	"kate/internal/heap"
	"kate/internal/value"
)

// popArgs pops a method's argument slots off f's operand stack in
// descriptor order (category-2 arguments occupy one stack Pop here — the
// operand stack always holds one complete value per entry, per spec.md's
// glossary note — but two locals slots once copied into a callee frame).
func popArgs(f *Frame, mt classfile.MethodType) []value.Value {
	args := make([]value.Value, len(mt.Params))
	for i := len(mt.Params) - 1; i >= 0; i-- {
		args[i] = f.Pop()
	}
	return args
}

// opInvokeStatic resolves and calls a static method, initializing its
// declaring class first, per spec.md §4.7.
func (vm *VM) opInvokeStatic(f *Frame, pc int, idx uint16) (cont bool, thrown value.ObjectRef) {
	className, name, desc, err := f.Class.CF.ConstantPool.RefTarget(idx)
	if err != nil {
		panic(err)
	}
	lc, err := vm.Loader.Load(className)
	if err != nil {
		panic(err)
	}
	mt, err := classfile.ParseMethod(desc)
	if err != nil {
		panic(err)
	}
	args := popArgs(f, mt)
	if err := vm.Loader.EnsureInitialized(lc); err != nil {
		panic(err)
	}
	m, owner := vm.Loader.LookupMethod(lc, name, desc)
	if m == nil {
		return vm.handleOrPropagate(f, pc, "java/lang/NoSuchMethodError", className+"."+name+desc)
	}
	result, hasResult, thr := vm.callMethod(owner, m, args)
	if thr != 0 {
		return vm.handleOrPropagateThrown(f, pc, thr)
	}
	if hasResult {
		f.Push(result)
	}
	return true, 0
}

// opInvokeSpecial resolves via the named class exactly (no virtual
// re-dispatch), for <init>, private methods, and super.m() calls.
func (vm *VM) opInvokeSpecial(f *Frame, pc int, idx uint16) (cont bool, thrown value.ObjectRef) {
	className, name, desc, err := f.Class.CF.ConstantPool.RefTarget(idx)
	if err != nil {
		panic(err)
	}
	lc, err := vm.Loader.Load(className)
	if err != nil {
		panic(err)
	}
	mt, err := classfile.ParseMethod(desc)
	if err != nil {
		panic(err)
	}
	args := popArgs(f, mt)
	recv := f.Pop()
	if recv.IsNull() {
		return vm.handleOrPropagate(f, pc, "java/lang/NullPointerException", "")
	}
	m, owner := vm.Loader.LookupMethod(lc, name, desc)
	if m == nil {
		return vm.handleOrPropagate(f, pc, "java/lang/NoSuchMethodError", className+"."+name+desc)
	}
	full := append([]value.Value{recv}, args...)
	result, hasResult, thr := vm.callMethod(owner, m, full)
	if thr != 0 {
		return vm.handleOrPropagateThrown(f, pc, thr)
	}
	if hasResult {
		f.Push(result)
	}
	return true, 0
}

// opInvokeVirtual resolves statically to (class, name, desc) but dispatches
// by walking the receiver's runtime class upward, per spec.md §4.7.
func (vm *VM) opInvokeVirtual(f *Frame, pc int, idx uint16) (cont bool, thrown value.ObjectRef) {
	className, name, desc, err := f.Class.CF.ConstantPool.RefTarget(idx)
	if err != nil {
		panic(err)
	}
	mt, err := classfile.ParseMethod(desc)
	if err != nil {
		panic(err)
	}
	args := popArgs(f, mt)
	recv := f.Pop()
	if recv.IsNull() {
		return vm.handleOrPropagate(f, pc, "java/lang/NullPointerException", "")
	}
	_ = className
	inst, ok := vm.Heap.Get(recv.Ref).(*heap.Instance)
	if !ok {
		return vm.handleOrPropagate(f, pc, "java/lang/IncompatibleClassChangeError", name+desc)
	}
	runtimeClass := vm.Loader.ByID(inst.Class)
	m, owner := vm.Loader.LookupMethod(runtimeClass, name, desc)
	if m == nil || m.IsAbstract() {
		return vm.handleOrPropagate(f, pc, "java/lang/AbstractMethodError", runtimeClass.Name+"."+name+desc)
	}
	full := append([]value.Value{recv}, args...)
	result, hasResult, thr := vm.callMethod(owner, m, full)
	if thr != 0 {
		return vm.handleOrPropagateThrown(f, pc, thr)
	}
	if hasResult {
		f.Push(result)
	}
	return true, 0
}

// opInvokeInterface is invokevirtual's counterpart for interface-typed call
// sites: the same receiver-class walk, but method resolution also searches
// the interface hierarchy (default methods), per spec.md §4.7.
func (vm *VM) opInvokeInterface(f *Frame, pc int, idx uint16) (cont bool, thrown value.ObjectRef) {
	_, name, desc, err := f.Class.CF.ConstantPool.RefTarget(idx)
	if err != nil {
		panic(err)
	}
	mt, err := classfile.ParseMethod(desc)
	if err != nil {
		panic(err)
	}
	args := popArgs(f, mt)
	recv := f.Pop()
	if recv.IsNull() {
		return vm.handleOrPropagate(f, pc, "java/lang/NullPointerException", "")
	}
	inst, ok := vm.Heap.Get(recv.Ref).(*heap.Instance)
	if !ok {
		return vm.handleOrPropagate(f, pc, "java/lang/IncompatibleClassChangeError", name+desc)
	}
	runtimeClass := vm.Loader.ByID(inst.Class)
	m, owner, err := vm.Loader.LookupInterfaceMethod(runtimeClass, name, desc)
	if err != nil {
		return vm.handleOrPropagate(f, pc, "java/lang/IncompatibleClassChangeError", err.Error())
	}
	if m == nil || m.IsAbstract() {
		return vm.handleOrPropagate(f, pc, "java/lang/AbstractMethodError", runtimeClass.Name+"."+name+desc)
	}
	full := append([]value.Value{recv}, args...)
	result, hasResult, thr := vm.callMethod(owner, m, full)
	if thr != 0 {
		return vm.handleOrPropagateThrown(f, pc, thr)
	}
	if hasResult {
		f.Push(result)
	}
	return true, 0
}

// opInvokeDynamic is a structural stub per spec.md §4.7/§9's stated minimum
// obligation: invokedynamic call sites parse (the constant pool entry
// already decoded fully) but raise UnsupportedOperationException rather
// than running a bootstrap method.
func (vm *VM) opInvokeDynamic(f *Frame, pc int, idx uint16) (cont bool, thrown value.ObjectRef) {
	_ = idx
	return vm.handleOrPropagate(f, pc, "java/lang/UnsupportedOperationException", "invokedynamic is not executed")
}

// handleOrPropagate raises className(message) and searches f's exception
// table at pc, matching the (cont, thrown) contract every opXxx helper
// returns to runFrame's dispatch loop.
func (vm *VM) handleOrPropagate(f *Frame, pc int, className, message string) (bool, value.ObjectRef) {
	handled, thrown := vm.raiseOrHandle(f, pc, className, message)
	if handled {
		return true, 0
	}
	return false, thrown
}

// handleOrPropagateThrown is handleOrPropagate for an already-constructed
// throwable (propagated out of a callee invocation) rather than one Kate
// must synthesize.
func (vm *VM) handleOrPropagateThrown(f *Frame, pc int, thrown value.ObjectRef) (bool, value.ObjectRef) {
	if vm.tryHandle(f, pc, thrown) {
		return true, 0
	}
	return false, thrown
}
