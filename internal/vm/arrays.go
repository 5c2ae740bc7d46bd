package vm

import (
	"kate/internal/heap"
	"kate/internal/value"
)

// arrayAndIndex pops (array, index) and validates the null/bounds
// invariants common to every *aload/*astore opcode, per spec.md §4.7.
func (vm *VM) arrayAndIndex(f *Frame, pc int) (arr *heap.ArrayObject, idx int32, cont bool, thrown value.ObjectRef) {
	index := f.Pop().I32
	ref := f.Pop()
	if ref.IsNull() {
		cont, thrown = vm.handleOrPropagate(f, pc, "java/lang/NullPointerException", "")
		return nil, 0, cont, thrown
	}
	a := vm.Heap.Get(ref.Ref).(*heap.ArrayObject)
	if index < 0 || int(index) >= a.Length() {
		cont, thrown = vm.handleOrPropagate(f, pc, "java/lang/ArrayIndexOutOfBoundsException", "")
		return nil, 0, cont, thrown
	}
	return a, index, true, 0
}

func (vm *VM) opIALoad(f *Frame, pc int) (bool, value.ObjectRef) {
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	f.Push(value.Int32(a.Data.([]int32)[i]))
	return true, 0
}

func (vm *VM) opLALoad(f *Frame, pc int) (bool, value.ObjectRef) {
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	f.Push(value.Int64(a.Data.([]int64)[i]))
	return true, 0
}

func (vm *VM) opFALoad(f *Frame, pc int) (bool, value.ObjectRef) {
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	f.Push(value.Float32(a.Data.([]float32)[i]))
	return true, 0
}

func (vm *VM) opDALoad(f *Frame, pc int) (bool, value.ObjectRef) {
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	f.Push(value.Float64(a.Data.([]float64)[i]))
	return true, 0
}

func (vm *VM) opAALoad(f *Frame, pc int) (bool, value.ObjectRef) {
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	f.Push(value.Reference(a.Data.([]value.ObjectRef)[i]))
	return true, 0
}

// opByteCharShortLoad handles baload/caload/saload, which all ride on an
// []int32-backed array per heap.Heap.NewArray's representation choice;
// caload zero-extends, baload/saload sign-extend (already true of int32
// storage, so no extra masking is needed on read).
func (vm *VM) opByteCharShortLoad(f *Frame, pc int) (bool, value.ObjectRef) {
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	f.Push(value.Int32(a.Data.([]int32)[i]))
	return true, 0
}

func (vm *VM) opIAStore(f *Frame, pc int) (bool, value.ObjectRef) {
	v := f.Pop().I32
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	a.Data.([]int32)[i] = v
	return true, 0
}

func (vm *VM) opLAStore(f *Frame, pc int) (bool, value.ObjectRef) {
	v := f.Pop().I64
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	a.Data.([]int64)[i] = v
	return true, 0
}

func (vm *VM) opFAStore(f *Frame, pc int) (bool, value.ObjectRef) {
	v := f.Pop().F32
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	a.Data.([]float32)[i] = v
	return true, 0
}

func (vm *VM) opDAStore(f *Frame, pc int) (bool, value.ObjectRef) {
	v := f.Pop().F64
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	a.Data.([]float64)[i] = v
	return true, 0
}

func (vm *VM) opAAStore(f *Frame, pc int) (bool, value.ObjectRef) {
	v := f.Pop().Ref
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	a.Data.([]value.ObjectRef)[i] = v
	return true, 0
}

// opByteCharShortStore handles bastore/castore/sastore, narrowing the
// stored int32 to the element's bit width before writing back, per
// spec.md §4.7's "narrowing integer conversions take low bits" rule —
// boolean/byte/char/short all ride on the same []int32 backing array
// (heap.ArrayObject's representation choice), so the narrowing happens on
// write rather than via a distinct Go element type.
func (vm *VM) opByteCharShortStore(f *Frame, pc int, kind heap.ElementKind) (bool, value.ObjectRef) {
	v := f.Pop().I32
	a, i, cont, thr := vm.arrayAndIndex(f, pc)
	if a == nil {
		return cont, thr
	}
	switch kind {
	case heap.ElemBoolean, heap.ElemByte:
		v = int32(int8(v))
	case heap.ElemChar:
		v = int32(uint16(v))
	case heap.ElemShort:
		v = int32(int16(v))
	}
	a.Data.([]int32)[i] = v
	return true, 0
}
