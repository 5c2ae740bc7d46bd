package vm

import (
	"kate/internal/classfile"
	"kate/internal/heap"
	"kate/internal/kerrors"
	"kate/internal/value"
)

// runFrame is Kate's dispatch loop: read the opcode at f.PC, compute its
// operand width, advance PC, act. Grounded on the teacher's dispatch.go
// mainLoop-labeled switch with inlined arithmetic fast paths — generalized
// from the teacher's dynamic-language opcode set to the JVM's, and from a
// function-pointer dispatch table to a dense switch (spec.md §9's Design
// Notes prefers this for the same reason: it lets the compiler inline the
// hot arithmetic cases).
//
// Every case that can raise an exception follows the same shape: compute
// whether to raise, call vm.handleOrPropagate(f, pc, class, msg) (or
// vm.handleOrPropagateThrown for an exception already propagated out of a
// callee), and either `continue` the loop on a local catch or `return` the
// propagated throwable to the caller.
func (vm *VM) runFrame(f *Frame) (result value.Value, hasResult bool, thrown value.ObjectRef) {
	for {
		pc := f.PC
		op := Opcode(f.u1())

		switch op {

		// ---- constants ----
		case OpNop:
		case OpAConstNull:
			f.Push(value.Null)
		case OpIConstM1:
			f.Push(value.Int32(-1))
		case OpIConst0:
			f.Push(value.Int32(0))
		case OpIConst1:
			f.Push(value.Int32(1))
		case OpIConst2:
			f.Push(value.Int32(2))
		case OpIConst3:
			f.Push(value.Int32(3))
		case OpIConst4:
			f.Push(value.Int32(4))
		case OpIConst5:
			f.Push(value.Int32(5))
		case OpLConst0:
			f.Push(value.Int64(0))
		case OpLConst1:
			f.Push(value.Int64(1))
		case OpFConst0:
			f.Push(value.Float32(0))
		case OpFConst1:
			f.Push(value.Float32(1))
		case OpFConst2:
			f.Push(value.Float32(2))
		case OpDConst0:
			f.Push(value.Float64(0))
		case OpDConst1:
			f.Push(value.Float64(1))
		case OpBipush:
			f.Push(value.Int32(int32(f.s1())))
		case OpSipush:
			f.Push(value.Int32(int32(f.s2())))
		case OpLdc:
			vm.ldc(f, uint16(f.u1()))
		case OpLdcW:
			vm.ldc(f, f.u2())
		case OpLdc2W:
			vm.ldc2(f, f.u2())

		// ---- locals: load ----
		case OpILoad:
			f.Push(f.Locals[f.u1()])
		case OpLLoad:
			f.Push(f.Locals[f.u1()])
		case OpFLoad:
			f.Push(f.Locals[f.u1()])
		case OpDLoad:
			f.Push(f.Locals[f.u1()])
		case OpALoad:
			f.Push(f.Locals[f.u1()])
		case OpILoad0, OpLLoad0, OpFLoad0, OpDLoad0, OpALoad0:
			f.Push(f.Locals[0])
		case OpILoad1, OpLLoad1, OpFLoad1, OpDLoad1, OpALoad1:
			f.Push(f.Locals[1])
		case OpILoad2, OpLLoad2, OpFLoad2, OpDLoad2, OpALoad2:
			f.Push(f.Locals[2])
		case OpILoad3, OpLLoad3, OpFLoad3, OpDLoad3, OpALoad3:
			f.Push(f.Locals[3])

		// ---- locals: store ----
		case OpIStore, OpLStore, OpFStore, OpDStore, OpAStore:
			n := f.u1()
			v := f.Pop()
			f.Locals[n] = v
			if v.Slots() == 2 {
				f.Locals[n+1] = value.Top
			}
		case OpIStore0, OpLStore0, OpFStore0, OpDStore0, OpAStore0:
			storeLocal(f, 0)
		case OpIStore1, OpLStore1, OpFStore1, OpDStore1, OpAStore1:
			storeLocal(f, 1)
		case OpIStore2, OpLStore2, OpFStore2, OpDStore2, OpAStore2:
			storeLocal(f, 2)
		case OpIStore3, OpLStore3, OpFStore3, OpDStore3, OpAStore3:
			storeLocal(f, 3)
		case OpIInc:
			n := f.u1()
			delta := int32(f.s1())
			f.Locals[n] = value.Int32(f.Locals[n].I32 + delta)

		// ---- array loads/stores ----
		case OpIALoad:
			if c, t := vm.opIALoad(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpLALoad:
			if c, t := vm.opLALoad(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpFALoad:
			if c, t := vm.opFALoad(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpDALoad:
			if c, t := vm.opDALoad(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpAALoad:
			if c, t := vm.opAALoad(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpBALoad, OpCALoad, OpSALoad:
			if c, t := vm.opByteCharShortLoad(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpIAStore:
			if c, t := vm.opIAStore(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpLAStore:
			if c, t := vm.opLAStore(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpFAStore:
			if c, t := vm.opFAStore(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpDAStore:
			if c, t := vm.opDAStore(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpAAStore:
			if c, t := vm.opAAStore(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpBAStore:
			if c, t := vm.opByteCharShortStore(f, pc, heap.ElemByte); !c {
				return value.Value{}, false, t
			}
		case OpCAStore:
			if c, t := vm.opByteCharShortStore(f, pc, heap.ElemChar); !c {
				return value.Value{}, false, t
			}
		case OpSAStore:
			if c, t := vm.opByteCharShortStore(f, pc, heap.ElemShort); !c {
				return value.Value{}, false, t
			}

		// ---- stack manipulation ----
		case OpPop:
			f.PopN(1)
		case OpPop2:
			// one cat-2 entry is already the whole value; only two cat-1
			// entries need popping together.
			if f.Peek(0).Slots() == 2 {
				f.PopN(1)
			} else {
				f.PopN(2)
			}
		case OpDup:
			v := f.Peek(0)
			f.Push(v)
		case OpDupX1:
			v1, v2 := f.Peek(0), f.Peek(1)
			f.PopN(2)
			f.Push(v1)
			f.Push(v2)
			f.Push(v1)
		case OpDupX2:
			v1, v2, v3 := f.Peek(0), f.Peek(1), f.Peek(2)
			f.PopN(3)
			f.Push(v1)
			f.Push(v3)
			f.Push(v2)
			f.Push(v1)
		case OpDup2:
			// form 2 (single cat-2 entry on top) degenerates to a plain dup;
			// form 1 (two cat-1 entries) duplicates the pair.
			if f.Peek(0).Slots() == 2 {
				f.Push(f.Peek(0))
			} else {
				v1, v2 := f.Peek(0), f.Peek(1)
				f.Push(v2)
				f.Push(v1)
			}
		case OpDup2X1:
			top := peekGroup(f, 0)
			skip := f.Peek(len(top))
			f.PopN(len(top) + 1)
			pushGroup(f, top)
			f.Push(skip)
			pushGroup(f, top)
		case OpDup2X2:
			top := peekGroup(f, 0)
			bottom := peekGroup(f, len(top))
			f.PopN(len(top) + len(bottom))
			pushGroup(f, top)
			pushGroup(f, bottom)
			pushGroup(f, top)
		case OpSwap:
			v1, v2 := f.Pop(), f.Pop()
			f.Push(v1)
			f.Push(v2)

		// ---- arithmetic: int ----
		case OpIAdd:
			b, a := f.Pop().I32, f.Pop().I32
			f.Push(value.Int32(a + b))
		case OpISub:
			b, a := f.Pop().I32, f.Pop().I32
			f.Push(value.Int32(a - b))
		case OpIMul:
			b, a := f.Pop().I32, f.Pop().I32
			f.Push(value.Int32(a * b))
		case OpIDiv:
			if c, t := vm.opIDiv(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpIRem:
			if c, t := vm.opIRem(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpINeg:
			f.Push(value.Int32(-f.Pop().I32))
		case OpIShl:
			b, a := f.Pop().I32, f.Pop().I32
			f.Push(value.Int32(a << (uint32(b) & 31)))
		case OpIShr:
			b, a := f.Pop().I32, f.Pop().I32
			f.Push(value.Int32(a >> (uint32(b) & 31)))
		case OpIUShr:
			b, a := f.Pop().I32, f.Pop().I32
			f.Push(value.Int32(int32(uint32(a) >> (uint32(b) & 31))))
		case OpIAnd:
			b, a := f.Pop().I32, f.Pop().I32
			f.Push(value.Int32(a & b))
		case OpIOr:
			b, a := f.Pop().I32, f.Pop().I32
			f.Push(value.Int32(a | b))
		case OpIXor:
			b, a := f.Pop().I32, f.Pop().I32
			f.Push(value.Int32(a ^ b))

		// ---- arithmetic: long ----
		case OpLAdd:
			b, a := f.Pop().I64, f.Pop().I64
			f.Push(value.Int64(a + b))
		case OpLSub:
			b, a := f.Pop().I64, f.Pop().I64
			f.Push(value.Int64(a - b))
		case OpLMul:
			b, a := f.Pop().I64, f.Pop().I64
			f.Push(value.Int64(a * b))
		case OpLDiv:
			if c, t := vm.opLDiv(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpLRem:
			if c, t := vm.opLRem(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpLNeg:
			f.Push(value.Int64(-f.Pop().I64))
		case OpLShl:
			b, a := f.Pop().I32, f.Pop().I64
			f.Push(value.Int64(a << (uint32(b) & 63)))
		case OpLShr:
			b, a := f.Pop().I32, f.Pop().I64
			f.Push(value.Int64(a >> (uint32(b) & 63)))
		case OpLUShr:
			b, a := f.Pop().I32, f.Pop().I64
			f.Push(value.Int64(int64(uint64(a) >> (uint32(b) & 63))))
		case OpLAnd:
			b, a := f.Pop().I64, f.Pop().I64
			f.Push(value.Int64(a & b))
		case OpLOr:
			b, a := f.Pop().I64, f.Pop().I64
			f.Push(value.Int64(a | b))
		case OpLXor:
			b, a := f.Pop().I64, f.Pop().I64
			f.Push(value.Int64(a ^ b))

		// ---- arithmetic: float/double (IEEE-754 defaults; never throws) ----
		case OpFAdd:
			b, a := f.Pop().F32, f.Pop().F32
			f.Push(value.Float32(a + b))
		case OpFSub:
			b, a := f.Pop().F32, f.Pop().F32
			f.Push(value.Float32(a - b))
		case OpFMul:
			b, a := f.Pop().F32, f.Pop().F32
			f.Push(value.Float32(a * b))
		case OpFDiv:
			b, a := f.Pop().F32, f.Pop().F32
			f.Push(value.Float32(a / b))
		case OpFRem:
			b, a := f.Pop().F32, f.Pop().F32
			f.Push(value.Float32(float32Mod(a, b)))
		case OpFNeg:
			f.Push(value.Float32(-f.Pop().F32))
		case OpDAdd:
			b, a := f.Pop().F64, f.Pop().F64
			f.Push(value.Float64(a + b))
		case OpDSub:
			b, a := f.Pop().F64, f.Pop().F64
			f.Push(value.Float64(a - b))
		case OpDMul:
			b, a := f.Pop().F64, f.Pop().F64
			f.Push(value.Float64(a * b))
		case OpDDiv:
			b, a := f.Pop().F64, f.Pop().F64
			f.Push(value.Float64(a / b))
		case OpDRem:
			b, a := f.Pop().F64, f.Pop().F64
			f.Push(value.Float64(float64Mod(a, b)))
		case OpDNeg:
			f.Push(value.Float64(-f.Pop().F64))

		// ---- conversions ----
		case OpI2L:
			f.Push(value.Int64(int64(f.Pop().I32)))
		case OpI2F:
			f.Push(value.Float32(float32(f.Pop().I32)))
		case OpI2D:
			f.Push(value.Float64(float64(f.Pop().I32)))
		case OpL2I:
			f.Push(value.Int32(int32(f.Pop().I64)))
		case OpL2F:
			f.Push(value.Float32(float32(f.Pop().I64)))
		case OpL2D:
			f.Push(value.Float64(float64(f.Pop().I64)))
		case OpF2I:
			f.Push(value.Int32(f2iClamp(f.Pop().F32)))
		case OpF2L:
			f.Push(value.Int64(f2lClamp(f.Pop().F32)))
		case OpF2D:
			f.Push(value.Float64(float64(f.Pop().F32)))
		case OpD2I:
			f.Push(value.Int32(d2iClamp(f.Pop().F64)))
		case OpD2L:
			f.Push(value.Int64(d2lClamp(f.Pop().F64)))
		case OpD2F:
			f.Push(value.Float32(float32(f.Pop().F64)))
		case OpI2B:
			f.Push(value.Int32(int32(int8(f.Pop().I32))))
		case OpI2C:
			f.Push(value.Int32(int32(uint16(f.Pop().I32))))
		case OpI2S:
			f.Push(value.Int32(int32(int16(f.Pop().I32))))

		// ---- comparisons ----
		case OpLCmp:
			b, a := f.Pop().I64, f.Pop().I64
			f.Push(value.Int32(lcmp(a, b)))
		case OpFCmpL:
			b, a := f.Pop().F32, f.Pop().F32
			f.Push(value.Int32(fcmp(a, b, -1)))
		case OpFCmpG:
			b, a := f.Pop().F32, f.Pop().F32
			f.Push(value.Int32(fcmp(a, b, 1)))
		case OpDCmpL:
			b, a := f.Pop().F64, f.Pop().F64
			f.Push(value.Int32(dcmp(a, b, -1)))
		case OpDCmpG:
			b, a := f.Pop().F64, f.Pop().F64
			f.Push(value.Int32(dcmp(a, b, 1)))

		// ---- branches ----
		case OpIfEq, OpIfNe, OpIfLt, OpIfGe, OpIfGt, OpIfLe:
			off := f.s2()
			if compareUnary(op, f.Pop().I32) {
				f.PC = pc + int(off)
			}
		case OpIfICmpEq, OpIfICmpNe, OpIfICmpLt, OpIfICmpGe, OpIfICmpGt, OpIfICmpLe:
			off := f.s2()
			b, a := f.Pop().I32, f.Pop().I32
			if compareBinary(op, a, b) {
				f.PC = pc + int(off)
			}
		case OpIfACmpEq, OpIfACmpNe:
			off := f.s2()
			b, a := f.Pop().Ref, f.Pop().Ref
			if (op == OpIfACmpEq) == (a == b) {
				f.PC = pc + int(off)
			}
		case OpIfNull, OpIfNonNull:
			off := f.s2()
			isNull := f.Pop().IsNull()
			if (op == OpIfNull) == isNull {
				f.PC = pc + int(off)
			}
		case OpGoto:
			off := f.s2()
			f.PC = pc + int(off)
		case OpGotoW:
			off := f.s4()
			f.PC = pc + int(off)
		case OpJsr:
			off := f.s2()
			f.Push(value.ReturnAddress(f.PC))
			f.PC = pc + int(off)
		case OpJsrW:
			off := f.s4()
			f.Push(value.ReturnAddress(f.PC))
			f.PC = pc + int(off)
		case OpRet:
			n := f.u1()
			f.PC = f.Locals[n].RA
		case OpTableSwitch:
			vm.opTableSwitch(f, pc)
		case OpLookupSwitch:
			vm.opLookupSwitch(f, pc)

		// ---- returns ----
		case OpIReturn, OpFReturn, OpAReturn:
			return f.Pop(), true, 0
		case OpLReturn, OpDReturn:
			return f.Pop(), true, 0
		case OpReturn:
			return value.Value{}, false, 0

		// ---- fields ----
		case OpGetStatic:
			if c, t := vm.opGetStatic(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}
		case OpPutStatic:
			if c, t := vm.opPutStatic(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}
		case OpGetField:
			if c, t := vm.opGetField(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}
		case OpPutField:
			if c, t := vm.opPutField(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}

		// ---- invocations ----
		case OpInvokeVirtual:
			if c, t := vm.opInvokeVirtual(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}
		case OpInvokeSpecial:
			if c, t := vm.opInvokeSpecial(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}
		case OpInvokeStatic:
			if c, t := vm.opInvokeStatic(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}
		case OpInvokeInterface:
			idx := f.u2()
			f.u1() // count, unused: arity is recovered from the descriptor
			f.u1() // trailing zero byte
			if c, t := vm.opInvokeInterface(f, pc, idx); !c {
				return value.Value{}, false, t
			}
		case OpInvokeDynamic:
			idx := f.u2()
			f.u2() // two trailing zero bytes
			if c, t := vm.opInvokeDynamic(f, pc, idx); !c {
				return value.Value{}, false, t
			}

		// ---- object/array ----
		case OpNew:
			if c, t := vm.opNew(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}
		case OpNewArray:
			if c, t := vm.opNewArray(f, pc, f.u1()); !c {
				return value.Value{}, false, t
			}
		case OpANewArray:
			if c, t := vm.opANewArray(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}
		case OpMultiANewArray:
			idx := f.u2()
			dims := f.u1()
			if c, t := vm.opMultiANewArray(f, pc, idx, dims); !c {
				return value.Value{}, false, t
			}
		case OpArrayLength:
			if c, t := vm.opArrayLength(f, pc); !c {
				return value.Value{}, false, t
			}
		case OpCheckCast:
			if c, t := vm.opCheckCast(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}
		case OpInstanceOf:
			if c, t := vm.opInstanceOf(f, pc, f.u2()); !c {
				return value.Value{}, false, t
			}

		// ---- throw ----
		case OpAThrow:
			t := f.Pop()
			var thr value.ObjectRef
			if t.IsNull() {
				thr = vm.raise("java/lang/NullPointerException", "")
			} else {
				thr = t.Ref
			}
			if vm.tryHandle(f, pc, thr) {
				continue
			}
			return value.Value{}, false, thr

		// ---- monitors: no-ops in the single-thread core, per spec.md §4.7 ----
		case OpMonitorEnter, OpMonitorExit:
			v := f.Pop()
			if v.IsNull() {
				c, t := vm.handleOrPropagate(f, pc, "java/lang/NullPointerException", "")
				if !c {
					return value.Value{}, false, t
				}
			}

		case OpWide:
			vm.execWide(f)

		default:
			panic(kerrors.Internal("unimplemented opcode 0x%02x in %s.%s at pc %d", byte(op), f.Class.Name, f.Method.Name, pc))
		}
	}
}

func storeLocal(f *Frame, n int) {
	v := f.Pop()
	f.Locals[n] = v
	if v.Slots() == 2 {
		f.Locals[n+1] = value.Top
	}
}

func compareUnary(op Opcode, v int32) bool {
	switch op {
	case OpIfEq:
		return v == 0
	case OpIfNe:
		return v != 0
	case OpIfLt:
		return v < 0
	case OpIfGe:
		return v >= 0
	case OpIfGt:
		return v > 0
	case OpIfLe:
		return v <= 0
	}
	return false
}

func compareBinary(op Opcode, a, b int32) bool {
	switch op {
	case OpIfICmpEq:
		return a == b
	case OpIfICmpNe:
		return a != b
	case OpIfICmpLt:
		return a < b
	case OpIfICmpGe:
		return a >= b
	case OpIfICmpGt:
		return a > b
	case OpIfICmpLe:
		return a <= b
	}
	return false
}

func float32Mod(a, b float32) float32 {
	if b == 0 {
		return float32(float64Mod(float64(a), float64(b)))
	}
	q := a / b
	if q < 0 {
		q = -floorFloat32(-q)
	} else {
		q = floorFloat32(q)
	}
	return a - q*b
}

func floorFloat32(v float32) float32 {
	i := float32(int64(v))
	if i > v {
		i--
	}
	return i
}

func float64Mod(a, b float64) float64 {
	if b == 0 {
		return nan()
	}
	q := a / b
	if q < 0 {
		q = -floorFloat64(-q)
	} else {
		q = floorFloat64(q)
	}
	return a - q*b
}

func floorFloat64(v float64) float64 {
	i := float64(int64(v))
	if i > v {
		i--
	}
	return i
}

func nan() float64 {
	var zero float64
	return zero / zero
}

// ldc loads an Integer/Float/String/Class/MethodHandle/MethodType constant
// onto the stack, per spec.md §4.7's Constants family.
func (vm *VM) ldc(f *Frame, idx uint16) {
	cp := f.Class.CF.ConstantPool
	entry, err := cp.At(idx)
	if err != nil {
		panic(err)
	}
	switch e := entry.(type) {
	case classfile.IntegerEntry:
		f.Push(value.Int32(e.Value))
	case classfile.FloatEntry:
		f.Push(value.Float32(e.Value))
	case classfile.StringEntry:
		s, err := cp.Utf8(e.StringIndex)
		if err != nil {
			panic(err)
		}
		f.Push(value.Reference(vm.Heap.NewString([]byte(s), heap.EncodingUTF16)))
	case classfile.ClassEntry:
		name, err := cp.ClassName(idx)
		if err != nil {
			panic(err)
		}
		lc, err := vm.Loader.Load(name)
		if err != nil {
			panic(err)
		}
		f.Push(value.Reference(vm.Heap.MirrorOf(lc.ID)))
	case classfile.MethodHandleEntry, classfile.MethodTypeEntry:
		// structurally accepted, per spec.md §4.7/§9; no MethodHandle
		// runtime object is materialized in this core.
		f.Push(value.Null)
	default:
		panic(kerrors.Internal("ldc: unsupported constant tag for index %d", idx))
	}
}

// ldc2 loads a Long/Double constant, per the ldc2_w opcode.
func (vm *VM) ldc2(f *Frame, idx uint16) {
	cp := f.Class.CF.ConstantPool
	entry, err := cp.At(idx)
	if err != nil {
		panic(err)
	}
	switch e := entry.(type) {
	case classfile.LongEntry:
		f.Push(value.Int64(e.Value))
	case classfile.DoubleEntry:
		f.Push(value.Float64(e.Value))
	default:
		panic(kerrors.Internal("ldc2_w: unsupported constant tag for index %d", idx))
	}
}

// execWide implements the wide opcode prefix: the next opcode byte is one of
// iload/fload/aload/lload/dload/istore/fstore/astore/lstore/dstore/ret (with
// a 2-byte local index in place of the usual 1-byte index) or iinc (with a
// 2-byte index and a 2-byte signed immediate), per spec.md §4.7's wide note.
func (vm *VM) execWide(f *Frame) {
	op := Opcode(f.u1())
	switch op {
	case OpILoad, OpLLoad, OpFLoad, OpDLoad, OpALoad:
		n := f.u2()
		f.Push(f.Locals[n])
	case OpIStore, OpLStore, OpFStore, OpDStore, OpAStore:
		n := f.u2()
		v := f.Pop()
		f.Locals[n] = v
		if v.Slots() == 2 {
			f.Locals[n+1] = value.Top
		}
	case OpIInc:
		n := f.u2()
		delta := int32(f.s2())
		f.Locals[n] = value.Int32(f.Locals[n].I32 + delta)
	case OpRet:
		n := f.u2()
		f.PC = f.Locals[n].RA
	default:
		panic(kerrors.Internal("wide: unsupported opcode 0x%02x", byte(op)))
	}
}
