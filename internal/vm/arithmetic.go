package vm

import (
	"math"

	"kate/internal/value"
)

// Arithmetic, conversion, and comparison opcode families, per spec.md
// §4.7. Integer division/remainder by zero throws ArithmeticException;
// float/double division follows IEEE-754 (±Inf/NaN, never throws).
// Narrowing integer conversions take low bits; f2i/d2i/f2l/d2l clamp to
// the target's min/max on overflow and map NaN to 0, per the JVM spec's
// exact narrowing-conversion rules.

func (vm *VM) opIDiv(f *Frame, pc int) (cont bool, thrown value.ObjectRef) {
	b := f.Pop().I32
	a := f.Pop().I32
	if b == 0 {
		return vm.handleOrPropagate(f, pc, "java/lang/ArithmeticException", "/ by zero")
	}
	f.Push(value.Int32(divInt32(a, b)))
	return true, 0
}

func (vm *VM) opIRem(f *Frame, pc int) (cont bool, thrown value.ObjectRef) {
	b := f.Pop().I32
	a := f.Pop().I32
	if b == 0 {
		return vm.handleOrPropagate(f, pc, "java/lang/ArithmeticException", "/ by zero")
	}
	f.Push(value.Int32(a - divInt32(a, b)*b))
	return true, 0
}

func (vm *VM) opLDiv(f *Frame, pc int) (cont bool, thrown value.ObjectRef) {
	b := f.Pop().I64
	a := f.Pop().I64
	if b == 0 {
		return vm.handleOrPropagate(f, pc, "java/lang/ArithmeticException", "/ by zero")
	}
	f.Push(value.Int64(divInt64(a, b)))
	return true, 0
}

func (vm *VM) opLRem(f *Frame, pc int) (cont bool, thrown value.ObjectRef) {
	b := f.Pop().I64
	a := f.Pop().I64
	if b == 0 {
		return vm.handleOrPropagate(f, pc, "java/lang/ArithmeticException", "/ by zero")
	}
	f.Push(value.Int64(a - divInt64(a, b)*b))
	return true, 0
}

// divInt32/divInt64 implement Java's truncating (round-toward-zero)
// integer division, which differs from Go's only at the INT_MIN / -1
// overflow case, where Java wraps back to INT_MIN.
func divInt32(a, b int32) int32 {
	if a == math.MinInt32 && b == -1 {
		return math.MinInt32
	}
	return a / b
}

func divInt64(a, b int64) int64 {
	if a == math.MinInt64 && b == -1 {
		return math.MinInt64
	}
	return a / b
}

func f2iClamp(v float32) int32 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	if v >= 2147483647.0 {
		return math.MaxInt32
	}
	if v <= -2147483648.0 {
		return math.MinInt32
	}
	return int32(v)
}

func d2iClamp(v float64) int32 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= 2147483647.0 {
		return math.MaxInt32
	}
	if v <= -2147483648.0 {
		return math.MinInt32
	}
	return int32(v)
}

func f2lClamp(v float32) int64 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	if v >= 9223372036854775807.0 {
		return math.MaxInt64
	}
	if v <= -9223372036854775808.0 {
		return math.MinInt64
	}
	return int64(v)
}

func d2lClamp(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= 9223372036854775807.0 {
		return math.MaxInt64
	}
	if v <= -9223372036854775808.0 {
		return math.MinInt64
	}
	return int64(v)
}

// lcmp/fcmpl/fcmpg/dcmpl/dcmpg push -1/0/1 per the JVM's three-way compare,
// with the "l"/"g" NaN-handling variants (NaN compares as -1 for cmpl,
// +1 for cmpg) used to pick the correct branch direction around a NaN.
func lcmp(a, b int64) int32 {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func fcmp(a, b float32, nanResult int32) int32 {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return nanResult
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func dcmp(a, b float64, nanResult int32) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return nanResult
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}
