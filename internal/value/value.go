// Package value implements Kate's tagged RuntimeValue union: the handful of
// kinds an operand-stack slot or local-variable slot can hold, plus the
// category-1/category-2 slot-width rule the classfile format prescribes.
//
// The tagged-struct shape (a Kind tag next to the payload) is carried over
// from the teacher's bytecode.Value{Type ValueType; Data interface{}}, with
// the untyped Data payload replaced by one typed field per kind, and the tag
// set changed from the teacher's dynamic-language value kinds to the JVM's
// int32/int64/float32/float64/reference/returnAddress kinds.
package value

import "fmt"

// Kind tags a Value's runtime representation.
type Kind uint8

const (
	KindInt32 Kind = iota
	KindInt64
	KindFloat32
	KindFloat64
	KindReference
	KindReturnAddress
	KindTop // the second local-variable slot of a category-2 value
)

func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int"
	case KindInt64:
		return "long"
	case KindFloat32:
		return "float"
	case KindFloat64:
		return "double"
	case KindReference:
		return "reference"
	case KindReturnAddress:
		return "returnAddress"
	case KindTop:
		return "top"
	default:
		return "unknown"
	}
}

// ObjectRef is a heap handle. The zero value is the null reference.
type ObjectRef uint32

// Value is a tagged runtime value: exactly one of the Kind-selected fields
// below is meaningful at any time.
type Value struct {
	Kind Kind
	I32  int32
	I64  int64
	F32  float32
	F64  float64
	Ref  ObjectRef
	RA   int // return address program counter, for jsr/ret
}

// Slots reports how many consecutive stack/local slots this value occupies:
// 2 for category-2 values (long, double), 1 for everything else.
func (v Value) Slots() int {
	switch v.Kind {
	case KindInt64, KindFloat64:
		return 2
	default:
		return 1
	}
}

func Int32(i int32) Value      { return Value{Kind: KindInt32, I32: i} }
func Int64(i int64) Value      { return Value{Kind: KindInt64, I64: i} }
func Float32(f float32) Value  { return Value{Kind: KindFloat32, F32: f} }
func Float64(f float64) Value  { return Value{Kind: KindFloat64, F64: f} }
func Reference(r ObjectRef) Value { return Value{Kind: KindReference, Ref: r} }
func ReturnAddress(pc int) Value  { return Value{Kind: KindReturnAddress, RA: pc} }

// Null is the null reference value.
var Null = Reference(0)

// Top is the sentinel occupying the second local-variable slot of a
// category-2 value, per spec.md §4.6.
var Top = Value{Kind: KindTop}

// IsNull reports whether v is the null reference. Only meaningful for
// KindReference values.
func (v Value) IsNull() bool {
	return v.Kind == KindReference && v.Ref == 0
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt32:
		return fmt.Sprintf("%d", v.I32)
	case KindInt64:
		return fmt.Sprintf("%d", v.I64)
	case KindFloat32:
		return fmt.Sprintf("%v", v.F32)
	case KindFloat64:
		return fmt.Sprintf("%v", v.F64)
	case KindReference:
		if v.Ref == 0 {
			return "null"
		}
		return fmt.Sprintf("ref#%d", v.Ref)
	case KindReturnAddress:
		return fmt.Sprintf("ret@%d", v.RA)
	case KindTop:
		return "<top>"
	default:
		return "?"
	}
}

// DefaultFor returns the type-default value for a field descriptor's leading
// character: 'Z','B','C','S','I' -> int32 0, 'J' -> int64 0, 'F' -> float32
// 0, 'D' -> float64 0, 'L'/'[' -> null reference.
func DefaultFor(descriptor byte) Value {
	switch descriptor {
	case 'J':
		return Int64(0)
	case 'F':
		return Float32(0)
	case 'D':
		return Float64(0)
	case 'L', '[':
		return Null
	default:
		return Int32(0)
	}
}
