// Package heap implements Kate's runtime heap: object instances, primitive
// and reference arrays, class mirrors, and interned string objects, all
// addressed by handle (value.ObjectRef) rather than by live pointer, so
// that the Class<->ClassMirror ownership cycle (spec.md §9) never needs a
// tracing collector to break it.
//
// The tagged-interface shape mirrors internal/classfile's constant-pool Entry
// idiom: one concrete struct per object kind behind a single Object
// interface, reused here for a second tagged union in the same codebase.
package heap

import (
	"fmt"

	"kate/internal/value"
)

// ClassId identifies a loaded class; defined here (rather than in
// internal/loader) so that heap objects can reference their class without
// importing the loader package, avoiding an import cycle (the loader needs
// the heap to allocate mirrors).
type ClassId uint32

// Kind tags a heap object's concrete representation.
type Kind uint8

const (
	KindInstance Kind = iota
	KindArray
	KindClassMirror
	KindString
)

// Object is any heap-resident value.
type Object interface {
	Kind() Kind
}

// Instance is a class instance: one RuntimeValue per slot in the class's
// field_layout (spec.md §3), inherited slots first.
type Instance struct {
	Class      ClassId
	Fields     []value.Value
	StackTrace []StackTraceElement // set by fillInStackTrace; nil otherwise
}

func (*Instance) Kind() Kind { return KindInstance }

// StackTraceElement is one frame captured by Throwable.fillInStackTrace,
// per SPEC_FULL.md's supplement #3 — a flat slice rather than a linked
// structure, following the original Rust implementation's storage shape.
type StackTraceElement struct {
	ClassName  string
	MethodName string
}

// ElementKind distinguishes an array's component type.
type ElementKind uint8

const (
	ElemBoolean ElementKind = iota
	ElemByte
	ElemChar
	ElemShort
	ElemInt
	ElemLong
	ElemFloat
	ElemDouble
	ElemRef
)

// IsPrimitive reports whether k is a primitive element kind (as opposed to
// ElemRef).
func (k ElementKind) IsPrimitive() bool { return k != ElemRef }

// ArrayObject is a primitive or reference array. Data holds a Go slice of
// the matching element type for primitive kinds, or []value.ObjectRef for
// ElemRef.
type ArrayObject struct {
	ElementKind  ElementKind
	ElementClass ClassId // meaningful only when ElementKind == ElemRef
	Data         any
}

func (*ArrayObject) Kind() Kind { return KindArray }

// Length returns the array's element count.
func (a *ArrayObject) Length() int {
	switch d := a.Data.(type) {
	case []int32: // boolean/byte/short/char/int all ride on int32 slots
		return len(d)
	case []int64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []value.ObjectRef:
		return len(d)
	default:
		return 0
	}
}

// ClassMirror is the reflective handle backing a java.lang.Class instance.
type ClassMirror struct {
	Class ClassId
}

func (*ClassMirror) Kind() Kind { return KindClassMirror }

// StringEncoding distinguishes a StringObject's backing-byte interpretation,
// per spec.md §3's "compact string layout" note.
type StringEncoding uint8

const (
	EncodingLatin1 StringEncoding = iota
	EncodingUTF16
)

// StringObject is an interned java.lang.String backing store.
type StringObject struct {
	Bytes    []byte
	Encoding StringEncoding
}

func (*StringObject) Kind() Kind { return KindString }

// Heap owns all objects by index; value.ObjectRef(0) is reserved as the
// null handle, so real objects start at index 1 — the same 1-indexed
// convention the constant pool itself uses.
type Heap struct {
	objects []Object // objects[0] unused
	intern  map[string]value.ObjectRef
	mirrors map[ClassId]value.ObjectRef
}

// New creates an empty heap.
func New() *Heap {
	return &Heap{
		objects: make([]Object, 1),
		intern:  make(map[string]value.ObjectRef),
		mirrors: make(map[ClassId]value.ObjectRef),
	}
}

func (h *Heap) alloc(o Object) value.ObjectRef {
	h.objects = append(h.objects, o)
	return value.ObjectRef(len(h.objects) - 1)
}

// Get dereferences a handle. A null ref is an internal error — callers
// must check for null before calling Get, mirroring the interpreter's
// obligation to raise NullPointerException before ever reaching the heap.
func (h *Heap) Get(ref value.ObjectRef) Object {
	if ref == 0 || int(ref) >= len(h.objects) {
		panic(fmt.Sprintf("heap: dereference of invalid handle %d", ref))
	}
	return h.objects[ref]
}

// NewInstance allocates a class instance whose field slots are the given
// fields slice, used as is. Callers (internal/vm) are responsible for having
// already ensured the class is initialized, per spec.md §4.5.
func (h *Heap) NewInstance(class ClassId, fields []value.Value) value.ObjectRef {
	inst := &Instance{Class: class, Fields: fields}
	return h.alloc(inst)
}

// NewArray allocates an array of length with type-default elements.
// length < 0 is a caller error (the interpreter must raise
// NegativeArraySizeException before calling this).
func (h *Heap) NewArray(kind ElementKind, elementClass ClassId, length int) value.ObjectRef {
	var data any
	switch kind {
	case ElemLong:
		data = make([]int64, length)
	case ElemFloat:
		data = make([]float32, length)
	case ElemDouble:
		data = make([]float64, length)
	case ElemRef:
		data = make([]value.ObjectRef, length)
	default: // boolean, byte, char, short, int all ride on int32 slots
		data = make([]int32, length)
	}
	return h.alloc(&ArrayObject{ElementKind: kind, ElementClass: elementClass, Data: data})
}

// NewString interns bytes under encoding, returning the canonical handle:
// repeated calls with byte-equal content return the same ObjectRef.
func (h *Heap) NewString(bytes []byte, encoding StringEncoding) value.ObjectRef {
	key := string(encoding) + string(bytes)
	if ref, ok := h.intern[key]; ok {
		return ref
	}
	ref := h.alloc(&StringObject{Bytes: append([]byte(nil), bytes...), Encoding: encoding})
	h.intern[key] = ref
	return ref
}

// MirrorOf returns the interned ClassMirror handle for class, allocating it
// on first use.
func (h *Heap) MirrorOf(class ClassId) value.ObjectRef {
	if ref, ok := h.mirrors[class]; ok {
		return ref
	}
	ref := h.alloc(&ClassMirror{Class: class})
	h.mirrors[class] = ref
	return ref
}

// SetField stores v into an instance's field slot.
func (h *Heap) SetField(ref value.ObjectRef, slot int, v value.Value) {
	inst, ok := h.Get(ref).(*Instance)
	if !ok {
		panic("heap: SetField on non-instance")
	}
	inst.Fields[slot] = v
}

// GetField reads an instance's field slot.
func (h *Heap) GetField(ref value.ObjectRef, slot int) value.Value {
	inst, ok := h.Get(ref).(*Instance)
	if !ok {
		panic("heap: GetField on non-instance")
	}
	return inst.Fields[slot]
}
