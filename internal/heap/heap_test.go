package heap

import (
	"testing"

	"kate/internal/value"
)

func TestStringInterning(t *testing.T) {
	h := New()
	r1 := h.NewString([]byte("hello"), EncodingLatin1)
	r2 := h.NewString([]byte("hello"), EncodingLatin1)
	if r1 != r2 {
		t.Errorf("interning: got distinct refs %d, %d for equal bytes", r1, r2)
	}
	r3 := h.NewString([]byte("world"), EncodingLatin1)
	if r1 == r3 {
		t.Errorf("interning: distinct content got the same ref")
	}
}

func TestMirrorOfIsStable(t *testing.T) {
	h := New()
	m1 := h.MirrorOf(ClassId(7))
	m2 := h.MirrorOf(ClassId(7))
	if m1 != m2 {
		t.Errorf("MirrorOf not stable: %d != %d", m1, m2)
	}
}

func TestInstanceFieldDefaults(t *testing.T) {
	h := New()
	fields := []value.Value{value.Int32(0), value.Null, value.Int64(0)}
	ref := h.NewInstance(ClassId(1), fields)
	if h.GetField(ref, 0).I32 != 0 {
		t.Errorf("field 0 default wrong")
	}
	h.SetField(ref, 1, value.Reference(42))
	if h.GetField(ref, 1).Ref != 42 {
		t.Errorf("field 1 not updated")
	}
}

func TestNewArrayLength(t *testing.T) {
	h := New()
	ref := h.NewArray(ElemInt, 0, 5)
	arr := h.Get(ref).(*ArrayObject)
	if arr.Length() != 5 {
		t.Errorf("array length = %d, want 5", arr.Length())
	}
}

func TestGetOnNullPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic dereferencing the null handle")
		}
	}()
	h := New()
	h.Get(value.ObjectRef(0))
}
