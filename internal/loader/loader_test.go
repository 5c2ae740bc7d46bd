package loader

import (
	"os"
	"path/filepath"
	"testing"

	"kate/internal/classfile"
	"kate/internal/heap"
)

// writeClass builds cf via classfile.Builder's caller-supplied closure and
// writes it to dir/name.class.
func writeClass(t *testing.T, dir, name string, build func(*classfile.Builder)) {
	t.Helper()
	b := classfile.NewBuilder()
	build(b)
	if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".class"), b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSimpleClass(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Simple", func(b *classfile.Builder) {
		b.SetThis("Simple", "")
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V", 1, 1, []byte{0xb1}, nil)
	})
	writeClass(t, dir, "java/lang/Object", func(b *classfile.Builder) {
		b.SetThis("java/lang/Object", "")
	})

	h := heap.New()
	l := New([]string{dir}, "", h, nil)
	lc, err := l.Load("Simple")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lc.State != Linked {
		t.Errorf("state = %v, want Linked", lc.State)
	}
	if lc.Mirror == 0 {
		t.Errorf("expected a non-null mirror")
	}
}

func TestFieldLayoutInheritance(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "java/lang/Object", func(b *classfile.Builder) {
		b.SetThis("java/lang/Object", "")
	})
	writeClass(t, dir, "Parent", func(b *classfile.Builder) {
		b.SetThis("Parent", "java/lang/Object")
		b.AddField(classfile.AccPublic, "x", "I", nil)
		b.AddField(classfile.AccPublic, "y", "I", nil)
	})
	writeClass(t, dir, "Child", func(b *classfile.Builder) {
		b.SetThis("Child", "Parent")
		b.AddField(classfile.AccPublic, "z", "I", nil)
	})

	h := heap.New()
	l := New([]string{dir}, "", h, nil)
	child, err := l.Load("Child")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(child.FieldLayout) != 3 {
		t.Fatalf("layout = %+v, want 3 slots", child.FieldLayout)
	}
	if child.FieldLayout[0].Name != "x" || child.FieldLayout[1].Name != "y" || child.FieldLayout[2].Name != "z" {
		t.Fatalf("layout order wrong: %+v", child.FieldLayout)
	}
	if xSlot, ok := child.FieldSlotIndex("x", "I"); !ok || xSlot != 0 {
		t.Errorf("x slot = %d, %v, want 0, true", xSlot, ok)
	}
}

func TestClassCircularityDetected(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "A", func(b *classfile.Builder) { b.SetThis("A", "B") })
	writeClass(t, dir, "B", func(b *classfile.Builder) { b.SetThis("B", "A") })

	h := heap.New()
	l := New([]string{dir}, "", h, nil)
	_, err := l.Load("A")
	if err == nil {
		t.Fatal("expected ClassCircularity error")
	}
}

func TestClassNotFound(t *testing.T) {
	h := heap.New()
	l := New([]string{t.TempDir()}, "", h, nil)
	_, err := l.Load("DoesNotExist")
	if err == nil {
		t.Fatal("expected ClassNotFound error")
	}
}

func TestArrayClassSynthesized(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "java/lang/Object", func(b *classfile.Builder) {
		b.SetThis("java/lang/Object", "")
	})
	h := heap.New()
	l := New([]string{dir}, "", h, nil)
	arr, err := l.Load("[I")
	if err != nil {
		t.Fatalf("Load array class: %v", err)
	}
	if !arr.IsArray || len(arr.FieldLayout) != 0 {
		t.Errorf("array class = %+v", arr)
	}
}
