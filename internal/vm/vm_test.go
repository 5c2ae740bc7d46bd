package vm

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kate/internal/classfile"
	"kate/internal/heap"
	"kate/internal/katelog"
	"kate/internal/loader"
	"kate/internal/native"
	"kate/internal/value"
)

// writeClass mirrors internal/loader/loader_test.go's fixture helper: build
// a classfile via the closure, write it to dir/name.class.
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

func writeObjectClass(t *testing.T, dir string) {
	writeClass(t, dir, "java/lang/Object", func(b *classfile.Builder) {
		b.SetThis("java/lang/Object", "")
		b.AddMethod(classfile.AccPublic, "<init>", "()V", 1, 1, []byte{0xb1}, nil)
	})
}

// writeThrowableBase writes java/lang/Throwable itself: opNew's stack-trace
// auto-capture (fields.go) only fires when the allocated class is assignable
// to an already-loaded java/lang/Throwable, so every exception fixture
// needs this in its superclass chain, not just java/lang/Object.
func writeThrowableBase(t *testing.T, dir string) {
	writeClass(t, dir, "java/lang/Throwable", func(b *classfile.Builder) {
		b.SetThis("java/lang/Throwable", "java/lang/Object")
		objInit := b.AddMethodref("java/lang/Object", "<init>", "()V")
		code := []byte{0x2a, 0xb7, byte(objInit >> 8), byte(objInit), 0xb1} // aload_0, invokespecial, return
		b.AddMethod(classfile.AccPublic, "<init>", "()V", 1, 1, code, nil)
	})
}

// writeThrowableLike writes a minimal exception class, subclassing
// java/lang/Throwable, carrying a "message" field and a
// <init>(Ljava/lang/String;)V that stores its argument there, per
// vm.construct's field-name convention (vm.go's throwableMessage).
func writeThrowableLike(t *testing.T, dir, name string) {
	writeClass(t, dir, name, func(b *classfile.Builder) {
		b.SetThis(name, "java/lang/Throwable")
		b.AddField(classfile.AccPrivate, "message", "Ljava/lang/String;", nil)
		fieldRef := b.AddFieldref(name, "message", "Ljava/lang/String;")
		// aload_0, aload_1, putfield #fieldRef, return
		code := []byte{0x2a, 0x2b, 0xb5, byte(fieldRef >> 8), byte(fieldRef), 0xb1}
		b.AddMethod(classfile.AccPublic, "<init>", "(Ljava/lang/String;)V", 2, 2, code, nil)
	})
}

// writeKateUtil writes the native Kate$Util surface that native.RegisterBuiltins
// binds println/print implementations to, per internal/native/builtins.go.
func writeKateUtil(t *testing.T, dir string) {
	writeClass(t, dir, "Kate$Util", func(b *classfile.Builder) {
		b.SetThis("Kate$Util", "java/lang/Object")
		var nativeFlags uint16 = classfile.AccPublic | classfile.AccStatic | classfile.AccNative
		b.AddMethod(nativeFlags, "println", "(Ljava/lang/String;)V", 0, 0, nil, nil)
		b.AddMethod(nativeFlags, "println", "()V", 0, 0, nil, nil)
		b.AddMethod(nativeFlags, "print", "(Ljava/lang/String;)V", 0, 0, nil, nil)
	})
}

func newTestVM(t *testing.T, dir string) *VM {
	t.Helper()
	h := heap.New()
	ld := loader.New([]string{dir}, "", h, katelog.Nop())
	nat := native.NewRegistry()
	native.RegisterBuiltins(nat)
	m := New(ld, h, nat, katelog.Nop())
	m.Stdout = &bytes.Buffer{}
	m.Stderr = &bytes.Buffer{}
	return m
}

func load(t *testing.T, vm *VM, name string) *loader.LoadedClass {
	t.Helper()
	lc, err := vm.Loader.Load(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return lc
}

func findMethod(t *testing.T, lc *loader.LoadedClass, name, descriptor string) *classfile.MethodInfo {
	t.Helper()
	m, ok := lc.MethodTable[name+":"+descriptor]
	if !ok {
		t.Fatalf("no method %s%s on %s", name, descriptor, lc.Name)
	}
	return m
}

// TestIAddOverflow reproduces spec.md §8's IAdd scenario: int addition wraps
// silently on overflow rather than raising, matching Java's two's-complement
// int arithmetic.
func TestIAddOverflow(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeClass(t, dir, "IAdd", func(b *classfile.Builder) {
		b.SetThis("IAdd", "java/lang/Object")
		// iload_0, iload_1, iadd, ireturn
		code := []byte{0x1a, 0x1b, 0x60, 0xac}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "add", "(II)I", 2, 2, code, nil)
	})

	vm := newTestVM(t, dir)
	lc := load(t, vm, "IAdd")
	m := findMethod(t, lc, "add", "(II)I")

	result, hasResult, thrown := vm.callMethod(lc, m, []value.Value{value.Int32(math.MaxInt32), value.Int32(1)})
	if thrown != 0 {
		t.Fatalf("unexpected throw: %v", thrown)
	}
	if !hasResult {
		t.Fatal("expected a result")
	}
	if result.I32 != math.MinInt32 {
		t.Errorf("add(MaxInt32, 1) = %d, want %d", result.I32, math.MinInt32)
	}
}

// TestFAddDivideEdgeCases reproduces spec.md §8's FAdd scenario: float
// division by zero yields signed infinity rather than raising, per IEEE 754
// (the JVM's fdiv/frem never throw ArithmeticException).
func TestFAddDivideEdgeCases(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeClass(t, dir, "FAdd", func(b *classfile.Builder) {
		b.SetThis("FAdd", "java/lang/Object")
		// fload_0, fload_1, fdiv, freturn
		code := []byte{0x22, 0x23, 0x6e, 0xae}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "div", "(FF)F", 2, 2, code, nil)
	})

	vm := newTestVM(t, dir)
	lc := load(t, vm, "FAdd")
	m := findMethod(t, lc, "div", "(FF)F")

	result, hasResult, thrown := vm.callMethod(lc, m, []value.Value{value.Float32(1), value.Float32(0)})
	if thrown != 0 {
		t.Fatalf("unexpected throw: %v", thrown)
	}
	if !hasResult {
		t.Fatal("expected a result")
	}
	if !math.IsInf(float64(result.F32), 1) {
		t.Errorf("div(1, 0) = %v, want +Inf", result.F32)
	}
}

// TestReturnVariants reproduces spec.md §8's Return scenario: each return
// opcode carries back the right Kind with no cross-contamination between
// calls sharing a VM.
func TestReturnVariants(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeClass(t, dir, "Return", func(b *classfile.Builder) {
		b.SetThis("Return", "java/lang/Object")
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "asInt", "()I", 1, 0, []byte{0x10, 0x2a, 0xac}, nil)    // bipush 42, ireturn
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "asVoid", "()V", 0, 0, []byte{0xb1}, nil)               // return
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "asLong", "()J", 2, 0, []byte{0x09, 0xad}, nil) // lconst_0, lreturn
	})

	vm := newTestVM(t, dir)
	lc := load(t, vm, "Return")

	if r, has, thrown := vm.callMethod(lc, findMethod(t, lc, "asInt", "()I"), nil); thrown != 0 || !has || r.I32 != 42 {
		t.Errorf("asInt = %+v, has=%v, thrown=%v", r, has, thrown)
	}
	if _, has, thrown := vm.callMethod(lc, findMethod(t, lc, "asVoid", "()V"), nil); thrown != 0 || has {
		t.Errorf("asVoid: has=%v, thrown=%v, want has=false", has, thrown)
	}
	if r, has, thrown := vm.callMethod(lc, findMethod(t, lc, "asLong", "()J"), nil); thrown != 0 || !has || r.Kind != value.KindInt64 {
		t.Errorf("asLong = %+v, has=%v, thrown=%v", r, has, thrown)
	}
}

// TestUncaughtAThrow reproduces spec.md §8's AThrow scenario: an exception
// thrown three frames deep and never caught prints the literal
// "Uncaught exception in main: ..." diagnostic plus one "at Class.method"
// line per live frame, innermost first.
func TestUncaughtAThrow(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeThrowableBase(t, dir)
	writeThrowableLike(t, dir, "java/lang/IllegalStateException")

	writeClass(t, dir, "AThrow", func(b *classfile.Builder) {
		b.SetThis("AThrow", "java/lang/Object")
		excClass := b.AddClass("java/lang/IllegalStateException")
		dieStr := b.AddString("die")
		initRef := b.AddMethodref("java/lang/IllegalStateException", "<init>", "(Ljava/lang/String;)V")
		nestedRef := b.AddMethodref("AThrow", "nested", "()V")
		athrowRef := b.AddMethodref("AThrow", "athrow", "()V")

		// new #excClass, dup, ldc #dieStr, invokespecial #initRef, athrow
		athrowMethod := []byte{
			0xbb, byte(excClass >> 8), byte(excClass),
			0x59,
			0x12, byte(dieStr),
			0xb7, byte(initRef >> 8), byte(initRef),
			0xbf,
		}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "athrow", "()V", 3, 0, athrowMethod, nil)

		// invokestatic #athrowRef, return
		nestedMethod := []byte{0xb8, byte(athrowRef >> 8), byte(athrowRef), 0xb1}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "nested", "()V", 0, 0, nestedMethod, nil)

		// invokestatic #nestedRef, return
		mainMethod := []byte{0xb8, byte(nestedRef >> 8), byte(nestedRef), 0xb1}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V", 0, 1, mainMethod, nil)
	})

	vm := newTestVM(t, dir)
	code := vm.Run("AThrow", nil)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	out := vm.Stderr.(*bytes.Buffer).String()
	want := "Uncaught exception in main: java/lang/IllegalStateException: die\n" +
		"at AThrow.athrow\n" +
		"at AThrow.nested\n" +
		"at AThrow.main\n"
	if out != want {
		t.Errorf("stderr = %q, want %q", out, want)
	}
}

// TestTryCatch reproduces spec.md §8's TryCatch scenario: a handler whose
// exception-table range covers the throw site catches the exception and
// resumes at the handler PC instead of propagating.
func TestTryCatch(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeThrowableBase(t, dir)
	writeThrowableLike(t, dir, "java/lang/IllegalStateException")
	writeKateUtil(t, dir)

	writeClass(t, dir, "TryCatch", func(b *classfile.Builder) {
		b.SetThis("TryCatch", "java/lang/Object")
		excClass := b.AddClass("java/lang/IllegalStateException")
		dieStr := b.AddString("die")
		caughtStr := b.AddString("caught")
		initRef := b.AddMethodref("java/lang/IllegalStateException", "<init>", "(Ljava/lang/String;)V")
		printlnRef := b.AddMethodref("Kate$Util", "println", "(Ljava/lang/String;)V")

		tryBlock := []byte{
			0xbb, byte(excClass >> 8), byte(excClass), // new
			0x59,                      // dup
			0x12, byte(dieStr),        // ldc
			0xb7, byte(initRef >> 8), byte(initRef), // invokespecial
			0xbf, // athrow
		}
		handler := []byte{
			0x57,                     // pop (discard the caught exception ref)
			0x12, byte(caughtStr),    // ldc
			0xb8, byte(printlnRef >> 8), byte(printlnRef), // invokestatic
			0xb1, // return
		}
		code := append(tryBlock, handler...)
		excTable := []classfile.ExceptionTableEntry{
			{StartPC: 0, EndPC: uint16(len(tryBlock)), HandlerPC: uint16(len(tryBlock)), CatchType: excClass},
		}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "caughtInHere", "()V", 3, 0, code, excTable)
	})

	vm := newTestVM(t, dir)
	lc := load(t, vm, "TryCatch")
	m := findMethod(t, lc, "caughtInHere", "()V")

	_, hasResult, thrown := vm.callMethod(lc, m, nil)
	if thrown != 0 {
		t.Fatalf("exception escaped the handler: %v", thrown)
	}
	if hasResult {
		t.Error("void method reported hasResult")
	}
	if got := vm.Stdout.(*bytes.Buffer).String(); strings.TrimRight(got, "\n") != "caught" {
		t.Errorf("stdout = %q, want %q", got, "caught\n")
	}
}

// TestInheritedFieldsPutGet reproduces spec.md §8's InheritedFields scenario
// directly through putfield/getfield bytecode: a Child instance's fields
// default to zero, and each declaring class's own slots are independently
// addressable once the other has been written.
func TestInheritedFieldsPutGet(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeClass(t, dir, "Parent", func(b *classfile.Builder) {
		b.SetThis("Parent", "java/lang/Object")
		b.AddField(classfile.AccPublic, "x", "I", nil)
		b.AddField(classfile.AccPublic, "y", "I", nil)
	})
	writeClass(t, dir, "Child", func(b *classfile.Builder) {
		b.SetThis("Child", "Parent")
		b.AddField(classfile.AccPublic, "z", "I", nil)

		xRef := b.AddFieldref("Child", "x", "I")
		yRef := b.AddFieldref("Child", "y", "I")
		zRef := b.AddFieldref("Child", "z", "I")
		thisClass := b.AddClass("Child")
		objInit := b.AddMethodref("java/lang/Object", "<init>", "()V")

		code := buildInheritedFieldsBody(thisClass, objInit, xRef, yRef, zRef)
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "run", "()I", 3, 3, code, nil)
	})

	vm := newTestVM(t, dir)
	lc := load(t, vm, "Child")
	m := findMethod(t, lc, "run", "()I")

	result, hasResult, thrown := vm.callMethod(lc, m, nil)
	if thrown != 0 {
		t.Fatalf("unexpected throw: %v", thrown)
	}
	if !hasResult {
		t.Fatal("expected a result")
	}
	// run() sums each checkpoint read in buildInheritedFieldsBody's order —
	// 0 (z) + 0 (y) + 1234 (z) + 4321 (y) + 0 (x) = 5555, matching the
	// zero-default-then-written values of spec.md §8's InheritedFields walk.
	if result.I32 != 5555 {
		t.Errorf("run() = %d, want 5555", result.I32)
	}
}

// buildInheritedFieldsBody assembles: new Child, <init>, store into local 1;
// read z then y (both default 0), write z=1234 and y=4321, read z and y
// again, then read x (still default 0, never written) — accumulating every
// read into local 2 and returning the sum. This walks spec.md §8's
// InheritedFields scenario ("0, 0, 1234, 4321, 0, ...") through real
// getfield/putfield bytecode instead of direct heap calls.
func buildInheritedFieldsBody(thisClass, objInit, xRef, yRef, zRef uint16) []byte {
	var code []byte
	emit := func(bs ...byte) { code = append(code, bs...) }
	u16 := func(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

	emit(0xbb) // new Child
	emit(u16(thisClass)...)
	emit(0x59) // dup
	emit(0xb7) // invokespecial Object.<init>
	emit(u16(objInit)...)
	emit(0x4c)       // astore_1: local 1 holds the instance
	emit(0x03, 0x3d) // iconst_0, istore_2: local 2 is the running sum

	readInto := func(fieldRef uint16) {
		emit(0x1c) // iload_2
		emit(0x2b) // aload_1
		emit(0xb4) // getfield
		emit(u16(fieldRef)...)
		emit(0x60) // iadd
		emit(0x3d) // istore_2
	}
	write := func(fieldRef uint16, pushConst []byte) {
		emit(0x2b) // aload_1
		emit(pushConst...)
		emit(0xb5) // putfield
		emit(u16(fieldRef)...)
	}

	readInto(zRef)                              // z: default 0
	readInto(yRef)                              // y: default 0
	write(zRef, []byte{0x11, 0x04, 0xd2})        // z = 1234
	write(yRef, []byte{0x11, 0x10, 0xe1})        // y = 4321
	readInto(zRef)                              // z: now 1234
	readInto(yRef)                              // y: now 4321
	readInto(xRef)                              // x: default 0, inherited from Parent, never written

	emit(0x1c) // iload_2
	emit(0xac) // ireturn
	return code
}

// TestTableSwitchAlignsToMethodStart guards against aligning the switch's
// padding relative to the switch opcode's own offset instead of the
// method's bytecode start (offset 0): the opcode here sits at a non-4
// offset, so a wrong alignment reads the default/low/high/jump table from
// the wrong bytes entirely.
func TestTableSwitchAlignsToMethodStart(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeClass(t, dir, "Switch", func(b *classfile.Builder) {
		b.SetThis("Switch", "java/lang/Object")
		code := []byte{
			0x00,             // 0: nop
			0x1a,             // 1: iload_0
			0xaa,             // 2: tableswitch (opcode at a non-4-aligned offset)
			0x00,             // 3: one pad byte to reach offset 4
			0, 0, 0, 26,      // 4..7:  default -> opcodePC(2)+26 = 28
			0, 0, 0, 0,       // 8..11: low = 0
			0, 0, 0, 1,       // 12..15: high = 1
			0, 0, 0, 22,      // 16..19: jump for index 0 -> 2+22 = 24
			0, 0, 0, 24,      // 20..23: jump for index 1 -> 2+24 = 26
			0x03, 0xac, // 24: iconst_0, ireturn
			0x04, 0xac, // 26: iconst_1, ireturn
			0x05, 0xac, // 28: iconst_2, ireturn
		}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "pick", "(I)I", 1, 1, code, nil)
	})

	vm := newTestVM(t, dir)
	lc := load(t, vm, "Switch")
	m := findMethod(t, lc, "pick", "(I)I")

	cases := map[int32]int32{0: 0, 1: 1, 5: 2} // 5 is out of [low,high], hits default
	for arg, want := range cases {
		result, hasResult, thrown := vm.callMethod(lc, m, []value.Value{value.Int32(arg)})
		if thrown != 0 {
			t.Fatalf("pick(%d): unexpected throw: %v", arg, thrown)
		}
		if !hasResult || result.I32 != want {
			t.Errorf("pick(%d) = %d, has=%v, want %d", arg, result.I32, hasResult, want)
		}
	}
}

// TestPop2OnCategory2Entry reproduces spec.md §4.7's category-aware pop2:
// a single long/double stack entry is already a whole value, so pop2 must
// discard only that one entry, not two.
func TestPop2OnCategory2Entry(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeClass(t, dir, "StackOps", func(b *classfile.Builder) {
		b.SetThis("StackOps", "java/lang/Object")
		// lconst_0, lconst_1, pop2 (discards only the top long), lreturn
		code := []byte{0x09, 0x0a, 0x58, 0xad}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "run", "()J", 2, 0, code, nil)
	})

	vm := newTestVM(t, dir)
	lc := load(t, vm, "StackOps")
	m := findMethod(t, lc, "run", "()J")

	result, hasResult, thrown := vm.callMethod(lc, m, nil)
	if thrown != 0 {
		t.Fatalf("unexpected throw: %v", thrown)
	}
	if !hasResult || result.I64 != 0 {
		t.Errorf("run() = %d, has=%v, want 0 (the long beneath the popped one)", result.I64, hasResult)
	}
}

// TestDup2OnCategory2Entry reproduces spec.md §4.7's category-aware dup2:
// with a single long/double entry on top, dup2 duplicates that one entry
// rather than reading a second, unrelated entry beneath it.
func TestDup2OnCategory2Entry(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeClass(t, dir, "StackOps2", func(b *classfile.Builder) {
		b.SetThis("StackOps2", "java/lang/Object")
		// lconst_1, dup2 (duplicates the single long entry), pop2, lreturn
		code := []byte{0x0a, 0x5c, 0x58, 0xad}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "run", "()J", 2, 0, code, nil)
	})

	vm := newTestVM(t, dir)
	lc := load(t, vm, "StackOps2")
	m := findMethod(t, lc, "run", "()J")

	result, hasResult, thrown := vm.callMethod(lc, m, nil)
	if thrown != 0 {
		t.Fatalf("unexpected throw: %v", thrown)
	}
	if !hasResult || result.I64 != 1 {
		t.Errorf("run() = %d, has=%v, want 1", result.I64, hasResult)
	}
}

// TestDup2X1OnCategory2Entry reproduces dup2_x1's form 2: a single cat-2
// entry on top of one cat-1 entry duplicates just the cat-2 entry and
// reinserts it below the cat-1 one, per spec.md §4.7.
func TestDup2X1OnCategory2Entry(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeClass(t, dir, "StackOps3", func(b *classfile.Builder) {
		b.SetThis("StackOps3", "java/lang/Object")
		// iconst_5, lconst_1, dup2_x1 -> [long1, int5, long1] (top to bottom);
		// pop2 discards the top long1, pop discards int5, lreturn returns the
		// remaining long1.
		code := []byte{0x08, 0x0a, 0x5d, 0x58, 0x57, 0xad}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "run", "()J", 3, 0, code, nil)
	})

	vm := newTestVM(t, dir)
	lc := load(t, vm, "StackOps3")
	m := findMethod(t, lc, "run", "()J")

	result, hasResult, thrown := vm.callMethod(lc, m, nil)
	if thrown != 0 {
		t.Fatalf("unexpected throw: %v", thrown)
	}
	if !hasResult || result.I64 != 1 {
		t.Errorf("run() = %d, has=%v, want 1", result.I64, hasResult)
	}
}

// TestDup2X2OnCategory2Entry reproduces dup2_x2's form 2: a single cat-2
// entry on top of two cat-1 entries duplicates just the cat-2 entry and
// reinserts it below the pair, per spec.md §4.7.
func TestDup2X2OnCategory2Entry(t *testing.T) {
	dir := t.TempDir()
	writeObjectClass(t, dir)
	writeClass(t, dir, "StackOps4", func(b *classfile.Builder) {
		b.SetThis("StackOps4", "java/lang/Object")
		// iconst_3, iconst_2, lconst_1 -> [long1, int2, int3] (top to bottom);
		// dup2_x2 -> [long1, int2, int3, long1]; pop2 discards the top long1,
		// iadd combines int2+int3, ireturn returns the sum (the trailing long1
		// is simply discarded along with the rest of the frame).
		code := []byte{0x06, 0x05, 0x0a, 0x5e, 0x58, 0x60, 0xac}
		b.AddMethod(classfile.AccPublic|classfile.AccStatic, "run", "()I", 4, 0, code, nil)
	})

	vm := newTestVM(t, dir)
	lc := load(t, vm, "StackOps4")
	m := findMethod(t, lc, "run", "()I")

	result, hasResult, thrown := vm.callMethod(lc, m, nil)
	if thrown != 0 {
		t.Fatalf("unexpected throw: %v", thrown)
	}
	if !hasResult || result.I32 != 5 {
		t.Errorf("run() = %d, has=%v, want 5", result.I32, hasResult)
	}
}
