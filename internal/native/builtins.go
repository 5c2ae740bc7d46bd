package native

import (
	"fmt"

	"kate/internal/classfile"
	"kate/internal/heap"
	"kate/internal/value"
)

// RegisterBuiltins binds Kate's bundled native methods, grounded on the
// teacher's RegisterBuiltin calls in vm.go: a fixed table of host functions
// wired in at startup rather than discovered via JNI-style dynamic linking.
// cmd/kate calls this once, before the first class load, per SPEC_FULL.md
// §4.8.
func RegisterBuiltins(r *Registry) {
	registerUtilPrint(r)
	registerSystem(r)
	registerThread(r)
	registerThrowable(r)
	registerShutdown(r)
}

// registerUtilPrint binds Kate$Util.print/println for each primitive type
// plus String — the minimal host-output surface available to programs run
// by Kate, which has no System.out implementation of its own.
func registerUtilPrint(r *Registry) {
	const class = "Kate$Util"

	prim := func(desc string, format func(value.Value) string) {
		r.Register(class, "print", desc, printFunc(format, false))
		r.Register(class, "println", desc, printFunc(format, true))
	}

	prim("(I)V", func(v value.Value) string { return fmt.Sprintf("%d", v.I32) })
	prim("(J)V", func(v value.Value) string { return fmt.Sprintf("%d", v.I64) })
	prim("(F)V", func(v value.Value) string { return fmt.Sprintf("%v", v.F32) })
	prim("(D)V", func(v value.Value) string { return fmt.Sprintf("%v", v.F64) })
	prim("(Z)V", func(v value.Value) string { return fmt.Sprintf("%t", v.I32 != 0) })
	prim("(C)V", func(v value.Value) string { return string(rune(v.I32)) })

	r.Register(class, "print", "(Ljava/lang/String;)V", printStringFunc(false))
	r.Register(class, "println", "(Ljava/lang/String;)V", printStringFunc(true))
	r.Register(class, "println", "()V", func(args []value.Value, ctx *Context) (*value.Value, value.ObjectRef, error) {
		fmt.Fprintln(ctx.Stdout)
		return nil, 0, nil
	})
}

func printFunc(format func(value.Value) string, newline bool) Func {
	return func(args []value.Value, ctx *Context) (*value.Value, value.ObjectRef, error) {
		if newline {
			fmt.Fprintln(ctx.Stdout, format(args[0]))
		} else {
			fmt.Fprint(ctx.Stdout, format(args[0]))
		}
		return nil, 0, nil
	}
}

func printStringFunc(newline bool) Func {
	return func(args []value.Value, ctx *Context) (*value.Value, value.ObjectRef, error) {
		text := stringArgText(args[0], ctx)
		if newline {
			fmt.Fprintln(ctx.Stdout, text)
		} else {
			fmt.Fprint(ctx.Stdout, text)
		}
		return nil, 0, nil
	}
}

func stringArgText(v value.Value, ctx *Context) string {
	if v.IsNull() {
		return "null"
	}
	so, ok := ctx.Heap.Get(v.Ref).(*heap.StringObject)
	if !ok {
		return ""
	}
	if so.Encoding == heap.EncodingLatin1 {
		return string(so.Bytes)
	}
	return classfile.DecodeModifiedUTF8(so.Bytes)
}

// registerSystem binds java/lang/System's native hooks: arraycopy (the one
// array primitive the shim can't express in bytecode) and
// getSecurityManager, a stand-in that always reports no security manager
// installed, per SPEC_FULL.md supplement #2's System/Shutdown hooks.
func registerSystem(r *Registry) {
	const class = "java/lang/System"

	r.Register(class, "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V",
		func(args []value.Value, ctx *Context) (*value.Value, value.ObjectRef, error) {
			src, srcPos, dst, dstPos, length := args[0], args[1].I32, args[2], args[3].I32, args[4].I32
			if src.IsNull() || dst.IsNull() {
				return nil, ctx.Raise("java/lang/NullPointerException", ""), nil
			}
			srcArr, ok := ctx.Heap.Get(src.Ref).(*heap.ArrayObject)
			if !ok {
				return nil, 0, fmt.Errorf("arraycopy: src is not an array")
			}
			dstArr, ok := ctx.Heap.Get(dst.Ref).(*heap.ArrayObject)
			if !ok {
				return nil, 0, fmt.Errorf("arraycopy: dst is not an array")
			}
			copyArray(dstArr, int(dstPos), srcArr, int(srcPos), int(length))
			return nil, 0, nil
		})

	r.Register(class, "getSecurityManager", "()Ljava/lang/SecurityManager;",
		func(args []value.Value, ctx *Context) (*value.Value, value.ObjectRef, error) {
			res := value.Null
			return &res, 0, nil
		})
}

func copyArray(dst *heap.ArrayObject, dstPos int, src *heap.ArrayObject, srcPos, length int) {
	switch d := dst.Data.(type) {
	case []int32:
		s := src.Data.([]int32)
		copy(d[dstPos:dstPos+length], s[srcPos:srcPos+length])
	case []int64:
		s := src.Data.([]int64)
		copy(d[dstPos:dstPos+length], s[srcPos:srcPos+length])
	case []float32:
		s := src.Data.([]float32)
		copy(d[dstPos:dstPos+length], s[srcPos:srcPos+length])
	case []float64:
		s := src.Data.([]float64)
		copy(d[dstPos:dstPos+length], s[srcPos:srcPos+length])
	case []value.ObjectRef:
		s := src.Data.([]value.ObjectRef)
		copy(d[dstPos:dstPos+length], s[srcPos:srcPos+length])
	}
}

// registerThread binds the minimal java/lang/Thread surface the single-
// cooperative-thread core supports: currentThread is always "the" thread,
// represented as the null handle (no Thread object model exists, per
// spec.md §5's non-goal of true multi-threading), and getName is hardwired
// to "main" regardless of receiver.
func registerThread(r *Registry) {
	const class = "java/lang/Thread"

	r.Register(class, "currentThread", "()Ljava/lang/Thread;",
		func(args []value.Value, ctx *Context) (*value.Value, value.ObjectRef, error) {
			res := value.Null
			return &res, 0, nil
		})

	r.Register(class, "getName", "()Ljava/lang/String;",
		func(args []value.Value, ctx *Context) (*value.Value, value.ObjectRef, error) {
			res := value.Reference(ctx.Heap.NewString([]byte("main"), heap.EncodingUTF16))
			return &res, 0, nil
		})
}

// registerThrowable binds fillInStackTrace, which in Kate's automatic
// capture-on-construction design (SPEC_FULL.md supplement #3) is usually a
// no-op re-snapshot — it exists so a stdlib shim's Throwable.<init> chain
// that calls it explicitly still works.
func registerThrowable(r *Registry) {
	r.Register("java/lang/Throwable", "fillInStackTrace", "()Ljava/lang/Throwable;",
		func(args []value.Value, ctx *Context) (*value.Value, value.ObjectRef, error) {
			recv := args[0]
			if !recv.IsNull() {
				if inst, ok := ctx.Heap.Get(recv.Ref).(*heap.Instance); ok {
					inst.StackTrace = ctx.CaptureStackTrace()
				}
			}
			res := recv
			return &res, 0, nil
		})
}

// registerShutdown stands in for java/lang/Shutdown's native hooks the boot
// sequence touches; Kate runs no shutdown hooks, so halt is a no-op, per
// spec.md §9's Open Question on visit_system/visit_shutdown resolved in
// DESIGN.md.
func registerShutdown(r *Registry) {
	r.Register("java/lang/Shutdown", "halt0", "(I)V",
		func(args []value.Value, ctx *Context) (*value.Value, value.ObjectRef, error) {
			return nil, 0, nil
		})
}
