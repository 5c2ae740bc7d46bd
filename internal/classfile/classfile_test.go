package classfile

import "testing"

func TestDecodeMinimalClass(t *testing.T) {
	b := NewBuilder()
	b.SetThis("Simple", "")
	b.AddMethod(AccPublic|AccStatic, "main", "([Ljava/lang/String;)V", 1, 1, []byte{0xb1 /* return */}, nil)

	cf, err := Decode(b.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cf.MajorVersion != 52 {
		t.Errorf("major version = %d, want 52", cf.MajorVersion)
	}
	if cf.ThisClass != "Simple" {
		t.Errorf("this class = %q, want Simple", cf.ThisClass)
	}
	if cf.SuperClass != "" {
		t.Errorf("super class = %q, want empty (Object)", cf.SuperClass)
	}
	if len(cf.Methods) != 1 || cf.Methods[0].Name != "main" {
		t.Fatalf("methods = %+v", cf.Methods)
	}
	if cf.Methods[0].Code == nil || len(cf.Methods[0].Code.Code) != 1 {
		t.Fatalf("expected one-byte code, got %+v", cf.Methods[0].Code)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0, 0})
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestConstantPoolLongDoubleSentinel(t *testing.T) {
	b := NewBuilder()
	b.SetThis("Longs", "")
	longIdx := b.AddLong(123456789012345)
	b.AddMethod(AccPublic|AccStatic, "main", "()V", 4, 2, []byte{0xb1}, nil)

	cf, err := Decode(b.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	entry, err := cf.ConstantPool.At(longIdx)
	if err != nil {
		t.Fatalf("At(long): %v", err)
	}
	l, ok := entry.(LongEntry)
	if !ok || l.Value != 123456789012345 {
		t.Fatalf("long entry = %+v", entry)
	}
	// the slot after a Long must be the unused sentinel.
	if _, err := cf.ConstantPool.At(longIdx + 1); err == nil {
		t.Fatal("expected sentinel slot after Long to be unusable")
	}
}

func TestParseFieldDescriptors(t *testing.T) {
	cases := []struct {
		in   string
		kind byte
	}{
		{"I", 'I'},
		{"Ljava/lang/String;", 'L'},
		{"[I", '['},
		{"[[Ljava/lang/Object;", '['},
	}
	for _, c := range cases {
		ft, n, err := ParseField(c.in)
		if err != nil {
			t.Fatalf("ParseField(%q): %v", c.in, err)
		}
		if ft.Kind != c.kind {
			t.Errorf("ParseField(%q).Kind = %c, want %c", c.in, ft.Kind, c.kind)
		}
		if n != len(c.in) {
			t.Errorf("ParseField(%q) consumed %d, want %d", c.in, n, len(c.in))
		}
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	mt, err := ParseMethod("(IJLjava/lang/String;)Z")
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}
	if len(mt.Params) != 3 {
		t.Fatalf("params = %+v", mt.Params)
	}
	if mt.ParamSlots() != 4 { // I(1) + J(2) + L(1)
		t.Errorf("ParamSlots = %d, want 4", mt.ParamSlots())
	}
	if mt.Return == nil || mt.Return.Kind != 'Z' {
		t.Errorf("return = %+v", mt.Return)
	}
}

func TestParseVoidMethodDescriptor(t *testing.T) {
	mt, err := ParseMethod("()V")
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}
	if mt.Return != nil {
		t.Errorf("expected void return, got %+v", mt.Return)
	}
	if mt.ReturnSlots() != 0 {
		t.Errorf("ReturnSlots = %d, want 0", mt.ReturnSlots())
	}
}

func TestModifiedUTF8RoundTrip(t *testing.T) {
	cases := []string{"hello", "with\x00null", "λ", "😀"}
	for _, s := range cases {
		enc := EncodeModifiedUTF8(s)
		dec := DecodeModifiedUTF8(enc)
		if dec != s {
			t.Errorf("round trip %q -> %q", s, dec)
		}
	}
}
