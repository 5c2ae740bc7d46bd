package classfile

import "kate/internal/kerrors"

// Magic is the four-byte classfile magic number.
const Magic = 0xCAFEBABE

// Access flag bits, carried over from the teacher's internal/jvmgen/classfile.go
// constants — the write-side names for the same bits Kate now reads.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
)

// FieldInfo is a decoded field_info structure.
type FieldInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []AttributeInfo
}

// MethodInfo is a decoded method_info structure.
type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []AttributeInfo
	Code        *CodeAttribute // nil for abstract/native methods
}

func (m *MethodInfo) IsStatic() bool   { return m.AccessFlags&AccStatic != 0 }
func (m *MethodInfo) IsNative() bool   { return m.AccessFlags&AccNative != 0 }
func (m *MethodInfo) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }
func (m *MethodInfo) IsPrivate() bool  { return m.AccessFlags&AccPrivate != 0 }

func (f *FieldInfo) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }

// ClassFile is the immutable, decoded in-memory representation of a
// classfile, per spec.md §3. Field order mirrors the teacher's
// jvmgen.ClassFile almost one-for-one, since both describe the same wire
// format from opposite directions.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool *ConstantPool
	AccessFlags  uint16
	ThisClass    string // resolved binary name
	SuperClass   string // "" for java/lang/Object
	Interfaces   []string
	Fields       []FieldInfo
	Methods      []MethodInfo
	Attributes   []AttributeInfo
}

func (c *ClassFile) IsInterface() bool { return c.AccessFlags&AccInterface != 0 }
func (c *ClassFile) IsAbstract() bool  { return c.AccessFlags&AccAbstract != 0 }

// Decode parses a classfile from buf per the seven-step contract of
// spec.md §4.2: magic, versions, constant pool, access/this/super,
// interfaces, fields/methods, class attributes.
func Decode(buf []byte) (*ClassFile, error) {
	r := NewReader(buf)

	magic, err := r.U4()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, kerrors.Parse(0, "bad magic: got %#08x, want %#08x", magic, uint32(Magic))
	}

	minor, err := r.U2()
	if err != nil {
		return nil, err
	}
	major, err := r.U2()
	if err != nil {
		return nil, err
	}

	cp, err := decodeConstantPool(r)
	if err != nil {
		return nil, err
	}

	accessFlags, err := r.U2()
	if err != nil {
		return nil, err
	}
	thisIdx, err := r.U2()
	if err != nil {
		return nil, err
	}
	thisClass, err := cp.ClassName(thisIdx)
	if err != nil {
		return nil, err
	}
	superIdx, err := r.U2()
	if err != nil {
		return nil, err
	}
	var superClass string
	if superIdx != 0 {
		superClass, err = cp.ClassName(superIdx)
		if err != nil {
			return nil, err
		}
	}

	ifaceCount, err := r.U2()
	if err != nil {
		return nil, err
	}
	interfaces := make([]string, 0, ifaceCount)
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.U2()
		if err != nil {
			return nil, err
		}
		name, err := cp.ClassName(idx)
		if err != nil {
			return nil, err
		}
		interfaces = append(interfaces, name)
	}

	fields, err := decodeFields(r, cp)
	if err != nil {
		return nil, err
	}
	methods, err := decodeMethods(r, cp)
	if err != nil {
		return nil, err
	}
	classAttrs, err := readAttributes(r, cp)
	if err != nil {
		return nil, err
	}

	return &ClassFile{
		MinorVersion: minor,
		MajorVersion: major,
		ConstantPool: cp,
		AccessFlags:  accessFlags,
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Interfaces:   interfaces,
		Fields:       fields,
		Methods:      methods,
		Attributes:   classAttrs,
	}, nil
}

func decodeConstantPool(r *Reader) (*ConstantPool, error) {
	count, err := r.U2()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, count) // entries[0] stays nil (unused)
	i := 1
	for i < int(count) {
		tag, err := r.U1()
		if err != nil {
			return nil, err
		}
		entry, err := decodeEntry(r, tag)
		if err != nil {
			return nil, err
		}
		entries[i] = entry
		i++
		switch tag {
		case TagLong, TagDouble:
			// Long/Double occupy two slots; the second is an unused
			// sentinel, per spec.md §3.
			if i < int(count) {
				entries[i] = UnusedEntry{}
			}
			i++
		}
	}
	return &ConstantPool{entries: entries}, nil
}

func decodeEntry(r *Reader, tag uint8) (Entry, error) {
	switch tag {
	case TagUtf8:
		length, err := r.U2()
		if err != nil {
			return nil, err
		}
		raw, err := r.Bytes(int(length))
		if err != nil {
			return nil, err
		}
		return Utf8Entry{Value: DecodeModifiedUTF8(raw)}, nil
	case TagInteger:
		v, err := r.I4()
		return IntegerEntry{Value: v}, err
	case TagFloat:
		bits, err := r.U4()
		if err != nil {
			return nil, err
		}
		return FloatEntry{Value: bitsToFloat32(bits)}, nil
	case TagLong:
		v, err := r.I8()
		return LongEntry{Value: v}, err
	case TagDouble:
		bits, err := r.U8()
		if err != nil {
			return nil, err
		}
		return DoubleEntry{Value: bitsToFloat64(bits)}, nil
	case TagClass:
		idx, err := r.U2()
		return ClassEntry{NameIndex: idx}, err
	case TagString:
		idx, err := r.U2()
		return StringEntry{StringIndex: idx}, err
	case TagFieldref:
		c, err := r.U2()
		if err != nil {
			return nil, err
		}
		n, err := r.U2()
		return FieldrefEntry{ClassIndex: c, NameAndTypeIndex: n}, err
	case TagMethodref:
		c, err := r.U2()
		if err != nil {
			return nil, err
		}
		n, err := r.U2()
		return MethodrefEntry{ClassIndex: c, NameAndTypeIndex: n}, err
	case TagInterfaceMethodref:
		c, err := r.U2()
		if err != nil {
			return nil, err
		}
		n, err := r.U2()
		return InterfaceMethodrefEntry{ClassIndex: c, NameAndTypeIndex: n}, err
	case TagNameAndType:
		n, err := r.U2()
		if err != nil {
			return nil, err
		}
		d, err := r.U2()
		return NameAndTypeEntry{NameIndex: n, DescriptorIndex: d}, err
	case TagMethodHandle:
		kind, err := r.U1()
		if err != nil {
			return nil, err
		}
		idx, err := r.U2()
		return MethodHandleEntry{ReferenceKind: kind, ReferenceIndex: idx}, err
	case TagMethodType:
		idx, err := r.U2()
		return MethodTypeEntry{DescriptorIndex: idx}, err
	case TagDynamic:
		bsm, err := r.U2()
		if err != nil {
			return nil, err
		}
		nat, err := r.U2()
		return DynamicEntry{BootstrapMethodAttrIndex: bsm, NameAndTypeIndex: nat}, err
	case TagInvokeDynamic:
		bsm, err := r.U2()
		if err != nil {
			return nil, err
		}
		nat, err := r.U2()
		return InvokeDynamicEntry{BootstrapMethodAttrIndex: bsm, NameAndTypeIndex: nat}, err
	case TagModule:
		idx, err := r.U2()
		return ModuleEntry{NameIndex: idx}, err
	case TagPackage:
		idx, err := r.U2()
		return PackageEntry{NameIndex: idx}, err
	default:
		return nil, kerrors.Parse(int64(r.Pos()), "unrecognized constant pool tag %d", tag)
	}
}

func decodeFields(r *Reader, cp *ConstantPool) ([]FieldInfo, error) {
	count, err := r.U2()
	if err != nil {
		return nil, err
	}
	out := make([]FieldInfo, 0, count)
	for i := 0; i < int(count); i++ {
		access, err := r.U2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.U2()
		if err != nil {
			return nil, err
		}
		name, err := cp.Utf8(nameIdx)
		if err != nil {
			return nil, err
		}
		descIdx, err := r.U2()
		if err != nil {
			return nil, err
		}
		desc, err := cp.Utf8(descIdx)
		if err != nil {
			return nil, err
		}
		attrs, err := readAttributes(r, cp)
		if err != nil {
			return nil, err
		}
		out = append(out, FieldInfo{AccessFlags: access, Name: name, Descriptor: desc, Attributes: attrs})
	}
	return out, nil
}

func decodeMethods(r *Reader, cp *ConstantPool) ([]MethodInfo, error) {
	count, err := r.U2()
	if err != nil {
		return nil, err
	}
	out := make([]MethodInfo, 0, count)
	for i := 0; i < int(count); i++ {
		access, err := r.U2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.U2()
		if err != nil {
			return nil, err
		}
		name, err := cp.Utf8(nameIdx)
		if err != nil {
			return nil, err
		}
		descIdx, err := r.U2()
		if err != nil {
			return nil, err
		}
		desc, err := cp.Utf8(descIdx)
		if err != nil {
			return nil, err
		}
		attrs, err := readAttributes(r, cp)
		if err != nil {
			return nil, err
		}
		mi := MethodInfo{AccessFlags: access, Name: name, Descriptor: desc, Attributes: attrs}
		if codeAttr, ok := FindAttribute(attrs, "Code"); ok {
			mi.Code, err = DecodeCode(codeAttr, cp)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, mi)
	}
	return out, nil
}
