package classfile

import (
	"bytes"
	"encoding/binary"
)

// Builder assembles classfile bytes from scratch. It exists only to
// produce in-memory test fixtures (no .class files are shipped with this
// module) and for the decode-encode identity law in spec.md §8. Its shape —
// a constant-pool-entries slice plus per-section Write helpers driven by
// encoding/binary — is carried over directly from the teacher's
// internal/jvmgen/classfile.go, which builds classfiles for exactly this
// reason (as a compiler backend rather than a test-fixture factory).
type Builder struct {
	minor, major uint16
	pool         [][]byte // pre-encoded entries, index 0 unused
	accessFlags  uint16
	thisClass    uint16
	superClass   uint16
	interfaces   []uint16
	fields       []builtField
	methods      []builtMethod
}

type builtField struct {
	access          uint16
	nameIdx, descIdx uint16
	attrs           []builtAttr
}

type builtMethod struct {
	access           uint16
	nameIdx, descIdx uint16
	attrs            []builtAttr
}

type builtAttr struct {
	nameIdx uint16
	data    []byte
}

// NewBuilder starts a builder at class-file version 52.0 (Java 8), matching
// the teacher's own jvmgen.NewClassFile default.
func NewBuilder() *Builder {
	b := &Builder{major: 52, pool: make([][]byte, 1)}
	b.accessFlags = AccPublic | AccSuper
	return b
}

func (b *Builder) addEntry(tag uint8, payload []byte) uint16 {
	entry := append([]byte{tag}, payload...)
	b.pool = append(b.pool, entry)
	idx := uint16(len(b.pool) - 1)
	return idx
}

// AddUtf8 adds a Utf8 entry, returning its constant-pool index. Each call
// appends a new entry, even for a string already in the pool.
func (b *Builder) AddUtf8(s string) uint16 {
	enc := EncodeModifiedUTF8(s)
	payload := make([]byte, 2+len(enc))
	binary.BigEndian.PutUint16(payload, uint16(len(enc)))
	copy(payload[2:], enc)
	return b.addEntry(TagUtf8, payload)
}

// AddClass adds a Class entry for binary name name.
func (b *Builder) AddClass(name string) uint16 {
	nameIdx := b.AddUtf8(name)
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, nameIdx)
	return b.addEntry(TagClass, payload)
}

// AddNameAndType adds a NameAndType entry.
func (b *Builder) AddNameAndType(name, descriptor string) uint16 {
	nameIdx := b.AddUtf8(name)
	descIdx := b.AddUtf8(descriptor)
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:], nameIdx)
	binary.BigEndian.PutUint16(payload[2:], descIdx)
	return b.addEntry(TagNameAndType, payload)
}

func (b *Builder) addRef(tag uint8, classIdx, natIdx uint16) uint16 {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:], classIdx)
	binary.BigEndian.PutUint16(payload[2:], natIdx)
	return b.addEntry(tag, payload)
}

// AddMethodref adds a Methodref entry for className.name:descriptor.
func (b *Builder) AddMethodref(className, name, descriptor string) uint16 {
	return b.addRef(TagMethodref, b.AddClass(className), b.AddNameAndType(name, descriptor))
}

// AddFieldref adds a Fieldref entry for className.name:descriptor.
func (b *Builder) AddFieldref(className, name, descriptor string) uint16 {
	return b.addRef(TagFieldref, b.AddClass(className), b.AddNameAndType(name, descriptor))
}

// AddString adds a String entry wrapping value.
func (b *Builder) AddString(value string) uint16 {
	utf8Idx := b.AddUtf8(value)
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, utf8Idx)
	return b.addEntry(TagString, payload)
}

// AddInteger adds an Integer entry.
func (b *Builder) AddInteger(v int32) uint16 {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(v))
	return b.addEntry(TagInteger, payload)
}

// AddLong adds a Long entry, consuming two pool slots.
func (b *Builder) AddLong(v int64) uint16 {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(v))
	idx := b.addEntry(TagLong, payload)
	b.pool = append(b.pool, nil) // sentinel slot
	return idx
}

// AddFloat adds a Float entry.
func (b *Builder) AddFloat(v float32) uint16 {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, float32bits(v))
	return b.addEntry(TagFloat, payload)
}

// AddDouble adds a Double entry, consuming two pool slots.
func (b *Builder) AddDouble(v float64) uint16 {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, float64bits(v))
	idx := b.addEntry(TagDouble, payload)
	b.pool = append(b.pool, nil)
	return idx
}

// SetThis sets the this_class/super_class entries by binary name. super=""
// means java/lang/Object (super_class index 0).
func (b *Builder) SetThis(this, super string) {
	b.thisClass = b.AddClass(this)
	if super != "" {
		b.superClass = b.AddClass(super)
	}
}

// SetAccessFlags overrides the default AccPublic|AccSuper.
func (b *Builder) SetAccessFlags(flags uint16) { b.accessFlags = flags }

// AddInterface records an implemented interface by binary name.
func (b *Builder) AddInterface(name string) {
	b.interfaces = append(b.interfaces, b.AddClass(name))
}

// AddField adds a field_info entry. constantValueIdx, if non-nil, attaches a
// ConstantValue attribute referencing that already-added pool index.
func (b *Builder) AddField(access uint16, name, descriptor string, constantValueIdx *uint16) {
	f := builtField{access: access, nameIdx: b.AddUtf8(name), descIdx: b.AddUtf8(descriptor)}
	if constantValueIdx != nil {
		payload := make([]byte, 2)
		binary.BigEndian.PutUint16(payload, *constantValueIdx)
		f.attrs = append(f.attrs, builtAttr{nameIdx: b.AddUtf8("ConstantValue"), data: payload})
	}
	b.fields = append(b.fields, f)
}

// AddMethod adds a method_info entry with a Code attribute built from raw
// bytecode. If code is nil (abstract/native methods), no Code attribute is
// attached.
func (b *Builder) AddMethod(access uint16, name, descriptor string, maxStack, maxLocals uint16, code []byte, excTable []ExceptionTableEntry) {
	m := builtMethod{access: access, nameIdx: b.AddUtf8(name), descIdx: b.AddUtf8(descriptor)}
	if code != nil {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, maxStack)
		binary.Write(&buf, binary.BigEndian, maxLocals)
		binary.Write(&buf, binary.BigEndian, uint32(len(code)))
		buf.Write(code)
		binary.Write(&buf, binary.BigEndian, uint16(len(excTable)))
		for _, e := range excTable {
			binary.Write(&buf, binary.BigEndian, e.StartPC)
			binary.Write(&buf, binary.BigEndian, e.EndPC)
			binary.Write(&buf, binary.BigEndian, e.HandlerPC)
			binary.Write(&buf, binary.BigEndian, e.CatchType)
		}
		binary.Write(&buf, binary.BigEndian, uint16(0)) // no nested attributes
		m.attrs = append(m.attrs, builtAttr{nameIdx: b.AddUtf8("Code"), data: buf.Bytes()})
	}
	b.methods = append(b.methods, m)
}

// Bytes serializes the builder into a complete classfile byte stream.
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(Magic))
	binary.Write(&buf, binary.BigEndian, b.minor)
	binary.Write(&buf, binary.BigEndian, b.major)

	binary.Write(&buf, binary.BigEndian, uint16(len(b.pool)))
	for i := 1; i < len(b.pool); i++ {
		if b.pool[i] == nil {
			continue // Long/Double sentinel slot
		}
		buf.Write(b.pool[i])
	}

	binary.Write(&buf, binary.BigEndian, b.accessFlags)
	binary.Write(&buf, binary.BigEndian, b.thisClass)
	binary.Write(&buf, binary.BigEndian, b.superClass)

	binary.Write(&buf, binary.BigEndian, uint16(len(b.interfaces)))
	for _, idx := range b.interfaces {
		binary.Write(&buf, binary.BigEndian, idx)
	}

	binary.Write(&buf, binary.BigEndian, uint16(len(b.fields)))
	for _, f := range b.fields {
		binary.Write(&buf, binary.BigEndian, f.access)
		binary.Write(&buf, binary.BigEndian, f.nameIdx)
		binary.Write(&buf, binary.BigEndian, f.descIdx)
		writeAttrs(&buf, f.attrs)
	}

	binary.Write(&buf, binary.BigEndian, uint16(len(b.methods)))
	for _, m := range b.methods {
		binary.Write(&buf, binary.BigEndian, m.access)
		binary.Write(&buf, binary.BigEndian, m.nameIdx)
		binary.Write(&buf, binary.BigEndian, m.descIdx)
		writeAttrs(&buf, m.attrs)
	}

	binary.Write(&buf, binary.BigEndian, uint16(0)) // no class attributes
	return buf.Bytes()
}

func writeAttrs(buf *bytes.Buffer, attrs []builtAttr) {
	binary.Write(buf, binary.BigEndian, uint16(len(attrs)))
	for _, a := range attrs {
		binary.Write(buf, binary.BigEndian, a.nameIdx)
		binary.Write(buf, binary.BigEndian, uint32(len(a.data)))
		buf.Write(a.data)
	}
}
