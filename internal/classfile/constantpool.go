package classfile

import "kate/internal/kerrors"

// Constant-pool tag values, carried over from the teacher's
// internal/jvmgen/classfile.go tag constants (which name the same wire
// format from the write side).
const (
	TagUtf8              = 1
	TagInteger           = 3
	TagFloat             = 4
	TagLong              = 5
	TagDouble            = 6
	TagClass             = 7
	TagString            = 8
	TagFieldref          = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// Entry is a constant-pool entry. Each tag gets its own concrete struct;
// Tag() recovers the tag byte without a type switch at every call site.
type Entry interface {
	Tag() uint8
}

type Utf8Entry struct{ Value string }

func (Utf8Entry) Tag() uint8 { return TagUtf8 }

type IntegerEntry struct{ Value int32 }

func (IntegerEntry) Tag() uint8 { return TagInteger }

type FloatEntry struct{ Value float32 }

func (FloatEntry) Tag() uint8 { return TagFloat }

type LongEntry struct{ Value int64 }

func (LongEntry) Tag() uint8 { return TagLong }

type DoubleEntry struct{ Value float64 }

func (DoubleEntry) Tag() uint8 { return TagDouble }

// UnusedEntry occupies the sentinel slot following a Long or Double entry.
type UnusedEntry struct{}

func (UnusedEntry) Tag() uint8 { return 0 }

type ClassEntry struct{ NameIndex uint16 }

func (ClassEntry) Tag() uint8 { return TagClass }

type StringEntry struct{ StringIndex uint16 }

func (StringEntry) Tag() uint8 { return TagString }

type FieldrefEntry struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (FieldrefEntry) Tag() uint8 { return TagFieldref }

type MethodrefEntry struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (MethodrefEntry) Tag() uint8 { return TagMethodref }

type InterfaceMethodrefEntry struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (InterfaceMethodrefEntry) Tag() uint8 { return TagInterfaceMethodref }

type NameAndTypeEntry struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (NameAndTypeEntry) Tag() uint8 { return TagNameAndType }

type MethodHandleEntry struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

func (MethodHandleEntry) Tag() uint8 { return TagMethodHandle }

type MethodTypeEntry struct{ DescriptorIndex uint16 }

func (MethodTypeEntry) Tag() uint8 { return TagMethodType }

type DynamicEntry struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (DynamicEntry) Tag() uint8 { return TagDynamic }

type InvokeDynamicEntry struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (InvokeDynamicEntry) Tag() uint8 { return TagInvokeDynamic }

type ModuleEntry struct{ NameIndex uint16 }

func (ModuleEntry) Tag() uint8 { return TagModule }

type PackageEntry struct{ NameIndex uint16 }

func (PackageEntry) Tag() uint8 { return TagPackage }

// ConstantPool is the 1-indexed, tag-dispatched table of constants embedded
// in a classfile. Entry 0 is unused; Long/Double entries occupy their index
// and a following UnusedEntry sentinel.
type ConstantPool struct {
	entries []Entry // entries[0] unused
}

// Count returns the number of addressable slots, including the unused
// slot 0 and any Long/Double sentinels — i.e. constant_pool_count.
func (cp *ConstantPool) Count() int { return len(cp.entries) }

// At returns the entry at a 1-based index.
func (cp *ConstantPool) At(index uint16) (Entry, error) {
	if int(index) <= 0 || int(index) >= len(cp.entries) {
		return nil, kerrors.Link("constant pool index %d out of range [1,%d)", index, len(cp.entries))
	}
	e := cp.entries[index]
	if _, sentinel := e.(UnusedEntry); e == nil || sentinel {
		return nil, kerrors.Link("constant pool index %d is unused", index)
	}
	return e, nil
}

// Utf8 resolves a Utf8 entry, type-checking the tag.
func (cp *ConstantPool) Utf8(index uint16) (string, error) {
	e, err := cp.At(index)
	if err != nil {
		return "", err
	}
	u, ok := e.(Utf8Entry)
	if !ok {
		return "", kerrors.Link("constant pool index %d is not Utf8 (tag %d)", index, e.Tag())
	}
	return u.Value, nil
}

// ClassName resolves a Class entry's name via its Utf8.
func (cp *ConstantPool) ClassName(index uint16) (string, error) {
	e, err := cp.At(index)
	if err != nil {
		return "", err
	}
	c, ok := e.(ClassEntry)
	if !ok {
		return "", kerrors.Link("constant pool index %d is not Class (tag %d)", index, e.Tag())
	}
	return cp.Utf8(c.NameIndex)
}

// NameAndType resolves a NameAndType entry to its (name, descriptor) pair.
func (cp *ConstantPool) NameAndType(index uint16) (name, descriptor string, err error) {
	e, err := cp.At(index)
	if err != nil {
		return "", "", err
	}
	nat, ok := e.(NameAndTypeEntry)
	if !ok {
		return "", "", kerrors.Link("constant pool index %d is not NameAndType (tag %d)", index, e.Tag())
	}
	name, err = cp.Utf8(nat.NameIndex)
	if err != nil {
		return "", "", err
	}
	descriptor, err = cp.Utf8(nat.DescriptorIndex)
	return name, descriptor, err
}

// RefTarget resolves any of {Field,Method,InterfaceMethod}ref to
// (class binary name, member name, member descriptor).
func (cp *ConstantPool) RefTarget(index uint16) (className, memberName, descriptor string, err error) {
	e, err := cp.At(index)
	if err != nil {
		return "", "", "", err
	}
	var classIdx, natIdx uint16
	switch r := e.(type) {
	case FieldrefEntry:
		classIdx, natIdx = r.ClassIndex, r.NameAndTypeIndex
	case MethodrefEntry:
		classIdx, natIdx = r.ClassIndex, r.NameAndTypeIndex
	case InterfaceMethodrefEntry:
		classIdx, natIdx = r.ClassIndex, r.NameAndTypeIndex
	default:
		return "", "", "", kerrors.Link("constant pool index %d is not a ref (tag %d)", index, e.Tag())
	}
	className, err = cp.ClassName(classIdx)
	if err != nil {
		return "", "", "", err
	}
	memberName, descriptor, err = cp.NameAndType(natIdx)
	return className, memberName, descriptor, err
}
