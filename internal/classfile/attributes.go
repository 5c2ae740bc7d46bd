package classfile

// ExceptionTableEntry is one row of a Code attribute's exception table.
type ExceptionTableEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // 0 means "any" (finally)
}

// CodeAttribute is the decoded form of a method's Code attribute: the
// actual bytecode plus the operand-stack/locals sizing the frame needs.
type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionTableEntry
	Attributes     []AttributeInfo
}

// LineNumberEntry maps a bytecode offset to a source line, from a
// LineNumberTable attribute, as returned by DecodeLineNumberTable.
type LineNumberEntry struct {
	StartPC uint16
	Line    uint16
}

// AttributeInfo is the generic, not-yet-interpreted form of an attribute:
// a name plus its raw payload bytes. Decode itself interprets only a
// method's Code attribute (into MethodInfo.Code); ConstantValue,
// LineNumberTable and BootstrapMethods payloads are interpreted on request
// by ConstantValueIndex, DecodeLineNumberTable and DecodeBootstrapMethods.
// Every other attribute, SourceFile and the nest/permitted-subclass
// attributes included, stays in this raw form exactly as read.
type AttributeInfo struct {
	Name string
	Data []byte
}

// BootstrapMethod is one entry of a BootstrapMethods attribute, retained
// for invokedynamic's structural-parsing obligation (spec.md §4.7).
type BootstrapMethod struct {
	MethodRefIndex uint16
	Arguments      []uint16
}

func readAttributes(r *Reader, cp *ConstantPool) ([]AttributeInfo, error) {
	count, err := r.U2()
	if err != nil {
		return nil, err
	}
	attrs := make([]AttributeInfo, 0, count)
	for i := 0; i < int(count); i++ {
		nameIdx, err := r.U2()
		if err != nil {
			return nil, err
		}
		name, err := cp.Utf8(nameIdx)
		if err != nil {
			return nil, err
		}
		length, err := r.U4()
		if err != nil {
			return nil, err
		}
		data, err := r.Bytes(int(length))
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, AttributeInfo{Name: name, Data: append([]byte(nil), data...)})
	}
	return attrs, nil
}

// DecodeCode parses a Code attribute's payload (its Data field, as returned
// by readAttributes) into a CodeAttribute. Methods look this up by scanning
// their Attributes for Name == "Code".
func DecodeCode(attr AttributeInfo, cp *ConstantPool) (*CodeAttribute, error) {
	r := NewReader(attr.Data)
	maxStack, err := r.U2()
	if err != nil {
		return nil, err
	}
	maxLocals, err := r.U2()
	if err != nil {
		return nil, err
	}
	codeLen, err := r.U4()
	if err != nil {
		return nil, err
	}
	code, err := r.Bytes(int(codeLen))
	if err != nil {
		return nil, err
	}
	excCount, err := r.U2()
	if err != nil {
		return nil, err
	}
	excTable := make([]ExceptionTableEntry, 0, excCount)
	for i := 0; i < int(excCount); i++ {
		start, err := r.U2()
		if err != nil {
			return nil, err
		}
		end, err := r.U2()
		if err != nil {
			return nil, err
		}
		handler, err := r.U2()
		if err != nil {
			return nil, err
		}
		catchType, err := r.U2()
		if err != nil {
			return nil, err
		}
		excTable = append(excTable, ExceptionTableEntry{start, end, handler, catchType})
	}
	nested, err := readAttributes(r, cp)
	if err != nil {
		return nil, err
	}
	return &CodeAttribute{
		MaxStack:       maxStack,
		MaxLocals:      maxLocals,
		Code:           append([]byte(nil), code...),
		ExceptionTable: excTable,
		Attributes:     nested,
	}, nil
}

// DecodeLineNumberTable parses a LineNumberTable attribute's payload.
func DecodeLineNumberTable(attr AttributeInfo) ([]LineNumberEntry, error) {
	r := NewReader(attr.Data)
	count, err := r.U2()
	if err != nil {
		return nil, err
	}
	out := make([]LineNumberEntry, 0, count)
	for i := 0; i < int(count); i++ {
		startPC, err := r.U2()
		if err != nil {
			return nil, err
		}
		line, err := r.U2()
		if err != nil {
			return nil, err
		}
		out = append(out, LineNumberEntry{startPC, line})
	}
	return out, nil
}

// DecodeBootstrapMethods parses a BootstrapMethods attribute's payload,
// retained structurally for invokedynamic per spec.md §4.7/§9.
func DecodeBootstrapMethods(attr AttributeInfo) ([]BootstrapMethod, error) {
	r := NewReader(attr.Data)
	count, err := r.U2()
	if err != nil {
		return nil, err
	}
	out := make([]BootstrapMethod, 0, count)
	for i := 0; i < int(count); i++ {
		refIdx, err := r.U2()
		if err != nil {
			return nil, err
		}
		argCount, err := r.U2()
		if err != nil {
			return nil, err
		}
		args := make([]uint16, argCount)
		for j := range args {
			args[j], err = r.U2()
			if err != nil {
				return nil, err
			}
		}
		out = append(out, BootstrapMethod{MethodRefIndex: refIdx, Arguments: args})
	}
	return out, nil
}

// FindAttribute returns the first attribute named name, if present.
func FindAttribute(attrs []AttributeInfo, name string) (AttributeInfo, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeInfo{}, false
}

// ConstantValueIndex returns the constant-pool index referenced by a
// ConstantValue attribute.
func ConstantValueIndex(attr AttributeInfo) (uint16, error) {
	r := NewReader(attr.Data)
	return r.U2()
}
