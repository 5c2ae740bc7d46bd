package loader

import (
	"kate/internal/classfile"
	"kate/internal/heap"
	"kate/internal/kerrors"
	"kate/internal/value"
)

// State is a class's position in the init_state state machine of
// spec.md §3/§4.4: Unlinked -> Linked -> Initializing -> Initialized, with
// an ErroredDuringInit absorbing state reached from Initializing.
type State int

const (
	Unlinked State = iota
	Linked
	Initializing
	Initialized
	ErroredDuringInit
)

// FieldSlot names one instance-field slot's declaring (class, name, desc).
type FieldSlot struct {
	DeclaringClass heap.ClassId
	Name           string
	Descriptor     string
}

// LoadedClass is the linked form of a classfile, per spec.md §3.
type LoadedClass struct {
	ID       heap.ClassId
	Name     string
	CF       *classfile.ClassFile // nil for synthesized array classes
	Super    heap.ClassId
	HasSuper bool
	IsArray  bool

	Interfaces []heap.ClassId

	FieldLayout []FieldSlot    // index = instance slot
	fieldIndex  map[string]int // "name:desc" -> slot, own + inherited

	StaticSlots map[string]*value.Value // "name:desc" -> mutable slot
	MethodTable map[string]*classfile.MethodInfo

	Mirror value.ObjectRef
	State  State
}

func fieldKey(name, descriptor string) string { return name + ":" + descriptor }

// link computes lc's field_layout (superclass slots first, then this
// class's own declared non-static instance fields in declaration order)
// and default-initializes its static_slots from ConstantValue attributes,
// per spec.md §4.4 step 5.
func (l *Loader) link(lc *LoadedClass) error {
	lc.fieldIndex = make(map[string]int)

	if lc.HasSuper {
		super := l.ByID(lc.Super)
		if super == nil {
			return kerrors.Internal("super class id %d not registered while linking %q", lc.Super, lc.Name)
		}
		lc.FieldLayout = append(lc.FieldLayout, super.FieldLayout...)
		for k, v := range super.fieldIndex {
			lc.fieldIndex[k] = v
		}
	}

	if lc.CF == nil {
		return nil // synthesized array/bootstrap class: no declared fields
	}

	for _, f := range lc.CF.Fields {
		if f.IsStatic() {
			continue
		}
		slot := len(lc.FieldLayout)
		lc.FieldLayout = append(lc.FieldLayout, FieldSlot{
			DeclaringClass: lc.ID,
			Name:           f.Name,
			Descriptor:     f.Descriptor,
		})
		lc.fieldIndex[fieldKey(f.Name, f.Descriptor)] = slot
	}

	for _, f := range lc.CF.Fields {
		if !f.IsStatic() {
			continue
		}
		ft, _, err := classfile.ParseField(f.Descriptor)
		if err != nil {
			return err
		}
		v := value.DefaultFor(ft.Kind)
		if cv, ok := classfile.FindAttribute(f.Attributes, "ConstantValue"); ok {
			idx, err := classfile.ConstantValueIndex(cv)
			if err != nil {
				return err
			}
			v, err = constantPoolValue(lc.CF.ConstantPool, idx, ft.Kind)
			if err != nil {
				return err
			}
		}
		slot := v
		lc.StaticSlots[fieldKey(f.Name, f.Descriptor)] = &slot
	}

	return nil
}

func constantPoolValue(cp *classfile.ConstantPool, idx uint16, kind byte) (value.Value, error) {
	entry, err := cp.At(idx)
	if err != nil {
		return value.Value{}, err
	}
	switch e := entry.(type) {
	case classfile.IntegerEntry:
		return value.Int32(e.Value), nil
	case classfile.LongEntry:
		return value.Int64(e.Value), nil
	case classfile.FloatEntry:
		return value.Float32(e.Value), nil
	case classfile.DoubleEntry:
		return value.Float64(e.Value), nil
	case classfile.StringEntry:
		// the VM interns the actual String object lazily on first read;
		// the static slot carries the null placeholder until then is not
		// correct per spec (ConstantValue strings are eagerly available),
		// so this is resolved by the VM at EnsureInitialized time instead
		// — see vm.resolveConstantValueStrings.
		return value.Null, nil
	default:
		return value.DefaultFor(kind), nil
	}
}

// FieldSlotIndex resolves (name, descriptor) to an instance slot index,
// walking the inheritance chain via fieldIndex (already flattened at link
// time), per spec.md §4.4/§8's layout-inheritance invariant.
func (lc *LoadedClass) FieldSlotIndex(name, descriptor string) (int, bool) {
	idx, ok := lc.fieldIndex[fieldKey(name, descriptor)]
	return idx, ok
}

// LookupStaticSlot walks lc and its superclasses for a static slot named
// (name, descriptor), per spec.md §4.6's inheritance-aware static lookup
// (grounded on the teacher's lookupStaticVar recursive Parent walk).
func (l *Loader) LookupStaticSlot(lc *LoadedClass, name, descriptor string) (*value.Value, *LoadedClass) {
	for c := lc; c != nil; {
		if slot, ok := c.StaticSlots[fieldKey(name, descriptor)]; ok {
			return slot, c
		}
		if !c.HasSuper {
			break
		}
		c = l.ByID(c.Super)
	}
	return nil, nil
}

// LookupMethod walks lc and its superclasses (not interfaces) for a
// (name, descriptor) method, per spec.md §4.7's invokevirtual/invokespecial
// resolution rule.
func (l *Loader) LookupMethod(lc *LoadedClass, name, descriptor string) (*classfile.MethodInfo, *LoadedClass) {
	for c := lc; c != nil; {
		if m, ok := c.MethodTable[methodKey(name, descriptor)]; ok {
			return m, c
		}
		if !c.HasSuper {
			break
		}
		c = l.ByID(c.Super)
	}
	return nil, nil
}

// LookupInterfaceMethod resolves an interface method per spec.md §4.7's
// invokeinterface rule: search lc's own class chain first (a concrete
// override), then the non-abstract methods of lc and the interfaces lc
// declares, transitively, in declaration order. When two interfaces both
// supply a default, the one declared by the more specific interface (a
// subinterface of the other) wins; two defaults from unrelated interfaces
// are an ambiguity LinkError. Interfaces implemented only by a superclass
// of lc are not searched.
func (l *Loader) LookupInterfaceMethod(lc *LoadedClass, name, descriptor string) (*classfile.MethodInfo, *LoadedClass, error) {
	if m, owner := l.LookupMethod(lc, name, descriptor); m != nil {
		return m, owner, nil
	}
	var found *classfile.MethodInfo
	var foundOwner *LoadedClass
	var search func(c *LoadedClass) error
	seen := make(map[heap.ClassId]bool)
	search = func(c *LoadedClass) error {
		if c == nil || seen[c.ID] {
			return nil
		}
		seen[c.ID] = true
		if m, ok := c.MethodTable[methodKey(name, descriptor)]; ok && !m.IsAbstract() {
			switch {
			case found == nil:
				found, foundOwner = m, c
			case found == m || l.IsAssignableFrom(foundOwner.ID, c.ID):
				// foundOwner is at least as specific as c: keep it
			case l.IsAssignableFrom(c.ID, foundOwner.ID):
				found, foundOwner = m, c
			default:
				return kerrors.Link("ambiguous default method %s:%s between %q and %q", name, descriptor, foundOwner.Name, c.Name)
			}
		}
		for _, ifaceID := range c.Interfaces {
			if err := search(l.ByID(ifaceID)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := search(lc); err != nil {
		return nil, nil, err
	}
	return found, foundOwner, nil
}

// IsAssignableFrom reports whether an instance of class sub can be used
// where super is expected: sub == super, sub's superclass chain contains
// super, or sub's interface set (transitively) contains super.
func (l *Loader) IsAssignableFrom(sub, super heap.ClassId) bool {
	if sub == super {
		return true
	}
	subClass := l.ByID(sub)
	if subClass == nil {
		return false
	}
	if subClass.HasSuper && l.IsAssignableFrom(subClass.Super, super) {
		return true
	}
	for _, ifaceID := range subClass.Interfaces {
		if l.IsAssignableFrom(ifaceID, super) {
			return true
		}
	}
	return false
}

// EnsureInitialized transitions Linked -> Initializing -> Initialized, per
// spec.md §4.4: superclass first, then <clinit> if present, re-entrant for
// the (single) executing thread, ErroredDuringInit on a failed <clinit>.
func (l *Loader) EnsureInitialized(lc *LoadedClass) error {
	switch lc.State {
	case Initialized:
		return nil
	case Initializing:
		return nil // single-thread core: re-entrant by construction
	case ErroredDuringInit:
		return kerrors.Link("class %q previously failed initialization", lc.Name)
	}

	lc.State = Initializing
	if lc.HasSuper {
		super := l.ByID(lc.Super)
		if err := l.EnsureInitialized(super); err != nil {
			lc.State = ErroredDuringInit
			return err
		}
	}
	if lc.CF != nil && l.runClinit != nil {
		if _, ok := lc.MethodTable[methodKey("<clinit>", "()V")]; ok {
			if err := l.runClinit(lc); err != nil {
				lc.State = ErroredDuringInit
				return err
			}
		}
	}
	lc.State = Initialized
	return nil
}
