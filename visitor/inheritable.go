package visitor

// InheritableFlags describe the state of an Inheritable value.
type InheritableFlags uint8

const (
	// InheritableModified marks a value changed locally; it must not be
	// overwritten by the value it inherits from.
	InheritableModified InheritableFlags = 1 << 0
	// InheritableNeedSync marks a value whose change has not been
	// propagated yet.
	InheritableNeedSync InheritableFlags = 1 << 1
)

// Inheritable is a value that is normally taken from a parent object and is
// only stored once it has been modified locally.
type Inheritable[T any] struct {
	value T
	flags InheritableFlags
}

// NewInheritable returns an unmodified value.
func NewInheritable[T any](value T) Inheritable[T] {
	return Inheritable[T]{value: value}
}

// NewModified returns a value already marked as modified.
func NewModified[T any](value T) Inheritable[T] {
	return Inheritable[T]{value: value, flags: InheritableModified}
}

func (i *Inheritable[T]) Get() T { return i.value }

// Set replaces the value and marks it modified.
func (i *Inheritable[T]) Set(value T) {
	i.value = value
	i.flags |= InheritableModified | InheritableNeedSync
}

// Inherit replaces the value without marking it modified. It does nothing if
// the value was modified locally.
func (i *Inheritable[T]) Inherit(value T) {
	if !i.IsModified() {
		i.value = value
	}
}

func (i *Inheritable[T]) IsModified() bool { return i.flags&InheritableModified != 0 }

func (i *Inheritable[T]) Flags() InheritableFlags { return i.flags }

// ResetModified clears the modified and need-sync flags.
func (i *Inheritable[T]) ResetModified() {
	i.flags &^= InheritableModified | InheritableNeedSync
}

// VisitInheritable visits an Inheritable as a region with Value and Flags.
// An unmodified value is skipped on write unless FlagSerializeEverything is
// set; a missing region on read leaves i untouched.
func VisitInheritable[T any](v *Visitor, name string, i *Inheritable[T], visit VisitFunc[T]) error {
	if v.reading {
		if !v.HasRegion(name) {
			return nil
		}
	} else if !i.IsModified() && !v.flags.Contains(FlagSerializeEverything) {
		return nil
	}

	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	if err := visit(r.Visitor, "Value", &i.value); err != nil {
		return err
	}
	flags := uint8(i.flags)
	if err := VisitValue(r.Visitor, "Flags", &flags); err != nil {
		return err
	}
	i.flags = InheritableFlags(flags)
	return nil
}
