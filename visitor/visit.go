package visitor

import (
	"github.com/google/uuid"
)

// Visitable is implemented by types that know how to store themselves in,
// and restore themselves from, a Visitor. The same method serves both
// directions; v.IsReading tells which one is in progress.
//
// Implementations usually enter a region called name and visit their fields
// inside it:
//
//	func (p *Point) Visit(name string, v *visitor.Visitor) error {
//		r, err := v.EnterRegion(name)
//		if err != nil {
//			return err
//		}
//		defer r.Leave()
//		if err := visitor.VisitValue(r.Visitor, "X", &p.X); err != nil {
//			return err
//		}
//		return visitor.VisitValue(r.Visitor, "Y", &p.Y)
//	}
type Visitable interface {
	Visit(name string, v *Visitor) error
}

// VisitFunc visits a value of type T. VisitValue[T] and Object[T] are
// VisitFuncs; container helpers take one to visit their elements.
type VisitFunc[T any] func(v *Visitor, name string, value *T) error

// Object visits a value whose pointer type implements Visitable.
func Object[T any, PT interface {
	*T
	Visitable
}](v *Visitor, name string, value *T) error {
	return PT(value).Visit(name, v)
}

// Primitive is the set of Go types stored as a single field.
type Primitive interface {
	bool |
		uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 |
		float32 | float64 |
		string | uuid.UUID |
		Matrix2 | Matrix3 | Matrix4 | Quaternion | Complex |
		Vector2[float32] | Vector3[float32] | Vector4[float32] |
		Vector2[float64] | Vector3[float64] | Vector4[float64] |
		Vector2[int8] | Vector3[int8] | Vector4[int8] |
		Vector2[uint8] | Vector3[uint8] | Vector4[uint8] |
		Vector2[int16] | Vector3[int16] | Vector4[int16] |
		Vector2[uint16] | Vector3[uint16] | Vector4[uint16] |
		Vector2[int32] | Vector3[int32] | Vector4[int32] |
		Vector2[uint32] | Vector3[uint32] | Vector4[uint32] |
		Vector2[int64] | Vector3[int64] | Vector4[int64] |
		Vector2[uint64] | Vector3[uint64] | Vector4[uint64]
}

// VisitValue stores *value as the field name of the current node, or, when
// reading, loads the field into *value. Reading fails with
// ErrFieldDoesNotExist when the field is missing and with a
// *FieldTypeMismatchError when it holds another kind.
func VisitValue[T Primitive](v *Visitor, name string, value *T) error {
	if !v.reading {
		return v.writeField(name, kindOf(any(*value)))
	}

	if s, ok := any(value).(*string); ok && v.HasRegion(name) {
		if old, err := readLegacyString(v, name); err == nil {
			*s = old
			return nil
		}
	}

	f, err := v.readField(name)
	if err != nil {
		return err
	}
	x, ok := f.Kind.native().(T)
	if !ok {
		var zero T
		return &FieldTypeMismatchError{
			Field:    name,
			Expected: kindOf(any(zero)).TypeName(),
			Actual:   f.Kind.TypeName(),
		}
	}
	*value = x
	return nil
}

// readLegacyString reads a string stored as a region holding its length
// and its bytes.
func readLegacyString(v *Visitor, name string) (string, error) {
	r, err := v.EnterRegion(name)
	if err != nil {
		return "", err
	}
	defer r.Leave()

	var n uint32
	if err := VisitValue(r.Visitor, "Length", &n); err != nil {
		return "", err
	}
	var data []byte
	if err := VisitBlob(r.Visitor, "Data", &data); err != nil {
		return "", err
	}
	return checkUTF8(data)
}

// VisitInt stores an int as a 64-bit field.
func VisitInt(v *Visitor, name string, value *int) error {
	x := int64(*value)
	if err := VisitValue(v, name, &x); err != nil {
		return err
	}
	*value = int(x)
	return nil
}

// VisitUint stores a uint as a 64-bit field.
func VisitUint(v *Visitor, name string, value *uint) error {
	x := uint64(*value)
	if err := VisitValue(v, name, &x); err != nil {
		return err
	}
	*value = uint(x)
	return nil
}

// VisitRune stores a rune as its u32 code point.
func VisitRune(v *Visitor, name string, value *rune) error {
	x := uint32(*value)
	if err := VisitValue(v, name, &x); err != nil {
		return err
	}
	*value = rune(x)
	return nil
}
