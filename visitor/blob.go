package visitor

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// Pod is the set of plain fixed-size element types that can be stored as
// raw little-endian bytes.
type Pod interface {
	uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 | float32 | float64
}

func podInfo[T Pod]() (typeID uint8, size int) {
	var z T
	switch any(z).(type) {
	case uint8:
		return podU8, 1
	case int8:
		return podI8, 1
	case uint16:
		return podU16, 2
	case int16:
		return podI16, 2
	case uint32:
		return podU32, 4
	case int32:
		return podI32, 4
	case uint64:
		return podU64, 8
	case int64:
		return podI64, 8
	case float32:
		return podF32, 4
	default:
		return podF64, 8
	}
}

func encodePods[T Pod](xs []T) []byte {
	if b, ok := any(xs).([]byte); ok {
		return append([]byte(nil), b...)
	}
	if len(xs) == 0 {
		return []byte{}
	}
	_, size := podInfo[T]()
	b, err := binary.Append(make([]byte, 0, len(xs)*size), binary.LittleEndian, xs)
	if err != nil {
		// xs is a slice of fixed-size values
		panic(err)
	}
	return b
}

func decodePods[T Pod](name string, b []byte) ([]T, error) {
	_, size := podInfo[T]()
	if len(b)%size != 0 {
		return nil, errors.Wrapf(ErrBlobSizeMismatch, "field %q: %d bytes, element size %d", name, len(b), size)
	}
	xs := make([]T, len(b)/size)
	if len(xs) == 0 {
		return xs, nil
	}
	if bs, ok := any(xs).([]byte); ok {
		copy(bs, b)
		return xs, nil
	}
	if _, err := binary.Decode(b, binary.LittleEndian, xs); err != nil {
		return nil, errors.Wrapf(err, "field %q", name)
	}
	return xs, nil
}

// VisitBlob stores a slice of plain values as one BinaryBlob field. Reading
// fails with ErrBlobSizeMismatch if the stored byte count is not a multiple
// of the element size.
func VisitBlob[T Pod](v *Visitor, name string, s *[]T) error {
	if !v.reading {
		return v.writeField(name, BinaryBlob(encodePods(*s)))
	}
	f, err := v.readField(name)
	if err != nil {
		return err
	}
	blob, ok := f.Kind.(BinaryBlob)
	if !ok {
		return &FieldTypeMismatchError{Field: name, Expected: BinaryBlob(nil).TypeName(), Actual: f.Kind.TypeName()}
	}
	xs, err := decodePods[T](name, blob)
	if err != nil {
		return err
	}
	*s = xs
	return nil
}

// VisitPodArray stores a slice of plain values as one PodArray field that
// records the element type. Reading a different element type fails with
// ErrTypeMismatch.
func VisitPodArray[T Pod](v *Visitor, name string, s *[]T) error {
	typeID, size := podInfo[T]()
	if !v.reading {
		return v.writeField(name, PodArray{
			TypeID:      typeID,
			ElementSize: uint32(size),
			Bytes:       encodePods(*s),
		})
	}
	f, err := v.readField(name)
	if err != nil {
		return err
	}
	pa, ok := f.Kind.(PodArray)
	if !ok {
		return &FieldTypeMismatchError{Field: name, Expected: PodArray{}.TypeName(), Actual: f.Kind.TypeName()}
	}
	if pa.TypeID != typeID {
		return errors.Wrapf(ErrTypeMismatch, "field %q: pod type %d, requested %d", name, pa.TypeID, typeID)
	}
	if pa.ElementSize != uint32(size) {
		return errors.Wrapf(ErrBlobSizeMismatch, "field %q: element size %d, requested %d", name, pa.ElementSize, size)
	}
	xs, err := decodePods[T](name, pa.Bytes)
	if err != nil {
		return err
	}
	*s = xs
	return nil
}

func checkUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", UserError("invalid utf-8 sequence")
	}
	return string(b), nil
}
