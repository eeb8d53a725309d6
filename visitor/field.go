package visitor

import (
	"bytes"

	"github.com/google/uuid"
)

// FieldKind is the typed value of a field. The set of kinds is closed: only
// the types declared in this package implement it.
type FieldKind interface {
	// TypeName returns the tag used for the kind in ASCII documents.
	TypeName() string

	tag() byte
	native() any
	appendBinary(b []byte) []byte
	appendText(b []byte) []byte
}

type (
	Bool   bool
	U8     uint8
	I8     int8
	U16    uint16
	I16    int16
	U32    uint32
	I32    int32
	U64    uint64
	I64    int64
	F32    float32
	F64    float64
	String string
	UUID   uuid.UUID

	// BinaryBlob is an opaque run of bytes.
	BinaryBlob []byte
)

// PodArray is a run of plain fixed-size values of one element type.
type PodArray struct {
	TypeID      uint8
	ElementSize uint32
	Bytes       []byte
}

func (Bool) TypeName() string       { return "bool" }
func (U8) TypeName() string         { return "u8" }
func (I8) TypeName() string         { return "i8" }
func (U16) TypeName() string        { return "u16" }
func (I16) TypeName() string        { return "i16" }
func (U32) TypeName() string        { return "u32" }
func (I32) TypeName() string        { return "i32" }
func (U64) TypeName() string        { return "u64" }
func (I64) TypeName() string        { return "i64" }
func (F32) TypeName() string        { return "f32" }
func (F64) TypeName() string        { return "f64" }
func (String) TypeName() string     { return "str" }
func (UUID) TypeName() string       { return "uuid" }
func (BinaryBlob) TypeName() string { return "data" }
func (PodArray) TypeName() string   { return "podarray" }
func (Matrix2) TypeName() string    { return "mat2" }
func (Matrix3) TypeName() string    { return "mat3" }
func (Matrix4) TypeName() string    { return "mat4" }
func (Quaternion) TypeName() string { return "quat" }
func (Complex) TypeName() string    { return "complex" }
func (Vector2[T]) TypeName() string { return "vec2" + scalarName[T]() }
func (Vector3[T]) TypeName() string { return "vec3" + scalarName[T]() }
func (Vector4[T]) TypeName() string { return "vec4" + scalarName[T]() }

func (Bool) tag() byte       { return tagBool }
func (U8) tag() byte         { return tagU8 }
func (I8) tag() byte         { return tagI8 }
func (U16) tag() byte        { return tagU16 }
func (I16) tag() byte        { return tagI16 }
func (U32) tag() byte        { return tagU32 }
func (I32) tag() byte        { return tagI32 }
func (U64) tag() byte        { return tagU64 }
func (I64) tag() byte        { return tagI64 }
func (F32) tag() byte        { return tagF32 }
func (F64) tag() byte        { return tagF64 }
func (String) tag() byte     { return tagString }
func (UUID) tag() byte       { return tagUUID }
func (BinaryBlob) tag() byte { return tagBinaryBlob }
func (PodArray) tag() byte   { return tagPodArray }
func (Matrix2) tag() byte    { return tagMatrix2 }
func (Matrix3) tag() byte    { return tagMatrix3 }
func (Matrix4) tag() byte    { return tagMatrix4 }
func (Quaternion) tag() byte { return tagUnitQuaternion }
func (Complex) tag() byte    { return tagUnitComplex }
func (Vector2[T]) tag() byte { return vectorTag[T](2) }
func (Vector3[T]) tag() byte { return vectorTag[T](3) }
func (Vector4[T]) tag() byte { return vectorTag[T](4) }

func (k Bool) native() any       { return bool(k) }
func (k U8) native() any         { return uint8(k) }
func (k I8) native() any         { return int8(k) }
func (k U16) native() any        { return uint16(k) }
func (k I16) native() any        { return int16(k) }
func (k U32) native() any        { return uint32(k) }
func (k I32) native() any        { return int32(k) }
func (k U64) native() any        { return uint64(k) }
func (k I64) native() any        { return int64(k) }
func (k F32) native() any        { return float32(k) }
func (k F64) native() any        { return float64(k) }
func (k String) native() any     { return string(k) }
func (k UUID) native() any       { return uuid.UUID(k) }
func (k BinaryBlob) native() any { return []byte(k) }
func (k PodArray) native() any   { return k }
func (k Matrix2) native() any    { return k }
func (k Matrix3) native() any    { return k }
func (k Matrix4) native() any    { return k }
func (k Quaternion) native() any { return k }
func (k Complex) native() any    { return k }
func (k Vector2[T]) native() any { return k }
func (k Vector3[T]) native() any { return k }
func (k Vector4[T]) native() any { return k }

// Field is a named, typed value stored in a node.
type Field struct {
	Name string
	Kind FieldKind
}

// Equal reports whether f and o have the same name and the same value.
func (f Field) Equal(o Field) bool {
	if f.Name != o.Name {
		return false
	}
	return kindsEqual(f.Kind, o.Kind)
}

// String renders the field the way ASCII documents store it.
func (f Field) String() string {
	return string(appendTextField(nil, f))
}

func kindsEqual(a, b FieldKind) bool {
	switch a := a.(type) {
	case BinaryBlob:
		b, ok := b.(BinaryBlob)
		return ok && bytes.Equal(a, b)
	case PodArray:
		b, ok := b.(PodArray)
		return ok && a.TypeID == b.TypeID && a.ElementSize == b.ElementSize && bytes.Equal(a.Bytes, b.Bytes)
	}
	switch b.(type) {
	case BinaryBlob, PodArray:
		return false
	}
	return a == b
}

// kindOf wraps a primitive Go value into its field kind.
func kindOf(x any) FieldKind {
	switch x := x.(type) {
	case bool:
		return Bool(x)
	case uint8:
		return U8(x)
	case int8:
		return I8(x)
	case uint16:
		return U16(x)
	case int16:
		return I16(x)
	case uint32:
		return U32(x)
	case int32:
		return I32(x)
	case uint64:
		return U64(x)
	case int64:
		return I64(x)
	case float32:
		return F32(x)
	case float64:
		return F64(x)
	case string:
		return String(x)
	case uuid.UUID:
		return UUID(x)
	case []byte:
		return BinaryBlob(x)
	case FieldKind:
		return x
	}
	panic("visitor: no field kind for value")
}
