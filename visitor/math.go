package visitor

// Scalar is the set of component types a vector field can hold.
type Scalar interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

type Vector2[T Scalar] struct{ X, Y T }

type Vector3[T Scalar] struct{ X, Y, Z T }

type Vector4[T Scalar] struct{ X, Y, Z, W T }

func (v Vector2[T]) components() []T { return []T{v.X, v.Y} }
func (v Vector3[T]) components() []T { return []T{v.X, v.Y, v.Z} }
func (v Vector4[T]) components() []T { return []T{v.X, v.Y, v.Z, v.W} }

// Matrix2 is a 2x2 f32 matrix stored in column-major order.
type Matrix2 [4]float32

// Matrix3 is a 3x3 f32 matrix stored in column-major order.
type Matrix3 [9]float32

// Matrix4 is a 4x4 f32 matrix stored in column-major order.
type Matrix4 [16]float32

func (m Matrix2) At(row, col int) float32 { return m[col*2+row] }
func (m Matrix3) At(row, col int) float32 { return m[col*3+row] }
func (m Matrix4) At(row, col int) float32 { return m[col*4+row] }

func Identity2() Matrix2 { return Matrix2{1, 0, 0, 1} }
func Identity3() Matrix3 { return Matrix3{1, 0, 0, 0, 1, 0, 0, 0, 1} }
func Identity4() Matrix4 { return Matrix4{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1} }

// Translation4 returns a matrix translating by (x, y, z).
func Translation4(x, y, z float32) Matrix4 {
	m := Identity4()
	m[12], m[13], m[14] = x, y, z
	return m
}

// Quaternion is a unit quaternion. I, J and K are the vector part.
type Quaternion struct{ I, J, K, W float32 }

func IdentityQuaternion() Quaternion { return Quaternion{W: 1} }

// Complex is a unit complex number, used for 2D rotations.
type Complex struct{ Re, Im float32 }

func IdentityComplex() Complex { return Complex{Re: 1} }

func scalarName[T Scalar]() string {
	var z T
	switch any(z).(type) {
	case int8:
		return "i8"
	case uint8:
		return "u8"
	case int16:
		return "i16"
	case uint16:
		return "u16"
	case int32:
		return "i32"
	case uint32:
		return "u32"
	case int64:
		return "i64"
	case uint64:
		return "u64"
	case float32:
		return "f32"
	default:
		return "f64"
	}
}

func vectorTag[T Scalar](dim int) byte {
	var z T
	var base byte
	switch any(z).(type) {
	case float32:
		return [...]byte{tagVector2F32, tagVector3F32, tagVector4F32}[dim-2]
	case float64:
		base = tagVector2F64
	case int8:
		base = tagVector2I8
	case uint8:
		base = tagVector2U8
	case int16:
		base = tagVector2I16
	case uint16:
		base = tagVector2U16
	case int32:
		base = tagVector2I32
	case uint32:
		base = tagVector2U32
	case int64:
		base = tagVector2I64
	default:
		base = tagVector2U64
	}
	return base + byte(dim-2)
}
