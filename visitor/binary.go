package visitor

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Binary layout, all integers little-endian:
//
//	document := magic "FBAF" | version u32 | node
//	node     := name | field count u32 | field* | child count u32 | node*
//	field    := name | tag u8 | payload
//	name     := length u32 | utf-8 bytes
//
// Legacy documents start with "RG3D" and have no version.

func appendScalar[T Scalar](b []byte, x T) []byte {
	switch x := any(x).(type) {
	case int8:
		return append(b, byte(x))
	case uint8:
		return append(b, x)
	case int16:
		return binary.LittleEndian.AppendUint16(b, uint16(x))
	case uint16:
		return binary.LittleEndian.AppendUint16(b, x)
	case int32:
		return binary.LittleEndian.AppendUint32(b, uint32(x))
	case uint32:
		return binary.LittleEndian.AppendUint32(b, x)
	case int64:
		return binary.LittleEndian.AppendUint64(b, uint64(x))
	case uint64:
		return binary.LittleEndian.AppendUint64(b, x)
	case float32:
		return binary.LittleEndian.AppendUint32(b, math.Float32bits(x))
	case float64:
		return binary.LittleEndian.AppendUint64(b, math.Float64bits(x))
	}
	panic("unreachable")
}

func appendScalars[T Scalar](b []byte, xs []T) []byte {
	for _, x := range xs {
		b = appendScalar(b, x)
	}
	return b
}

func appendBytes(b, data []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(data)))
	return append(b, data...)
}

func (k Bool) appendBinary(b []byte) []byte {
	if k {
		return append(b, 1)
	}
	return append(b, 0)
}

func (k U8) appendBinary(b []byte) []byte         { return appendScalar(b, uint8(k)) }
func (k I8) appendBinary(b []byte) []byte         { return appendScalar(b, int8(k)) }
func (k U16) appendBinary(b []byte) []byte        { return appendScalar(b, uint16(k)) }
func (k I16) appendBinary(b []byte) []byte        { return appendScalar(b, int16(k)) }
func (k U32) appendBinary(b []byte) []byte        { return appendScalar(b, uint32(k)) }
func (k I32) appendBinary(b []byte) []byte        { return appendScalar(b, int32(k)) }
func (k U64) appendBinary(b []byte) []byte        { return appendScalar(b, uint64(k)) }
func (k I64) appendBinary(b []byte) []byte        { return appendScalar(b, int64(k)) }
func (k F32) appendBinary(b []byte) []byte        { return appendScalar(b, float32(k)) }
func (k F64) appendBinary(b []byte) []byte        { return appendScalar(b, float64(k)) }
func (k String) appendBinary(b []byte) []byte     { return appendBytes(b, []byte(k)) }
func (k UUID) appendBinary(b []byte) []byte       { return append(b, k[:]...) }
func (k BinaryBlob) appendBinary(b []byte) []byte { return appendBytes(b, k) }
func (k Matrix2) appendBinary(b []byte) []byte    { return appendScalars(b, k[:]) }
func (k Matrix3) appendBinary(b []byte) []byte    { return appendScalars(b, k[:]) }
func (k Matrix4) appendBinary(b []byte) []byte    { return appendScalars(b, k[:]) }
func (k Vector2[T]) appendBinary(b []byte) []byte { return appendScalars(b, k.components()) }
func (k Vector3[T]) appendBinary(b []byte) []byte { return appendScalars(b, k.components()) }
func (k Vector4[T]) appendBinary(b []byte) []byte { return appendScalars(b, k.components()) }

func (k Quaternion) appendBinary(b []byte) []byte {
	return appendScalars(b, []float32{k.I, k.J, k.K, k.W})
}

func (k Complex) appendBinary(b []byte) []byte {
	return appendScalars(b, []float32{k.Re, k.Im})
}

func (k PodArray) appendBinary(b []byte) []byte {
	b = append(b, k.TypeID)
	b = binary.LittleEndian.AppendUint32(b, k.ElementSize)
	b = binary.LittleEndian.AppendUint64(b, uint64(len(k.Bytes)))
	return append(b, k.Bytes...)
}

func (v *Visitor) encodeBinary(b []byte) []byte {
	if v.version == VersionLegacy {
		b = append(b, binaryMagicLegacy...)
	} else {
		b = append(b, binaryMagic...)
		b = binary.LittleEndian.AppendUint32(b, uint32(v.version))
	}
	return v.encodeBinaryNode(b, v.root)
}

func (v *Visitor) encodeBinaryNode(b []byte, h Handle) []byte {
	n := v.pool.borrow(h)
	b = appendBytes(b, []byte(n.name))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(n.fields)))
	for _, f := range n.fields {
		b = appendBytes(b, []byte(f.Name))
		b = append(b, f.Kind.tag())
		b = f.Kind.appendBinary(b)
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(len(n.children)))
	for _, c := range n.children {
		b = v.encodeBinaryNode(b, c)
	}
	return b
}

type binaryReader struct {
	b   []byte
	off int
}

func (r *binaryReader) remaining() int { return len(r.b) - r.off }

func (r *binaryReader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "offset %d: need %d bytes, have %d", r.off, n, r.remaining())
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return p, nil
}

func (r *binaryReader) u32() (uint32, error) {
	p, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (r *binaryReader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	p, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), p...), nil
}

func (r *binaryReader) str() (string, error) {
	p, err := r.bytes()
	if err != nil {
		return "", err
	}
	return checkUTF8(p)
}

func readScalar[T Scalar](r *binaryReader) (T, error) {
	var z T
	var x any
	switch any(z).(type) {
	case int8, uint8:
		p, err := r.take(1)
		if err != nil {
			return z, err
		}
		if _, ok := any(z).(int8); ok {
			x = int8(p[0])
		} else {
			x = p[0]
		}
	case int16, uint16:
		p, err := r.take(2)
		if err != nil {
			return z, err
		}
		u := binary.LittleEndian.Uint16(p)
		if _, ok := any(z).(int16); ok {
			x = int16(u)
		} else {
			x = u
		}
	case int32, uint32, float32:
		p, err := r.take(4)
		if err != nil {
			return z, err
		}
		u := binary.LittleEndian.Uint32(p)
		switch any(z).(type) {
		case int32:
			x = int32(u)
		case uint32:
			x = u
		default:
			x = math.Float32frombits(u)
		}
	default:
		p, err := r.take(8)
		if err != nil {
			return z, err
		}
		u := binary.LittleEndian.Uint64(p)
		switch any(z).(type) {
		case int64:
			x = int64(u)
		case uint64:
			x = u
		default:
			x = math.Float64frombits(u)
		}
	}
	return x.(T), nil
}

func readScalars[T Scalar](r *binaryReader, dst []T) error {
	for i := range dst {
		x, err := readScalar[T](r)
		if err != nil {
			return err
		}
		dst[i] = x
	}
	return nil
}

func scalarKind[T Scalar, K FieldKind](wrap func(T) K) func(*binaryReader) (FieldKind, error) {
	return func(r *binaryReader) (FieldKind, error) {
		x, err := readScalar[T](r)
		if err != nil {
			return nil, err
		}
		return wrap(x), nil
	}
}

func vector2Kind[T Scalar](r *binaryReader) (FieldKind, error) {
	var c [2]T
	err := readScalars(r, c[:])
	return Vector2[T]{c[0], c[1]}, err
}

func vector3Kind[T Scalar](r *binaryReader) (FieldKind, error) {
	var c [3]T
	err := readScalars(r, c[:])
	return Vector3[T]{c[0], c[1], c[2]}, err
}

func vector4Kind[T Scalar](r *binaryReader) (FieldKind, error) {
	var c [4]T
	err := readScalars(r, c[:])
	return Vector4[T]{c[0], c[1], c[2], c[3]}, err
}

var binaryKinds = map[byte]func(*binaryReader) (FieldKind, error){
	tagBool: func(r *binaryReader) (FieldKind, error) {
		p, err := r.take(1)
		if err != nil {
			return nil, err
		}
		return Bool(p[0] != 0), nil
	},
	tagU8:  scalarKind(func(x uint8) U8 { return U8(x) }),
	tagI8:  scalarKind(func(x int8) I8 { return I8(x) }),
	tagU16: scalarKind(func(x uint16) U16 { return U16(x) }),
	tagI16: scalarKind(func(x int16) I16 { return I16(x) }),
	tagU32: scalarKind(func(x uint32) U32 { return U32(x) }),
	tagI32: scalarKind(func(x int32) I32 { return I32(x) }),
	tagU64: scalarKind(func(x uint64) U64 { return U64(x) }),
	tagI64: scalarKind(func(x int64) I64 { return I64(x) }),
	tagF32: scalarKind(func(x float32) F32 { return F32(x) }),
	tagF64: scalarKind(func(x float64) F64 { return F64(x) }),

	tagString: func(r *binaryReader) (FieldKind, error) {
		s, err := r.str()
		return String(s), err
	},
	tagBinaryBlob: func(r *binaryReader) (FieldKind, error) {
		p, err := r.bytes()
		return BinaryBlob(p), err
	},
	tagUUID: func(r *binaryReader) (FieldKind, error) {
		p, err := r.take(16)
		if err != nil {
			return nil, err
		}
		id, err := uuid.FromBytes(p)
		return UUID(id), err
	},
	tagPodArray: func(r *binaryReader) (FieldKind, error) {
		p, err := r.take(1 + 4 + 8)
		if err != nil {
			return nil, err
		}
		n := binary.LittleEndian.Uint64(p[5:])
		if n > uint64(r.remaining()) {
			return nil, errors.Wrapf(io.ErrUnexpectedEOF, "offset %d: pod array of %d bytes", r.off, n)
		}
		data, _ := r.take(int(n))
		return PodArray{
			TypeID:      p[0],
			ElementSize: binary.LittleEndian.Uint32(p[1:5]),
			Bytes:       append([]byte(nil), data...),
		}, nil
	},

	tagMatrix2: func(r *binaryReader) (FieldKind, error) {
		var m Matrix2
		err := readScalars(r, m[:])
		return m, err
	},
	tagMatrix3: func(r *binaryReader) (FieldKind, error) {
		var m Matrix3
		err := readScalars(r, m[:])
		return m, err
	},
	tagMatrix4: func(r *binaryReader) (FieldKind, error) {
		var m Matrix4
		err := readScalars(r, m[:])
		return m, err
	},
	tagUnitQuaternion: func(r *binaryReader) (FieldKind, error) {
		var c [4]float32
		err := readScalars(r, c[:])
		return Quaternion{I: c[0], J: c[1], K: c[2], W: c[3]}, err
	},
	tagUnitComplex: func(r *binaryReader) (FieldKind, error) {
		var c [2]float32
		err := readScalars(r, c[:])
		return Complex{Re: c[0], Im: c[1]}, err
	},

	tagVector2F32: vector2Kind[float32],
	tagVector3F32: vector3Kind[float32],
	tagVector4F32: vector4Kind[float32],
	tagVector2F64: vector2Kind[float64],
	tagVector3F64: vector3Kind[float64],
	tagVector4F64: vector4Kind[float64],
	tagVector2I8:  vector2Kind[int8],
	tagVector3I8:  vector3Kind[int8],
	tagVector4I8:  vector4Kind[int8],
	tagVector2U8:  vector2Kind[uint8],
	tagVector3U8:  vector3Kind[uint8],
	tagVector4U8:  vector4Kind[uint8],
	tagVector2I16: vector2Kind[int16],
	tagVector3I16: vector3Kind[int16],
	tagVector4I16: vector4Kind[int16],
	tagVector2U16: vector2Kind[uint16],
	tagVector3U16: vector3Kind[uint16],
	tagVector4U16: vector4Kind[uint16],
	tagVector2I32: vector2Kind[int32],
	tagVector3I32: vector3Kind[int32],
	tagVector4I32: vector4Kind[int32],
	tagVector2U32: vector2Kind[uint32],
	tagVector3U32: vector3Kind[uint32],
	tagVector4U32: vector4Kind[uint32],
	tagVector2I64: vector2Kind[int64],
	tagVector3I64: vector3Kind[int64],
	tagVector4I64: vector4Kind[int64],
	tagVector2U64: vector2Kind[uint64],
	tagVector3U64: vector3Kind[uint64],
	tagVector4U64: vector4Kind[uint64],
}

func (r *binaryReader) field() (Field, error) {
	name, err := r.str()
	if err != nil {
		return Field{}, err
	}
	p, err := r.take(1)
	if err != nil {
		return Field{}, err
	}
	decode, ok := binaryKinds[p[0]]
	if !ok {
		return Field{}, errors.Wrapf(ErrUnknownFieldType, "field %q: tag %d at offset %d", name, p[0], r.off-1)
	}
	kind, err := decode(r)
	if err != nil {
		return Field{}, errors.Wrapf(err, "field %q", name)
	}
	return Field{Name: name, Kind: kind}, nil
}

// node reads a node and its subtree into p. Handles are assigned in read
// order, parents before children.
func (r *binaryReader) node(p *pool, parent Handle, depth int) (Handle, error) {
	if depth > maxDepth {
		return NoHandle, UserError("offset %d: nodes nest deeper than %d", r.off, maxDepth)
	}
	name, err := r.str()
	if err != nil {
		return NoHandle, err
	}
	nf, err := r.u32()
	if err != nil {
		return NoHandle, err
	}
	fields := make([]Field, 0, min(int(nf), r.remaining()/6))
	for i := uint32(0); i < nf; i++ {
		f, err := r.field()
		if err != nil {
			return NoHandle, errors.Wrapf(err, "node %q", name)
		}
		fields = append(fields, f)
	}

	h := p.spawn(Node{name: name, fields: fields, parent: parent})

	nc, err := r.u32()
	if err != nil {
		return NoHandle, err
	}
	children := make([]Handle, 0, min(int(nc), r.remaining()/12))
	for i := uint32(0); i < nc; i++ {
		c, err := r.node(p, h, depth+1)
		if err != nil {
			return NoHandle, err
		}
		children = append(children, c)
	}
	p.borrow(h).children = children
	return h, nil
}

func (r *binaryReader) header() (Version, error) {
	if len(r.b) < magicSize {
		return 0, errors.Wrap(ErrNotSupportedFormat, "document too short")
	}
	r.off = magicSize
	switch string(r.b[:magicSize]) {
	case binaryMagic:
		version, err := r.u32()
		return Version(version), err
	case binaryMagicLegacy:
		return VersionLegacy, nil
	}
	return 0, errors.Wrapf(ErrNotSupportedFormat, "binary magic %q", r.b[:magicSize])
}

func decodeBinary(b []byte, opts ...Option) (*Visitor, error) {
	r := &binaryReader{b: b}
	version, err := r.header()
	if err != nil {
		return nil, err
	}
	v := newVisitor(opts...)
	v.reading = true
	v.version = version

	root, err := r.node(&v.pool, NoHandle, 0)
	if err != nil {
		return nil, err
	}
	v.root = root
	v.current = root
	return v, nil
}
