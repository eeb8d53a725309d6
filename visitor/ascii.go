package visitor

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ASCII layout:
//
//	FTAX:2;
//	__ROOT__
//	[1:
//		Bar<u64:123>
//	]
//	{0:
//	}
//
// A node is its name, its fields in brackets and its children in braces,
// each list prefixed by its length. A field is Name<tag:value>. Components
// of compound values are separated by "; ". Whitespace between tokens is
// insignificant.

const defaultIndent = "\t"

func appendTextScalar[T Scalar](b []byte, x T) []byte {
	switch x := any(x).(type) {
	case int8:
		return strconv.AppendInt(b, int64(x), 10)
	case int16:
		return strconv.AppendInt(b, int64(x), 10)
	case int32:
		return strconv.AppendInt(b, int64(x), 10)
	case int64:
		return strconv.AppendInt(b, x, 10)
	case uint8:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint16:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint32:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint64:
		return strconv.AppendUint(b, x, 10)
	case float32:
		return strconv.AppendFloat(b, float64(x), 'g', -1, 32)
	case float64:
		return strconv.AppendFloat(b, x, 'g', -1, 64)
	}
	panic("unreachable")
}

func appendTextScalars[T Scalar](b []byte, xs []T) []byte {
	for i, x := range xs {
		if i > 0 {
			b = append(b, "; "...)
		}
		b = appendTextScalar(b, x)
	}
	return b
}

func appendQuoted(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b = append(b, `\"`...)
		case '\\':
			b = append(b, `\\`...)
		case '\n':
			b = append(b, `\n`...)
		default:
			b = append(b, c)
		}
	}
	return append(b, '"')
}

func (k Bool) appendText(b []byte) []byte       { return strconv.AppendBool(b, bool(k)) }
func (k U8) appendText(b []byte) []byte         { return appendTextScalar(b, uint8(k)) }
func (k I8) appendText(b []byte) []byte         { return appendTextScalar(b, int8(k)) }
func (k U16) appendText(b []byte) []byte        { return appendTextScalar(b, uint16(k)) }
func (k I16) appendText(b []byte) []byte        { return appendTextScalar(b, int16(k)) }
func (k U32) appendText(b []byte) []byte        { return appendTextScalar(b, uint32(k)) }
func (k I32) appendText(b []byte) []byte        { return appendTextScalar(b, int32(k)) }
func (k U64) appendText(b []byte) []byte        { return appendTextScalar(b, uint64(k)) }
func (k I64) appendText(b []byte) []byte        { return appendTextScalar(b, int64(k)) }
func (k F32) appendText(b []byte) []byte        { return appendTextScalar(b, float32(k)) }
func (k F64) appendText(b []byte) []byte        { return appendTextScalar(b, float64(k)) }
func (k String) appendText(b []byte) []byte     { return appendQuoted(b, string(k)) }
func (k UUID) appendText(b []byte) []byte       { return append(b, uuid.UUID(k).String()...) }
func (k BinaryBlob) appendText(b []byte) []byte { return base64.StdEncoding.AppendEncode(b, k) }
func (k Matrix2) appendText(b []byte) []byte    { return appendTextScalars(b, k[:]) }
func (k Matrix3) appendText(b []byte) []byte    { return appendTextScalars(b, k[:]) }
func (k Matrix4) appendText(b []byte) []byte    { return appendTextScalars(b, k[:]) }
func (k Vector2[T]) appendText(b []byte) []byte { return appendTextScalars(b, k.components()) }
func (k Vector3[T]) appendText(b []byte) []byte { return appendTextScalars(b, k.components()) }
func (k Vector4[T]) appendText(b []byte) []byte { return appendTextScalars(b, k.components()) }

func (k Quaternion) appendText(b []byte) []byte {
	return appendTextScalars(b, []float32{k.I, k.J, k.K, k.W})
}

func (k Complex) appendText(b []byte) []byte {
	return appendTextScalars(b, []float32{k.Re, k.Im})
}

func (k PodArray) appendText(b []byte) []byte {
	b = strconv.AppendUint(b, uint64(k.TypeID), 10)
	b = append(b, "; "...)
	b = strconv.AppendUint(b, uint64(k.ElementSize), 10)
	b = append(b, "; "...)
	return base64.StdEncoding.AppendEncode(b, k.Bytes)
}

func appendTextField(b []byte, f Field) []byte {
	b = append(b, f.Name...)
	b = append(b, '<')
	b = append(b, f.Kind.TypeName()...)
	b = append(b, ':')
	b = f.Kind.appendText(b)
	return append(b, '>')
}

// validTextName reports whether name can be stored in an ASCII document.
func validTextName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, " \t\r\n\v\f[]{}<>")
}

func (v *Visitor) encodeASCII(b []byte, indent string) ([]byte, error) {
	if v.version == VersionLegacy {
		b = append(b, asciiMagicLegacy...)
		b = append(b, '\n')
	} else {
		b = fmt.Appendf(b, "%s:%d;\n", asciiMagic, v.version)
	}
	return v.encodeASCIINode(b, v.root, indent, 0)
}

func (v *Visitor) encodeASCIINode(b []byte, h Handle, indent string, depth int) ([]byte, error) {
	n := v.pool.borrow(h)
	if !validTextName(n.name) {
		return nil, errors.Wrapf(ErrInvalidName, "node %q", n.name)
	}
	pad := strings.Repeat(indent, depth)

	b = fmt.Appendf(b, "%s%s\n%s[%d:", pad, n.name, pad, len(n.fields))
	for _, f := range n.fields {
		if !validTextName(f.Name) {
			return nil, errors.Wrapf(ErrInvalidName, "field %q of node %q", f.Name, n.name)
		}
		b = append(b, '\n')
		b = append(b, pad...)
		b = append(b, indent...)
		b = appendTextField(b, f)
	}
	b = fmt.Appendf(b, "\n%s]\n%s{%d:\n", pad, pad, len(n.children))

	var err error
	for _, c := range n.children {
		if b, err = v.encodeASCIINode(b, c, indent, depth+1); err != nil {
			return nil, err
		}
	}
	b = fmt.Appendf(b, "%s}\n", pad)
	return b, nil
}

// Position is a location in an ASCII document.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

type asciiReader struct {
	b   []byte
	pos Position
}

func newASCIIReader(b []byte) *asciiReader {
	return &asciiReader{b: b, pos: Position{Line: 1, Column: 1}}
}

func (r *asciiReader) errorf(format string, args ...any) error {
	return UserError("%s: %s", r.pos, fmt.Sprintf(format, args...))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func (r *asciiReader) eof() bool { return r.pos.Offset >= len(r.b) }

func (r *asciiReader) peek() (byte, error) {
	if r.eof() {
		return 0, r.errorf("unexpected end of document")
	}
	return r.b[r.pos.Offset], nil
}

func (r *asciiReader) next() (byte, error) {
	c, err := r.peek()
	if err != nil {
		return 0, err
	}
	r.pos.Offset++
	if c == '\n' {
		r.pos.Line++
		r.pos.Column = 1
	} else {
		r.pos.Column++
	}
	return c, nil
}

// skipWhile consumes bytes while f holds. It stops quietly at the end of
// the document.
func (r *asciiReader) skipWhile(f func(byte) bool) {
	for !r.eof() && f(r.b[r.pos.Offset]) {
		r.next()
	}
}

func (r *asciiReader) skipWS() { r.skipWhile(isSpace) }

func (r *asciiReader) skipN(n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.next(); err != nil {
			return err
		}
	}
	return nil
}

// readWhile consumes and returns bytes while f holds.
func (r *asciiReader) readWhile(f func(byte) bool) string {
	start := r.pos.Offset
	r.skipWhile(f)
	return string(r.b[start:r.pos.Offset])
}

func (r *asciiReader) expect(c byte) error {
	r.skipWS()
	got, err := r.peek()
	if err != nil {
		return err
	}
	if got != c {
		return r.errorf("expected %q, got %q", c, got)
	}
	return r.skipN(1)
}

// readToken skips whitespace, reads up to stop or whitespace and consumes
// stop.
func (r *asciiReader) readToken(stop byte) (string, error) {
	r.skipWS()
	s := r.readWhile(func(c byte) bool { return c != stop && !isSpace(c) })
	if err := r.expect(stop); err != nil {
		return "", err
	}
	return s, nil
}

func (r *asciiReader) readCount(stop byte) (uint32, error) {
	s, err := r.readToken(stop)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, r.errorf("bad count %q", s)
	}
	return uint32(n), nil
}

func (r *asciiReader) readQuoted() (string, error) {
	if err := r.expect('"'); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		c, err := r.next()
		if err != nil {
			return "", err
		}
		switch c {
		case '"':
			return sb.String(), nil
		case '\\':
			e, err := r.next()
			if err != nil {
				return "", err
			}
			switch e {
			case '"', '\\':
				sb.WriteByte(e)
			case 'n':
				sb.WriteByte('\n')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(c)
		}
	}
}

func (r *asciiReader) field() (Field, error) {
	r.skipWS()
	name := r.readWhile(func(c byte) bool { return c != '<' && !isSpace(c) })
	if name == "" {
		return Field{}, r.errorf("expected field name")
	}
	if !utf8.ValidString(name) {
		return Field{}, r.errorf("field name is not valid utf-8")
	}
	if err := r.expect('<'); err != nil {
		return Field{}, err
	}
	typeName, err := r.readToken(':')
	if err != nil {
		return Field{}, err
	}

	if typeName == String("").TypeName() {
		s, err := r.readQuoted()
		if err != nil {
			return Field{}, err
		}
		if _, err := checkUTF8([]byte(s)); err != nil {
			return Field{}, r.errorf("field %q: %v", name, err)
		}
		if err := r.expect('>'); err != nil {
			return Field{}, err
		}
		return Field{Name: name, Kind: String(s)}, nil
	}

	parse, ok := textKinds[typeName]
	if !ok {
		return Field{}, errors.Wrapf(ErrUnknownFieldType, "%s: field %q: type %q", r.pos, name, typeName)
	}
	raw := r.readWhile(func(c byte) bool { return c != '>' })
	if err := r.expect('>'); err != nil {
		return Field{}, err
	}
	kind, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return Field{}, r.errorf("field %q: %v", name, err)
	}
	return Field{Name: name, Kind: kind}, nil
}

func (r *asciiReader) node(p *pool, parent Handle, depth int) (Handle, error) {
	if depth > maxDepth {
		return NoHandle, r.errorf("nodes nest deeper than %d", maxDepth)
	}
	r.skipWS()
	name := r.readWhile(func(c byte) bool { return c != '[' && !isSpace(c) })
	if name == "" {
		return NoHandle, r.errorf("expected node name")
	}
	if !utf8.ValidString(name) {
		return NoHandle, r.errorf("node name is not valid utf-8")
	}

	if err := r.expect('['); err != nil {
		return NoHandle, err
	}
	nf, err := r.readCount(':')
	if err != nil {
		return NoHandle, err
	}
	var fields []Field
	for i := uint32(0); i < nf; i++ {
		f, err := r.field()
		if err != nil {
			return NoHandle, err
		}
		fields = append(fields, f)
	}
	if err := r.expect(']'); err != nil {
		return NoHandle, err
	}

	h := p.spawn(Node{name: name, fields: fields, parent: parent})

	if err := r.expect('{'); err != nil {
		return NoHandle, err
	}
	nc, err := r.readCount(':')
	if err != nil {
		return NoHandle, err
	}
	var children []Handle
	for i := uint32(0); i < nc; i++ {
		c, err := r.node(p, h, depth+1)
		if err != nil {
			return NoHandle, err
		}
		children = append(children, c)
	}
	if err := r.expect('}'); err != nil {
		return NoHandle, err
	}
	p.borrow(h).children = children
	return h, nil
}

func (r *asciiReader) header() (Version, error) {
	if len(r.b) < magicSize {
		return 0, errors.Wrap(ErrNotSupportedFormat, "document too short")
	}
	switch magic := string(r.b[:magicSize]); magic {
	case asciiMagic:
		if err := r.skipN(magicSize); err != nil {
			return 0, err
		}
		if err := r.expect(':'); err != nil {
			return 0, err
		}
		n, err := r.readCount(';')
		return Version(n), err
	case asciiMagicLegacy:
		return VersionLegacy, r.skipN(magicSize)
	default:
		return 0, errors.Wrapf(ErrNotSupportedFormat, "ascii magic %q", magic)
	}
}

func decodeASCII(b []byte, opts ...Option) (*Visitor, error) {
	r := newASCIIReader(b)
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

func parseScalar[T Scalar](s string) (T, error) {
	var z T
	var x any
	var err error
	switch any(z).(type) {
	case int8:
		var n int64
		n, err = strconv.ParseInt(s, 10, 8)
		x = int8(n)
	case int16:
		var n int64
		n, err = strconv.ParseInt(s, 10, 16)
		x = int16(n)
	case int32:
		var n int64
		n, err = strconv.ParseInt(s, 10, 32)
		x = int32(n)
	case int64:
		x, err = strconv.ParseInt(s, 10, 64)
	case uint8:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 8)
		x = uint8(n)
	case uint16:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 16)
		x = uint16(n)
	case uint32:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 32)
		x = uint32(n)
	case uint64:
		x, err = strconv.ParseUint(s, 10, 64)
	case float32:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		x = float32(f)
	case float64:
		x, err = strconv.ParseFloat(s, 64)
	}
	if err != nil {
		return z, err
	}
	return x.(T), nil
}

// parseScalars parses exactly n components separated by ';'.
func parseScalars[T Scalar](s string, n int) ([]T, error) {
	parts := strings.Split(s, ";")
	if len(parts) != n {
		return nil, errors.Newf("expected %d components, got %d", n, len(parts))
	}
	xs := make([]T, n)
	for i, p := range parts {
		x, err := parseScalar[T](strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}
	return xs, nil
}

func textScalar[T Scalar, K FieldKind](wrap func(T) K) func(string) (FieldKind, error) {
	return func(s string) (FieldKind, error) {
		x, err := parseScalar[T](s)
		if err != nil {
			return nil, err
		}
		return wrap(x), nil
	}
}

func registerTextVectors[T Scalar]() {
	s := scalarName[T]()
	textKinds["vec2"+s] = func(raw string) (FieldKind, error) {
		c, err := parseScalars[T](raw, 2)
		if err != nil {
			return nil, err
		}
		return Vector2[T]{c[0], c[1]}, nil
	}
	textKinds["vec3"+s] = func(raw string) (FieldKind, error) {
		c, err := parseScalars[T](raw, 3)
		if err != nil {
			return nil, err
		}
		return Vector3[T]{c[0], c[1], c[2]}, nil
	}
	textKinds["vec4"+s] = func(raw string) (FieldKind, error) {
		c, err := parseScalars[T](raw, 4)
		if err != nil {
			return nil, err
		}
		return Vector4[T]{c[0], c[1], c[2], c[3]}, nil
	}
}

var textKinds = map[string]func(string) (FieldKind, error){
	"bool": func(s string) (FieldKind, error) {
		x, err := strconv.ParseBool(s)
		return Bool(x), err
	},
	"u8":  textScalar(func(x uint8) U8 { return U8(x) }),
	"i8":  textScalar(func(x int8) I8 { return I8(x) }),
	"u16": textScalar(func(x uint16) U16 { return U16(x) }),
	"i16": textScalar(func(x int16) I16 { return I16(x) }),
	"u32": textScalar(func(x uint32) U32 { return U32(x) }),
	"i32": textScalar(func(x int32) I32 { return I32(x) }),
	"u64": textScalar(func(x uint64) U64 { return U64(x) }),
	"i64": textScalar(func(x int64) I64 { return I64(x) }),
	"f32": textScalar(func(x float32) F32 { return F32(x) }),
	"f64": textScalar(func(x float64) F64 { return F64(x) }),

	"uuid": func(s string) (FieldKind, error) {
		id, err := uuid.Parse(s)
		return UUID(id), err
	},
	"data": func(s string) (FieldKind, error) {
		p, err := base64.StdEncoding.DecodeString(s)
		return BinaryBlob(p), err
	},
	"podarray": func(s string) (FieldKind, error) {
		parts := strings.SplitN(s, ";", 3)
		if len(parts) != 3 {
			return nil, errors.Newf("expected 3 components, got %d", len(parts))
		}
		typeID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 8)
		if err != nil {
			return nil, err
		}
		size, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil {
			return nil, err
		}
		p, err := base64.StdEncoding.DecodeString(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, err
		}
		return PodArray{TypeID: uint8(typeID), ElementSize: uint32(size), Bytes: p}, nil
	},
	"mat2": func(s string) (FieldKind, error) {
		c, err := parseScalars[float32](s, 4)
		if err != nil {
			return nil, err
		}
		return Matrix2(c), nil
	},
	"mat3": func(s string) (FieldKind, error) {
		c, err := parseScalars[float32](s, 9)
		if err != nil {
			return nil, err
		}
		return Matrix3(c), nil
	},
	"mat4": func(s string) (FieldKind, error) {
		c, err := parseScalars[float32](s, 16)
		if err != nil {
			return nil, err
		}
		return Matrix4(c), nil
	},
	"quat": func(s string) (FieldKind, error) {
		c, err := parseScalars[float32](s, 4)
		if err != nil {
			return nil, err
		}
		return Quaternion{I: c[0], J: c[1], K: c[2], W: c[3]}, nil
	},
	"complex": func(s string) (FieldKind, error) {
		c, err := parseScalars[float32](s, 2)
		if err != nil {
			return nil, err
		}
		return Complex{Re: c[0], Im: c[1]}, nil
	},
}

func init() {
	registerTextVectors[float32]()
	registerTextVectors[float64]()
	registerTextVectors[int8]()
	registerTextVectors[uint8]()
	registerTextVectors[int16]()
	registerTextVectors[uint16]()
	registerTextVectors[int32]()
	registerTextVectors[uint32]()
	registerTextVectors[int64]()
	registerTextVectors[uint64]()
}
