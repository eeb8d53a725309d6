package visitor

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/FyroxEngine/Fyrox-sub011/internal/metrics"
)

// Format is a physical document encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatBinary
	FormatASCII
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatASCII:
		return "ascii"
	default:
		return "unknown"
	}
}

// ParseFormat returns the format called s, as printed by Format.String.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "binary", "bin":
		return FormatBinary, nil
	case "ascii", "text":
		return FormatASCII, nil
	}
	return FormatUnknown, errors.Wrapf(ErrNotSupportedFormat, "format %q", s)
}

// DetectFormatFromSlice identifies the format of a document from its magic.
func DetectFormatFromSlice(b []byte) Format {
	if len(b) < magicSize {
		return FormatUnknown
	}
	switch string(b[:magicSize]) {
	case binaryMagic, binaryMagicLegacy:
		return FormatBinary
	case asciiMagic, asciiMagicLegacy:
		return FormatASCII
	}
	return FormatUnknown
}

// DetectFormat reads the magic of a document from r.
func DetectFormat(r io.Reader) (Format, error) {
	var magic [magicSize]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return FormatUnknown, nil
		}
		return FormatUnknown, errors.Wrap(err, "reading document magic")
	}
	return DetectFormatFromSlice(magic[:]), nil
}

// PeekVersion returns the layout version written in the header of a
// document without decoding its tree.
func PeekVersion(b []byte) (Version, error) {
	switch DetectFormatFromSlice(b) {
	case FormatBinary:
		return (&binaryReader{b: b}).header()
	case FormatASCII:
		return newASCIIReader(b).header()
	}
	return 0, ErrNotSupportedFormat
}

// IsSupported reports whether b starts with a known magic.
func IsSupported(b []byte) bool { return DetectFormatFromSlice(b) != FormatUnknown }

// SaveBinaryToVec returns the binary encoding of the tree.
func (v *Visitor) SaveBinaryToVec() []byte {
	b := v.encodeBinary(make([]byte, 0, 256))
	metrics.ObserveEncode(FormatBinary.String(), len(b))
	v.logSaved(FormatBinary, len(b))
	return b
}

// SaveBinary writes the binary encoding of the tree to w.
func (v *Visitor) SaveBinary(w io.Writer) error {
	if _, err := w.Write(v.SaveBinaryToVec()); err != nil {
		return errors.Wrap(err, "writing binary document")
	}
	return nil
}

// SaveBinaryToFile writes the binary encoding of the tree to path,
// replacing the file if it exists.
func (v *Visitor) SaveBinaryToFile(path string) error {
	return writeFile(path, v.SaveBinaryToVec())
}

// SaveASCIIToString returns the ASCII encoding of the tree. It fails with
// ErrInvalidName if a node or field name cannot be represented.
func (v *Visitor) SaveASCIIToString() (string, error) {
	b, err := v.SaveASCIIToVec()
	return string(b), err
}

func (v *Visitor) SaveASCIIToVec() ([]byte, error) {
	indent := v.indent
	if indent == "" {
		indent = defaultIndent
	}
	b, err := v.encodeASCII(make([]byte, 0, 512), indent)
	if err != nil {
		metrics.ObserveError(FormatASCII.String(), metrics.OpEncode)
		return nil, err
	}
	metrics.ObserveEncode(FormatASCII.String(), len(b))
	v.logSaved(FormatASCII, len(b))
	return b, nil
}

// SaveASCII writes the ASCII encoding of the tree to w.
func (v *Visitor) SaveASCII(w io.Writer) error {
	b, err := v.SaveASCIIToVec()
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return errors.Wrap(err, "writing ascii document")
	}
	return nil
}

// SaveASCIIToFile writes the ASCII encoding of the tree to path.
func (v *Visitor) SaveASCIIToFile(path string) error {
	b, err := v.SaveASCIIToVec()
	if err != nil {
		return err
	}
	return writeFile(path, b)
}

// Save writes the tree to w in format f.
func (v *Visitor) Save(w io.Writer, f Format) error {
	switch f {
	case FormatBinary:
		return v.SaveBinary(w)
	case FormatASCII:
		return v.SaveASCII(w)
	}
	return errors.Wrapf(ErrNotSupportedFormat, "format %s", f)
}

// Encode returns the tree encoded in format f.
func (v *Visitor) Encode(f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := v.Save(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Visitor) logSaved(f Format, size int) {
	v.logger.Debug("document saved",
		zap.Stringer("format", f),
		zap.Uint32("version", uint32(v.version)),
		zap.Int("nodes", v.pool.len()),
		zap.Int("bytes", size))
}

func writeFile(path string, b []byte) error {
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return b, nil
}

func loaded(f Format, b []byte, v *Visitor, err error) (*Visitor, error) {
	if err != nil {
		metrics.ObserveError(f.String(), metrics.OpDecode)
		return nil, err
	}
	metrics.ObserveDecode(f.String(), len(b))
	if v.version == VersionLegacy {
		v.logger.Warn("loaded legacy document", zap.Stringer("format", f))
	}
	v.logger.Debug("document loaded",
		zap.Stringer("format", f),
		zap.Uint32("version", uint32(v.version)),
		zap.Int("nodes", v.pool.len()),
		zap.Int("bytes", len(b)))
	return v, nil
}

// LoadBinaryFromMemory decodes a binary document into a Visitor in read
// mode.
func LoadBinaryFromMemory(b []byte, opts ...Option) (*Visitor, error) {
	v, err := decodeBinary(b, opts...)
	return loaded(FormatBinary, b, v, err)
}

func LoadBinaryFromFile(path string, opts ...Option) (*Visitor, error) {
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return LoadBinaryFromMemory(b, opts...)
}

// LoadASCIIFromMemory decodes an ASCII document into a Visitor in read
// mode.
func LoadASCIIFromMemory(b []byte, opts ...Option) (*Visitor, error) {
	v, err := decodeASCII(b, opts...)
	return loaded(FormatASCII, b, v, err)
}

func LoadASCIIFromFile(path string, opts ...Option) (*Visitor, error) {
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return LoadASCIIFromMemory(b, opts...)
}

// LoadFromMemory decodes a document of either format, chosen by its magic.
// Unknown magics fail with ErrNotSupportedFormat.
func LoadFromMemory(b []byte, opts ...Option) (*Visitor, error) {
	switch DetectFormatFromSlice(b) {
	case FormatBinary:
		return LoadBinaryFromMemory(b, opts...)
	case FormatASCII:
		return LoadASCIIFromMemory(b, opts...)
	}
	metrics.ObserveError(FormatUnknown.String(), metrics.OpDecode)
	return nil, ErrNotSupportedFormat
}

// LoadFromReader reads a whole document from r and decodes it.
func LoadFromReader(r io.Reader, opts ...Option) (*Visitor, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading document")
	}
	return LoadFromMemory(b, opts...)
}

func LoadFromFile(path string, opts ...Option) (*Visitor, error) {
	return LoadFromFileContext(context.Background(), path, opts...)
}

// LoadFromFileContext is LoadFromFile that gives up when ctx is done before
// decoding starts.
func LoadFromFileContext(ctx context.Context, path string, opts ...Option) (*Visitor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFromMemory(b, opts...)
}
