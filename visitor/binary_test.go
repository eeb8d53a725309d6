package visitor

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
)

// allKinds holds one field of every kind.
var allKinds = []Field{
	{"Bool", Bool(true)},
	{"U8", U8(255)},
	{"I8", I8(-128)},
	{"U16", U16(65535)},
	{"I16", I16(-32768)},
	{"U32", U32(math.MaxUint32)},
	{"I32", I32(math.MinInt32)},
	{"U64", U64(math.MaxUint64)},
	{"I64", I64(math.MinInt64)},
	{"F32", F32(123.1)},
	{"F64", F64(-math.Pi)},
	{"Tiny", F64(5e-324)},
	{"String", String("twas brillig \"and\" the \\slithy\ntoves")},
	{"Empty", String("")},
	{"UUID", UUID(uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8"))},
	{"Blob", BinaryBlob{0, 1, 2, 3, 0xfe}},
	{"NoBlob", BinaryBlob{}},
	{"Pods", PodArray{TypeID: podU16, ElementSize: 2, Bytes: []byte{1, 0, 2, 0}}},
	{"Mat2", Identity2()},
	{"Mat3", Identity3()},
	{"Mat4", Translation4(1, 2, 3)},
	{"Quat", Quaternion{I: 0, J: 0.7071068, K: 0, W: 0.7071068}},
	{"Complex", IdentityComplex()},
	{"V2f32", Vector2[float32]{1, -1}},
	{"V3f32", Vector3[float32]{1, 2, 3}},
	{"V4f32", Vector4[float32]{1, 2, 3, 4}},
	{"V2f64", Vector2[float64]{0.1, 0.2}},
	{"V3f64", Vector3[float64]{0.1, 0.2, 0.3}},
	{"V4f64", Vector4[float64]{0.1, 0.2, 0.3, 0.4}},
	{"V2i8", Vector2[int8]{-1, 1}},
	{"V3i8", Vector3[int8]{-1, 0, 1}},
	{"V4i8", Vector4[int8]{-128, -1, 1, 127}},
	{"V2u8", Vector2[uint8]{0, 255}},
	{"V3u8", Vector3[uint8]{1, 2, 3}},
	{"V4u8", Vector4[uint8]{1, 2, 3, 4}},
	{"V2i16", Vector2[int16]{-300, 300}},
	{"V3i16", Vector3[int16]{-300, 0, 300}},
	{"V4i16", Vector4[int16]{1, 2, 3, 4}},
	{"V2u16", Vector2[uint16]{1, 60000}},
	{"V3u16", Vector3[uint16]{1, 2, 60000}},
	{"V4u16", Vector4[uint16]{1, 2, 3, 60000}},
	{"V2i32", Vector2[int32]{-1 << 30, 1 << 30}},
	{"V3i32", Vector3[int32]{1, 2, 3}},
	{"V4i32", Vector4[int32]{1, 2, 3, 4}},
	{"V2u32", Vector2[uint32]{1, 1 << 31}},
	{"V3u32", Vector3[uint32]{1, 2, 3}},
	{"V4u32", Vector4[uint32]{1, 2, 3, 4}},
	{"V2i64", Vector2[int64]{math.MinInt64, math.MaxInt64}},
	{"V3i64", Vector3[int64]{1, 2, 3}},
	{"V4i64", Vector4[int64]{1, 2, 3, 4}},
	{"V2u64", Vector2[uint64]{0, math.MaxUint64}},
	{"V3u64", Vector3[uint64]{1, 2, 3}},
	{"V4u64", Vector4[uint64]{1, 2, 3, 4}},
}

// kitchenSink builds a tree holding allKinds in a nested node.
func kitchenSink(t testing.TB) *Visitor {
	t.Helper()
	v := New()
	r, err := v.EnterRegion("Kinds")
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range allKinds {
		if err := v.writeField(f.Name, f.Kind); err != nil {
			t.Fatal(err)
		}
	}
	inner, err := v.EnterRegion("Inner")
	if err != nil {
		t.Fatal(err)
	}
	s := "nested"
	if err := VisitValue(inner.Visitor, "S", &s); err != nil {
		t.Fatal(err)
	}
	inner.Leave()
	r.Leave()
	empty, _ := v.EnterRegion("Empty")
	empty.Leave()
	return v
}

// sameTree reports the first difference between the trees of a and b.
func sameTree(t *testing.T, a, b *Visitor) {
	t.Helper()
	if a.NodeCount() != b.NodeCount() {
		t.Fatalf("node count: %d != %d", a.NodeCount(), b.NodeCount())
	}
	var walk func(ha, hb Handle)
	walk = func(ha, hb Handle) {
		na, nb := a.Node(ha), b.Node(hb)
		if na.Name() != nb.Name() {
			t.Fatalf("node name: %q != %q", na.Name(), nb.Name())
		}
		if len(na.Fields()) != len(nb.Fields()) {
			t.Fatalf("node %q: %d fields != %d", na.Name(), len(na.Fields()), len(nb.Fields()))
		}
		for i, f := range na.Fields() {
			if !f.Equal(nb.Fields()[i]) {
				t.Errorf("node %q: field %d:\nwant %s\ngot  %s\n%s", na.Name(), i, f, nb.Fields()[i], spew.Sdump(nb.Fields()[i]))
			}
		}
		if len(na.Children()) != len(nb.Children()) {
			t.Fatalf("node %q: %d children != %d", na.Name(), len(na.Children()), len(nb.Children()))
		}
		for i := range na.Children() {
			walk(na.Children()[i], nb.Children()[i])
		}
	}
	walk(a.Root(), b.Root())
}

func TestBinaryRoundtrip(t *testing.T) {
	v := kitchenSink(t)
	b := v.SaveBinaryToVec()

	got, err := LoadBinaryFromMemory(b)
	if err != nil {
		t.Fatalf("load: %v\n%s", err, hex.Dump(b))
	}
	sameTree(t, v, got)

	// re-encoding a loaded tree gives the same bytes
	if b2 := got.SaveBinaryToVec(); !bytes.Equal(b, b2) {
		t.Errorf("re-encoded document differs:\n%s\n%s", hex.Dump(b), hex.Dump(b2))
	}
}

func TestBinaryHeader(t *testing.T) {
	b := New().SaveBinaryToVec()
	want := []byte("FBAF\x02\x00\x00\x00" + "\x08\x00\x00\x00__ROOT__" + "\x00\x00\x00\x00" + "\x00\x00\x00\x00")
	if !bytes.Equal(b, want) {
		t.Errorf("empty document:\n%s\nwant\n%s", hex.Dump(b), hex.Dump(want))
	}
}

func TestBinaryFieldLayout(t *testing.T) {
	v := New()
	x := uint32(0xdeadbeef)
	if err := VisitValue(v, "X", &x); err != nil {
		t.Fatal(err)
	}
	b := v.SaveBinaryToVec()
	field := []byte("\x01\x00\x00\x00X" + "\x05" + "\xef\xbe\xad\xde")
	if !bytes.Contains(b, field) {
		t.Errorf("field encoding not found in\n%s", hex.Dump(b))
	}
}

func TestBinaryLegacy(t *testing.T) {
	b := []byte("RG3D" + "\x04\x00\x00\x00Root" + "\x01\x00\x00\x00" + "\x01\x00\x00\x00B\x0f\x01" + "\x00\x00\x00\x00")
	v, err := LoadBinaryFromMemory(b)
	if err != nil {
		t.Fatal(err)
	}
	if v.Version() != VersionLegacy {
		t.Errorf("version %d, want %d", v.Version(), VersionLegacy)
	}
	var flag bool
	if err := VisitValue(v, "B", &flag); err != nil || !flag {
		t.Errorf("B = %v, %v", flag, err)
	}
	if again := v.SaveBinaryToVec(); !bytes.Equal(again, b) {
		t.Errorf("legacy document re-encoded as\n%s", hex.Dump(again))
	}
}

func TestBinaryUnknownTag(t *testing.T) {
	b := []byte("FBAF\x02\x00\x00\x00" + "\x01\x00\x00\x00R" + "\x01\x00\x00\x00" + "\x01\x00\x00\x00X\xc8" + "\x00\x00\x00\x00")
	_, err := LoadBinaryFromMemory(b)
	if !errors.Is(err, ErrUnknownFieldType) {
		t.Errorf("got %v, want ErrUnknownFieldType", err)
	}
}

func TestBinaryTruncated(t *testing.T) {
	b := kitchenSink(t).SaveBinaryToVec()
	for n := 0; n < len(b); n++ {
		if _, err := LoadBinaryFromMemory(b[:n]); err == nil {
			t.Fatalf("prefix of %d bytes decoded without error", n)
		}
	}
}

func TestBinaryHugeCounts(t *testing.T) {
	b := binary.LittleEndian.AppendUint32([]byte("FBAF\x02\x00\x00\x00\x01\x00\x00\x00R"), math.MaxUint32)
	if _, err := LoadBinaryFromMemory(b); err == nil {
		t.Fatal("decoded a node claiming 4G fields")
	}
}

func TestBinaryBadMagic(t *testing.T) {
	_, err := LoadBinaryFromMemory([]byte("FTAX:2;"))
	if !errors.Is(err, ErrNotSupportedFormat) {
		t.Errorf("got %v", err)
	}
}

// nestedBinary returns a document whose root has a chain of depth empty
// descendants.
func nestedBinary(depth int) []byte {
	b := []byte("FBAF\x02\x00\x00\x00")
	for i := 0; i <= depth; i++ {
		b = append(b, "\x01\x00\x00\x00N\x00\x00\x00\x00"...)
		if i < depth {
			b = binary.LittleEndian.AppendUint32(b, 1)
		}
	}
	return binary.LittleEndian.AppendUint32(b, 0)
}

func TestBinaryNestingLimit(t *testing.T) {
	v, err := LoadBinaryFromMemory(nestedBinary(maxDepth))
	if err != nil {
		t.Fatalf("nesting at the limit: %v", err)
	}
	if n := v.NodeCount(); n != maxDepth+1 {
		t.Errorf("got %d nodes, want %d", n, maxDepth+1)
	}

	_, err = LoadBinaryFromMemory(nestedBinary(maxDepth + 1))
	if !errors.Is(err, ErrUser) {
		t.Errorf("got %v, want ErrUser", err)
	}
}
