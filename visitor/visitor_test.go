package visitor

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var formats = []Format{FormatBinary, FormatASCII}

// roundtrip writes a document with write, encodes it in f and returns the
// decoded visitor in read mode.
func roundtrip(t testing.TB, f Format, write func(v *Visitor) error, opts ...Option) *Visitor {
	t.Helper()
	w := New(opts...)
	if err := write(w); err != nil {
		t.Fatalf("writing: %v", err)
	}
	b, err := w.Encode(f)
	if err != nil {
		t.Fatalf("encoding %s: %v", f, err)
	}
	r, err := LoadFromMemory(b, opts...)
	if err != nil {
		t.Fatalf("decoding %s: %v\n%s", f, err, b)
	}
	return r
}

func TestEnterRegion(t *testing.T) {
	v := New(WithLogger(zaptest.NewLogger(t)))
	a, err := v.EnterRegion("A")
	require.NoError(t, err)
	assert.Equal(t, "A", v.CurrentRegion())

	_, err = v.EnterRegion("B")
	require.NoError(t, err)
	assert.Equal(t, "B", v.CurrentRegion())
	require.NoError(t, v.LeaveRegion())

	_, err = v.EnterRegion("B")
	assert.True(t, errors.Is(err, ErrRegionAlreadyExists), "got %v", err)
	assert.Equal(t, "A", v.CurrentRegion())

	a.Leave()
	a.Leave()
	assert.Equal(t, rootName, v.CurrentRegion())
	assert.Equal(t, 3, v.NodeCount())
}

func TestLeaveRegionAtRoot(t *testing.T) {
	v := New()
	assert.True(t, errors.Is(v.LeaveRegion(), ErrNoActiveNode))
}

func TestRegionDoesNotExist(t *testing.T) {
	for _, f := range formats {
		r := roundtrip(t, f, func(v *Visitor) error {
			reg, err := v.EnterRegion("A")
			if err != nil {
				return err
			}
			defer reg.Leave()
			var x uint8 = 1
			return VisitValue(reg.Visitor, "X", &x)
		})
		reg, err := r.EnterRegion("A")
		require.NoError(t, err)
		_, err = r.EnterRegion("Missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRegionDoesNotExist))
		assert.Contains(t, err.Error(), "__ROOT__ > A > Missing")

		var y uint16
		err = VisitValue(reg.Visitor, "Y", &y)
		assert.True(t, errors.Is(err, ErrFieldDoesNotExist))
		assert.Contains(t, err.Error(), "__ROOT__ > A > Y")
		reg.Leave()
	}
}

func TestFieldAlreadyExists(t *testing.T) {
	v := New()
	x := 1.5
	require.NoError(t, VisitValue(v, "X", &x))
	err := VisitValue(v, "X", &x)
	assert.True(t, errors.Is(err, ErrFieldAlreadyExists))
}

func TestFieldTypeMismatch(t *testing.T) {
	r := roundtrip(t, FormatBinary, func(v *Visitor) error {
		var x uint32 = 7
		return VisitValue(v, "X", &x)
	})
	var s string
	err := VisitValue(r, "X", &s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFieldTypeDoesNotMatch))

	var mismatch *FieldTypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "X", mismatch.Field)
	assert.Equal(t, "str", mismatch.Expected)
	assert.Equal(t, "u32", mismatch.Actual)
}

func TestWalk(t *testing.T) {
	v := New()
	a, _ := v.EnterRegion("A")
	b, _ := v.EnterRegion("B")
	b.Leave()
	a.Leave()
	c, _ := v.EnterRegion("C")
	c.Leave()

	var got []string
	err := v.Walk(func(h Handle, n *Node, depth int) error {
		got = append(got, strings.Repeat(".", depth)+n.Name())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"__ROOT__", ".A", "..B", ".C"}, got)

	h, ok := v.FindNode("B")
	require.True(t, ok)
	assert.Equal(t, "B", v.Node(h).Name())
	assert.False(t, v.Node(h).IsRoot())
	assert.True(t, v.Node(v.Root()).IsRoot())

	_, ok = v.FindNode("Z")
	assert.False(t, ok)
}

type textureCache struct{ loaded int }

func TestBlackboard(t *testing.T) {
	cache := &textureCache{loaded: 3}
	bb := NewBlackboard()
	Register(bb, cache)

	v := New(WithBlackboard(bb))
	got, ok := Lookup[textureCache](v.Blackboard())
	require.True(t, ok)
	assert.Same(t, cache, got)
	assert.Equal(t, 1, v.Blackboard().Len())

	Remove[textureCache](bb)
	_, ok = Lookup[textureCache](bb)
	assert.False(t, ok)
	assert.Zero(t, bb.Len())
}

func TestFlags(t *testing.T) {
	v := New(WithFlags(FlagSerializeEverything))
	assert.True(t, v.Flags().Contains(FlagSerializeEverything))
	v.SetFlags(FlagNone)
	assert.False(t, v.Flags().Contains(FlagSerializeEverything))
	assert.True(t, v.Flags().Contains(FlagNone))
}

func TestVersion(t *testing.T) {
	v := New()
	assert.False(t, v.IsReading())
	assert.Equal(t, CurrentVersion, v.Version())

	r := roundtrip(t, FormatASCII, func(*Visitor) error { return nil })
	assert.True(t, r.IsReading())
	assert.Equal(t, CurrentVersion, r.Version())
}

func TestWriteRejectsInvalidUTF8(t *testing.T) {
	v := New()
	s := "ok\xff"
	err := VisitValue(v, "S", &s)
	assert.True(t, errors.Is(err, ErrUser), "got %v", err)
	_, ok := v.FindField("S")
	assert.False(t, ok)

	x := uint8(1)
	err = VisitValue(v, "X\xff", &x)
	assert.True(t, errors.Is(err, ErrInvalidName), "got %v", err)
	_, err = v.EnterRegion("R\xff")
	assert.True(t, errors.Is(err, ErrInvalidName), "got %v", err)
	assert.Equal(t, 1, v.NodeCount())
	assert.Equal(t, rootName, v.CurrentRegion())

	good := "ok ✓"
	require.NoError(t, VisitValue(v, "S", &good))
	for _, f := range formats {
		b, err := v.Encode(f)
		require.NoError(t, err)
		r, err := LoadFromMemory(b)
		require.NoError(t, err, f.String())
		var got string
		require.NoError(t, VisitValue(r, "S", &got))
		assert.Equal(t, good, got)
	}
}

func TestRegionDepthLimit(t *testing.T) {
	v := New()
	for i := 0; i < maxDepth; i++ {
		_, err := v.EnterRegion("N")
		require.NoError(t, err)
	}
	_, err := v.EnterRegion("N")
	assert.True(t, errors.Is(err, ErrUser), "got %v", err)

	_, err = LoadBinaryFromMemory(v.SaveBinaryToVec())
	require.NoError(t, err)

	require.NoError(t, v.LeaveRegion())
	r, err := v.EnterRegion("M")
	require.NoError(t, err)
	r.Leave()
}

func TestLookupNode(t *testing.T) {
	v := New()
	r, err := v.EnterRegion("A")
	require.NoError(t, err)
	r.Leave()

	h, ok := v.FindNode("A")
	require.True(t, ok)
	n, ok := v.LookupNode(h)
	require.True(t, ok)
	assert.Equal(t, "A", n.Name())

	_, ok = v.LookupNode(NoHandle)
	assert.False(t, ok)
	_, ok = v.LookupNode(h + 1)
	assert.False(t, ok)
}
