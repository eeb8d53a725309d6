package visitor_test

import (
	"strconv"
	"testing"

	"github.com/FyroxEngine/Fyrox-sub011/visitor"
)

type meshNode struct {
	Name     string
	Local    visitor.Matrix4
	Vertices []visitor.Vector3[float32]
	Indices  []uint32
}

func (m *meshNode) Visit(name string, v *visitor.Visitor) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()
	if err := visitor.VisitValue(r.Visitor, "Name", &m.Name); err != nil {
		return err
	}
	if err := visitor.VisitValue(r.Visitor, "Local", &m.Local); err != nil {
		return err
	}
	if err := visitor.VisitSlice(r.Visitor, "Vertices", &m.Vertices, visitor.VisitValue[visitor.Vector3[float32]]); err != nil {
		return err
	}
	return visitor.VisitBlob(r.Visitor, "Indices", &m.Indices)
}

func scene() []meshNode {
	nodes := make([]meshNode, 100)
	for i := range nodes {
		n := &nodes[i]
		n.Name = "Mesh" + strconv.Itoa(i)
		n.Local = visitor.Translation4(float32(i), 0, 0)
		n.Vertices = make([]visitor.Vector3[float32], 32)
		for j := range n.Vertices {
			n.Vertices[j] = visitor.Vector3[float32]{X: float32(j), Y: float32(i), Z: 1}
		}
		n.Indices = make([]uint32, 96)
		for j := range n.Indices {
			n.Indices[j] = uint32(j % 32)
		}
	}
	return nodes
}

func writeScene(b *testing.B, nodes []meshNode) *visitor.Visitor {
	v := visitor.New()
	if err := visitor.VisitSlice(v, "Nodes", &nodes, visitor.Object[meshNode]); err != nil {
		b.Fatal(err)
	}
	return v
}

func BenchmarkVisitWrite(b *testing.B) {
	nodes := scene()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		writeScene(b, nodes)
	}
}

func BenchmarkSaveBinary(b *testing.B) {
	v := writeScene(b, scene())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.SetBytes(int64(len(v.SaveBinaryToVec())))
	}
}

func BenchmarkLoadBinary(b *testing.B) {
	data := writeScene(b, scene()).SaveBinaryToVec()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := visitor.LoadBinaryFromMemory(data); err != nil {
			b.FailNow()
		}
	}
}

func BenchmarkSaveASCII(b *testing.B) {
	v := writeScene(b, scene())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.SaveASCIIToVec(); err != nil {
			b.FailNow()
		}
	}
}

func BenchmarkLoadASCII(b *testing.B) {
	data, err := writeScene(b, scene()).SaveASCIIToVec()
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := visitor.LoadASCIIFromMemory(data); err != nil {
			b.FailNow()
		}
	}
}

func BenchmarkReadScene(b *testing.B) {
	data := writeScene(b, scene()).SaveBinaryToVec()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, err := visitor.LoadBinaryFromMemory(data)
		if err != nil {
			b.FailNow()
		}
		var nodes []meshNode
		if err := visitor.VisitSlice(v, "Nodes", &nodes, visitor.Object[meshNode]); err != nil {
			b.FailNow()
		}
	}
}
