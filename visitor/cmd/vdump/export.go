package main

import (
	"io"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/FyroxEngine/Fyrox-sub011/visitor"
)

// treeNode is the exported form of a node. Field values keep their ASCII
// text so that every kind has a lossless string form.
type treeNode struct {
	Name     string      `json:"name" yaml:"name"`
	Fields   []treeField `json:"fields,omitempty" yaml:"fields,omitempty"`
	Children []*treeNode `json:"children,omitempty" yaml:"children,omitempty"`
}

type treeField struct {
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

func exportTree(v *visitor.Visitor, h visitor.Handle) *treeNode {
	n := v.Node(h)
	out := &treeNode{Name: n.Name()}
	for _, f := range n.Fields() {
		text := f.String()
		// Name<type:value>
		value := text[len(f.Name)+len(f.Kind.TypeName())+2 : len(text)-1]
		out.Fields = append(out.Fields, treeField{Name: f.Name, Type: f.Kind.TypeName(), Value: value})
	}
	for _, c := range n.Children() {
		out.Children = append(out.Children, exportTree(v, c))
	}
	return out
}

func writeJSON(w io.Writer, v *visitor.Visitor) error {
	b, err := json.MarshalIndent(exportTree(v, v.Root()), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding json")
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

func writeYAML(w io.Writer, v *visitor.Visitor) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(exportTree(v, v.Root())); err != nil {
		return errors.Wrap(err, "encoding yaml")
	}
	return enc.Close()
}
