package visitor

import (
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/FyroxEngine/Fyrox-sub011/internal/log"
)

// Visitor holds a tree of nodes and a cursor into it. It is created empty in
// write mode by New, or filled in read mode by one of the Load functions.
//
// A Visitor is not safe for concurrent use.
type Visitor struct {
	pool    pool
	root    Handle
	current Handle
	depth   int

	reading bool
	version Version
	flags   Flags

	rc  registry
	arc registry

	blackboard *Blackboard
	logger     *zap.Logger
	indent     string
}

// Option configures a Visitor.
type Option func(*Visitor)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(v *Visitor) { v.logger = l }
}

// WithFlags sets the write flags.
func WithFlags(f Flags) Option {
	return func(v *Visitor) { v.flags = f }
}

// WithIndent sets the indentation of ASCII documents. The default is a tab.
func WithIndent(indent string) Option {
	return func(v *Visitor) { v.indent = indent }
}

// WithBlackboard installs a prepared blackboard.
func WithBlackboard(bb *Blackboard) Option {
	return func(v *Visitor) { v.blackboard = bb }
}

// New returns an empty Visitor in write mode.
func New(opts ...Option) *Visitor {
	v := newVisitor(opts...)
	v.root = v.pool.spawn(Node{name: rootName})
	v.current = v.root
	return v
}

func newVisitor(opts ...Option) *Visitor {
	v := &Visitor{
		version: CurrentVersion,
		rc:      newRegistry(),
		arc:     newRegistry(),
	}
	for _, o := range opts {
		o(v)
	}
	if v.blackboard == nil {
		v.blackboard = NewBlackboard()
	}
	if v.logger == nil {
		v.logger = log.L()
	}
	return v
}

// IsReading reports whether the visitor copies stored values into objects.
func (v *Visitor) IsReading() bool { return v.reading }

// Version returns the layout version of the document.
func (v *Visitor) Version() Version { return v.version }

func (v *Visitor) Flags() Flags { return v.flags }

func (v *Visitor) SetFlags(f Flags) { v.flags = f }

func (v *Visitor) Blackboard() *Blackboard { return v.blackboard }

func (v *Visitor) Logger() *zap.Logger { return v.logger }

// Root returns the handle of the root node.
func (v *Visitor) Root() Handle { return v.root }

// Node returns the node with handle h. It panics if h is not a node of v.
func (v *Visitor) Node(h Handle) *Node { return v.pool.borrow(h) }

// LookupNode is Node for handles that may not belong to v.
func (v *Visitor) LookupNode(h Handle) (*Node, bool) { return v.pool.tryBorrow(h) }

// NodeCount returns the number of nodes in the tree, the root included.
func (v *Visitor) NodeCount() int { return v.pool.len() }

func (v *Visitor) currentNode() *Node { return v.pool.borrow(v.current) }

// CurrentRegion returns the name of the node under the cursor.
func (v *Visitor) CurrentRegion() string { return v.currentNode().name }

// FindNode returns the first node, in creation order, with the given name.
func (v *Visitor) FindNode(name string) (Handle, bool) {
	for i := range v.pool.nodes {
		if v.pool.nodes[i].name == name {
			return Handle(i + 1), true
		}
	}
	return NoHandle, false
}

// Walk calls fn for every node depth-first, parents before children. depth
// is 0 for the root. Walk stops at the first error fn returns.
func (v *Visitor) Walk(fn func(h Handle, n *Node, depth int) error) error {
	return v.walk(v.root, 0, fn)
}

func (v *Visitor) walk(h Handle, depth int, fn func(Handle, *Node, int) error) error {
	n := v.pool.borrow(h)
	if err := fn(h, n, depth); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := v.walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

func (v *Visitor) findChild(parent Handle, name string) (Handle, bool) {
	for _, c := range v.pool.borrow(parent).children {
		if v.pool.borrow(c).name == name {
			return c, true
		}
	}
	return NoHandle, false
}

// HasRegion reports whether the current node has a child with that name.
func (v *Visitor) HasRegion(name string) bool {
	_, ok := v.findChild(v.current, name)
	return ok
}

// Region is a scope over a child node. Leave returns the cursor to the node
// that was current when the region was entered.
//
// Region embeds the Visitor, so nested values are visited with r.Visitor.
type Region struct {
	*Visitor
	parent Handle
	depth  int
	left   bool
}

// Leave moves the cursor back to the parent. Calling it more than once has
// no effect.
func (r *Region) Leave() {
	if r.left {
		return
	}
	r.left = true
	r.Visitor.current = r.parent
	r.Visitor.depth = r.depth
}

// EnterRegion moves the cursor into the child node called name. In write
// mode the child is created and must not exist yet; in read mode it must
// exist.
func (v *Visitor) EnterRegion(name string) (*Region, error) {
	parent := v.current
	child, exists := v.findChild(parent, name)
	if v.reading {
		if !exists {
			return nil, errors.Wrapf(ErrRegionDoesNotExist, "%s", v.breadcrumbs(name))
		}
	} else {
		if exists {
			return nil, errors.Wrapf(ErrRegionAlreadyExists, "region %q", name)
		}
		if err := checkName(name); err != nil {
			return nil, err
		}
		if v.depth >= maxDepth {
			return nil, UserError("region %q nests deeper than %d nodes", name, maxDepth)
		}
		child = v.pool.spawn(Node{name: name, parent: parent})
		p := v.pool.borrow(parent)
		p.children = append(p.children, child)
	}
	r := &Region{Visitor: v, parent: parent, depth: v.depth}
	v.current = child
	v.depth++
	return r, nil
}

// LeaveRegion moves the cursor to the parent of the current node.
func (v *Visitor) LeaveRegion() error {
	p := v.currentNode().parent
	if p.IsNone() {
		return ErrNoActiveNode
	}
	v.current = p
	v.depth--
	return nil
}

// FindField returns the field of the current node with the given name.
func (v *Visitor) FindField(name string) (*Field, bool) {
	f := v.currentNode().findField(name)
	return f, f != nil
}

func (v *Visitor) readField(name string) (*Field, error) {
	f := v.currentNode().findField(name)
	if f == nil {
		return nil, errors.Wrapf(ErrFieldDoesNotExist, "%s", v.breadcrumbs(name))
	}
	return f, nil
}

func (v *Visitor) writeField(name string, kind FieldKind) error {
	n := v.currentNode()
	if n.findField(name) != nil {
		return errors.Wrapf(ErrFieldAlreadyExists, "field %q", name)
	}
	if err := checkName(name); err != nil {
		return err
	}
	if s, ok := kind.(String); ok && !utf8.ValidString(string(s)) {
		return UserError("field %q: string is not valid utf-8", name)
	}
	n.fields = append(n.fields, Field{Name: name, Kind: kind})
	return nil
}

// checkName rejects names that no decoder would accept back.
func checkName(name string) error {
	if !utf8.ValidString(name) {
		return errors.Wrapf(ErrInvalidName, "%q is not valid utf-8", name)
	}
	return nil
}

// breadcrumbs renders the path from the root to name.
func (v *Visitor) breadcrumbs(name string) string {
	var path []string
	for h := v.current; !h.IsNone(); {
		n := v.pool.borrow(h)
		path = append(path, n.name)
		h = n.parent
	}
	var b strings.Builder
	for i := len(path) - 1; i >= 0; i-- {
		b.WriteString(path[i])
		b.WriteString(" > ")
	}
	b.WriteString(name)
	return b.String()
}
