package visitor

// Handle refers to a node in a visitor's node arena. The zero Handle refers
// to no node.
type Handle uint32

const NoHandle Handle = 0

func (h Handle) IsNone() bool { return h == NoHandle }

// Node is a named container of fields and child nodes.
type Node struct {
	name     string
	fields   []Field
	parent   Handle
	children []Handle
}

func (n *Node) Name() string       { return n.name }
func (n *Node) Fields() []Field    { return n.fields }
func (n *Node) Parent() Handle     { return n.parent }
func (n *Node) Children() []Handle { return n.children }
func (n *Node) IsRoot() bool       { return n.parent.IsNone() }

func (n *Node) findField(name string) *Field {
	for i := range n.fields {
		if n.fields[i].Name == name {
			return &n.fields[i]
		}
	}
	return nil
}

// pool is an append-only arena; handles stay valid for its lifetime.
type pool struct {
	nodes []Node
}

func (p *pool) spawn(n Node) Handle {
	p.nodes = append(p.nodes, n)
	return Handle(len(p.nodes))
}

func (p *pool) borrow(h Handle) *Node {
	return &p.nodes[h-1]
}

func (p *pool) tryBorrow(h Handle) (*Node, bool) {
	if h.IsNone() || int(h) > len(p.nodes) {
		return nil, false
	}
	return &p.nodes[h-1], true
}

func (p *pool) len() int { return len(p.nodes) }
