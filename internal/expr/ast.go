package expr

// node is a formula syntax tree node.
type node interface{ isNode() }

type literalNode struct{ value any }

type nameNode struct {
	ident string
	pos   int
}

type unaryNode struct {
	op string
	x  node
}

type binaryNode struct {
	op   string
	x, y node
}

// boolNode is "and" / "or"; both short-circuit and yield an operand.
type boolNode struct {
	op   string
	x, y node
}

type notNode struct{ x node }

// compareNode is a chained comparison: first ops[0] rest[0] ops[1] rest[1] ...
type compareNode struct {
	first node
	ops   []string
	rest  []node
}

type indexNode struct{ x, index node }

type callNode struct {
	fn   string
	pos  int
	args []node
}

type seqNode struct{ elems []node }

func (literalNode) isNode() {}
func (nameNode) isNode()    {}
func (unaryNode) isNode()   {}
func (binaryNode) isNode()  {}
func (boolNode) isNode()    {}
func (notNode) isNode()     {}
func (compareNode) isNode() {}
func (indexNode) isNode()   {}
func (callNode) isNode()    {}
func (seqNode) isNode()     {}

// freeNames walks the tree and records every referenced variable.
// Call targets are functions and are not recorded.
func freeNames(n node, out map[string]struct{}) {
	switch n := n.(type) {
	case nameNode:
		out[lower(n.ident)] = struct{}{}
	case unaryNode:
		freeNames(n.x, out)
	case binaryNode:
		freeNames(n.x, out)
		freeNames(n.y, out)
	case boolNode:
		freeNames(n.x, out)
		freeNames(n.y, out)
	case notNode:
		freeNames(n.x, out)
	case compareNode:
		freeNames(n.first, out)
		for _, r := range n.rest {
			freeNames(r, out)
		}
	case indexNode:
		freeNames(n.x, out)
		freeNames(n.index, out)
	case callNode:
		for _, a := range n.args {
			freeNames(a, out)
		}
	case seqNode:
		for _, e := range n.elems {
			freeNames(e, out)
		}
	}
}
