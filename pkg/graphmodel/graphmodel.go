// Package graphmodel declares the types the compute runtime's node
// graph is consumed through. The graph itself, its node registry, and
// per-node input snapshots are an opaque API owned by the host (spec.md
// §1, "Out of scope"); this package only names the shape the rest of
// the pipeline needs to traverse and read it.
package graphmodel

// NodeID identifies a node within one graph. The host assigns these;
// this package treats them as opaque comparable keys.
type NodeID string

// InputValue is a small variant over the shapes a node's input
// snapshot may hold (spec.md §9, "Polymorphism over input values"):
// a scalar, a list of values, a reference to another node's output, or
// a nested mapping. Helpers coerce List to its first scalar before any
// other processing, per the same design note.
type InputValue struct {
	kind     inputKind
	scalar   any
	list     []InputValue
	ref      *Ref
	nested   map[string]InputValue
}

type inputKind int

const (
	kindScalar inputKind = iota
	kindList
	kindRef
	kindNested
)

// Ref is a reference to another node's output, the graph edge shape.
type Ref struct {
	SourceNodeID  NodeID
	SourceOutput  int
}

func Scalar(v any) InputValue           { return InputValue{kind: kindScalar, scalar: v} }
func List(items ...InputValue) InputValue { return InputValue{kind: kindList, list: items} }
func RefTo(nodeID NodeID, output int) InputValue {
	return InputValue{kind: kindRef, ref: &Ref{SourceNodeID: nodeID, SourceOutput: output}}
}
func Nested(m map[string]InputValue) InputValue { return InputValue{kind: kindNested, nested: m} }

// IsRef reports whether this value is a reference to another node's
// output, and returns it.
func (v InputValue) IsRef() (Ref, bool) {
	if v.kind == kindRef && v.ref != nil {
		return *v.ref, true
	}
	return Ref{}, false
}

// IsList reports whether this value is a list.
func (v InputValue) IsList() ([]InputValue, bool) {
	if v.kind == kindList {
		return v.list, true
	}
	return nil, false
}

// AsNested returns the nested mapping, if this value is one.
func (v InputValue) AsNested() (map[string]InputValue, bool) {
	if v.kind == kindNested {
		return v.nested, true
	}
	return nil, false
}

// Scalar coerces a value to a single scalar: a list coerces to its
// first element (recursively), a ref or empty list yields ok=false.
// This is the uniform-treatment helper spec.md §9 calls for.
func (v InputValue) Scalar() (any, bool) {
	switch v.kind {
	case kindScalar:
		return v.scalar, true
	case kindList:
		if len(v.list) == 0 {
			return nil, false
		}
		return v.list[0].Scalar()
	default:
		return nil, false
	}
}

// String coerces to a string scalar, returning "" if the value is not
// a string-shaped scalar.
func (v InputValue) String() string {
	s, ok := v.Scalar()
	if !ok {
		return ""
	}
	if str, ok := s.(string); ok {
		return str
	}
	return ""
}

// Node is one node's class name and input snapshot, as the host
// reports it.
type Node struct {
	ClassName string
	Inputs    map[string]InputValue
}

// Graph is the opaque node-graph topology the runtime provides for one
// save invocation (spec.md §6.1).
type Graph struct {
	Nodes map[NodeID]Node
}

// Get returns the node for an id, and whether it exists.
func (g Graph) Get(id NodeID) (Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}
