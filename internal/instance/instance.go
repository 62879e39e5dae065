// Package instance binds URI tokens to catalog definitions, producing an
// offset-addressable tree of element instances.
//
// The tree is an arena: instances are stored in a slice and refer to each
// other by ID. Parent links are plain indexes used for navigation only.
// A tree is immutable once built and is rebuilt from scratch whenever the
// document changes.
package instance

import (
	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/uri"
)

// ID addresses an instance within its tree.
type ID int

// None is the null ID.
const None ID = -1

// Root is the ID of every tree's root instance.
const Root ID = 0

// Kind tags the variant of an instance.
type Kind int

const (
	// KindRoot spans the whole URI and carries the component schema.
	KindRoot Kind = iota
	// KindComponent is the component id.
	KindComponent
	// KindPath is a path parameter.
	KindPath
	// KindQueryKey is a query parameter name.
	KindQueryKey
	// KindQueryValue is a query parameter value.
	KindQueryValue
	// KindRaw is a synthetic leaf covering delimiter text.
	KindRaw
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindComponent:
		return "component"
	case KindPath:
		return "path"
	case KindQueryKey:
		return "queryKey"
	case KindQueryValue:
		return "queryValue"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Instance is one element of the tree.
type Instance struct {
	ID       ID
	Kind     Kind
	Span     uri.Span
	Text     string
	Parent   ID
	Children []ID

	// Def is the bound definition of path, key and value instances.
	// nil means no definition matched.
	Def *catalog.ParamDef

	// Position is the path segment index or the query piece index.
	Position int

	// Peer links a query key to its value and a value to its key.
	// None for a key written without '='.
	Peer ID

	// Valid is false when a query value fails its definition's type check.
	Valid bool
	// Problem explains why Valid is false.
	Problem string

	// Extra marks a path instance beyond the schema's path parameters.
	Extra bool
}

// Bound reports whether the instance matched a definition.
func (in *Instance) Bound() bool {
	return in.Def != nil
}

// Tree is the instance model of one URI.
type Tree struct {
	seq    uri.Sequence
	schema *catalog.ComponentSchema
	nodes  []Instance
}

// Sequence returns the tokens the tree was built from.
func (t *Tree) Sequence() *uri.Sequence {
	return &t.seq
}

// Schema returns the resolved component schema, or nil for an unknown
// component.
func (t *Tree) Schema() *catalog.ComponentSchema {
	return t.schema
}

// Known reports whether the component id matched the catalog.
func (t *Tree) Known() bool {
	return t.schema != nil
}

// Len returns the number of instances.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the instance with the given id. It panics on an invalid id.
func (t *Tree) Node(id ID) *Instance {
	return &t.nodes[id]
}

// Span returns the root span.
func (t *Tree) Span() uri.Span {
	return t.nodes[Root].Span
}

// Children returns the ordered children of id.
func (t *Tree) Children(id ID) []ID {
	return t.nodes[id].Children
}

// Walk visits instances in pre-order, left to right. Returning false from
// fn skips the instance's children.
func (t *Tree) Walk(fn func(in *Instance) bool) {
	var visit func(id ID)
	visit = func(id ID) {
		if !fn(&t.nodes[id]) {
			return
		}
		for _, c := range t.nodes[id].Children {
			visit(c)
		}
	}
	visit(Root)
}

// Leaves returns the leaf instances in source order.
func (t *Tree) Leaves() []ID {
	var out []ID
	t.Walk(func(in *Instance) bool {
		if len(in.Children) == 0 && in.ID != Root {
			out = append(out, in.ID)
		}
		return true
	})
	return out
}

// OfKind returns every instance of kind k in source order.
func (t *Tree) OfKind(k Kind) []ID {
	var out []ID
	t.Walk(func(in *Instance) bool {
		if in.Kind == k {
			out = append(out, in.ID)
		}
		return true
	})
	return out
}

// Component returns the component-name instance.
func (t *Tree) Component() *Instance {
	for _, c := range t.nodes[Root].Children {
		if t.nodes[c].Kind == KindComponent {
			return &t.nodes[c]
		}
	}
	return nil
}

// QueryKeyNames returns the names of every query key in source order.
func (t *Tree) QueryKeyNames() []string {
	var out []string
	for _, id := range t.OfKind(KindQueryKey) {
		out = append(out, t.nodes[id].Text)
	}
	return out
}
