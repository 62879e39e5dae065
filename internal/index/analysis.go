// Package index keeps the analysis of every open document and answers
// cross-document questions: document symbols, references and definitions
// of named endpoints such as direct:name or seda:name.
package index

import (
	"github.com/google/uuid"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/extract"
	"github.com/dshills/endpointls/internal/instance"
	"github.com/dshills/endpointls/internal/uri"
)

// Endpoint is one URI literal of a document together with its tree.
type Endpoint struct {
	Literal extract.Literal
	Tree    *instance.Tree
}

// Span returns the literal's absolute range.
func (e *Endpoint) Span() uri.Span {
	return uri.Span{Start: e.Literal.Offset, End: e.Literal.End()}
}

// Key returns the name an endpoint is known by across documents. ok is
// false unless a path parameter is bound to a reference definition.
func (e *Endpoint) Key() (Key, bool) {
	s := e.Tree.Schema()
	if s == nil {
		return Key{}, false
	}
	for _, id := range e.Tree.OfKind(instance.KindPath) {
		n := e.Tree.Node(id)
		if n.Def != nil && n.Def.Reference && n.Text != "" {
			return Key{Component: s.ID, Name: n.Text}, true
		}
	}
	return Key{}, false
}

// Analysis is the immutable result of analyzing one document version.
type Analysis struct {
	// ID distinguishes analyses of the same document in logs.
	ID      string
	URI     string
	Version int

	Endpoints []Endpoint
	Routes    []extract.Route
}

// Analyze extracts the URI literals of a document and builds their trees.
func Analyze(docURI string, version int, text string, ex extract.Extractor, lookup catalog.Lookup) *Analysis {
	found := ex.Extract(text)
	a := &Analysis{
		ID:        uuid.NewString(),
		URI:       docURI,
		Version:   version,
		Endpoints: make([]Endpoint, 0, len(found.Literals)),
		Routes:    found.Routes,
	}
	for _, l := range found.Literals {
		a.Endpoints = append(a.Endpoints, Endpoint{
			Literal: l,
			Tree:    instance.Parse(l.Text, l.Offset, lookup),
		})
	}
	return a
}

// At returns the endpoint whose literal touches offset.
func (a *Analysis) At(offset int) (*Endpoint, bool) {
	for i := range a.Endpoints {
		if a.Endpoints[i].Span().Touches(offset) {
			return &a.Endpoints[i], true
		}
	}
	return nil, false
}
