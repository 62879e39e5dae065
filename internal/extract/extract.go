// Package extract finds endpoint URI literals in route documents.
//
// Three front ends are provided: XML route definitions, the Java DSL and
// the YAML DSL. Each reports the literals with absolute byte offsets so
// that the instance model can be built directly against document text.
package extract

import (
	"path"
	"strings"
)

// Role tells how a route uses an endpoint.
type Role int

const (
	// RoleProducer sends to the endpoint (to, toD, wireTap, enrich).
	RoleProducer Role = iota
	// RoleConsumer consumes from the endpoint (from, pollEnrich).
	RoleConsumer
)

// String returns the role name.
func (r Role) String() string {
	if r == RoleConsumer {
		return "consumer"
	}
	return "producer"
}

// Literal is one endpoint URI in a document.
type Literal struct {
	// Text is the URI as written, without quotes.
	Text string
	// Offset is the byte offset of Text's first byte in the document.
	Offset int
	// Role is the position the URI occupies in its route.
	Role Role
	// Element is the DSL keyword that introduced the URI, e.g. "from".
	Element string
}

// End returns the offset just past the literal.
func (l Literal) End() int {
	return l.Offset + len(l.Text)
}

// Route is a named route definition.
type Route struct {
	ID     string
	Offset int
}

// Extraction is everything a front end found in one document.
type Extraction struct {
	Literals []Literal
	Routes   []Route
}

// At returns the literal whose range [Offset, End] touches offset.
func (e *Extraction) At(offset int) (Literal, bool) {
	for _, l := range e.Literals {
		if offset >= l.Offset && offset <= l.End() {
			return l, true
		}
	}
	return Literal{}, false
}

// Extractor scans document text.
type Extractor interface {
	Extract(text string) Extraction
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(text string) Extraction

// Extract implements Extractor.
func (f ExtractorFunc) Extract(text string) Extraction {
	return f(text)
}

// Endpoint keywords and the role they imply.
var elementRoles = map[string]Role{
	"from":       RoleConsumer,
	"pollenrich": RoleConsumer,
	"to":         RoleProducer,
	"tod":        RoleProducer,
	"wiretap":    RoleProducer,
	"enrich":     RoleProducer,
	"inout":      RoleProducer,
	"inonly":     RoleProducer,
}

func roleOf(element string) (Role, bool) {
	r, ok := elementRoles[strings.ToLower(element)]
	return r, ok
}

// For selects a front end from a document URI or path and an LSP language
// id. Unknown documents are treated as XML.
func For(docURI, languageID string) Extractor {
	switch strings.ToLower(languageID) {
	case "java":
		return Java
	case "yaml":
		return YAML
	case "xml":
		return XML
	}
	switch strings.ToLower(path.Ext(docURI)) {
	case ".java":
		return Java
	case ".yaml", ".yml":
		return YAML
	default:
		return XML
	}
}
