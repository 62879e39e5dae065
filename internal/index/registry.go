package index

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/endpointls/internal/extract"
	"github.com/dshills/endpointls/internal/uri"
)

// Key names an endpoint independently of the document it appears in.
type Key struct {
	Component string
	Name      string
}

// String formats the key as component:name.
func (k Key) String() string {
	return k.Component + ":" + k.Name
}

// Location is a range in a document.
type Location struct {
	URI  string
	Span uri.Span
}

// SymbolKind classifies a document symbol.
type SymbolKind int

const (
	SymbolRoute SymbolKind = iota
	SymbolEndpoint
)

// Symbol is one entry of a document outline.
type Symbol struct {
	Name string
	Kind SymbolKind
	Span uri.Span
	// Container is the id of the enclosing route, if known.
	Container string
	// Role is set for endpoint symbols.
	Role extract.Role
}

type snapshot struct {
	docs map[string]*Analysis
	uris []string
}

// Registry is the process-wide set of document analyses. Readers load an
// immutable snapshot and never block; writers are serialized and publish a
// new snapshot with the document replaced.
type Registry struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(&snapshot{docs: map[string]*Analysis{}})
	return r
}

func (r *Registry) load() *snapshot {
	return r.snap.Load()
}

// update copies the current snapshot, applies fn and publishes the result.
func (r *Registry) update(fn func(docs map[string]*Analysis)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	docs := make(map[string]*Analysis, len(cur.docs)+1)
	for k, v := range cur.docs {
		docs[k] = v
	}
	fn(docs)

	uris := make([]string, 0, len(docs))
	for k := range docs {
		uris = append(uris, k)
	}
	sort.Strings(uris)
	r.snap.Store(&snapshot{docs: docs, uris: uris})
}

// Put stores a document analysis. An analysis older than the stored one
// is ignored.
func (r *Registry) Put(a *Analysis) {
	r.update(func(docs map[string]*Analysis) {
		if old, ok := docs[a.URI]; ok && old.Version > a.Version {
			return
		}
		docs[a.URI] = a
	})
}

// Remove forgets a document.
func (r *Registry) Remove(docURI string) {
	r.update(func(docs map[string]*Analysis) {
		delete(docs, docURI)
	})
}

// Get returns the stored analysis of a document.
func (r *Registry) Get(docURI string) (*Analysis, bool) {
	a, ok := r.load().docs[docURI]
	return a, ok
}

// Len returns the number of stored documents.
func (r *Registry) Len() int {
	return len(r.load().docs)
}

// References returns every endpoint with the given key, ordered by
// document URI then offset.
func (r *Registry) References(k Key) []Location {
	return r.find(k, func(*Endpoint) bool { return true })
}

// Definitions returns the endpoints with the given key that consume from
// it, so the route they start is where the name is defined.
func (r *Registry) Definitions(k Key) []Location {
	return r.find(k, func(ep *Endpoint) bool {
		return ep.Literal.Role == extract.RoleConsumer
	})
}

func (r *Registry) find(k Key, keep func(*Endpoint) bool) []Location {
	s := r.load()
	var out []Location
	for _, u := range s.uris {
		a := s.docs[u]
		for i := range a.Endpoints {
			ep := &a.Endpoints[i]
			if got, ok := ep.Key(); ok && got == k && keep(ep) {
				out = append(out, Location{URI: u, Span: ep.Span()})
			}
		}
	}
	return out
}

// Symbols returns the routes and endpoints of a document in source order.
func (r *Registry) Symbols(docURI string) []Symbol {
	a, ok := r.Get(docURI)
	if !ok {
		return nil
	}
	out := make([]Symbol, 0, len(a.Routes)+len(a.Endpoints))
	for _, rt := range a.Routes {
		out = append(out, Symbol{
			Name: rt.ID,
			Kind: SymbolRoute,
			Span: uri.Span{Start: rt.Offset, End: rt.Offset + len(rt.ID)},
		})
	}
	for i := range a.Endpoints {
		ep := &a.Endpoints[i]
		out = append(out, Symbol{
			Name:      ep.Literal.Text,
			Kind:      SymbolEndpoint,
			Span:      ep.Span(),
			Container: containingRoute(a.Routes, ep.Literal.Offset),
			Role:      ep.Literal.Role,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Span.Start < out[j].Span.Start
	})
	return out
}

// containingRoute returns the id of the last route declared before offset.
func containingRoute(routes []extract.Route, offset int) string {
	id := ""
	for _, rt := range routes {
		if rt.Offset > offset {
			break
		}
		id = rt.ID
	}
	return id
}
