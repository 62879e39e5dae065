package engine

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/instance"
	"github.com/dshills/endpointls/internal/uri"
)

// CandidateKind classifies a completion candidate.
type CandidateKind int

const (
	// CandidateComponent is a component scheme.
	CandidateComponent CandidateKind = iota
	// CandidatePath is a path parameter name for an unfilled path slot.
	CandidatePath
	// CandidateParameter is a query parameter name.
	CandidateParameter
	// CandidateValue is a query parameter value.
	CandidateValue
)

// String returns the kind name.
func (k CandidateKind) String() string {
	switch k {
	case CandidateComponent:
		return "component"
	case CandidatePath:
		return "path"
	case CandidateParameter:
		return "parameter"
	case CandidateValue:
		return "value"
	default:
		return "unknown"
	}
}

// Candidate is one completion proposal.
type Candidate struct {
	Label      string
	InsertText string
	// Replace is the range that InsertText overwrites.
	Replace       uri.Span
	Documentation string
	Deprecated    bool
	Kind          CandidateKind
	// SortText preserves the rank order for clients that sort.
	SortText string
}

type completeFunc func(t *instance.Tree, in *instance.Instance, offset int, lookup catalog.Lookup) []Candidate

var completeByKind = map[instance.Kind]completeFunc{
	instance.KindComponent:  completeComponent,
	instance.KindPath:       completePath,
	instance.KindQueryKey:   completeKey,
	instance.KindQueryValue: completeValue,
}

// Complete proposes continuations at offset. A nil lookup means the
// catalog is unavailable and yields no component candidates.
func Complete(t *instance.Tree, offset int, lookup catalog.Lookup) []Candidate {
	if t == nil {
		return nil
	}
	in := t.At(offset)
	fn, ok := completeByKind[in.Kind]
	if !ok {
		return nil
	}
	out := dedup(fn(t, in, offset, lookup))
	for i := range out {
		out[i].SortText = fmt.Sprintf("%04d", i)
	}
	return out
}

// dedup drops candidates whose insertion text was already proposed,
// keeping the first.
func dedup(in []Candidate) []Candidate {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, c := range in {
		if seen[c.InsertText] {
			continue
		}
		seen[c.InsertText] = true
		out = append(out, c)
	}
	return out
}

func completeComponent(t *instance.Tree, in *instance.Instance, offset int, lookup catalog.Lookup) []Candidate {
	if lookup == nil {
		return nil
	}
	fold := cases.Fold()
	end := offset
	if end > in.Span.End {
		end = in.Span.End
	}
	prefix := fold.String(t.Sequence().Slice(uri.Span{Start: in.Span.Start, End: end}))

	var out []Candidate
	for _, id := range lookup.ComponentIDs() {
		if !strings.HasPrefix(fold.String(id), prefix) {
			continue
		}
		s, ok := lookup.Component(id)
		if !ok {
			continue
		}
		insert := s.Syntax
		if insert == "" {
			insert = id
		}
		out = append(out, Candidate{
			Label:         insert,
			InsertText:    insert,
			Replace:       in.Span,
			Documentation: componentInfo(s).Markdown(),
			Deprecated:    s.Deprecated,
			Kind:          CandidateComponent,
		})
	}
	return out
}

func completePath(t *instance.Tree, in *instance.Instance, _ int, _ catalog.Lookup) []Candidate {
	s := t.Schema()
	if s == nil {
		return nil
	}
	used := make(map[int]bool)
	for _, id := range t.OfKind(instance.KindPath) {
		n := t.Node(id)
		if n.ID != in.ID && n.Text != "" {
			used[n.Position] = true
		}
	}

	var out []Candidate
	for i := range s.PathParams {
		if used[i] {
			continue
		}
		d := &s.PathParams[i]
		out = append(out, Candidate{
			Label:         d.Name,
			InsertText:    d.Name,
			Replace:       in.Span,
			Documentation: paramInfo(d).Markdown(),
			Deprecated:    d.Deprecated,
			Kind:          CandidatePath,
		})
	}
	return out
}

func completeKey(t *instance.Tree, in *instance.Instance, _ int, _ catalog.Lookup) []Candidate {
	s := t.Schema()
	if s == nil {
		return nil
	}
	// The key being edited does not count as present.
	present := make(map[string]int)
	for _, name := range t.QueryKeyNames() {
		present[name]++
	}
	present[in.Text]--

	defs := make([]*catalog.ParamDef, 0, len(s.QueryParams))
	for i := range s.QueryParams {
		if present[s.QueryParams[i].Name] <= 0 {
			defs = append(defs, &s.QueryParams[i])
		}
	}
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Deprecated != defs[j].Deprecated {
			return !defs[i].Deprecated
		}
		return defs[i].Name < defs[j].Name
	})

	hasValue := in.Peer != instance.None
	out := make([]Candidate, 0, len(defs))
	for _, d := range defs {
		insert := d.Name
		if !hasValue {
			insert += "=" + d.Default
		}
		out = append(out, Candidate{
			Label:         d.Name,
			InsertText:    insert,
			Replace:       in.Span,
			Documentation: paramInfo(d).Markdown(),
			Deprecated:    d.Deprecated,
			Kind:          CandidateParameter,
		})
	}
	return out
}

func completeValue(_ *instance.Tree, in *instance.Instance, _ int, _ catalog.Lookup) []Candidate {
	d := in.Def
	if d == nil {
		return nil
	}
	var values []string
	switch {
	case d.HasEnum():
		values = d.Enum
	case d.Type == catalog.TypeBoolean:
		values = []string{"true", "false"}
	case d.Default != "":
		values = []string{d.Default}
	}

	doc := paramInfo(d).Markdown()
	out := make([]Candidate, 0, len(values))
	for _, v := range values {
		out = append(out, Candidate{
			Label:         v,
			InsertText:    v,
			Replace:       in.Span,
			Documentation: doc,
			Kind:          CandidateValue,
		})
	}
	return out
}
