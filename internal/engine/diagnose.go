package engine

import (
	"fmt"

	"github.com/dshills/endpointls/internal/instance"
	"github.com/dshills/endpointls/internal/uri"
)

// Severity ranks a diagnostic. Values match the LSP severities.
type Severity int

const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// DiagnosticKind identifies the rule that produced a diagnostic.
type DiagnosticKind string

const (
	UnresolvedComponent DiagnosticKind = "unresolved-component"
	UnknownParameter    DiagnosticKind = "unknown-parameter"
	ExtraPathParameter  DiagnosticKind = "extra-path-parameter"
	TypeMismatch        DiagnosticKind = "type-mismatch"
	Deprecated          DiagnosticKind = "deprecated"
	DuplicateParameter  DiagnosticKind = "duplicate-parameter"
	MissingRequired     DiagnosticKind = "missing-required"
)

// Diagnostic is one problem found in a URI.
type Diagnostic struct {
	Span     uri.Span
	Severity Severity
	Kind     DiagnosticKind
	Message  string
}

// Diagnose reports every problem in the tree in source order. The result
// depends only on the tree.
func Diagnose(t *instance.Tree) []Diagnostic {
	if t == nil {
		return nil
	}
	d := diagnoser{tree: t, seen: make(map[string]bool)}
	return d.run()
}

type diagnoser struct {
	tree *instance.Tree
	out  []Diagnostic
	seen map[string]bool
}

func (d *diagnoser) add(span uri.Span, sev Severity, kind DiagnosticKind, format string, args ...any) {
	d.out = append(d.out, Diagnostic{
		Span:     span,
		Severity: sev,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (d *diagnoser) run() []Diagnostic {
	t := d.tree
	comp := t.Component()
	if !t.Known() {
		d.add(comp.Span, SeverityError, UnresolvedComponent, "unknown component %q", comp.Text)
		return d.out
	}
	s := t.Schema()
	if s.Deprecated {
		d.add(comp.Span, SeverityWarning, Deprecated, "component %q is deprecated", s.ID)
	}

	t.Walk(func(in *instance.Instance) bool {
		switch in.Kind {
		case instance.KindPath:
			d.path(in)
		case instance.KindQueryKey:
			d.key(in)
		case instance.KindQueryValue:
			if !in.Valid {
				d.add(in.Span, SeverityError, TypeMismatch, "%s", in.Problem)
			}
		}
		return true
	})

	d.missing(comp)
	return d.out
}

func (d *diagnoser) path(in *instance.Instance) {
	if in.Extra {
		d.add(in.Span, SeverityWarning, ExtraPathParameter,
			"unexpected path segment %q for component %q", in.Text, d.tree.Schema().ID)
		return
	}
	if in.Def == nil {
		return
	}
	if in.Def.Required && in.Text == "" {
		d.add(in.Span, SeverityError, MissingRequired, "missing required path parameter %q", in.Def.Name)
	}
	if in.Def.Deprecated && in.Text != "" {
		d.add(in.Span, SeverityWarning, Deprecated, "path parameter %q is deprecated", in.Def.Name)
	}
}

func (d *diagnoser) key(in *instance.Instance) {
	if in.Text == "" {
		return
	}
	if in.Def == nil {
		d.add(in.Span, SeverityError, UnknownParameter,
			"unknown parameter %q for component %q", in.Text, d.tree.Schema().ID)
		return
	}
	if d.seen[in.Text] {
		d.add(in.Span, SeverityWarning, DuplicateParameter, "parameter %q is set more than once", in.Text)
	}
	d.seen[in.Text] = true
	if in.Def.Deprecated {
		d.add(in.Span, SeverityWarning, Deprecated, "parameter %q is deprecated", in.Text)
	}
}

// missing reports required definitions with no instance at all. They are
// anchored on the component name.
func (d *diagnoser) missing(comp *instance.Instance) {
	t := d.tree
	s := t.Schema()
	present := make(map[int]bool)
	for _, id := range t.OfKind(instance.KindPath) {
		present[t.Node(id).Position] = true
	}
	for i := range s.PathParams {
		p := &s.PathParams[i]
		if p.Required && !present[i] {
			d.add(comp.Span, SeverityError, MissingRequired, "missing required path parameter %q", p.Name)
		}
	}
	for i := range s.QueryParams {
		q := &s.QueryParams[i]
		if q.Required && !d.seen[q.Name] {
			d.add(comp.Span, SeverityError, MissingRequired, "missing required parameter %q", q.Name)
		}
	}
}
