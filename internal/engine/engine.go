package engine

import (
	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/instance"
)

// Default configuration values.
const (
	DefaultMaxResults = 200
)

// Engine applies user settings on top of the package functions. The zero
// value is not usable; create one with New.
type Engine struct {
	maxResults int
	deprecated bool
}

// Option configures an Engine during creation.
type Option func(*Engine)

// WithMaxResults caps the number of completion candidates. Zero or a
// negative value removes the cap.
func WithMaxResults(n int) Option {
	return func(e *Engine) {
		e.maxResults = n
	}
}

// WithDeprecatedWarnings controls whether Deprecated diagnostics are
// reported.
func WithDeprecatedWarnings(enabled bool) Option {
	return func(e *Engine) {
		e.deprecated = enabled
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxResults: DefaultMaxResults,
		deprecated: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Hover documents the instance at offset.
func (e *Engine) Hover(t *instance.Tree, offset int) *HoverInfo {
	return HoverAt(t, offset)
}

// Complete proposes candidates at offset, truncated to the result cap.
func (e *Engine) Complete(t *instance.Tree, offset int, lookup catalog.Lookup) []Candidate {
	out := Complete(t, offset, lookup)
	if e.maxResults > 0 && len(out) > e.maxResults {
		out = out[:e.maxResults]
	}
	return out
}

// Diagnose reports the tree's problems, dropping the kinds disabled by
// options.
func (e *Engine) Diagnose(t *instance.Tree) []Diagnostic {
	out := Diagnose(t)
	if e.deprecated {
		return out
	}
	kept := out[:0]
	for _, d := range out {
		if d.Kind != Deprecated {
			kept = append(kept, d)
		}
	}
	return kept
}
