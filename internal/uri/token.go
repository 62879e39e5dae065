// Package uri splits endpoint URI strings such as
// "kafka:topic?brokers=localhost:9092" into offset-tagged tokens.
//
// Tokenizing never fails. Malformed input degrades to a best-effort split,
// and every byte of the input belongs to exactly one token, delimiters
// included, so edit ranges computed from token spans are always valid
// against the original text.
package uri

import "fmt"

// Span is a half-open byte range [Start, End) in the source document.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (s Span) Len() int {
	return s.End - s.Start
}

// IsEmpty reports whether the span covers no bytes.
func (s Span) IsEmpty() bool {
	return s.End <= s.Start
}

// Touches reports whether offset lies in the closed range [Start, End].
// A cursor positioned right after the last byte still touches the span.
func (s Span) Touches(offset int) bool {
	return offset >= s.Start && offset <= s.End
}

// Contains reports whether inner lies within s.
func (s Span) Contains(inner Span) bool {
	return inner.Start >= s.Start && inner.End <= s.End
}

// String formats the span as [start,end).
func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// TokenKind classifies a token.
type TokenKind int

const (
	// TokenComponent is the component id before the first colon.
	TokenComponent TokenKind = iota
	// TokenPath is one path parameter segment.
	TokenPath
	// TokenKey is a query parameter name.
	TokenKey
	// TokenValue is a query parameter value.
	TokenValue
	// TokenDelimiter is a separator gap: ':', '/', '?', '&', "&amp;" or '='.
	TokenDelimiter
)

// String returns the token kind name.
func (k TokenKind) String() string {
	switch k {
	case TokenComponent:
		return "component"
	case TokenPath:
		return "path"
	case TokenKey:
		return "key"
	case TokenValue:
		return "value"
	case TokenDelimiter:
		return "delimiter"
	default:
		return "unknown"
	}
}

// Token is one lexical piece of a URI.
type Token struct {
	Kind TokenKind
	Span Span
	Text string
}

// Param is one query parameter piece.
type Param struct {
	Key   Token
	Value Token

	// HasValue is false when the piece has no '='. Value is then a
	// zero-width token at the end of the key.
	HasValue bool
}

// Incomplete reports whether the piece has no '=' separator.
func (p Param) Incomplete() bool {
	return !p.HasValue
}

// Sequence is the tokenized form of one URI.
type Sequence struct {
	// Text is the URI exactly as it appears in the source.
	Text string
	// Base is the absolute offset of Text within the document.
	Base int

	Component Token
	// HasColon reports whether a component separator was found.
	HasColon bool
	// Path holds the path segments in order. It is empty only when the
	// URI has no colon.
	Path []Token
	// HasQuery reports whether a '?' was found.
	HasQuery bool
	// Query holds the query pieces in order.
	Query []Param

	// Tokens is every token, delimiters included, in source order.
	Tokens []Token
}

// Span returns the absolute range covered by the whole URI.
func (s *Sequence) Span() Span {
	return Span{Start: s.Base, End: s.Base + len(s.Text)}
}

// Slice returns the URI text covered by an absolute span.
func (s *Sequence) Slice(sp Span) string {
	start, end := sp.Start-s.Base, sp.End-s.Base
	if start < 0 {
		start = 0
	}
	if end > len(s.Text) {
		end = len(s.Text)
	}
	if start >= end {
		return ""
	}
	return s.Text[start:end]
}
