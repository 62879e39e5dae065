package uri

import "strings"

// Delimiters.
const (
	componentSep = ':'
	pathSep      = '/'
	querySep     = '?'
	paramSep     = '&'
	valueSep     = '='
	escape       = '\\'

	xmlParamSep = "&amp;"
)

// Tokenize splits a URI whose first byte is at document offset 0.
func Tokenize(text string) Sequence {
	return TokenizeAt(text, 0)
}

// TokenizeAt splits a URI whose first byte is at document offset base.
// All token spans are absolute.
func TokenizeAt(text string, base int) Sequence {
	t := tokenizer{text: text, base: base}
	return t.run()
}

type tokenizer struct {
	text string
	base int
	seq  Sequence
}

func (t *tokenizer) emit(kind TokenKind, start, end int) Token {
	tok := Token{
		Kind: kind,
		Span: Span{Start: t.base + start, End: t.base + end},
		Text: t.text[start:end],
	}
	t.seq.Tokens = append(t.seq.Tokens, tok)
	return tok
}

func (t *tokenizer) run() Sequence {
	t.seq = Sequence{Text: t.text, Base: t.base}
	n := len(t.text)

	colon := scan(t.text, 0, n, componentSep)
	if colon < 0 {
		t.seq.Component = t.emit(TokenComponent, 0, n)
		return t.seq
	}
	t.seq.Component = t.emit(TokenComponent, 0, colon)
	t.seq.HasColon = true
	t.emit(TokenDelimiter, colon, colon+1)

	pathEnd := scan(t.text, colon+1, n, querySep)
	if pathEnd < 0 {
		pathEnd = n
	}
	t.path(colon+1, pathEnd)

	if pathEnd < n {
		t.seq.HasQuery = true
		t.emit(TokenDelimiter, pathEnd, pathEnd+1)
		t.query(pathEnd+1, n)
	}
	return t.seq
}

func (t *tokenizer) path(start, end int) {
	for {
		sep := scan(t.text, start, end, pathSep)
		if sep < 0 {
			t.seq.Path = append(t.seq.Path, t.emit(TokenPath, start, end))
			return
		}
		t.seq.Path = append(t.seq.Path, t.emit(TokenPath, start, sep))
		t.emit(TokenDelimiter, sep, sep+1)
		start = sep + 1
	}
}

func (t *tokenizer) query(start, end int) {
	for {
		sep, width := scanParamSep(t.text, start, end)
		pieceEnd := end
		if sep >= 0 {
			pieceEnd = sep
		}
		t.param(start, pieceEnd)
		if sep < 0 {
			return
		}
		t.emit(TokenDelimiter, sep, sep+width)
		start = sep + width
	}
}

func (t *tokenizer) param(start, end int) {
	eq := scan(t.text, start, end, valueSep)
	if eq < 0 {
		key := t.emit(TokenKey, start, end)
		t.seq.Query = append(t.seq.Query, Param{
			Key:   key,
			Value: Token{Kind: TokenValue, Span: Span{Start: key.Span.End, End: key.Span.End}},
		})
		return
	}
	key := t.emit(TokenKey, start, eq)
	t.emit(TokenDelimiter, eq, eq+1)
	value := t.emit(TokenValue, eq+1, end)
	t.seq.Query = append(t.seq.Query, Param{Key: key, Value: value, HasValue: true})
}

// scan returns the index of the first unescaped delim in s[from:to], or -1.
// A backslash escapes the following byte and RAW(...) / RAW{...} regions
// are opaque.
func scan(s string, from, to int, delim byte) int {
	for i := from; i < to; i++ {
		switch {
		case s[i] == escape:
			i++
		case s[i] == 'R' && i+4 <= to && (s[i:i+4] == "RAW(" || s[i:i+4] == "RAW{"):
			i = skipRaw(s, i, to) - 1
		case s[i] == delim:
			return i
		}
	}
	return -1
}

// scanParamSep finds the next query separator, which is either '&' or the
// XML-escaped "&amp;". It returns the index and the separator width.
func scanParamSep(s string, from, to int) (int, int) {
	i := scan(s, from, to, paramSep)
	if i < 0 {
		return -1, 0
	}
	if strings.HasPrefix(s[i:to], xmlParamSep) {
		return i, len(xmlParamSep)
	}
	return i, 1
}

// skipRaw returns the index just past the RAW region starting at i.
// An unterminated region extends to `to`.
func skipRaw(s string, i, to int) int {
	closer := byte(')')
	if s[i+3] == '{' {
		closer = '}'
	}
	for j := i + 4; j < to; j++ {
		if s[j] == closer {
			return j + 1
		}
	}
	return to
}

// IsRaw reports whether a value is wrapped as RAW(...) or RAW{...}.
func IsRaw(value string) bool {
	return len(value) >= 5 &&
		((strings.HasPrefix(value, "RAW(") && strings.HasSuffix(value, ")")) ||
			(strings.HasPrefix(value, "RAW{") && strings.HasSuffix(value, "}")))
}

// IsPlaceholder reports whether a value contains a property placeholder
// ({{name}}) or a simple-language expression (${expr}).
func IsPlaceholder(value string) bool {
	return strings.Contains(value, "{{") || strings.Contains(value, "${")
}
