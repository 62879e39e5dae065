package extract

import (
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// YAML extracts endpoint URIs from the YAML DSL, both the short form
// (to: "log:foo") and the long form (from: {uri: "timer:tick"}).
var YAML Extractor = ExtractorFunc(extractYAML)

func extractYAML(text string) Extraction {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return Extraction{}
	}
	y := yamlScan{text: text, lines: lineStarts(text)}
	y.walk(&root)
	return y.out
}

type yamlScan struct {
	text  string
	lines []int
	out   Extraction
}

func (y *yamlScan) walk(n *yaml.Node) {
	if n == nil {
		return
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			y.entry(key.Value, val)
		}
		return
	}
	for _, c := range n.Content {
		y.walk(c)
	}
}

func (y *yamlScan) entry(key string, val *yaml.Node) {
	if role, ok := roleOf(key); ok {
		switch val.Kind {
		case yaml.ScalarNode:
			y.literal(val, role, key)
			return
		case yaml.MappingNode:
			if u := mappingValue(val, "uri"); u != nil {
				y.literal(u, role, key)
			}
		}
		y.walk(val)
		return
	}
	if key == "route" && val.Kind == yaml.MappingNode {
		if id := mappingValue(val, "id"); id != nil {
			if text, off, ok := y.scalar(id); ok {
				y.out.Routes = append(y.out.Routes, Route{ID: text, Offset: off})
			}
		}
	}
	y.walk(val)
}

func (y *yamlScan) literal(n *yaml.Node, role Role, element string) {
	text, off, ok := y.scalar(n)
	if !ok {
		return
	}
	y.out.Literals = append(y.out.Literals, Literal{Text: text, Offset: off, Role: role, Element: element})
}

// scalar returns the source text of a scalar and its offset. Block
// scalars are skipped since their content does not map onto one range.
func (y *yamlScan) scalar(n *yaml.Node) (string, int, bool) {
	if n.Kind != yaml.ScalarNode {
		return "", 0, false
	}
	off := y.offset(n.Line, n.Column)
	if off < 0 || off >= len(y.text) {
		return "", 0, false
	}
	switch {
	case n.Style&yaml.DoubleQuotedStyle != 0, n.Style&yaml.SingleQuotedStyle != 0:
		end := closingQuote(y.text, off)
		if end < 0 {
			return "", 0, false
		}
		return y.text[off+1 : end], off + 1, true
	case n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0:
		return "", 0, false
	default:
		if !strings.HasPrefix(y.text[off:], n.Value) {
			return "", 0, false
		}
		return n.Value, off, true
	}
}

// offset converts a 1-based line and column (in characters) to a byte
// offset, or -1.
func (y *yamlScan) offset(line, col int) int {
	if line < 1 || line > len(y.lines) {
		return -1
	}
	off := y.lines[line-1]
	for c := 1; c < col && off < len(y.text); c++ {
		_, size := utf8.DecodeRuneInString(y.text[off:])
		off += size
	}
	return off
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// closingQuote returns the index of the quote ending the scalar that
// starts with a quote at open.
func closingQuote(text string, open int) int {
	q := text[open]
	for i := open + 1; i < len(text); i++ {
		switch {
		case q == '"' && text[i] == '\\':
			i++
		case q == '\'' && text[i] == '\'' && i+1 < len(text) && text[i+1] == '\'':
			i++
		case text[i] == q:
			return i
		}
	}
	return -1
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
