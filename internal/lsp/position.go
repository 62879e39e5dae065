package lsp

import (
	"sort"
	"unicode/utf8"

	"github.com/dshills/endpointls/internal/uri"
)

// PositionConverter handles conversions between byte offsets and LSP
// positions. LSP uses 0-based line/column positions with UTF-16 code units
// for columns; the analysis core works in byte offsets.
type PositionConverter struct {
	content string
	// starts holds the byte offset of every line start.
	starts []int
}

// NewPositionConverter creates a new converter for the given content.
func NewPositionConverter(content string) *PositionConverter {
	pc := &PositionConverter{content: content, starts: []int{0}}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			pc.starts = append(pc.starts, i+1)
		}
	}
	return pc
}

// LineCount returns the number of lines.
func (pc *PositionConverter) LineCount() int {
	return len(pc.starts)
}

// line returns the content of a line without its terminator.
func (pc *PositionConverter) line(n int) string {
	start := pc.starts[n]
	end := len(pc.content)
	if n+1 < len(pc.starts) {
		end = pc.starts[n+1] - 1
	}
	if end > start && pc.content[end-1] == '\r' {
		end--
	}
	return pc.content[start:end]
}

// ByteOffsetToPosition converts a byte offset to an LSP Position.
// Offsets are clamped to the content.
func (pc *PositionConverter) ByteOffsetToPosition(offset int) Position {
	if offset <= 0 {
		return Position{}
	}
	if offset > len(pc.content) {
		offset = len(pc.content)
	}
	n := sort.Search(len(pc.starts), func(i int) bool { return pc.starts[i] > offset }) - 1
	text := pc.line(n)
	col := offset - pc.starts[n]
	if col > len(text) {
		col = len(text)
	}
	return Position{Line: n, Character: byteToUTF16Offset(text, col)}
}

// PositionToByteOffset converts an LSP Position to a byte offset.
func (pc *PositionConverter) PositionToByteOffset(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(pc.starts) {
		return len(pc.content)
	}
	return pc.starts[pos.Line] + utf16ToByteOffset(pc.line(pos.Line), pos.Character)
}

// RangeToByteOffsets converts an LSP Range to start and end byte offsets.
func (pc *PositionConverter) RangeToByteOffsets(rng Range) (start, end int) {
	return pc.PositionToByteOffset(rng.Start), pc.PositionToByteOffset(rng.End)
}

// SpanToRange converts a byte span to an LSP Range.
func (pc *PositionConverter) SpanToRange(s uri.Span) Range {
	return Range{
		Start: pc.ByteOffsetToPosition(s.Start),
		End:   pc.ByteOffsetToPosition(s.End),
	}
}

// --- UTF-16 conversion helpers ---

// byteToUTF16Offset converts a byte offset within a string to UTF-16 offset.
// An offset inside a multi-byte sequence counts the whole rune.
func byteToUTF16Offset(s string, byteOff int) int {
	n := 0
	for i, r := range s {
		if i >= byteOff {
			break
		}
		n += utf16Len(r)
	}
	return n
}

// utf16ToByteOffset converts a UTF-16 offset to byte offset within a string.
func utf16ToByteOffset(s string, utf16Off int) int {
	if utf16Off <= 0 {
		return 0
	}
	n := 0
	for i, r := range s {
		if n >= utf16Off {
			return i
		}
		n += utf16Len(r)
	}
	return len(s)
}

func utf16Len(r rune) int {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2 // Surrogate pair
	}
	return 1
}

// applyChange applies one content change event to text. A change without
// a range replaces the whole document.
func applyChange(text string, change TextDocumentContentChangeEvent) string {
	if change.Range == nil {
		return change.Text
	}
	start, end := NewPositionConverter(text).RangeToByteOffsets(*change.Range)
	if end < start {
		start, end = end, start
	}
	return text[:start] + change.Text + text[end:]
}
