package extract

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// XML extracts literals from uri attributes of Camel XML route elements.
var XML Extractor = ExtractorFunc(extractXML)

var (
	// Attribute names must follow whitespace, so data-uri is not uri.
	uriAttr = regexp.MustCompile(`(?i)\suri\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	idAttr  = regexp.MustCompile(`(?i)\sid\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// extractXML walks the token stream of the document. The tokenizer is
// lenient about malformed markup and its raw token bytes add up to the
// input, so the running length of raw tokens is the document offset.
func extractXML(text string) Extraction {
	var out Extraction
	z := html.NewTokenizer(strings.NewReader(blankCDATA(text)))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a read error; either way the scan is over.
			return out
		}
		// TagName rewrites the token buffer in place.
		raw := bytes.Clone(z.Raw())
		start := offset
		offset += len(raw)

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, _ := z.TagName()
		tag := localName(name)

		if tag == "route" {
			if id, ok := attrValue(idAttr, raw); ok {
				out.Routes = append(out.Routes, Route{ID: id.text, Offset: start + id.offset})
			}
			continue
		}
		role, ok := roleOf(tag)
		if !ok {
			continue
		}
		if v, ok := attrValue(uriAttr, raw); ok {
			out.Literals = append(out.Literals, Literal{
				Text:    v.text,
				Offset:  start + v.offset,
				Role:    role,
				Element: tag,
			})
		}
	}
}

// blankCDATA replaces CDATA sections with spaces of the same length. The
// tokenizer does not know CDATA outside foreign content and would end the
// section at its first '>', exposing any markup inside it.
func blankCDATA(text string) string {
	i := strings.Index(text, cdataOpen)
	if i < 0 {
		return text
	}
	b := []byte(text)
	for i >= 0 {
		end := len(b)
		if j := bytes.Index(b[i+len(cdataOpen):], []byte(cdataClose)); j >= 0 {
			end = i + len(cdataOpen) + j + len(cdataClose)
		}
		for k := i; k < end; k++ {
			if b[k] != '\n' {
				b[k] = ' '
			}
		}
		next := bytes.Index(b[end:], []byte(cdataOpen))
		if next < 0 {
			break
		}
		i = end + next
	}
	return string(b)
}

// localName strips a namespace prefix such as camel:from.
func localName(name []byte) string {
	if i := bytes.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	return string(name)
}

type attr struct {
	text   string
	offset int
}

// attrValue finds an attribute in the raw tag bytes, returning its value
// exactly as written and its offset within raw.
func attrValue(re *regexp.Regexp, raw []byte) (attr, bool) {
	m := re.FindSubmatchIndex(raw)
	if m == nil {
		return attr{}, false
	}
	for g := 1; g <= 2; g++ {
		if s, e := m[2*g], m[2*g+1]; s >= 0 {
			return attr{text: string(raw[s:e]), offset: s}, true
		}
	}
	return attr{}, false
}
