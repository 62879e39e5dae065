package instance

import (
	"strings"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/uri"
)

// Build binds a token sequence to the catalog. It never fails: every
// mismatch becomes an unbound instance, so the tree is always complete.
// A nil lookup behaves like an empty catalog.
func Build(seq uri.Sequence, lookup catalog.Lookup) *Tree {
	b := &builder{tree: &Tree{seq: seq}}
	if lookup != nil {
		if s, ok := lookup.Component(seq.Component.Text); ok {
			b.tree.schema = s
		}
	}
	b.run()
	return b.tree
}

// Parse tokenizes text at document offset base and builds its tree.
func Parse(text string, base int, lookup catalog.Lookup) *Tree {
	return Build(uri.TokenizeAt(text, base), lookup)
}

type builder struct {
	tree *Tree

	// query state
	piece   int
	lastKey ID
}

func (b *builder) add(kind Kind, span uri.Span, parent ID) ID {
	id := ID(len(b.tree.nodes))
	b.tree.nodes = append(b.tree.nodes, Instance{
		ID:     id,
		Kind:   kind,
		Span:   span,
		Text:   b.tree.seq.Slice(span),
		Parent: parent,
		Peer:   None,
		Valid:  true,
	})
	if parent != None {
		b.tree.nodes[parent].Children = append(b.tree.nodes[parent].Children, id)
	}
	return id
}

func (b *builder) run() {
	seq := &b.tree.seq
	b.add(KindRoot, seq.Span(), None)
	b.lastKey = None

	toks := seq.Tokens
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch tok.Kind {
		case uri.TokenComponent:
			b.add(KindComponent, tok.Span, Root)
		case uri.TokenPath:
			// The path region runs to the last path token.
			j := i
			for j+1 < len(toks) && (toks[j+1].Kind == uri.TokenPath ||
				(toks[j+1].Kind == uri.TokenDelimiter && j+2 < len(toks) && toks[j+2].Kind == uri.TokenPath)) {
				j++
			}
			b.path(toks[i : j+1])
			i = j
		case uri.TokenKey:
			b.key(tok)
		case uri.TokenValue:
			b.value(tok)
		default:
			b.add(KindRaw, tok.Span, Root)
		}
	}
}

// pathPiece is a path segment or a separator inside the path region.
type pathPiece struct {
	span  uri.Span
	delim bool
}

func (b *builder) path(region []uri.Token) {
	pieces := b.splitPath(region)
	schema := b.tree.schema
	end := region[len(region)-1].Span.End

	pos := 0
	for _, p := range pieces {
		if p.delim {
			b.add(KindRaw, p.span, Root)
			continue
		}
		def := schema.PathParam(pos)
		if def != nil && def.Remainder {
			id := b.add(KindPath, uri.Span{Start: p.span.Start, End: end}, Root)
			b.tree.nodes[id].Def = def
			b.tree.nodes[id].Position = pos
			return
		}
		id := b.add(KindPath, p.span, Root)
		n := &b.tree.nodes[id]
		n.Def = def
		n.Position = pos
		n.Extra = schema != nil && def == nil
		pos++
	}
}

// splitPath flattens the path tokens into pieces. When the component
// syntax separates path parameters with ':' (jms:destinationType:destinationName)
// segments are split on ':' as well.
func (b *builder) splitPath(region []uri.Token) []pathPiece {
	colon := usesColonSeparator(b.tree.schema)
	var pieces []pathPiece
	for _, tok := range region {
		if tok.Kind == uri.TokenDelimiter {
			pieces = append(pieces, pathPiece{span: tok.Span, delim: true})
			continue
		}
		if !colon {
			pieces = append(pieces, pathPiece{span: tok.Span})
			continue
		}
		start := tok.Span.Start
		for k := 0; k < len(tok.Text); k++ {
			if tok.Text[k] == '\\' {
				k++
				continue
			}
			if tok.Text[k] != ':' {
				continue
			}
			at := tok.Span.Start + k
			pieces = append(pieces,
				pathPiece{span: uri.Span{Start: start, End: at}},
				pathPiece{span: uri.Span{Start: at, End: at + 1}, delim: true})
			start = at + 1
		}
		pieces = append(pieces, pathPiece{span: uri.Span{Start: start, End: tok.Span.End}})
	}
	return pieces
}

func usesColonSeparator(s *catalog.ComponentSchema) bool {
	if s == nil || len(s.PathParams) < 2 {
		return false
	}
	rest := strings.TrimPrefix(s.Syntax, s.ID+":")
	return strings.Contains(rest, ":")
}

func (b *builder) key(tok uri.Token) {
	id := b.add(KindQueryKey, tok.Span, Root)
	n := &b.tree.nodes[id]
	n.Position = b.piece
	n.Def = b.tree.schema.QueryParam(tok.Text)

	param := b.tree.seq.Query[b.piece]
	if !param.HasValue {
		b.piece++
		b.lastKey = None
		return
	}
	b.lastKey = id
}

func (b *builder) value(tok uri.Token) {
	id := b.add(KindQueryValue, tok.Span, Root)
	n := &b.tree.nodes[id]
	n.Position = b.piece
	if b.lastKey != None {
		key := &b.tree.nodes[b.lastKey]
		key.Peer = id
		n.Peer = b.lastKey
		n.Def = key.Def
	}
	if n.Def != nil {
		n.Valid, n.Problem = Validate(n.Def, n.Text)
	}
	b.piece++
	b.lastKey = None
}
