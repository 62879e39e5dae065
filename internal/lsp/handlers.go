package lsp

import (
	"context"
	"encoding/json"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/engine"
	"github.com/dshills/endpointls/internal/extract"
	"github.com/dshills/endpointls/internal/index"
)

// position resolves a request position to the endpoint under it.
type position struct {
	doc      Document
	pc       *PositionConverter
	analysis *index.Analysis
	offset   int
	endpoint *index.Endpoint
	lookup   catalog.Lookup
}

// locate returns false when the document is unknown, the catalog is
// unavailable or no endpoint is under the cursor. Those cases answer with
// an empty result rather than an error.
func (s *Server) locate(ctx context.Context, p TextDocumentPositionParams) (position, bool) {
	a, doc, lookup, err := s.current(ctx, p.TextDocument.URI)
	if err != nil {
		s.log.Debug("no analysis", "uri", string(p.TextDocument.URI), "error", err)
		return position{}, false
	}
	pc := NewPositionConverter(doc.Text)
	pos := position{doc: doc, pc: pc, analysis: a, lookup: lookup, offset: pc.PositionToByteOffset(p.Position)}
	ep, ok := a.At(pos.offset)
	if !ok {
		return pos, false
	}
	pos.endpoint = ep
	return pos, true
}

func (s *Server) hover(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[HoverParams](raw)
	if err != nil {
		return nil, err
	}
	pos, ok := s.locate(ctx, params.TextDocumentPositionParams)
	if !ok {
		return nil, nil
	}
	info := s.engine.Load().Hover(pos.endpoint.Tree, pos.offset)
	if info == nil {
		return nil, nil
	}
	rng := pos.pc.SpanToRange(info.Span)
	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: info.Markdown()},
		Range:    &rng,
	}, nil
}

func (s *Server) completion(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CompletionParams](raw)
	if err != nil {
		return nil, err
	}
	list := CompletionList{Items: []CompletionItem{}}
	pos, ok := s.locate(ctx, params.TextDocumentPositionParams)
	if !ok {
		return list, nil
	}
	for _, c := range s.engine.Load().Complete(pos.endpoint.Tree, pos.offset, pos.lookup) {
		list.Items = append(list.Items, toCompletionItem(pos.pc, c))
	}
	return list, nil
}

func (s *Server) completionResolve(_ context.Context, raw json.RawMessage) (any, error) {
	return decode[CompletionItem](raw)
}

func (s *Server) documentSymbol(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[DocumentSymbolParams](raw)
	if err != nil {
		return nil, err
	}
	out := []SymbolInformation{}
	_, doc, _, err := s.current(ctx, params.TextDocument.URI)
	if err != nil {
		return out, nil
	}
	pc := NewPositionConverter(doc.Text)
	for _, sym := range s.registry.Symbols(string(doc.URI)) {
		out = append(out, SymbolInformation{
			Name:          sym.Name,
			Kind:          toSymbolKind(sym),
			Location:      Location{URI: doc.URI, Range: pc.SpanToRange(sym.Span)},
			ContainerName: sym.Container,
		})
	}
	return out, nil
}

func (s *Server) references(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[ReferenceParams](raw)
	if err != nil {
		return nil, err
	}
	out := []Location{}
	key, ok := s.keyAt(ctx, params.TextDocumentPositionParams)
	if !ok {
		return out, nil
	}

	var decl map[index.Location]bool
	if !params.Context.IncludeDeclaration {
		decl = make(map[index.Location]bool)
		for _, loc := range s.registry.Definitions(key) {
			decl[loc] = true
		}
	}
	for _, loc := range s.registry.References(key) {
		if decl[loc] {
			continue
		}
		if l, ok := s.toLocation(loc); ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Server) definition(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[DefinitionParams](raw)
	if err != nil {
		return nil, err
	}
	out := []Location{}
	key, ok := s.keyAt(ctx, params.TextDocumentPositionParams)
	if !ok {
		return out, nil
	}
	for _, loc := range s.registry.Definitions(key) {
		if l, ok := s.toLocation(loc); ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Server) keyAt(ctx context.Context, p TextDocumentPositionParams) (index.Key, bool) {
	pos, ok := s.locate(ctx, p)
	if !ok {
		return index.Key{}, false
	}
	return pos.endpoint.Key()
}

// toLocation converts an index location using the text of its document.
func (s *Server) toLocation(loc index.Location) (Location, bool) {
	doc, ok := s.docs.Get(DocumentURI(loc.URI))
	if !ok {
		return Location{}, false
	}
	return Location{URI: doc.URI, Range: NewPositionConverter(doc.Text).SpanToRange(loc.Span)}, true
}

// --- Conversions ---

var completionKinds = map[engine.CandidateKind]CompletionItemKind{
	engine.CandidateComponent: CompletionItemKindModule,
	engine.CandidatePath:      CompletionItemKindReference,
	engine.CandidateParameter: CompletionItemKindProperty,
	engine.CandidateValue:     CompletionItemKindValue,
}

func toCompletionItem(pc *PositionConverter, c engine.Candidate) CompletionItem {
	item := CompletionItem{
		Label:      c.Label,
		Kind:       completionKinds[c.Kind],
		Detail:     c.Kind.String(),
		Deprecated: c.Deprecated,
		SortText:   c.SortText,
		FilterText: c.InsertText,
		TextEdit:   &TextEdit{Range: pc.SpanToRange(c.Replace), NewText: c.InsertText},
	}
	if c.Documentation != "" {
		item.Documentation = &MarkupContent{Kind: MarkupKindMarkdown, Value: c.Documentation}
	}
	if c.Deprecated {
		item.Tags = []CompletionItemTag{CompletionItemTagDeprecated}
	}
	return item
}

func toDiagnostic(pc *PositionConverter, d engine.Diagnostic) Diagnostic {
	out := Diagnostic{
		Range:    pc.SpanToRange(d.Span),
		Severity: DiagnosticSeverityError,
		Code:     string(d.Kind),
		Source:   DiagnosticSource,
		Message:  d.Message,
	}
	if d.Severity == engine.SeverityWarning {
		out.Severity = DiagnosticSeverityWarning
	}
	if d.Kind == engine.Deprecated {
		out.Tags = []DiagnosticTag{DiagnosticTagDeprecated}
	}
	return out
}

func toSymbolKind(sym index.Symbol) SymbolKind {
	switch {
	case sym.Kind == index.SymbolRoute:
		return SymbolKindModule
	case sym.Role == extract.RoleConsumer:
		return SymbolKindMethod
	default:
		return SymbolKindString
	}
}
