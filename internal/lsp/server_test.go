package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"kr.dev/diff"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/engine"
)

var (
	builtinOnce sync.Once
	builtin     catalog.Lookup
	builtinErr  error
)

func builtinCatalog(t *testing.T) catalog.Lookup {
	t.Helper()
	builtinOnce.Do(func() {
		builtin, builtinErr = catalog.LoadAll(context.Background(), catalog.Filter{}, catalog.Builtin())
	})
	if builtinErr != nil {
		t.Fatalf("load builtin catalog: %v", builtinErr)
	}
	return builtin
}

type notification struct {
	method string
	params json.RawMessage
}

// testClient drives a Server through a client-side Transport.
type testClient struct {
	t      *testing.T
	ctx    context.Context
	srv    *Server
	tr     *Transport
	notes  chan notification
	served chan error
}

func newTestClient(t *testing.T, opts Options) *testClient {
	t.Helper()
	if opts.Catalog == nil {
		opts.Catalog = catalog.Preloaded(builtinCatalog(t))
	}
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	c := &testClient{
		t:      t,
		ctx:    ctx,
		srv:    NewServer(opts),
		notes:  make(chan notification, 64),
		served: make(chan error, 1),
	}
	c.tr = NewTransport(s2cR, c2sW, s2cR)

	go func() { c.served <- c.srv.Serve(ctx, c2sR, s2cW, c2sR) }()
	go c.tr.Serve(ctx, HandlerFunc(func(_ context.Context, method string, params json.RawMessage) (any, error) {
		if method == "window/workDoneProgress/create" {
			return nil, nil
		}
		c.notes <- notification{method: method, params: params}
		return nil, nil
	}))

	t.Cleanup(func() {
		cancel()
		c.tr.Close()
		<-c.served
	})
	return c
}

func (c *testClient) call(method string, params, result any) error {
	return c.tr.Call(c.ctx, method, params, result)
}

func (c *testClient) notify(method string, params any) {
	c.t.Helper()
	if err := c.tr.Notify(c.ctx, method, params); err != nil {
		c.t.Fatalf("notify %s: %v", method, err)
	}
}

func (c *testClient) initialize() {
	c.t.Helper()
	var res InitializeResult
	params := map[string]any{"processId": 1, "capabilities": map[string]any{}}
	if err := c.call("initialize", params, &res); err != nil {
		c.t.Fatalf("initialize: %v", err)
	}
	c.notify("initialized", struct{}{})
}

func (c *testClient) open(uri DocumentURI, lang, text string) {
	c.t.Helper()
	c.notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: lang, Version: 1, Text: text},
	})
}

// diagnostics waits for the next diagnostics published for uri.
func (c *testClient) diagnostics(uri DocumentURI) PublishDiagnosticsParams {
	c.t.Helper()
	for {
		select {
		case n := <-c.notes:
			if n.method != "textDocument/publishDiagnostics" {
				continue
			}
			var p PublishDiagnosticsParams
			if err := json.Unmarshal(n.params, &p); err != nil {
				c.t.Fatalf("decode diagnostics: %v", err)
			}
			if p.URI == uri {
				return p
			}
		case <-c.ctx.Done():
			c.t.Fatalf("no diagnostics for %s", uri)
		}
	}
}

// indexed waits until every uri has an analysis in the registry.
func (c *testClient) indexed(uris ...DocumentURI) {
	c.t.Helper()
	for _, u := range uris {
		for {
			if _, ok := c.srv.Registry().Get(string(u)); ok {
				break
			}
			select {
			case <-c.ctx.Done():
				c.t.Fatalf("%s never indexed", u)
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
}

// sync round-trips a request so every earlier notification has been
// handled by the server.
func (c *testClient) sync() {
	c.t.Helper()
	if err := c.call("completionItem/resolve", CompletionItem{Label: "sync"}, nil); err != nil {
		c.t.Fatalf("sync: %v", err)
	}
}

// at returns the position of the first occurrence of marker in text,
// shifted by delta bytes.
func at(text, marker string, delta int) Position {
	return NewPositionConverter(text).ByteOffsetToPosition(strings.Index(text, marker) + delta)
}

func positionParams(uri DocumentURI, pos Position) TextDocumentPositionParams {
	return TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}
}

const routeA = `<routes>
  <route id="orders">
    <from uri="direct:start"/>
    <to uri="kafka:orders?brokers=localhost:9092&amp;brokrs=x"/>
  </route>
</routes>
`

const routeB = `<route id="ticker">
  <from uri="timer:tick?period=1000"/>
  <to uri="direct:start"/>
</route>
`

func TestServer_RequiresInitialize(t *testing.T) {
	c := newTestClient(t, Options{})

	err := c.call("textDocument/hover", HoverParams{}, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeServerNotInitialized {
		t.Errorf("hover before initialize: %v, want code %d", err, CodeServerNotInitialized)
	}
}

func TestServer_Initialize(t *testing.T) {
	c := newTestClient(t, Options{Version: "1.2.3"})

	var res InitializeResult
	if err := c.call("initialize", map[string]any{"capabilities": map[string]any{}}, &res); err != nil {
		t.Fatal(err)
	}
	caps := res.Capabilities
	if !caps.HoverProvider || !caps.DefinitionProvider || !caps.ReferencesProvider || !caps.DocumentSymbolProvider {
		t.Errorf("capabilities = %+v", caps)
	}
	if caps.TextDocumentSync == nil || caps.TextDocumentSync.Change != TextDocumentSyncKindIncremental {
		t.Errorf("textDocumentSync = %+v", caps.TextDocumentSync)
	}
	if caps.CompletionProvider == nil || !caps.CompletionProvider.ResolveProvider {
		t.Errorf("completionProvider = %+v", caps.CompletionProvider)
	}
	diff.Test(t, t.Errorf, res.ServerInfo, &ServerInfo{Name: "endpointls", Version: "1.2.3"})
}

func TestServer_UnknownMethod(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	err := c.call("textDocument/formatting", map[string]any{}, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeMethodNotFound {
		t.Errorf("error = %v, want method not found", err)
	}
}

func TestServer_PublishDiagnostics(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	const uri = "file:///a.xml"
	c.open(uri, "xml", routeA)
	got := c.diagnostics(uri)

	if len(got.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v, want one", got.Diagnostics)
	}
	d := got.Diagnostics[0]
	if d.Code != string(engine.UnknownParameter) || d.Source != DiagnosticSource || d.Severity != DiagnosticSeverityError {
		t.Errorf("diagnostic = %+v", d)
	}
	want := Range{Start: at(routeA, "brokrs", 0), End: at(routeA, "brokrs", len("brokrs"))}
	diff.Test(t, t.Errorf, d.Range, want)
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
}

func TestServer_UnknownComponent(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	const uri = "file:///bad.xml"
	text := `<route><to uri="unknown:foo"/></route>`
	c.open(uri, "xml", text)
	got := c.diagnostics(uri)

	if len(got.Diagnostics) != 1 || got.Diagnostics[0].Code != string(engine.UnresolvedComponent) {
		t.Fatalf("diagnostics = %+v", got.Diagnostics)
	}
	want := Range{Start: at(text, "unknown", 0), End: at(text, "unknown", len("unknown"))}
	diff.Test(t, t.Errorf, got.Diagnostics[0].Range, want)
}

func TestServer_DiagnosticsDisabled(t *testing.T) {
	c := newTestClient(t, Options{DisableDiagnostics: true})
	c.initialize()

	c.open("file:///a.xml", "xml", routeA)
	c.sync()
	c.srv.analyses.Wait()
	for {
		select {
		case n := <-c.notes:
			if n.method == "textDocument/publishDiagnostics" {
				t.Fatalf("published diagnostics while disabled: %s", n.params)
			}
		default:
			return
		}
	}
}

func TestServer_DidChangeRepublishes(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	const uri = "file:///a.xml"
	c.open(uri, "xml", routeA)
	if got := c.diagnostics(uri); len(got.Diagnostics) != 1 {
		t.Fatalf("initial diagnostics = %+v", got.Diagnostics)
	}

	from := at(routeA, "brokrs", 0)
	to := at(routeA, "brokrs", len("brokrs"))
	c.notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{TextDocumentIdentifier: TextDocumentIdentifier{URI: uri}, Version: 2},
		ContentChanges: []TextDocumentContentChangeEvent{
			{Range: &Range{Start: from, End: to}, Text: "groupId"},
		},
	})
	got := c.diagnostics(uri)
	if got.Version != 2 || len(got.Diagnostics) != 0 {
		t.Errorf("after fix = %+v", got)
	}
}

func TestServer_Hover(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	const uri = "file:///a.xml"
	c.open(uri, "xml", routeA)

	var got Hover
	params := HoverParams{TextDocumentPositionParams: positionParams(uri, at(routeA, "brokers", 3))}
	if err := c.call("textDocument/hover", params, &got); err != nil {
		t.Fatal(err)
	}
	if got.Contents.Kind != MarkupKindMarkdown {
		t.Errorf("kind = %q", got.Contents.Kind)
	}
	if !strings.HasPrefix(got.Contents.Value, "URL of the Kafka brokers to use.") {
		t.Errorf("contents = %q", got.Contents.Value)
	}
	want := &Range{Start: at(routeA, "brokers", 0), End: at(routeA, "brokers", len("brokers"))}
	diff.Test(t, t.Errorf, got.Range, want)
}

func TestServer_HoverOutsideEndpoint(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	const uri = "file:///a.xml"
	c.open(uri, "xml", routeA)

	var got *Hover
	params := HoverParams{TextDocumentPositionParams: positionParams(uri, at(routeA, "<routes>", 2))}
	if err := c.call("textDocument/hover", params, &got); err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("hover = %+v, want null", got)
	}
}

func TestServer_Completion(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	const uri = "file:///c.xml"
	text := `<route><to uri="kafka:orders?"/></route>`
	c.open(uri, "xml", text)

	var got CompletionList
	cursor := at(text, "?", 1)
	params := CompletionParams{TextDocumentPositionParams: positionParams(uri, cursor)}
	if err := c.call("textDocument/completion", params, &got); err != nil {
		t.Fatal(err)
	}

	var labels []string
	for _, item := range got.Items {
		labels = append(labels, item.Label)
	}
	want := []string{
		"autoCommitEnable", "autoOffsetReset", "brokers", "clientId",
		"consumersCount", "groupId", "pollTimeoutMs", "zookeeperHost",
	}
	diff.Test(t, t.Errorf, labels, want)

	first := got.Items[0]
	if first.Kind != CompletionItemKindProperty || first.SortText != "0000" {
		t.Errorf("first item = %+v", first)
	}
	diff.Test(t, t.Errorf, first.TextEdit, &TextEdit{Range: Range{Start: cursor, End: cursor}, NewText: "autoCommitEnable=true"})

	last := got.Items[len(got.Items)-1]
	if !last.Deprecated {
		t.Errorf("zookeeperHost not deprecated: %+v", last)
	}
	diff.Test(t, t.Errorf, last.Tags, []CompletionItemTag{CompletionItemTagDeprecated})
}

func TestServer_CompletionRespectsMaxResults(t *testing.T) {
	c := newTestClient(t, Options{Engine: engine.New(engine.WithMaxResults(2))})
	c.initialize()

	const uri = "file:///c.xml"
	text := `<route><to uri="kafka:orders?"/></route>`
	c.open(uri, "xml", text)

	var got CompletionList
	params := CompletionParams{TextDocumentPositionParams: positionParams(uri, at(text, "?", 1))}
	if err := c.call("textDocument/completion", params, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 2 {
		t.Errorf("items = %d, want 2", len(got.Items))
	}
}

func TestServer_CompletionResolve(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	in := CompletionItem{Label: "brokers", Kind: CompletionItemKindProperty, SortText: "0002"}
	var got CompletionItem
	if err := c.call("completionItem/resolve", in, &got); err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, got, in)
}

func TestServer_ReferencesAndDefinition(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	const a, b = DocumentURI("file:///a.xml"), DocumentURI("file:///b.xml")
	c.open(a, "xml", routeA)
	c.open(b, "xml", routeB)

	literal := func(text, lit string) Range {
		return Range{Start: at(text, lit, 0), End: at(text, lit, len(lit))}
	}
	decl := Location{URI: a, Range: literal(routeA, "direct:start")}
	use := Location{URI: b, Range: literal(routeB, "direct:start")}
	c.indexed(a, b)

	cursor := positionParams(b, at(routeB, "direct:start", 8))

	var refs []Location
	params := ReferenceParams{TextDocumentPositionParams: cursor, Context: ReferenceContext{IncludeDeclaration: true}}
	if err := c.call("textDocument/references", params, &refs); err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, refs, []Location{decl, use})

	params.Context.IncludeDeclaration = false
	refs = nil
	if err := c.call("textDocument/references", params, &refs); err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, refs, []Location{use})

	var defs []Location
	if err := c.call("textDocument/definition", DefinitionParams{TextDocumentPositionParams: cursor}, &defs); err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, defs, []Location{decl})
}

func TestServer_DocumentSymbol(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	const uri = DocumentURI("file:///b.xml")
	c.open(uri, "xml", routeB)

	var got []SymbolInformation
	params := DocumentSymbolParams{TextDocument: TextDocumentIdentifier{URI: uri}}
	if err := c.call("textDocument/documentSymbol", params, &got); err != nil {
		t.Fatal(err)
	}

	type entry struct {
		Name      string
		Kind      SymbolKind
		Container string
	}
	var entries []entry
	for _, s := range got {
		entries = append(entries, entry{s.Name, s.Kind, s.ContainerName})
	}
	want := []entry{
		{"ticker", SymbolKindModule, ""},
		{"timer:tick?period=1000", SymbolKindMethod, "ticker"},
		{"direct:start", SymbolKindString, "ticker"},
	}
	diff.Test(t, t.Errorf, entries, want)
}

func TestServer_DidCloseClearsDiagnostics(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	const uri = "file:///a.xml"
	c.open(uri, "xml", routeA)
	if got := c.diagnostics(uri); len(got.Diagnostics) == 0 {
		t.Fatal("expected diagnostics")
	}

	c.notify("textDocument/didClose", DidCloseTextDocumentParams{TextDocument: TextDocumentIdentifier{URI: uri}})
	got := c.diagnostics(uri)
	if len(got.Diagnostics) != 0 {
		t.Errorf("after close = %+v, want empty", got.Diagnostics)
	}
	if c.srv.Registry().Len() != 0 {
		t.Errorf("registry still holds %d documents", c.srv.Registry().Len())
	}
}

func TestServer_DidChangeConfiguration(t *testing.T) {
	got := make(chan map[string]any, 1)
	c := newTestClient(t, Options{OnConfiguration: func(s map[string]any) { got <- s }})
	c.initialize()

	c.notify("workspace/didChangeConfiguration", map[string]any{
		"settings": map[string]any{"endpointls": map[string]any{"completion": map[string]any{"maxResults": 5.0}}},
	})
	select {
	case s := <-got:
		diff.Test(t, t.Errorf, s, map[string]any{"completion": map[string]any{"maxResults": 5.0}})
	case <-c.ctx.Done():
		t.Fatal("configuration not delivered")
	}
}

func TestServer_ShutdownExit(t *testing.T) {
	c := newTestClient(t, Options{})
	c.initialize()

	if err := c.call("shutdown", nil, nil); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	err := c.call("textDocument/hover", HoverParams{}, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInvalidRequest {
		t.Errorf("request after shutdown: %v", err)
	}

	c.notify("exit", nil)
	select {
	case err := <-c.served:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
		c.served <- nil
	case <-c.ctx.Done():
		t.Fatal("server did not exit")
	}
	if !c.srv.ShutdownRequested() {
		t.Error("ShutdownRequested() = false")
	}
}
