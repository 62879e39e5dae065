package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/engine"
	"github.com/dshills/endpointls/internal/extract"
	"github.com/dshills/endpointls/internal/index"
)

// DiagnosticSource is the source attached to published diagnostics.
const DiagnosticSource = "endpointls"

// Options configures a Server.
type Options struct {
	Name    string
	Version string

	// Catalog supplies component schemas. It is started on initialize.
	Catalog *catalog.Provider
	// Engine carries completion and diagnostic settings. nil means defaults.
	Engine *engine.Engine
	// DisableDiagnostics stops publishing diagnostics.
	DisableDiagnostics bool

	// OnConfiguration receives workspace/didChangeConfiguration settings.
	OnConfiguration func(settings map[string]any)
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server is a language server for endpoint URIs in route documents.
type Server struct {
	opts Options
	log  commonlog.Logger

	catalog  *catalog.Provider
	engine   atomic.Pointer[engine.Engine]
	diagsOff atomic.Bool

	docs     *DocumentStore
	registry *index.Registry

	transport   *Transport
	handlers    map[string]handlerFunc
	initialized atomic.Bool
	shutdown    atomic.Bool
	progress    atomic.Bool

	problemsMu   sync.Mutex
	problemFiles map[DocumentURI]struct{}

	// analyses tracks background work so tests and shutdown can wait on it.
	analyses sync.WaitGroup
}

// NewServer creates a server. Call Serve to run it.
func NewServer(opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "endpointls"
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Preloaded(catalog.Empty)
	}
	s := &Server{
		opts:         opts,
		log:          commonlog.GetLogger("endpointls.lsp"),
		catalog:      opts.Catalog,
		docs:         NewDocumentStore(),
		registry:     index.NewRegistry(),
		problemFiles: make(map[DocumentURI]struct{}),
	}
	s.SetEngine(opts.Engine)
	s.SetDiagnosticsEnabled(!opts.DisableDiagnostics)

	s.handlers = map[string]handlerFunc{
		"initialize":                       s.initialize,
		"initialized":                      s.initializedNotification,
		"shutdown":                         s.shutdownRequest,
		"exit":                             s.exit,
		"textDocument/didOpen":             s.didOpen,
		"textDocument/didChange":           s.didChange,
		"textDocument/didClose":            s.didClose,
		"textDocument/didSave":             s.didSave,
		"textDocument/hover":               s.hover,
		"textDocument/completion":          s.completion,
		"completionItem/resolve":           s.completionResolve,
		"textDocument/documentSymbol":      s.documentSymbol,
		"textDocument/references":          s.references,
		"textDocument/definition":          s.definition,
		"workspace/didChangeConfiguration": s.didChangeConfiguration,
		"$/cancelRequest":                  s.ignore,
		"$/setTrace":                       s.ignore,
	}
	return s
}

// SetEngine replaces the completion and diagnostic settings.
func (s *Server) SetEngine(e *engine.Engine) {
	if e == nil {
		e = engine.New()
	}
	s.engine.Store(e)
}

// SetDiagnosticsEnabled turns diagnostic publishing on or off.
func (s *Server) SetDiagnosticsEnabled(enabled bool) {
	s.diagsOff.Store(!enabled)
}

// Registry returns the document index.
func (s *Server) Registry() *index.Registry {
	return s.registry
}

// ShutdownRequested reports whether the client sent shutdown before exit.
func (s *Server) ShutdownRequested() bool {
	return s.shutdown.Load()
}

// Serve runs the server over r and w until the client exits or the input
// ends.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer, c io.Closer) error {
	s.transport = NewTransport(r, w, c)
	err := s.transport.Serve(ctx, s)
	s.analyses.Wait()
	return err
}

// Handle implements Handler.
func (s *Server) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	h, ok := s.handlers[method]
	if !ok {
		if strings.HasPrefix(method, "$/") {
			return nil, nil
		}
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + method}
	}
	switch {
	case method == "initialize" || method == "exit":
	case !s.initialized.Load():
		return nil, ErrNotInitialized
	case s.shutdown.Load() && method != "shutdown":
		return nil, &RPCError{Code: CodeInvalidRequest, Message: "server is shutting down"}
	}
	return h(ctx, params)
}

func decode[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}
	return v, nil
}

func (s *Server) ignore(context.Context, json.RawMessage) (any, error) {
	return nil, nil
}

// --- Lifecycle ---

func (s *Server) initialize(_ context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[InitializeParams](raw)
	if err != nil {
		return nil, err
	}
	if params.Capabilities.Window != nil {
		s.progress.Store(params.Capabilities.Window.WorkDoneProgress)
	}
	client := ""
	if params.ClientInfo != nil {
		client = params.ClientInfo.Name
	}
	s.log.Info("initialize", "client", client, "root", string(params.RootURI))

	s.catalog.Start()
	s.initialized.Store(true)

	return InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindIncremental,
				Save:      true,
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{":", "?", "&", "="},
				ResolveProvider:   true,
			},
			HoverProvider:          true,
			DefinitionProvider:     true,
			ReferencesProvider:     true,
			DocumentSymbolProvider: true,
		},
		ServerInfo: &ServerInfo{Name: s.opts.Name, Version: s.opts.Version},
	}, nil
}

func (s *Server) initializedNotification(ctx context.Context, _ json.RawMessage) (any, error) {
	s.analyses.Add(1)
	go func() {
		defer s.analyses.Done()
		s.reportCatalogLoad(ctx)
	}()
	return nil, nil
}

// reportCatalogLoad shows work-done progress while the catalog loads and
// tells the user when loading fails.
func (s *Server) reportCatalogLoad(ctx context.Context) {
	var token ProgressToken
	select {
	case <-s.catalog.Done():
	default:
		if s.progress.Load() {
			token = ProgressToken(uuid.NewString())
			if err := s.transport.Call(ctx, "window/workDoneProgress/create", WorkDoneProgressCreateParams{Token: token}, nil); err != nil {
				s.log.Warning("progress unavailable", "error", err)
				token = ""
			}
		}
		if token != "" {
			s.notify(ctx, "$/progress", ProgressParams{Token: token, Value: WorkDoneProgressBegin{Kind: "begin", Title: "Loading component catalog"}})
		}
	}

	lookup, err := s.catalog.Await(ctx)
	msg := ""
	if err != nil {
		msg = "catalog unavailable: " + err.Error()
		s.log.Error("catalog load failed", "error", err)
		s.notify(ctx, "window/showMessage", ShowMessageParams{Type: MessageTypeError, Message: msg})
	} else {
		msg = fmt.Sprintf("%d components loaded", len(lookup.ComponentIDs()))
		s.log.Info("catalog loaded", "components", len(lookup.ComponentIDs()), "duration", s.catalog.LoadDuration().String())
	}
	if token != "" {
		s.notify(ctx, "$/progress", ProgressParams{Token: token, Value: WorkDoneProgressEnd{Kind: "end", Message: msg}})
	}
}

func (s *Server) shutdownRequest(context.Context, json.RawMessage) (any, error) {
	s.shutdown.Store(true)
	s.log.Info("shutdown")
	return nil, nil
}

func (s *Server) exit(context.Context, json.RawMessage) (any, error) {
	s.log.Info("exit", "clean", s.shutdown.Load())
	return nil, s.transport.Close()
}

func (s *Server) didChangeConfiguration(_ context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[DidChangeConfigurationParams](raw)
	if err != nil {
		return nil, err
	}
	if s.opts.OnConfiguration != nil && params.Settings != nil {
		settings := params.Settings
		if nested, ok := settings["endpointls"].(map[string]any); ok {
			settings = nested
		}
		s.opts.OnConfiguration(settings)
	}
	return nil, nil
}

// --- Document synchronization ---

func (s *Server) didOpen(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[DidOpenTextDocumentParams](raw)
	if err != nil {
		return nil, err
	}
	doc := s.docs.Open(params.TextDocument)
	s.log.Debug("didOpen", "uri", string(doc.URI), "version", doc.Version)
	s.analyzeAsync(ctx, doc)
	return nil, nil
}

func (s *Server) didChange(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[DidChangeTextDocumentParams](raw)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.Change(params.TextDocument, params.ContentChanges)
	if err != nil {
		return nil, fmt.Errorf("didChange %s: %w", params.TextDocument.URI, err)
	}
	s.analyzeAsync(ctx, doc)
	return nil, nil
}

func (s *Server) didSave(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[DidSaveTextDocumentParams](raw)
	if err != nil {
		return nil, err
	}
	if doc, ok := s.docs.Get(params.TextDocument.URI); ok {
		s.analyzeAsync(ctx, doc)
	}
	return nil, nil
}

func (s *Server) didClose(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[DidCloseTextDocumentParams](raw)
	if err != nil {
		return nil, err
	}
	uri := params.TextDocument.URI
	if err := s.docs.Close(uri); err != nil {
		return nil, fmt.Errorf("didClose %s: %w", uri, err)
	}
	s.registry.Remove(string(uri))

	s.problemsMu.Lock()
	_, had := s.problemFiles[uri]
	delete(s.problemFiles, uri)
	s.problemsMu.Unlock()
	if had {
		s.notify(ctx, "textDocument/publishDiagnostics", PublishDiagnosticsParams{URI: uri, Diagnostics: []Diagnostic{}})
	}
	return nil, nil
}

// analyzeAsync rebuilds a document once the catalog is available and
// publishes its diagnostics. Analysis never blocks the notification loop.
func (s *Server) analyzeAsync(ctx context.Context, doc Document) {
	s.analyses.Add(1)
	go func() {
		defer s.analyses.Done()
		a, err := catalog.Apply(ctx, s.catalog, func(l catalog.Lookup) *index.Analysis {
			return s.analyze(doc, l)
		})
		if err != nil {
			s.log.Warning("analysis skipped", "uri", string(doc.URI), "error", err)
			return
		}
		s.publish(ctx, doc, a)
	}()
}

func (s *Server) analyze(doc Document, l catalog.Lookup) *index.Analysis {
	a := index.Analyze(string(doc.URI), doc.Version, doc.Text, extract.For(string(doc.URI), doc.LanguageID), l)
	if cur, ok := s.docs.Get(doc.URI); ok && cur.Version == doc.Version {
		s.registry.Put(a)
	}
	return a
}

// current returns the analysis matching the document's text, building it
// when the stored one is stale.
func (s *Server) current(ctx context.Context, uri DocumentURI) (*index.Analysis, Document, catalog.Lookup, error) {
	doc, ok := s.docs.Get(uri)
	if !ok {
		return nil, Document{}, nil, ErrDocumentNotOpen
	}
	lookup, err := s.catalog.Await(ctx)
	if err != nil {
		return nil, doc, nil, err
	}
	if a, ok := s.registry.Get(string(uri)); ok && a.Version == doc.Version {
		return a, doc, lookup, nil
	}
	return s.analyze(doc, lookup), doc, lookup, nil
}

func (s *Server) publish(ctx context.Context, doc Document, a *index.Analysis) {
	if s.diagsOff.Load() {
		return
	}
	if cur, ok := s.docs.Get(doc.URI); !ok || cur.Version != doc.Version {
		return
	}

	pc := NewPositionConverter(doc.Text)
	eng := s.engine.Load()
	diags := []Diagnostic{}
	for i := range a.Endpoints {
		for _, d := range eng.Diagnose(a.Endpoints[i].Tree) {
			diags = append(diags, toDiagnostic(pc, d))
		}
	}

	s.problemsMu.Lock()
	if len(diags) > 0 {
		s.problemFiles[doc.URI] = struct{}{}
	} else {
		delete(s.problemFiles, doc.URI)
	}
	s.problemsMu.Unlock()

	s.log.Debug("publish diagnostics", "uri", string(doc.URI), "analysis", a.ID, "count", len(diags))
	s.notify(ctx, "textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     doc.Version,
		Diagnostics: diags,
	})
}

func (s *Server) notify(ctx context.Context, method string, params any) {
	if err := s.transport.Notify(ctx, method, params); err != nil && !s.transport.IsClosed() {
		s.log.Error("notify", "method", method, "error", err)
	}
}
