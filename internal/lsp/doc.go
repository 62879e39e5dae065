// Package lsp serves endpoint URI tooling to editors over the Language
// Server Protocol.
//
// The server speaks JSON-RPC 2.0 with Content-Length framing on a byte
// stream, normally stdin and stdout. It tracks open route documents, finds
// the endpoint URI literals in them and answers hover, completion,
// document symbol, references and definition requests. Diagnostics are
// published after every change.
//
// # Architecture
//
//   - Transport: JSON-RPC framing, request dispatch and server-to-client calls
//   - DocumentStore: text of open documents with incremental changes applied
//   - PositionConverter: LSP line/UTF-16 positions to byte offsets and back
//   - Server: method table wiring documents to the analysis packages
//
// # Quick Start
//
//	srv := lsp.NewServer(lsp.Options{
//	    Version: version,
//	    Catalog: catalog.NewProvider(load),
//	})
//	if err := srv.Serve(ctx, os.Stdin, os.Stdout, os.Stdin); err != nil {
//	    log.Fatal(err)
//	}
//
// # Concurrency
//
// Requests run concurrently. Notifications run in arrival order, so text
// changes apply in sequence. Document analysis happens in the background
// once the catalog is loaded; a result is published only if the document
// is still at the analyzed version.
package lsp
