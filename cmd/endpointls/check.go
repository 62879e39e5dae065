package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/engine"
	"github.com/dshills/endpointls/internal/extract"
	"github.com/dshills/endpointls/internal/index"
	"github.com/dshills/endpointls/internal/lsp"
)

func dumpCatalog(ctx context.Context, p *catalog.Provider) int {
	l, err := p.Await(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	doc, err := catalog.EncodeCatalogJSON(l)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	os.Stdout.Write(doc)
	return 0
}

// checkFile prints the diagnostics of one file. It exits 2 when the file
// has problems.
func checkFile(ctx context.Context, p *catalog.Provider, eng *engine.Engine, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	l, err := p.Await(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if n := check(os.Stdout, path, string(data), l, eng); n > 0 {
		return 2
	}
	return 0
}

// check writes one line per diagnostic as path:line:column: severity:
// message [kind], with 1-based lines and byte columns, and returns the count.
func check(w io.Writer, path, text string, l catalog.Lookup, eng *engine.Engine) int {
	a := index.Analyze(string(lsp.FilePathToURI(path)), 0, text, extract.For(path, ""), l)

	n := 0
	for _, ep := range a.Endpoints {
		for _, d := range eng.Diagnose(ep.Tree) {
			line, col := lineColumn(text, d.Span.Start)
			fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n", path, line, col, d.Severity, d.Message, d.Kind)
			n++
		}
	}
	return n
}

// lineColumn returns the 1-based line and byte column of offset.
func lineColumn(text string, offset int) (int, int) {
	offset = min(max(offset, 0), len(text))
	before := text[:offset]
	line := strings.Count(before, "\n") + 1
	return line, offset - (strings.LastIndexByte(before, '\n') + 1) + 1
}
