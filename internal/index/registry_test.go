package index

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"kr.dev/diff"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/extract"
	"github.com/dshills/endpointls/internal/uri"
)

func testLookup(t *testing.T) catalog.Lookup {
	t.Helper()
	l, err := catalog.LoadAll(context.Background(), catalog.Filter{}, catalog.Builtin())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	return l
}

const (
	producerDoc = `<routes>
  <route id="in">
    <from uri="timer:tick"/>
    <to uri="direct:process"/>
    <to uri="seda:process"/>
  </route>
</routes>`

	consumerDoc = `<routes>
  <route id="process">
    <from uri="direct:process?block=true"/>
    <to uri="log:done"/>
  </route>
</routes>`
)

func span(doc, sub string) uri.Span {
	i := strings.Index(doc, sub)
	return uri.Span{Start: i, End: i + len(sub)}
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	lookup := testLookup(t)
	r := NewRegistry()
	r.Put(Analyze("file:///b/producer.xml", 1, producerDoc, extract.XML, lookup))
	r.Put(Analyze("file:///a/consumer.xml", 1, consumerDoc, extract.XML, lookup))
	return r
}

// keyAt finds the key under offset the way the server's position lookups do.
func keyAt(r *Registry, docURI string, offset int) (Key, bool) {
	a, ok := r.Get(docURI)
	if !ok {
		return Key{}, false
	}
	ep, ok := a.At(offset)
	if !ok {
		return Key{}, false
	}
	return ep.Key()
}

func TestRegistryEndpointKey(t *testing.T) {
	r := newRegistry(t)
	off := strings.Index(producerDoc, "direct:process") + 8
	k, ok := keyAt(r, "file:///b/producer.xml", off)
	if !ok || k != (Key{Component: "direct", Name: "process"}) {
		t.Errorf("key = %v, %v", k, ok)
	}

	if _, ok := keyAt(r, "file:///b/producer.xml", strings.Index(producerDoc, "timer:tick")); ok {
		t.Error("timer endpoint has no reference key")
	}
	if _, ok := keyAt(r, "file:///missing.xml", 0); ok {
		t.Error("key on unknown document")
	}
}

func TestRegistryReferencesAndDefinitions(t *testing.T) {
	r := newRegistry(t)
	k := Key{Component: "direct", Name: "process"}

	want := []Location{
		{URI: "file:///a/consumer.xml", Span: span(consumerDoc, "direct:process?block=true")},
		{URI: "file:///b/producer.xml", Span: span(producerDoc, "direct:process")},
	}
	diff.Test(t, t.Errorf, r.References(k), want)
	diff.Test(t, t.Errorf, r.Definitions(k), want[:1])

	seda := r.References(Key{Component: "seda", Name: "process"})
	if len(seda) != 1 || seda[0].URI != "file:///b/producer.xml" {
		t.Errorf("seda references = %+v", seda)
	}
	if got := r.Definitions(Key{Component: "seda", Name: "process"}); len(got) != 0 {
		t.Errorf("seda definitions = %+v, want none", got)
	}
}

func TestRegistryDuplicateDefinitions(t *testing.T) {
	r := newRegistry(t)
	r.Put(Analyze("file:///c/again.xml", 1, consumerDoc, extract.XML, testLookup(t)))
	got := r.Definitions(Key{Component: "direct", Name: "process"})
	if len(got) != 2 || got[0].URI != "file:///a/consumer.xml" || got[1].URI != "file:///c/again.xml" {
		t.Errorf("Definitions = %+v", got)
	}
}

func TestRegistrySymbols(t *testing.T) {
	r := newRegistry(t)
	got := r.Symbols("file:///b/producer.xml")

	type sym struct {
		Name      string
		Kind      SymbolKind
		Container string
	}
	var names []sym
	for _, s := range got {
		names = append(names, sym{s.Name, s.Kind, s.Container})
	}
	want := []sym{
		{"in", SymbolRoute, ""},
		{"timer:tick", SymbolEndpoint, "in"},
		{"direct:process", SymbolEndpoint, "in"},
		{"seda:process", SymbolEndpoint, "in"},
	}
	diff.Test(t, t.Errorf, names, want)

	if r.Symbols("file:///missing.xml") != nil {
		t.Error("Symbols on unknown document")
	}
}

func TestRegistryPutVersionAndRemove(t *testing.T) {
	lookup := testLookup(t)
	r := NewRegistry()
	r.Put(Analyze("file:///x.xml", 3, consumerDoc, extract.XML, lookup))
	r.Put(Analyze("file:///x.xml", 2, producerDoc, extract.XML, lookup))

	a, ok := r.Get("file:///x.xml")
	if !ok || a.Version != 3 {
		t.Fatalf("Get = %+v, %v; want version 3 kept", a, ok)
	}

	r.Remove("file:///x.xml")
	if _, ok := r.Get("file:///x.xml"); ok || r.Len() != 0 {
		t.Error("document still present after Remove")
	}
}

func TestRegistryConcurrentReaders(t *testing.T) {
	lookup := testLookup(t)
	r := NewRegistry()
	k := Key{Component: "direct", Name: "process"}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for v := 1; v <= 20; v++ {
				r.Put(Analyze(fmt.Sprintf("file:///doc%d.xml", w), v, consumerDoc, extract.XML, lookup))
			}
		}(w)
	}
	for rd := 0; rd < 4; rd++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				for _, loc := range r.References(k) {
					if loc.Span.IsEmpty() {
						t.Errorf("empty reference span in %s", loc.URI)
					}
				}
			}
		}()
	}
	wg.Wait()

	if got := len(r.Definitions(k)); got != 4 {
		t.Errorf("Definitions = %d, want 4", got)
	}
}

func TestAnalyzeTreesUseDocumentOffsets(t *testing.T) {
	a := Analyze("file:///a.xml", 1, consumerDoc, extract.XML, testLookup(t))
	if len(a.Endpoints) != 2 || a.ID == "" {
		t.Fatalf("Analyze = %+v", a)
	}
	ep := a.Endpoints[0]
	if got, want := ep.Tree.Span(), span(consumerDoc, "direct:process?block=true"); got != want {
		t.Errorf("tree span = %v, want %v", got, want)
	}
	if _, ok := a.At(ep.Literal.Offset + 3); !ok {
		t.Error("At inside literal found nothing")
	}
}
