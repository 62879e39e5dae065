package catalog

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/match"
)

//go:embed builtin/*.json
var builtinFS embed.FS

// Source produces component schemas.
type Source interface {
	Load(ctx context.Context) ([]*ComponentSchema, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]*ComponentSchema, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context) ([]*ComponentSchema, error) {
	return f(ctx)
}

// JSONSource parses catalog documents held in memory.
type JSONSource struct {
	Name string
	Docs [][]byte
}

// Load implements Source.
func (s *JSONSource) Load(_ context.Context) ([]*ComponentSchema, error) {
	var out []*ComponentSchema
	for _, doc := range s.Docs {
		schemas, err := ParseCatalogJSON(doc)
		if err != nil {
			return nil, &SourceError{Source: s.Name, Err: err}
		}
		out = append(out, schemas...)
	}
	return out, nil
}

// Builtin returns the source for the catalog shipped with the binary.
func Builtin() Source {
	return &fsSource{name: "builtin", fsys: builtinFS, dir: "builtin"}
}

// NewPathSource reads a JSON catalog file, or every *.json file of a
// directory in lexical order.
func NewPathSource(path string) Source {
	return SourceFunc(func(ctx context.Context) ([]*ComponentSchema, error) {
		info, err := os.Stat(path)
		if err != nil {
			return nil, &SourceError{Source: path, Err: err}
		}
		if info.IsDir() {
			return (&fsSource{name: path, fsys: os.DirFS(path), dir: "."}).Load(ctx)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &SourceError{Source: path, Err: err}
		}
		return (&JSONSource{Name: path, Docs: [][]byte{data}}).Load(ctx)
	})
}

type fsSource struct {
	name string
	fsys fs.FS
	dir  string
}

func (s *fsSource) Load(ctx context.Context) ([]*ComponentSchema, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, &SourceError{Source: s.name, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	src := &JSONSource{Name: s.name}
	for _, n := range names {
		data, err := fs.ReadFile(s.fsys, filepath.ToSlash(filepath.Join(s.dir, n)))
		if err != nil {
			return nil, &SourceError{Source: s.name + "/" + n, Err: err}
		}
		src.Docs = append(src.Docs, data)
	}
	return src.Load(ctx)
}

// Filter drops components whose id matches any exclude glob (* and ?).
type Filter struct {
	Exclude []string
}

// Allows reports whether the component id passes the filter.
func (f Filter) Allows(id string) bool {
	for _, pattern := range f.Exclude {
		if match.Match(id, pattern) {
			return false
		}
	}
	return true
}

// LoadAll loads every source in order into one catalog. A component defined
// by a later source replaces an earlier definition with the same id.
func LoadAll(ctx context.Context, filter Filter, sources ...Source) (*Static, error) {
	byID := make(map[string]*ComponentSchema)
	for _, src := range sources {
		schemas, err := src.Load(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range schemas {
			if filter.Allows(s.ID) {
				byID[s.ID] = s
			}
		}
	}

	all := make([]*ComponentSchema, 0, len(byID))
	for _, s := range byID {
		all = append(all, s)
	}
	return NewStatic(all...), nil
}
