package catalog

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"kr.dev/diff"
)

func TestBuiltin(t *testing.T) {
	l, err := LoadAll(context.Background(), Filter{}, Builtin())
	if err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, l.ComponentIDs(), []string{"ahc", "direct", "file", "jms", "kafka", "log", "seda", "timer"})

	kafka, _ := l.Component("kafka")
	if p := kafka.PathParam(0); p == nil || p.Name != "topic" || !p.Required {
		t.Errorf("kafka path param = %+v", p)
	}
	if p := kafka.QueryParam("zookeeperHost"); p == nil || !p.Deprecated {
		t.Errorf("zookeeperHost = %+v", p)
	}
	direct, _ := l.Component("direct")
	if p := direct.PathParam(0); p == nil || !p.Reference {
		t.Errorf("direct path param = %+v", p)
	}
	timer, _ := l.Component("timer")
	if p := timer.QueryParam("delay"); p == nil || p.Type != TypeDuration {
		t.Errorf("timer delay = %+v", p)
	}
}

func TestFilter(t *testing.T) {
	f := Filter{Exclude: []string{"ahc*", "j?s"}}
	tests := []struct {
		id   string
		want bool
	}{
		{"ahc", false},
		{"ahc-ws", false},
		{"jms", false},
		{"jmsx", true},
		{"kafka", true},
	}
	for _, tt := range tests {
		if got := f.Allows(tt.id); got != tt.want {
			t.Errorf("Allows(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
	if !(Filter{}).Allows("anything") {
		t.Error("empty filter rejected a component")
	}
}

func TestLoadAllOverrides(t *testing.T) {
	first := SourceFunc(func(context.Context) ([]*ComponentSchema, error) {
		return []*ComponentSchema{NewComponentSchema("a", nil, nil), NewComponentSchema("b", nil, nil)}, nil
	})
	replacement := NewComponentSchema("a", nil, []ParamDef{{Name: "x"}})
	second := SourceFunc(func(context.Context) ([]*ComponentSchema, error) {
		return []*ComponentSchema{replacement}, nil
	})

	l, err := LoadAll(context.Background(), Filter{Exclude: []string{"b"}}, first, second)
	if err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, l.ComponentIDs(), []string{"a"})
	if got, _ := l.Component("a"); got != replacement {
		t.Error("later source did not replace component a")
	}
}

func TestPathSource(t *testing.T) {
	dir := t.TempDir()
	write := func(name, doc string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("b.json", `{"component":{"scheme":"b"}}`)
	write("a.json", `[{"component":{"scheme":"a"}},{"component":{"scheme":"a2"}}]`)
	write("notes.txt", `not a catalog`)

	schemas, err := NewPathSource(dir).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, s := range schemas {
		ids = append(ids, s.ID)
	}
	diff.Test(t, t.Errorf, ids, []string{"a", "a2", "b"})

	schemas, err = NewPathSource(filepath.Join(dir, "b.json")).Load(context.Background())
	if err != nil || len(schemas) != 1 {
		t.Errorf("file source = %v, %v", schemas, err)
	}

	_, err = NewPathSource(filepath.Join(dir, "missing")).Load(context.Background())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing path error = %v", err)
	}

	write("bad.json", `{`)
	_, err = NewPathSource(dir).Load(context.Background())
	var serr *SourceError
	if !errors.As(err, &serr) || !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("bad document error = %v", err)
	}
}
