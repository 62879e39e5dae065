package layer

import (
	"testing"

	"kr.dev/diff"
)

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name     string
		dst      map[string]any
		src      map[string]any
		expected map[string]any
	}{
		{
			name:     "nil dst",
			src:      map[string]any{"a": 1},
			expected: map[string]any{"a": 1},
		},
		{
			name:     "nil src",
			dst:      map[string]any{"a": 1},
			expected: map[string]any{"a": 1},
		},
		{
			name:     "src overrides dst",
			dst:      map[string]any{"a": 1},
			src:      map[string]any{"a": 2},
			expected: map[string]any{"a": 2},
		},
		{
			name:     "nested merge",
			dst:      map[string]any{"log": map[string]any{"level": "warning"}},
			src:      map[string]any{"log": map[string]any{"file": "/tmp/l"}},
			expected: map[string]any{"log": map[string]any{"level": "warning", "file": "/tmp/l"}},
		},
		{
			name:     "lists are replaced",
			dst:      map[string]any{"catalog": map[string]any{"paths": []any{"a", "b"}}},
			src:      map[string]any{"catalog": map[string]any{"paths": []any{"c"}}},
			expected: map[string]any{"catalog": map[string]any{"paths": []any{"c"}}},
		},
		{
			name:     "scalar replaces map",
			dst:      map[string]any{"log": map[string]any{"level": "info"}},
			src:      map[string]any{"log": "debug"},
			expected: map[string]any{"log": "debug"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff.Test(t, t.Errorf, DeepMerge(tt.dst, tt.src), tt.expected)
		})
	}
}

func TestMergeDoesNotAlias(t *testing.T) {
	defaults := map[string]any{"catalog": map[string]any{"paths": []any{"a"}}}
	file := map[string]any{"catalog": map[string]any{"builtin": false}}

	merged := Merge(defaults, file)
	SetByPath(merged, "catalog.builtin", true)
	merged["catalog"].(map[string]any)["paths"].([]any)[0] = "changed"

	diff.Test(t, t.Errorf, defaults, map[string]any{"catalog": map[string]any{"paths": []any{"a"}}})
	diff.Test(t, t.Errorf, file, map[string]any{"catalog": map[string]any{"builtin": false}})
}

func TestClone(t *testing.T) {
	if Clone(nil) != nil {
		t.Error("Clone(nil) != nil")
	}
	src := map[string]any{"a": map[string]any{"b": []any{1}}}
	dst := Clone(src)
	dst["a"].(map[string]any)["b"].([]any)[0] = 2
	diff.Test(t, t.Errorf, src, map[string]any{"a": map[string]any{"b": []any{1}}})
}

func TestGetByPath(t *testing.T) {
	data := map[string]any{
		"completion": map[string]any{"maxResults": 20},
		"flat":       "x",
	}
	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"completion.maxResults", 20, true},
		{"completion", map[string]any{"maxResults": 20}, true},
		{"flat", "x", true},
		{"flat.deeper", nil, false},
		{"completion.missing", nil, false},
		{"missing", nil, false},
	}
	for _, tt := range tests {
		got, ok := GetByPath(data, tt.path)
		if ok != tt.ok {
			t.Errorf("GetByPath(%q) ok = %v, want %v", tt.path, ok, tt.ok)
		}
		diff.Test(t, t.Errorf, got, tt.want)
	}
	if _, ok := GetByPath(nil, "a"); ok {
		t.Error("GetByPath(nil) ok = true")
	}
}

func TestSetByPath(t *testing.T) {
	data := map[string]any{"log": "scalar"}
	SetByPath(data, "log.level", "debug")
	SetByPath(data, "diagnostics.enabled", false)
	want := map[string]any{
		"log":         map[string]any{"level": "debug"},
		"diagnostics": map[string]any{"enabled": false},
	}
	diff.Test(t, t.Errorf, data, want)
}

func TestDiffMaps(t *testing.T) {
	old := map[string]any{
		"log":        map[string]any{"level": "info", "file": "/a"},
		"completion": map[string]any{"maxResults": 10},
		"catalog":    map[string]any{"paths": []any{"x"}},
	}
	new := map[string]any{
		"log":         map[string]any{"level": "debug"},
		"completion":  map[string]any{"maxResults": 10},
		"catalog":     map[string]any{"paths": []any{"x", "y"}},
		"diagnostics": map[string]any{"enabled": false},
	}
	added, modified, removed := DiffMaps(old, new)
	diff.Test(t, t.Errorf, added, []string{"diagnostics.enabled"})
	diff.Test(t, t.Errorf, modified, []string{"catalog.paths", "log.level"})
	diff.Test(t, t.Errorf, removed, []string{"log.file"})
}
