package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/dshills/endpointls/internal/config/layer"
	"github.com/dshills/endpointls/internal/config/loader"
)

// Log levels accepted by log.level, from least to most verbose.
var logLevels = []string{"critical", "error", "warning", "notice", "info", "debug"}

// Config is a decoded, immutable snapshot of the merged configuration.
type Config struct {
	Log         LogConfig
	Catalog     CatalogConfig
	Completion  CompletionConfig
	Diagnostics DiagnosticsConfig

	// File is the config file the snapshot was read from, if any.
	File string

	opts   Options
	merged map[string]any
}

// LogConfig holds the log.* settings.
type LogConfig struct {
	Level string
	File  string
}

// Verbosity maps Level onto a commonlog verbosity: 0 is notice, negative
// values are quieter. Unknown levels map to warning.
func (l LogConfig) Verbosity() int {
	i := slices.Index(logLevels, l.Level)
	if i < 0 {
		return -1
	}
	return i - 3
}

// CatalogConfig holds the catalog.* settings. They apply at startup only.
type CatalogConfig struct {
	Paths   []string
	Scripts []string
	Exclude []string
	Builtin bool
}

// CompletionConfig holds the completion.* settings.
type CompletionConfig struct {
	MaxResults int
}

// DiagnosticsConfig holds the diagnostics.* settings.
type DiagnosticsConfig struct {
	Enabled    bool
	Deprecated bool
}

// Options controls where Load reads configuration from.
type Options struct {
	// File is a TOML or YAML config file. A missing file is not an error.
	File string
	// Overrides is the highest priority layer, typically command-line flags.
	Overrides map[string]any
	// EnvPrefix selects environment variables. Empty means
	// loader.DefaultEnvPrefix; "-" disables the environment layer.
	EnvPrefix string
	// FS reads the config file. Nil means the OS file system.
	FS loader.FileSystem

	settings map[string]any
}

// Defaults returns the built-in defaults layer.
func Defaults() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level": "warning",
			"file":  "",
		},
		"catalog": map[string]any{
			"paths":   []any{},
			"scripts": []any{},
			"exclude": []any{},
			"builtin": true,
		},
		"completion": map[string]any{
			"maxResults": int64(200),
		},
		"diagnostics": map[string]any{
			"enabled":    true,
			"deprecated": true,
		},
	}
}

// Load merges defaults, the config file, the environment and overrides,
// in increasing priority, and decodes the result.
func Load(opts Options) (*Config, error) {
	layers := []map[string]any{Defaults()}

	if opts.File != "" {
		l, err := loader.ForPath(opts.FS, opts.File)
		if err != nil {
			return nil, err
		}
		file, err := l.Load()
		if err != nil {
			return nil, err
		}
		layers = append(layers, file)
	}

	if opts.EnvPrefix != "-" {
		prefix := opts.EnvPrefix
		if prefix == "" {
			prefix = loader.DefaultEnvPrefix
		}
		env, err := loader.NewEnvLoader(prefix).Load()
		if err != nil {
			return nil, err
		}
		layers = append(layers, env)
	}

	layers = append(layers, opts.Overrides, opts.settings)

	c := &Config{
		File:   opts.File,
		opts:   opts,
		merged: layer.Merge(layers...),
	}
	if err := c.decode(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload reads every layer again with the options of c.
func (c *Config) Reload() (*Config, error) {
	return Load(c.opts)
}

// With returns a snapshot that also applies client settings, as sent with
// workspace/didChangeConfiguration, above every other layer. Settings
// replace those of any earlier With call.
func (c *Config) With(settings map[string]any) (*Config, error) {
	opts := c.opts
	opts.settings = layer.Clone(settings)
	return Load(opts)
}

// Get returns the merged value at a dotted path.
func (c *Config) Get(path string) (any, bool) {
	return layer.GetByPath(c.merged, path)
}

// Merged returns a copy of the merged settings.
func (c *Config) Merged() map[string]any {
	return layer.Clone(c.merged)
}

// Diff returns the sorted paths whose values differ between c and other.
func (c *Config) Diff(other *Config) []string {
	added, modified, removed := layer.DiffMaps(c.merged, other.merged)
	out := append(append(added, modified...), removed...)
	sort.Strings(out)
	return out
}

func (c *Config) decode() error {
	var err error
	if c.Log.Level, err = c.getString("log.level"); err != nil {
		return err
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if !slices.Contains(logLevels, c.Log.Level) {
		return &ValidationError{
			Path:    "log.level",
			Message: "must be one of " + strings.Join(logLevels, ", "),
			Value:   c.Log.Level,
		}
	}
	if c.Log.File, err = c.getString("log.file"); err != nil {
		return err
	}

	if c.Catalog.Paths, err = c.getStrings("catalog.paths"); err != nil {
		return err
	}
	if c.Catalog.Scripts, err = c.getStrings("catalog.scripts"); err != nil {
		return err
	}
	if c.Catalog.Exclude, err = c.getStrings("catalog.exclude"); err != nil {
		return err
	}
	if c.Catalog.Builtin, err = c.getBool("catalog.builtin"); err != nil {
		return err
	}

	if c.Completion.MaxResults, err = c.getInt("completion.maxResults"); err != nil {
		return err
	}
	if c.Completion.MaxResults < 0 {
		return &ValidationError{
			Path:    "completion.maxResults",
			Message: "must not be negative",
			Value:   c.Completion.MaxResults,
		}
	}

	if c.Diagnostics.Enabled, err = c.getBool("diagnostics.enabled"); err != nil {
		return err
	}
	if c.Diagnostics.Deprecated, err = c.getBool("diagnostics.deprecated"); err != nil {
		return err
	}
	return nil
}

func (c *Config) getString(path string) (string, error) {
	v, _ := c.Get(path)
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
	}
}

func (c *Config) getBool(path string) (bool, error) {
	v, _ := c.Get(path)
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
	}
	return b, nil
}

func (c *Config) getInt(path string) (int, error) {
	v, _ := c.Get(path)
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		// JSON settings from the client arrive as float64.
		if val == math.Trunc(val) {
			return int(val), nil
		}
	}
	return 0, &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
}

// getStrings accepts a list, or one string holding an OS path list.
func (c *Config) getStrings(path string) ([]string, error) {
	v, _ := c.Get(path)
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if val == "" {
			return nil, nil
		}
		return filepath.SplitList(val), nil
	case []string:
		return append([]string(nil), val...), nil
	case []any:
		if len(val) == 0 {
			return nil, nil
		}
		out := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &TypeError{Path: path, Expected: "[]string", Actual: "[]" + typeName(item)}
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
	}
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []any, []string:
		return "list"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// DefaultPath returns the first existing config file in the user config
// directory, or the TOML path when none exists.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	base := filepath.Join(dir, "endpointls")
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		p := filepath.Join(base, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(base, "config.toml")
}
