package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/dshills/endpointls/internal/config/layer"
)

// DefaultEnvPrefix is the prefix of variables read by NewEnvLoader.
const DefaultEnvPrefix = "ENDPOINTLS_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "ENDPOINTLS_")
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "ENDPOINTLS_").
func NewEnvLoader(prefix string) *EnvLoader {
	return NewEnvLoaderWithMapping(prefix, defaultEnvMapping(prefix))
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		environ: os.Environ,
	}
}

// defaultEnvMapping returns the variables whose path does not follow from
// the SECTION_SETTING_NAME convention.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "CATALOG":   "catalog.paths",
		prefix + "LOG":       "log.level",
		prefix + "LOG_LEVEL": "log.level",
	}
}

// Load reads environment variables and returns a configuration map.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)
	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, mapped := l.mapping[name]
		if !mapped {
			// Convert ENDPOINTLS_COMPLETION_MAX_RESULTS to completion.maxResults
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		layer.SetByPath(config, path, parseValue(value))
	}
	return config, nil
}

// envToPath converts ENDPOINTLS_COMPLETION_MAX_RESULTS to
// completion.maxResults. The first part names the section.
func (l *EnvLoader) envToPath(env string) string {
	parts := strings.Split(strings.TrimPrefix(env, l.prefix), "_")
	if len(parts) < 2 || parts[0] == "" {
		return ""
	}

	var name strings.Builder
	name.WriteString(strings.ToLower(parts[1]))
	for _, part := range parts[2:] {
		if part != "" {
			name.WriteString(strings.ToUpper(part[:1]) + strings.ToLower(part[1:]))
		}
	}
	return strings.ToLower(parts[0]) + "." + name.String()
}

// parseValue attempts to parse the string value into an appropriate type.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "":
		return s
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	// JSON arrays are lists.
	if strings.HasPrefix(s, "[") {
		var v []any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}
