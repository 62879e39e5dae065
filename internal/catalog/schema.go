package catalog

import (
	"sort"
	"strings"
)

// ParamType is the declared value type of a parameter definition.
type ParamType int

const (
	// TypeString accepts any value.
	TypeString ParamType = iota
	// TypeBoolean accepts true or false.
	TypeBoolean
	// TypeInteger accepts a base-10 integer.
	TypeInteger
	// TypeEnum accepts one of the definition's enum values.
	TypeEnum
	// TypeDuration accepts milliseconds or a duration such as 5s or 1h30m.
	TypeDuration
	// TypeBeanRef accepts a registry reference (#name) or a class name.
	TypeBeanRef
)

// String returns the catalog name of the type.
func (t ParamType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "integer"
	case TypeEnum:
		return "enum"
	case TypeDuration:
		return "duration"
	case TypeBeanRef:
		return "beanRef"
	default:
		return "unknown"
	}
}

// ParseParamType maps a catalog type name to a ParamType.
// Camel catalog names (object, number, long, ...) are folded onto the
// closest supported type; anything unrecognised is a string.
func ParseParamType(s string) ParamType {
	switch strings.ToLower(s) {
	case "boolean", "bool":
		return TypeBoolean
	case "integer", "int", "long", "short", "number":
		return TypeInteger
	case "enum":
		return TypeEnum
	case "duration":
		return TypeDuration
	case "beanref", "object":
		return TypeBeanRef
	default:
		return TypeString
	}
}

// ParamDef describes one path or query parameter of a component.
type ParamDef struct {
	Name        string
	Type        ParamType
	Default     string
	Required    bool
	Deprecated  bool
	Enum        []string
	Description string

	// Remainder marks a trailing path parameter that absorbs every
	// remaining path segment, separators included.
	Remainder bool

	// Reference marks a parameter whose value names an endpoint that other
	// documents can define or reference (direct:name, seda:name).
	Reference bool
}

// HasEnum reports whether the definition restricts values to a fixed set.
func (d *ParamDef) HasEnum() bool {
	return len(d.Enum) > 0
}

// ComponentSchema is the immutable description of one component.
type ComponentSchema struct {
	ID          string
	Title       string
	Description string
	Syntax      string
	Deprecated  bool

	PathParams  []ParamDef
	QueryParams []ParamDef

	queryIndex map[string]int
}

// NewComponentSchema builds a schema and indexes its query parameters.
// The slices are owned by the schema afterwards.
func NewComponentSchema(id string, path, query []ParamDef) *ComponentSchema {
	s := &ComponentSchema{
		ID:          id,
		Syntax:      id,
		PathParams:  path,
		QueryParams: query,
	}
	s.reindex()
	return s
}

func (s *ComponentSchema) reindex() {
	s.queryIndex = make(map[string]int, len(s.QueryParams))
	for i := range s.QueryParams {
		if _, dup := s.queryIndex[s.QueryParams[i].Name]; !dup {
			s.queryIndex[s.QueryParams[i].Name] = i
		}
	}
}

// QueryParam returns the query parameter with the exact (case-sensitive) name.
func (s *ComponentSchema) QueryParam(name string) *ParamDef {
	if s == nil {
		return nil
	}
	if s.queryIndex == nil {
		// Schema built as a literal; scan instead of mutating shared state.
		for i := range s.QueryParams {
			if s.QueryParams[i].Name == name {
				return &s.QueryParams[i]
			}
		}
		return nil
	}
	i, ok := s.queryIndex[name]
	if !ok {
		return nil
	}
	return &s.QueryParams[i]
}

// PathParam returns the positional path parameter, or nil when out of range.
func (s *ComponentSchema) PathParam(i int) *ParamDef {
	if s == nil || i < 0 || i >= len(s.PathParams) {
		return nil
	}
	return &s.PathParams[i]
}

// Lookup is the read-only catalog contract used by the analysis core.
// Implementations must be idempotent and free of side effects.
type Lookup interface {
	// Component returns the schema registered under id.
	Component(id string) (*ComponentSchema, bool)
	// ComponentIDs returns every registered id in ascending order.
	ComponentIDs() []string
}

// Static is an in-memory Lookup. It is safe for concurrent readers once
// construction has finished.
type Static struct {
	components map[string]*ComponentSchema
	ids        []string
}

// NewStatic creates a catalog from the given schemas. Later schemas with a
// duplicate id replace earlier ones.
func NewStatic(schemas ...*ComponentSchema) *Static {
	c := &Static{components: make(map[string]*ComponentSchema, len(schemas))}
	for _, s := range schemas {
		c.components[s.ID] = s
	}
	c.ids = make([]string, 0, len(c.components))
	for id := range c.components {
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
	return c
}

// Component implements Lookup.
func (c *Static) Component(id string) (*ComponentSchema, bool) {
	s, ok := c.components[id]
	return s, ok
}

// ComponentIDs implements Lookup.
func (c *Static) ComponentIDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Len returns the number of components.
func (c *Static) Len() int {
	return len(c.ids)
}

// Empty is a Lookup with no components.
var Empty Lookup = NewStatic()
