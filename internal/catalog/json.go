package catalog

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Property kinds used by the component JSON schema.
const (
	kindPath      = "path"
	kindParameter = "parameter"
)

// ParseCatalogJSON parses a catalog document. Three shapes are accepted:
// a single component schema object, an array of them, or an object with a
// "components" array.
func ParseCatalogJSON(data []byte) ([]*ComponentSchema, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)

	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.Get("components").IsArray():
		items = root.Get("components").Array()
	case root.Get("component").Exists():
		items = []gjson.Result{root}
	default:
		return nil, fmt.Errorf("%w: no component object", ErrInvalidSchema)
	}

	schemas := make([]*ComponentSchema, 0, len(items))
	for i, item := range items {
		s, err := parseComponent(item)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

// ParseComponentJSON parses exactly one component schema object.
func ParseComponentJSON(data []byte) (*ComponentSchema, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return parseComponent(gjson.ParseBytes(data))
}

func parseComponent(doc gjson.Result) (*ComponentSchema, error) {
	comp := doc.Get("component")
	if !comp.IsObject() {
		return nil, fmt.Errorf("%w: missing \"component\"", ErrInvalidSchema)
	}

	id := comp.Get("scheme").String()
	if id == "" {
		id = comp.Get("name").String()
	}
	if id == "" {
		return nil, fmt.Errorf("%w: component has no scheme", ErrInvalidSchema)
	}

	var path, query []ParamDef
	var perr error
	doc.Get("properties").ForEach(func(key, value gjson.Result) bool {
		def := parseParam(key.String(), value)
		switch value.Get("kind").String() {
		case kindPath:
			path = append(path, def)
		case kindParameter, "":
			query = append(query, def)
		default:
			perr = fmt.Errorf("%w: property %q has kind %q", ErrInvalidSchema, key.String(), value.Get("kind").String())
			return false
		}
		return true
	})
	if perr != nil {
		return nil, perr
	}

	s := NewComponentSchema(id, path, query)
	s.Title = comp.Get("title").String()
	s.Description = comp.Get("description").String()
	s.Deprecated = comp.Get("deprecated").Bool()
	if syntax := comp.Get("syntax").String(); syntax != "" {
		s.Syntax = syntax
	}
	return s, nil
}

func parseParam(name string, v gjson.Result) ParamDef {
	def := ParamDef{
		Name:        name,
		Type:        ParseParamType(v.Get("type").String()),
		Required:    v.Get("required").Bool(),
		Deprecated:  v.Get("deprecated").Bool(),
		Description: v.Get("description").String(),
		Remainder:   v.Get("remainder").Bool(),
		Reference:   v.Get("reference").Bool(),
	}
	if dv := v.Get("defaultValue"); dv.Exists() {
		def.Default = dv.String()
	}
	for _, e := range v.Get("enum").Array() {
		def.Enum = append(def.Enum, e.String())
	}
	if def.HasEnum() && def.Type == TypeString {
		def.Type = TypeEnum
	}
	if jt := v.Get("javaType").String(); def.Type == TypeString && strings.HasSuffix(jt, "java.time.Duration") {
		def.Type = TypeDuration
	}
	return def
}

// EncodeComponentJSON renders a schema in the format ParseComponentJSON reads.
func EncodeComponentJSON(s *ComponentSchema) ([]byte, error) {
	doc := []byte(`{}`)
	set := func(path string, value any) {
		if doc == nil {
			return
		}
		var err error
		if doc, err = sjson.SetBytes(doc, path, value); err != nil {
			doc = nil
		}
	}

	set("component.kind", "component")
	set("component.scheme", s.ID)
	set("component.syntax", s.Syntax)
	if s.Title != "" {
		set("component.title", s.Title)
	}
	set("component.description", s.Description)
	if s.Deprecated {
		set("component.deprecated", true)
	}

	encode := func(kind string, d *ParamDef) {
		base := "properties." + escapeKey(d.Name)
		set(base+".kind", kind)
		set(base+".type", d.Type.String())
		if d.Required {
			set(base+".required", true)
		}
		if d.Deprecated {
			set(base+".deprecated", true)
		}
		if d.Default != "" {
			set(base+".defaultValue", d.Default)
		}
		if d.HasEnum() {
			set(base+".enum", d.Enum)
		}
		if d.Remainder {
			set(base+".remainder", true)
		}
		if d.Reference {
			set(base+".reference", true)
		}
		set(base+".description", d.Description)
	}
	for i := range s.PathParams {
		encode(kindPath, &s.PathParams[i])
	}
	for i := range s.QueryParams {
		encode(kindParameter, &s.QueryParams[i])
	}

	if doc == nil {
		return nil, fmt.Errorf("encode component %s: %w", s.ID, ErrInvalidSchema)
	}
	return doc, nil
}

// EncodeCatalogJSON renders every component of a lookup as an indented
// {"components": [...]} document.
func EncodeCatalogJSON(l Lookup) ([]byte, error) {
	doc := []byte(`{"components":[]}`)
	for _, id := range l.ComponentIDs() {
		s, _ := l.Component(id)
		raw, err := EncodeComponentJSON(s)
		if err != nil {
			return nil, err
		}
		doc, err = sjson.SetRawBytes(doc, "components.-1", raw)
		if err != nil {
			return nil, fmt.Errorf("encode catalog: %w", err)
		}
	}
	return pretty.Pretty(doc), nil
}

// escapeKey escapes characters that sjson treats as path syntax.
func escapeKey(k string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(k)
}
