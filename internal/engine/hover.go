package engine

import (
	"strings"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/instance"
	"github.com/dshills/endpointls/internal/uri"
)

// HoverInfo is the documentation of one instance.
type HoverInfo struct {
	// Title is the component or parameter name.
	Title string
	// Description is the catalog text, unmodified.
	Description string

	// Parameter annotations. Empty for a component.
	Type    string
	Default string
	Enum    []string

	Deprecated bool

	// Span is the range of the hovered instance.
	Span uri.Span

	param bool
}

// Markdown renders the description followed by the annotations.
func (h *HoverInfo) Markdown() string {
	if h == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(h.Description)

	var notes []string
	if h.param {
		notes = append(notes, "Type: `"+h.Type+"`")
		if h.Default != "" {
			notes = append(notes, "Default: `"+h.Default+"`")
		}
		if len(h.Enum) > 0 {
			notes = append(notes, "Values: `"+strings.Join(h.Enum, "`, `")+"`")
		}
	}
	if h.Deprecated {
		notes = append(notes, "**Deprecated**")
	}
	if len(notes) == 0 {
		return b.String()
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Join(notes, "\n\n"))
	return b.String()
}

type hoverFunc func(t *instance.Tree, in *instance.Instance) *HoverInfo

var hoverByKind = map[instance.Kind]hoverFunc{
	instance.KindComponent:  hoverComponent,
	instance.KindPath:       hoverParam,
	instance.KindQueryKey:   hoverParam,
	instance.KindQueryValue: hoverParam,
}

// Hover documents the instance id. It returns nil for raw text, the root
// and any instance without a definition.
func Hover(t *instance.Tree, id instance.ID) *HoverInfo {
	if t == nil || id < 0 || int(id) >= t.Len() {
		return nil
	}
	in := t.Node(id)
	fn, ok := hoverByKind[in.Kind]
	if !ok {
		return nil
	}
	return fn(t, in)
}

// HoverAt resolves offset and documents the instance found there.
func HoverAt(t *instance.Tree, offset int) *HoverInfo {
	return Hover(t, t.Resolve(offset))
}

func hoverComponent(t *instance.Tree, in *instance.Instance) *HoverInfo {
	s := t.Schema()
	if s == nil {
		return nil
	}
	info := componentInfo(s)
	info.Span = in.Span
	return info
}

func hoverParam(_ *instance.Tree, in *instance.Instance) *HoverInfo {
	if in.Def == nil {
		return nil
	}
	info := paramInfo(in.Def)
	info.Span = in.Span
	return info
}

func componentInfo(s *catalog.ComponentSchema) *HoverInfo {
	title := s.Title
	if title == "" {
		title = s.ID
	}
	return &HoverInfo{
		Title:       title,
		Description: s.Description,
		Deprecated:  s.Deprecated,
	}
}

func paramInfo(d *catalog.ParamDef) *HoverInfo {
	return &HoverInfo{
		Title:       d.Name,
		Description: d.Description,
		Type:        d.Type.String(),
		Default:     d.Default,
		Enum:        d.Enum,
		Deprecated:  d.Deprecated,
		param:       true,
	}
}
