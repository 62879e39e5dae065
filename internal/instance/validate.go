package instance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/uri"
)

// Bean reference prefixes accepted after '#'.
var beanRefPrefixes = []string{"bean:", "class:", "type:"}

// Validate checks a raw value against a definition's declared type and
// enum set. Placeholders and RAW values are not checked since their
// content is only known at runtime.
func Validate(def *catalog.ParamDef, value string) (ok bool, problem string) {
	if def == nil || uri.IsPlaceholder(value) || uri.IsRaw(value) {
		return true, ""
	}
	if value == "" {
		if def.Type == catalog.TypeString {
			return true, ""
		}
		return false, fmt.Sprintf("missing %s value for %q", def.Type, def.Name)
	}

	switch def.Type {
	case catalog.TypeBoolean:
		if strings.EqualFold(value, "true") || strings.EqualFold(value, "false") {
			return true, ""
		}
		return false, fmt.Sprintf("invalid boolean value %q for %q: expected true or false", value, def.Name)

	case catalog.TypeInteger:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return false, fmt.Sprintf("invalid integer value %q for %q", value, def.Name)
		}

	case catalog.TypeEnum:
		for _, e := range def.Enum {
			if e == value {
				return true, ""
			}
		}
		return false, fmt.Sprintf("invalid enum value %q for %q: expected one of %s", value, def.Name, strings.Join(def.Enum, ", "))

	case catalog.TypeDuration:
		if !isDuration(value) {
			return false, fmt.Sprintf("invalid duration value %q for %q: expected milliseconds or a duration such as 5s", value, def.Name)
		}

	case catalog.TypeBeanRef:
		if !isBeanRef(value) {
			return false, fmt.Sprintf("invalid bean reference %q for %q", value, def.Name)
		}
	}
	return true, ""
}

// isDuration accepts a plain millisecond count or a unit-suffixed duration.
func isDuration(v string) bool {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return true
	}
	_, err := time.ParseDuration(v)
	return err == nil
}

// isBeanRef accepts #name, #bean:name, #class:fqcn, #type:fqcn, or a bare
// class name.
func isBeanRef(v string) bool {
	if !strings.HasPrefix(v, "#") {
		return true
	}
	ref := v[1:]
	for _, p := range beanRefPrefixes {
		if strings.HasPrefix(ref, p) {
			ref = ref[len(p):]
			break
		}
	}
	return ref != ""
}
