package extract

import "regexp"

// Java extracts string literals passed to endpoint methods of the Java DSL.
var Java Extractor = ExtractorFunc(extractJava)

var (
	javaEndpoint = regexp.MustCompile(`\b(from|to|toD|wireTap|enrich|pollEnrich|inOut|inOnly)\s*\(\s*"((?:[^"\\\n]|\\.)*)"`)
	javaRouteID  = regexp.MustCompile(`\.routeId\s*\(\s*"((?:[^"\\\n]|\\.)*)"`)
)

func extractJava(text string) Extraction {
	var out Extraction
	for _, m := range javaEndpoint.FindAllStringSubmatchIndex(text, -1) {
		element := text[m[2]:m[3]]
		role, _ := roleOf(element)
		out.Literals = append(out.Literals, Literal{
			Text:    text[m[4]:m[5]],
			Offset:  m[4],
			Role:    role,
			Element: element,
		})
	}
	for _, m := range javaRouteID.FindAllStringSubmatchIndex(text, -1) {
		out.Routes = append(out.Routes, Route{ID: text[m[2]:m[3]], Offset: m[2]})
	}
	return out
}
