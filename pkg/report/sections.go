package report

import (
	"regexp"
	"strings"
)

// headerRe matches a section header at the start of a line, with or without
// trailing text on the same line.
var headerRe = regexp.MustCompile(`(?im)^(FINDINGS|IMPRESSION|RECOMMENDATION):[ \t]*`)

var biradsRe = regexp.MustCompile(`(?i)BI-RADS\s*(?:category\s*)?:?\s*([0-6][a-cA-C]?)`)

// ExtractSections splits raw generated text into a map from section name to
// section body. A header the model failed to emit is simply absent from the
// result; extraction never fails. Running extraction over a single section
// rendered as "HEADER:\nbody" returns that body unchanged.
func ExtractSections(raw string) map[string]string {
	sections := make(map[string]string)

	matches := headerRe.FindAllStringSubmatchIndex(raw, -1)
	for i, m := range matches {
		name := strings.ToUpper(raw[m[2]:m[3]])

		bodyStart := m[1]
		bodyEnd := len(raw)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}

		body := strings.TrimSpace(raw[bodyStart:bodyEnd])
		if body == "" {
			continue
		}

		// First occurrence wins if the model repeats a header.
		if _, ok := sections[name]; !ok {
			sections[name] = body
		}
	}

	return sections
}

// ExtractBIRADS pulls the BI-RADS category (0-6, with optional a/b/c
// subdivision) out of the generated text. Empty string when absent.
func ExtractBIRADS(raw string) string {
	m := biradsRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
