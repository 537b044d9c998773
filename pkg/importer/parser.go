// Package importer parses the plain-text bulk import format: optional
// [Project Heading] lines, # comments, and KEY=value pairs.
package importer

import "strings"

type (
	Pair struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}

	Parsed struct {
		// Heading is the last [bracketed] line seen, if any.
		Heading string
		Pairs   []Pair
		// Skipped counts non-empty lines that were neither comments,
		// headings nor well-formed pairs.
		Skipped int
	}
)

// ParseTXT scans the content line by line. Blank lines and # comments are
// ignored silently; malformed lines are counted as skipped so the caller can
// report them.
func ParseTXT(content string) Parsed {
	var parsed Parsed
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			parsed.Heading = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			parsed.Skipped++
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			parsed.Skipped++
			continue
		}
		parsed.Pairs = append(parsed.Pairs, Pair{Key: key, Value: strings.TrimSpace(value)})
	}
	return parsed
}

// KeyToName derives a display name from an environment variable style key,
// "STRIPE_API_KEY" becomes "Stripe Api Key".
func KeyToName(key string) string {
	parts := strings.Split(strings.ToLower(key), "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
