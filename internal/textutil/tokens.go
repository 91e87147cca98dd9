package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var fold = cases.Fold()

// NormalizeToken maps an identifier to its canonical token: NFKC so
// full-width and compatibility forms become plain letters, case folding,
// then SanitizeToken. Blank input yields "".
func NormalizeToken(value string) string {
	value = strings.TrimSpace(norm.NFKC.String(value))
	if value == "" {
		return ""
	}
	return SanitizeToken(fold.String(value))
}

// NormalizeTokens normalizes values, dropping blanks and duplicates while
// keeping first-occurrence order.
func NormalizeTokens(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		token := NormalizeToken(value)
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
