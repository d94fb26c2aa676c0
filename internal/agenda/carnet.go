package agenda

import (
	"regexp"
	"strings"
)

var carnetRe = regexp.MustCompile(`(?i)Carnet\s+(\d{4,})`)

// ExtractCarnet returns the first patient carnet number found in text.
func ExtractCarnet(text string) (string, bool) {
	m := carnetRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
