package normalize

import (
	"regexp"
	"strings"
)

var modelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmodel\s*(?:#|no\.?|number)\s*:?\s*([a-z0-9](?:[a-z0-9-]*[a-z0-9])?)`),
	regexp.MustCompile(`(?i)\bstyle\s*(?:#|no\.?|number)\s*:?\s*([a-z0-9](?:[a-z0-9-]*[a-z0-9])?)`),
	regexp.MustCompile(`(?i)\bserial\s*(?:#|no\.?|number)\s*:?\s*([a-z0-9](?:[a-z0-9-]*[a-z0-9])?)`),
	regexp.MustCompile(`(?i)\bitem\s*(?:#|no\.?|number)\s*:?\s*([a-z0-9](?:[a-z0-9-]*[a-z0-9])?)`),
}

// Coach creed patches read like "No. H1234-F12345"; the style code is the
// part after the dash, and may also appear on its own.
var coachStylePattern = regexp.MustCompile(`(?i)\b(?:[a-z0-9]{4,6}-)?([a-z]{1,2}\d{4,5})\b`)

// ExtractModel returns a model, style, serial or item number found in text.
// brand enables brand-specific catalog code detection.
func ExtractModel(text, brand string) (string, bool) {
	for _, re := range modelPatterns {
		// "model number is" style phrasing captures a word, not a code.
		if m := re.FindStringSubmatch(text); m != nil && strings.ContainsAny(m[1], "0123456789") {
			return strings.ToUpper(m[1]), true
		}
	}
	if brand == "Coach" {
		if m := coachStylePattern.FindStringSubmatch(text); m != nil {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}
