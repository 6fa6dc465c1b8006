package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const amount = `\$\s?(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{1,2}))?`

const qualifier = `(?:only\s+|just\s+|about\s+|like\s+)?`

var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bpaid\s+` + qualifier + amount),
	regexp.MustCompile(`(?i)\bbought\s+(?:it\s+|this\s+|them\s+|these\s+)?(?:for\s+)?` + qualifier + amount),
	regexp.MustCompile(`(?i)\bcost\s+(?:me\s+)?` + qualifier + amount),
	regexp.MustCompile(`(?i)\bgot\s+(?:it\s+|this\s+|them\s+|these\s+)?for\s+` + qualifier + amount),
	regexp.MustCompile(`(?i)\b(?:spent|snagged\s+(?:it\s+)?for|picked\s+(?:it\s+)?up\s+for)\s+` + qualifier + amount),
}

// ExtractPrice returns the price the poster says they paid, rounded to the
// nearest whole dollar.
func ExtractPrice(text string) (int64, bool) {
	for _, re := range pricePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		if m[2] != "" {
			raw += "." + m[2]
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		return int64(math.Round(v)), true
	}
	return 0, false
}
