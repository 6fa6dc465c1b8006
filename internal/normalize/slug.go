package normalize

import (
	"regexp"
	"strings"
)

const (
	maxSlugLength  = 60
	suffixLength   = 6
	titleSlugWords = 5
)

var (
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9]+`)
	punctuation   = regexp.MustCompile(`[^a-z0-9\s]+`)
	repeatHyphens = regexp.MustCompile(`-{2,}`)
)

// GenerateSlug builds the public path segment for a record. The base comes
// from brand and model, or the first words of the title when both are
// absent; the last six characters of the source id keep it unique.
func GenerateSlug(brand, model, title, sourceID string) string {
	var base string
	if brand != "" || model != "" {
		base = slugify(brand + " " + model)
	} else {
		cleaned := punctuation.ReplaceAllString(fold(title), "")
		words := strings.Fields(cleaned)
		if len(words) > titleSlugWords {
			words = words[:titleSlugWords]
		}
		base = slugify(strings.Join(words, " "))
	}

	suffix := slugify(sourceID)
	if len(suffix) > suffixLength {
		suffix = suffix[len(suffix)-suffixLength:]
	}
	if base == "" {
		base = "item"
	}
	if suffix == "" {
		return truncateAtHyphen(base, maxSlugLength)
	}

	base = truncateAtHyphen(base, maxSlugLength-len(suffix)-1)
	slug := base + "-" + suffix
	return strings.Trim(repeatHyphens.ReplaceAllString(slug, "-"), "-")
}

func slugify(s string) string {
	s = strings.ReplaceAll(fold(s), "&", " and ")
	s = strings.ReplaceAll(s, "'", "")
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = repeatHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// truncateAtHyphen shortens s to at most n bytes, cutting back to the last
// hyphen so words are not split.
func truncateAtHyphen(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if s[n] != '-' {
		if i := strings.LastIndexByte(cut, '-'); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.Trim(cut, "-")
}
