// Package dedupe looks for existing records that describe the same item as
// a new candidate. It never merges anything; it only reports matches.
package dedupe

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"thriftscan/valuator/internal/models"
)

// MaxMatches bounds every duplicate lookup.
const MaxMatches = 5

const (
	phraseWords   = 3
	minPhraseWord = 4
	ExactScore    = 1.0
	DefaultScore  = 0.8
)

// Querier is the persistence surface the finder reads from.
type Querier interface {
	FindByBrandModel(ctx context.Context, brand, model string, limit int) ([]models.DuplicateEntry, error)
	FindByTitlePhrase(ctx context.Context, phrase string, limit int) ([]models.DuplicateEntry, error)
}

// Finder runs duplicate lookups against a Querier.
type Finder struct {
	q Querier
}

// NewFinder creates a Finder.
func NewFinder(q Querier) *Finder {
	return &Finder{q: q}
}

// Find returns an exact brand+model match when one exists, otherwise records
// whose title contains a phrase built from the candidate title. A nil result
// means no duplicate. The exact lookup short-circuits the fuzzy one.
func (f *Finder) Find(ctx context.Context, title, brand, model string) (*models.DuplicateMatch, error) {
	if brand != "" && model != "" {
		matches, err := f.q.FindByBrandModel(ctx, brand, model, MaxMatches)
		if err != nil {
			return nil, fmt.Errorf("exact duplicate lookup: %w", err)
		}
		if len(matches) > 0 {
			for i := range matches {
				matches[i].Score = ExactScore
			}
			return &models.DuplicateMatch{Type: models.MatchExact, Matches: matches}, nil
		}
	}

	phrase := SearchPhrase(title)
	if phrase == "" {
		return nil, nil
	}
	matches, err := f.q.FindByTitlePhrase(ctx, phrase, MaxMatches)
	if err != nil {
		return nil, fmt.Errorf("similar duplicate lookup: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	for i := range matches {
		matches[i].Score = Similarity(title, matches[i].Title)
	}
	return &models.DuplicateMatch{Type: models.MatchSimilar, Matches: matches}, nil
}

var wordChars = regexp.MustCompile(`[^a-z0-9\s]+`)

func words(s string) []string {
	return strings.Fields(wordChars.ReplaceAllString(strings.ToLower(s), " "))
}

// SearchPhrase joins the first three title words longer than three
// characters. It returns "" when the title has no such word.
func SearchPhrase(title string) string {
	var picked []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		if len(w) < minPhraseWord {
			continue
		}
		picked = append(picked, w)
		if len(picked) == phraseWords {
			break
		}
	}
	return strings.Join(picked, " ")
}

// Similarity is the Jaccard overlap of the word sets of a and b. It returns
// DefaultScore when either side has no words to compare.
func Similarity(a, b string) float64 {
	wa, wb := words(a), words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return DefaultScore
	}
	set := make(map[string]bool, len(wa))
	for _, w := range wa {
		set[w] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(wb))
	for _, w := range wb {
		if seen[w] {
			continue
		}
		seen[w] = true
		if set[w] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
