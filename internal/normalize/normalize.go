// Package normalize turns raw source posts into item candidates. The
// extractors are pure functions over text; only duplicate detection touches
// storage, through a DuplicateFinder.
package normalize

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"thriftscan/valuator/internal/models"
)

// ErrInvalidPost is returned for posts without an id or title.
var ErrInvalidPost = errors.New("invalid post")

const redditBaseURL = "https://www.reddit.com"

// DuplicateFinder reports existing records resembling a candidate.
type DuplicateFinder interface {
	Find(ctx context.Context, title, brand, model string) (*models.DuplicateMatch, error)
}

// Normalizer converts posts into candidates.
type Normalizer struct {
	finder DuplicateFinder
}

// NewNormalizer creates a Normalizer. finder may be nil to skip duplicate
// detection.
func NewNormalizer(finder DuplicateFinder) *Normalizer {
	return &Normalizer{finder: finder}
}

// Validate checks the fields every post must carry.
func Validate(p *models.Post) error {
	if p == nil {
		return fmt.Errorf("%w: nil post", ErrInvalidPost)
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPost)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: missing title for post %s", ErrInvalidPost, p.ID)
	}
	return nil
}

// Normalize builds a candidate from p. Extraction misses leave fields null.
// A failing duplicate lookup is logged and leaves Duplicate unset.
func (n *Normalizer) Normalize(ctx context.Context, p *models.Post) (*models.Candidate, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(p.Title)
	body := strings.TrimSpace(p.Selftext)
	text := strings.TrimSpace(title + " " + body)

	c := &models.Candidate{
		SourceType:  models.SourceTypeReddit,
		SourceID:    p.ID,
		SourceURL:   sourceURL(p),
		Community:   p.Subreddit,
		Author:      p.Author,
		Title:       title,
		Description: body,
	}
	if p.CreatedUTC > 0 {
		sec := int64(p.CreatedUTC)
		c.PostedAt = sql.NullTime{Time: time.Unix(sec, 0).UTC(), Valid: true}
	}

	brand, hasBrand := ExtractBrand(text)
	if hasBrand {
		c.Brand = sql.NullString{String: brand, Valid: true}
	}
	model, hasModel := ExtractModel(text, brand)
	if hasModel {
		c.Model = sql.NullString{String: model, Valid: true}
	}
	if price, ok := ExtractPrice(text); ok {
		c.BuyPrice = sql.NullInt64{Int64: price, Valid: true}
	}
	c.Category = ClassifyCategory(text, brand)

	if img, ok := ExtractImage(p); ok {
		c.ImageURL = sql.NullString{String: img.URL, Valid: true}
		c.ThumbnailURL = sql.NullString{String: img.Thumbnail, Valid: img.Thumbnail != ""}
		c.ImageSource = sql.NullString{String: img.Source, Valid: true}
	}

	c.Slug = GenerateSlug(brand, model, title, p.ID)

	if n.finder != nil {
		match, err := n.finder.Find(ctx, title, brand, model)
		if err != nil {
			log.Warn().Err(err).Str("source_id", p.ID).Msg("Duplicate lookup failed")
		} else {
			c.Duplicate = match
		}
	}

	log.Debug().
		Str("source_id", c.SourceID).
		Str("slug", c.Slug).
		Str("brand", c.Brand.String).
		Str("model", c.Model.String).
		Str("category", c.Category).
		Bool("has_image", c.HasImage()).
		Bool("duplicate", c.Duplicate != nil).
		Msg("Post normalized")

	return c, nil
}

func sourceURL(p *models.Post) string {
	if strings.HasPrefix(p.Permalink, "/") {
		return redditBaseURL + p.Permalink
	}
	if p.Permalink != "" {
		return p.Permalink
	}
	return p.URL
}
