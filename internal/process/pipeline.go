package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"thriftscan/valuator/internal/models"
	"thriftscan/valuator/internal/normalize"
	"thriftscan/valuator/internal/storage"
	"thriftscan/valuator/internal/valuation"
)

// Normalizer turns a raw post into a candidate.
type Normalizer interface {
	Normalize(ctx context.Context, p *models.Post) (*models.Candidate, error)
}

// Estimator prices a candidate. It must not fail.
type Estimator interface {
	Estimate(ctx context.Context, c *models.Candidate) valuation.Result
}

// Store is the persistence surface used for a single post.
type Store interface {
	FindBySource(ctx context.Context, sourceType, sourceID string) (*models.Valuation, error)
	GetByID(ctx context.Context, id int64) (*models.Valuation, error)
	Save(ctx context.Context, c *models.Candidate) (int64, bool, error)
	RecordDuplicates(ctx context.Context, primaryID int64, matches []models.DuplicateEntry) (int, error)
	UpdateValuation(ctx context.Context, id int64, est models.Estimate) error
}

// Result is the outcome of processing one post.
type Result struct {
	Valuation *models.Valuation
	Duplicate *models.DuplicateMatch
	// Created is false when the post had been ingested before.
	Created bool
	// Valued is false when an existing, already valued record was returned
	// without calling the estimator.
	Valued  bool
	Outcome valuation.Outcome
}

// Pipeline processes one post end to end: normalize, save, estimate, update.
type Pipeline struct {
	normalizer Normalizer
	estimator  Estimator
	store      Store
}

// NewPipeline creates a Pipeline.
func NewPipeline(n Normalizer, e Estimator, s Store) *Pipeline {
	return &Pipeline{normalizer: n, estimator: e, store: s}
}

// ProcessPost ingests p. A post whose record already exists with a
// valuation is returned as is. A record left without a valuation by an
// earlier failed run is valued again.
func (p *Pipeline) ProcessPost(ctx context.Context, post *models.Post) (*Result, error) {
	if err := normalize.Validate(post); err != nil {
		return nil, err
	}

	existing, err := p.store.FindBySource(ctx, models.SourceTypeReddit, post.ID)
	switch {
	case err == nil && existing.Valued():
		log.Debug().Str("source_id", post.ID).Int64("id", existing.ID).Msg("Post already processed")
		return &Result{Valuation: existing}, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to look up post %s: %w", post.ID, err)
	}

	candidate, err := p.normalizer.Normalize(ctx, post)
	if err != nil {
		return nil, err
	}

	id, created, err := p.store.Save(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to save post %s: %w", post.ID, err)
	}

	if created && candidate.Duplicate != nil {
		n, err := p.store.RecordDuplicates(ctx, id, candidate.Duplicate.Matches)
		if err != nil {
			log.Warn().Err(err).Int64("id", id).Msg("Failed to record duplicate links")
		} else if n > 0 {
			log.Info().Int64("id", id).Str("type", candidate.Duplicate.Type).Int("links", n).Msg("Recorded possible duplicates")
		}
	}

	res := p.estimator.Estimate(ctx, candidate)
	if err := p.store.UpdateValuation(ctx, id, res.Estimate); err != nil {
		return nil, fmt.Errorf("failed to store valuation for %d: %w", id, err)
	}

	v, err := p.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload valuation %d: %w", id, err)
	}

	log.Info().
		Int64("id", id).
		Str("slug", v.Slug).
		Bool("created", created).
		Str("outcome", res.Outcome.String()).
		Float64("confidence", res.Estimate.Confidence).
		Msg("Processed post")

	return &Result{
		Valuation: v,
		Duplicate: candidate.Duplicate,
		Created:   created,
		Valued:    true,
		Outcome:   res.Outcome,
	}, nil
}
