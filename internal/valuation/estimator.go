// Package valuation turns a normalized candidate into a price estimate. It
// never returns an error: every failure maps to a defined fallback.
package valuation

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"thriftscan/valuator/internal/llm"
	"thriftscan/valuator/internal/models"
)

// Outcome records which path produced an estimate.
type Outcome int

const (
	// OutcomeAPISuccess means the reply parsed and was post-adjusted.
	OutcomeAPISuccess Outcome = iota
	// OutcomeParseFailure means the reply had no usable JSON object.
	OutcomeParseFailure
	// OutcomeAPIFailure means the completion call itself failed.
	OutcomeAPIFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAPISuccess:
		return "api_success"
	case OutcomeParseFailure:
		return "parse_failure"
	case OutcomeAPIFailure:
		return "api_failure"
	}
	return "unknown"
}

// Result is the estimator output. Err holds the cause of a fallback and
// is informational only.
type Result struct {
	Estimate models.Estimate
	Outcome  Outcome
	Err      error
}

// Estimator prices candidates through a Completer.
type Estimator struct {
	completer llm.Completer
	maxTokens int64

	mu           sync.RWMutex
	ranges       map[string]Range
	defaultRange Range
}

// NewEstimator creates an Estimator using the built-in fallback table.
func NewEstimator(completer llm.Completer, maxTokens int64) *Estimator {
	return &Estimator{
		completer:    completer,
		maxTokens:    maxTokens,
		ranges:       DefaultRanges,
		defaultRange: DefaultRange,
	}
}

// SetCategories replaces the fallback table with rows from the database.
func (e *Estimator) SetCategories(cats []models.Category) {
	if len(cats) == 0 {
		return
	}
	ranges, def := RangesFromCategories(cats)
	e.mu.Lock()
	e.ranges, e.defaultRange = ranges, def
	e.mu.Unlock()
}

// Fallback returns the table estimate for c.
func (e *Estimator) Fallback(c *models.Candidate) models.Estimate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return TableEstimate(e.ranges, e.defaultRange, c.Category, c.Brand.String)
}

// Estimate asks the completion API for a valuation of c.
func (e *Estimator) Estimate(ctx context.Context, c *models.Candidate) Result {
	logger := log.With().Str("source_id", c.SourceID).Logger()

	req := llm.Request{
		System:    systemPrompt,
		Prompt:    BuildPrompt(c),
		MaxTokens: e.maxTokens,
	}
	if c.HasImage() {
		req.ImageURL = c.ImageURL.String
	}

	resp, err := e.completer.Complete(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Msg("Completion failed, using category fallback")
		return Result{Estimate: e.Fallback(c), Outcome: OutcomeAPIFailure, Err: err}
	}

	est, err := ParseEstimate(resp.Text)
	if err != nil {
		logger.Warn().Err(err).Str("reply", truncateRunes(resp.Text, 200)).Msg("Could not parse completion reply")
		return Result{Estimate: ParseFailureEstimate(), Outcome: OutcomeParseFailure, Err: err}
	}

	est.Confidence = AdjustConfidence(est.Confidence, c)
	logger.Debug().
		Float64("low", est.ValueLow).
		Float64("high", est.ValueHigh).
		Float64("confidence", est.Confidence).
		Int64("input_tokens", resp.Usage.InputTokens).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Msg("Estimated value")
	return Result{Estimate: est, Outcome: OutcomeAPISuccess}
}
