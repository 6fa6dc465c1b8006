// Package process ingests community posts: it fetches the newest posts,
// skips what was already ingested and runs the rest through the pipeline.
package process

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"thriftscan/valuator/internal/models"
	"thriftscan/valuator/internal/normalize"
	"thriftscan/valuator/internal/reddit"
)

// ScanStore is the persistence surface used by a scan.
type ScanStore interface {
	ActiveCommunities(ctx context.Context) ([]models.Community, error)
	MarkCommunityFetched(ctx context.Context, id int64) error
	MarkCommunityFailed(ctx context.Context, c *models.Community, fetchErr error, rateLimited bool) error
	ProcessedSourceIDs(ctx context.Context, sourceType string, ids []string) (map[string]bool, error)
	StartRun(ctx context.Context, run *models.AutomationRun) error
	FinishRun(ctx context.Context, run *models.AutomationRun) error
}

// PostProcessor handles one post.
type PostProcessor interface {
	ProcessPost(ctx context.Context, post *models.Post) (*Result, error)
}

// ScanConfig bounds retries and pacing.
type ScanConfig struct {
	FetchAttempts int
	PostAttempts  int
	RetryDelay    time.Duration
	PostDelay     time.Duration
}

// PostError is a per-post failure. It never aborts the batch.
type PostError struct {
	Community string `json:"community"`
	SourceID  string `json:"source_id"`
	Err       string `json:"error"`
}

// Report summarizes one scan.
type Report struct {
	Run     models.AutomationRun
	Created []string
	Errors  []PostError
}

// CommunityScanner processes every active community sequentially, one
// post at a time.
type CommunityScanner struct {
	store     ScanStore
	processor PostProcessor
	sources   map[string]reddit.Source
	cfg       ScanConfig

	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// NewCommunityScanner creates a scanner. sources maps a community's
// source mode to the Source that serves it.
func NewCommunityScanner(store ScanStore, processor PostProcessor, sources map[string]reddit.Source, cfg ScanConfig) (*CommunityScanner, error) {
	if store == nil || processor == nil {
		return nil, fmt.Errorf("store and processor are required")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 1
	}
	if cfg.PostAttempts <= 0 {
		cfg.PostAttempts = 1
	}

	return &CommunityScanner{
		store:     store,
		processor: processor,
		sources:   sources,
		cfg:       cfg,
	}, nil
}

// Run scans all active communities once. trigger is recorded on the run
// row ("scheduled", "manual", "cli"). Only loading communities or writing
// the run row can fail the run; per-post failures land in the report.
func (s *CommunityScanner) Run(ctx context.Context, trigger string) (*Report, error) {
	run := models.AutomationRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	if err := s.store.StartRun(ctx, &run); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	logger := log.With().Str("run_id", run.ID).Str("trigger", trigger).Logger()

	report := &Report{}
	communities, err := s.store.ActiveCommunities(ctx)
	if err != nil {
		run.Error = sql.NullString{String: err.Error(), Valid: true}
		s.finish(&run, report)
		return report, fmt.Errorf("failed to load communities: %w", err)
	}
	logger.Info().Int("communities", len(communities)).Msg("Starting scan")

	for i := range communities {
		if ctx.Err() != nil {
			logger.Info().Err(ctx.Err()).Msg("Scan cancelled")
			break
		}
		s.scanCommunity(ctx, &communities[i], &run, report)
		run.Communities++
	}

	s.finish(&run, report)
	logger.Info().
		Int("processed", run.Processed).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Msg("Scan finished")
	return report, nil
}

func (s *CommunityScanner) finish(run *models.AutomationRun, report *Report) {
	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	// The run row is written even if the caller's context has ended.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.store.FinishRun(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record run finish")
	}
	report.Run = *run
}

func (s *CommunityScanner) scanCommunity(ctx context.Context, c *models.Community, run *models.AutomationRun, report *Report) {
	logger := log.With().Str("community", c.Name).Str("mode", c.SourceMode).Logger()

	src, ok := s.sources[c.SourceMode]
	if !ok {
		logger.Warn().Msg("No source for community mode, skipping")
		return
	}

	posts, fetchErr := s.fetch(ctx, src, c)
	if fetchErr != nil {
		logger.Warn().Err(fetchErr).Msg("Fetch failed, treating as empty")
		if err := s.store.MarkCommunityFailed(ctx, c, fetchErr, reddit.IsRateLimited(fetchErr)); err != nil {
			logger.Error().Err(err).Msg("Failed to update community status")
		}
		return
	}
	if err := s.store.MarkCommunityFetched(ctx, c.ID); err != nil {
		logger.Error().Err(err).Msg("Failed to update community status")
	}

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	seen, err := s.store.ProcessedSourceIDs(ctx, models.SourceTypeReddit, ids)
	if err != nil {
		// Without the skip list every post goes to the pipeline, which
		// still refuses to double-insert.
		logger.Warn().Err(err).Msg("Failed to load processed ids")
		seen = map[string]bool{}
	}

	worked := false
	for i := range posts {
		post := &posts[i]
		if seen[post.ID] {
			run.Skipped++
			s.skipped.Add(1)
			continue
		}
		// PostDelay is a fixed pause after each post that reached the
		// pipeline, measured from when that post finished.
		if worked {
			if err := sleep(ctx, s.cfg.PostDelay); err != nil {
				return
			}
		}
		worked = true

		var res *Result
		err := Retry(ctx, RetryConfig{
			Attempts: s.cfg.PostAttempts,
			Delay:    s.cfg.RetryDelay,
			ShouldRetry: func(err error) bool {
				return !errors.Is(err, normalize.ErrInvalidPost)
			},
			OnRetry: func(attempt int, err error) {
				logger.Warn().Err(err).Str("source_id", post.ID).Int("attempt", attempt).Msg("Retrying post")
			},
		}, func(ctx context.Context) error {
			var err error
			res, err = s.processor.ProcessPost(ctx, post)
			return err
		})
		if err != nil {
			run.Failed++
			s.failed.Add(1)
			report.Errors = append(report.Errors, PostError{Community: c.Name, SourceID: post.ID, Err: err.Error()})
			logger.Error().Err(err).Str("source_id", post.ID).Msg("Failed to process post")
			continue
		}

		run.Processed++
		s.processed.Add(1)
		if res.Created {
			report.Created = append(report.Created, res.Valuation.Slug)
		}
	}
}

func (s *CommunityScanner) fetch(ctx context.Context, src reddit.Source, c *models.Community) ([]models.Post, error) {
	var posts []models.Post
	err := Retry(ctx, RetryConfig{
		Attempts: s.cfg.FetchAttempts,
		Delay:    s.cfg.RetryDelay,
		OnRetry: func(attempt int, err error) {
			log.Debug().Err(err).Str("community", c.Name).Int("attempt", attempt).Msg("Retrying fetch")
		},
	}, func(ctx context.Context) error {
		var err error
		posts, err = src.FetchNew(ctx, c.Name)
		return err
	})
	return posts, err
}

// Stats returns lifetime counters across all runs of this scanner.
func (s *CommunityScanner) Stats() (processed, skipped, failed int64) {
	return s.processed.Load(), s.skipped.Load(), s.failed.Load()
}
