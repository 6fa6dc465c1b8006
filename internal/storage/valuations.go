package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"thriftscan/valuator/internal/models"
)

const maxSlugAttempts = 20

// FindBySource returns the record ingested from (sourceType, sourceID).
func (r *Repository) FindBySource(ctx context.Context, sourceType, sourceID string) (*models.Valuation, error) {
	var v models.Valuation
	err := r.db.GetContext(ctx, &v,
		`SELECT * FROM valuations WHERE source_type = ? AND source_id = ?`, sourceType, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find valuation by source %s/%s: %w", sourceType, sourceID, err)
	}
	return &v, nil
}

// GetByID returns a record by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Valuation, error) {
	var v models.Valuation
	err := r.db.GetContext(ctx, &v, `SELECT * FROM valuations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get valuation %d: %w", id, err)
	}
	return &v, nil
}

// GetBySlug returns a record by its public slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Valuation, error) {
	var v models.Valuation
	err := r.db.GetContext(ctx, &v, `SELECT * FROM valuations WHERE slug = ?`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get valuation %q: %w", slug, err)
	}
	return &v, nil
}

// Save inserts the candidate and returns its id. If a record from the same
// source already exists its id is returned and created is false. The
// existence check runs first; the unique constraint only backs it up for
// concurrent runs.
func (r *Repository) Save(ctx context.Context, c *models.Candidate) (id int64, created bool, err error) {
	existing, err := r.FindBySource(ctx, c.SourceType, c.SourceID)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, false, err
	}

	slug, err := r.availableSlug(ctx, c.Slug)
	if err != nil {
		return 0, false, err
	}

	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO valuations (
			slug, source_type, source_id, source_url, community, author, posted_at,
			title, description, brand, model, category,
			image_url, thumbnail_url, image_source, buy_price,
			published, noindex, removed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, 0, ?, ?)
		ON CONFLICT(source_type, source_id) DO NOTHING`,
		slug, c.SourceType, c.SourceID, c.SourceURL, c.Community, c.Author, c.PostedAt,
		c.Title, c.Description, c.Brand, c.Model, nullIfEmpty(c.Category),
		c.ImageURL, c.ThumbnailURL, c.ImageSource, c.BuyPrice,
		models.NoIndex(sql.NullFloat64{}), now, now,
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert valuation for %s/%s: %w", c.SourceType, c.SourceID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get rows affected for %s/%s: %w", c.SourceType, c.SourceID, err)
	}
	if affected == 0 {
		// Lost a race with another run ingesting the same post.
		existing, err := r.FindBySource(ctx, c.SourceType, c.SourceID)
		if err != nil {
			return 0, false, err
		}
		log.Debug().Str("source_id", c.SourceID).Msg("Duplicate source detected on insert")
		return existing.ID, false, nil
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read inserted id: %w", err)
	}
	c.Slug = slug
	return id, true, nil
}

// availableSlug returns slug, or slug with a numeric suffix when another
// record already owns it.
func (r *Repository) availableSlug(ctx context.Context, slug string) (string, error) {
	candidate := slug
	for i := 2; i <= maxSlugAttempts; i++ {
		var taken bool
		err := r.db.GetContext(ctx, &taken, `SELECT EXISTS(SELECT 1 FROM valuations WHERE slug = ?)`, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", slug, i)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", slug, maxSlugAttempts)
}

// RecordDuplicates links primaryID to each match. Self links and links that
// already exist are skipped. It returns the number of rows written.
func (r *Repository) RecordDuplicates(ctx context.Context, primaryID int64, matches []models.DuplicateEntry) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("duplicates: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO valuation_duplicates (primary_id, duplicate_id, similarity_score, merge_status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(primary_id, duplicate_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("duplicates: failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	now := r.now()
	for _, m := range matches {
		if m.ID == primaryID {
			continue
		}
		res, err := stmt.ExecContext(ctx, primaryID, m.ID, m.Score, models.MergePending, now)
		if err != nil {
			return 0, fmt.Errorf("duplicates: failed to link %d -> %d: %w", primaryID, m.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("duplicates: failed to commit: %w", err)
	}
	return written, nil
}

// Duplicates returns the links recorded for primaryID.
func (r *Repository) Duplicates(ctx context.Context, primaryID int64) ([]models.DuplicateLink, error) {
	var links []models.DuplicateLink
	err := r.db.SelectContext(ctx, &links,
		`SELECT * FROM valuation_duplicates WHERE primary_id = ? ORDER BY duplicate_id`, primaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicates of %d: %w", primaryID, err)
	}
	return links, nil
}

// UpdateValuation writes estimator output onto a record, publishes it and
// recomputes noindex from the stored confidence. published_at is stamped
// on the first publish only.
func (r *Repository) UpdateValuation(ctx context.Context, id int64, est models.Estimate) error {
	for _, f := range []float64{est.ValueLow, est.ValueHigh, est.Confidence} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("valuation %d: non-finite estimate (low=%v high=%v confidence=%v)",
				id, est.ValueLow, est.ValueHigh, est.Confidence)
		}
	}
	confidence := sql.NullFloat64{Float64: math.Max(0, math.Min(1, est.Confidence)), Valid: true}

	tips := est.SellingTips
	if tips == nil {
		tips = []string{}
	}
	tipsJSON, err := json.Marshal(tips)
	if err != nil {
		return fmt.Errorf("failed to marshal selling tips for %d: %w", id, err)
	}

	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE valuations
		SET value_low = ?, value_high = ?, confidence = ?,
			recommended_platform = ?, recommended_live_platform = ?,
			platform_tips = ?, condition_guess = ?, market_insights = ?,
			noindex = ?, published = 1, published_at = COALESCE(published_at, ?), updated_at = ?
		WHERE id = ?`,
		est.ValueLow, est.ValueHigh, confidence,
		nullIfEmpty(est.RecommendedPlatform), nullIfEmpty(est.RecommendedLivePlatform),
		string(tipsJSON), nullIfEmpty(est.ConditionGuess), nullIfEmpty(est.MarketInsights),
		models.NoIndex(confidence), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update valuation %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRemoved soft-deletes a record.
func (r *Repository) MarkRemoved(ctx context.Context, id int64, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE valuations SET removed = 1, removed_reason = ?, updated_at = ? WHERE id = ?`,
		nullIfEmpty(reason), r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to remove valuation %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByBrandModel returns live records with the same brand and model,
// compared case-insensitively.
func (r *Repository) FindByBrandModel(ctx context.Context, brand, model string, limit int) ([]models.DuplicateEntry, error) {
	var out []models.DuplicateEntry
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, slug, title, brand, model FROM valuations
		WHERE brand = ? COLLATE NOCASE AND model = ? COLLATE NOCASE AND removed = 0
		ORDER BY id DESC LIMIT ?`, brand, model, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find brand/model matches: %w", err)
	}
	return out, nil
}

// FindByTitlePhrase returns live records whose title contains phrase.
func (r *Repository) FindByTitlePhrase(ctx context.Context, phrase string, limit int) ([]models.DuplicateEntry, error) {
	var out []models.DuplicateEntry
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, slug, title, brand, model FROM valuations
		WHERE title LIKE ? ESCAPE '\' AND removed = 0
		ORDER BY id DESC LIMIT ?`, "%"+escapeLike(phrase)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find title matches: %w", err)
	}
	return out, nil
}

// ProcessedSourceIDs reports which of ids already have a valued record.
// Records left without a valuation are not reported, so a scan hands them
// back to the pipeline.
func (r *Repository) ProcessedSourceIDs(ctx context.Context, sourceType string, ids []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return seen, nil
	}

	query, args, err := sqlx.In(`
		SELECT source_id FROM valuations
		WHERE source_type = ? AND source_id IN (?)
			AND value_low IS NOT NULL AND value_high IS NOT NULL AND confidence IS NOT NULL`, sourceType, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build processed-id query: %w", err)
	}

	var found []string
	if err := r.db.SelectContext(ctx, &found, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load processed source ids: %w", err)
	}
	for _, id := range found {
		seen[id] = true
	}
	return seen, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
