package storage

import (
	"context"
	"database/sql"
	"fmt"

	"thriftscan/valuator/internal/models"
)

const maxCommunityFailures = 10

// InsertCommunity inserts a watched community. It returns false without
// error when a community with the same name already exists.
func (r *Repository) InsertCommunity(ctx context.Context, c *models.Community) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO communities (name, source_mode, comments, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		c.Name, c.SourceMode, c.Comments, c.Status, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert community %s: %w", c.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for community %s: %w", c.Name, err)
	}
	return n > 0, nil
}

// ActiveCommunities returns communities due for scanning, least recently
// retrieved first. Rate-limited communities are retried on the next run.
func (r *Repository) ActiveCommunities(ctx context.Context) ([]models.Community, error) {
	var out []models.Community
	err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM communities
		WHERE status IN ('active', 'rate_limited') AND deleted_at IS NULL
		ORDER BY last_retrieved_at ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load communities: %w", err)
	}
	return out, nil
}

// AllCommunities returns every community that is not deleted.
func (r *Repository) AllCommunities(ctx context.Context) ([]models.Community, error) {
	var out []models.Community
	err := r.db.SelectContext(ctx, &out, `SELECT * FROM communities WHERE deleted_at IS NULL ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load communities: %w", err)
	}
	return out, nil
}

// MarkCommunityFetched resets failure tracking after a successful fetch.
func (r *Repository) MarkCommunityFetched(ctx context.Context, id int64) error {
	now := r.now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE communities
		SET status = 'active', failures_count = 0, last_error = NULL, last_retrieved_at = ?, updated_at = ?
		WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update community %d: %w", id, err)
	}
	return nil
}

// MarkCommunityFailed records a fetch failure. Rate limits do not count
// towards the failure budget; other errors do, and past the budget the
// community is disabled.
func (r *Repository) MarkCommunityFailed(ctx context.Context, c *models.Community, fetchErr error, rateLimited bool) error {
	if rateLimited {
		c.Status = models.CommunityRateLimited
		c.LastError = sql.NullString{String: "Rate limited by source", Valid: true}
	} else {
		c.FailuresCount++
		c.LastError = sql.NullString{String: fetchErr.Error(), Valid: true}
		if c.FailuresCount > maxCommunityFailures {
			c.Status = models.CommunityFailed
		}
	}

	now := r.now()
	c.LastRetrievedAt = sql.NullTime{Time: now, Valid: true}
	c.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		UPDATE communities
		SET status = ?, failures_count = ?, last_error = ?, last_retrieved_at = ?, updated_at = ?
		WHERE id = ?`,
		c.Status, c.FailuresCount, c.LastError, now, now, c.ID)
	if err != nil {
		return fmt.Errorf("failed to record failure for community %d: %w", c.ID, err)
	}
	return nil
}

// EnsureCommunities inserts any of names that are not yet watched and
// returns how many were added.
func (r *Repository) EnsureCommunities(ctx context.Context, names []string, sourceMode string) (int, error) {
	added := 0
	for _, name := range names {
		c := models.NewCommunity()
		c.Name = name
		c.SourceMode = sourceMode
		ok, err := r.InsertCommunity(ctx, c)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}
