package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"thriftscan/valuator/internal/database"
	"thriftscan/valuator/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Repository implements persistence for valuations and their satellites
// using sqlx.
type Repository struct {
	db *database.DB
	// now is overridable so tests can pin timestamps.
	now func() time.Time
}

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) *Repository {
	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// FetchPublished retrieves published, non-removed valuations first
// published after since, or after the (cursorTimestamp, cursorID) position.
// Records are keyed on published_at because valuation happens after insert.
func (r *Repository) FetchPublished(ctx context.Context, limit int, since *time.Time, cursorTimestamp *time.Time, cursorID *int64) ([]models.Valuation, error) {
	var items []models.Valuation
	var query string
	var args []any

	// Ordering must be stable for cursor pagination to work.
	const baseQuery = `SELECT * FROM valuations WHERE published = 1 AND removed = 0 AND `
	const orderBy = ` ORDER BY published_at ASC, id ASC LIMIT ?`

	if cursorTimestamp != nil && cursorID != nil {
		query = baseQuery + `((published_at > ?) OR (published_at = ? AND id > ?))` + orderBy
		args = append(args, cursorTimestamp.UTC(), cursorTimestamp.UTC(), *cursorID, limit)
	} else if since != nil {
		query = baseQuery + `published_at > ?` + orderBy
		args = append(args, since.UTC(), limit)
	} else {
		return nil, fmt.Errorf("either 'since' or cursor parameters must be provided")
	}

	err := r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Valuation{}, nil
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	if items == nil {
		items = []models.Valuation{}
	}
	return items, nil
}

// Categories returns the closed category set in display order.
func (r *Repository) Categories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	err := r.db.SelectContext(ctx, &cats, `SELECT * FROM valuation_categories ORDER BY sort_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	return cats, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
