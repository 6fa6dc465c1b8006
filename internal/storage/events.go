package storage

import (
	"context"
	"fmt"

	"thriftscan/valuator/internal/models"
)

var counterColumns = map[string]string{
	models.EventView:  "view_count",
	models.EventClick: "click_count",
	models.EventScan:  "scan_count",
}

// IsCountedEvent reports whether eventType has a counter on the record.
func IsCountedEvent(eventType string) bool {
	_, ok := counterColumns[eventType]
	return ok
}

// RecordEvent appends an event for valuationID and bumps the matching
// counter in the same transaction. metadata is stored as given (JSON).
func (r *Repository) RecordEvent(ctx context.Context, valuationID int64, eventType, source, metadata string) error {
	column, ok := counterColumns[eventType]
	if !ok {
		return fmt.Errorf("unknown event type %q", eventType)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("events: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO valuation_events (valuation_id, event_type, source, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		valuationID, eventType, nullIfEmpty(source), nullIfEmpty(metadata), now); err != nil {
		return fmt.Errorf("events: failed to insert %s for %d: %w", eventType, valuationID, err)
	}

	update := fmt.Sprintf(`UPDATE valuations SET %s = %s + 1 WHERE id = ?`, column, column)
	args := []any{valuationID}
	if eventType == models.EventView {
		update = `UPDATE valuations SET view_count = view_count + 1, last_viewed_at = ? WHERE id = ?`
		args = []any{now, valuationID}
	}
	res, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return fmt.Errorf("events: failed to bump %s for %d: %w", column, valuationID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("events: failed to commit: %w", err)
	}
	return nil
}

// EventCounts returns the number of events per type for valuationID.
func (r *Repository) EventCounts(ctx context.Context, valuationID int64) (map[string]int64, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT event_type, COUNT(*) FROM valuation_events
		WHERE valuation_id = ? GROUP BY event_type`, valuationID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events for %d: %w", valuationID, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
