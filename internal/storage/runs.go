package storage

import (
	"context"
	"fmt"

	"thriftscan/valuator/internal/models"
)

// StartRun records the beginning of an automation run.
func (r *Repository) StartRun(ctx context.Context, run *models.AutomationRun) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO automation_runs (id, trigger_type, started_at, communities, processed, skipped, failed)
		VALUES (:id, :trigger_type, :started_at, :communities, :processed, :skipped, :failed)`, run)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final counters of an automation run.
func (r *Repository) FinishRun(ctx context.Context, run *models.AutomationRun) error {
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE automation_runs
		SET finished_at = :finished_at, communities = :communities, processed = :processed,
			skipped = :skipped, failed = :failed, error = :error
		WHERE id = :id`, run)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns the latest automation runs, newest first.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]models.AutomationRun, error) {
	var runs []models.AutomationRun
	err := r.db.SelectContext(ctx, &runs,
		`SELECT * FROM automation_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
