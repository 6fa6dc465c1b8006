package models

import (
	"database/sql"
	"time"
)

// Event types that bump a counter on the valuation.
const (
	EventView  = "view"
	EventClick = "click"
	EventScan  = "scan"
)

// Event represents a row in the append-only 'valuation_events' table
type Event struct {
	ID          int64          `db:"id"`
	ValuationID int64          `db:"valuation_id"`
	EventType   string         `db:"event_type"`
	Source      sql.NullString `db:"source"`
	Metadata    sql.NullString `db:"metadata"` // JSON marshaled client metadata (user agent, referrer)
	CreatedAt   time.Time      `db:"created_at"`
}

// Category represents a row in the 'valuation_categories' table
type Category struct {
	Slug         string  `db:"slug" json:"slug"`
	Name         string  `db:"name" json:"name"`
	FallbackLow  float64 `db:"fallback_low" json:"fallback_low"`
	FallbackHigh float64 `db:"fallback_high" json:"fallback_high"`
	SortOrder    int     `db:"sort_order" json:"-"`
}

// AutomationRun represents a row in the 'automation_runs' table
type AutomationRun struct {
	ID          string         `db:"id" json:"id"`
	Trigger     string         `db:"trigger_type" json:"trigger"`
	StartedAt   time.Time      `db:"started_at" json:"started_at"`
	FinishedAt  sql.NullTime   `db:"finished_at" json:"-"`
	Communities int            `db:"communities" json:"communities"`
	Processed   int            `db:"processed" json:"processed"`
	Skipped     int            `db:"skipped" json:"skipped"`
	Failed      int            `db:"failed" json:"failed"`
	Error       sql.NullString `db:"error" json:"-"`
}
