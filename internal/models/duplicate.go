package models

import (
	"database/sql"
	"time"
)

// Duplicate match types.
const (
	MatchExact   = "exact"
	MatchSimilar = "similar"
)

// Merge statuses for a duplicate link.
const (
	MergePending      = "pending"
	MergeMerged       = "merged"
	MergeKeptSeparate = "kept_separate"
)

// DuplicateMatch is the result of a duplicate lookup for a candidate.
type DuplicateMatch struct {
	Type    string           `json:"type"`
	Matches []DuplicateEntry `json:"matches"`
}

// DuplicateEntry is one existing record that resembles the candidate.
type DuplicateEntry struct {
	ID    int64          `db:"id" json:"id"`
	Slug  string         `db:"slug" json:"slug"`
	Title string         `db:"title" json:"title"`
	Brand sql.NullString `db:"brand" json:"-"`
	Model sql.NullString `db:"model" json:"-"`

	// Score is filled in by the caller before the link is persisted.
	Score float64 `db:"-" json:"similarity_score"`
}

// DuplicateLink represents a row in the 'valuation_duplicates' table
type DuplicateLink struct {
	ID              int64     `db:"id"`
	PrimaryID       int64     `db:"primary_id"`
	DuplicateID     int64     `db:"duplicate_id"`
	SimilarityScore float64   `db:"similarity_score"`
	MergeStatus     string    `db:"merge_status"`
	CreatedAt       time.Time `db:"created_at"`
}
