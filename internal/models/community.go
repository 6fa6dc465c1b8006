package models

import (
	"database/sql"
	"time"
)

// Source modes for a watched community.
const (
	SourceModeJSON = "json"
	SourceModeRSS  = "rss"
)

// Community statuses.
const (
	CommunityActive      = "active"
	CommunityFailed      = "failed"
	CommunityRateLimited = "rate_limited"
)

// Community represents a row in the 'communities' table
type Community struct {
	ID              int64          `db:"id"`
	Name            string         `db:"name"`
	SourceMode      string         `db:"source_mode"`
	Comments        sql.NullString `db:"comments"`
	Status          string         `db:"status"`
	FailuresCount   int            `db:"failures_count"`
	LastError       sql.NullString `db:"last_error"`
	LastRetrievedAt sql.NullTime   `db:"last_retrieved_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	DeletedAt       sql.NullTime   `db:"deleted_at"`
}

// NewCommunity creates a new Community with default values
func NewCommunity() *Community {
	now := time.Now()
	return &Community{
		SourceMode: SourceModeJSON,
		Status:     CommunityActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
