package models

import (
	"database/sql"
	"encoding/json"
	"math"
	"time"
)

// SourceTypeReddit is the only source type ingested today.
const SourceTypeReddit = "reddit"

// NoIndexThreshold is the confidence below which a page is marked noindex.
const NoIndexThreshold = 0.55

// Categories is the closed set of item categories.
var Categories = []string{
	"handbag", "footwear", "outerwear", "clothing", "accessories",
	"jewelry", "home", "electronics", "collectibles", "other",
}

// CategoryOther is the catch-all category.
const CategoryOther = "other"

// NoIndex reports whether a record with the given confidence must carry the
// noindex flag. A record that has not been valued yet is always noindex.
func NoIndex(confidence sql.NullFloat64) bool {
	return !confidence.Valid || math.IsNaN(confidence.Float64) || confidence.Float64 < NoIndexThreshold
}

// Valuation represents a row in the 'valuations' table
type Valuation struct {
	ID         int64        `db:"id"`
	Slug       string       `db:"slug"`
	SourceType string       `db:"source_type"`
	SourceID   string       `db:"source_id"`
	SourceURL  string       `db:"source_url"`
	Community  string       `db:"community"`
	Author     string       `db:"author"`
	PostedAt   sql.NullTime `db:"posted_at"`

	Title       string         `db:"title"`
	Description string         `db:"description"`
	Brand       sql.NullString `db:"brand"`
	Model       sql.NullString `db:"model"`
	Category    sql.NullString `db:"category"`

	ImageURL     sql.NullString `db:"image_url"`
	ThumbnailURL sql.NullString `db:"thumbnail_url"`
	ImageSource  sql.NullString `db:"image_source"`

	BuyPrice                sql.NullInt64   `db:"buy_price"`
	ValueLow                sql.NullFloat64 `db:"value_low"`
	ValueHigh               sql.NullFloat64 `db:"value_high"`
	Confidence              sql.NullFloat64 `db:"confidence"`
	RecommendedPlatform     sql.NullString  `db:"recommended_platform"`
	RecommendedLivePlatform sql.NullString  `db:"recommended_live_platform"`
	PlatformTips            sql.NullString  `db:"platform_tips"` // JSON array of strings
	ConditionGuess          sql.NullString  `db:"condition_guess"`
	MarketInsights          sql.NullString  `db:"market_insights"`

	Published     bool           `db:"published"`
	NoIndex       bool           `db:"noindex"`
	Removed       bool           `db:"removed"`
	RemovedReason sql.NullString `db:"removed_reason"`

	ViewCount  int64 `db:"view_count"`
	ClickCount int64 `db:"click_count"`
	ScanCount  int64 `db:"scan_count"`

	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastViewedAt sql.NullTime `db:"last_viewed_at"`
	PublishedAt  sql.NullTime `db:"published_at"`
}

// Valued reports whether the estimator has written a result for this record.
func (v *Valuation) Valued() bool {
	return v.ValueLow.Valid && v.ValueHigh.Valid && v.Confidence.Valid
}

// Candidate is a normalized, not-yet-valued item derived from a source post.
type Candidate struct {
	SourceType  string
	SourceID    string
	SourceURL   string
	Community   string
	Author      string
	PostedAt    sql.NullTime
	Title       string
	Description string

	Brand    sql.NullString
	Model    sql.NullString
	Category string
	BuyPrice sql.NullInt64

	ImageURL     sql.NullString
	ThumbnailURL sql.NullString
	ImageSource  sql.NullString

	Slug string

	// Duplicate is set when normalization found likely existing copies.
	Duplicate *DuplicateMatch
}

// HasImage reports whether the candidate carries a usable image.
func (c *Candidate) HasImage() bool {
	return c.ImageURL.Valid && c.ImageURL.String != ""
}

// Estimate is the estimator output written back onto a record.
type Estimate struct {
	ValueLow                float64  `json:"value_low"`
	ValueHigh               float64  `json:"value_high"`
	Confidence              float64  `json:"confidence"`
	RecommendedPlatform     string   `json:"recommended_platform"`
	RecommendedLivePlatform string   `json:"recommended_live_platform"`
	ConditionGuess          string   `json:"condition_guess"`
	MarketInsights          string   `json:"market_insights"`
	SellingTips             []string `json:"selling_tips"`
}

// ValuationView is the JSON shape served by the read API.
type ValuationView struct {
	ID                      int64      `json:"id"`
	Slug                    string     `json:"slug"`
	Title                   string     `json:"title"`
	Description             string     `json:"description,omitempty"`
	Brand                   *string    `json:"brand"`
	Model                   *string    `json:"model"`
	Category                *string    `json:"category"`
	ImageURL                *string    `json:"image_url"`
	ThumbnailURL            *string    `json:"thumbnail_url"`
	BuyPrice                *int64     `json:"buy_price"`
	ValueLow                *float64   `json:"value_low"`
	ValueHigh               *float64   `json:"value_high"`
	Confidence              *float64   `json:"confidence"`
	RecommendedPlatform     *string    `json:"recommended_platform"`
	RecommendedLivePlatform *string    `json:"recommended_live_platform"`
	ConditionGuess          *string    `json:"condition_guess"`
	MarketInsights          *string    `json:"market_insights"`
	SellingTips             []string   `json:"selling_tips"`
	NoIndex                 bool       `json:"noindex"`
	SourceURL               string     `json:"source_url"`
	Community               string     `json:"community"`
	ViewCount               int64      `json:"view_count"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
	PublishedAt             *time.Time `json:"published_at,omitempty"`
}

// View converts the row into its API representation.
func (v *Valuation) View() ValuationView {
	view := ValuationView{
		ID:                      v.ID,
		Slug:                    v.Slug,
		Title:                   v.Title,
		Description:             v.Description,
		Brand:                   nullString(v.Brand),
		Model:                   nullString(v.Model),
		Category:                nullString(v.Category),
		ImageURL:                nullString(v.ImageURL),
		ThumbnailURL:            nullString(v.ThumbnailURL),
		RecommendedPlatform:     nullString(v.RecommendedPlatform),
		RecommendedLivePlatform: nullString(v.RecommendedLivePlatform),
		ConditionGuess:          nullString(v.ConditionGuess),
		MarketInsights:          nullString(v.MarketInsights),
		NoIndex:                 v.NoIndex,
		SourceURL:               v.SourceURL,
		Community:               v.Community,
		ViewCount:               v.ViewCount,
		CreatedAt:               v.CreatedAt,
		UpdatedAt:               v.UpdatedAt,
		SellingTips:             []string{},
	}
	if v.PublishedAt.Valid {
		t := v.PublishedAt.Time.UTC()
		view.PublishedAt = &t
	}
	if v.BuyPrice.Valid {
		view.BuyPrice = &v.BuyPrice.Int64
	}
	if v.ValueLow.Valid {
		view.ValueLow = &v.ValueLow.Float64
	}
	if v.ValueHigh.Valid {
		view.ValueHigh = &v.ValueHigh.Float64
	}
	if v.Confidence.Valid {
		view.Confidence = &v.Confidence.Float64
	}
	if v.PlatformTips.Valid {
		// Malformed tips are dropped rather than failing the read.
		_ = json.Unmarshal([]byte(v.PlatformTips.String), &view.SellingTips)
	}
	return view
}

func nullString(ns sql.NullString) *string {
	if ns.Valid {
		s := ns.String
		return &s
	}
	return nil
}
