// Package api holds the HTTP handlers of the valuation service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"thriftscan/valuator/internal/models"
	"thriftscan/valuator/internal/process"
	"thriftscan/valuator/internal/server/pagination"
)

const defaultLimit = 100
const maxLimit = 1000
const iso8601Format = time.RFC3339

// Store is the persistence surface used by the handlers.
type Store interface {
	GetBySlug(ctx context.Context, slug string) (*models.Valuation, error)
	FetchPublished(ctx context.Context, limit int, since *time.Time, cursorTimestamp *time.Time, cursorID *int64) ([]models.Valuation, error)
	RecordEvent(ctx context.Context, valuationID int64, eventType, source, metadata string) error
	MarkRemoved(ctx context.Context, id int64, reason string) error
	Categories(ctx context.Context) ([]models.Category, error)
	RecentRuns(ctx context.Context, limit int) ([]models.AutomationRun, error)
}

// PostProcessor runs a raw post through the pipeline.
type PostProcessor interface {
	ProcessPost(ctx context.Context, post *models.Post) (*process.Result, error)
}

// ListResponse is the body of the list endpoint.
type ListResponse struct {
	Items      []ValuationResponse `json:"items"`
	NextCursor *string             `json:"next_cursor,omitempty"`
}

// ValuationResponse is a record plus its public page URL.
type ValuationResponse struct {
	models.ValuationView
	URL          string `json:"url"`
	CategoryName string `json:"category_name,omitempty"`
}

// ValuationsHandler serves the valuation read and admin endpoints.
type ValuationsHandler struct {
	store     Store
	processor PostProcessor
	publicURL string
}

// NewValuationsHandler creates a new handler instance.
func NewValuationsHandler(store Store, processor PostProcessor, publicURL string) *ValuationsHandler {
	return &ValuationsHandler{
		store:     store,
		processor: processor,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// PageURL returns the public page URL for slug.
func (h *ValuationsHandler) PageURL(slug string) string {
	return h.publicURL + "/value/" + slug
}

func (h *ValuationsHandler) response(v *models.Valuation, names map[string]string) ValuationResponse {
	resp := ValuationResponse{ValuationView: v.View(), URL: h.PageURL(v.Slug)}
	if v.Category.Valid {
		resp.CategoryName = names[v.Category.String]
	}
	return resp
}

// categoryNames maps category slugs to display names. A failed lookup
// only costs the names.
func (h *ValuationsHandler) categoryNames(r *http.Request) map[string]string {
	cats, err := h.store.Categories(r.Context())
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to load categories")
		return nil
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.Slug] = c.Name
	}
	return names
}

// List handles requests to page through published valuations.
func (h *ValuationsHandler) List(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	log.Debug().Msg("Processing valuations list request")

	ctx := r.Context()

	query := r.URL.Query()
	limitStr := query.Get("limit")
	sinceStr := query.Get("since")
	cursorStr := query.Get("cursor")

	limit := defaultLimit
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 || parsedLimit > maxLimit {
			log.Warn().Err(err).Str("limit", limitStr).Msg("Invalid 'limit' parameter value")
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
			return
		}
		limit = parsedLimit
	}

	var since *time.Time
	var cursorTimestamp *time.Time
	var cursorID *int64

	if cursorStr != "" {
		ts, id, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		cursorTimestamp = &ts
		cursorID = &id
	} else if sinceStr != "" {
		parsedSince, err := time.Parse(iso8601Format, sinceStr)
		if err != nil {
			log.Warn().Err(err).Str("since", sinceStr).Msg("Invalid 'since' parameter format")
			http.Error(w, "Invalid 'since' parameter: use RFC3339 format (e.g., 2025-03-28T15:00:00Z)", http.StatusBadRequest)
			return
		}
		utcSince := parsedSince.UTC()
		since = &utcSince
	} else {
		log.Warn().Msg("Missing required parameter: 'since' or 'cursor'")
		http.Error(w, "Missing required parameter: 'since' or 'cursor'", http.StatusBadRequest)
		return
	}

	items, err := h.store.FetchPublished(ctx, limit+1, since, cursorTimestamp, cursorID) // Fetch one extra
	if err != nil {
		errLogEvent := log.Error().Err(err)
		if since != nil {
			errLogEvent = errLogEvent.Time("since", *since)
		}
		errLogEvent.Str("cursor", cursorStr).Msg("Error fetching valuations from repository")

		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var nextCursorStr *string
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		cursor := pagination.EncodeCursor(last.PublishedAt.Time.UTC(), last.ID)
		nextCursorStr = &cursor
	}

	names := h.categoryNames(r)
	resp := ListResponse{Items: make([]ValuationResponse, 0, len(items)), NextCursor: nextCursorStr}
	for i := range items {
		resp.Items = append(resp.Items, h.response(&items[i], names))
	}

	writeJSON(w, r, http.StatusOK, resp)
}
