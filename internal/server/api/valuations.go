package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"thriftscan/valuator/internal/models"
	"thriftscan/valuator/internal/normalize"
	"thriftscan/valuator/internal/storage"
)

// lookupPublic resolves the {slug} parameter to a publicly visible record,
// writing 404 or 410 itself when there is none.
func (h *ValuationsHandler) lookupPublic(w http.ResponseWriter, r *http.Request, asJSON bool) (*models.Valuation, bool) {
	slug := chi.URLParam(r, "slug")
	v, err := h.store.GetBySlug(r.Context(), slug)

	fail := func(status int, msg string) {
		if asJSON {
			writeError(w, r, status, msg)
		} else {
			http.Error(w, msg, status)
		}
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(http.StatusNotFound, "valuation not found")
		return nil, false
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Str("slug", slug).Msg("Failed to load valuation")
		fail(http.StatusInternalServerError, "internal server error")
		return nil, false
	case v.Removed:
		fail(http.StatusGone, "valuation has been removed")
		return nil, false
	case !v.Published:
		fail(http.StatusNotFound, "valuation not found")
		return nil, false
	}
	return v, true
}

// Get serves one valuation as JSON.
func (h *ValuationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookupPublic(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, h.response(v, h.categoryNames(r)))
}

type eventRequest struct {
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// RecordEvent stores a click, scan or view against a valuation.
func (h *ValuationsHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !storage.IsCountedEvent(req.EventType) {
		writeError(w, r, http.StatusBadRequest, "event_type must be one of view, click, scan")
		return
	}

	v, ok := h.lookupPublic(w, r, true)
	if !ok {
		return
	}

	if err := h.store.RecordEvent(r.Context(), v.ID, req.EventType, req.Source, string(req.Metadata)); err != nil {
		hlog.FromRequest(r).Error().Err(err).Int64("id", v.ID).Msg("Failed to record event")
		writeError(w, r, http.StatusInternalServerError, "failed to record event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type removeRequest struct {
	Reason string `json:"reason"`
}

// Remove soft-deletes a valuation. Removing twice is not an error.
func (h *ValuationsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req removeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	slug := chi.URLParam(r, "slug")
	v, err := h.store.GetBySlug(r.Context(), slug)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "valuation not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to load valuation")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	if !v.Removed {
		if err := h.store.MarkRemoved(r.Context(), v.ID, strings.TrimSpace(req.Reason)); err != nil {
			log.Error().Err(err).Int64("id", v.ID).Msg("Failed to remove valuation")
			writeError(w, r, http.StatusInternalServerError, "failed to remove valuation")
			return
		}
		log.Info().Int64("id", v.ID).Str("slug", slug).Str("reason", req.Reason).Msg("Valuation removed")
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"slug": slug, "removed": true})
}

// CreateResponse is the body returned by Create.
type CreateResponse struct {
	URL       string                 `json:"url"`
	Created   bool                   `json:"created"`
	Outcome   string                 `json:"outcome,omitempty"`
	Duplicate *models.DuplicateMatch `json:"duplicate,omitempty"`
	Valuation ValuationResponse      `json:"valuation"`
}

// Create processes a raw post end to end and returns its public URL.
func (h *ValuationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	if h.processor == nil {
		writeError(w, r, http.StatusServiceUnavailable, "processing is not configured")
		return
	}

	var post models.Post
	if err := decodeBody(r, &post); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.processor.ProcessPost(r.Context(), &post)
	if errors.Is(err, normalize.ErrInvalidPost) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Str("source_id", post.ID).Msg("Failed to process post")
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	resp := CreateResponse{
		URL:       h.PageURL(res.Valuation.Slug),
		Created:   res.Created,
		Duplicate: res.Duplicate,
		Valuation: h.response(res.Valuation, h.categoryNames(r)),
	}
	if res.Valued {
		resp.Outcome = res.Outcome.String()
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, resp)
}

// Categories lists the category table.
func (h *ValuationsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.Categories(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to load categories")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"categories": cats})
}
