package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"thriftscan/valuator/internal/models"
	"thriftscan/valuator/internal/scheduler"
)

const recentRunsLimit = 10

// Automation controls the recurring scan.
type Automation interface {
	Start(interval time.Duration) error
	Stop() error
	Trigger() error
	Status() scheduler.Status
}

// AutomationHandler serves the automation control endpoints.
type AutomationHandler struct {
	automation      Automation
	store           Store
	defaultInterval time.Duration
}

// NewAutomationHandler creates a new handler instance.
func NewAutomationHandler(automation Automation, store Store, defaultInterval time.Duration) *AutomationHandler {
	return &AutomationHandler{automation: automation, store: store, defaultInterval: defaultInterval}
}

// StatusResponse is the body of the status endpoint.
type StatusResponse struct {
	scheduler.Status
	RecentRuns []models.AutomationRun `json:"recent_runs"`
}

func (h *AutomationHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.automation == nil {
		writeError(w, r, http.StatusServiceUnavailable, "automation is not configured")
		return false
	}
	return true
}

// Status reports the scheduler state and the latest runs.
func (h *AutomationHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	runs, err := h.store.RecentRuns(r.Context(), recentRunsLimit)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to load recent runs")
	}
	if runs == nil {
		runs = []models.AutomationRun{}
	}
	writeJSON(w, r, http.StatusOK, StatusResponse{Status: h.automation.Status(), RecentRuns: runs})
}

type startRequest struct {
	IntervalMinutes float64 `json:"interval_minutes"`
}

// Start schedules recurring scans.
func (h *AutomationHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	interval := h.defaultInterval
	if req.IntervalMinutes != 0 {
		interval = time.Duration(req.IntervalMinutes * float64(time.Minute))
	}

	err := h.automation.Start(interval)
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		writeError(w, r, http.StatusConflict, err.Error())
		return
	case errors.Is(err, scheduler.ErrInvalidInterval):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, h.automation.Status())
}

// Stop cancels the schedule. A scan in progress is left to finish.
func (h *AutomationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	if err := h.automation.Stop(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrNotRunning) {
			status = http.StatusConflict
		}
		writeError(w, r, status, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, h.automation.Status())
}

// Run starts a manual scan in the background.
func (h *AutomationHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	if err := h.automation.Trigger(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrRunInProgress) {
			status = http.StatusConflict
		}
		writeError(w, r, status, err.Error())
		return
	}
	writeJSON(w, r, http.StatusAccepted, h.automation.Status())
}
