// Package api exposes the JSON management surface: threshold CRUD and
// alert queries backed by the manager. Handlers stay thin; all business
// rules live behind the manager.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"sensoralert/internal/domain"
	"sensoralert/internal/store"
)

const maxRequestBody = 64 * 1024

// Backend is the manager surface the handlers call. Keeping it local
// leaves the routing layer free of upstream package knowledge.
// Params: none; method set mirrors the manager pass-throughs.
// Returns: threshold/alert operations used by the routes below.
type Backend interface {
	CreateThreshold(ctx context.Context, threshold domain.Threshold) (domain.Threshold, error)
	UpdateThreshold(ctx context.Context, id string, patch domain.ThresholdUpdate) (domain.Threshold, error)
	DeleteThreshold(ctx context.Context, id string) error
	ThresholdsByDevice(ctx context.Context, deviceID string) ([]domain.Threshold, error)
	AlertsByDevice(ctx context.Context, deviceID string, limit int) ([]domain.NotificationAlert, error)
	UnreadAlerts(ctx context.Context) ([]domain.NotificationAlert, error)
	MarkAlertRead(ctx context.Context, id string) error
	DeleteAlert(ctx context.Context, id string) error
	BrowserFeed(limit int) []domain.NotificationAlert
}

// Handler serves the /api routes.
// Params: backend facade and logger.
// Returns: http handler set registered via Register.
type Handler struct {
	backend Backend
	logger  *slog.Logger
}

// NewHandler creates the API handler.
// Params: backend facade and logger.
// Returns: initialized handler.
func NewHandler(backend Backend, logger *slog.Logger) *Handler {
	return &Handler{backend: backend, logger: logger}
}

// Register mounts all API routes on the given mux.
// Params: target request multiplexer.
// Returns: nothing; routes are registered in place.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/thresholds", h.createThreshold)
	mux.HandleFunc("GET /api/thresholds", h.listThresholds)
	mux.HandleFunc("PATCH /api/thresholds/{id}", h.updateThreshold)
	mux.HandleFunc("DELETE /api/thresholds/{id}", h.deleteThreshold)
	mux.HandleFunc("GET /api/alerts", h.listAlerts)
	mux.HandleFunc("GET /api/alerts/unread", h.listUnreadAlerts)
	mux.HandleFunc("GET /api/alerts/feed", h.browserFeed)
	mux.HandleFunc("POST /api/alerts/{id}/read", h.markAlertRead)
	mux.HandleFunc("DELETE /api/alerts/{id}", h.deleteAlert)
}

func (h *Handler) createThreshold(w http.ResponseWriter, r *http.Request) {
	var threshold domain.Threshold
	if !h.decodeBody(w, r, &threshold) {
		return
	}
	if err := threshold.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.backend.CreateThreshold(r.Context(), threshold)
	if err != nil {
		h.backendError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listThresholds(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSpace(r.URL.Query().Get("device"))
	if deviceID == "" {
		h.writeError(w, http.StatusBadRequest, "device query parameter is required")
		return
	}
	thresholds, err := h.backend.ThresholdsByDevice(r.Context(), deviceID)
	if err != nil {
		h.backendError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, thresholds)
}

func (h *Handler) updateThreshold(w http.ResponseWriter, r *http.Request) {
	var patch domain.ThresholdUpdate
	if !h.decodeBody(w, r, &patch) {
		return
	}
	updated, err := h.backend.UpdateThreshold(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.backendError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteThreshold(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.DeleteThreshold(r.Context(), r.PathValue("id")); err != nil {
		h.backendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSpace(r.URL.Query().Get("device"))
	if deviceID == "" {
		h.writeError(w, http.StatusBadRequest, "device query parameter is required")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"))
	alerts, err := h.backend.AlertsByDevice(r.Context(), deviceID, limit)
	if err != nil {
		h.backendError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) listUnreadAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.backend.UnreadAlerts(r.Context())
	if err != nil {
		h.backendError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) browserFeed(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))
	h.writeJSON(w, http.StatusOK, h.backend.BrowserFeed(limit))
}

func (h *Handler) markAlertRead(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.MarkAlertRead(r.Context(), r.PathValue("id")); err != nil {
		h.backendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.DeleteAlert(r.Context(), r.PathValue("id")); err != nil {
		h.backendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody decodes one JSON request body with a size cap.
// Params: response writer, request, and decode target.
// Returns: false when an error response was already written.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// backendError maps one store error onto an HTTP status.
// Params: response writer and backend error.
// Returns: 404 for unknown ids, 500 otherwise.
func (h *Handler) backendError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.logger.Error("api backend failure", "error", err.Error())
	h.writeError(w, http.StatusInternalServerError, "backend failure")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("api response encode failed", "error", err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// parseLimit parses the optional limit query parameter.
// Params: raw query value.
// Returns: parsed cap, 0 for absent or invalid input.
func parseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
