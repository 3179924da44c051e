// Package api exposes HTTP handlers for the streak service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"example.com/streak/internal/auth"
	"example.com/streak/internal/domain"
)

const maxBodyBytes = 1 << 16

// Handler coordinates HTTP requests with the per-user streak trackers.
type Handler struct {
	sessions *domain.Sessions
	logger   logrus.FieldLogger
}

// NewHandler builds a Handler.
func NewHandler(sessions *domain.Sessions, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{sessions: sessions, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/streak", h.streak)
	mux.HandleFunc("/v1/streak/session", h.session)
	mux.HandleFunc("/v1/streak/activities", h.activities)
	mux.HandleFunc("/v1/streak/days/", h.day)
	mux.HandleFunc("/v1/streak/calendar", h.calendar)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) streak(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSnapshot(w, r)
	case http.MethodDelete:
		h.resetStreak(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		claims, ok := authorize(w, r, auth.ScopeStreaksRead)
		if !ok {
			return
		}
		tracker := h.sessions.Open(r.Context(), claims.Subject)
		writeJSON(w, http.StatusOK, toSnapshotView(tracker.Snapshot()))
	case http.MethodDelete:
		claims, ok := authorize(w, r, auth.ScopeStreaksRead)
		if !ok {
			return
		}
		h.sessions.Close(claims.Subject)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeStreaksRead)
	if !ok {
		return
	}
	tracker := h.sessions.Open(r.Context(), claims.Subject)
	writeJSON(w, http.StatusOK, toSnapshotView(tracker.Snapshot()))
}

func (h *Handler) resetStreak(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeStreaksWrite)
	if !ok {
		return
	}
	tracker := h.sessions.Open(r.Context(), claims.Subject)
	snapshot, err := tracker.Reset(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.WithField("user_id", claims.Subject).Info("streak reset")
	writeJSON(w, http.StatusOK, toSnapshotView(snapshot))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeStreaksWrite)
	if !ok {
		return
	}

	var req RecordActivityRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	kind, date, err := req.Validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	tracker := h.sessions.Open(r.Context(), claims.Subject)
	var snapshot domain.Snapshot
	if date.IsZero() {
		snapshot, err = tracker.RecordActivity(r.Context(), kind, req.Description)
	} else {
		snapshot, err = tracker.RecordActivityOn(r.Context(), kind, date, req.Description)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": claims.Subject,
		"kind":    kind,
		"streak":  snapshot.CurrentStreak,
	}).Debug("activity recorded")
	writeJSON(w, http.StatusOK, toSnapshotView(snapshot))
}

func (h *Handler) day(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/v1/streak/days/")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing date")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeStreaksRead)
	if !ok {
		return
	}
	date, err := domain.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	record, found := h.sessions.Open(r.Context(), claims.Subject).StreakForDate(date)
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "no activity on "+date.String())
		return
	}
	writeJSON(w, http.StatusOK, toDayView(record))
}

func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeStreaksRead)
	if !ok {
		return
	}

	var from, to domain.Date
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = domain.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid from: "+err.Error())
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = domain.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid to: "+err.Error())
			return
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		writeError(w, http.StatusBadRequest, "validation_failed", "from must not be after to")
		return
	}

	calendar := h.sessions.Open(r.Context(), claims.Subject).CalendarRange(from, to)
	writeJSON(w, http.StatusOK, toCalendarView(calendar))
}

// authorize checks the caller's claims; write scope implies read.
func authorize(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if claims.HasScope(scope) || (scope == auth.ScopeStreaksRead && claims.HasScope(auth.ScopeStreaksWrite)) {
		return claims, true
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
	return nil, false
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrFutureDate), errors.Is(err, domain.ErrInvalidDate), errors.Is(err, domain.ErrUnknownActivityKind):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrLogUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "streak storage unavailable, retry later")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
