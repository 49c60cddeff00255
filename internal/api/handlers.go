package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mochikko/diary-server/internal/config"
	"github.com/mochikko/diary-server/internal/engine"
	"github.com/mochikko/diary-server/internal/llm"
	"github.com/mochikko/diary-server/internal/models"
	"github.com/mochikko/diary-server/internal/plan"
	"github.com/mochikko/diary-server/internal/router"
	"github.com/mochikko/diary-server/internal/store"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	})
}

type Handlers struct {
	cfg     *config.Config
	engine  *engine.Engine
	store   *store.Store
	gateway *llm.Gateway
	plans   *plan.Manager
	tz      *time.Location
}

func NewHandlers(cfg *config.Config, eng *engine.Engine, st *store.Store, gw *llm.Gateway, plans *plan.Manager) *Handlers {
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		tz = time.UTC
	}
	return &Handlers{
		cfg:     cfg,
		engine:  eng,
		store:   st,
		gateway: gw,
		plans:   plans,
		tz:      tz,
	}
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:  "ok",
		Store:   h.checkStore(),
		Version: "1.0.0",
	}
	if h.gateway.Healthy() {
		resp.Providers = "available"
	} else {
		resp.Providers = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) checkStore() string {
	if err := h.store.Ping(); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

// SubmitEvent handles POST /api/v1/events
func (h *Handlers) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY")
		return
	}
	if req.EventType == "" {
		writeError(w, http.StatusBadRequest, "event_type is required", "MISSING_EVENT_TYPE")
		return
	}

	// A missing timestamp means now; a malformed one is the caller's
	// bug and must not silently misdate the event.
	timestamp := time.Now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timestamp must be RFC3339", "INVALID_TIMESTAMP")
			return
		}
		timestamp = parsed
	}

	ev := models.Event{
		EventType: req.EventType,
		Timestamp: timestamp,
		UserID:    req.UserID,
		Context:   req.Context,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	outcome, err := h.engine.Submit(ctx, ev)
	if err != nil {
		switch {
		case errors.Is(err, router.ErrUnknownEventType):
			writeError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_EVENT_TYPE")
			return
		default:
			var pv *plan.Violation
			if errors.As(err, &pv) {
				// Invariant breach: surfaced loudly, never absorbed.
				log.Printf("PLAN VIOLATION: %v", pv)
			}
			writeError(w, http.StatusInternalServerError, err.Error(), "PIPELINE_ERROR")
			return
		}
	}

	status := http.StatusOK
	if outcome.Status == models.StatusRejected {
		status = http.StatusUnprocessableEntity
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.SubmitResponse{
		Status: outcome.Status,
		Reason: outcome.Reason,
		Entry:  outcome.Entry,
	})
}

// Entries handles GET /api/v1/entries
func (h *Handlers) Entries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.Filter{
		From:     q.Get("from"),
		To:       q.Get("to"),
		Contains: q.Get("q"),
		Limit:    100,
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if cat := q.Get("category"); cat != "" {
		if !models.ValidCategory(cat) {
			writeError(w, http.StatusBadRequest, "unknown category", "INVALID_CATEGORY")
			return
		}
		filter.Category = models.EventCategory(cat)
	}
	if emotion := q.Get("emotion"); emotion != "" {
		if !models.ValidEmotion(emotion) {
			writeError(w, http.StatusBadRequest, "unknown emotion", "INVALID_EMOTION")
			return
		}
		filter.Emotion = models.EmotionTag(emotion)
	}

	entries, err := h.store.QueryEntries(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "QUERY_ERROR")
		return
	}
	if entries == nil {
		entries = []models.DiaryEntry{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.EntriesResponse{Entries: entries})
}

// Status handles GET /api/v1/status
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	resp := models.StatusResponse{
		Plan:      h.engine.PlanSnapshot(),
		Providers: h.gateway.States(),
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

type backupRequest struct {
	Label string `json:"label"`
}

// Backups handles GET /api/v1/backups
func (h *Handlers) Backups(w http.ResponseWriter, r *http.Request) {
	labels, err := h.store.ListBackups()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "BACKUP_LIST_ERROR")
		return
	}
	if labels == nil {
		labels = []string{}
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string][]string{"backups": labels})
}

// Backup handles POST /api/v1/backup
func (h *Handlers) Backup(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required", "MISSING_LABEL")
		return
	}

	if err := h.store.Backup(req.Label); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "BACKUP_ERROR")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "label": req.Label})
}

// Restore handles POST /api/v1/restore
func (h *Handlers) Restore(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required", "MISSING_LABEL")
		return
	}

	if err := h.store.Restore(req.Label); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "RESTORE_ERROR")
		return
	}

	// Resync the in-memory plan with the restored snapshot for today.
	// A backup without today's plan wiped the table row, so the held
	// plan is dropped too; the next event redraws and persists one.
	today := time.Now().In(h.tz).Format("2006-01-02")
	if p, err := h.store.LoadPlan(today); err == nil {
		if p != nil {
			h.plans.Restore(p)
		} else {
			h.plans.Drop(today)
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "label": req.Label})
}
