package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maltedev/mercadona-scraper/internal/database"
	"github.com/maltedev/mercadona-scraper/internal/scraper"
)

const (
	pendingWarnThreshold    = 1000
	deadLetterFailThreshold = 100
)

// ProgressSource is satisfied by *scraper.Progress.
type ProgressSource interface {
	Snapshot() scraper.ProgressSnapshot
}

// OutboxStats reports mirror backlog. It is optional.
type OutboxStats interface {
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// Handlers serves the status endpoints of a single run.
type Handlers struct {
	runID    string
	progress ProgressSource
	outbox   OutboxStats
	logger   *slog.Logger
}

// NewHandlers creates the status handlers. progress and outbox may be nil
// when the run has no progress tracker or no database mirror.
func NewHandlers(runID string, progress ProgressSource, outbox OutboxStats, logger *slog.Logger) *Handlers {
	return &Handlers{
		runID:    runID,
		progress: progress,
		outbox:   outbox,
		logger:   logger,
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string          `json:"status"`
	RunID   string          `json:"run_id"`
	Message string          `json:"message,omitempty"`
	Outbox  *OutboxResponse `json:"outbox,omitempty"`
}

type OutboxResponse struct {
	Pending    int64 `json:"pending"`
	DeadLetter int64 `json:"dead_letter"`
}

// Health reports liveness and, when the mirror is enabled, the outbox backlog.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", RunID: h.runID}
	status := http.StatusOK

	if h.outbox != nil {
		pending, err := h.outbox.CountByStatus(r.Context(), database.OutboxStatusPending)
		if err != nil {
			h.logger.Error("failed to count pending events", "error", err)
			h.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "error",
				RunID:   h.runID,
				Message: "failed to read outbox backlog",
			})
			return
		}
		deadLetter, err := h.outbox.CountByStatus(r.Context(), database.OutboxStatusDeadLetter)
		if err != nil {
			h.logger.Error("failed to count dead letter events", "error", err)
			h.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "error",
				RunID:   h.runID,
				Message: "failed to read outbox backlog",
			})
			return
		}
		resp.Outbox = &OutboxResponse{Pending: pending, DeadLetter: deadLetter}

		if pending > pendingWarnThreshold {
			resp.Status = "warning"
			resp.Message = "high number of pending outbox events"
		}
		if deadLetter > deadLetterFailThreshold {
			resp.Status = "error"
			resp.Message = "high number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, resp)
}

// Progress returns a snapshot of the running scrape.
func (h *Handlers) Progress(w http.ResponseWriter, r *http.Request) {
	if h.progress == nil {
		h.respondError(w, http.StatusServiceUnavailable, "no run in progress")
		return
	}
	h.respondJSON(w, http.StatusOK, h.progress.Snapshot())
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
