package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maltedev/mercadona-scraper/internal/database"
	"github.com/maltedev/mercadona-scraper/internal/metrics"
	"github.com/maltedev/mercadona-scraper/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticProgress scraper.ProgressSnapshot

func (p staticProgress) Snapshot() scraper.ProgressSnapshot {
	return scraper.ProgressSnapshot(p)
}

type MockOutboxStats struct {
	mock.Mock
}

func (m *MockOutboxStats) CountByStatus(ctx context.Context, status string) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("without mirror", func(t *testing.T) {
		router := NewRouter(NewHandlers("run-1", nil, nil, slog.Default()), nil)

		rec := serve(t, router, "/health")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "run-1", body.RunID)
		assert.Nil(t, body.Outbox)
	})

	tests := []struct {
		name       string
		pending    int64
		deadLetter int64
		wantCode   int
		wantStatus string
	}{
		{"healthy backlog", 3, 0, http.StatusOK, "ok"},
		{"large backlog", 1500, 0, http.StatusOK, "warning"},
		{"dead letters", 0, 101, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := new(MockOutboxStats)
			stats.On("CountByStatus", mock.Anything, database.OutboxStatusPending).Return(tt.pending, nil)
			stats.On("CountByStatus", mock.Anything, database.OutboxStatusDeadLetter).Return(tt.deadLetter, nil)

			router := NewRouter(NewHandlers("run-1", nil, stats, slog.Default()), nil)
			rec := serve(t, router, "/health")

			assert.Equal(t, tt.wantCode, rec.Code)
			var body HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body.Status)
			require.NotNil(t, body.Outbox)
			assert.Equal(t, tt.pending, body.Outbox.Pending)
			assert.Equal(t, tt.deadLetter, body.Outbox.DeadLetter)
			stats.AssertExpectations(t)
		})
	}

	t.Run("count failure reports error", func(t *testing.T) {
		stats := new(MockOutboxStats)
		stats.On("CountByStatus", mock.Anything, mock.Anything).Return(int64(0), errors.New("pool closed"))

		router := NewRouter(NewHandlers("run-1", nil, stats, slog.Default()), nil)
		rec := serve(t, router, "/health")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "error", body.Status)
		assert.Equal(t, "failed to read outbox backlog", body.Message)
		assert.Nil(t, body.Outbox)
	})
}

func TestProgress(t *testing.T) {
	snap := staticProgress{
		RunID:          "run-1",
		Category:       "Frescos",
		Subcategory:    "Carnes",
		LastProduct:    "Pechuga de pollo",
		RecordsWritten: 12,
		Skipped:        3,
		ResumeActive:   true,
		Elapsed:        "4m2s",
		Failures:       map[scraper.FailureKind]int{scraper.KindMissingTitle: 1},
	}
	router := NewRouter(NewHandlers("run-1", snap, nil, slog.Default()), nil)

	rec := serve(t, router, "/api/v1/progress")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "Carnes", body["subcategory"])
	assert.Equal(t, "Pechuga de pollo", body["last_product"])
	assert.Equal(t, float64(12), body["records_written"])
	assert.Equal(t, float64(3), body["products_skipped"])
	assert.Equal(t, true, body["resume_active"])
	assert.Equal(t, map[string]any{"missing_title": float64(1)}, body["failures"])
}

func TestProgress_NoRun(t *testing.T) {
	router := NewRouter(NewHandlers("run-1", nil, nil, slog.Default()), nil)

	rec := serve(t, router, "/api/v1/progress")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"no run in progress"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.IncRecorded("Frescos")

	router := NewRouter(NewHandlers("run-1", nil, nil, slog.Default()), m.Registry)

	rec := serve(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scraper_products_recorded_total{category="Frescos"} 1`)

	noMetrics := NewRouter(NewHandlers("run-1", nil, nil, slog.Default()), nil)
	assert.Equal(t, http.StatusNotFound, serve(t, noMetrics, "/metrics").Code)
}
