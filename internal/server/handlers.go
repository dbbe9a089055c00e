package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ppiankov/pghealth/internal/history"
	"github.com/ppiankov/pghealth/internal/models"
)

const defaultMetricDays = 7

// HeaderHealthStatus carries the outcome of the most recent inspection on every response:
// healthy, degraded or critical, or "unknown" before the first report.
const HeaderHealthStatus = "X-Health-Status"

const statusUnknown = "unknown"

// Inspector runs a full health check.
type Inspector interface {
	Inspect(ctx context.Context) (*models.Report, error)
}

// Advisor produces ranked recommendations.
type Advisor interface {
	Recommend(ctx context.Context) ([]models.Recommendation, error)
}

// HistoryReader is the read side of the history store.
type HistoryReader interface {
	QueryEntries(ctx context.Context, q history.EntryQuery) ([]models.HistoryEntry, error)
	ListMetricNames(ctx context.Context, database string) ([]string, error)
	QueryMetric(ctx context.Context, database, metric string, lookback time.Duration) ([]models.MetricPoint, error)
}

// MetricResponse is the body of the metric series route.
type MetricResponse struct {
	Database string               `json:"database"`
	Metric   string               `json:"metric"`
	Days     int                  `json:"days"`
	Points   []models.MetricPoint `json:"points"`
	Trend    history.Trend        `json:"trend"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	deps Dependencies
	last atomic.Value
}

func newHandler(deps Dependencies) *handler {
	h := &handler{deps: deps}
	h.last.Store(statusUnknown)
	return h
}

// healthStatus stamps every response with the last known outcome.
// GetReport overwrites it with the fresh one.
func (h *handler) healthStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderHealthStatus, h.last.Load().(string))
		next.ServeHTTP(w, r)
	})
}

func (h *handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetReport answers with the report's outcome status: 503 when critical.
func (h *handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	report, err := h.deps.Inspector.Inspect(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("health check failed")
		writeError(ctx, w, http.StatusInternalServerError, "health check failed: "+err.Error())
		return
	}

	outcome := report.Outcome()
	h.last.Store(outcome.String())
	w.Header().Set(HeaderHealthStatus, outcome.String())
	writeJSON(ctx, w, outcome.HTTPStatus(), report)
}

func (h *handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	recs, err := h.deps.Advisor.Recommend(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("recommendation analysis failed")
		writeError(ctx, w, http.StatusInternalServerError, "recommendation analysis failed: "+err.Error())
		return
	}
	if recs == nil {
		recs = []models.Recommendation{}
	}

	writeJSON(ctx, w, http.StatusOK, recs)
}

func (h *handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	if !h.historyAvailable(ctx, w) {
		return
	}

	days, err := daysParam(r, int(history.DefaultLookback/(24*time.Hour)))
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := positiveIntParam(r, "limit", history.DefaultLimit)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.deps.History.QueryEntries(ctx, history.EntryQuery{
		Database: r.URL.Query().Get("database"),
		Lookback: history.Days(days),
		Limit:    limit,
	})
	if h.historyMissing(ctx, w, err) {
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to query history")
		writeError(ctx, w, http.StatusInternalServerError, "failed to query history")
		return
	}

	writeJSON(ctx, w, http.StatusOK, entries)
}

func (h *handler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	if !h.historyAvailable(ctx, w) {
		return
	}
	database := chi.URLParam(r, "database")

	names, err := h.deps.History.ListMetricNames(ctx, database)
	if h.historyMissing(ctx, w, err) {
		return
	}
	if err != nil {
		logger.Error().Err(err).Str("database", database).Msg("failed to list metrics")
		writeError(ctx, w, http.StatusInternalServerError, "failed to list metrics")
		return
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(ctx, w, http.StatusOK, names)
}

func (h *handler) GetMetric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	if !h.historyAvailable(ctx, w) {
		return
	}
	database := chi.URLParam(r, "database")
	metric := chi.URLParam(r, "metric")

	days, err := daysParam(r, defaultMetricDays)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := h.deps.History.QueryMetric(ctx, database, metric, history.Days(days))
	if h.historyMissing(ctx, w, err) {
		return
	}
	if err != nil {
		logger.Error().Err(err).Str("database", database).Str("metric", metric).Msg("failed to query metric")
		writeError(ctx, w, http.StatusInternalServerError, "failed to query metric")
		return
	}
	if points == nil {
		points = []models.MetricPoint{}
	}

	writeJSON(ctx, w, http.StatusOK, MetricResponse{
		Database: database,
		Metric:   metric,
		Days:     days,
		Points:   points,
		Trend:    history.Summarize(points),
	})
}

func (h *handler) historyAvailable(ctx context.Context, w http.ResponseWriter) bool {
	if h.deps.History != nil {
		return true
	}
	writeError(ctx, w, http.StatusServiceUnavailable, "history store is not available")
	return false
}

// historyMissing answers 503 when the history file has not been created yet.
func (h *handler) historyMissing(ctx context.Context, w http.ResponseWriter, err error) bool {
	if !errors.Is(err, history.ErrNoHistory) {
		return false
	}
	writeError(ctx, w, http.StatusServiceUnavailable, "no history recorded yet")
	return true
}

func daysParam(r *http.Request, fallback int) (int, error) {
	days, err := positiveIntParam(r, "days", fallback)
	if err != nil {
		return 0, err
	}
	if days > history.MaxLookbackDays {
		return 0, fmt.Errorf("invalid 'days' parameter: must not exceed %d", history.MaxLookbackDays)
	}
	return days, nil
}

func positiveIntParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid '%s' parameter: expected a positive integer", name)
	}
	return n, nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, errorResponse{Error: msg})
}
