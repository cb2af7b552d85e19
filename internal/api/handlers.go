package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/campaign-dispatcher/internal/domain"
	"github.com/ignite/campaign-dispatcher/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatcher/internal/pkg/logger"
	"github.com/ignite/campaign-dispatcher/internal/service/dispatch"
	"github.com/ignite/campaign-dispatcher/internal/storage"
)

// Dispatcher runs one dispatch pass. Implemented by *dispatch.Service.
type Dispatcher interface {
	RunCampaignDispatch(ctx context.Context, today time.Time) (*domain.RunReport, error)
	Today() time.Time
}

// QueueInspector reports the mail queue depth.
type QueueInspector interface {
	Len(ctx context.Context) (int64, error)
}

// ReportReader reads archived run reports.
type ReportReader interface {
	GetRun(ctx context.Context, date, runID string) (*domain.RunReport, error)
	ListRuns(ctx context.Context, date string) ([]domain.RunReport, error)
}

// Handlers serves the dispatch endpoints. queue and reports may be nil.
type Handlers struct {
	dispatcher Dispatcher
	queue      QueueInspector
	reports    ReportReader
}

// NewHandlers creates the dispatch handlers.
func NewHandlers(d Dispatcher, queue QueueInspector, reports ReportReader) *Handlers {
	return &Handlers{dispatcher: d, queue: queue, reports: reports}
}

type runRequest struct {
	Date string `json:"date"`
}

type queueResponse struct {
	Depth int64 `json:"depth"`
}

// RegisterRoutes mounts the dispatch endpoints on r.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Post("/runs", h.TriggerRun)
	r.Get("/runs/{date}", h.ListRuns)
	r.Get("/runs/{date}/{runID}", h.GetRun)
	r.Get("/queue", h.QueueDepth)
}

// TriggerRun runs a dispatch synchronously and returns its report. The
// body is optional; without a date the current day is used.
//
//	POST /api/dispatch/runs
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	var today time.Time
	if req.Date != "" {
		d, err := domain.ParseDate(req.Date, h.dispatcher.Today().Location())
		if err != nil {
			httputil.BadRequest(w, "date must be YYYY-MM-DD")
			return
		}
		today = d
	}

	// a dropped client must not cut a run short
	report, err := h.dispatcher.RunCampaignDispatch(context.WithoutCancel(r.Context()), today)
	switch {
	case errors.Is(err, dispatch.ErrRunInProgress):
		httputil.Conflict(w, "run_in_progress", "a dispatch run is already in progress")
	case err != nil && report == nil:
		httputil.InternalError(w, err)
	case err != nil:
		logger.Warn("api: dispatch run aborted", "run_id", report.RunID, "error", err)
		httputil.JSON(w, http.StatusInternalServerError, report)
	default:
		httputil.OK(w, report)
	}
}

// ListRuns returns archived reports for one day.
//
//	GET /api/dispatch/runs/{date}
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		httputil.NotFound(w, "run storage is not configured")
		return
	}
	date := chi.URLParam(r, "date")
	if _, err := domain.ParseDate(date, nil); err != nil {
		httputil.BadRequest(w, "date must be YYYY-MM-DD")
		return
	}
	runs, err := h.reports.ListRuns(r.Context(), date)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, runs)
}

// GetRun returns one archived report.
//
//	GET /api/dispatch/runs/{date}/{runID}
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		httputil.NotFound(w, "run storage is not configured")
		return
	}
	date := chi.URLParam(r, "date")
	if _, err := domain.ParseDate(date, nil); err != nil {
		httputil.BadRequest(w, "date must be YYYY-MM-DD")
		return
	}
	report, err := h.reports.GetRun(r.Context(), date, chi.URLParam(r, "runID"))
	if errors.Is(err, storage.ErrNotFound) {
		httputil.NotFound(w, "run not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, report)
}

// QueueDepth reports how many messages wait in the mail queue.
//
//	GET /api/dispatch/queue
func (h *Handlers) QueueDepth(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		httputil.NotFound(w, "queue does not support inspection")
		return
	}
	n, err := h.queue.Len(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, queueResponse{Depth: n})
}
