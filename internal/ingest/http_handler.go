package ingest

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"bbbpartner/internal/httpx"
)

type HTTPHandler struct {
	svc  *Service
	repo Repository
	// ctx outlives the trigger request; runs stop when it is cancelled.
	ctx  context.Context
	done func(*Report, error)
}

func NewHTTPHandler(ctx context.Context, svc *Service, repo Repository, done func(*Report, error)) *HTTPHandler {
	return &HTTPHandler{svc: svc, repo: repo, ctx: ctx, done: done}
}

type ExportRequest struct {
	BBBIDs        []string `json:"bbb_ids" validate:"max=500,dive,bbb_id"`
	Ignore        []string `json:"ignore" validate:"max=500,dive,bbb_id"`
	SkipProcessed bool     `json:"skip_processed"`
}

type ExportAccepted struct {
	BatchID string `json:"batch_id"`
	Status  string `json:"status"`
}

// TriggerExport handles POST /internal/jobs/export. The export runs in the
// background; poll GET /v1/runs?batch_id= for progress.
func (h *HTTPHandler) TriggerExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}

	opts := Options{Only: req.BBBIDs, Ignore: req.Ignore, SkipProcessed: req.SkipProcessed}
	batchID, err := h.svc.Start(h.ctx, opts, h.done)
	if errors.Is(err, ErrRunInProgress) {
		httpx.JSONError(w, r, http.StatusConflict, "RUN_IN_PROGRESS", err.Error(), nil)
		return
	}
	if err != nil {
		httpx.JSONError(w, r, http.StatusInternalServerError, "EXPORT_FAILED", err.Error(), nil)
		return
	}

	log.Printf("export triggered batch=%s request_id=%s bbb_ids=%v", batchID, httpx.RequestIDFrom(r), req.BBBIDs)
	httpx.JSONAccepted(w, r, ExportAccepted{BatchID: batchID, Status: StatusRunning})
}

// ListRuns handles GET /v1/runs
func (h *HTTPHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := RunFilter{BBBID: q.Get("bbb_id"), BatchID: q.Get("batch_id")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and 500",
				[]httpx.ErrorDetail{{Field: "limit", Message: "limit must be between 1 and 500"}})
			return
		}
		filter.Limit = n
	}

	runs, err := h.repo.ListRuns(r.Context(), filter)
	if err != nil {
		log.Printf("list runs failed request_id=%s err=%v", httpx.RequestIDFrom(r), err)
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "cannot list runs", nil)
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	httpx.JSONSuccess(w, r, runs, map[string]any{"count": len(runs), "limit": filter.limit()})
}
