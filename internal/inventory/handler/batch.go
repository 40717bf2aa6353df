package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clinichq/clinic-backend/internal/inventory/service"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
)

// BatchHandler handles inventory batch endpoints
type BatchHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.InventoryService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func listRequest(r *http.Request) service.ListBatchesRequest {
	q := r.URL.Query()
	return service.ListBatchesRequest{
		Campus:  q.Get("campus"),
		Type:    q.Get("type"),
		Search:  q.Get("search"),
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", service.DefaultPerPage),
	}
}

func pageMeta(page, perPage, total int) *httputil.Meta {
	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}
	return &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int64(total),
		TotalPages: totalPages,
	}
}

// List lists batches with derived flags, paginated
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	req := listRequest(r)

	batches, total, err := h.service.ListBatches(r.Context(), actor.FromContext(r.Context()), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	p := service.NormalizePage(req.Page, req.PerPage)
	httputil.JSONWithMeta(w, http.StatusOK, batches, pageMeta(p.Number, p.PerPage, total))
}

// ListGrouped lists batches grouped by medicine, paginated over groups
func (h *BatchHandler) ListGrouped(w http.ResponseWriter, r *http.Request) {
	req := listRequest(r)

	groups, total, err := h.service.ListGrouped(r.Context(), actor.FromContext(r.Context()), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	p := service.NormalizePage(req.Page, req.PerPage)
	httputil.JSONWithMeta(w, http.StatusOK, groups, pageMeta(p.Number, p.PerPage, total))
}

// Summary returns ledger counts for the dashboard
func (h *BatchHandler) Summary(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Summary(r.Context(), actor.FromContext(r.Context()), r.URL.Query().Get("campus"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// Create records a new batch
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.AddBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.service.AddBatch(r.Context(), actor.FromContext(r.Context()), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// Update corrects a batch
func (h *BatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.AdjustBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.service.AdjustBatch(r.Context(), actor.FromContext(r.Context()), id, &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Delete deletes a batch
func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteBatch(r.Context(), actor.FromContext(r.Context()), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
