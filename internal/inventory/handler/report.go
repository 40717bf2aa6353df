package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinichq/clinic-backend/internal/inventory/service"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
)

// ReportHandler handles monthly report endpoints
type ReportHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  log,
	}
}

// Generate snapshots current stock into a new draft report
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req service.GenerateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	report, err := h.service.Generate(r.Context(), actor.FromContext(r.Context()), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, report)
}

// List lists reports visible to the actor
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.List(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, reports)
}

// Get gets a report by ID
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.service.Get(r.Context(), actor.FromContext(r.Context()), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// UpdateOrders replaces a draft report's stock entries and order requests
func (h *ReportHandler) UpdateOrders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.UpdateOrdersRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	report, err := h.service.UpdateOrderRequests(r.Context(), actor.FromContext(r.Context()), id, &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// Submit finalizes a draft report
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.service.Submit(r.Context(), actor.FromContext(r.Context()), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// Delete removes a draft report
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteDraft(r.Context(), actor.FromContext(r.Context()), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Compile merges submitted reports for a period into one table
func (h *ReportHandler) Compile(w http.ResponseWriter, r *http.Request) {
	month := queryInt(r, "month", 0)
	year := queryInt(r, "year", 0)

	compilation, err := h.service.Compile(r.Context(), actor.FromContext(r.Context()), month, year)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, compilation)
}
