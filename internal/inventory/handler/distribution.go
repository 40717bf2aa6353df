package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinichq/clinic-backend/internal/inventory/service"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
)

// DistributionHandler handles distribution and notification endpoints
type DistributionHandler struct {
	service *service.DistributionService
	logger  *logger.Logger
}

// NewDistributionHandler creates a new distribution handler
func NewDistributionHandler(svc *service.DistributionService, log *logger.Logger) *DistributionHandler {
	return &DistributionHandler{
		service: svc,
		logger:  log,
	}
}

// Create records a transfer between campuses
func (h *DistributionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.TransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	dist, err := h.service.Transfer(r.Context(), actor.FromContext(r.Context()), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, dist)
}

// List lists distributions visible to the actor's campus
func (h *DistributionHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", service.DefaultPerPage)

	distributions, total, err := h.service.List(r.Context(), actor.FromContext(r.Context()), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	p := service.NormalizePage(page, perPage)
	httputil.JSONWithMeta(w, http.StatusOK, distributions, pageMeta(p.Number, p.PerPage, int(total)))
}

// Get gets a distribution by ID
func (h *DistributionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dist, err := h.service.Get(r.Context(), actor.FromContext(r.Context()), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, dist)
}

// UpdateStatus updates a distribution's status
func (h *DistributionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.UpdateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	dist, err := h.service.UpdateStatus(r.Context(), actor.FromContext(r.Context()), id, &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, dist)
}

// Notifications lists the actor's campus notifications
func (h *DistributionHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", service.DefaultPerPage)

	notifications, err := h.service.Notifications(r.Context(), actor.FromContext(r.Context()), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, notifications)
}

// UnreadCount returns the campus's unread notification count
func (h *DistributionHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.UnreadCount(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"unread": count})
}

// MarkNotificationRead marks one notification as read
func (h *DistributionHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.MarkNotificationRead(r.Context(), actor.FromContext(r.Context()), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// MarkAllNotificationsRead marks all campus notifications as read
func (h *DistributionHandler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.MarkAllNotificationsRead(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"marked_read": count})
}
