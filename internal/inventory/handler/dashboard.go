package handler

import (
	"net/http"

	"github.com/clinichq/clinic-backend/internal/inventory/repository"
	"github.com/clinichq/clinic-backend/internal/inventory/service"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
)

// DashboardHandler aggregates the campus dashboard payload
type DashboardHandler struct {
	inventory     *service.InventoryService
	distributions *service.DistributionService
	logger        *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(inv *service.InventoryService, dist *service.DistributionService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		inventory:     inv,
		distributions: dist,
		logger:        log,
	}
}

type dashboardPayload struct {
	Summary             *repository.SummaryStats `json:"summary"`
	RecentDistributions *repository.RecentCounts `json:"recent_distributions"`
	UnreadNotifications int64                    `json:"unread_notifications"`
}

// Get returns the actor's campus dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	act := actor.FromContext(r.Context())

	summary, err := h.inventory.Summary(r.Context(), act, r.URL.Query().Get("campus"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	recent, err := h.distributions.RecentActivity(r.Context(), act)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	unread, err := h.distributions.UnreadCount(r.Context(), act)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, dashboardPayload{
		Summary:             summary,
		RecentDistributions: recent,
		UnreadNotifications: unread,
	})
}
