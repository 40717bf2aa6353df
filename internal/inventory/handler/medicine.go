package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinichq/clinic-backend/internal/inventory/service"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
)

// MedicineHandler handles medicine catalog endpoints
type MedicineHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(svc *service.InventoryService, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		service: svc,
		logger:  log,
	}
}

// List lists all medicines
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.service.ListMedicines(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicines)
}

// Get gets a medicine by ID
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	medicine, err := h.service.GetMedicine(r.Context(), actor.FromContext(r.Context()), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// Create creates a new medicine
func (h *MedicineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMedicineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	medicine, err := h.service.CreateMedicine(r.Context(), actor.FromContext(r.Context()), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, medicine)
}

// Update updates a medicine
func (h *MedicineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.UpdateMedicineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	medicine, err := h.service.UpdateMedicine(r.Context(), actor.FromContext(r.Context()), id, &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// Delete deletes a medicine
func (h *MedicineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteMedicine(r.Context(), actor.FromContext(r.Context()), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
