package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clinichq/clinic-backend/internal/records/service"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
)

// RecordsHandler handles consultation and nurse note endpoints
type RecordsHandler struct {
	service *service.RecordsService
	logger  *logger.Logger
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(svc *service.RecordsService, log *logger.Logger) *RecordsHandler {
	return &RecordsHandler{
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

// CreateConsultation records a clinic visit
func (h *RecordsHandler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	var req service.CreateConsultationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	c, err := h.service.CreateConsultation(r.Context(), actor.FromContext(r.Context()), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, c)
}

// ListConsultations lists visits
func (h *RecordsHandler) ListConsultations(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", service.DefaultPerPage)
	search := r.URL.Query().Get("search")

	consultations, total, err := h.service.ListConsultations(r.Context(), actor.FromContext(r.Context()), search, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, consultations, &httputil.Meta{
		Page:    page,
		PerPage: perPage,
		Total:   total,
	})
}

// GetConsultation gets a visit by ID
func (h *RecordsHandler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.service.GetConsultation(r.Context(), actor.FromContext(r.Context()), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, c)
}

// UpdateConsultation corrects a visit record
func (h *RecordsHandler) UpdateConsultation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.UpdateConsultationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	c, err := h.service.UpdateConsultation(r.Context(), actor.FromContext(r.Context()), id, &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, c)
}

// DeleteConsultation removes a visit record
func (h *RecordsHandler) DeleteConsultation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteConsultation(r.Context(), actor.FromContext(r.Context()), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ConsultationNotes lists notes attached to a visit
func (h *RecordsHandler) ConsultationNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	notes, err := h.service.NotesForConsultation(r.Context(), actor.FromContext(r.Context()), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, notes)
}

// CreateNote writes a nurse note
func (h *RecordsHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req service.CreateNoteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	n, err := h.service.CreateNote(r.Context(), actor.FromContext(r.Context()), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, n)
}

// ListNotes lists nurse notes
func (h *RecordsHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", service.DefaultPerPage)

	notes, err := h.service.ListNotes(r.Context(), actor.FromContext(r.Context()), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, notes)
}

// UpdateNote edits a nurse note
func (h *RecordsHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.UpdateNoteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	n, err := h.service.UpdateNote(r.Context(), actor.FromContext(r.Context()), id, &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, n)
}

// DeleteNote removes a nurse note
func (h *RecordsHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteNote(r.Context(), actor.FromContext(r.Context()), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
