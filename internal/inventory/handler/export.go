package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinichq/clinic-backend/internal/inventory/service"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
)

// ExportHandler serves report compilation downloads
type ExportHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(svc *service.ReportService, log *logger.Logger) *ExportHandler {
	return &ExportHandler{
		service: svc,
		logger:  log,
	}
}

func serveFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Write(body)
}

// CompilationXLSX serves the compilation as a workbook
func (h *ExportHandler) CompilationXLSX(w http.ResponseWriter, r *http.Request) {
	month := queryInt(r, "month", 0)
	year := queryInt(r, "year", 0)

	body, err := h.service.ExportCompilationXLSX(r.Context(), actor.FromContext(r.Context()), month, year)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filename := fmt.Sprintf("inventory-compilation-%d-%02d.xlsx", year, month)
	serveFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", filename, body)
}

// CompilationCSV serves the compilation stock table as CSV
func (h *ExportHandler) CompilationCSV(w http.ResponseWriter, r *http.Request) {
	month := queryInt(r, "month", 0)
	year := queryInt(r, "year", 0)

	body, err := h.service.ExportCompilationCSV(r.Context(), actor.FromContext(r.Context()), month, year)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filename := fmt.Sprintf("inventory-compilation-%d-%02d.csv", year, month)
	serveFile(w, "text/csv", filename, body)
}

// CompilationPDF serves the compilation as a PDF
func (h *ExportHandler) CompilationPDF(w http.ResponseWriter, r *http.Request) {
	month := queryInt(r, "month", 0)
	year := queryInt(r, "year", 0)

	body, err := h.service.ExportCompilationPDF(r.Context(), actor.FromContext(r.Context()), month, year)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filename := fmt.Sprintf("inventory-compilation-%d-%02d.pdf", year, month)
	serveFile(w, "application/pdf", filename, body)
}

// ReportPDF serves a single campus report as a PDF
func (h *ExportHandler) ReportPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, report, err := h.service.ExportReportPDF(r.Context(), actor.FromContext(r.Context()), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filename := fmt.Sprintf("monthly-report-%s-%d-%02d.pdf", report.Campus, report.ReportYear, report.ReportMonth)
	serveFile(w, "application/pdf", filename, body)
}
