package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/clinichq/clinic-backend/internal/inventory/events"
	"github.com/clinichq/clinic-backend/internal/inventory/repository"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/campus"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
	"github.com/clinichq/clinic-backend/pkg/messaging"
)

// ReportService generates, edits, submits and compiles monthly inventory
// reports.
type ReportService struct {
	reports   *repository.ReportRepository
	batches   *repository.BatchRepository
	medicines *repository.MedicineRepository
	publisher *events.InventoryEventPublisher
	logger    *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(
	reports *repository.ReportRepository,
	batches *repository.BatchRepository,
	medicines *repository.MedicineRepository,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *ReportService {
	return &ReportService{
		reports:   reports,
		batches:   batches,
		medicines: medicines,
		publisher: publisher,
		logger:    log.WithComponent("report-service"),
	}
}

// GenerateRequest selects the campus and period of a new report.
type GenerateRequest struct {
	Campus      string `json:"campus" validate:"required"`
	ReportMonth int    `json:"report_month" validate:"required,gte=1,lte=12"`
	ReportYear  int    `json:"report_year" validate:"required,gte=2000,lte=2100"`
}

// Generate snapshots a campus's current stock into a new draft report.
// Stock is summed per medicine over all of the campus's batches at the
// moment of generation; a second report for the same campus and period is
// rejected as a conflict.
func (s *ReportService) Generate(ctx context.Context, act *actor.Actor, req *GenerateRequest) (*repository.MonthlyReport, error) {
	if !act.CanGenerateReports() {
		return nil, errors.Forbidden("you are not allowed to generate reports")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	if !campus.Valid(req.Campus) {
		return nil, errors.Validation(map[string]string{"campus": "unknown campus"})
	}
	if !act.IsAdmin() && req.Campus != act.Campus {
		return nil, errors.Forbidden("you may only generate reports for your own campus")
	}

	totals, err := s.batches.StockTotalsByMedicine(ctx, req.Campus)
	if err != nil {
		return nil, err
	}

	medicines, err := s.medicines.List(ctx)
	if err != nil {
		return nil, err
	}

	// Every catalog medicine gets a row, zero when the campus holds none.
	entries := make(repository.StockEntries, 0, len(medicines))
	orders := make(repository.OrderMap, len(medicines))
	for _, m := range medicines {
		entries = append(entries, repository.StockEntry{
			MedicineName: m.Name,
			CurrentStock: totals[m.ID],
		})
		orders[m.Name] = 0
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].MedicineName < entries[j].MedicineName
	})

	report := &repository.MonthlyReport{
		Campus:        req.Campus,
		ReportMonth:   req.ReportMonth,
		ReportYear:    req.ReportYear,
		StockEntries:  entries,
		OrderRequests: orders,
		Status:        repository.ReportStatusDraft,
		GeneratedBy:   act.ID,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("report_id", report.ID).
		Str("campus", report.Campus).
		Int("month", report.ReportMonth).
		Int("year", report.ReportYear).
		Msg("monthly report generated")
	return report, nil
}

// Get returns one report visible to the actor.
func (s *ReportService) Get(ctx context.Context, act *actor.Actor, id string) (*repository.MonthlyReport, error) {
	if !act.CanGenerateReports() {
		return nil, errors.Forbidden("you are not allowed to view reports")
	}

	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope := act.CampusScope(); scope != "" && report.Campus != scope {
		return nil, errors.NotFound("report")
	}
	return report, nil
}

// List returns the reports the actor may see.
func (s *ReportService) List(ctx context.Context, act *actor.Actor) ([]*repository.MonthlyReport, error) {
	if !act.CanGenerateReports() {
		return nil, errors.Forbidden("you are not allowed to view reports")
	}
	return s.reports.List(ctx, act.CampusScope())
}

// ReportEntry is one caller-supplied line of a draft edit.
type ReportEntry struct {
	MedicineName    string `json:"medicine_name" validate:"required"`
	CurrentStock    int    `json:"current_stock" validate:"gte=0"`
	QuantityToOrder int    `json:"quantity_to_order" validate:"gte=0"`
}

// UpdateOrdersRequest replaces a draft's stock snapshot and order quantities.
type UpdateOrdersRequest struct {
	Entries []ReportEntry `json:"entries" validate:"required,min=1,dive"`
}

// UpdateOrderRequests overwrites a draft report's stock entries and order
// requests from the supplied lines. Submitted reports are immutable.
func (s *ReportService) UpdateOrderRequests(ctx context.Context, act *actor.Actor, id string, req *UpdateOrdersRequest) (*repository.MonthlyReport, error) {
	if !act.CanGenerateReports() {
		return nil, errors.Forbidden("you are not allowed to edit reports")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	report, err := s.Get(ctx, act, id)
	if err != nil {
		return nil, err
	}
	if report.Status != repository.ReportStatusDraft {
		return nil, errors.Conflict("submitted reports cannot be edited")
	}

	entries := make(repository.StockEntries, 0, len(req.Entries))
	orders := make(repository.OrderMap, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, repository.StockEntry{
			MedicineName: e.MedicineName,
			CurrentStock: e.CurrentStock,
		})
		orders[e.MedicineName] = e.QuantityToOrder
	}

	if err := s.reports.UpdateEntries(ctx, id, entries, orders); err != nil {
		return nil, err
	}
	return s.reports.GetByID(ctx, id)
}

// Submit finalizes a draft report. Stock entries and order requests are
// preserved exactly as drafted.
func (s *ReportService) Submit(ctx context.Context, act *actor.Actor, id string) (*repository.MonthlyReport, error) {
	if !act.CanGenerateReports() {
		return nil, errors.Forbidden("you are not allowed to submit reports")
	}

	report, err := s.Get(ctx, act, id)
	if err != nil {
		return nil, err
	}
	if report.Status != repository.ReportStatusDraft {
		return nil, errors.Conflict("report has already been submitted")
	}

	if err := s.reports.Submit(ctx, id); err != nil {
		return nil, err
	}

	s.publisher.PublishReportSubmitted(ctx, messaging.ReportSubmittedEvent{
		ReportID: id,
		Campus:   report.Campus,
		Month:    report.ReportMonth,
		Year:     report.ReportYear,
	})

	return s.reports.GetByID(ctx, id)
}

// DeleteDraft removes an unsubmitted report.
func (s *ReportService) DeleteDraft(ctx context.Context, act *actor.Actor, id string) error {
	if !act.CanGenerateReports() {
		return errors.Forbidden("you are not allowed to delete reports")
	}

	report, err := s.Get(ctx, act, id)
	if err != nil {
		return err
	}
	if report.Status != repository.ReportStatusDraft {
		return errors.Conflict("submitted reports cannot be deleted")
	}

	return s.reports.Delete(ctx, id)
}

// Compilation is the cross-campus view of one reporting period.
type Compilation struct {
	ReportMonth int               `json:"report_month"`
	ReportYear  int               `json:"report_year"`
	Campuses    []string          `json:"campuses"`
	Rows        []CompilationRow  `json:"rows"`
	OrderTotals map[string]int    `json:"order_totals"`
	CompiledAt  time.Time         `json:"compiled_at"`
	Statuses    map[string]string `json:"statuses"`
}

// CompilationRow is one medicine's stock and order quantities across every
// reporting campus.
type CompilationRow struct {
	MedicineName string         `json:"medicine_name"`
	StockPer     map[string]int `json:"stock_per_campus"`
	OrderPer     map[string]int `json:"order_per_campus"`
	Total        int            `json:"total"`
	OrderTotal   int            `json:"order_total"`
}

// Compile merges every submitted report for one period into a single table.
// Medicine rows are the union of all campuses' entries, sorted by name, with
// zero filled in where a campus did not report a medicine.
func (s *ReportService) Compile(ctx context.Context, act *actor.Actor, month, year int) (*Compilation, error) {
	if !act.CanCompileReports() {
		return nil, errors.Forbidden("only administrators may compile reports")
	}
	if month < 1 || month > 12 {
		return nil, errors.Validation(map[string]string{"month": "month must be between 1 and 12"})
	}

	reports, err := s.reports.ListSubmitted(ctx, month, year)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, errors.NotFound(fmt.Sprintf("submitted reports for %d-%02d", year, month))
	}

	campuses := make([]string, 0, len(reports))
	stockByName := make(map[string]map[string]int)
	ordersByName := make(map[string]map[string]int)
	orderTotals := make(map[string]int)
	statuses := make(map[string]string)
	seen := make(map[string]bool)

	for _, r := range reports {
		campuses = append(campuses, r.Campus)
		statuses[r.Campus] = r.Status
		for _, e := range r.StockEntries {
			per, ok := stockByName[e.MedicineName]
			if !ok {
				per = make(map[string]int)
				stockByName[e.MedicineName] = per
			}
			per[r.Campus] = e.CurrentStock
			seen[e.MedicineName] = true
		}
		for name, qty := range r.OrderRequests {
			per, ok := ordersByName[name]
			if !ok {
				per = make(map[string]int)
				ordersByName[name] = per
			}
			per[r.Campus] = qty
			orderTotals[name] += qty
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]CompilationRow, 0, len(names))
	for _, name := range names {
		stockPer := make(map[string]int, len(campuses))
		orderPer := make(map[string]int, len(campuses))
		total := 0
		orderTotal := 0
		for _, c := range campuses {
			stock := stockByName[name][c]
			order := ordersByName[name][c]
			stockPer[c] = stock
			orderPer[c] = order
			total += stock
			orderTotal += order
		}
		rows = append(rows, CompilationRow{
			MedicineName: name,
			StockPer:     stockPer,
			OrderPer:     orderPer,
			Total:        total,
			OrderTotal:   orderTotal,
		})
	}

	return &Compilation{
		ReportMonth: month,
		ReportYear:  year,
		Campuses:    campuses,
		Rows:        rows,
		OrderTotals: orderTotals,
		CompiledAt:  time.Now().UTC(),
		Statuses:    statuses,
	}, nil
}
