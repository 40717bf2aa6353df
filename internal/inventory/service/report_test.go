package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinichq/clinic-backend/internal/inventory/events"
	"github.com/clinichq/clinic-backend/internal/inventory/repository"
	"github.com/clinichq/clinic-backend/internal/inventory/service"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/clinichq/clinic-backend/pkg/logger"
	"github.com/clinichq/clinic-backend/pkg/messaging"
	"github.com/clinichq/clinic-backend/pkg/testutil"
)

var reportColumns = []string{
	"id", "campus", "report_month", "report_year", "stock_entries",
	"order_requests", "status", "generated_by", "submitted_at",
	"created_at", "updated_at",
}

func newReportService(mockDB *testutil.MockDB, pub *testutil.MockPublisher) *service.ReportService {
	log := logger.New("test", "test")
	return service.NewReportService(
		repository.NewReportRepository(mockDB.DB),
		repository.NewBatchRepository(mockDB.DB),
		repository.NewMedicineRepository(mockDB.DB),
		events.NewInventoryEventPublisher(pub),
		log,
	)
}

func admin() *actor.Actor {
	return &actor.Actor{
		ID:     "admin-1",
		Name:   "Ada Admin",
		Email:  "ada@clinic.edu",
		Role:   actor.RoleAdmin,
		Campus: "Main Campus",
	}
}

func reportRow(id, campus, status string, stockJSON, ordersJSON string) *sqlmock.Rows {
	now := time.Now()
	return testutil.MockRows(reportColumns...).AddRow(
		id, campus, 8, 2026, []byte(stockJSON), []byte(ordersJSON),
		status, "nurse-1", nil, now, now,
	)
}

func TestGenerateSnapshotsStockSorted(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())
	now := time.Now()

	mockDB.ExpectQuery("GROUP BY medicine_id").
		WithArgs("THS").
		WillReturnRows(testutil.MockRows("medicine_id", "total").
			AddRow("med-para", 120).
			AddRow("med-amox", 45))

	mockDB.ExpectQuery("SELECT * FROM medicines ORDER BY name").
		WillReturnRows(testutil.MockRows(
			"id", "name", "type", "unit", "dosage_strength", "form", "description", "created_at", "updated_at",
		).
			AddRow("med-amox", "Amoxicillin 250mg", "Antibiotic", "capsules", nil, nil, nil, now, now).
			AddRow("med-cet", "Cetirizine 10mg", "Antihistamine", "tablets", nil, nil, nil, now, now).
			AddRow("med-para", "Paracetamol 500mg", "Analgesic", "tablets", nil, nil, nil, now, now))

	mockDB.ExpectQuery("INSERT INTO monthly_inventory_reports").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	report, err := svc.Generate(context.Background(), nurse("THS"), &service.GenerateRequest{
		Campus:      "THS",
		ReportMonth: 8,
		ReportYear:  2026,
	})
	require.NoError(t, err)

	assert.Equal(t, repository.ReportStatusDraft, report.Status)
	// every catalog medicine appears, zero when the campus holds none, sorted
	require.Len(t, report.StockEntries, 3)
	assert.Equal(t, "Amoxicillin 250mg", report.StockEntries[0].MedicineName)
	assert.Equal(t, 45, report.StockEntries[0].CurrentStock)
	assert.Equal(t, "Cetirizine 10mg", report.StockEntries[1].MedicineName)
	assert.Equal(t, 0, report.StockEntries[1].CurrentStock)
	assert.Equal(t, "Paracetamol 500mg", report.StockEntries[2].MedicineName)
	assert.Equal(t, 120, report.StockEntries[2].CurrentStock)

	// order quantities start at zero for every medicine
	require.Len(t, report.OrderRequests, 3)
	assert.Equal(t, 0, report.OrderRequests["Paracetamol 500mg"])

	mockDB.ExpectationsWereMet(t)
}

func TestGenerateDuplicatePeriodConflicts(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())
	now := time.Now()

	mockDB.ExpectQuery("GROUP BY medicine_id").
		WillReturnRows(testutil.MockRows("medicine_id", "total"))
	mockDB.ExpectQuery("SELECT * FROM medicines ORDER BY name").
		WillReturnRows(testutil.MockRows(
			"id", "name", "type", "unit", "dosage_strength", "form", "description", "created_at", "updated_at",
		).AddRow("med-1", "Paracetamol 500mg", "Analgesic", "tablets", nil, nil, nil, now, now))
	mockDB.ExpectQuery("INSERT INTO monthly_inventory_reports").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "monthly_reports_report_period_key"})

	_, err := svc.Generate(context.Background(), nurse("THS"), &service.GenerateRequest{
		Campus:      "THS",
		ReportMonth: 8,
		ReportYear:  2026,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "already exists for this campus and period")

	mockDB.ExpectationsWereMet(t)
}

func TestGenerateForOtherCampusForbidden(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())

	_, err := svc.Generate(context.Background(), nurse("THS"), &service.GenerateRequest{
		Campus:      "SHS",
		ReportMonth: 8,
		ReportYear:  2026,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestSubmitTouchesOnlyStatus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newReportService(mockDB, pub)
	now := time.Now()

	stock := `[{"medicine_name":"Paracetamol 500mg","current_stock":120}]`
	orders := `{"Paracetamol 500mg":50}`

	mockDB.ExpectQuery("SELECT * FROM monthly_inventory_reports WHERE id = $1").
		WillReturnRows(reportRow("rep-1", "THS", "draft", stock, orders))
	// the submit statement carries no stock or order parameters
	mockDB.ExpectExec("SET status = 'submitted', submitted_at = NOW()").
		WithArgs("rep-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("SELECT * FROM monthly_inventory_reports WHERE id = $1").
		WillReturnRows(testutil.MockRows(reportColumns...).AddRow(
			"rep-1", "THS", 8, 2026, []byte(stock), []byte(orders),
			"submitted", "nurse-1", now, now, now,
		))

	report, err := svc.Submit(context.Background(), nurse("THS"), "rep-1")
	require.NoError(t, err)

	assert.Equal(t, repository.ReportStatusSubmitted, report.Status)
	require.Len(t, report.StockEntries, 1)
	assert.Equal(t, 120, report.StockEntries[0].CurrentStock)
	assert.Equal(t, 50, report.OrderRequests["Paracetamol 500mg"])

	pub.AssertEventPublished(t, messaging.EventReportSubmitted)
	mockDB.ExpectationsWereMet(t)
}

func TestSubmitTwiceConflicts(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())

	mockDB.ExpectQuery("SELECT * FROM monthly_inventory_reports WHERE id = $1").
		WillReturnRows(reportRow("rep-1", "THS", "submitted", `[]`, `{}`))

	_, err := svc.Submit(context.Background(), nurse("THS"), "rep-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	mockDB.ExpectationsWereMet(t)
}

func TestUpdateOrderRequestsBlockedAfterSubmit(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())

	mockDB.ExpectQuery("SELECT * FROM monthly_inventory_reports WHERE id = $1").
		WillReturnRows(reportRow("rep-1", "THS", "submitted", `[]`, `{}`))

	_, err := svc.UpdateOrderRequests(context.Background(), nurse("THS"), "rep-1", &service.UpdateOrdersRequest{
		Entries: []service.ReportEntry{
			{MedicineName: "Paracetamol 500mg", CurrentStock: 120, QuantityToOrder: 10},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	mockDB.ExpectationsWereMet(t)
}

func TestUpdateOrderRequestsOverwritesBothArrays(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())
	now := time.Now()

	stock := `[{"medicine_name":"Paracetamol 500mg","current_stock":110}]`
	orders := `{"Paracetamol 500mg":40}`

	mockDB.ExpectQuery("SELECT * FROM monthly_inventory_reports WHERE id = $1").
		WillReturnRows(reportRow("rep-1", "THS", "draft", `[]`, `{}`))
	mockDB.ExpectExec("SET stock_entries = $2, order_requests = $3").
		WithArgs("rep-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("SELECT * FROM monthly_inventory_reports WHERE id = $1").
		WillReturnRows(testutil.MockRows(reportColumns...).AddRow(
			"rep-1", "THS", 8, 2026, []byte(stock), []byte(orders),
			"draft", "nurse-1", nil, now, now,
		))

	report, err := svc.UpdateOrderRequests(context.Background(), nurse("THS"), "rep-1", &service.UpdateOrdersRequest{
		Entries: []service.ReportEntry{
			{MedicineName: "Paracetamol 500mg", CurrentStock: 110, QuantityToOrder: 40},
		},
	})
	require.NoError(t, err)
	require.Len(t, report.StockEntries, 1)
	assert.Equal(t, 110, report.StockEntries[0].CurrentStock)
	assert.Equal(t, 40, report.OrderRequests["Paracetamol 500mg"])

	mockDB.ExpectationsWereMet(t)
}

func TestUpdateOrderRequestsRejectsNegative(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())

	_, err := svc.UpdateOrderRequests(context.Background(), nurse("THS"), "rep-1", &service.UpdateOrdersRequest{
		Entries: []service.ReportEntry{
			{MedicineName: "Paracetamol 500mg", CurrentStock: 120, QuantityToOrder: -1},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestCompileUnionsMedicinesWithZeroDefault(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())
	now := time.Now()

	rows := testutil.MockRows(reportColumns...).
		AddRow("rep-main", "Main Campus", 8, 2026,
			[]byte(`[{"medicine_name":"Paracetamol 500mg","current_stock":120},{"medicine_name":"Amoxicillin 250mg","current_stock":30}]`),
			[]byte(`{"Amoxicillin 250mg":20}`),
			"submitted", "nurse-1", now, now, now).
		AddRow("rep-ths", "THS", 8, 2026,
			[]byte(`[{"medicine_name":"Cetirizine 10mg","current_stock":60}]`),
			[]byte(`{"Cetirizine 10mg":15,"Amoxicillin 250mg":5}`),
			"submitted", "nurse-2", now, now, now)

	mockDB.ExpectQuery("AND status = 'submitted'").
		WithArgs(8, 2026).
		WillReturnRows(rows)

	comp, err := svc.Compile(context.Background(), admin(), 8, 2026)
	require.NoError(t, err)

	assert.Equal(t, []string{"Main Campus", "THS"}, comp.Campuses)

	// union of both campuses' medicines, sorted by name
	require.Len(t, comp.Rows, 3)
	assert.Equal(t, "Amoxicillin 250mg", comp.Rows[0].MedicineName)
	assert.Equal(t, "Cetirizine 10mg", comp.Rows[1].MedicineName)
	assert.Equal(t, "Paracetamol 500mg", comp.Rows[2].MedicineName)

	// campuses that did not report a medicine default to zero
	assert.Equal(t, 0, comp.Rows[0].StockPer["THS"])
	assert.Equal(t, 30, comp.Rows[0].StockPer["Main Campus"])
	assert.Equal(t, 30, comp.Rows[0].Total)
	assert.Equal(t, 0, comp.Rows[1].StockPer["Main Campus"])
	assert.Equal(t, 60, comp.Rows[1].Total)

	// order quantities stay attributed to the requesting campus
	assert.Equal(t, 20, comp.Rows[0].OrderPer["Main Campus"])
	assert.Equal(t, 5, comp.Rows[0].OrderPer["THS"])
	assert.Equal(t, 25, comp.Rows[0].OrderTotal)
	assert.Equal(t, 0, comp.Rows[1].OrderPer["Main Campus"])
	assert.Equal(t, 15, comp.Rows[1].OrderPer["THS"])

	// order requests sum across campuses
	assert.Equal(t, 25, comp.OrderTotals["Amoxicillin 250mg"])
	assert.Equal(t, 15, comp.OrderTotals["Cetirizine 10mg"])

	mockDB.ExpectationsWereMet(t)
}

func TestCompileForbiddenForNurse(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())

	_, err := svc.Compile(context.Background(), nurse("THS"), 8, 2026)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestCompileNoSubmittedReports(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())

	mockDB.ExpectQuery("AND status = 'submitted'").
		WithArgs(7, 2026).
		WillReturnRows(testutil.MockRows(reportColumns...))

	_, err := svc.Compile(context.Background(), admin(), 7, 2026)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}
