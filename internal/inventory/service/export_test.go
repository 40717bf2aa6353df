package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/clinichq/clinic-backend/pkg/testutil"
)

func submittedReportRows() *sqlmock.Rows {
	now := time.Now()
	return testutil.MockRows(reportColumns...).
		AddRow("rep-main", "Main Campus", 8, 2026,
			[]byte(`[{"medicine_name":"Paracetamol 500mg","current_stock":120}]`),
			[]byte(`{"Paracetamol 500mg":40}`),
			"submitted", "nurse-1", now, now, now).
		AddRow("rep-ths", "THS", 8, 2026,
			[]byte(`[{"medicine_name":"Paracetamol 500mg","current_stock":30}]`),
			[]byte(`{}`),
			"submitted", "nurse-2", now, now, now)
}

func TestExportCompilationCSV(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())

	mockDB.ExpectQuery("AND status = 'submitted'").
		WithArgs(8, 2026).
		WillReturnRows(submittedReportRows())

	body, err := svc.ExportCompilationCSV(context.Background(), admin(), 8, 2026)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, []string{
		"Medicine",
		"Main Campus Current Stock", "Main Campus Qty to Order",
		"THS Current Stock", "THS Qty to Order",
		"Total Stock", "Total Needed Across Campus",
	}, records[0])
	assert.Equal(t, []string{"Paracetamol 500mg", "120", "40", "30", "0", "150", "40"}, records[1])

	mockDB.ExpectationsWereMet(t)
}

func TestExportCompilationPDF(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())

	mockDB.ExpectQuery("AND status = 'submitted'").
		WithArgs(8, 2026).
		WillReturnRows(submittedReportRows())

	body, err := svc.ExportCompilationPDF(context.Background(), admin(), 8, 2026)
	require.NoError(t, err)
	require.NotEmpty(t, body)
	assert.Equal(t, "%PDF", string(body[:4]))

	mockDB.ExpectationsWereMet(t)
}

func TestExportCompilationXLSX(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())

	mockDB.ExpectQuery("AND status = 'submitted'").
		WithArgs(8, 2026).
		WillReturnRows(submittedReportRows())

	body, err := svc.ExportCompilationXLSX(context.Background(), admin(), 8, 2026)
	require.NoError(t, err)
	require.NotEmpty(t, body)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	campusHeader, err := f.GetCellValue("Stock", "B3")
	require.NoError(t, err)
	assert.Equal(t, "Main Campus", campusHeader)

	stockSub, err := f.GetCellValue("Stock", "B4")
	require.NoError(t, err)
	assert.Equal(t, "Current Stock", stockSub)

	orderSub, err := f.GetCellValue("Stock", "C4")
	require.NoError(t, err)
	assert.Equal(t, "Qty to Order", orderSub)

	name, err := f.GetCellValue("Stock", "A5")
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 500mg", name)

	mainOrder, err := f.GetCellValue("Stock", "C5")
	require.NoError(t, err)
	assert.Equal(t, "40", mainOrder)

	thsOrder, err := f.GetCellValue("Stock", "E5")
	require.NoError(t, err)
	assert.Equal(t, "0", thsOrder)

	total, err := f.GetCellValue("Stock", "F5")
	require.NoError(t, err)
	assert.Equal(t, "150", total)

	needed, err := f.GetCellValue("Stock", "G5")
	require.NoError(t, err)
	assert.Equal(t, "40", needed)

	orderQty, err := f.GetCellValue("Order Requests", "B2")
	require.NoError(t, err)
	assert.Equal(t, "40", orderQty)

	mockDB.ExpectationsWereMet(t)
}

func TestExportReportPDF(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newReportService(mockDB, testutil.NewMockPublisher())

	mockDB.ExpectQuery("SELECT * FROM monthly_inventory_reports WHERE id = $1").
		WillReturnRows(reportRow("rep-1", "THS", "draft",
			`[{"medicine_name":"Paracetamol 500mg","current_stock":120}]`, `{}`))

	body, report, err := svc.ExportReportPDF(context.Background(), nurse("THS"), "rep-1")
	require.NoError(t, err)
	require.NotEmpty(t, body)
	assert.Equal(t, "%PDF", string(body[:4]))
	assert.Equal(t, "THS", report.Campus)

	mockDB.ExpectationsWereMet(t)
}
