package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	"github.com/clinichq/clinic-backend/internal/inventory/repository"
	"github.com/clinichq/clinic-backend/pkg/actor"
)

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

func periodLabel(month, year int) string {
	if month >= 1 && month <= 12 {
		return fmt.Sprintf("%s %d", monthNames[month-1], year)
	}
	return fmt.Sprintf("%d-%02d", year, month)
}

// ExportCompilationXLSX renders the cross-campus compilation as a workbook
// with one stock sheet and one order request sheet.
func (s *ReportService) ExportCompilationXLSX(ctx context.Context, act *actor.Actor, month, year int) ([]byte, error) {
	comp, err := s.Compile(ctx, act, month, year)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const stockSheet = "Stock"
	f.SetSheetName("Sheet1", stockSheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DCE6F1"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Inventory Compilation %s", periodLabel(comp.ReportMonth, comp.ReportYear))
	f.SetCellValue(stockSheet, "A1", title)

	// Each campus gets a merged header over a Current Stock / Qty to Order
	// column pair, followed by the cross-campus totals pair.
	setHeader := func(col, row int, value string) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		f.SetCellValue(stockSheet, cell, value)
		f.SetCellStyle(stockSheet, cell, cell, headerStyle)
	}
	mergeHeader := func(fromCol, toCol int, value string) {
		from, _ := excelize.CoordinatesToCellName(fromCol, 3)
		to, _ := excelize.CoordinatesToCellName(toCol, 4)
		f.MergeCell(stockSheet, from, to)
		f.SetCellValue(stockSheet, from, value)
		f.SetCellStyle(stockSheet, from, to, headerStyle)
	}

	mergeHeader(1, 1, "Medicine")
	for i, c := range comp.Campuses {
		start := 2 + 2*i
		from, _ := excelize.CoordinatesToCellName(start, 3)
		to, _ := excelize.CoordinatesToCellName(start+1, 3)
		f.MergeCell(stockSheet, from, to)
		f.SetCellValue(stockSheet, from, c)
		f.SetCellStyle(stockSheet, from, to, headerStyle)
		setHeader(start, 4, "Current Stock")
		setHeader(start+1, 4, "Qty to Order")
	}
	totalsStart := 2 + 2*len(comp.Campuses)
	mergeHeader(totalsStart, totalsStart, "Total Stock")
	mergeHeader(totalsStart+1, totalsStart+1, "Total Needed Across Campus")

	for rowIdx, row := range comp.Rows {
		line := rowIdx + 5
		cell, _ := excelize.CoordinatesToCellName(1, line)
		f.SetCellValue(stockSheet, cell, row.MedicineName)
		for colIdx, c := range comp.Campuses {
			stockCell, _ := excelize.CoordinatesToCellName(2+2*colIdx, line)
			orderCell, _ := excelize.CoordinatesToCellName(3+2*colIdx, line)
			f.SetCellValue(stockSheet, stockCell, row.StockPer[c])
			f.SetCellValue(stockSheet, orderCell, row.OrderPer[c])
		}
		totalCell, _ := excelize.CoordinatesToCellName(totalsStart, line)
		orderTotalCell, _ := excelize.CoordinatesToCellName(totalsStart+1, line)
		f.SetCellValue(stockSheet, totalCell, row.Total)
		f.SetCellValue(stockSheet, orderTotalCell, row.OrderTotal)
	}
	f.SetColWidth(stockSheet, "A", "A", 35)

	const orderSheet = "Order Requests"
	if _, err := f.NewSheet(orderSheet); err != nil {
		return nil, err
	}
	f.SetCellValue(orderSheet, "A1", "Medicine")
	f.SetCellValue(orderSheet, "B1", "Requested Quantity")
	f.SetCellStyle(orderSheet, "A1", "B1", headerStyle)

	orderNames := make([]string, 0, len(comp.OrderTotals))
	for name := range comp.OrderTotals {
		orderNames = append(orderNames, name)
	}
	sort.Strings(orderNames)
	for i, name := range orderNames {
		f.SetCellValue(orderSheet, fmt.Sprintf("A%d", i+2), name)
		f.SetCellValue(orderSheet, fmt.Sprintf("B%d", i+2), comp.OrderTotals[name])
	}
	f.SetColWidth(orderSheet, "A", "A", 35)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportCompilationCSV renders the compilation stock table as CSV.
func (s *ReportService) ExportCompilationCSV(ctx context.Context, act *actor.Actor, month, year int) ([]byte, error) {
	comp, err := s.Compile(ctx, act, month, year)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Medicine"}
	for _, c := range comp.Campuses {
		header = append(header, c+" Current Stock", c+" Qty to Order")
	}
	header = append(header, "Total Stock", "Total Needed Across Campus")
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, row := range comp.Rows {
		record := make([]string, 0, len(header))
		record = append(record, row.MedicineName)
		for _, c := range comp.Campuses {
			record = append(record, strconv.Itoa(row.StockPer[c]), strconv.Itoa(row.OrderPer[c]))
		}
		record = append(record, strconv.Itoa(row.Total), strconv.Itoa(row.OrderTotal))
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportCompilationPDF renders the compilation as a landscape PDF table.
func (s *ReportService) ExportCompilationPDF(ctx context.Context, act *actor.Actor, month, year int) ([]byte, error) {
	comp, err := s.Compile(ctx, act, month, year)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("Inventory Compilation - %s", periodLabel(comp.ReportMonth, comp.ReportYear)), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Compiled %s", comp.CompiledAt.Format("2006-01-02 15:04 MST")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageWidth - left - right
	nameWidth := usable * 0.28
	numWidth := (usable - nameWidth) / float64(2*len(comp.Campuses)+2)
	pairWidth := numWidth * 2

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(220, 230, 241)
		pdf.CellFormat(nameWidth, 6, "", "LTR", 0, "L", true, 0, "")
		for _, c := range comp.Campuses {
			pdf.CellFormat(pairWidth, 6, c, "1", 0, "C", true, 0, "")
		}
		pdf.CellFormat(pairWidth, 6, "Totals", "1", 1, "C", true, 0, "")
		pdf.CellFormat(nameWidth, 6, "Medicine", "LBR", 0, "L", true, 0, "")
		for range comp.Campuses {
			pdf.CellFormat(numWidth, 6, "Stock", "1", 0, "C", true, 0, "")
			pdf.CellFormat(numWidth, 6, "Order", "1", 0, "C", true, 0, "")
		}
		pdf.CellFormat(numWidth, 6, "Stock", "1", 0, "C", true, 0, "")
		pdf.CellFormat(numWidth, 6, "Order", "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}

	writeHeader()
	for _, row := range comp.Rows {
		if pdf.GetY() > 180 {
			pdf.AddPage()
			writeHeader()
		}
		pdf.CellFormat(nameWidth, 7, row.MedicineName, "1", 0, "L", false, 0, "")
		for _, c := range comp.Campuses {
			pdf.CellFormat(numWidth, 7, strconv.Itoa(row.StockPer[c]), "1", 0, "R", false, 0, "")
			pdf.CellFormat(numWidth, 7, strconv.Itoa(row.OrderPer[c]), "1", 0, "R", false, 0, "")
		}
		pdf.CellFormat(numWidth, 7, strconv.Itoa(row.Total), "1", 0, "R", false, 0, "")
		pdf.CellFormat(numWidth, 7, strconv.Itoa(row.OrderTotal), "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportReportPDF renders one campus report as a portrait PDF.
func (s *ReportService) ExportReportPDF(ctx context.Context, act *actor.Actor, id string) ([]byte, *repository.MonthlyReport, error) {
	report, err := s.Get(ctx, act, id)
	if err != nil {
		return nil, nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("Monthly Inventory Report - %s", report.Campus), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, periodLabel(report.ReportMonth, report.ReportYear), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Status: %s", report.Status), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(220, 230, 241)
	pdf.CellFormat(110, 8, "Medicine", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Current Stock", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 8, "Order Request", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, e := range report.StockEntries {
		pdf.CellFormat(110, 7, e.MedicineName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, strconv.Itoa(e.CurrentStock), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, strconv.Itoa(report.OrderRequests[e.MedicineName]), "1", 1, "R", false, 0, "")
	}

	if report.SubmittedAt != nil {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 6, fmt.Sprintf("Submitted %s", report.SubmittedAt.Format(time.RFC1123)), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), report, nil
}
