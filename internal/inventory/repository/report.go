package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinichq/clinic-backend/pkg/database"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/google/uuid"
)

// Report statuses
const (
	ReportStatusDraft     = "draft"
	ReportStatusSubmitted = "submitted"
)

// StockEntry is one line of a monthly report snapshot.
type StockEntry struct {
	MedicineName string `json:"medicine_name"`
	CurrentStock int    `json:"current_stock"`
}

// StockEntries is a JSONB column of report lines.
type StockEntries []StockEntry

// Value implements driver.Valuer
func (s StockEntries) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal(StockEntries{})
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *StockEntries) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type %T for StockEntries", src)
	}
	return json.Unmarshal(b, s)
}

// OrderMap maps medicine name to requested order quantity, stored as JSONB.
type OrderMap map[string]int

// Value implements driver.Valuer
func (m OrderMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(OrderMap{})
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *OrderMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type %T for OrderMap", src)
	}
	return json.Unmarshal(b, m)
}

// MonthlyReport is a campus's inventory snapshot for one month. At most one
// report exists per campus and period, enforced by a unique constraint.
type MonthlyReport struct {
	ID            string       `db:"id" json:"id"`
	Campus        string       `db:"campus" json:"campus"`
	ReportMonth   int          `db:"report_month" json:"report_month"`
	ReportYear    int          `db:"report_year" json:"report_year"`
	StockEntries  StockEntries `db:"stock_entries" json:"stock_entries"`
	OrderRequests OrderMap     `db:"order_requests" json:"order_requests"`
	Status        string       `db:"status" json:"status"`
	GeneratedBy   string       `db:"generated_by" json:"generated_by"`
	SubmittedAt   *time.Time   `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// ReportRepository handles monthly report persistence
type ReportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a draft report. A duplicate campus/period surfaces as a
// Conflict through the unique constraint rather than a racy pre-check.
func (r *ReportRepository) Create(ctx context.Context, report *MonthlyReport) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.Status == "" {
		report.Status = ReportStatusDraft
	}

	query := `
		INSERT INTO monthly_inventory_reports (
			id, campus, report_month, report_year, stock_entries,
			order_requests, status, generated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		report.ID, report.Campus, report.ReportMonth, report.ReportYear,
		report.StockEntries, report.OrderRequests, report.Status, report.GeneratedBy,
	).Scan(&report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*MonthlyReport, error) {
	var report MonthlyReport
	query := `SELECT * FROM monthly_inventory_reports WHERE id = $1`
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("report")
		}
		return nil, err
	}
	return &report, nil
}

// List returns reports, optionally scoped to one campus, newest period first.
func (r *ReportRepository) List(ctx context.Context, campus string) ([]*MonthlyReport, error) {
	var reports []*MonthlyReport
	query := `
		SELECT * FROM monthly_inventory_reports
		WHERE ($1 = '' OR campus = $1)
		ORDER BY report_year DESC, report_month DESC, campus ASC
	`
	if err := r.db.SelectContext(ctx, &reports, query, campus); err != nil {
		return nil, err
	}
	return reports, nil
}

// ListSubmitted returns all submitted reports for one period.
func (r *ReportRepository) ListSubmitted(ctx context.Context, month, year int) ([]*MonthlyReport, error) {
	var reports []*MonthlyReport
	query := `
		SELECT * FROM monthly_inventory_reports
		WHERE report_month = $1 AND report_year = $2 AND status = 'submitted'
		ORDER BY campus ASC
	`
	if err := r.db.SelectContext(ctx, &reports, query, month, year); err != nil {
		return nil, err
	}
	return reports, nil
}

// UpdateEntries replaces a draft report's stock snapshot and order request
// map together.
func (r *ReportRepository) UpdateEntries(ctx context.Context, id string, entries StockEntries, orders OrderMap) error {
	query := `
		UPDATE monthly_inventory_reports
		SET stock_entries = $2, order_requests = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, entries, orders)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("report")
	}

	return nil
}

// Submit flips a report to submitted. Only status and submitted_at change;
// stock entries and order requests are left exactly as drafted.
func (r *ReportRepository) Submit(ctx context.Context, id string) error {
	query := `
		UPDATE monthly_inventory_reports
		SET status = 'submitted', submitted_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("report")
	}

	return nil
}

// Delete deletes a report
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM monthly_inventory_reports WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("report")
	}

	return nil
}
