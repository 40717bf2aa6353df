package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/clinichq/clinic-backend/pkg/database"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Distribution statuses
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var distributionStatuses = map[string]bool{
	StatusPending:   true,
	StatusApproved:  true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// ValidStatus reports whether s is a known distribution status.
func ValidStatus(s string) bool {
	return distributionStatuses[s]
}

// Distribution records a stock movement between campuses. Medicine name,
// type and unit plus the source batch's number and expiry are snapshotted at
// transfer time so the record survives later catalog or batch edits.
type Distribution struct {
	ID              string     `db:"id" json:"id"`
	ReferenceNumber string     `db:"reference_number" json:"reference_number"`
	MedicineID      string     `db:"medicine_id" json:"medicine_id"`
	MedicineName    string     `db:"medicine_name" json:"medicine_name"`
	MedicineType    string     `db:"medicine_type" json:"medicine_type"`
	MedicineUnit    string     `db:"medicine_unit" json:"medicine_unit"`
	SourceBatchID   string     `db:"source_batch_id" json:"source_batch_id"`
	BatchNumber     string     `db:"batch_number" json:"batch_number"`
	ExpiryDate      time.Time  `db:"expiry_date" json:"expiry_date"`
	FromCampus      string     `db:"from_campus" json:"from_campus"`
	ToCampus        string     `db:"to_campus" json:"to_campus"`
	ToDepartment    string     `db:"to_department" json:"to_department"`
	Quantity        int        `db:"quantity" json:"quantity"`
	Status          string     `db:"status" json:"status"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	DistributedBy   string     `db:"distributed_by" json:"distributed_by"`
	DistributedAt   time.Time  `db:"distributed_at" json:"distributed_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// DistributionRepository handles distribution persistence
type DistributionRepository struct {
	db *database.DB
}

// NewDistributionRepository creates a new distribution repository
func NewDistributionRepository(db *database.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

// CreateTx inserts a distribution inside an existing transaction.
func (r *DistributionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, d *Distribution) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.DistributedAt.IsZero() {
		d.DistributedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO distributions (
			id, reference_number, medicine_id, medicine_name, medicine_type,
			medicine_unit, source_batch_id, batch_number, expiry_date,
			from_campus, to_campus, to_department, quantity, status, notes,
			distributed_by, distributed_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		d.ID, d.ReferenceNumber, d.MedicineID, d.MedicineName, d.MedicineType,
		d.MedicineUnit, d.SourceBatchID, d.BatchNumber, d.ExpiryDate,
		d.FromCampus, d.ToCampus, d.ToDepartment, d.Quantity, d.Status, d.Notes,
		d.DistributedBy, d.DistributedAt, d.CompletedAt,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a distribution by ID
func (r *DistributionRepository) GetByID(ctx context.Context, id string) (*Distribution, error) {
	var d Distribution
	query := `SELECT * FROM distributions WHERE id = $1`
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("distribution")
		}
		return nil, err
	}
	return &d, nil
}

// List returns distributions visible to a campus, newest first. A campus
// sees transfers it sent or received; empty campus sees everything.
func (r *DistributionRepository) List(ctx context.Context, campus string, limit, offset int) ([]*Distribution, int64, error) {
	var total int64
	countQuery := `
		SELECT COUNT(*) FROM distributions
		WHERE ($1 = '' OR from_campus = $1 OR to_campus = $1)
	`
	if err := r.db.GetContext(ctx, &total, countQuery, campus); err != nil {
		return nil, 0, err
	}

	var distributions []*Distribution
	query := `
		SELECT * FROM distributions
		WHERE ($1 = '' OR from_campus = $1 OR to_campus = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &distributions, query, campus, limit, offset); err != nil {
		return nil, 0, err
	}
	return distributions, total, nil
}

// UpdateStatus sets a distribution's status. completed_at is stamped when
// moving to completed and cleared otherwise.
func (r *DistributionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE distributions SET
			status = $2,
			completed_at = CASE WHEN $2 = 'completed' THEN NOW() ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("distribution")
	}

	return nil
}

// RecentCounts holds a campus's distribution activity over a trailing window.
type RecentCounts struct {
	Incoming int64 `db:"incoming" json:"incoming"`
	Outgoing int64 `db:"outgoing" json:"outgoing"`
}

// RecentCounts counts transfers touching a campus in the last days days.
// Empty campus counts all transfers as both directions are unscoped.
func (r *DistributionRepository) RecentCounts(ctx context.Context, campus string, days int) (*RecentCounts, error) {
	var counts RecentCounts
	query := `
		SELECT
			COUNT(*) FILTER (WHERE $1 = '' OR to_campus = $1) AS incoming,
			COUNT(*) FILTER (WHERE $1 = '' OR from_campus = $1) AS outgoing
		FROM distributions
		WHERE created_at >= NOW() - INTERVAL '1 day' * $2
	`
	if err := r.db.GetContext(ctx, &counts, query, campus, days); err != nil {
		return nil, err
	}
	return &counts, nil
}
