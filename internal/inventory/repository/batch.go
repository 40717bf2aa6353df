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

// DefaultExpiryWindowDays is the forward-looking window for expiry alerts.
const DefaultExpiryWindowDays = 30

// InventoryBatch represents one stock lot of a medicine at a campus.
// A medicine's on-hand stock at a campus is always the sum over its batches;
// there is no denormalized current-stock column.
type InventoryBatch struct {
	ID                string    `db:"id" json:"id"`
	MedicineID        string    `db:"medicine_id" json:"medicine_id"`
	Campus            string    `db:"campus" json:"campus"`
	Quantity          int       `db:"quantity" json:"quantity"`
	ExpiryDate        time.Time `db:"expiry_date" json:"expiry_date"`
	BatchNumber       string    `db:"batch_number" json:"batch_number"`
	Distributor       string    `db:"distributor" json:"distributor"`
	DateAdded         time.Time `db:"date_added" json:"date_added"`
	LowStockThreshold int       `db:"low_stock_threshold" json:"low_stock_threshold"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports whether the batch is at or below its own threshold.
func (b *InventoryBatch) IsLowStock() bool {
	return b.Quantity <= b.LowStockThreshold
}

// IsNearingExpiry reports whether the batch expires within windowDays of now,
// both bounds inclusive. Already-expired batches are a distinct condition and
// are excluded here; see IsExpired.
func (b *InventoryBatch) IsNearingExpiry(now time.Time, windowDays int) bool {
	if b.ExpiryDate.Before(now) {
		return false
	}
	return !b.ExpiryDate.After(now.AddDate(0, 0, windowDays))
}

// IsExpired reports whether the batch's expiry date has passed.
func (b *InventoryBatch) IsExpired(now time.Time) bool {
	return b.ExpiryDate.Before(now)
}

// BatchWithMedicine is a batch row joined with its catalog entry.
type BatchWithMedicine struct {
	InventoryBatch
	MedicineName string `db:"medicine_name" json:"medicine_name"`
	MedicineType string `db:"medicine_type" json:"medicine_type"`
	MedicineUnit string `db:"medicine_unit" json:"medicine_unit"`
}

// BatchFilter narrows a batch listing.
type BatchFilter struct {
	Campus string // empty = all campuses
	Type   string // all | medicines | supplies
	Search string // matches medicine name/type, batch number, distributor
}

// SummaryStats holds campus-scoped ledger counts.
type SummaryStats struct {
	TotalBatches      int64 `db:"total_batches" json:"total_batches"`
	MedicineBatches   int64 `db:"medicine_batches" json:"medicine_batches"`
	SupplyBatches     int64 `db:"supply_batches" json:"supply_batches"`
	LowStockCount     int64 `db:"low_stock_count" json:"low_stock_count"`
	ExpiringSoonCount int64 `db:"expiring_soon_count" json:"expiring_soon_count"`
	ExpiredCount      int64 `db:"expired_count" json:"expired_count"`
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchInsert = `
	INSERT INTO inventory_batches (
		id, medicine_id, campus, quantity, expiry_date, batch_number,
		distributor, date_added, low_stock_threshold
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at, updated_at
`

// Create appends a new batch row. Batches are never merged: multiple
// shipments of the same medicine and batch number are separate rows.
func (r *BatchRepository) Create(ctx context.Context, b *InventoryBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.DateAdded.IsZero() {
		b.DateAdded = time.Now().UTC()
	}

	err := r.db.QueryRowxContext(ctx, batchInsert,
		b.ID, b.MedicineID, b.Campus, b.Quantity, b.ExpiryDate, b.BatchNumber,
		b.Distributor, b.DateAdded, b.LowStockThreshold,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// CreateTx appends a new batch row inside an existing transaction.
func (r *BatchRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, b *InventoryBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.DateAdded.IsZero() {
		b.DateAdded = time.Now().UTC()
	}

	err := tx.QueryRowxContext(ctx, batchInsert,
		b.ID, b.MedicineID, b.Campus, b.Quantity, b.ExpiryDate, b.BatchNumber,
		b.Distributor, b.DateAdded, b.LowStockThreshold,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*InventoryBatch, error) {
	var b InventoryBatch
	query := `SELECT * FROM inventory_batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &b, nil
}

// GetByIDForUpdate loads a batch under a row lock within the given
// transaction. Used by the transfer engine so the availability check and the
// decrement see the same quantity.
func (r *BatchRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*InventoryBatch, error) {
	var b InventoryBatch
	query := `SELECT * FROM inventory_batches WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &b, nil
}

// DeductTx atomically decrements a batch quantity, refusing to go below zero.
// Returns ErrInsufficientStock (wrapped) when the conditional update matches
// no row.
func (r *BatchRepository) DeductTx(ctx context.Context, tx *sqlx.Tx, id string, quantity int) error {
	query := `
		UPDATE inventory_batches
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`
	result, err := tx.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.ErrInsufficientStock
	}

	return nil
}

// ListFiltered lists batches joined with their medicine, newest first.
func (r *BatchRepository) ListFiltered(ctx context.Context, f BatchFilter) ([]*BatchWithMedicine, error) {
	var batches []*BatchWithMedicine
	query := `
		SELECT b.*, m.name AS medicine_name, m.type AS medicine_type, m.unit AS medicine_unit
		FROM inventory_batches b
		JOIN medicines m ON m.id = b.medicine_id
		WHERE ($1 = '' OR b.campus = $1)
		AND (
			$2 = '' OR $2 = 'all'
			OR ($2 = 'supplies' AND m.type IN ('Equipment', 'Supply', 'Medical Supply'))
			OR ($2 = 'medicines' AND m.type NOT IN ('Equipment', 'Supply', 'Medical Supply'))
		)
		AND (
			$3 = ''
			OR m.name ILIKE '%' || $3 || '%'
			OR m.type ILIKE '%' || $3 || '%'
			OR b.batch_number ILIKE '%' || $3 || '%'
			OR b.distributor ILIKE '%' || $3 || '%'
		)
		ORDER BY b.created_at DESC
	`
	if err := r.db.SelectContext(ctx, &batches, query, f.Campus, f.Type, f.Search); err != nil {
		return nil, err
	}
	return batches, nil
}

// Update corrects a batch row
func (r *BatchRepository) Update(ctx context.Context, b *InventoryBatch) error {
	query := `
		UPDATE inventory_batches SET
			quantity = $2, expiry_date = $3, batch_number = $4,
			distributor = $5, low_stock_threshold = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		b.ID, b.Quantity, b.ExpiryDate, b.BatchNumber, b.Distributor, b.LowStockThreshold,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// Delete deletes a batch
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM inventory_batches WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// TotalStockForMedicine sums a medicine's quantity over all its batches at a
// campus (all campuses when campus is empty).
func (r *BatchRepository) TotalStockForMedicine(ctx context.Context, medicineID, campus string) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(quantity) FROM inventory_batches
		WHERE medicine_id = $1 AND ($2 = '' OR campus = $2)
	`
	if err := r.db.GetContext(ctx, &total, query, medicineID, campus); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// StockTotalsByMedicine returns per-medicine quantity sums for a campus.
func (r *BatchRepository) StockTotalsByMedicine(ctx context.Context, campus string) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT medicine_id, COALESCE(SUM(quantity), 0) AS total
		FROM inventory_batches
		WHERE campus = $1
		GROUP BY medicine_id
	`, campus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var medicineID string
		var total int
		if err := rows.Scan(&medicineID, &total); err != nil {
			return nil, err
		}
		totals[medicineID] = total
	}
	return totals, rows.Err()
}

// Summary computes ledger counts, optionally scoped to one campus. The
// unscoped and campus-scoped cases share the same query with an optional
// predicate.
func (r *BatchRepository) Summary(ctx context.Context, campus string, windowDays int) (*SummaryStats, error) {
	var stats SummaryStats
	query := `
		SELECT
			COUNT(*) AS total_batches,
			COUNT(*) FILTER (WHERE m.type NOT IN ('Equipment', 'Supply', 'Medical Supply')) AS medicine_batches,
			COUNT(*) FILTER (WHERE m.type IN ('Equipment', 'Supply', 'Medical Supply')) AS supply_batches,
			COUNT(*) FILTER (WHERE b.quantity <= b.low_stock_threshold) AS low_stock_count,
			COUNT(*) FILTER (WHERE b.expiry_date >= NOW() AND b.expiry_date <= NOW() + INTERVAL '1 day' * $2) AS expiring_soon_count,
			COUNT(*) FILTER (WHERE b.expiry_date < NOW()) AS expired_count
		FROM inventory_batches b
		JOIN medicines m ON m.id = b.medicine_id
		WHERE ($1 = '' OR b.campus = $1)
	`
	if err := r.db.GetContext(ctx, &stats, query, campus, windowDays); err != nil {
		return nil, err
	}
	return &stats, nil
}
