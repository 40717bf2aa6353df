package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/clinichq/clinic-backend/pkg/database"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/google/uuid"
)

// Medicine categories derived from the free-text type field.
const (
	CategoryMedicine = "Medicine"
	CategorySupply   = "Supply"
)

// supplyTypes is the set of medicine types bucketed as supplies/equipment.
var supplyTypes = map[string]bool{
	"Equipment":      true,
	"Supply":         true,
	"Medical Supply": true,
}

// IsSupplyType reports whether a medicine type belongs to the supply bucket.
func IsSupplyType(medicineType string) bool {
	return supplyTypes[medicineType]
}

// Medicine represents a catalog entry
type Medicine struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Type           string    `db:"type" json:"type"`
	Unit           string    `db:"unit" json:"unit"`
	DosageStrength *string   `db:"dosage_strength" json:"dosage_strength,omitempty"`
	Form           *string   `db:"form" json:"form,omitempty"`
	Description    *string   `db:"description" json:"description,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Category derives the catalog bucket from the type field.
func (m *Medicine) Category() string {
	if IsSupplyType(m.Type) {
		return CategorySupply
	}
	return CategoryMedicine
}

// MedicineRepository handles medicine catalog persistence
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// Create creates a new medicine
func (r *MedicineRepository) Create(ctx context.Context, m *Medicine) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medicines (id, name, type, unit, dosage_strength, form, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.Name, m.Type, m.Unit, m.DosageStrength, m.Form, m.Description,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a medicine by ID
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*Medicine, error) {
	var m Medicine
	query := `SELECT * FROM medicines WHERE id = $1`
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &m, nil
}

// List lists all medicines ordered by name
func (r *MedicineRepository) List(ctx context.Context) ([]*Medicine, error) {
	var medicines []*Medicine
	query := `SELECT * FROM medicines ORDER BY name`
	if err := r.db.SelectContext(ctx, &medicines, query); err != nil {
		return nil, err
	}
	return medicines, nil
}

// Update updates a medicine (corrective edits only)
func (r *MedicineRepository) Update(ctx context.Context, m *Medicine) error {
	query := `
		UPDATE medicines SET
			name = $2, type = $3, unit = $4, dosage_strength = $5, form = $6,
			description = $7, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		m.ID, m.Name, m.Type, m.Unit, m.DosageStrength, m.Form, m.Description,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}

	return nil
}

// Delete deletes a medicine. The foreign key from inventory_batches is
// RESTRICT, so a medicine with stock cannot be removed.
func (r *MedicineRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM medicines WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}

	return nil
}
