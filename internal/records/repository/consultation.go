package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/clinichq/clinic-backend/pkg/database"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/google/uuid"
)

// Consultation is one clinic visit record.
type Consultation struct {
	ID             string    `db:"id" json:"id"`
	Campus         string    `db:"campus" json:"campus"`
	PatientName    string    `db:"patient_name" json:"patient_name"`
	PatientType    string    `db:"patient_type" json:"patient_type"`
	GradeOrSection *string   `db:"grade_or_section" json:"grade_or_section,omitempty"`
	ChiefComplaint string    `db:"chief_complaint" json:"chief_complaint"`
	Diagnosis      *string   `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment      *string   `db:"treatment" json:"treatment,omitempty"`
	AttendedBy     string    `db:"attended_by" json:"attended_by"`
	ConsultedAt    time.Time `db:"consulted_at" json:"consulted_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ConsultationRepository handles consultation persistence
type ConsultationRepository struct {
	db *database.DB
}

// NewConsultationRepository creates a new consultation repository
func NewConsultationRepository(db *database.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

// Create creates a new consultation
func (r *ConsultationRepository) Create(ctx context.Context, c *Consultation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ConsultedAt.IsZero() {
		c.ConsultedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO consultations (
			id, campus, patient_name, patient_type, grade_or_section,
			chief_complaint, diagnosis, treatment, attended_by, consulted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		c.ID, c.Campus, c.PatientName, c.PatientType, c.GradeOrSection,
		c.ChiefComplaint, c.Diagnosis, c.Treatment, c.AttendedBy, c.ConsultedAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a consultation by ID
func (r *ConsultationRepository) GetByID(ctx context.Context, id string) (*Consultation, error) {
	var c Consultation
	query := `SELECT * FROM consultations WHERE id = $1`
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("consultation")
		}
		return nil, err
	}
	return &c, nil
}

// List returns consultations, optionally campus-scoped and searched,
// newest first.
func (r *ConsultationRepository) List(ctx context.Context, campus, search string, limit, offset int) ([]*Consultation, int64, error) {
	var total int64
	countQuery := `
		SELECT COUNT(*) FROM consultations
		WHERE ($1 = '' OR campus = $1)
		AND ($2 = '' OR patient_name ILIKE '%' || $2 || '%' OR chief_complaint ILIKE '%' || $2 || '%')
	`
	if err := r.db.GetContext(ctx, &total, countQuery, campus, search); err != nil {
		return nil, 0, err
	}

	var consultations []*Consultation
	query := `
		SELECT * FROM consultations
		WHERE ($1 = '' OR campus = $1)
		AND ($2 = '' OR patient_name ILIKE '%' || $2 || '%' OR chief_complaint ILIKE '%' || $2 || '%')
		ORDER BY consulted_at DESC
		LIMIT $3 OFFSET $4
	`
	if err := r.db.SelectContext(ctx, &consultations, query, campus, search, limit, offset); err != nil {
		return nil, 0, err
	}
	return consultations, total, nil
}

// Update updates a consultation
func (r *ConsultationRepository) Update(ctx context.Context, c *Consultation) error {
	query := `
		UPDATE consultations SET
			patient_name = $2, patient_type = $3, grade_or_section = $4,
			chief_complaint = $5, diagnosis = $6, treatment = $7,
			consulted_at = $8, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		c.ID, c.PatientName, c.PatientType, c.GradeOrSection,
		c.ChiefComplaint, c.Diagnosis, c.Treatment, c.ConsultedAt,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("consultation")
	}

	return nil
}

// Delete deletes a consultation
func (r *ConsultationRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM consultations WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("consultation")
	}

	return nil
}
