package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/clinichq/clinic-backend/pkg/database"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/google/uuid"
)

// NurseNote is a free-form clinical note, optionally tied to a consultation.
type NurseNote struct {
	ID             string    `db:"id" json:"id"`
	Campus         string    `db:"campus" json:"campus"`
	ConsultationID *string   `db:"consultation_id" json:"consultation_id,omitempty"`
	Title          string    `db:"title" json:"title"`
	Body           string    `db:"body" json:"body"`
	AuthorID       string    `db:"author_id" json:"author_id"`
	AuthorName     string    `db:"author_name" json:"author_name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// NoteRepository handles nurse note persistence
type NoteRepository struct {
	db *database.DB
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *database.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create creates a new note
func (r *NoteRepository) Create(ctx context.Context, n *NurseNote) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	query := `
		INSERT INTO nurse_notes (
			id, campus, consultation_id, title, body, author_id, author_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		n.ID, n.Campus, n.ConsultationID, n.Title, n.Body, n.AuthorID, n.AuthorName,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a note by ID
func (r *NoteRepository) GetByID(ctx context.Context, id string) (*NurseNote, error) {
	var n NurseNote
	query := `SELECT * FROM nurse_notes WHERE id = $1`
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("note")
		}
		return nil, err
	}
	return &n, nil
}

// List returns notes, optionally campus-scoped, newest first.
func (r *NoteRepository) List(ctx context.Context, campus string, limit, offset int) ([]*NurseNote, error) {
	var notes []*NurseNote
	query := `
		SELECT * FROM nurse_notes
		WHERE ($1 = '' OR campus = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &notes, query, campus, limit, offset); err != nil {
		return nil, err
	}
	return notes, nil
}

// ListByConsultation returns notes attached to one consultation.
func (r *NoteRepository) ListByConsultation(ctx context.Context, consultationID string) ([]*NurseNote, error) {
	var notes []*NurseNote
	query := `
		SELECT * FROM nurse_notes
		WHERE consultation_id = $1
		ORDER BY created_at ASC
	`
	if err := r.db.SelectContext(ctx, &notes, query, consultationID); err != nil {
		return nil, err
	}
	return notes, nil
}

// Update updates a note's title and body
func (r *NoteRepository) Update(ctx context.Context, n *NurseNote) error {
	query := `
		UPDATE nurse_notes SET title = $2, body = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, n.ID, n.Title, n.Body)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("note")
	}

	return nil
}

// Delete deletes a note
func (r *NoteRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM nurse_notes WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("note")
	}

	return nil
}
