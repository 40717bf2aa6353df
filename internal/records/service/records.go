package service

import (
	"context"
	"time"

	"github.com/clinichq/clinic-backend/internal/records/repository"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/campus"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
)

// Patient types recognized in consultations.
const (
	PatientStudent  = "student"
	PatientEmployee = "employee"
	PatientVisitor  = "visitor"
)

// Pagination defaults
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

func normalize(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// RecordsService handles consultations and nurse notes.
type RecordsService struct {
	consultations *repository.ConsultationRepository
	notes         *repository.NoteRepository
	logger        *logger.Logger
}

// NewRecordsService creates a new records service
func NewRecordsService(
	consultations *repository.ConsultationRepository,
	notes *repository.NoteRepository,
	log *logger.Logger,
) *RecordsService {
	return &RecordsService{
		consultations: consultations,
		notes:         notes,
		logger:        log.WithComponent("records-service"),
	}
}

// CreateConsultationRequest is the payload for recording a visit.
type CreateConsultationRequest struct {
	Campus         string     `json:"campus" validate:"required"`
	PatientName    string     `json:"patient_name" validate:"required,max=255"`
	PatientType    string     `json:"patient_type" validate:"required,oneof=student employee visitor"`
	GradeOrSection *string    `json:"grade_or_section,omitempty"`
	ChiefComplaint string     `json:"chief_complaint" validate:"required"`
	Diagnosis      *string    `json:"diagnosis,omitempty"`
	Treatment      *string    `json:"treatment,omitempty"`
	ConsultedAt    *time.Time `json:"consulted_at,omitempty"`
}

// CreateConsultation records a clinic visit.
func (s *RecordsService) CreateConsultation(ctx context.Context, act *actor.Actor, req *CreateConsultationRequest) (*repository.Consultation, error) {
	if !act.CanManageRecords() {
		return nil, errors.Forbidden("you are not allowed to manage clinical records")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	if !campus.Valid(req.Campus) {
		return nil, errors.Validation(map[string]string{"campus": "unknown campus"})
	}
	if !act.IsAdmin() && req.Campus != act.Campus {
		return nil, errors.Forbidden("you may only record visits at your own campus")
	}

	c := &repository.Consultation{
		Campus:         req.Campus,
		PatientName:    req.PatientName,
		PatientType:    req.PatientType,
		GradeOrSection: req.GradeOrSection,
		ChiefComplaint: req.ChiefComplaint,
		Diagnosis:      req.Diagnosis,
		Treatment:      req.Treatment,
		AttendedBy:     act.ID,
	}
	if req.ConsultedAt != nil {
		c.ConsultedAt = *req.ConsultedAt
	}

	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info().Str("consultation_id", c.ID).Str("campus", c.Campus).Msg("consultation recorded")
	return c, nil
}

// GetConsultation returns one consultation visible to the actor.
func (s *RecordsService) GetConsultation(ctx context.Context, act *actor.Actor, id string) (*repository.Consultation, error) {
	if !act.CanManageRecords() {
		return nil, errors.Forbidden("you are not allowed to view clinical records")
	}

	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope := act.CampusScope(); scope != "" && c.Campus != scope {
		return nil, errors.NotFound("consultation")
	}
	return c, nil
}

// ListConsultations lists visits the actor may see.
func (s *RecordsService) ListConsultations(ctx context.Context, act *actor.Actor, search string, page, perPage int) ([]*repository.Consultation, int64, error) {
	if !act.CanManageRecords() {
		return nil, 0, errors.Forbidden("you are not allowed to view clinical records")
	}

	page, perPage = normalize(page, perPage)
	return s.consultations.List(ctx, act.CampusScope(), search, perPage, (page-1)*perPage)
}

// UpdateConsultationRequest is the payload for correcting a visit record.
type UpdateConsultationRequest struct {
	PatientName    string     `json:"patient_name" validate:"required,max=255"`
	PatientType    string     `json:"patient_type" validate:"required,oneof=student employee visitor"`
	GradeOrSection *string    `json:"grade_or_section,omitempty"`
	ChiefComplaint string     `json:"chief_complaint" validate:"required"`
	Diagnosis      *string    `json:"diagnosis,omitempty"`
	Treatment      *string    `json:"treatment,omitempty"`
	ConsultedAt    *time.Time `json:"consulted_at,omitempty"`
}

// UpdateConsultation corrects a visit record.
func (s *RecordsService) UpdateConsultation(ctx context.Context, act *actor.Actor, id string, req *UpdateConsultationRequest) (*repository.Consultation, error) {
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	c, err := s.GetConsultation(ctx, act, id)
	if err != nil {
		return nil, err
	}

	c.PatientName = req.PatientName
	c.PatientType = req.PatientType
	c.GradeOrSection = req.GradeOrSection
	c.ChiefComplaint = req.ChiefComplaint
	c.Diagnosis = req.Diagnosis
	c.Treatment = req.Treatment
	if req.ConsultedAt != nil {
		c.ConsultedAt = *req.ConsultedAt
	}

	if err := s.consultations.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteConsultation removes a visit record.
func (s *RecordsService) DeleteConsultation(ctx context.Context, act *actor.Actor, id string) error {
	if _, err := s.GetConsultation(ctx, act, id); err != nil {
		return err
	}
	return s.consultations.Delete(ctx, id)
}

// CreateNoteRequest is the payload for writing a nurse note.
type CreateNoteRequest struct {
	ConsultationID *string `json:"consultation_id,omitempty" validate:"omitempty,uuid"`
	Title          string  `json:"title" validate:"required,max=255"`
	Body           string  `json:"body" validate:"required"`
}

// CreateNote writes a nurse note at the actor's campus, optionally attached
// to one of the campus's consultations.
func (s *RecordsService) CreateNote(ctx context.Context, act *actor.Actor, req *CreateNoteRequest) (*repository.NurseNote, error) {
	if !act.CanManageRecords() {
		return nil, errors.Forbidden("you are not allowed to manage clinical records")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	if req.ConsultationID != nil {
		if _, err := s.GetConsultation(ctx, act, *req.ConsultationID); err != nil {
			return nil, err
		}
	}

	n := &repository.NurseNote{
		Campus:         act.Campus,
		ConsultationID: req.ConsultationID,
		Title:          req.Title,
		Body:           req.Body,
		AuthorID:       act.ID,
		AuthorName:     act.Name,
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotes lists the notes the actor may see.
func (s *RecordsService) ListNotes(ctx context.Context, act *actor.Actor, page, perPage int) ([]*repository.NurseNote, error) {
	if !act.CanManageRecords() {
		return nil, errors.Forbidden("you are not allowed to view clinical records")
	}

	page, perPage = normalize(page, perPage)
	return s.notes.List(ctx, act.CampusScope(), perPage, (page-1)*perPage)
}

// NotesForConsultation lists notes attached to one visit.
func (s *RecordsService) NotesForConsultation(ctx context.Context, act *actor.Actor, consultationID string) ([]*repository.NurseNote, error) {
	if _, err := s.GetConsultation(ctx, act, consultationID); err != nil {
		return nil, err
	}
	return s.notes.ListByConsultation(ctx, consultationID)
}

// UpdateNoteRequest is the payload for editing a note.
type UpdateNoteRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	Body  string `json:"body" validate:"required"`
}

// UpdateNote edits a note. Only the author or an admin may edit.
func (s *RecordsService) UpdateNote(ctx context.Context, act *actor.Actor, id string, req *UpdateNoteRequest) (*repository.NurseNote, error) {
	if !act.CanManageRecords() {
		return nil, errors.Forbidden("you are not allowed to manage clinical records")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !act.IsAdmin() && n.AuthorID != act.ID {
		return nil, errors.Forbidden("only the author may edit this note")
	}

	n.Title = req.Title
	n.Body = req.Body
	if err := s.notes.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteNote removes a note. Only the author or an admin may delete.
func (s *RecordsService) DeleteNote(ctx context.Context, act *actor.Actor, id string) error {
	if !act.CanManageRecords() {
		return errors.Forbidden("you are not allowed to manage clinical records")
	}

	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !act.IsAdmin() && n.AuthorID != act.ID {
		return errors.Forbidden("only the author may delete this note")
	}

	return s.notes.Delete(ctx, id)
}
