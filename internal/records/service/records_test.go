package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinichq/clinic-backend/internal/records/repository"
	"github.com/clinichq/clinic-backend/internal/records/service"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/clinichq/clinic-backend/pkg/logger"
	"github.com/clinichq/clinic-backend/pkg/testutil"
)

var consultationColumns = []string{
	"id", "campus", "patient_name", "patient_type", "grade_or_section",
	"chief_complaint", "diagnosis", "treatment", "attended_by", "consulted_at",
	"created_at", "updated_at",
}

func newRecordsService(mockDB *testutil.MockDB) *service.RecordsService {
	log := logger.New("test", "test")
	return service.NewRecordsService(
		repository.NewConsultationRepository(mockDB.DB),
		repository.NewNoteRepository(mockDB.DB),
		log,
	)
}

func campusNurse(campus string) *actor.Actor {
	return &actor.Actor{
		ID:     "nurse-1",
		Name:   "Nina Nurse",
		Email:  "nina@clinic.edu",
		Role:   actor.RoleNurse,
		Campus: campus,
	}
}

func TestCreateConsultation(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newRecordsService(mockDB)
	now := time.Now()

	mockDB.ExpectQuery("INSERT INTO consultations").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	c, err := svc.CreateConsultation(context.Background(), campusNurse("THS"), &service.CreateConsultationRequest{
		Campus:         "THS",
		PatientName:    "Juan Dela Cruz",
		PatientType:    "student",
		ChiefComplaint: "headache",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "nurse-1", c.AttendedBy)
	assert.False(t, c.ConsultedAt.IsZero())

	mockDB.ExpectationsWereMet(t)
}

func TestCreateConsultationRejectsUnknownPatientType(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newRecordsService(mockDB)

	_, err := svc.CreateConsultation(context.Background(), campusNurse("THS"), &service.CreateConsultationRequest{
		Campus:         "THS",
		PatientName:    "Juan Dela Cruz",
		PatientType:    "alumni",
		ChiefComplaint: "headache",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestCreateConsultationForbiddenForInventoryManager(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newRecordsService(mockDB)

	im := &actor.Actor{ID: "im-1", Role: actor.RoleInventoryManager, Campus: "THS"}
	_, err := svc.CreateConsultation(context.Background(), im, &service.CreateConsultationRequest{
		Campus:         "THS",
		PatientName:    "Juan Dela Cruz",
		PatientType:    "student",
		ChiefComplaint: "headache",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestGetConsultationOtherCampusHidden(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newRecordsService(mockDB)
	now := time.Now()

	mockDB.ExpectQuery("SELECT * FROM consultations WHERE id = $1").
		WillReturnRows(testutil.MockRows(consultationColumns...).AddRow(
			"c-1", "SHS", "Juan Dela Cruz", "student", nil,
			"headache", nil, nil, "nurse-9", now, now, now,
		))

	_, err := svc.GetConsultation(context.Background(), campusNurse("THS"), "c-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestUpdateNoteOnlyAuthorOrAdmin(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newRecordsService(mockDB)
	now := time.Now()

	noteColumns := []string{
		"id", "campus", "consultation_id", "title", "body",
		"author_id", "author_name", "created_at", "updated_at",
	}
	mockDB.ExpectQuery("SELECT * FROM nurse_notes WHERE id = $1").
		WillReturnRows(testutil.MockRows(noteColumns...).AddRow(
			"n-1", "THS", nil, "Follow up", "monitor temperature",
			"nurse-9", "Other Nurse", now, now,
		))

	_, err := svc.UpdateNote(context.Background(), campusNurse("THS"), "n-1", &service.UpdateNoteRequest{
		Title: "Follow up",
		Body:  "updated",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	mockDB.ExpectationsWereMet(t)
}
