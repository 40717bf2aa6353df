package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinichq/clinic-backend/internal/inventory/events"
	"github.com/clinichq/clinic-backend/internal/inventory/repository"
	"github.com/clinichq/clinic-backend/internal/inventory/service"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/clinichq/clinic-backend/pkg/logger"
	"github.com/clinichq/clinic-backend/pkg/messaging"
	"github.com/clinichq/clinic-backend/pkg/testutil"
)

var batchColumns = []string{
	"id", "medicine_id", "campus", "quantity", "expiry_date", "batch_number",
	"distributor", "date_added", "low_stock_threshold", "created_at", "updated_at",
}

var medicineColumns = []string{
	"id", "name", "type", "unit", "dosage_strength", "form", "description",
	"created_at", "updated_at",
}

func newDistributionService(mockDB *testutil.MockDB, pub *testutil.MockPublisher) *service.DistributionService {
	log := logger.New("test", "test")
	return service.NewDistributionService(
		mockDB.DB,
		repository.NewBatchRepository(mockDB.DB),
		repository.NewDistributionRepository(mockDB.DB),
		repository.NewNotificationRepository(mockDB.DB),
		events.NewInventoryEventPublisher(pub),
		log,
	)
}

func inventoryManager(campus string) *actor.Actor {
	return &actor.Actor{
		ID:     "user-1",
		Name:   "Ivy Manager",
		Email:  "ivy@clinic.edu",
		Role:   actor.RoleInventoryManager,
		Campus: campus,
	}
}

var sourceExpiry = time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)

func sourceBatchRow(quantity int) *sqlmock.Rows {
	now := time.Now()
	return testutil.MockRows(batchColumns...).AddRow(
		"batch-1", "med-1", "Main Campus", quantity, sourceExpiry,
		"B-2026-001", "Acme Pharma", now, 15, now, now,
	)
}

func medicineRow() *sqlmock.Rows {
	now := time.Now()
	return testutil.MockRows(medicineColumns...).AddRow(
		"med-1", "Paracetamol 500mg", "Analgesic", "tablets", nil, nil, nil, now, now,
	)
}

func TestTransferMovesStockBetweenCampuses(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newDistributionService(mockDB, pub)
	now := time.Now()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM inventory_batches WHERE id = $1 FOR UPDATE").
		WithArgs("60f5482e-8a3b-4f0e-9c36-1c2b7f3d9a10").
		WillReturnRows(sourceBatchRow(100))
	mockDB.ExpectQuery("SELECT * FROM medicines WHERE id = $1").
		WithArgs("med-1").
		WillReturnRows(medicineRow())
	mockDB.ExpectQuery("INSERT INTO distributions").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectExec("UPDATE inventory_batches").
		WithArgs("batch-1", 30).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// destination batch copies batch number, expiry and threshold from the
	// source, with the sending campus recorded as distributor
	mockDB.ExpectQuery("INSERT INTO inventory_batches").
		WithArgs(testutil.AnyUUID{}, "med-1", "THS", 30, sourceExpiry,
			"B-2026-001", "Main Campus", testutil.AnyTime{}, 15).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO distribution_notifications").
		WillReturnRows(testutil.MockRows("created_at").AddRow(now))
	mockDB.ExpectQuery("INSERT INTO distribution_notifications").
		WillReturnRows(testutil.MockRows("created_at").AddRow(now))
	mockDB.ExpectCommit()

	dist, err := svc.Transfer(context.Background(), inventoryManager("Main Campus"), &service.TransferRequest{
		SourceBatchID: "60f5482e-8a3b-4f0e-9c36-1c2b7f3d9a10",
		ToCampus:      "THS",
		ToDepartment:  "Clinic",
		Quantity:      30,
	})
	require.NoError(t, err)

	assert.Equal(t, "Main Campus", dist.FromCampus)
	assert.Equal(t, "THS", dist.ToCampus)
	assert.Equal(t, "Clinic", dist.ToDepartment)
	assert.Equal(t, 30, dist.Quantity)
	assert.Equal(t, repository.StatusCompleted, dist.Status)
	assert.Equal(t, "Paracetamol 500mg", dist.MedicineName)
	assert.Equal(t, "B-2026-001", dist.BatchNumber, "batch number is snapshotted on the record")
	assert.True(t, dist.ExpiryDate.Equal(sourceExpiry), "expiry date is snapshotted on the record")
	assert.Regexp(t, `^DIST-\d{8}-[A-Z0-9]{6}$`, dist.ReferenceNumber)
	require.NotNil(t, dist.CompletedAt)

	pub.AssertEventPublished(t, messaging.EventDistributionCreated)
	mockDB.ExpectationsWereMet(t)
}

func TestTransferMedicineReadFailurePassesThrough(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newDistributionService(mockDB, pub)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM inventory_batches WHERE id = $1 FOR UPDATE").
		WithArgs("60f5482e-8a3b-4f0e-9c36-1c2b7f3d9a10").
		WillReturnRows(sourceBatchRow(100))
	mockDB.ExpectQuery("SELECT * FROM medicines WHERE id = $1").
		WillReturnError(fmt.Errorf("connection reset by peer"))
	mockDB.ExpectRollback()

	_, err := svc.Transfer(context.Background(), inventoryManager("Main Campus"), &service.TransferRequest{
		SourceBatchID: "60f5482e-8a3b-4f0e-9c36-1c2b7f3d9a10",
		ToCampus:      "THS",
		ToDepartment:  "Clinic",
		Quantity:      30,
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrNotFound), "store failures are not a missing medicine")
	assert.ErrorContains(t, err, "connection reset")

	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestTransferInsufficientStockRollsBack(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newDistributionService(mockDB, pub)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM inventory_batches WHERE id = $1 FOR UPDATE").
		WithArgs("60f5482e-8a3b-4f0e-9c36-1c2b7f3d9a10").
		WillReturnRows(sourceBatchRow(10))
	mockDB.ExpectRollback()

	_, err := svc.Transfer(context.Background(), inventoryManager("Main Campus"), &service.TransferRequest{
		SourceBatchID: "60f5482e-8a3b-4f0e-9c36-1c2b7f3d9a10",
		ToCampus:      "THS",
		ToDepartment:  "Clinic",
		Quantity:      25,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "10", appErr.Details["available"])
	assert.Equal(t, "25", appErr.Details["requested"])

	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestTransferRejectsSameCampus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newDistributionService(mockDB, pub)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM inventory_batches WHERE id = $1 FOR UPDATE").
		WillReturnRows(sourceBatchRow(100))
	mockDB.ExpectRollback()

	_, err := svc.Transfer(context.Background(), inventoryManager("Main Campus"), &service.TransferRequest{
		SourceBatchID: "60f5482e-8a3b-4f0e-9c36-1c2b7f3d9a10",
		ToCampus:      "Main Campus",
		ToDepartment:  "Clinic",
		Quantity:      5,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestTransferRejectsUnknownCampus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newDistributionService(mockDB, pub)

	_, err := svc.Transfer(context.Background(), inventoryManager("Main Campus"), &service.TransferRequest{
		SourceBatchID: "60f5482e-8a3b-4f0e-9c36-1c2b7f3d9a10",
		ToCampus:      "Annex",
		ToDepartment:  "Clinic",
		Quantity:      5,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestTransferForbiddenForNurse(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newDistributionService(mockDB, pub)

	nurse := &actor.Actor{ID: "n-1", Role: actor.RoleNurse, Campus: "THS"}
	_, err := svc.Transfer(context.Background(), nurse, &service.TransferRequest{
		SourceBatchID: "60f5482e-8a3b-4f0e-9c36-1c2b7f3d9a10",
		ToCampus:      "SHS",
		ToDepartment:  "Clinic",
		Quantity:      5,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestTransferForbiddenFromOtherCampus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newDistributionService(mockDB, pub)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM inventory_batches WHERE id = $1 FOR UPDATE").
		WillReturnRows(sourceBatchRow(100))
	mockDB.ExpectRollback()

	_, err := svc.Transfer(context.Background(), inventoryManager("THS"), &service.TransferRequest{
		SourceBatchID: "60f5482e-8a3b-4f0e-9c36-1c2b7f3d9a10",
		ToCampus:      "SHS",
		ToDepartment:  "Clinic",
		Quantity:      5,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	mockDB.ExpectationsWereMet(t)
}

func TestUpdateStatusAllowsAnyKnownTransition(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newDistributionService(mockDB, pub)
	now := time.Now()

	distColumns := []string{
		"id", "reference_number", "medicine_id", "medicine_name", "medicine_type",
		"medicine_unit", "source_batch_id", "batch_number", "expiry_date",
		"from_campus", "to_campus", "to_department", "quantity", "status",
		"notes", "distributed_by", "distributed_at", "created_at",
		"updated_at", "completed_at",
	}
	distRow := func(status string) *sqlmock.Rows {
		return testutil.MockRows(distColumns...).AddRow(
			"dist-1", "DIST-20260815-A1B2C3", "med-1", "Paracetamol 500mg", "Analgesic",
			"tablets", "batch-1", "B-2026-001", sourceExpiry,
			"Main Campus", "THS", "Clinic", 30, status,
			nil, "user-1", now, now, now, nil,
		)
	}

	mockDB.ExpectQuery("SELECT * FROM distributions WHERE id = $1").
		WillReturnRows(distRow("completed"))
	mockDB.ExpectExec("UPDATE distributions").
		WithArgs("dist-1", "cancelled").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("SELECT * FROM distributions WHERE id = $1").
		WillReturnRows(distRow("cancelled"))

	dist, err := svc.UpdateStatus(context.Background(), inventoryManager("Main Campus"), "dist-1", &service.UpdateStatusRequest{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", dist.Status)

	pub.AssertEventPublished(t, messaging.EventDistributionStatusChanged)
	mockDB.ExpectationsWereMet(t)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newDistributionService(mockDB, pub)

	_, err := svc.UpdateStatus(context.Background(), inventoryManager("Main Campus"), "dist-1", &service.UpdateStatusRequest{Status: "archived"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestMarkNotificationReadOtherCampusNotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	pub := testutil.NewMockPublisher()
	svc := newDistributionService(mockDB, pub)

	mockDB.ExpectExec("UPDATE distribution_notifications").
		WithArgs("note-1", "THS").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.MarkNotificationRead(context.Background(), inventoryManager("THS"), "note-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}
