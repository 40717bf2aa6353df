package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinichq/clinic-backend/internal/inventory/repository"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/clinichq/clinic-backend/pkg/testutil"
)

func TestIsLowStock(t *testing.T) {
	b := &repository.InventoryBatch{Quantity: 10, LowStockThreshold: 10}
	assert.True(t, b.IsLowStock())

	b.Quantity = 11
	assert.False(t, b.IsLowStock())

	b.Quantity = 0
	assert.True(t, b.IsLowStock())
}

func TestExpiryFlags(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expiry  time.Time
		nearing bool
		expired bool
	}{
		{"expires in a week", now.AddDate(0, 0, 7), true, false},
		{"expires exactly at window edge", now.AddDate(0, 0, 30), true, false},
		{"expires beyond window", now.AddDate(0, 0, 31), false, false},
		{"already expired", now.AddDate(0, 0, -1), false, true},
		{"expires this instant", now, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &repository.InventoryBatch{ExpiryDate: tt.expiry}
			assert.Equal(t, tt.nearing, b.IsNearingExpiry(now, repository.DefaultExpiryWindowDays))
			assert.Equal(t, tt.expired, b.IsExpired(now))
		})
	}
}

func TestDeductTxInsufficientStock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewBatchRepository(mockDB.DB)

	mockDB.ExpectBegin()
	mockDB.ExpectExec("UPDATE inventory_batches").
		WithArgs("batch-1", 50).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectRollback()

	err := mockDB.DB.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		return repo.DeductTx(context.Background(), tx, "batch-1", 50)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	mockDB.ExpectationsWereMet(t)
}

func TestDeductTxDecrements(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewBatchRepository(mockDB.DB)

	mockDB.ExpectBegin()
	mockDB.ExpectExec("UPDATE inventory_batches").
		WithArgs("batch-1", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := mockDB.DB.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		return repo.DeductTx(context.Background(), tx, "batch-1", 5)
	})
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateAssignsID(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewBatchRepository(mockDB.DB)

	now := time.Now()
	mockDB.ExpectQuery("INSERT INTO inventory_batches").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	b := &repository.InventoryBatch{
		MedicineID:        "med-1",
		Campus:            "THS",
		Quantity:          100,
		ExpiryDate:        now.AddDate(1, 0, 0),
		BatchNumber:       "B-100",
		Distributor:       "Acme Pharma",
		LowStockThreshold: 10,
	}
	err := repo.Create(context.Background(), b)
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.False(t, b.DateAdded.IsZero())

	mockDB.ExpectationsWereMet(t)
}

func TestGetByIDNotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewBatchRepository(mockDB.DB)

	mockDB.ExpectQuery("SELECT * FROM inventory_batches WHERE id = $1").
		WithArgs("missing").
		WillReturnRows(testutil.MockRows("id"))

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestSummaryScopedByCampus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewBatchRepository(mockDB.DB)

	mockDB.ExpectQuery("FROM inventory_batches b").
		WithArgs("THS", 30).
		WillReturnRows(testutil.MockRows(
			"total_batches", "medicine_batches", "supply_batches",
			"low_stock_count", "expiring_soon_count", "expired_count",
		).AddRow(12, 8, 4, 2, 3, 1))

	stats, err := repo.Summary(context.Background(), "THS", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalBatches)
	assert.Equal(t, int64(2), stats.LowStockCount)
	assert.Equal(t, int64(3), stats.ExpiringSoonCount)
	assert.Equal(t, int64(1), stats.ExpiredCount)

	mockDB.ExpectationsWereMet(t)
}
