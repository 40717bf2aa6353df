package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clinichq/clinic-backend/internal/inventory/events"
	"github.com/clinichq/clinic-backend/internal/inventory/repository"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/campus"
	"github.com/clinichq/clinic-backend/pkg/database"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
	"github.com/clinichq/clinic-backend/pkg/messaging"
)

const referenceChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DistributionService moves stock between campuses. Every transfer runs in a
// single transaction covering the source deduction, the destination batch,
// the distribution record and both campus notifications.
type DistributionService struct {
	db            *database.DB
	batches       *repository.BatchRepository
	distributions *repository.DistributionRepository
	notifications *repository.NotificationRepository
	publisher     *events.InventoryEventPublisher
	logger        *logger.Logger
}

// NewDistributionService creates a new distribution service
func NewDistributionService(
	db *database.DB,
	batches *repository.BatchRepository,
	distributions *repository.DistributionRepository,
	notifications *repository.NotificationRepository,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *DistributionService {
	return &DistributionService{
		db:            db,
		batches:       batches,
		distributions: distributions,
		notifications: notifications,
		publisher:     publisher,
		logger:        log.WithComponent("distribution-service"),
	}
}

// TransferRequest is the payload for moving stock between campuses.
type TransferRequest struct {
	SourceBatchID string  `json:"source_batch_id" validate:"required,uuid"`
	ToCampus      string  `json:"to_campus" validate:"required"`
	ToDepartment  string  `json:"to_department" validate:"required,max=255"`
	Quantity      int     `json:"quantity" validate:"required,gte=1"`
	Notes         *string `json:"notes,omitempty"`
}

// Transfer moves quantity units from a source batch to another campus.
// The source is locked for the duration so the availability check, the
// conditional deduction and the destination insert observe one consistent
// quantity. Total stock across both campuses is unchanged by the operation.
func (s *DistributionService) Transfer(ctx context.Context, act *actor.Actor, req *TransferRequest) (*repository.Distribution, error) {
	if !act.CanDistribute() {
		return nil, errors.Forbidden("you are not allowed to distribute stock")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	if !campus.Valid(req.ToCampus) {
		return nil, errors.Validation(map[string]string{"to_campus": "unknown campus"})
	}

	var dist *repository.Distribution
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		source, err := s.batches.GetByIDForUpdate(ctx, tx, req.SourceBatchID)
		if err != nil {
			return err
		}

		if !act.IsAdmin() && source.Campus != act.Campus {
			return errors.Forbidden("you may only distribute stock from your own campus")
		}
		if req.ToCampus == source.Campus {
			return errors.Validation(map[string]string{"to_campus": "destination must differ from source campus"})
		}
		if req.Quantity > source.Quantity {
			return errors.InsufficientStock(source.Quantity, req.Quantity)
		}

		medicine, err := getMedicineTx(ctx, tx, source.MedicineID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		dist = &repository.Distribution{
			ReferenceNumber: generateReferenceNumber(now),
			MedicineID:      medicine.ID,
			MedicineName:    medicine.Name,
			MedicineType:    medicine.Type,
			MedicineUnit:    medicine.Unit,
			SourceBatchID:   source.ID,
			BatchNumber:     source.BatchNumber,
			ExpiryDate:      source.ExpiryDate,
			FromCampus:      source.Campus,
			ToCampus:        req.ToCampus,
			ToDepartment:    req.ToDepartment,
			Quantity:        req.Quantity,
			Status:          repository.StatusCompleted,
			Notes:           req.Notes,
			DistributedBy:   act.ID,
			DistributedAt:   now,
			CompletedAt:     &now,
		}
		if err := s.distributions.CreateTx(ctx, tx, dist); err != nil {
			return err
		}

		if err := s.batches.DeductTx(ctx, tx, source.ID, req.Quantity); err != nil {
			if errors.Is(err, errors.ErrInsufficientStock) {
				return errors.InsufficientStock(source.Quantity, req.Quantity)
			}
			return err
		}

		// The receiving campus gets its own batch row inheriting the source
		// threshold, with the sending campus recorded as distributor.
		dest := &repository.InventoryBatch{
			MedicineID:        source.MedicineID,
			Campus:            req.ToCampus,
			Quantity:          req.Quantity,
			ExpiryDate:        source.ExpiryDate,
			BatchNumber:       source.BatchNumber,
			Distributor:       source.Campus,
			DateAdded:         now,
			LowStockThreshold: source.LowStockThreshold,
		}
		if err := s.batches.CreateTx(ctx, tx, dest); err != nil {
			return err
		}

		incoming := &repository.DistributionNotification{
			DistributionID: dist.ID,
			Campus:         req.ToCampus,
			Title:          "New Medicine Distribution Received",
			Message: fmt.Sprintf("%d %s of %s received from %s for %s (ref: %s)",
				req.Quantity, medicine.Unit, medicine.Name, source.Campus, req.ToDepartment, dist.ReferenceNumber),
		}
		if err := s.notifications.CreateTx(ctx, tx, incoming); err != nil {
			return err
		}

		outgoing := &repository.DistributionNotification{
			DistributionID: dist.ID,
			Campus:         source.Campus,
			Title:          "Distribution Sent Successfully",
			Message: fmt.Sprintf("%d %s of %s sent to %s (ref: %s)",
				req.Quantity, medicine.Unit, medicine.Name, req.ToCampus, dist.ReferenceNumber),
		}
		return s.notifications.CreateTx(ctx, tx, outgoing)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishDistributionCreated(ctx, messaging.DistributionCreatedEvent{
		DistributionID:  dist.ID,
		ReferenceNumber: dist.ReferenceNumber,
		MedicineID:      dist.MedicineID,
		FromCampus:      dist.FromCampus,
		ToCampus:        dist.ToCampus,
		Quantity:        dist.Quantity,
	})

	s.logger.Info().
		Str("distribution_id", dist.ID).
		Str("reference", dist.ReferenceNumber).
		Str("from", dist.FromCampus).
		Str("to", dist.ToCampus).
		Int("quantity", dist.Quantity).
		Msg("distribution recorded")
	return dist, nil
}

// Get returns one distribution visible to the actor.
func (s *DistributionService) Get(ctx context.Context, act *actor.Actor, id string) (*repository.Distribution, error) {
	if !act.CanViewInventory() {
		return nil, errors.Forbidden("you are not allowed to view distributions")
	}

	dist, err := s.distributions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope := act.CampusScope(); scope != "" && dist.FromCampus != scope && dist.ToCampus != scope {
		return nil, errors.NotFound("distribution")
	}
	return dist, nil
}

// List returns the distributions the actor's campus took part in.
func (s *DistributionService) List(ctx context.Context, act *actor.Actor, page, perPage int) ([]*repository.Distribution, int64, error) {
	if !act.CanViewInventory() {
		return nil, 0, errors.Forbidden("you are not allowed to view distributions")
	}

	p := NormalizePage(page, perPage)
	return s.distributions.List(ctx, act.CampusScope(), p.PerPage, (p.Number-1)*p.PerPage)
}

// UpdateStatusRequest is the payload for a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus sets a distribution's status. Any known status may follow any
// other; corrections to mis-recorded transfers are allowed.
func (s *DistributionService) UpdateStatus(ctx context.Context, act *actor.Actor, id string, req *UpdateStatusRequest) (*repository.Distribution, error) {
	if !act.CanDistribute() {
		return nil, errors.Forbidden("you are not allowed to manage distributions")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	if !repository.ValidStatus(req.Status) {
		return nil, errors.Validation(map[string]string{"status": "unknown status"})
	}

	dist, err := s.distributions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldStatus := dist.Status
	if err := s.distributions.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, err
	}

	s.publisher.PublishDistributionStatusChanged(ctx, messaging.DistributionStatusChangedEvent{
		DistributionID: id,
		OldStatus:      oldStatus,
		NewStatus:      req.Status,
	})

	return s.distributions.GetByID(ctx, id)
}

// Notifications returns the actor's campus notifications.
func (s *DistributionService) Notifications(ctx context.Context, act *actor.Actor, page, perPage int) ([]*repository.DistributionNotification, error) {
	if !act.CanViewInventory() {
		return nil, errors.Forbidden("you are not allowed to view notifications")
	}
	p := NormalizePage(page, perPage)
	return s.notifications.ListForCampus(ctx, act.Campus, p.PerPage, (p.Number-1)*p.PerPage)
}

// UnreadCount returns how many unread notifications the actor's campus has.
func (s *DistributionService) UnreadCount(ctx context.Context, act *actor.Actor) (int64, error) {
	if !act.CanViewInventory() {
		return 0, errors.Forbidden("you are not allowed to view notifications")
	}
	return s.notifications.UnreadCount(ctx, act.Campus)
}

// MarkNotificationRead marks one of the actor's campus notifications read.
func (s *DistributionService) MarkNotificationRead(ctx context.Context, act *actor.Actor, id string) error {
	if !act.CanViewInventory() {
		return errors.Forbidden("you are not allowed to manage notifications")
	}
	return s.notifications.MarkRead(ctx, id, act.Campus)
}

// MarkAllNotificationsRead marks every unread notification for the actor's
// campus as read and returns the count.
func (s *DistributionService) MarkAllNotificationsRead(ctx context.Context, act *actor.Actor) (int64, error) {
	if !act.CanViewInventory() {
		return 0, errors.Forbidden("you are not allowed to manage notifications")
	}
	return s.notifications.MarkAllRead(ctx, act.Campus)
}

// RecentActivity returns the actor's campus transfer counts over the last
// seven days, for the dashboard.
func (s *DistributionService) RecentActivity(ctx context.Context, act *actor.Actor) (*repository.RecentCounts, error) {
	if !act.CanViewInventory() {
		return nil, errors.Forbidden("you are not allowed to view distributions")
	}
	return s.distributions.RecentCounts(ctx, act.CampusScope(), 7)
}

// generateReferenceNumber builds a DIST-YYYYMMDD-XXXXXX reference with a
// random six character suffix.
func generateReferenceNumber(now time.Time) string {
	suffix := make([]byte, 6)
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		for i := range random {
			random[i] = byte(now.UnixNano() >> (i * 8))
		}
	}
	for i, b := range random {
		suffix[i] = referenceChars[int(b)%len(referenceChars)]
	}
	return fmt.Sprintf("DIST-%s-%s", now.Format("20060102"), string(suffix))
}

// getMedicineTx reads a medicine inside the transfer transaction so the
// snapshot matches what the lock sees.
func getMedicineTx(ctx context.Context, tx *sqlx.Tx, id string) (*repository.Medicine, error) {
	var m repository.Medicine
	if err := tx.GetContext(ctx, &m, `SELECT * FROM medicines WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &m, nil
}
