package repository

import (
	"context"
	"time"

	"github.com/clinichq/clinic-backend/pkg/database"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DistributionNotification is a campus-addressed message generated when a
// transfer is recorded. Notifications belong to a campus, not a user.
type DistributionNotification struct {
	ID             string     `db:"id" json:"id"`
	DistributionID string     `db:"distribution_id" json:"distribution_id"`
	Campus         string     `db:"campus" json:"campus"`
	Title          string     `db:"title" json:"title"`
	Message        string     `db:"message" json:"message"`
	Read           bool       `db:"read" json:"read"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// NotificationRepository handles notification persistence
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateTx inserts a notification inside an existing transaction, so the
// transfer and its notifications commit or roll back together.
func (r *NotificationRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, n *DistributionNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	query := `
		INSERT INTO distribution_notifications (
			id, distribution_id, campus, title, message, read
		) VALUES ($1, $2, $3, $4, $5, false)
		RETURNING created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		n.ID, n.DistributionID, n.Campus, n.Title, n.Message,
	).Scan(&n.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ListForCampus returns a campus's notifications, newest first.
func (r *NotificationRepository) ListForCampus(ctx context.Context, campus string, limit, offset int) ([]*DistributionNotification, error) {
	var notifications []*DistributionNotification
	query := `
		SELECT * FROM distribution_notifications
		WHERE campus = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &notifications, query, campus, limit, offset); err != nil {
		return nil, err
	}
	return notifications, nil
}

// UnreadCount counts a campus's unread notifications.
func (r *NotificationRepository) UnreadCount(ctx context.Context, campus string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM distribution_notifications WHERE campus = $1 AND read = false`
	if err := r.db.GetContext(ctx, &count, query, campus); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead marks one notification as read. The campus predicate enforces
// ownership; a wrong campus looks the same as a missing notification.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, campus string) error {
	query := `
		UPDATE distribution_notifications
		SET read = true, read_at = NOW()
		WHERE id = $1 AND campus = $2 AND read = false
	`
	result, err := r.db.ExecContext(ctx, query, id, campus)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("notification")
	}

	return nil
}

// MarkAllRead marks every unread notification for a campus as read and
// returns how many were affected.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, campus string) (int64, error) {
	query := `
		UPDATE distribution_notifications
		SET read = true, read_at = NOW()
		WHERE campus = $1 AND read = false
	`
	result, err := r.db.ExecContext(ctx, query, campus)
	if err != nil {
		return 0, err
	}

	affected, _ := result.RowsAffected()
	return affected, nil
}
