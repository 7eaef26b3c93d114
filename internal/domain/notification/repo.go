package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert creates n, or refreshes the existing unread notification with
	// the same (recipient, appointment, category) tuple instead of
	// duplicating it.
	Upsert(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Delivery worker support.
	ListUndelivered(ctx context.Context, limit int) ([]*Notification, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, channel string, at time.Time) error
}
