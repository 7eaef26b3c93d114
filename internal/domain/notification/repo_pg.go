package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/igabay/care/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const notifCols = `id, recipient_id, recipient_type, category, title, message, priority,
	appointment_id, prescription_id, is_read, read_at, expires_at,
	delivered_at, delivery_channel, created_at, updated_at`

// Upsert relies on the partial unique index over
// (recipient_id, appointment_id, category) WHERE NOT is_read. A retried
// event bumps the existing unread row instead of inserting a duplicate.
func (r *repoPG) Upsert(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (
			id, recipient_id, recipient_type, category, title, message, priority,
			appointment_id, prescription_id, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (recipient_id, appointment_id, category) WHERE NOT is_read
		DO UPDATE SET message = EXCLUDED.message, title = EXCLUDED.title,
			priority = EXCLUDED.priority, expires_at = EXCLUDED.expires_at,
			delivered_at = NULL, updated_at = NOW()
		RETURNING id, is_read, created_at, updated_at`,
		n.ID, n.RecipientID, n.RecipientType, n.Category, n.Title, n.Message, n.Priority,
		n.AppointmentID, n.PrescriptionID, n.ExpiresAt,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt, &n.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return scanNotif(r.conn(ctx).QueryRow(ctx, `SELECT `+notifCols+` FROM notifications WHERE id = $1`, id))
}

func (r *repoPG) ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	where := `recipient_id = $1`
	if unreadOnly {
		where += ` AND NOT is_read`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where, recipientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+notifCols+` FROM notifications WHERE `+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		recipientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notifs []*Notification
	for rows.Next() {
		n, err := scanNotifRows(rows)
		if err != nil {
			return nil, 0, err
		}
		notifs = append(notifs, n)
	}
	return notifs, total, rows.Err()
}

func (r *repoPG) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`, recipientID).Scan(&count)
	return count, err
}

// MarkRead sets read_at only on the first call.
func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $2), updated_at = NOW()
		WHERE id = $1`, id, readAt)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	return err
}

func (r *repoPG) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) ListUndelivered(ctx context.Context, limit int) ([]*Notification, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+notifCols+` FROM notifications
		 WHERE delivered_at IS NULL AND (expires_at IS NULL OR expires_at > NOW())
		 ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []*Notification
	for rows.Next() {
		n, err := scanNotifRows(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

func (r *repoPG) MarkDelivered(ctx context.Context, id uuid.UUID, channel string, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE notifications SET delivered_at = $2, delivery_channel = $3, updated_at = NOW()
		WHERE id = $1`, id, at, channel)
	return err
}

func scanNotif(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID, &n.RecipientID, &n.RecipientType, &n.Category, &n.Title, &n.Message, &n.Priority,
		&n.AppointmentID, &n.PrescriptionID, &n.IsRead, &n.ReadAt, &n.ExpiresAt,
		&n.DeliveredAt, &n.DeliveryChannel, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNotifRows(rows pgx.Rows) (*Notification, error) {
	var n Notification
	err := rows.Scan(
		&n.ID, &n.RecipientID, &n.RecipientType, &n.Category, &n.Title, &n.Message, &n.Priority,
		&n.AppointmentID, &n.PrescriptionID, &n.IsRead, &n.ReadAt, &n.ExpiresAt,
		&n.DeliveredAt, &n.DeliveryChannel, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
