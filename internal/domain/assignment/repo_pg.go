package assignment

import (
	"context"
	"errors"

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

const asgCols = `id, appointment_id, clinic_id, doctor_id, assigned_by, response_status,
	notes, response_notes, assigned_at, responded_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Assignment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO assignments (
			id, appointment_id, clinic_id, doctor_id, assigned_by, response_status,
			notes, assigned_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.AppointmentID, a.ClinicID, a.DoctorID, a.AssignedBy, a.Response,
		a.Notes, a.AssignedAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	// The partial unique index on (appointment_id) WHERE response_status =
	// 'pending' backs the one-open-assignment invariant under concurrency.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicatePendingAssignment
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	return scanAsg(r.conn(ctx).QueryRow(ctx, `SELECT `+asgCols+` FROM assignments WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	return scanAsg(r.conn(ctx).QueryRow(ctx, `SELECT `+asgCols+` FROM assignments WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Assignment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE assignments SET
			response_status=$2, response_notes=$3, responded_at=$4, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Response, a.ResponseNotes, a.RespondedAt,
	)
	return err
}

func (r *repoPG) HasPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM assignments
			WHERE appointment_id = $1 AND response_status = 'pending'
		)`, appointmentID).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Assignment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+asgCols+` FROM assignments WHERE appointment_id = $1 ORDER BY assigned_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var asgs []*Assignment
	for rows.Next() {
		a, err := scanAsgRows(rows)
		if err != nil {
			return nil, err
		}
		asgs = append(asgs, a)
	}
	return asgs, rows.Err()
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, pendingOnly bool, limit, offset int) ([]*Assignment, int, error) {
	where := `doctor_id = $1`
	if pendingOnly {
		where += ` AND response_status = 'pending'`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM assignments WHERE `+where, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+asgCols+` FROM assignments WHERE `+where+` ORDER BY assigned_at DESC LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var asgs []*Assignment
	for rows.Next() {
		a, err := scanAsgRows(rows)
		if err != nil {
			return nil, 0, err
		}
		asgs = append(asgs, a)
	}
	return asgs, total, rows.Err()
}

func scanAsg(row pgx.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(
		&a.ID, &a.AppointmentID, &a.ClinicID, &a.DoctorID, &a.AssignedBy, &a.Response,
		&a.Notes, &a.ResponseNotes, &a.AssignedAt, &a.RespondedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAsgRows(rows pgx.Rows) (*Assignment, error) {
	var a Assignment
	err := rows.Scan(
		&a.ID, &a.AppointmentID, &a.ClinicID, &a.DoctorID, &a.AssignedBy, &a.Response,
		&a.Notes, &a.ResponseNotes, &a.AssignedAt, &a.RespondedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
