package appointment

import (
	"context"
	"errors"
	"strconv"
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

const apptCols = `id, patient_id, clinic_id, doctor_id, prescription_id,
	appointment_date, appointment_time, appointment_type, status,
	notes, clinic_notes, doctor_notes, decline_reason, payment_status,
	clinic_rating, doctor_rating, feedback,
	assigned_by, assigned_at, confirmed_at, declined_at, started_at, completed_at, rated_at,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, clinic_id, doctor_id,
			appointment_date, appointment_time, appointment_type, status,
			notes, payment_status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.ClinicID, a.DoctorID,
		a.Date, a.Time, a.Type, a.Status,
		a.Notes, a.PaymentStatus,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET
			doctor_id=$2, prescription_id=$3, status=$4,
			notes=$5, clinic_notes=$6, doctor_notes=$7, decline_reason=$8, payment_status=$9,
			clinic_rating=$10, doctor_rating=$11, feedback=$12,
			assigned_by=$13, assigned_at=$14, confirmed_at=$15, declined_at=$16,
			started_at=$17, completed_at=$18, rated_at=$19, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.DoctorID, a.PrescriptionID, a.Status,
		a.Notes, a.ClinicNotes, a.DoctorNotes, a.DeclineReason, a.PaymentStatus,
		a.ClinicRating, a.DoctorRating, a.Feedback,
		a.AssignedBy, a.AssignedAt, a.ConfirmedAt, a.DeclinedAt,
		a.StartedAt, a.CompletedAt, a.RatedAt,
	)
	return err
}

func (r *repoPG) HasSlotConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, timeOfDay string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND appointment_date = $2 AND appointment_time = $3
			  AND status IN ('assigned', 'confirmed')
			  AND id <> $4
		)`, doctorID, date, timeOfDay, excludeID).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *repoPG) ListByClinic(ctx context.Context, clinicID uuid.UUID, status Status, limit, offset int) ([]*Appointment, int, error) {
	if status != "" {
		return r.list(ctx, `clinic_id = $1 AND status = $2`, []interface{}{clinicID, status}, limit, offset)
	}
	return r.list(ctx, `clinic_id = $1`, []interface{}{clinicID}, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `doctor_id = $1`, []interface{}{doctorID}, limit, offset)
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + apptCols + ` FROM appointments WHERE ` + where +
		` ORDER BY appointment_date DESC, appointment_time DESC` +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanApptRows(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	return appts, total, rows.Err()
}

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.ClinicID, &a.DoctorID, &a.PrescriptionID,
		&a.Date, &a.Time, &a.Type, &a.Status,
		&a.Notes, &a.ClinicNotes, &a.DoctorNotes, &a.DeclineReason, &a.PaymentStatus,
		&a.ClinicRating, &a.DoctorRating, &a.Feedback,
		&a.AssignedBy, &a.AssignedAt, &a.ConfirmedAt, &a.DeclinedAt, &a.StartedAt, &a.CompletedAt, &a.RatedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanApptRows(rows pgx.Rows) (*Appointment, error) {
	var a Appointment
	err := rows.Scan(
		&a.ID, &a.PatientID, &a.ClinicID, &a.DoctorID, &a.PrescriptionID,
		&a.Date, &a.Time, &a.Type, &a.Status,
		&a.Notes, &a.ClinicNotes, &a.DoctorNotes, &a.DeclineReason, &a.PaymentStatus,
		&a.ClinicRating, &a.DoctorRating, &a.Feedback,
		&a.AssignedBy, &a.AssignedAt, &a.ConfirmedAt, &a.DeclinedAt, &a.StartedAt, &a.CompletedAt, &a.RatedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
