package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/igabay/care/internal/domain/actor"
	"github.com/igabay/care/internal/domain/appointment"
	"github.com/igabay/care/internal/domain/history"
	"github.com/igabay/care/internal/domain/notification"
	"github.com/igabay/care/internal/platform/lock"
)

type mockRepo struct {
	asgs map[uuid.UUID]*Assignment
}

func newMockRepo() *mockRepo {
	return &mockRepo{asgs: make(map[uuid.UUID]*Assignment)}
}

func (m *mockRepo) Create(ctx context.Context, a *Assignment) error {
	for _, existing := range m.asgs {
		if existing.AppointmentID == a.AppointmentID && existing.Response == ResponsePending {
			return ErrDuplicatePendingAssignment
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.asgs[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	a, ok := m.asgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(ctx context.Context, a *Assignment) error {
	if _, ok := m.asgs[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.asgs[a.ID] = &cp
	return nil
}

func (m *mockRepo) HasPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	for _, a := range m.asgs {
		if a.AppointmentID == appointmentID && a.Response == ResponsePending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Assignment, error) {
	var out []*Assignment
	for _, a := range m.asgs {
		if a.AppointmentID == appointmentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID, pendingOnly bool, limit, offset int) ([]*Assignment, int, error) {
	var out []*Assignment
	for _, a := range m.asgs {
		if a.DoctorID == doctorID && (!pendingOnly || a.Response == ResponsePending) {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

type mockApptRepo struct {
	appts map[uuid.UUID]*appointment.Appointment
}

func (m *mockApptRepo) Create(ctx context.Context, a *appointment.Appointment) error {
	a.ID = uuid.New()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockApptRepo) Update(ctx context.Context, a *appointment.Appointment) error {
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) HasSlotConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, timeOfDay string, excludeID uuid.UUID) (bool, error) {
	return false, nil
}

func (m *mockApptRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*appointment.Appointment, int, error) {
	return nil, 0, nil
}

func (m *mockApptRepo) ListByClinic(ctx context.Context, clinicID uuid.UUID, status appointment.Status, limit, offset int) ([]*appointment.Appointment, int, error) {
	return nil, 0, nil
}

func (m *mockApptRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*appointment.Appointment, int, error) {
	return nil, 0, nil
}

type mockHistRepo struct {
	entries []*history.Entry
}

func (m *mockHistRepo) Append(ctx context.Context, e *history.Entry) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC().Add(time.Duration(len(m.entries)) * time.Millisecond)
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockHistRepo) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*history.Entry, error) {
	return m.entries, nil
}

type mockNotifRepo struct {
	notifs []*notification.Notification
}

func (m *mockNotifRepo) Upsert(ctx context.Context, n *notification.Notification) error {
	n.ID = uuid.New()
	cp := *n
	m.notifs = append(m.notifs, &cp)
	return nil
}

func (m *mockNotifRepo) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	return nil, notification.ErrNotFound
}

func (m *mockNotifRepo) ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*notification.Notification, int, error) {
	return nil, 0, nil
}

func (m *mockNotifRepo) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	return 0, nil
}

func (m *mockNotifRepo) MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) error {
	return nil
}

func (m *mockNotifRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockNotifRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (m *mockNotifRepo) ListUndelivered(ctx context.Context, limit int) ([]*notification.Notification, error) {
	return nil, nil
}

func (m *mockNotifRepo) MarkDelivered(ctx context.Context, id uuid.UUID, channel string, at time.Time) error {
	return nil
}

type mockTx struct{}

func (mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	coord    *Coordinator
	repo     *mockRepo
	appts    *mockApptRepo
	clinicID uuid.UUID
	apptID   uuid.UUID
}

func newTestCoordinator(t *testing.T) *fixture {
	t.Helper()
	apptRepo := &mockApptRepo{appts: make(map[uuid.UUID]*appointment.Appointment)}
	apptSvc := appointment.NewService(
		apptRepo,
		history.NewService(&mockHistRepo{}),
		notification.NewDispatcher(&mockNotifRepo{}),
		mockTx{},
		lock.NoopLocker{},
	)
	repo := newMockRepo()
	coord := NewCoordinator(repo, apptSvc, mockTx{})

	clinicID := uuid.New()
	a := &appointment.Appointment{
		PatientID: uuid.New(),
		ClinicID:  clinicID,
		Date:      time.Now().UTC().AddDate(0, 0, 3),
		Time:      "09:30",
		Type:      "consultation",
		Status:    appointment.StatusPending,
	}
	if err := apptRepo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return &fixture{coord: coord, repo: repo, appts: apptRepo, clinicID: clinicID, apptID: a.ID}
}

func clinicRef(clinicID uuid.UUID) actor.Ref {
	return actor.Ref{ID: clinicID, Type: actor.Clinic}
}

func TestAssign_CreatesPendingAndAssignsAppointment(t *testing.T) {
	f := newTestCoordinator(t)
	doctorID := uuid.New()

	asg, err := f.coord.Assign(context.Background(), f.apptID, f.clinicID, doctorID, clinicRef(f.clinicID), nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if asg.Response != ResponsePending {
		t.Errorf("expected pending response, got %s", asg.Response)
	}

	a, _ := f.appts.GetByID(context.Background(), f.apptID)
	if a.Status != appointment.StatusAssigned {
		t.Errorf("expected appointment assigned, got %s", a.Status)
	}
	if a.DoctorID == nil || *a.DoctorID != doctorID {
		t.Error("expected doctor attached to appointment")
	}
}

func TestAssign_DuplicatePending(t *testing.T) {
	f := newTestCoordinator(t)
	if _, err := f.coord.Assign(context.Background(), f.apptID, f.clinicID, uuid.New(), clinicRef(f.clinicID), nil); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	_, err := f.coord.Assign(context.Background(), f.apptID, f.clinicID, uuid.New(), clinicRef(f.clinicID), nil)
	if !errors.Is(err, ErrDuplicatePendingAssignment) {
		t.Fatalf("expected ErrDuplicatePendingAssignment, got %v", err)
	}
}

func TestRespond_AcceptConfirms(t *testing.T) {
	f := newTestCoordinator(t)
	doctorID := uuid.New()
	asg, _ := f.coord.Assign(context.Background(), f.apptID, f.clinicID, doctorID, clinicRef(f.clinicID), nil)

	got, err := f.coord.Respond(context.Background(), asg.ID, doctorID, true, nil)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got.Response != ResponseAccepted || got.RespondedAt == nil {
		t.Fatalf("expected accepted with timestamp, got %+v", got)
	}

	a, _ := f.appts.GetByID(context.Background(), f.apptID)
	if a.Status != appointment.StatusConfirmed {
		t.Errorf("expected appointment confirmed, got %s", a.Status)
	}
}

func TestRespond_DeclineReleasesForReassignment(t *testing.T) {
	f := newTestCoordinator(t)
	d1 := uuid.New()
	asg, _ := f.coord.Assign(context.Background(), f.apptID, f.clinicID, d1, clinicRef(f.clinicID), nil)

	reason := "unavailable"
	got, err := f.coord.Respond(context.Background(), asg.ID, d1, false, &reason)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if got.Response != ResponseDeclined {
		t.Fatalf("expected declined, got %s", got.Response)
	}

	a, _ := f.appts.GetByID(context.Background(), f.apptID)
	if a.Status != appointment.StatusPending || a.DoctorID != nil {
		t.Fatalf("expected appointment released to pending, got %+v", a)
	}
	if a.DeclineReason == nil || *a.DeclineReason != "unavailable" {
		t.Error("expected decline reason on appointment")
	}

	// A fresh assignment is allowed now, and the old rows survive.
	d2 := uuid.New()
	if _, err := f.coord.Assign(context.Background(), f.apptID, f.clinicID, d2, clinicRef(f.clinicID), nil); err != nil {
		t.Fatalf("re-assign: %v", err)
	}
	all, _ := f.coord.ListByAppointment(context.Background(), f.apptID)
	if len(all) != 2 {
		t.Errorf("expected both routing attempts kept, got %d", len(all))
	}
}

func TestRespond_Authorization(t *testing.T) {
	f := newTestCoordinator(t)
	doctorID := uuid.New()
	asg, _ := f.coord.Assign(context.Background(), f.apptID, f.clinicID, doctorID, clinicRef(f.clinicID), nil)

	_, err := f.coord.Respond(context.Background(), asg.ID, uuid.New(), true, nil)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	if _, err := f.coord.Respond(context.Background(), asg.ID, doctorID, true, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err = f.coord.Respond(context.Background(), asg.ID, doctorID, false, nil)
	if !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("expected ErrAlreadyResponded, got %v", err)
	}
}

func TestAssign_AfterAcceptIsInvalidTransition(t *testing.T) {
	f := newTestCoordinator(t)
	doctorID := uuid.New()
	asg, _ := f.coord.Assign(context.Background(), f.apptID, f.clinicID, doctorID, clinicRef(f.clinicID), nil)
	if _, err := f.coord.Respond(context.Background(), asg.ID, doctorID, true, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// The previous assignment is closed, so the duplicate check passes;
	// the confirmed appointment itself rejects the move.
	_, err := f.coord.Assign(context.Background(), f.apptID, f.clinicID, uuid.New(), clinicRef(f.clinicID), nil)
	if !errors.Is(err, appointment.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestGiveUp_ClosesAsDeclined(t *testing.T) {
	f := newTestCoordinator(t)
	doctorID := uuid.New()
	asg, _ := f.coord.Assign(context.Background(), f.apptID, f.clinicID, doctorID, clinicRef(f.clinicID), nil)

	// Give-up is blocked while a routing attempt is still open.
	if err := f.coord.GiveUp(context.Background(), f.apptID, clinicRef(f.clinicID), nil); !errors.Is(err, ErrDuplicatePendingAssignment) {
		t.Fatalf("expected block while pending, got %v", err)
	}

	reason := "no doctors available"
	if _, err := f.coord.Respond(context.Background(), asg.ID, doctorID, false, &reason); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := f.coord.GiveUp(context.Background(), f.apptID, clinicRef(f.clinicID), &reason); err != nil {
		t.Fatalf("give up: %v", err)
	}

	a, _ := f.appts.GetByID(context.Background(), f.apptID)
	if a.Status != appointment.StatusDeclined {
		t.Errorf("expected declined, got %s", a.Status)
	}
}

func TestListByDoctor_PendingOnly(t *testing.T) {
	f := newTestCoordinator(t)
	doctorID := uuid.New()
	asg, _ := f.coord.Assign(context.Background(), f.apptID, f.clinicID, doctorID, clinicRef(f.clinicID), nil)

	pending, total, err := f.coord.ListByDoctor(context.Background(), doctorID, true, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(pending) != 1 || pending[0].ID != asg.ID {
		t.Fatalf("expected the open assignment, got %d", total)
	}

	if _, err := f.coord.Respond(context.Background(), asg.ID, doctorID, true, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	pending, _, _ = f.coord.ListByDoctor(context.Background(), doctorID, true, 20, 0)
	if len(pending) != 0 {
		t.Errorf("expected no pending assignments after accept, got %d", len(pending))
	}
}
