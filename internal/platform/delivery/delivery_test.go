package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/igabay/care/internal/domain/actor"
	"github.com/igabay/care/internal/domain/notification"
)

type mockRepo struct {
	mu     sync.Mutex
	notifs map[uuid.UUID]*notification.Notification
}

func newMockRepo() *mockRepo {
	return &mockRepo{notifs: make(map[uuid.UUID]*notification.Notification)}
}

func (m *mockRepo) seed(n int) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for i := 0; i < n; i++ {
		id := uuid.New()
		apptID := uuid.New()
		m.notifs[id] = &notification.Notification{
			ID:            id,
			RecipientID:   uuid.New(),
			RecipientType: actor.Patient,
			Category:      notification.AppointmentConfirmed,
			Title:         "Appointment confirmed",
			Priority:      notification.PriorityNormal,
			AppointmentID: &apptID,
		}
		ids = append(ids, id)
	}
	return ids
}

func (m *mockRepo) Upsert(ctx context.Context, n *notification.Notification) error { return nil }

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifs[id]
	if !ok {
		return nil, notification.ErrNotFound
	}
	return n, nil
}

func (m *mockRepo) ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*notification.Notification, int, error) {
	return nil, 0, nil
}

func (m *mockRepo) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	return 0, nil
}

func (m *mockRepo) MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) error { return nil }
func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error                     { return nil }
func (m *mockRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error)    { return 0, nil }

func (m *mockRepo) ListUndelivered(ctx context.Context, limit int) ([]*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*notification.Notification
	for _, n := range m.notifs {
		if n.DeliveredAt == nil {
			out = append(out, n)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockRepo) MarkDelivered(ctx context.Context, id uuid.UUID, channel string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifs[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.DeliveredAt = &at
	n.DeliveryChannel = &channel
	return nil
}

type mockChannel struct {
	name  string
	fail  bool
	mu    sync.Mutex
	calls int
}

func (c *mockChannel) Name() string { return c.name }

func (c *mockChannel) Send(ctx context.Context, n *notification.Notification) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.fail {
		return errors.New("channel down")
	}
	return nil
}

func TestDeliverBatch_MarksDelivered(t *testing.T) {
	repo := newMockRepo()
	ids := repo.seed(3)
	ch := &mockChannel{name: "push"}
	w := NewWorker(repo, []Channel{ch}, time.Second, 10, zerolog.Nop())

	delivered, err := w.DeliverBatch(context.Background())
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered != 3 {
		t.Fatalf("expected 3 delivered, got %d", delivered)
	}
	for _, id := range ids {
		n, _ := repo.GetByID(context.Background(), id)
		if n.DeliveredAt == nil || n.DeliveryChannel == nil || *n.DeliveryChannel != "push" {
			t.Errorf("notification %s not marked delivered via push", id)
		}
	}
}

func TestDeliverBatch_FallsBackToNextChannel(t *testing.T) {
	repo := newMockRepo()
	repo.seed(1)
	bad := &mockChannel{name: "push", fail: true}
	good := &mockChannel{name: "email"}
	w := NewWorker(repo, []Channel{bad, good}, time.Second, 10, zerolog.Nop())

	delivered, err := w.DeliverBatch(context.Background())
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected fallback delivery, got %d", delivered)
	}
	if bad.calls != 1 || good.calls != 1 {
		t.Errorf("expected both channels tried, got push=%d email=%d", bad.calls, good.calls)
	}
}

func TestDeliverBatch_FailureLeavesRowForRetry(t *testing.T) {
	repo := newMockRepo()
	ids := repo.seed(1)
	ch := &mockChannel{name: "push", fail: true}
	w := NewWorker(repo, []Channel{ch}, time.Second, 10, zerolog.Nop())

	delivered, err := w.DeliverBatch(context.Background())
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered != 0 {
		t.Fatalf("expected nothing delivered, got %d", delivered)
	}
	n, _ := repo.GetByID(context.Background(), ids[0])
	if n.DeliveredAt != nil {
		t.Error("failed send must leave the row undelivered")
	}

	// Channel recovers; the next batch picks the row up again.
	ch.fail = false
	delivered, _ = w.DeliverBatch(context.Background())
	if delivered != 1 {
		t.Errorf("expected retry to deliver, got %d", delivered)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	repo := newMockRepo()
	w := NewWorker(repo, []Channel{&mockChannel{name: "push"}}, time.Millisecond, 10, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
