package lock

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestSlotKey(t *testing.T) {
	doctorID := uuid.New()
	got := slotKey(doctorID, "2026-09-15", "10:30")
	want := fmt.Sprintf("lock:slot:%s:2026-09-15:10:30", doctorID)
	if got != want {
		t.Errorf("slotKey = %q, want %q", got, want)
	}
}

func TestNoopLocker_RunsCallback(t *testing.T) {
	var ran bool
	err := NoopLocker{}.WithSlot(context.Background(), uuid.New(), "2026-09-15", "10:30", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithSlot: %v", err)
	}
	if !ran {
		t.Error("callback did not run")
	}
}

func TestNoopLocker_PropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	err := NoopLocker{}.WithSlot(context.Background(), uuid.New(), "2026-09-15", "10:30", func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected callback error, got %v", err)
	}
}
