package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(DefaultOptions(), time.Minute)

	s := m.Create()
	if _, err := uuid.Parse(s.ID()); err != nil {
		t.Errorf("session id %q is not a UUID: %v", s.ID(), err)
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}

	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}

	if err := m.Close(s.ID()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after close err = %v", err)
	}
	if err := m.Close(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Close err = %v", err)
	}
	if _, err := s.Process(frame(td3First)); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Process after close err = %v", err)
	}
}

func TestManagerSweep(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	opts := DefaultOptions()
	opts.Clock = func() time.Time { return now }

	m := NewManager(opts, 5*time.Minute)
	idle := m.Create()
	active := m.Create()

	now = now.Add(4 * time.Minute)
	active.Process(frame(td3First))

	now = now.Add(2 * time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}
	if _, err := m.Get(idle.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("idle session still present: %v", err)
	}
	if _, err := m.Get(active.ID()); err != nil {
		t.Errorf("active session evicted: %v", err)
	}
	if !idle.Stats().Closed {
		t.Error("evicted session not closed")
	}
}

func TestManagerSweepDisabled(t *testing.T) {
	m := NewManager(DefaultOptions(), 0)
	m.Create()

	if n := m.Sweep(); n != 0 {
		t.Errorf("swept %d sessions with sweeping disabled", n)
	}
}

func TestManagerRunStopsOnCancel(t *testing.T) {
	m := NewManager(DefaultOptions(), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager(DefaultOptions(), time.Minute)
	a, b := m.Create(), m.Create()

	m.CloseAll()
	if m.Len() != 0 {
		t.Errorf("len = %d, want 0", m.Len())
	}
	if !a.Stats().Closed || !b.Stats().Closed {
		t.Error("sessions not closed")
	}
}
