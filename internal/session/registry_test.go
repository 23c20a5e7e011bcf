package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"adminkit.org/internal/eventbus"
)

type stubSessionStore struct {
	Store

	create        func(ctx context.Context, rec Record) error
	deleteExpired func(ctx context.Context) ([]Swept, error)
	deleteOne     func(ctx context.Context, id string) (bool, error)
}

func (s *stubSessionStore) Create(ctx context.Context, rec Record) error {
	return s.create(ctx, rec)
}

func (s *stubSessionStore) DeleteExpired(ctx context.Context) ([]Swept, error) {
	return s.deleteExpired(ctx)
}

func (s *stubSessionStore) Delete(ctx context.Context, id string) (bool, error) {
	return s.deleteOne(ctx, id)
}

func TestCreateRejectsPastExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &stubSessionStore{
		create: func(ctx context.Context, rec Record) error {
			t.Fatal("store must not be called for invalid input")
			return nil
		},
	}
	reg, err := NewRegistry(store, eventbus.New(), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	err = reg.Create(context.Background(), Record{
		ID:        "s1",
		UserID:    "u1",
		ExpiresAt: now.Add(-time.Minute),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateFillsCreatedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var stored Record
	store := &stubSessionStore{
		create: func(ctx context.Context, rec Record) error {
			stored = rec
			return nil
		},
	}
	reg, err := NewRegistry(store, eventbus.New(), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if err := reg.Create(context.Background(), Record{
		ID:        "s1",
		UserID:    "u1",
		ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !stored.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, stored.CreatedAt)
	}
}

func TestSweepExpiredEmitsEventPerRecord(t *testing.T) {
	store := &stubSessionStore{
		deleteExpired: func(ctx context.Context) ([]Swept, error) {
			return []Swept{
				{ID: "s1", UserID: "u1"},
				{ID: "s2", UserID: "u2"},
			}, nil
		},
	}
	bus := eventbus.New()
	var expired []eventbus.SessionExpired
	bus.Subscribe(eventbus.TypeSessionExpired, func(ctx context.Context, evt eventbus.Event) error {
		expired = append(expired, evt.(eventbus.SessionExpired))
		return nil
	})

	reg, err := NewRegistry(store, bus)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	count, err := reg.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 swept, got %d", count)
	}
	if len(expired) != 2 || expired[0].SessionID != "s1" || expired[1].SessionID != "s2" {
		t.Fatalf("unexpected events: %+v", expired)
	}
}

func TestDeleteReportsMissingRecord(t *testing.T) {
	store := &stubSessionStore{
		deleteOne: func(ctx context.Context, id string) (bool, error) {
			return false, nil
		},
	}
	reg, err := NewRegistry(store, eventbus.New())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	deleted, err := reg.Delete(context.Background(), "gone")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted {
		t.Fatal("expected deleted=false for a missing record")
	}

	if _, err := reg.Delete(context.Background(), "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank id, got %v", err)
	}
}
