package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"adminkit.org/internal/eventbus"
)

var (
	ErrNotFound     = errors.New("session: not found")
	ErrInvalidInput = errors.New("session: invalid input")
)

// Record is the durable, server-side record of an issued credential. It exists
// alongside the stateless token, not instead of it: the registry is the
// management and revocation surface, the token remains the authorization
// source of truth.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"-"`
}

// Swept identifies one session removed by the expiry sweep.
type Swept struct {
	ID     string
	UserID string
}

// Store describes persistence operations for session records.
type Store interface {
	Create(ctx context.Context, rec Record) error
	ListByUser(ctx context.Context, userID string, includeExpired bool) ([]Record, error)
	// Delete reports false when the record was already gone; that is not an
	// error for callers.
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAllExcept(ctx context.Context, userID, keepID string) (int64, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
	CountActive(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context) ([]Swept, error)
}

// Registry is the session registry service.
type Registry struct {
	store Store
	bus   *eventbus.Bus
	now   func() time.Time
}

// Option configures the Registry.
type Option func(*Registry)

// WithClock overrides the time source. Useful for tests.
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRegistry constructs the registry service.
func NewRegistry(store Store, bus *eventbus.Bus, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if bus == nil {
		return nil, errors.New("event bus is required")
	}
	r := &Registry{store: store, bus: bus, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Create persists a session record. The id must equal the session identifier
// embedded in the credential that created it so revocation can be correlated.
func (r *Registry) Create(ctx context.Context, rec Record) error {
	rec.ID = strings.TrimSpace(rec.ID)
	rec.UserID = strings.TrimSpace(rec.UserID)
	if rec.ID == "" || rec.UserID == "" {
		return fmt.Errorf("%w: session id and user id are required", ErrInvalidInput)
	}
	if rec.ExpiresAt.IsZero() || !rec.ExpiresAt.After(r.now()) {
		return fmt.Errorf("%w: expiry must be in the future", ErrInvalidInput)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	return r.store.Create(ctx, rec)
}

// ListActive returns the user's sessions, excluding expired records unless
// includeExpired is set.
func (r *Registry) ListActive(ctx context.Context, userID string, includeExpired bool) ([]Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return r.store.ListByUser(ctx, userID, includeExpired)
}

// Delete removes one session record. Returns false when it was already gone.
func (r *Registry) Delete(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	return r.store.Delete(ctx, id)
}

// DeleteAllExcept removes every session of the user except keepID.
func (r *Registry) DeleteAllExcept(ctx context.Context, userID, keepID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	keepID = strings.TrimSpace(keepID)
	if userID == "" || keepID == "" {
		return 0, fmt.Errorf("%w: user id and session id are required", ErrInvalidInput)
	}
	return r.store.DeleteAllExcept(ctx, userID, keepID)
}

// DeleteAll removes every session of the user.
func (r *Registry) DeleteAll(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return r.store.DeleteAll(ctx, userID)
}

// CountActive returns the number of unexpired sessions for the user.
func (r *Registry) CountActive(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return r.store.CountActive(ctx, userID)
}

// SweepExpired deletes expired records and emits a session-expired event for
// each. Delete-where-expired is idempotent, so concurrent sweeps are safe.
func (r *Registry) SweepExpired(ctx context.Context) (int64, error) {
	swept, err := r.store.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range swept {
		_ = r.bus.Dispatch(ctx, eventbus.SessionExpired{UserID: s.UserID, SessionID: s.ID})
	}
	return int64(len(swept)), nil
}
