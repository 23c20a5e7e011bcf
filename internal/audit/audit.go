package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"adminkit.org/internal/obs"
)

var ErrInvalidInput = errors.New("audit: invalid input")

const (
	defaultLimit = 50
	maxLimit     = 100
	topUserCount = 10
)

// Entry is one persisted audit record. ActorID is nil for system-originated
// records such as expiry sweeps.
type Entry struct {
	ID         string         `json:"id"`
	ActorID    *string        `json:"actor_id,omitempty"`
	Module     string         `json:"module"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Input is the write-side shape of an audit record.
type Input struct {
	ActorID    *string
	Module     string
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	RequestID  string
	IP         string
	UserAgent  string
}

// Filters narrows a log query. Zero values mean "no constraint".
type Filters struct {
	Module     string
	Action     string
	ActorID    string
	EntityType string
	EntityID   string
	RequestID  string
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}

// Page is one page of audit records plus paging metadata.
type Page struct {
	Logs    []Entry `json:"logs"`
	Total   int64   `json:"total"`
	Count   int     `json:"count"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
	HasMore bool    `json:"has_more"`
}

// UserActivity is one row of the most-active-actors breakdown.
type UserActivity struct {
	ActorID string `json:"actor_id"`
	Count   int64  `json:"count"`
}

// Stats aggregates the trail for dashboards.
type Stats struct {
	TotalLogs       int64            `json:"total_logs"`
	ActionBreakdown map[string]int64 `json:"action_breakdown"`
	ModuleBreakdown map[string]int64 `json:"module_breakdown"`
	TopUsers        []UserActivity   `json:"top_users"`
}

// Store describes persistence operations for the audit trail.
type Store interface {
	Insert(ctx context.Context, in Input) error
	Query(ctx context.Context, f Filters) ([]Entry, int64, error)
	Aggregate(ctx context.Context, f Filters, topN int) (Stats, error)
}

// Service records and queries the audit trail.
type Service struct {
	store Store
}

// NewService constructs the audit service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	return &Service{store: store}, nil
}

// Log persists one audit record. Failures are logged and counted but never
// surfaced: auditing must not fail the operation being audited.
func (s *Service) Log(ctx context.Context, in Input) {
	in.Module = strings.TrimSpace(in.Module)
	in.Action = strings.TrimSpace(in.Action)
	if in.Module == "" || in.Action == "" {
		obs.LogError("audit record dropped", map[string]any{
			"module": in.Module,
			"action": in.Action,
			"reason": "module and action are required",
		})
		obs.CountAuditWriteFailure()
		return
	}
	if err := s.store.Insert(ctx, in); err != nil {
		obs.LogError("audit write failed", map[string]any{
			"module": in.Module,
			"action": in.Action,
			"error":  err.Error(),
		})
		obs.CountAuditWriteFailure()
	}
}

// GetLogs returns one page of the trail, newest first. The limit defaults to
// 50 and is capped at 100; out-of-range values are clamped, not rejected.
func (s *Service) GetLogs(ctx context.Context, f Filters) (Page, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return Page{}, fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}
	logs, total, err := s.store.Query(ctx, f)
	if err != nil {
		return Page{}, err
	}
	if logs == nil {
		logs = []Entry{}
	}
	return Page{
		Logs:    logs,
		Total:   total,
		Count:   len(logs),
		Limit:   f.Limit,
		Offset:  f.Offset,
		HasMore: int64(f.Offset+len(logs)) < total,
	}, nil
}

// GetStats returns aggregate counts over the records matching the filters.
// Paging fields are ignored.
func (s *Service) GetStats(ctx context.Context, f Filters) (Stats, error) {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return Stats{}, fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}
	stats, err := s.store.Aggregate(ctx, f, topUserCount)
	if err != nil {
		return Stats{}, err
	}
	if stats.ActionBreakdown == nil {
		stats.ActionBreakdown = map[string]int64{}
	}
	if stats.ModuleBreakdown == nil {
		stats.ModuleBreakdown = map[string]int64{}
	}
	if stats.TopUsers == nil {
		stats.TopUsers = []UserActivity{}
	}
	return stats, nil
}
