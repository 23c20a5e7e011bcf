package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubAuditStore struct {
	insert    func(ctx context.Context, in Input) error
	query     func(ctx context.Context, f Filters) ([]Entry, int64, error)
	aggregate func(ctx context.Context, f Filters, topN int) (Stats, error)
}

func (s *stubAuditStore) Insert(ctx context.Context, in Input) error {
	return s.insert(ctx, in)
}

func (s *stubAuditStore) Query(ctx context.Context, f Filters) ([]Entry, int64, error) {
	return s.query(ctx, f)
}

func (s *stubAuditStore) Aggregate(ctx context.Context, f Filters, topN int) (Stats, error) {
	return s.aggregate(ctx, f, topN)
}

func TestLogAbsorbsStoreFailure(t *testing.T) {
	store := &stubAuditStore{
		insert: func(ctx context.Context, in Input) error {
			return errors.New("db down")
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	// Must not panic or propagate anything.
	svc.Log(context.Background(), Input{Module: "auth", Action: "login"})
}

func TestLogDropsRecordsWithoutModuleOrAction(t *testing.T) {
	inserted := false
	store := &stubAuditStore{
		insert: func(ctx context.Context, in Input) error {
			inserted = true
			return nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	svc.Log(context.Background(), Input{Module: "auth"})
	svc.Log(context.Background(), Input{Action: "login"})
	if inserted {
		t.Fatal("half-formed records must not reach the store")
	}
}

func TestGetLogsClampsLimit(t *testing.T) {
	var seen Filters
	store := &stubAuditStore{
		query: func(ctx context.Context, f Filters) ([]Entry, int64, error) {
			seen = f
			return nil, 0, nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.GetLogs(context.Background(), Filters{Limit: 500}); err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if seen.Limit != 100 {
		t.Fatalf("expected limit clamped to 100, got %d", seen.Limit)
	}

	if _, err := svc.GetLogs(context.Background(), Filters{}); err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if seen.Limit != 50 {
		t.Fatalf("expected default limit 50, got %d", seen.Limit)
	}

	if _, err := svc.GetLogs(context.Background(), Filters{Offset: -5}); err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if seen.Offset != 0 {
		t.Fatalf("expected negative offset clamped to 0, got %d", seen.Offset)
	}
}

func TestGetLogsPagingMetadata(t *testing.T) {
	entries := []Entry{{ID: "a"}, {ID: "b"}}
	store := &stubAuditStore{
		query: func(ctx context.Context, f Filters) ([]Entry, int64, error) {
			return entries, 10, nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	page, err := svc.GetLogs(context.Background(), Filters{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if page.Total != 10 || page.Count != 2 || page.Limit != 2 || page.Offset != 4 {
		t.Fatalf("unexpected page metadata: %+v", page)
	}
	if !page.HasMore {
		t.Fatal("expected has_more with 6 of 10 consumed")
	}
}

func TestGetLogsBeyondTotal(t *testing.T) {
	store := &stubAuditStore{
		query: func(ctx context.Context, f Filters) ([]Entry, int64, error) {
			return nil, 3, nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	page, err := svc.GetLogs(context.Background(), Filters{Offset: 50})
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if page.Count != 0 || page.HasMore {
		t.Fatalf("expected empty page without has_more, got %+v", page)
	}
	if page.Logs == nil {
		t.Fatal("logs must serialize as an empty array, not null")
	}
}

func TestGetLogsRejectsInvertedDateRange(t *testing.T) {
	store := &stubAuditStore{
		query: func(ctx context.Context, f Filters) ([]Entry, int64, error) {
			t.Fatal("store must not be queried for an invalid range")
			return nil, 0, nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.GetLogs(context.Background(), Filters{StartDate: &start, EndDate: &end})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetStatsFillsEmptyAggregates(t *testing.T) {
	store := &stubAuditStore{
		aggregate: func(ctx context.Context, f Filters, topN int) (Stats, error) {
			if topN != 10 {
				t.Fatalf("expected top 10, got %d", topN)
			}
			return Stats{TotalLogs: 0}, nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	stats, err := svc.GetStats(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.ActionBreakdown == nil || stats.ModuleBreakdown == nil || stats.TopUsers == nil {
		t.Fatalf("aggregates must serialize as empty containers: %+v", stats)
	}
}

func TestGetStatsForwardsFilters(t *testing.T) {
	var seen Filters
	store := &stubAuditStore{
		aggregate: func(ctx context.Context, f Filters, topN int) (Stats, error) {
			seen = f
			return Stats{}, nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.GetStats(context.Background(), Filters{Module: "auth", ActorID: "u1"}); err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if seen.Module != "auth" || seen.ActorID != "u1" {
		t.Fatalf("filters not forwarded: %+v", seen)
	}
}

func TestGetStatsRejectsInvertedDateRange(t *testing.T) {
	store := &stubAuditStore{
		aggregate: func(ctx context.Context, f Filters, topN int) (Stats, error) {
			t.Fatal("store must not aggregate an invalid range")
			return Stats{}, nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.GetStats(context.Background(), Filters{StartDate: &start, EndDate: &end})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
