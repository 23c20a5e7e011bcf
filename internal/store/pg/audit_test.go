package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"adminkit.org/internal/audit"
)

func TestAuditInsertSerializesDetails(t *testing.T) {
	store, mock := newMockStore(t)
	actor := "u1"

	mock.ExpectExec("insert into audit_logs").
		WithArgs(
			sqlmock.AnyArg(), // id
			sqlmock.AnyArg(), // actor_id
			"roles",
			"role_assign",
			sqlmock.AnyArg(), // entity_type
			sqlmock.AnyArg(), // entity_id
			[]byte(`{"role_id":"r1"}`),
			sqlmock.AnyArg(), // request_id
			sqlmock.AnyArg(), // ip
			"agent/1.0",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Insert(context.Background(), audit.Input{
		ActorID:    &actor,
		Module:     "roles",
		Action:     "role_assign",
		EntityType: "UserRole",
		EntityID:   "u2",
		Details:    map[string]any{"role_id": "r1"},
		UserAgent:  "agent/1.0",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditQueryAppliesFiltersAndPaging(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select count\\(\\*\\) from audit_logs where module = \\$1 and actor_id = \\$2").
		WithArgs("auth", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	mock.ExpectQuery("select id, actor_id, module, action, entity_type, entity_id, details, request_id, ip, user_agent, created_at.*from audit_logs where module = \\$1 and actor_id = \\$2.*order by created_at desc.*limit \\$3 offset \\$4").
		WithArgs("auth", "u1", 2, 1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "actor_id", "module", "action", "entity_type", "entity_id", "details", "request_id", "ip", "user_agent", "created_at",
		}).
			AddRow("a2", "u1", "auth", "login", "Session", "s2", []byte(`{"mfa":"none"}`), "req-2", "10.0.0.1", "agent/1.0", now).
			AddRow("a1", nil, "auth", "session_expired", "Session", "s1", []byte(`{}`), nil, nil, nil, now.Add(-time.Hour)))

	entries, total, err := store.Query(context.Background(), audit.Filters{
		Module:  "auth",
		ActorID: "u1",
		Limit:   2,
		Offset:  1,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 7 {
		t.Fatalf("expected total 7, got %d", total)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ActorID == nil || *entries[0].ActorID != "u1" {
		t.Fatalf("unexpected actor: %v", entries[0].ActorID)
	}
	if entries[1].ActorID != nil {
		t.Fatalf("system record must have nil actor, got %v", *entries[1].ActorID)
	}
	if entries[0].Details["mfa"] != "none" {
		t.Fatalf("details not decoded: %v", entries[0].Details)
	}
	if entries[0].UserAgent != "agent/1.0" || entries[1].UserAgent != "" {
		t.Fatalf("user agent not scanned: %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditQueryFiltersByRequestID(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select count\\(\\*\\) from audit_logs where request_id = \\$1").
		WithArgs("req-A").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery("from audit_logs where request_id = \\$1.*limit \\$2 offset \\$3").
		WithArgs("req-A", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "actor_id", "module", "action", "entity_type", "entity_id", "details", "request_id", "ip", "user_agent", "created_at",
		}).
			AddRow("a1", "u1", "roles", "role_assign", "UserRole", "u2", []byte(`{}`), "req-A", nil, nil, now))

	entries, total, err := store.Query(context.Background(), audit.Filters{
		RequestID: "req-A",
		Limit:     50,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 1 || len(entries) != 1 || entries[0].RequestID != "req-A" {
		t.Fatalf("unexpected result: total=%d entries=%+v", total, entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditAggregate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select count\\(\\*\\) from audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery("select action, count\\(\\*\\) from audit_logs group by action").
		WillReturnRows(sqlmock.NewRows([]string{"action", "count"}).
			AddRow("login", 8).
			AddRow("role_assign", 4))
	mock.ExpectQuery("select module, count\\(\\*\\) from audit_logs group by module").
		WillReturnRows(sqlmock.NewRows([]string{"module", "count"}).
			AddRow("auth", 8).
			AddRow("roles", 4))
	mock.ExpectQuery("select actor_id, count\\(\\*\\) as cnt.*from audit_logs.*where actor_id is not null.*group by actor_id.*order by cnt desc.*limit \\$1").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"actor_id", "cnt"}).
			AddRow("u1", 9).
			AddRow("u2", 3))

	stats, err := store.Aggregate(context.Background(), audit.Filters{}, 10)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if stats.TotalLogs != 12 {
		t.Fatalf("expected 12 logs, got %d", stats.TotalLogs)
	}
	if stats.ActionBreakdown["login"] != 8 || stats.ModuleBreakdown["roles"] != 4 {
		t.Fatalf("unexpected breakdowns: %+v", stats)
	}
	if len(stats.TopUsers) != 2 || stats.TopUsers[0].ActorID != "u1" || stats.TopUsers[0].Count != 9 {
		t.Fatalf("unexpected top users: %+v", stats.TopUsers)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditAggregateAppliesFilters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select count\\(\\*\\) from audit_logs where module = \\$1").
		WithArgs("auth").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))
	mock.ExpectQuery("select action, count\\(\\*\\) from audit_logs where module = \\$1 group by action").
		WithArgs("auth").
		WillReturnRows(sqlmock.NewRows([]string{"action", "count"}).AddRow("login", 8))
	mock.ExpectQuery("select module, count\\(\\*\\) from audit_logs where module = \\$1 group by module").
		WithArgs("auth").
		WillReturnRows(sqlmock.NewRows([]string{"module", "count"}).AddRow("auth", 8))
	mock.ExpectQuery("from audit_logs where module = \\$1 and actor_id is not null.*group by actor_id.*limit \\$2").
		WithArgs("auth", 10).
		WillReturnRows(sqlmock.NewRows([]string{"actor_id", "cnt"}).AddRow("u1", 8))

	stats, err := store.Aggregate(context.Background(), audit.Filters{Module: "auth"}, 10)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if stats.TotalLogs != 8 || stats.ActionBreakdown["login"] != 8 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
