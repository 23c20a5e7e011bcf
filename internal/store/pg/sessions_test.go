package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSessionDeleteReportsOutcome(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from sessions where id").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from sessions where id").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := store.Delete(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected deleted=true")
	}

	deleted, err = store.Delete(context.Background(), "gone")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted {
		t.Fatal("expected deleted=false for a missing record")
	}
}

func TestSessionListByUserFiltersExpired(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select id, user_id, expires_at, created_at, ip, user_agent.*from sessions.*where user_id = \\$1 and expires_at > now").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at", "ip", "user_agent"}).
			AddRow("s1", "u1", now.Add(time.Hour), now, "10.0.0.1", "agent"))

	recs, err := store.ListByUser(context.Background(), "u1", false)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "s1" || recs[0].IP != "10.0.0.1" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionCountActive(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select count\\(\\*\\) from sessions.*where user_id = \\$1 and expires_at > now").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := store.CountActive(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}

func TestSessionDeleteAllExcept(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from sessions.*where user_id = \\$1 and id <> \\$2").
		WithArgs("u1", "keep").
		WillReturnResult(sqlmock.NewResult(0, 4))

	count, err := store.DeleteAllExcept(context.Background(), "u1", "keep")
	if err != nil {
		t.Fatalf("DeleteAllExcept: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4, got %d", count)
	}
}

func TestSessionDeleteExpiredReturnsSweptRecords(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("delete from sessions.*where expires_at <= now.*returning id, user_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).
			AddRow("s1", "u1").
			AddRow("s2", "u2"))

	swept, err := store.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if len(swept) != 2 || swept[0].ID != "s1" || swept[1].UserID != "u2" {
		t.Fatalf("unexpected swept records: %+v", swept)
	}
}
