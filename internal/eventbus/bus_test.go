package eventbus

import (
	"context"
	"errors"
	"testing"
)

func TestDispatchRunsHandlersInSubscriptionOrder(t *testing.T) {
	bus := New()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe(TypeUserCreated, func(ctx context.Context, evt Event) error {
			order = append(order, i)
			return nil
		})
	}

	if err := bus.Dispatch(context.Background(), UserCreated{UserID: "u1"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("handlers ran out of order: %v", order)
	}
}

func TestDispatchIsolatesFailingHandlers(t *testing.T) {
	bus := New()
	var ran []string
	bus.Subscribe(TypeRoleCreated, func(ctx context.Context, evt Event) error {
		ran = append(ran, "boom")
		panic("boom")
	})
	bus.Subscribe(TypeRoleCreated, func(ctx context.Context, evt Event) error {
		ran = append(ran, "err")
		return errors.New("handler error")
	})
	bus.Subscribe(TypeRoleCreated, func(ctx context.Context, evt Event) error {
		ran = append(ran, "ok")
		return nil
	})

	err := bus.Dispatch(context.Background(), RoleCreated{RoleID: "r1", Name: "ops"})
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(ran) != 3 {
		t.Fatalf("expected all handlers to run, got %v", ran)
	}
}

func TestDispatchOnlyNotifiesMatchingType(t *testing.T) {
	bus := New()
	var got Event
	bus.Subscribe(TypeUserDeleted, func(ctx context.Context, evt Event) error {
		got = evt
		return nil
	})

	_ = bus.Dispatch(context.Background(), UserCreated{UserID: "u1"})
	if got != nil {
		t.Fatalf("handler for %s received %T", TypeUserDeleted, got)
	}

	_ = bus.Dispatch(context.Background(), UserDeleted{UserID: "u1", Email: "a@b.c"})
	deleted, ok := got.(UserDeleted)
	if !ok {
		t.Fatalf("expected UserDeleted, got %T", got)
	}
	if deleted.UserID != "u1" {
		t.Fatalf("unexpected payload: %+v", deleted)
	}
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	bus := New()
	calls := 0
	sub := bus.Subscribe(TypePermissionCreated, func(ctx context.Context, evt Event) error {
		calls++
		return nil
	})
	if bus.ListenerCount(TypePermissionCreated) != 1 {
		t.Fatalf("expected 1 listener, got %d", bus.ListenerCount(TypePermissionCreated))
	}

	_ = bus.Dispatch(context.Background(), PermissionCreated{Key: "user:view"})
	sub.Unsubscribe()
	_ = bus.Dispatch(context.Background(), PermissionCreated{Key: "user:view"})

	if calls != 1 {
		t.Fatalf("expected 1 call after unsubscribe, got %d", calls)
	}
	if bus.ListenerCount(TypePermissionCreated) != 0 {
		t.Fatalf("expected 0 listeners, got %d", bus.ListenerCount(TypePermissionCreated))
	}
}

func TestResetClearsAllSubscriptions(t *testing.T) {
	bus := New()
	for _, typ := range Types() {
		bus.Subscribe(typ, func(ctx context.Context, evt Event) error { return nil })
	}
	bus.Reset()
	for _, typ := range Types() {
		if n := bus.ListenerCount(typ); n != 0 {
			t.Fatalf("expected 0 listeners for %s after reset, got %d", typ, n)
		}
	}
}

func TestEveryTypeHasDistinctName(t *testing.T) {
	seen := map[Type]bool{}
	for _, typ := range Types() {
		if seen[typ] {
			t.Fatalf("duplicate event type %s", typ)
		}
		seen[typ] = true
	}
}
