package audit

import (
	"context"
	"testing"

	"adminkit.org/internal/authn"
	"adminkit.org/internal/eventbus"
	"adminkit.org/internal/obs"
)

func capturingService(t *testing.T) (*Service, *[]Input) {
	t.Helper()
	var inputs []Input
	store := &stubAuditStore{
		insert: func(ctx context.Context, in Input) error {
			inputs = append(inputs, in)
			return nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, &inputs
}

func TestListenerSubscribesToEveryType(t *testing.T) {
	svc, _ := capturingService(t)
	bus := eventbus.New()
	NewListener(svc).Register(bus)

	for _, typ := range eventbus.Types() {
		if n := bus.ListenerCount(typ); n != 1 {
			t.Fatalf("expected 1 listener for %s, got %d", typ, n)
		}
	}
}

func TestListenerTranslatesRoleAssignment(t *testing.T) {
	svc, inputs := capturingService(t)
	bus := eventbus.New()
	NewListener(svc).Register(bus)

	ctx := authn.ContextWithPrincipal(context.Background(), authn.Principal{UserID: "admin-1"})
	ctx = obs.ContextWithRequestID(ctx, "req-42")

	_ = bus.Dispatch(ctx, eventbus.UserRoleAssigned{
		UserID:    "u1",
		RoleID:    "r1",
		GrantedBy: "admin-1",
	})

	if len(*inputs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(*inputs))
	}
	in := (*inputs)[0]
	if in.Module != "roles" || in.Action != "role_assign" {
		t.Fatalf("unexpected module/action: %s/%s", in.Module, in.Action)
	}
	if in.EntityType != "UserRole" || in.EntityID != "u1" {
		t.Fatalf("unexpected entity: %s/%s", in.EntityType, in.EntityID)
	}
	if in.ActorID == nil || *in.ActorID != "admin-1" {
		t.Fatalf("actor not taken from context: %v", in.ActorID)
	}
	if in.RequestID != "req-42" {
		t.Fatalf("request id not taken from context: %s", in.RequestID)
	}
	if in.Details["role_id"] != "r1" {
		t.Fatalf("unexpected details: %v", in.Details)
	}
}

func TestListenerRecordsSystemEventsWithoutActor(t *testing.T) {
	svc, inputs := capturingService(t)
	bus := eventbus.New()
	NewListener(svc).Register(bus)

	// Expiry sweeps run outside any request, so no principal is attached.
	_ = bus.Dispatch(context.Background(), eventbus.SessionExpired{UserID: "u1", SessionID: "s1"})

	if len(*inputs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(*inputs))
	}
	in := (*inputs)[0]
	if in.ActorID != nil {
		t.Fatalf("system event must have no actor, got %v", *in.ActorID)
	}
	if in.Module != "auth" || in.Action != "session_expired" || in.EntityID != "s1" {
		t.Fatalf("unexpected record: %+v", in)
	}
}

func TestListenerTranslatesSessionRevocationScope(t *testing.T) {
	svc, inputs := capturingService(t)
	bus := eventbus.New()
	NewListener(svc).Register(bus)

	_ = bus.Dispatch(context.Background(), eventbus.SessionRevoked{
		UserID: "u1",
		Scope:  "others",
		Count:  4,
	})

	if len(*inputs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(*inputs))
	}
	in := (*inputs)[0]
	if in.Action != "session_revoked" {
		t.Fatalf("unexpected action: %s", in.Action)
	}
	if in.Details["scope"] != "others" || in.Details["count"] != int64(4) {
		t.Fatalf("unexpected details: %v", in.Details)
	}
}

func TestListenerRecordsLoginClientInfo(t *testing.T) {
	svc, inputs := capturingService(t)
	bus := eventbus.New()
	NewListener(svc).Register(bus)

	_ = bus.Dispatch(context.Background(), eventbus.UserLoggedIn{
		UserID:    "u1",
		SessionID: "s1",
		IP:        "10.0.0.1",
		UserAgent: "Mozilla/5.0",
	})

	if len(*inputs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(*inputs))
	}
	in := (*inputs)[0]
	if in.IP != "10.0.0.1" || in.UserAgent != "Mozilla/5.0" {
		t.Fatalf("client info not carried on the record: %+v", in)
	}
	if _, ok := in.Details["user_agent"]; ok {
		t.Fatal("user agent belongs on the record field, not in details")
	}
}

func TestListenerDerivesPermissionModule(t *testing.T) {
	svc, inputs := capturingService(t)
	bus := eventbus.New()
	NewListener(svc).Register(bus)

	_ = bus.Dispatch(context.Background(), eventbus.PermissionCreated{Key: "report:export"})

	if len(*inputs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(*inputs))
	}
	in := (*inputs)[0]
	if in.EntityID != "report:export" || in.Details["module"] != "report" {
		t.Fatalf("unexpected record: %+v", in)
	}
}

func TestListenerCarriesUserUpdateSnapshots(t *testing.T) {
	svc, inputs := capturingService(t)
	bus := eventbus.New()
	NewListener(svc).Register(bus)

	_ = bus.Dispatch(context.Background(), eventbus.UserUpdated{
		UserID: "u1",
		Before: map[string]any{"email": "old@example.com"},
		After:  map[string]any{"email": "new@example.com"},
	})

	in := (*inputs)[0]
	before := in.Details["before"].(map[string]any)
	after := in.Details["after"].(map[string]any)
	if before["email"] != "old@example.com" || after["email"] != "new@example.com" {
		t.Fatalf("snapshots not carried: %v", in.Details)
	}
}
