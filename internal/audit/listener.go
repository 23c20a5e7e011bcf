package audit

import (
	"context"

	"adminkit.org/internal/authn"
	"adminkit.org/internal/eventbus"
	"adminkit.org/internal/obs"
	"adminkit.org/internal/rbac"
)

// Listener translates taxonomy events into audit records. It is the only
// audit producer: services dispatch events, the listener decides what the
// trail records.
type Listener struct {
	svc *Service
}

// NewListener constructs the listener.
func NewListener(svc *Service) *Listener {
	return &Listener{svc: svc}
}

// Register subscribes the listener to every event type in the taxonomy.
func (l *Listener) Register(bus *eventbus.Bus) {
	for _, typ := range eventbus.Types() {
		bus.Subscribe(typ, l.handle)
	}
}

func (l *Listener) handle(ctx context.Context, evt eventbus.Event) error {
	in, ok := l.translate(evt)
	if !ok {
		return nil
	}
	if actorID, found := authn.ActorIDFromContext(ctx); found {
		in.ActorID = &actorID
	}
	in.RequestID = obs.RequestIDFromContext(ctx)
	l.svc.Log(ctx, in)
	return nil
}

// translate maps one event payload to an audit record. The switch is
// exhaustive over the taxonomy; an unknown event is dropped rather than
// recorded half-formed.
func (l *Listener) translate(evt eventbus.Event) (Input, bool) {
	switch e := evt.(type) {
	case eventbus.UserLoggedIn:
		actor := e.UserID
		return Input{
			ActorID:    &actor,
			Module:     "auth",
			Action:     "login",
			EntityType: "Session",
			EntityID:   e.SessionID,
			IP:         e.IP,
			UserAgent:  e.UserAgent,
		}, true
	case eventbus.UserLoggedOut:
		actor := e.UserID
		return Input{
			ActorID:    &actor,
			Module:     "auth",
			Action:     "logout",
			EntityType: "Session",
			EntityID:   e.SessionID,
		}, true
	case eventbus.UserRegistered:
		actor := e.UserID
		return Input{
			ActorID:    &actor,
			Module:     "auth",
			Action:     "register",
			EntityType: "User",
			EntityID:   e.UserID,
			Details:    detail("email", e.Email),
		}, true
	case eventbus.PasswordResetRequested:
		return Input{
			Module:     "auth",
			Action:     "password_reset_requested",
			EntityType: "User",
			EntityID:   e.UserID,
		}, true
	case eventbus.PasswordChanged:
		actor := e.UserID
		return Input{
			ActorID:    &actor,
			Module:     "auth",
			Action:     "password_changed",
			EntityType: "User",
			EntityID:   e.UserID,
		}, true
	case eventbus.SessionExpired:
		return Input{
			Module:     "auth",
			Action:     "session_expired",
			EntityType: "Session",
			EntityID:   e.SessionID,
			Details:    detail("user_id", e.UserID),
		}, true
	case eventbus.SessionRevoked:
		actor := e.UserID
		return Input{
			ActorID:    &actor,
			Module:     "auth",
			Action:     "session_revoked",
			EntityType: "Session",
			EntityID:   e.SessionID,
			Details: map[string]any{
				"scope": e.Scope,
				"count": e.Count,
			},
		}, true
	case eventbus.ConcurrentSessionDetected:
		return Input{
			Module:     "auth",
			Action:     "concurrent_session_detected",
			EntityType: "User",
			EntityID:   e.UserID,
			Details:    map[string]any{"active_count": e.ActiveCount},
		}, true
	case eventbus.UserCreated:
		return Input{
			Module:     "users",
			Action:     "user_create",
			EntityType: "User",
			EntityID:   e.UserID,
			Details:    detail("email", e.Email),
		}, true
	case eventbus.UserUpdated:
		return Input{
			Module:     "users",
			Action:     "user_update",
			EntityType: "User",
			EntityID:   e.UserID,
			Details: map[string]any{
				"before": e.Before,
				"after":  e.After,
			},
		}, true
	case eventbus.UserDeleted:
		return Input{
			Module:     "users",
			Action:     "user_delete",
			EntityType: "User",
			EntityID:   e.UserID,
			Details:    detail("email", e.Email),
		}, true
	case eventbus.RoleCreated:
		return Input{
			Module:     "roles",
			Action:     "role_create",
			EntityType: "Role",
			EntityID:   e.RoleID,
			Details:    detail("name", e.Name),
		}, true
	case eventbus.RoleDeleted:
		return Input{
			Module:     "roles",
			Action:     "role_delete",
			EntityType: "Role",
			EntityID:   e.RoleID,
			Details:    detail("name", e.Name),
		}, true
	case eventbus.UserRoleAssigned:
		return Input{
			Module:     "roles",
			Action:     "role_assign",
			EntityType: "UserRole",
			EntityID:   e.UserID,
			Details: map[string]any{
				"role_id":    e.RoleID,
				"granted_by": e.GrantedBy,
			},
		}, true
	case eventbus.UserRoleRevoked:
		return Input{
			Module:     "roles",
			Action:     "role_revoke",
			EntityType: "UserRole",
			EntityID:   e.UserID,
			Details:    detail("role_id", e.RoleID),
		}, true
	case eventbus.RolePermissionsSet:
		return Input{
			Module:     "roles",
			Action:     "permissions_set",
			EntityType: "Role",
			EntityID:   e.RoleID,
			Details:    map[string]any{"permissions": e.Permissions},
		}, true
	case eventbus.PermissionCreated:
		return Input{
			Module:     "permissions",
			Action:     "permission_create",
			EntityType: "Permission",
			EntityID:   e.Key,
			Details:    detail("module", rbac.PermissionModule(e.Key)),
		}, true
	default:
		return Input{}, false
	}
}

func detail(key, value string) map[string]any {
	if value == "" {
		return nil
	}
	return map[string]any{key: value}
}
