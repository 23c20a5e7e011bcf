package eventbus

// Type identifies one kind of system event. The set is closed: every type has
// exactly one payload struct below, so subscribers can switch exhaustively.
type Type string

const (
	TypeUserLoggedIn              Type = "auth.user_logged_in"
	TypeUserLoggedOut             Type = "auth.user_logged_out"
	TypeUserRegistered            Type = "auth.user_registered"
	TypePasswordResetRequested    Type = "auth.password_reset_requested"
	TypePasswordChanged           Type = "auth.password_changed"
	TypeSessionExpired            Type = "auth.session_expired"
	TypeSessionRevoked            Type = "auth.session_revoked"
	TypeConcurrentSessionDetected Type = "auth.concurrent_session_detected"

	TypeUserCreated Type = "users.created"
	TypeUserUpdated Type = "users.updated"
	TypeUserDeleted Type = "users.deleted"

	TypeRoleCreated        Type = "roles.created"
	TypeRoleDeleted        Type = "roles.deleted"
	TypeUserRoleAssigned   Type = "roles.user_role_assigned"
	TypeUserRoleRevoked    Type = "roles.user_role_revoked"
	TypeRolePermissionsSet Type = "roles.permissions_set"
	TypePermissionCreated  Type = "permissions.created"
)

// Types lists every event type in the taxonomy.
func Types() []Type {
	return []Type{
		TypeUserLoggedIn,
		TypeUserLoggedOut,
		TypeUserRegistered,
		TypePasswordResetRequested,
		TypePasswordChanged,
		TypeSessionExpired,
		TypeSessionRevoked,
		TypeConcurrentSessionDetected,
		TypeUserCreated,
		TypeUserUpdated,
		TypeUserDeleted,
		TypeRoleCreated,
		TypeRoleDeleted,
		TypeUserRoleAssigned,
		TypeUserRoleRevoked,
		TypeRolePermissionsSet,
		TypePermissionCreated,
	}
}

// Event is implemented by every payload struct in the taxonomy.
type Event interface {
	EventType() Type
}

type UserLoggedIn struct {
	UserID    string
	SessionID string
	IP        string
	UserAgent string
}

func (UserLoggedIn) EventType() Type { return TypeUserLoggedIn }

type UserLoggedOut struct {
	UserID    string
	SessionID string
}

func (UserLoggedOut) EventType() Type { return TypeUserLoggedOut }

type UserRegistered struct {
	UserID string
	Email  string
}

func (UserRegistered) EventType() Type { return TypeUserRegistered }

type PasswordResetRequested struct {
	UserID string
	Email  string
}

func (PasswordResetRequested) EventType() Type { return TypePasswordResetRequested }

type PasswordChanged struct {
	UserID string
}

func (PasswordChanged) EventType() Type { return TypePasswordChanged }

type SessionExpired struct {
	UserID    string
	SessionID string
}

func (SessionExpired) EventType() Type { return TypeSessionExpired }

// SessionRevoked reports server-side session invalidation: a single remote
// session (Scope "one"), every session but the current one ("others"), or all
// sessions ("all").
type SessionRevoked struct {
	UserID    string
	SessionID string
	Scope     string
	Count     int64
}

func (SessionRevoked) EventType() Type { return TypeSessionRevoked }

type ConcurrentSessionDetected struct {
	UserID      string
	ActiveCount int64
}

func (ConcurrentSessionDetected) EventType() Type { return TypeConcurrentSessionDetected }

type UserCreated struct {
	UserID string
	Email  string
}

func (UserCreated) EventType() Type { return TypeUserCreated }

type UserUpdated struct {
	UserID string
	Before map[string]any
	After  map[string]any
}

func (UserUpdated) EventType() Type { return TypeUserUpdated }

type UserDeleted struct {
	UserID string
	Email  string
}

func (UserDeleted) EventType() Type { return TypeUserDeleted }

type RoleCreated struct {
	RoleID string
	Name   string
}

func (RoleCreated) EventType() Type { return TypeRoleCreated }

type RoleDeleted struct {
	RoleID string
	Name   string
}

func (RoleDeleted) EventType() Type { return TypeRoleDeleted }

type UserRoleAssigned struct {
	UserID    string
	RoleID    string
	GrantedBy string
}

func (UserRoleAssigned) EventType() Type { return TypeUserRoleAssigned }

type UserRoleRevoked struct {
	UserID string
	RoleID string
}

func (UserRoleRevoked) EventType() Type { return TypeUserRoleRevoked }

type RolePermissionsSet struct {
	RoleID      string
	Permissions []string
}

func (RolePermissionsSet) EventType() Type { return TypeRolePermissionsSet }

type PermissionCreated struct {
	Key string
}

func (PermissionCreated) EventType() Type { return TypePermissionCreated }
