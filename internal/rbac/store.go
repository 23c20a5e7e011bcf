package rbac

import "context"

// Store describes persistence operations required by the RBAC subsystem.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (User, error)
	GetUser(ctx context.Context, userID string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, userID string, upd UserUpdate) (User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	DeleteUser(ctx context.Context, userID string) error

	CreateRole(ctx context.Context, name, description string) (Role, error)
	GetRole(ctx context.Context, roleID string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, roleID string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, roleID string) error
	CountRoleAssignments(ctx context.Context, roleID string) (int64, error)

	CreatePermission(ctx context.Context, key, description string) (Permission, error)
	EnsurePermissions(ctx context.Context, perms []Permission) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	SetRolePermissions(ctx context.Context, roleID string, keys []string) error
	PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)

	AssignRole(ctx context.Context, userID, roleID, grantedBy string) (UserRole, error)
	RevokeRole(ctx context.Context, userID, roleID string) error
	AssignmentsForUser(ctx context.Context, userID string) ([]UserRole, error)
	EffectivePermissions(ctx context.Context, userID string) ([]string, error)
}
