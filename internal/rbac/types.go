package rbac

import "time"

// User is an account that can authenticate and hold roles. Other subsystems
// reference users by id, never embed them.
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	PasswordHash    string     `json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DisplayName returns the name embedded into issued credentials.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// Role groups permissions under a unique name.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a fine-grained capability keyed by a stable "module:action"
// identifier. Keys are referenced directly from calling code, so they stay
// stable across data reseeding.
type Permission struct {
	Key         string    `json:"key"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserRole links a user to a role and records who granted the assignment.
// The composite (UserID, RoleID) is the primary key.
type UserRole struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	GrantedBy string    `json:"granted_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RolePermission links a role to a permission. Composite primary key.
type RolePermission struct {
	RoleID        string    `json:"role_id"`
	PermissionKey string    `json:"permission_key"`
	CreatedAt     time.Time `json:"created_at"`
}

// UserUpdate carries partial user changes; nil fields are left untouched.
type UserUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// RoleUpdate carries partial role changes.
type RoleUpdate struct {
	Name        *string
	Description *string
}

// CheckResult reports the outcome of an all-of permission check. Missing lists
// only the permissions the user lacks, never the ones it holds.
type CheckResult struct {
	Granted bool     `json:"granted"`
	Missing []string `json:"missing,omitempty"`
}
