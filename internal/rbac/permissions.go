package rbac

import (
	"fmt"
	"regexp"
	"strings"
)

// Permission keys follow "module:action": lowercase letters and underscores
// on both sides of a single colon.
var permissionKeyPattern = regexp.MustCompile(`^[a-z_]+:[a-z_]+$`)

const (
	PermUserCreate = "user:create"
	PermUserView   = "user:view"
	PermUserUpdate = "user:update"
	PermUserDelete = "user:delete"

	PermRoleCreate = "role:create"
	PermRoleView   = "role:view"
	PermRoleUpdate = "role:update"
	PermRoleDelete = "role:delete"
	PermRoleAssign = "role:assign"

	PermPermissionCreate = "permission:create"
	PermPermissionView   = "permission:view"

	PermAuditView     = "audit:view"
	PermSessionManage = "session:manage"
)

// BuiltinPermissions is the catalog ensured at startup.
var BuiltinPermissions = []Permission{
	{Key: PermUserCreate, Description: "Create users"},
	{Key: PermUserView, Description: "View users"},
	{Key: PermUserUpdate, Description: "Update users"},
	{Key: PermUserDelete, Description: "Delete users"},
	{Key: PermRoleCreate, Description: "Create roles"},
	{Key: PermRoleView, Description: "View roles"},
	{Key: PermRoleUpdate, Description: "Update roles"},
	{Key: PermRoleDelete, Description: "Delete roles"},
	{Key: PermRoleAssign, Description: "Assign roles to users"},
	{Key: PermPermissionCreate, Description: "Create permissions"},
	{Key: PermPermissionView, Description: "View the permission catalog"},
	{Key: PermAuditView, Description: "Query the audit log"},
	{Key: PermSessionManage, Description: "Manage other users' sessions"},
}

// ValidatePermissionKey checks the lexical shape of a permission identifier.
func ValidatePermissionKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: permission key is required", ErrInvalidInput)
	}
	if !permissionKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: permission key %q must match module:action (lowercase letters and underscores)", ErrInvalidInput, key)
	}
	return nil
}

// PermissionModule returns the module part of a permission key.
func PermissionModule(key string) string {
	if idx := strings.IndexByte(key, ':'); idx > 0 {
		return key[:idx]
	}
	return key
}
