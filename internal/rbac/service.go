package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"adminkit.org/internal/eventbus"
)

// Service provides permission evaluation and role/permission administration.
// All authorization decisions in the system go through this service; every
// mutation publishes its event on the bus as a side effect.
type Service struct {
	store Store
	bus   *eventbus.Bus
}

// NewService constructs the RBAC service.
func NewService(store Store, bus *eventbus.Bus) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	if bus == nil {
		return nil, errors.New("event bus is required")
	}
	return &Service{store: store, bus: bus}, nil
}

// EnsureBuiltins makes sure the builtin permission catalog exists.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions)
}

// EffectivePermissions returns the deduplicated union of permissions reachable
// through all of the user's role assignments. A user without roles gets an
// empty slice, not an error.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	perms, err := s.store.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Strings(perms)
	return perms, nil
}

// HasPermission reports whether the user's effective set contains perm.
func (s *Service) HasPermission(ctx context.Context, userID, perm string) (bool, error) {
	perms, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyPermission reports whether the effective set intersects perms.
func (s *Service) HasAnyPermission(ctx context.Context, userID string, perms []string) (bool, error) {
	effective, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	set := make(map[string]struct{}, len(effective))
	for _, p := range effective {
		set[p] = struct{}{}
	}
	for _, p := range perms {
		if _, ok := set[p]; ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions checks that every permission in perms is held. On failure
// the result lists exactly the missing permissions, sorted.
func (s *Service) HasAllPermissions(ctx context.Context, userID string, perms []string) (CheckResult, error) {
	effective, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return CheckResult{}, err
	}
	set := make(map[string]struct{}, len(effective))
	for _, p := range effective {
		set[p] = struct{}{}
	}
	var missing []string
	for _, p := range perms {
		if _, ok := set[p]; !ok {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	return CheckResult{Granted: len(missing) == 0, Missing: missing}, nil
}

// CreateUser registers a user record. The password hash is produced by the
// caller (the authn package owns hashing).
func (s *Service) CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if passwordHash == "" {
		return User{}, fmt.Errorf("%w: password hash is required", ErrInvalidInput)
	}
	user, err := s.store.CreateUser(ctx, email, passwordHash, strings.TrimSpace(firstName), strings.TrimSpace(lastName))
	if err != nil {
		return User{}, err
	}
	_ = s.bus.Dispatch(ctx, eventbus.UserCreated{UserID: user.ID, Email: user.Email})
	return user, nil
}

// GetUser loads one user.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, userID)
}

// FindUserByEmail loads one user by unique email.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.store.FindUserByEmail(ctx, email)
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// UpdateUser applies a partial update and emits an event carrying before and
// after snapshots of the changed fields.
func (s *Service) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	before, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	after, err := s.store.UpdateUser(ctx, userID, upd)
	if err != nil {
		return User{}, err
	}
	_ = s.bus.Dispatch(ctx, eventbus.UserUpdated{
		UserID: userID,
		Before: userSnapshot(before),
		After:  userSnapshot(after),
	})
	return after, nil
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	_ = s.bus.Dispatch(ctx, eventbus.UserDeleted{UserID: userID, Email: user.Email})
	return nil
}

// UpdatePassword replaces the user's stored password hash. Hashing policy is
// owned by the authn package; no event is emitted here because the password
// change flow dispatches its own.
func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" || passwordHash == "" {
		return fmt.Errorf("%w: user_id and password hash are required", ErrInvalidInput)
	}
	return s.store.UpdateUserPassword(ctx, userID, passwordHash)
}

// CreateRole creates a role with a unique name.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role, err := s.store.CreateRole(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, err
	}
	_ = s.bus.Dispatch(ctx, eventbus.RoleCreated{RoleID: role.ID, Name: role.Name})
	return role, nil
}

// GetRole loads one role.
func (s *Service) GetRole(ctx context.Context, roleID string) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, roleID)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// UpdateRole applies a partial role update.
func (s *Service) UpdateRole(ctx context.Context, roleID string, upd RoleUpdate) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	return s.store.UpdateRole(ctx, roleID, upd)
}

// DeleteRole removes a role. A role with active user assignments cannot be
// deleted; permission associations cascade with the role.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	count, err := s.store.CountRoleAssignments(ctx, roleID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d active assignments", ErrRoleInUse, count)
	}
	if err := s.store.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	_ = s.bus.Dispatch(ctx, eventbus.RoleDeleted{RoleID: roleID, Name: role.Name})
	return nil
}

// CreatePermission adds a permission to the catalog after validating its key.
func (s *Service) CreatePermission(ctx context.Context, key, description string) (Permission, error) {
	key = strings.TrimSpace(key)
	if err := ValidatePermissionKey(key); err != nil {
		return Permission{}, err
	}
	perm, err := s.store.CreatePermission(ctx, key, strings.TrimSpace(description))
	if err != nil {
		return Permission{}, err
	}
	_ = s.bus.Dispatch(ctx, eventbus.PermissionCreated{Key: perm.Key})
	return perm, nil
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// SetRolePermissions replaces the role's permission set.
func (s *Service) SetRolePermissions(ctx context.Context, roleID string, keys []string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	keys = dedupeKeys(keys)
	for _, key := range keys {
		if err := ValidatePermissionKey(key); err != nil {
			return err
		}
	}
	if err := s.store.SetRolePermissions(ctx, roleID, keys); err != nil {
		return err
	}
	_ = s.bus.Dispatch(ctx, eventbus.RolePermissionsSet{RoleID: roleID, Permissions: keys})
	return nil
}

// PermissionsForRole lists the permissions attached to one role.
func (s *Service) PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.store.PermissionsForRole(ctx, roleID)
}

// AssignRole links a role to a user, recording the granting user. Duplicate
// assignments surface as ErrConflict through the store's unique constraint.
func (s *Service) AssignRole(ctx context.Context, userID, roleID, grantedBy string) (UserRole, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return UserRole{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	assignment, err := s.store.AssignRole(ctx, userID, roleID, strings.TrimSpace(grantedBy))
	if err != nil {
		return UserRole{}, err
	}
	_ = s.bus.Dispatch(ctx, eventbus.UserRoleAssigned{
		UserID:    assignment.UserID,
		RoleID:    assignment.RoleID,
		GrantedBy: assignment.GrantedBy,
	})
	return assignment, nil
}

// RevokeRole removes a role assignment.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	if err := s.store.RevokeRole(ctx, userID, roleID); err != nil {
		return err
	}
	_ = s.bus.Dispatch(ctx, eventbus.UserRoleRevoked{UserID: userID, RoleID: roleID})
	return nil
}

// AssignmentsForUser lists the user's role assignments.
func (s *Service) AssignmentsForUser(ctx context.Context, userID string) ([]UserRole, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.AssignmentsForUser(ctx, userID)
}

func userSnapshot(u User) map[string]any {
	return map[string]any{
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	}
}

func dedupeKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
