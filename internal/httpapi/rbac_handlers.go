package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"adminkit.org/internal/rbac"
)

type createUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type updateUserRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type setRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type createPermissionRequest struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, rbac.PermUserView) {
			return
		}
		users, err := a.rbac.ListUsers(r.Context())
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		if users == nil {
			users = []rbac.User{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"users": users,
			"count": len(users),
		})
	case http.MethodPost:
		if !a.ensurePermissions(w, r, rbac.PermUserCreate) {
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.auth.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
		writeJSON(w, http.StatusCreated, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUserResource routes /v1/users/{id}, /v1/users/{id}/roles,
// /v1/users/{id}/roles/{roleID}, and /v1/users/{id}/permissions.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleUserByID(w, r, userID)
	case len(parts) == 2 && parts[1] == "roles":
		a.handleUserRoles(w, r, userID)
	case len(parts) == 3 && parts[1] == "roles":
		a.handleUserRole(w, r, userID, parts[2])
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleUserPermissions(w, r, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUserByID(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, rbac.PermUserView) {
			return
		}
		user, err := a.rbac.GetUser(r.Context(), userID)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		if !a.ensurePermissions(w, r, rbac.PermUserUpdate) {
			return
		}
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.UpdateUser(r.Context(), userID, rbac.UserUpdate{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if !a.ensurePermissions(w, r, rbac.PermUserDelete) {
			return
		}
		if err := a.rbac.DeleteUser(r.Context(), userID); err != nil {
			handleRBACError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, rbac.PermRoleView) {
			return
		}
		assignments, err := a.rbac.AssignmentsForUser(r.Context(), userID)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		if assignments == nil {
			assignments = []rbac.UserRole{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"assignments": assignments,
			"count":       len(assignments),
		})
	case http.MethodPost:
		if !a.ensurePermissions(w, r, rbac.PermRoleAssign) {
			return
		}
		p, ok := a.principal(w, r)
		if !ok {
			return
		}
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.RoleID) == "" {
			writeError(w, r, http.StatusBadRequest, "role_id is required")
			return
		}
		assignment, err := a.rbac.AssignRole(r.Context(), userID, req.RoleID, p.UserID)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, assignment)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensurePermissions(w, r, rbac.PermRoleAssign) {
		return
	}
	if err := a.rbac.RevokeRole(r.Context(), userID, roleID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUserPermissions returns the user's effective permission set resolved
// live from storage, not the snapshot in any outstanding credential.
func (a *API) handleUserPermissions(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, rbac.PermUserView) {
		return
	}
	if _, err := a.rbac.GetUser(r.Context(), userID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	perms, err := a.rbac.EffectivePermissions(r.Context(), userID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	if perms == nil {
		perms = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"permissions": perms,
	})
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, rbac.PermRoleView) {
			return
		}
		roles, err := a.rbac.ListRoles(r.Context())
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		if roles == nil {
			roles = []rbac.Role{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"roles": roles,
			"count": len(roles),
		})
	case http.MethodPost:
		if !a.ensurePermissions(w, r, rbac.PermRoleCreate) {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.CreateRole(r.Context(), req.Name, req.Description)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleRoleResource routes /v1/roles/{id} and /v1/roles/{id}/permissions.
func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/roles/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	roleID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleRoleByID(w, r, roleID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, roleID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRoleByID(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, rbac.PermRoleView) {
			return
		}
		role, err := a.rbac.GetRole(r.Context(), roleID)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPatch:
		if !a.ensurePermissions(w, r, rbac.PermRoleUpdate) {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.UpdateRole(r.Context(), roleID, rbac.RoleUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if !a.ensurePermissions(w, r, rbac.PermRoleDelete) {
			return
		}
		if err := a.rbac.DeleteRole(r.Context(), roleID); err != nil {
			handleRBACError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, rbac.PermRoleView) {
			return
		}
		perms, err := a.rbac.PermissionsForRole(r.Context(), roleID)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		if perms == nil {
			perms = []rbac.Permission{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"role_id":     roleID,
			"permissions": perms,
		})
	case http.MethodPut:
		if !a.ensurePermissions(w, r, rbac.PermRoleUpdate) {
			return
		}
		var req setRolePermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.rbac.SetRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
			handleRBACError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, rbac.PermPermissionView) {
			return
		}
		perms, err := a.rbac.ListPermissions(r.Context())
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		if perms == nil {
			perms = []rbac.Permission{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"permissions": perms,
			"count":       len(perms),
		})
	case http.MethodPost:
		if !a.ensurePermissions(w, r, rbac.PermPermissionCreate) {
			return
		}
		var req createPermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.rbac.CreatePermission(r.Context(), req.Key, req.Description)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, perm)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}
