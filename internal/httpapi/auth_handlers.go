package httpapi

import (
	"net/http"
	"strings"

	"adminkit.org/internal/authn"
)

func loginInput(r *http.Request, req loginRequest) authn.LoginInput {
	return authn.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	cred, err := a.auth.Login(r.Context(), loginInput(r, req))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":       cred.Token,
		"expires_at":  cred.ExpiresAt,
		"user_id":     cred.Principal.UserID,
		"name":        cred.Principal.Name,
		"permissions": cred.Principal.PermissionList(),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.auth.Logout(r.Context(), p); err != nil {
		handleAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}
	user, err := a.auth.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     p.UserID,
		"name":        p.Name,
		"session_id":  p.SessionID,
		"permissions": p.PermissionList(),
	})
}

func (a *API) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, r, http.StatusBadRequest, "current_password and new_password are required")
		return
	}
	if err := a.auth.ChangePassword(r.Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
		handleAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePasswordReset always answers 202 so the endpoint cannot be used to
// probe which emails have accounts.
func (a *API) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	_ = a.auth.RequestPasswordReset(r.Context(), req.Email)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
	})
}
