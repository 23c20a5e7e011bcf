package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"adminkit.org/internal/authn"
	"adminkit.org/internal/obs"
	"adminkit.org/internal/rbac"
	"adminkit.org/internal/session"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := obs.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleRBACError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, rbac.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, rbac.ErrRoleInUse):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, rbac.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "operation failed")
	}
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authn.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, authn.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, authn.ErrCurrentSession):
		writeError(w, r, http.StatusConflict, "cannot invalidate the current session")
	case errors.Is(err, authn.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, rbac.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, rbac.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, rbac.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "operation failed")
	}
}
