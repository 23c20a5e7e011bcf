package httpapi

import (
	"net/http"
	"strings"
)

// handleSessions serves the collection: GET lists the caller's sessions,
// DELETE closes all of them, current one included.
func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		includeExpired := r.URL.Query().Get("include_expired") == "true"
		sessions, err := a.auth.Sessions(r.Context(), p, includeExpired)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sessions": sessions,
			"count":    len(sessions),
		})
	case http.MethodDelete:
		count, err := a.auth.CloseAllSessions(r.Context(), p)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"closed": count,
		})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

// handleSessionResource serves /v1/sessions/{id} and /v1/sessions/others.
func (a *API) handleSessionResource(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	path = strings.Trim(path, "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}

	if path == "others" {
		count, err := a.auth.CloseOtherSessions(r.Context(), p)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"closed": count,
		})
		return
	}

	if err := a.auth.InvalidateSession(r.Context(), p, path); err != nil {
		handleAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
