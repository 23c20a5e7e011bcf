package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"adminkit.org/internal/authn"
	"adminkit.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/register",
	"/v1/auth/password/reset",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		principal, err := a.auth.Authenticate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := authn.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal extracts the authenticated identity or writes a 401.
func (a *API) principal(w http.ResponseWriter, r *http.Request) (authn.Principal, bool) {
	p, ok := authn.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return authn.Principal{}, false
	}
	return p, true
}

// ensurePermissions checks the snapshot embedded in the credential for every
// listed permission. The 403 response never enumerates which permissions were
// checked; the detail stays in the server-side log.
func (a *API) ensurePermissions(w http.ResponseWriter, r *http.Request, perms ...string) bool {
	p, ok := a.principal(w, r)
	if !ok {
		return false
	}
	var missing []string
	for _, perm := range perms {
		if !p.HasPermission(perm) {
			missing = append(missing, perm)
		}
	}
	if len(missing) > 0 {
		obs.CountAuthzDenial()
		obs.LogError("permission denied", map[string]any{
			"user_id":    p.UserID,
			"path":       r.URL.Path,
			"checked":    perms,
			"missing":    missing,
			"request_id": obs.RequestIDFromContext(r.Context()),
		})
		writeError(w, r, http.StatusForbidden, "permission denied")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
