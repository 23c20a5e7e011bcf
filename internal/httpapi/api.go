package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"adminkit.org/internal/audit"
	"adminkit.org/internal/authn"
	"adminkit.org/internal/obs"
	"adminkit.org/internal/rbac"
)

// ReadyProbe checks backing-service readiness, typically a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options bundles the dependencies and tunables of the HTTP layer.
type Options struct {
	Auth       *authn.Manager
	RBAC       *rbac.Service
	Audit      *audit.Service
	ReadyProbe ReadyProbe
	Version    string

	RateLimitBurst     int
	RateLimitPerSecond int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *authn.Manager
	rbac       *rbac.Service
	audit      *audit.Service
	readyProbe ReadyProbe
	version    string

	rateBurst     int
	ratePerSecond int
}

func New(opts Options) *API {
	a := &API{
		mux:           http.NewServeMux(),
		auth:          opts.Auth,
		rbac:          opts.RBAC,
		audit:         opts.Audit,
		readyProbe:    opts.ReadyProbe,
		version:       opts.Version,
		rateBurst:     opts.RateLimitBurst,
		ratePerSecond: opts.RateLimitPerSecond,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSecond <= 0 {
		a.ratePerSecond = 10
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)
	a.mux.HandleFunc("/v1/auth/password", a.handlePasswordChange)
	a.mux.HandleFunc("/v1/auth/password/reset", a.handlePasswordReset)

	// sessions
	a.mux.HandleFunc("/v1/sessions", a.handleSessions)
	a.mux.HandleFunc("/v1/sessions/", a.handleSessionResource)

	// users, roles, permissions
	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/roles", a.handleRoles)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissions)

	// audit trail
	a.mux.HandleFunc("/v1/audit", a.handleAuditLogs)
	a.mux.HandleFunc("/v1/audit/stats", a.handleAuditStats)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	h = Logging(h)
	h = RequestID(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

// --- service handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "adminkit-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "adminkit-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
