package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"adminkit.org/internal/audit"
	"adminkit.org/internal/rbac"
)

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, rbac.PermAuditView) {
		return
	}

	filters, ok := auditFiltersFromQuery(w, r)
	if !ok {
		return
	}

	page, err := a.audit.GetLogs(r.Context(), filters)
	if err != nil {
		handleAuditError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, rbac.PermAuditView) {
		return
	}
	filters, ok := auditFiltersFromQuery(w, r)
	if !ok {
		return
	}
	stats, err := a.audit.GetStats(r.Context(), filters)
	if err != nil {
		handleAuditError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// auditFiltersFromQuery parses the shared audit filter parameters. On a bad
// value it writes a 400 naming the field and reports ok=false.
func auditFiltersFromQuery(w http.ResponseWriter, r *http.Request) (audit.Filters, bool) {
	q := r.URL.Query()
	filters := audit.Filters{
		Module:     q.Get("module"),
		Action:     q.Get("action"),
		ActorID:    q.Get("actor_id"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		RequestID:  q.Get("request_id"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return audit.Filters{}, false
		}
		filters.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
			return audit.Filters{}, false
		}
		filters.Offset = n
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "start_date must be RFC3339")
			return audit.Filters{}, false
		}
		filters.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "end_date must be RFC3339")
			return audit.Filters{}, false
		}
		filters.EndDate = &t
	}
	return filters, true
}

func handleAuditError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, audit.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "audit query failed")
	}
}
