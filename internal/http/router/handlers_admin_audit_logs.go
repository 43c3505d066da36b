package router

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/motorlot/marketplace-api/internal/auditlog"
)

// auditFilter reads the exact-match filters an admin may pass on the query
// string. Unknown parameters are ignored.
func auditFilter(query url.Values, limit, offset int) auditlog.ListInput {
	get := func(key string) string { return strings.TrimSpace(query.Get(key)) }
	return auditlog.ListInput{
		ActorID:    get("actor_id"),
		Action:     get("action"),
		TargetType: get("target_type"),
		TargetID:   get("target_id"),
		Limit:      limit,
		Offset:     offset,
	}
}

func (a *api) handleAdminAuditLogsList(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.auditLogs.List(auditFilter(r.URL.Query(), limit, offset)))
}
