package router

import (
	"log/slog"
	"net/http"

	"github.com/motorlot/marketplace-api/internal/auditlog"
	"github.com/motorlot/marketplace-api/internal/auth"
)

// recordAuditLog attributes an admin mutation to the caller. Failures are
// logged and never fail the request that already succeeded.
func (a *api) recordAuditLog(r *http.Request, action, targetType, targetID string, before, after, metadata any) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if a.auditLogs == nil || !ok {
		return
	}

	entry := auditlog.RecordInput{
		ActorType:  auditlog.ActorTypeFor(identity.UserID, identity.Role.IsStaff()),
		ActorID:    identity.UserID,
		ActorRole:  identity.Role.String(),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Before:     before,
		After:      after,
		Metadata:   metadata,
	}
	if _, err := a.auditLogs.Record(entry); err != nil {
		a.logger.ErrorContext(r.Context(), "record audit log",
			slog.String("action", action),
			slog.String("target_type", targetType),
			slog.String("target_id", targetID),
			slog.Any("error", err),
		)
	}
}
