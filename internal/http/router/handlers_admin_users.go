package router

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/motorlot/marketplace-api/internal/auditlog"
	"github.com/motorlot/marketplace-api/internal/auth"
)

type adminUserRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// handleAdminUserRole promotes or demotes a user. Granting or revoking the
// admin tiers is reserved for super admins.
func (a *api) handleAdminUserRole(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req adminUserRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	userID := chi.URLParam(r, "userID")
	target, exists := a.authService.GetUserByID(userID)
	if !exists {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if userID == identity.UserID {
		writeError(w, http.StatusForbidden, "cannot change your own role")
		return
	}
	if identity.Role != auth.RoleSuperAdmin && (isAdminTier(role) || isAdminTier(target.Role)) {
		writeError(w, http.StatusForbidden, "only a super admin can change admin roles")
		return
	}

	updated, err := a.authService.SetRole(userID, role)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, auth.ErrUnknownRole):
			writeError(w, http.StatusBadRequest, "unknown role")
		default:
			writeError(w, http.StatusInternalServerError, "unable to change role")
		}
		return
	}

	a.recordAuditLog(
		r,
		auditlog.ActionUserRoleChanged,
		auditlog.TargetUser,
		updated.ID,
		map[string]string{"role": target.Role.String()},
		map[string]string{"role": updated.Role.String()},
		nil,
	)

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func isAdminTier(role auth.Role) bool {
	return role == auth.RoleAdmin || role == auth.RoleSuperAdmin
}
