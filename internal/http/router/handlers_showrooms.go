package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/motorlot/marketplace-api/internal/auditlog"
	"github.com/motorlot/marketplace-api/internal/auth"
	"github.com/motorlot/marketplace-api/internal/showrooms"
)

type showroomRegisterRequest struct {
	Slug        string `json:"slug" validate:"required,min=2,max=60"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=120"`
	City        string `json:"city" validate:"max=80"`
}

type showroomProfileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=2,max=120"`
	City        *string `json:"city" validate:"omitempty,max=80"`
}

type showroomStaffRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type showroomListResponse struct {
	Items []showrooms.Showroom `json:"items"`
	Total int                  `json:"total"`
}

func (a *api) handleShowroomsList(w http.ResponseWriter, _ *http.Request) {
	items := a.showrooms.List()
	writeJSON(w, http.StatusOK, showroomListResponse{Items: items, Total: len(items)})
}

func (a *api) handleShowroomGet(w http.ResponseWriter, r *http.Request) {
	showroom, exists := a.showrooms.GetByID(strings.TrimSpace(chi.URLParam(r, "showroomID")))
	if !exists {
		writeError(w, http.StatusNotFound, "showroom not found")
		return
	}
	writeJSON(w, http.StatusOK, showroom)
}

// handleShowroomRegister creates a showroom owned by the caller and moves
// the caller onto a dealer role. Staff accounts cannot open showrooms.
func (a *api) handleShowroomRegister(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if identity.Role.IsStaff() {
		writeError(w, http.StatusForbidden, "staff accounts cannot register a showroom")
		return
	}

	var req showroomRegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	registered, err := a.showrooms.Register(identity.UserID, req.Slug, req.DisplayName, req.City)
	if err != nil {
		switch {
		case errors.Is(err, showrooms.ErrOwnerAlreadyLinked):
			writeError(w, http.StatusConflict, "user already belongs to a showroom")
		case errors.Is(err, showrooms.ErrSlugInUse):
			writeError(w, http.StatusConflict, "showroom slug unavailable")
		default:
			writeError(w, http.StatusBadRequest, "unable to register showroom")
		}
		return
	}

	if _, err := a.authService.AttachShowroom(identity.UserID, registered.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "unable to link showroom")
		return
	}

	writeJSON(w, http.StatusCreated, registered)
}

func (a *api) handleShowroomMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	showroom, exists := a.showrooms.GetByMember(identity.UserID)
	if !exists {
		writeError(w, http.StatusNotFound, "showroom not found")
		return
	}
	writeJSON(w, http.StatusOK, showroom)
}

func (a *api) handleShowroomUpdateProfile(w http.ResponseWriter, r *http.Request) {
	showroom, ok := a.callerShowroom(w, r)
	if !ok {
		return
	}

	var req showroomProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := a.showrooms.UpdateProfile(showroom.ID, showrooms.ProfileInput{
		DisplayName: req.DisplayName,
		City:        req.City,
	})
	if err != nil {
		switch {
		case errors.Is(err, showrooms.ErrInvalidShowroom):
			writeError(w, http.StatusBadRequest, "invalid showroom profile")
		default:
			writeError(w, http.StatusInternalServerError, "unable to update showroom")
		}
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *api) handleShowroomAddStaff(w http.ResponseWriter, r *http.Request) {
	showroom, ok := a.callerOwnedShowroom(w, r)
	if !ok {
		return
	}

	var req showroomStaffRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID := strings.TrimSpace(req.UserID)
	member, exists := a.authService.GetUserByID(userID)
	if !exists {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if member.Role.IsStaff() {
		writeError(w, http.StatusBadRequest, "platform staff cannot join a showroom")
		return
	}

	updated, err := a.showrooms.AddStaff(showroom.ID, userID)
	if err != nil {
		switch {
		case errors.Is(err, showrooms.ErrMemberElsewhere):
			writeError(w, http.StatusConflict, "user already belongs to another showroom")
		default:
			writeError(w, http.StatusBadRequest, "unable to add showroom staff")
		}
		return
	}
	if _, err := a.authService.AttachShowroom(userID, showroom.ID); err != nil {
		_, _ = a.showrooms.RemoveStaff(showroom.ID, userID)
		writeError(w, http.StatusConflict, "user already belongs to another showroom")
		return
	}

	a.recordAuditLog(r, auditlog.ActionShowroomStaffChanged, auditlog.TargetShowroom, showroom.ID,
		nil, nil, map[string]string{"change": "added", "user_id": userID})
	writeJSON(w, http.StatusOK, updated)
}

func (a *api) handleShowroomRemoveStaff(w http.ResponseWriter, r *http.Request) {
	showroom, ok := a.callerOwnedShowroom(w, r)
	if !ok {
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	updated, err := a.showrooms.RemoveStaff(showroom.ID, userID)
	if err != nil {
		switch {
		case errors.Is(err, showrooms.ErrOwnerRemoval):
			writeError(w, http.StatusBadRequest, "showroom owner cannot be removed")
		case errors.Is(err, showrooms.ErrNotMember):
			writeError(w, http.StatusNotFound, "user is not a showroom member")
		default:
			writeError(w, http.StatusInternalServerError, "unable to remove showroom staff")
		}
		return
	}
	if _, err := a.authService.DetachShowroom(userID); err != nil {
		writeError(w, http.StatusInternalServerError, "unable to unlink showroom")
		return
	}

	a.recordAuditLog(r, auditlog.ActionShowroomStaffChanged, auditlog.TargetShowroom, showroom.ID,
		nil, nil, map[string]string{"change": "removed", "user_id": userID})
	writeJSON(w, http.StatusOK, updated)
}

func (a *api) callerShowroom(w http.ResponseWriter, r *http.Request) (showrooms.Showroom, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return showrooms.Showroom{}, false
	}
	showroom, exists := a.showrooms.GetByMember(identity.UserID)
	if !exists {
		writeError(w, http.StatusNotFound, "showroom not found")
		return showrooms.Showroom{}, false
	}
	return showroom, true
}

// callerOwnedShowroom restricts staff management to the showroom owner.
func (a *api) callerOwnedShowroom(w http.ResponseWriter, r *http.Request) (showrooms.Showroom, bool) {
	showroom, ok := a.callerShowroom(w, r)
	if !ok {
		return showrooms.Showroom{}, false
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	if showroom.OwnerUserID != identity.UserID {
		writeError(w, http.StatusForbidden, "only the showroom owner can manage staff")
		return showrooms.Showroom{}, false
	}
	return showroom, true
}
