package router

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/motorlot/marketplace-api/internal/auth"
	"github.com/motorlot/marketplace-api/internal/platform/identifier"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=buyer seller garage"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Role        auth.Role         `json:"role"`
	ShowroomID  *string           `json:"showroom_id,omitempty"`
	Permissions []auth.Permission `json:"permissions"`
	CreatedAt   time.Time         `json:"created_at"`
}

type sessionResponse struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token"`
	AccessExpiresAt  time.Time    `json:"access_expires_at"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	User             userResponse `json:"user"`
}

func toUserResponse(user auth.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		Role:        user.Role,
		ShowroomID:  user.ShowroomID,
		Permissions: auth.PermissionsOf(user.Role).Sorted(),
		CreatedAt:   user.CreatedAt,
	}
}

// startSession issues a token pair under a new refresh session.
func (a *api) startSession(w http.ResponseWriter, status int, user auth.User) {
	sessionID := identifier.New("ses")
	pair, err := a.tokenManager.IssueTokenPair(user, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}
	a.authService.OpenSession(sessionID, user.ID, pair.RefreshToken, pair.RefreshExpiresAt)

	writeJSON(w, status, sessionResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User:             toUserResponse(user),
	})
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := a.authService.Register(req.Email, req.Password, auth.Role(strings.TrimSpace(req.Role)))
	switch {
	case err == nil:
		a.startSession(w, http.StatusCreated, user)
	case errors.Is(err, auth.ErrEmailInUse):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, auth.ErrRoleNotSelectable):
		writeError(w, http.StatusBadRequest, "role cannot be chosen at registration")
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, "password must be between 8 and 72 bytes")
	default:
		writeError(w, http.StatusBadRequest, "registration failed")
	}
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := a.authService.Authenticate(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	a.startSession(w, http.StatusOK, user)
}

// handleAuthRefresh rotates the session: the presented refresh token is
// consumed and a new pair is issued under a new session id.
func (a *api) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	raw := strings.TrimSpace(req.RefreshToken)

	claims, err := a.tokenManager.ParseAndValidate(raw, auth.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, "refresh token expired")
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	user, err := a.authService.ConsumeRefresh(claims.SessionID, claims.UserID, raw)
	switch {
	case err == nil:
		a.startSession(w, http.StatusOK, user)
	case errors.Is(err, auth.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "refresh session expired")
	default:
		writeError(w, http.StatusUnauthorized, "invalid refresh session")
	}
}

// handleAuthLogout closes the session named by the refresh token in the
// body, or the caller's current session when none is given.
func (a *api) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID := identity.SessionID
	var req refreshRequest
	if err := decodeJSON(r, &req); err == nil && strings.TrimSpace(req.RefreshToken) != "" {
		if claims, err := a.tokenManager.ParseAndValidate(strings.TrimSpace(req.RefreshToken), auth.TokenTypeRefresh); err == nil {
			sessionID = claims.SessionID
		}
	}

	a.authService.RevokeSession(sessionID, identity.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (a *api) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, exists := a.authService.GetUserByID(identity.UserID)
	if !exists {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
