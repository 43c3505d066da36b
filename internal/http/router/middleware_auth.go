package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/motorlot/marketplace-api/internal/auth"
)

var (
	errMissingBearer = errors.New("missing bearer token")
	errUnknownUser   = errors.New("token subject no longer exists")
)

// authenticate rejects requests without a valid access token.
func (a *api) authenticate(next http.Handler) http.Handler {
	return a.resolveIdentity(next, true)
}

// optionalAuthenticate lets anonymous requests through but still rejects a
// token that is present and invalid.
func (a *api) optionalAuthenticate(next http.Handler) http.Handler {
	return a.resolveIdentity(next, false)
}

func (a *api) resolveIdentity(next http.Handler, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !required && strings.TrimSpace(header) == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := a.identityFromHeader(header)
		if err != nil {
			message := "invalid access token"
			if required {
				message = "authentication required"
			}
			writeError(w, http.StatusUnauthorized, message)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

func (a *api) requirePermission(permission auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			switch {
			case !ok:
				writeError(w, http.StatusUnauthorized, "authentication required")
			case !identity.Permissions().Has(permission):
				writeError(w, http.StatusForbidden, "forbidden")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// identityFromHeader validates the bearer token, then takes role and
// showroom from the stored user so promotions, demotions and showroom
// changes apply without waiting for the token to expire.
func (a *api) identityFromHeader(header string) (auth.Identity, error) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return auth.Identity{}, errMissingBearer
	}

	claims, err := a.tokenManager.ParseAndValidate(token, auth.TokenTypeAccess)
	if err != nil {
		return auth.Identity{}, err
	}
	user, exists := a.authService.GetUserByID(claims.UserID)
	if !exists {
		return auth.Identity{}, errUnknownUser
	}
	return auth.Identity{
		UserID:     user.ID,
		Role:       user.Role,
		SessionID:  claims.SessionID,
		ShowroomID: user.ShowroomID,
	}, nil
}
