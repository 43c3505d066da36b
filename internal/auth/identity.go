package auth

import "context"

// Identity is the caller as resolved for one request. Role and showroom
// come from the stored user, not from token claims.
type Identity struct {
	UserID     string
	Role       Role
	SessionID  string
	ShowroomID *string
}

// Permissions returns the permission set of the identity's current role.
func (i Identity) Permissions() PermissionSet {
	return PermissionsOf(i.Role)
}

// Showroom returns the showroom the caller belongs to, if any.
func (i Identity) Showroom() (string, bool) {
	if i.ShowroomID == nil || *i.ShowroomID == "" {
		return "", false
	}
	return *i.ShowroomID, true
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}
