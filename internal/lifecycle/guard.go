package lifecycle

import "github.com/motorlot/marketplace-api/internal/auth"

// Authorize decides whether the actor may request the action on the
// listing. The state table is consulted before any role logic so a wrong
// state always reports InvalidTransition, whoever asks.
func Authorize(actor Actor, listing Listing, action Action) Decision {
	if !CanTransition(action, listing.Status) {
		return Deny(ReasonInvalidTransition)
	}

	permissions := auth.PermissionsOf(actor.Role)
	owner := IsOwner(actor, listing)
	ownerManages := owner && permissions.HasAny(
		auth.PermissionManageOwnListings,
		auth.PermissionManageShowroomListings,
	)

	var allowed bool
	switch action {
	case ActionPublish:
		allowed = IsPrivileged(actor.Role) || ownerManages
	case ActionApprove, ActionReject:
		allowed = IsPrivileged(actor.Role)
	case ActionFeature:
		allowed = permissions.HasAny(auth.PermissionManageAllListings, auth.PermissionCreatePromotions)
	case ActionMarkSold, ActionDelete:
		allowed = ownerManages || permissions.Has(auth.PermissionManageAllListings)
	}

	if !allowed {
		return Deny(ReasonUnauthorized)
	}
	return Allow()
}

// IsOwner reports whether the actor owns the listing, either personally or
// as staff of the showroom the listing belongs to.
func IsOwner(actor Actor, listing Listing) bool {
	if actor.UserID != "" && actor.UserID == listing.OwnerUserID {
		return true
	}
	return listing.ShowroomID != "" &&
		actor.ShowroomID == listing.ShowroomID &&
		auth.HasPermission(actor.Role, auth.PermissionManageShowroomListings)
}

// IsPrivileged reports whether the role moderates listings platform-wide.
func IsPrivileged(role auth.Role) bool {
	return auth.PermissionsOf(role).HasAny(auth.PermissionApproveListings, auth.PermissionManageAllListings)
}

// AllowedActions lists the actions the actor is authorized to request on
// the listing right now. Payload checks are not applied.
func AllowedActions(actor Actor, listing Listing) []Action {
	allowed := make([]Action, 0, len(Actions()))
	for _, action := range Actions() {
		if Authorize(actor, listing, action).Allowed {
			allowed = append(allowed, action)
		}
	}
	return allowed
}
