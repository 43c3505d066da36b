package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/motorlot/marketplace-api/internal/auth"
)

func listingIn(status Status) Listing {
	return Listing{ID: "lst_1", OwnerUserID: "usr_owner", Status: status, Version: 3}
}

func TestAuthorizeRejectsIllegalStateForEveryRole(t *testing.T) {
	for _, role := range auth.Roles() {
		for _, action := range Actions() {
			for _, status := range Statuses() {
				if CanTransition(action, status) {
					continue
				}
				owner := Actor{UserID: "usr_owner", Role: role}
				stranger := Actor{UserID: "usr_other", Role: role}
				listing := listingIn(status)

				assert.Equal(t, Deny(ReasonInvalidTransition), Authorize(owner, listing, action),
					"role=%s action=%s status=%s as owner", role, action, status)
				assert.Equal(t, Deny(ReasonInvalidTransition), Authorize(stranger, listing, action),
					"role=%s action=%s status=%s as stranger", role, action, status)
			}
		}
	}
}

func TestAuthorizeUnknownActionIsInvalidTransition(t *testing.T) {
	admin := Actor{UserID: "usr_admin", Role: auth.RoleSuperAdmin}
	assert.Equal(t, Deny(ReasonInvalidTransition), Authorize(admin, listingIn(StatusActive), Action("archive")))
}

func TestAuthorizeDeniesRolesWithoutPermission(t *testing.T) {
	// Buyers hold no listing permissions, so every legal pair is Unauthorized
	// even when they own the listing.
	for _, action := range Actions() {
		for _, status := range ValidFrom(action) {
			buyer := Actor{UserID: "usr_owner", Role: auth.RoleBuyer}
			assert.Equal(t, Deny(ReasonUnauthorized), Authorize(buyer, listingIn(status), action),
				"action=%s status=%s", action, status)
		}
	}

	for _, role := range []auth.Role{auth.RoleSeller, auth.RoleGarage, auth.RoleDealerBasic, auth.RoleDealerPremium} {
		owner := Actor{UserID: "usr_owner", Role: role}
		assert.Equal(t, Deny(ReasonUnauthorized), Authorize(owner, listingIn(StatusPending), ActionApprove), "role=%s", role)
		assert.Equal(t, Deny(ReasonUnauthorized), Authorize(owner, listingIn(StatusPending), ActionReject), "role=%s", role)
		assert.Equal(t, Deny(ReasonUnauthorized), Authorize(owner, listingIn(StatusActive), ActionFeature), "role=%s", role)
	}

	for _, role := range []auth.Role{auth.RoleModerator, auth.RoleSeniorModerator} {
		moderator := Actor{UserID: "usr_mod", Role: role}
		assert.Equal(t, Deny(ReasonUnauthorized), Authorize(moderator, listingIn(StatusActive), ActionMarkSold), "role=%s", role)
		assert.Equal(t, Deny(ReasonUnauthorized), Authorize(moderator, listingIn(StatusActive), ActionDelete), "role=%s", role)
		assert.Equal(t, Deny(ReasonUnauthorized), Authorize(moderator, listingIn(StatusActive), ActionFeature), "role=%s", role)
	}
}

func TestAuthorizeOwnershipRules(t *testing.T) {
	owner := Actor{UserID: "usr_owner", Role: auth.RoleSeller}
	otherSeller := Actor{UserID: "usr_other", Role: auth.RoleSeller}
	admin := Actor{UserID: "usr_admin", Role: auth.RoleAdmin}

	assert.True(t, Authorize(owner, listingIn(StatusDraft), ActionPublish).Allowed)
	assert.Equal(t, Deny(ReasonUnauthorized), Authorize(otherSeller, listingIn(StatusDraft), ActionPublish))

	assert.True(t, Authorize(owner, listingIn(StatusActive), ActionMarkSold).Allowed)
	assert.Equal(t, Deny(ReasonUnauthorized), Authorize(otherSeller, listingIn(StatusActive), ActionMarkSold))
	assert.True(t, Authorize(admin, listingIn(StatusActive), ActionMarkSold).Allowed)

	assert.True(t, Authorize(owner, listingIn(StatusSold), ActionDelete).Allowed)
	assert.True(t, Authorize(admin, listingIn(StatusRejected), ActionDelete).Allowed)
}

func TestAuthorizeShowroomStaffActAsOwner(t *testing.T) {
	listing := listingIn(StatusDraft)
	listing.ShowroomID = "shw_1"

	staff := Actor{UserID: "usr_staff", Role: auth.RoleDealerBasic, ShowroomID: "shw_1"}
	otherShowroom := Actor{UserID: "usr_rival", Role: auth.RoleDealerPremium, ShowroomID: "shw_2"}
	sellerClaimingShowroom := Actor{UserID: "usr_seller", Role: auth.RoleSeller, ShowroomID: "shw_1"}

	assert.True(t, IsOwner(staff, listing))
	assert.True(t, Authorize(staff, listing, ActionPublish).Allowed)
	assert.Equal(t, Deny(ReasonUnauthorized), Authorize(otherShowroom, listing, ActionPublish))
	assert.False(t, IsOwner(sellerClaimingShowroom, listing), "showroom ownership needs manage_showroom_listings")

	personal := listingIn(StatusDraft)
	assert.False(t, IsOwner(Actor{Role: auth.RoleDealerBasic, ShowroomID: ""}, personal), "empty ids never match")
}

func TestAuthorizeFeatureAllowsPromotionsOrManageAll(t *testing.T) {
	for _, role := range auth.Roles() {
		actor := Actor{UserID: "usr_x", Role: role}
		want := auth.PermissionsOf(role).HasAny(auth.PermissionManageAllListings, auth.PermissionCreatePromotions)
		assert.Equal(t, want, Authorize(actor, listingIn(StatusActive), ActionFeature).Allowed, "role=%s", role)
	}
}

func TestAllowedActions(t *testing.T) {
	owner := Actor{UserID: "usr_owner", Role: auth.RoleSeller}
	moderator := Actor{UserID: "usr_mod", Role: auth.RoleModerator}
	admin := Actor{UserID: "usr_admin", Role: auth.RoleAdmin}

	assert.Equal(t, []Action{ActionPublish, ActionDelete}, AllowedActions(owner, listingIn(StatusDraft)))
	assert.Equal(t, []Action{ActionMarkSold, ActionDelete}, AllowedActions(owner, listingIn(StatusActive)))
	assert.Equal(t, []Action{ActionApprove, ActionReject}, AllowedActions(moderator, listingIn(StatusPending)))
	assert.Equal(t, []Action{ActionFeature, ActionMarkSold, ActionDelete}, AllowedActions(admin, listingIn(StatusActive)))
	assert.Empty(t, AllowedActions(admin, listingIn(StatusDeleted)))
}
