package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Role identifies a principal's permission context in the marketplace.
type Role string

const (
	RoleBuyer           Role = "buyer"
	RoleSeller          Role = "seller"
	RoleDealerBasic     Role = "dealer_basic"
	RoleDealerPremium   Role = "dealer_premium"
	RoleGarage          Role = "garage"
	RoleModerator       Role = "moderator"
	RoleSeniorModerator Role = "senior_moderator"
	RoleAdmin           Role = "admin"
	RoleSuperAdmin      Role = "super_admin"
)

// Permission represents a capability that can be authorized.
type Permission string

const (
	PermissionSaveFavorites          Permission = "save_favorites"
	PermissionContactSellers         Permission = "contact_sellers"
	PermissionCreateListings         Permission = "create_listings"
	PermissionManageOwnListings      Permission = "manage_own_listings"
	PermissionRespondToInquiries     Permission = "respond_to_inquiries"
	PermissionManageShowroomListings Permission = "manage_showroom_listings"
	PermissionManageShowroomProfile  Permission = "manage_showroom_profile"
	PermissionManageShowroomStaff    Permission = "manage_showroom_staff"
	PermissionApproveListings        Permission = "approve_listings"
	PermissionManageReports          Permission = "manage_reports"
	PermissionManageAllListings      Permission = "manage_all_listings"
	PermissionManageAllUsers         Permission = "manage_all_users"
	PermissionCreatePromotions       Permission = "create_promotions"
	PermissionManagePlatformSettings Permission = "manage_platform_settings"
	PermissionManageContent          Permission = "manage_content"
)

// PermissionSet is a read-only set of permissions. The role tables are
// shared process-wide, so members are only reachable through methods.
type PermissionSet struct {
	members map[Permission]struct{}
}

func newPermissionSet(permissions ...Permission) PermissionSet {
	members := make(map[Permission]struct{}, len(permissions))
	for _, permission := range permissions {
		members[permission] = struct{}{}
	}
	return PermissionSet{members: members}
}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(permission Permission) bool {
	_, ok := s.members[permission]
	return ok
}

// HasAny reports whether the set contains at least one of the permissions.
func (s PermissionSet) HasAny(permissions ...Permission) bool {
	for _, permission := range permissions {
		if s.Has(permission) {
			return true
		}
	}
	return false
}

func (s PermissionSet) Len() int {
	return len(s.members)
}

// Sorted returns a fresh slice of the members in stable order.
func (s PermissionSet) Sorted() []Permission {
	items := make([]Permission, 0, len(s.members))
	for permission := range s.members {
		items = append(items, permission)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i] < items[j]
	})
	return items
}

var (
	buyerPermissions = newPermissionSet(
		PermissionSaveFavorites,
		PermissionContactSellers,
	)
	sellerPermissions = newPermissionSet(
		PermissionCreateListings,
		PermissionManageOwnListings,
		PermissionRespondToInquiries,
	)
	dealerPermissions = newPermissionSet(
		PermissionCreateListings,
		PermissionManageShowroomListings,
		PermissionManageShowroomProfile,
		PermissionManageShowroomStaff,
		PermissionRespondToInquiries,
	)
	garagePermissions = newPermissionSet(
		PermissionCreateListings,
		PermissionManageOwnListings,
	)
	moderatorPermissions = newPermissionSet(
		PermissionApproveListings,
		PermissionManageReports,
	)
	adminPermissions = newPermissionSet(
		PermissionManageAllListings,
		PermissionManageAllUsers,
		PermissionApproveListings,
		PermissionCreatePromotions,
		PermissionManagePlatformSettings,
		PermissionManageContent,
		PermissionManageReports,
	)
	noPermissions = newPermissionSet()
)

// PermissionsOf returns the fixed permission set for a role. Every role is
// listed explicitly; values outside the closed set get no permissions.
func PermissionsOf(role Role) PermissionSet {
	switch role {
	case RoleBuyer:
		return buyerPermissions
	case RoleSeller:
		return sellerPermissions
	case RoleDealerBasic, RoleDealerPremium:
		return dealerPermissions
	case RoleGarage:
		return garagePermissions
	case RoleModerator, RoleSeniorModerator:
		return moderatorPermissions
	case RoleAdmin, RoleSuperAdmin:
		return adminPermissions
	default:
		return noPermissions
	}
}

// Roles returns the list of known roles in stable order.
func Roles() []Role {
	return []Role{
		RoleBuyer,
		RoleSeller,
		RoleDealerBasic,
		RoleDealerPremium,
		RoleGarage,
		RoleModerator,
		RoleSeniorModerator,
		RoleAdmin,
		RoleSuperAdmin,
	}
}

// Permissions returns all known permissions in stable order.
func Permissions() []Permission {
	return []Permission{
		PermissionSaveFavorites,
		PermissionContactSellers,
		PermissionCreateListings,
		PermissionManageOwnListings,
		PermissionRespondToInquiries,
		PermissionManageShowroomListings,
		PermissionManageShowroomProfile,
		PermissionManageShowroomStaff,
		PermissionApproveListings,
		PermissionManageReports,
		PermissionManageAllListings,
		PermissionManageAllUsers,
		PermissionCreatePromotions,
		PermissionManagePlatformSettings,
		PermissionManageContent,
	}
}

// ParseRole maps a wire value onto the closed role set.
func ParseRole(raw string) (Role, error) {
	candidate := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !isKnownRole(candidate) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return candidate, nil
}

func (r Role) String() string {
	return string(r)
}

func (p Permission) String() string {
	return string(p)
}

// IsStaff reports whether the role belongs to platform staff rather than a
// marketplace participant.
func (r Role) IsStaff() bool {
	return PermissionsOf(r).HasAny(PermissionApproveListings, PermissionManageAllListings)
}

// HasPermission checks a role/permission pair against the role registry.
func HasPermission(role Role, permission Permission) bool {
	return PermissionsOf(role).Has(permission)
}

// MustBeAllowed validates and returns an error useful for API handlers.
func MustBeAllowed(role Role, permission Permission) error {
	if HasPermission(role, permission) {
		return nil
	}
	return fmt.Errorf("%w: role=%s permission=%s", ErrForbidden, role, permission)
}

func isKnownRole(role Role) bool {
	for _, known := range Roles() {
		if role == known {
			return true
		}
	}
	return false
}
