package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRoundTripsThroughContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	showroomID := "shw_1"
	ctx := WithIdentity(context.Background(), Identity{UserID: "usr_1", Role: RoleDealerBasic, ShowroomID: &showroomID})

	identity, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "usr_1", identity.UserID)

	showroom, inShowroom := identity.Showroom()
	assert.True(t, inShowroom)
	assert.Equal(t, "shw_1", showroom)
	assert.True(t, identity.Permissions().Has(PermissionManageShowroomStaff))
	assert.False(t, identity.Permissions().Has(PermissionApproveListings))
}

func TestIdentityWithoutShowroom(t *testing.T) {
	empty := ""
	for _, identity := range []Identity{{UserID: "usr_1"}, {UserID: "usr_1", ShowroomID: &empty}} {
		_, ok := identity.Showroom()
		assert.False(t, ok)
	}
}
