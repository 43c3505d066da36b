package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAuthenticateAndAttachShowroom(t *testing.T) {
	service := NewService(BuildBootstrapRoleMap("", "", "", ""))

	user, err := service.Register("buyer@example.com", "strong-password", "")
	require.NoError(t, err)
	assert.Equal(t, RoleBuyer, user.Role)

	_, err = service.Register("buyer@example.com", "strong-password", "")
	assert.ErrorIs(t, err, ErrEmailInUse)

	authenticated, err := service.Authenticate("buyer@example.com", "strong-password")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authenticated.ID)

	_, err = service.Authenticate("buyer@example.com", "bad")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	updated, err := service.AttachShowroom(user.ID, "shw_123")
	require.NoError(t, err)
	assert.Equal(t, RoleDealerBasic, updated.Role)
	require.NotNil(t, updated.ShowroomID)
	assert.Equal(t, "shw_123", *updated.ShowroomID)

	_, err = service.AttachShowroom(user.ID, "shw_other")
	assert.ErrorIs(t, err, ErrShowroomAlreadyLinked)

	detached, err := service.DetachShowroom(user.ID)
	require.NoError(t, err)
	assert.Nil(t, detached.ShowroomID)
	assert.Equal(t, RoleDealerBasic, detached.Role)
}

func TestRegisterSelfServiceRoles(t *testing.T) {
	service := NewService(nil)

	seller, err := service.Register("seller@example.com", "strong-password", RoleSeller)
	require.NoError(t, err)
	assert.Equal(t, RoleSeller, seller.Role)

	garage, err := service.Register("garage@example.com", "strong-password", RoleGarage)
	require.NoError(t, err)
	assert.Equal(t, RoleGarage, garage.Role)

	_, err = service.Register("sneaky@example.com", "strong-password", RoleAdmin)
	assert.ErrorIs(t, err, ErrRoleNotSelectable)
}

func TestBootstrapRoles(t *testing.T) {
	service := NewService(BuildBootstrapRoleMap("root@example.com", "admin@example.com", "", "mod@example.com, admin@example.com"))

	root, err := service.Register("root@example.com", "strong-password", "")
	require.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, root.Role)

	admin, err := service.Register("ADMIN@example.com", "strong-password", RoleSeller)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, admin.Role, "admin list wins over moderator list")

	mod, err := service.Register("mod@example.com", "strong-password", "")
	require.NoError(t, err)
	assert.Equal(t, RoleModerator, mod.Role)
}

func TestSetRole(t *testing.T) {
	service := NewService(nil)
	user, err := service.Register("someone@example.com", "strong-password", "")
	require.NoError(t, err)

	promoted, err := service.SetRole(user.ID, RoleSeniorModerator)
	require.NoError(t, err)
	assert.Equal(t, RoleSeniorModerator, promoted.Role)

	_, err = service.SetRole(user.ID, Role("owner"))
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, err = service.SetRole("usr_missing", RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRefreshSessionsAreSingleUse(t *testing.T) {
	service := NewService(nil)
	user, err := service.Register("seller@example.com", "strong-password", RoleSeller)
	require.NoError(t, err)

	service.OpenSession("ses_1", user.ID, "refresh-1", time.Now().Add(time.Hour))

	_, err = service.ConsumeRefresh("ses_1", user.ID, "refresh-forged")
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, err = service.ConsumeRefresh("ses_1", "usr_other", "refresh-1")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	consumed, err := service.ConsumeRefresh("ses_1", user.ID, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, consumed.ID)

	_, err = service.ConsumeRefresh("ses_1", user.ID, "refresh-1")
	assert.ErrorIs(t, err, ErrSessionInvalid, "replayed refresh token")
}

func TestExpiredAndRevokedSessions(t *testing.T) {
	service := NewService(nil)
	user, err := service.Register("seller@example.com", "strong-password", RoleSeller)
	require.NoError(t, err)

	service.OpenSession("ses_old", user.ID, "refresh-old", time.Now().Add(-time.Minute))
	_, err = service.ConsumeRefresh("ses_old", user.ID, "refresh-old")
	assert.ErrorIs(t, err, ErrSessionExpired)

	service.OpenSession("ses_2", user.ID, "refresh-2", time.Now().Add(time.Hour))
	service.RevokeSession("ses_2", "usr_other")
	service.RevokeSession("ses_2", user.ID)
	_, err = service.ConsumeRefresh("ses_2", user.ID, "refresh-2")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
