package promotions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageCRUD(t *testing.T) {
	service := NewService("eur")

	created, err := service.Create(CreatePackageInput{
		Name:                "Weekend Spotlight",
		FeatureDurationDays: 3,
		PriceCents:          1900,
	})
	require.NoError(t, err)
	assert.Equal(t, "Weekend Spotlight", created.Name)
	assert.Equal(t, "EUR", created.Currency)
	assert.True(t, created.Active)

	list := service.List(false)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	updated, err := service.Update(created.ID, UpdatePackageInput{
		Name:                stringPtr("Weekend Spotlight Plus"),
		FeatureDurationDays: intPtr(4),
		Active:              boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Weekend Spotlight Plus", updated.Name)
	assert.Equal(t, 4, updated.FeatureDurationDays)
	assert.False(t, updated.Active)

	assert.Empty(t, service.List(false))
	assert.Len(t, service.List(true), 1)

	require.NoError(t, service.Delete(created.ID))
	assert.Empty(t, service.List(true))
	assert.ErrorIs(t, service.Delete(created.ID), ErrPackageNotFound)
}

func TestPackageValidation(t *testing.T) {
	service := NewService("EUR")

	_, err := service.Create(CreatePackageInput{Name: "x", FeatureDurationDays: 7})
	assert.ErrorIs(t, err, ErrInvalidPackage)

	_, err = service.Create(CreatePackageInput{Name: "Zero days", FeatureDurationDays: 0})
	assert.ErrorIs(t, err, ErrInvalidPackage)

	_, err = service.Create(CreatePackageInput{Name: "Forever", FeatureDurationDays: 365})
	assert.ErrorIs(t, err, ErrInvalidPackage)

	_, err = service.Create(CreatePackageInput{Name: "Bad currency", FeatureDurationDays: 7, Currency: "EURO"})
	assert.ErrorIs(t, err, ErrInvalidPackage)

	_, err = service.Update("pkg_missing", UpdatePackageInput{})
	assert.ErrorIs(t, err, ErrNoPackageChanges)

	_, err = service.Update("pkg_missing", UpdatePackageInput{Active: boolPtr(true)})
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestResolveActive(t *testing.T) {
	service := NewService("EUR")
	active, err := service.Create(CreatePackageInput{Name: "Two weeks", FeatureDurationDays: 14, PriceCents: 4900})
	require.NoError(t, err)
	inactive, err := service.Create(CreatePackageInput{Name: "Retired", FeatureDurationDays: 7, Active: boolPtr(false)})
	require.NoError(t, err)

	pkg, err := service.ResolveActive(active.ID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, pkg.ID)
	assert.Equal(t, 14, pkg.FeatureDurationDays)

	_, err = service.ResolveActive(inactive.ID)
	assert.ErrorIs(t, err, ErrPackageInactive)

	_, err = service.ResolveActive("pkg_missing")
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func boolPtr(value bool) *bool {
	return &value
}

func intPtr(value int) *int {
	return &value
}

func stringPtr(value string) *string {
	return &value
}
