package listings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorlot/marketplace-api/internal/lifecycle"
)

func TestMemoryStoreConditionalUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	listing := lifecycle.Listing{ID: "lst_1", OwnerUserID: "usr_1", Status: lifecycle.StatusDraft, Version: 1}
	require.NoError(t, store.Create(ctx, listing))
	assert.ErrorIs(t, store.Create(ctx, listing), ErrDuplicate)

	next := listing
	next.Status = lifecycle.StatusPending
	next.Version = 2
	require.NoError(t, store.Update(ctx, next, 1))

	stale := listing
	stale.Status = lifecycle.StatusDeleted
	stale.Version = 2
	assert.ErrorIs(t, store.Update(ctx, stale, 1), ErrConflict)

	stored, err := store.Get(ctx, "lst_1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPending, stored.Status)

	_, err = store.Get(ctx, "lst_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDoesNotAliasTimes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	end := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, lifecycle.Listing{ID: "lst_1", FeatureEnd: &end, Version: 1}))
	end = end.Add(time.Hour)

	stored, err := store.Get(ctx, "lst_1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FeatureEnd.Hour())
}

func TestMemoryStoreListings(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, lifecycle.Listing{ID: "lst_1", OwnerUserID: "usr_1", Status: lifecycle.StatusPending}))
	require.NoError(t, store.Create(ctx, lifecycle.Listing{ID: "lst_2", OwnerUserID: "usr_1", Status: lifecycle.StatusDeleted}))
	require.NoError(t, store.Create(ctx, lifecycle.Listing{ID: "lst_3", OwnerUserID: "usr_2", ShowroomID: "shw_1", Status: lifecycle.StatusPending}))
	require.NoError(t, store.Create(ctx, lifecycle.Listing{ID: "lst_4", OwnerUserID: "usr_3", ShowroomID: "shw_1", Status: lifecycle.StatusActive}))

	owned, err := store.ListByOwner(ctx, "usr_1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "lst_1", owned[0].ID)

	showroom, err := store.ListByShowroom(ctx, "shw_1")
	require.NoError(t, err)
	assert.Len(t, showroom, 2)

	pending, err := store.ListByStatus(ctx, lifecycle.StatusPending, 1, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "lst_3", pending[0].ID, "newest first")

	page2, err := store.ListByStatus(ctx, lifecycle.StatusPending, 1, 1)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "lst_1", page2[0].ID)
}
