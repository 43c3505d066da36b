package listings

import (
	"context"
	"errors"
	"time"

	"github.com/motorlot/marketplace-api/internal/lifecycle"
)

var (
	ErrNotFound  = errors.New("listing not found")
	ErrConflict  = errors.New("listing was modified concurrently")
	ErrDuplicate = errors.New("listing already exists")
)

// Store persists listings. Update must only succeed when the stored
// version still equals expectedVersion.
type Store interface {
	Create(ctx context.Context, listing lifecycle.Listing) error
	Get(ctx context.Context, listingID string) (lifecycle.Listing, error)
	Update(ctx context.Context, listing lifecycle.Listing, expectedVersion int64) error
	// ListByOwner and ListByShowroom skip deleted listings.
	ListByOwner(ctx context.Context, ownerUserID string) ([]lifecycle.Listing, error)
	ListByShowroom(ctx context.Context, showroomID string) ([]lifecycle.Listing, error)
	ListByStatus(ctx context.Context, status lifecycle.Status, limit, offset int) ([]lifecycle.Listing, error)
}

func cloneListing(listing lifecycle.Listing) lifecycle.Listing {
	listing.FeatureStart = cloneTime(listing.FeatureStart)
	listing.FeatureEnd = cloneTime(listing.FeatureEnd)
	listing.SoldAt = cloneTime(listing.SoldAt)
	listing.DeletedAt = cloneTime(listing.DeletedAt)
	return listing
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copy := value.UTC()
	return &copy
}
