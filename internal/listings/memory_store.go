package listings

import (
	"context"
	"sync"

	"github.com/motorlot/marketplace-api/internal/lifecycle"
)

// MemoryStore keeps listings in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]lifecycle.Listing
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]lifecycle.Listing),
		order: make([]string, 0),
	}
}

func (s *MemoryStore) Create(_ context.Context, listing lifecycle.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[listing.ID]; exists {
		return ErrDuplicate
	}
	s.byID[listing.ID] = cloneListing(listing)
	s.order = append(s.order, listing.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, listingID string) (lifecycle.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, exists := s.byID[listingID]
	if !exists {
		return lifecycle.Listing{}, ErrNotFound
	}
	return cloneListing(listing), nil
}

func (s *MemoryStore) Update(_ context.Context, listing lifecycle.Listing, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.byID[listing.ID]
	if !exists || current.Version != expectedVersion {
		return ErrConflict
	}
	s.byID[listing.ID] = cloneListing(listing)
	return nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, ownerUserID string) ([]lifecycle.Listing, error) {
	return s.filter(func(listing lifecycle.Listing) bool {
		return listing.OwnerUserID == ownerUserID && listing.Status != lifecycle.StatusDeleted
	}, 0, 0), nil
}

func (s *MemoryStore) ListByShowroom(_ context.Context, showroomID string) ([]lifecycle.Listing, error) {
	if showroomID == "" {
		return []lifecycle.Listing{}, nil
	}
	return s.filter(func(listing lifecycle.Listing) bool {
		return listing.ShowroomID == showroomID && listing.Status != lifecycle.StatusDeleted
	}, 0, 0), nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status lifecycle.Status, limit, offset int) ([]lifecycle.Listing, error) {
	return s.filter(func(listing lifecycle.Listing) bool {
		return listing.Status == status
	}, limit, offset), nil
}

// filter returns matches newest first. A zero limit means no limit.
func (s *MemoryStore) filter(match func(lifecycle.Listing) bool, limit, offset int) []lifecycle.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]lifecycle.Listing, 0)
	skipped := 0
	for i := len(s.order) - 1; i >= 0; i-- {
		listing := s.byID[s.order[i]]
		if !match(listing) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		items = append(items, cloneListing(listing))
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items
}
