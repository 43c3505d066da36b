package showrooms

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/motorlot/marketplace-api/internal/platform/identifier"
)

var (
	ErrOwnerAlreadyLinked = errors.New("owner already belongs to a showroom")
	ErrSlugInUse          = errors.New("showroom slug already in use")
	ErrShowroomNotFound   = errors.New("showroom not found")
	ErrInvalidShowroom    = errors.New("invalid showroom input")
	ErrMemberElsewhere    = errors.New("user already belongs to another showroom")
	ErrNotMember          = errors.New("user is not a showroom member")
	ErrOwnerRemoval       = errors.New("showroom owner cannot be removed")
)

// Showroom is a dealer business whose staff act for its listings.
type Showroom struct {
	ID           string    `json:"id"`
	OwnerUserID  string    `json:"owner_user_id"`
	Slug         string    `json:"slug"`
	DisplayName  string    `json:"display_name"`
	City         string    `json:"city,omitempty"`
	StaffUserIDs []string  `json:"staff_user_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProfileInput struct {
	DisplayName *string
	City        *string
}

// Service keeps showrooms and their membership in memory.
type Service struct {
	mu         sync.RWMutex
	byID       map[string]Showroom
	byMemberID map[string]string
	bySlug     map[string]string
	now        func() time.Time
}

func NewService() *Service {
	return &Service{
		byID:       make(map[string]Showroom),
		byMemberID: make(map[string]string),
		bySlug:     make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Register(ownerUserID, slug, displayName, city string) (Showroom, error) {
	normalizedSlug := strings.ToLower(strings.TrimSpace(slug))
	name := strings.TrimSpace(displayName)
	if normalizedSlug == "" || len(name) < 2 {
		return Showroom{}, ErrInvalidShowroom
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byMemberID[ownerUserID]; exists {
		return Showroom{}, ErrOwnerAlreadyLinked
	}
	if _, exists := s.bySlug[normalizedSlug]; exists {
		return Showroom{}, ErrSlugInUse
	}

	now := s.now()
	showroom := Showroom{
		ID:           identifier.New("shw"),
		OwnerUserID:  ownerUserID,
		Slug:         normalizedSlug,
		DisplayName:  name,
		City:         strings.TrimSpace(city),
		StaffUserIDs: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.byID[showroom.ID] = showroom
	s.byMemberID[ownerUserID] = showroom.ID
	s.bySlug[normalizedSlug] = showroom.ID
	return showroom, nil
}

func (s *Service) GetByID(showroomID string) (Showroom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	showroom, exists := s.byID[showroomID]
	return cloneShowroom(showroom), exists
}

// GetByMember finds the showroom a user owns or works for.
func (s *Service) GetByMember(userID string) (Showroom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	showroomID, exists := s.byMemberID[userID]
	if !exists {
		return Showroom{}, false
	}
	return cloneShowroom(s.byID[showroomID]), true
}

func (s *Service) List() []Showroom {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Showroom, 0, len(s.byID))
	for _, showroom := range s.byID {
		items = append(items, cloneShowroom(showroom))
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items
}

func (s *Service) UpdateProfile(showroomID string, input ProfileInput) (Showroom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	showroom, exists := s.byID[showroomID]
	if !exists {
		return Showroom{}, ErrShowroomNotFound
	}

	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if len(name) < 2 {
			return Showroom{}, ErrInvalidShowroom
		}
		showroom.DisplayName = name
	}
	if input.City != nil {
		showroom.City = strings.TrimSpace(*input.City)
	}

	showroom.UpdatedAt = s.now()
	s.byID[showroomID] = showroom
	return cloneShowroom(showroom), nil
}

func (s *Service) AddStaff(showroomID, userID string) (Showroom, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Showroom{}, ErrInvalidShowroom
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	showroom, exists := s.byID[showroomID]
	if !exists {
		return Showroom{}, ErrShowroomNotFound
	}
	if current, linked := s.byMemberID[userID]; linked {
		if current != showroomID {
			return Showroom{}, ErrMemberElsewhere
		}
		return cloneShowroom(showroom), nil
	}

	showroom.StaffUserIDs = append(showroom.StaffUserIDs, userID)
	showroom.UpdatedAt = s.now()
	s.byID[showroomID] = showroom
	s.byMemberID[userID] = showroomID
	return cloneShowroom(showroom), nil
}

func (s *Service) RemoveStaff(showroomID, userID string) (Showroom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	showroom, exists := s.byID[showroomID]
	if !exists {
		return Showroom{}, ErrShowroomNotFound
	}
	if showroom.OwnerUserID == userID {
		return Showroom{}, ErrOwnerRemoval
	}
	if s.byMemberID[userID] != showroomID {
		return Showroom{}, ErrNotMember
	}

	staff := make([]string, 0, len(showroom.StaffUserIDs))
	for _, member := range showroom.StaffUserIDs {
		if member != userID {
			staff = append(staff, member)
		}
	}
	showroom.StaffUserIDs = staff
	showroom.UpdatedAt = s.now()
	s.byID[showroomID] = showroom
	delete(s.byMemberID, userID)
	return cloneShowroom(showroom), nil
}

func cloneShowroom(showroom Showroom) Showroom {
	staff := make([]string, len(showroom.StaffUserIDs))
	copy(staff, showroom.StaffUserIDs)
	showroom.StaffUserIDs = staff
	return showroom
}
