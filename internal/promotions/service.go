package promotions

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/motorlot/marketplace-api/internal/lifecycle"
	"github.com/motorlot/marketplace-api/internal/platform/identifier"
)

var (
	ErrPackageNotFound  = errors.New("promotion package not found")
	ErrPackageInactive  = errors.New("promotion package inactive")
	ErrInvalidPackage   = errors.New("invalid promotion package input")
	ErrNoPackageChanges = errors.New("no promotion package changes provided")
)

const maxFeatureDurationDays = 90

// Package is a purchasable featured-placement bundle.
type Package struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	FeatureDurationDays int       `json:"feature_duration_days"`
	PriceCents          int64     `json:"price_cents"`
	Currency            string    `json:"currency"`
	Active              bool      `json:"active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Lifecycle returns the view of the package the feature action consumes.
func (p Package) Lifecycle() lifecycle.Package {
	return lifecycle.Package{ID: p.ID, FeatureDurationDays: p.FeatureDurationDays}
}

type CreatePackageInput struct {
	Name                string
	FeatureDurationDays int
	PriceCents          int64
	Currency            string
	Active              *bool
}

type UpdatePackageInput struct {
	Name                *string
	FeatureDurationDays *int
	PriceCents          *int64
	Active              *bool
}

type Service struct {
	mu              sync.RWMutex
	byID            map[string]Package
	order           []string
	defaultCurrency string
	now             func() time.Time
}

func NewService(defaultCurrency string) *Service {
	currency := strings.ToUpper(strings.TrimSpace(defaultCurrency))
	if currency == "" {
		currency = "EUR"
	}
	return &Service{
		byID:            make(map[string]Package),
		order:           make([]string, 0),
		defaultCurrency: currency,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// List returns packages newest first. Inactive packages are included only
// when requested.
func (s *Service) List(includeInactive bool) []Package {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Package, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		pkg, exists := s.byID[s.order[i]]
		if !exists || (!pkg.Active && !includeInactive) {
			continue
		}
		items = append(items, pkg)
	}
	return items
}

func (s *Service) Get(packageID string) (Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pkg, exists := s.byID[strings.TrimSpace(packageID)]
	if !exists {
		return Package{}, ErrPackageNotFound
	}
	return pkg, nil
}

// ResolveActive looks up a package that can currently be applied to a
// listing.
func (s *Service) ResolveActive(packageID string) (lifecycle.Package, error) {
	pkg, err := s.Get(packageID)
	if err != nil {
		return lifecycle.Package{}, err
	}
	if !pkg.Active {
		return lifecycle.Package{}, ErrPackageInactive
	}
	return pkg.Lifecycle(), nil
}

func (s *Service) Create(input CreatePackageInput) (Package, error) {
	name, err := normalizePackageName(input.Name)
	if err != nil {
		return Package{}, err
	}
	if err := validateDuration(input.FeatureDurationDays); err != nil {
		return Package{}, err
	}
	if input.PriceCents < 0 {
		return Package{}, ErrInvalidPackage
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return Package{}, ErrInvalidPackage
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	now := s.now()
	pkg := Package{
		ID:                  identifier.New("pkg"),
		Name:                name,
		FeatureDurationDays: input.FeatureDurationDays,
		PriceCents:          input.PriceCents,
		Currency:            currency,
		Active:              active,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[pkg.ID] = pkg
	s.order = append(s.order, pkg.ID)

	return pkg, nil
}

func (s *Service) Update(packageID string, input UpdatePackageInput) (Package, error) {
	id := strings.TrimSpace(packageID)
	if id == "" {
		return Package{}, ErrInvalidPackage
	}

	noChanges := input.Name == nil &&
		input.FeatureDurationDays == nil &&
		input.PriceCents == nil &&
		input.Active == nil
	if noChanges {
		return Package{}, ErrNoPackageChanges
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pkg, exists := s.byID[id]
	if !exists {
		return Package{}, ErrPackageNotFound
	}

	if input.Name != nil {
		name, err := normalizePackageName(*input.Name)
		if err != nil {
			return Package{}, err
		}
		pkg.Name = name
	}
	if input.FeatureDurationDays != nil {
		if err := validateDuration(*input.FeatureDurationDays); err != nil {
			return Package{}, err
		}
		pkg.FeatureDurationDays = *input.FeatureDurationDays
	}
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return Package{}, ErrInvalidPackage
		}
		pkg.PriceCents = *input.PriceCents
	}
	if input.Active != nil {
		pkg.Active = *input.Active
	}

	pkg.UpdatedAt = s.now()
	s.byID[id] = pkg

	return pkg, nil
}

// Delete retires a package. Listings already featured keep their window.
func (s *Service) Delete(packageID string) error {
	id := strings.TrimSpace(packageID)
	if id == "" {
		return ErrInvalidPackage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[id]; !exists {
		return ErrPackageNotFound
	}
	delete(s.byID, id)

	filtered := s.order[:0]
	for _, orderedID := range s.order {
		if orderedID != id {
			filtered = append(filtered, orderedID)
		}
	}
	s.order = filtered

	return nil
}

func normalizePackageName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) < 2 || len(name) > 120 {
		return "", ErrInvalidPackage
	}
	return name, nil
}

func validateDuration(days int) error {
	if days <= 0 || days > maxFeatureDurationDays {
		return ErrInvalidPackage
	}
	return nil
}
