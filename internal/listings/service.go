package listings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/motorlot/marketplace-api/internal/auditlog"
	"github.com/motorlot/marketplace-api/internal/auth"
	"github.com/motorlot/marketplace-api/internal/inflight"
	"github.com/motorlot/marketplace-api/internal/lifecycle"
	"github.com/motorlot/marketplace-api/internal/platform/identifier"
)

var (
	ErrForbidden      = errors.New("listing access forbidden")
	ErrInvalidInput   = errors.New("invalid listing input")
	ErrNotEditable    = errors.New("listing can only be edited as a draft")
	ErrActionInFlight = errors.New("listing action already in flight")
)

// InFlightGuard serializes duplicate submissions of one action.
type InFlightGuard interface {
	Acquire(ctx context.Context, key string) (inflight.Release, error)
}

// PackageResolver looks up the promotion package a feature action uses.
type PackageResolver interface {
	ResolveActive(packageID string) (lifecycle.Package, error)
}

// Publisher receives every persisted transition.
type Publisher interface {
	PublishTransition(ctx context.Context, transition lifecycle.Transition) error
}

// Auditor records persisted transitions.
type Auditor interface {
	RecordTransition(transition lifecycle.Transition, before, after lifecycle.Listing, staff bool) (auditlog.Entry, error)
}

// DecisionRecorder counts engine outcomes.
type DecisionRecorder interface {
	RecordDecision(action lifecycle.Action, decision lifecycle.Decision)
}

type CreateInput struct {
	Title      string
	Make       string
	Model      string
	Year       int
	PriceCents int64
	Currency   string
	MileageKM  int
}

type UpdateInput struct {
	Title      *string
	Make       *string
	Model      *string
	Year       *int
	PriceCents *int64
	Currency   *string
	MileageKM  *int
}

// ActionInput is a lifecycle action as submitted by a client.
type ActionInput struct {
	Action    string
	Reason    string
	Featured  *bool
	PackageID string

	// Package, when set, is a purchased package snapshot used as is instead
	// of resolving PackageID against the current catalog.
	Package *lifecycle.Package
}

// Service is the persistence-aware caller of the lifecycle engine.
type Service struct {
	store     Store
	engine    *lifecycle.Engine
	guard     InFlightGuard
	packages  PackageResolver
	publisher Publisher
	auditor   Auditor
	recorder  DecisionRecorder
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithInFlightGuard(guard InFlightGuard) Option {
	return func(s *Service) { s.guard = guard }
}

func WithPackages(packages PackageResolver) Option {
	return func(s *Service) { s.packages = packages }
}

func WithPublisher(publisher Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithAuditor(auditor Auditor) Option {
	return func(s *Service) { s.auditor = auditor }
}

func WithDecisionRecorder(recorder DecisionRecorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, engine *lifecycle.Engine, opts ...Option) *Service {
	s := &Service{
		store:  store,
		engine: engine,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.guard == nil {
		s.guard = inflight.NewMemoryGuard(10 * time.Second)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Create stores a new draft owned by the actor. Dealers create listings
// under their showroom.
func (s *Service) Create(ctx context.Context, actor lifecycle.Actor, input CreateInput) (lifecycle.Listing, error) {
	if err := auth.MustBeAllowed(actor.Role, auth.PermissionCreateListings); err != nil {
		return lifecycle.Listing{}, ErrForbidden
	}

	details, err := normalizeCreate(input)
	if err != nil {
		return lifecycle.Listing{}, err
	}

	now := s.now()
	listing := lifecycle.Listing{
		ID:              identifier.New("lst"),
		OwnerUserID:     actor.UserID,
		Title:           details.Title,
		Make:            details.Make,
		Model:           details.Model,
		Year:            details.Year,
		PriceCents:      details.PriceCents,
		Currency:        details.Currency,
		MileageKM:       details.MileageKM,
		Status:          lifecycle.StatusDraft,
		Version:         1,
		LastActorID:     actor.UserID,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if actor.ShowroomID != "" && auth.HasPermission(actor.Role, auth.PermissionManageShowroomListings) {
		listing.ShowroomID = actor.ShowroomID
	}

	if err := s.store.Create(ctx, listing); err != nil {
		return lifecycle.Listing{}, err
	}
	return listing, nil
}

// Update edits the vehicle details of a draft.
func (s *Service) Update(ctx context.Context, actor lifecycle.Actor, listingID string, input UpdateInput) (lifecycle.Listing, error) {
	current, err := s.store.Get(ctx, listingID)
	if err != nil {
		return lifecycle.Listing{}, err
	}
	if !canView(actor, current) {
		return lifecycle.Listing{}, ErrNotFound
	}
	if !canManage(actor, current) {
		return lifecycle.Listing{}, ErrForbidden
	}
	if current.Status != lifecycle.StatusDraft {
		return lifecycle.Listing{}, ErrNotEditable
	}

	next, err := applyUpdate(current, input)
	if err != nil {
		return lifecycle.Listing{}, err
	}
	next.Version = current.Version + 1
	next.LastActorID = actor.UserID
	next.UpdatedAt = s.now()

	if err := s.store.Update(ctx, next, current.Version); err != nil {
		return lifecycle.Listing{}, err
	}
	return next, nil
}

// Get returns a listing the actor may see. Hidden listings report
// ErrNotFound so their existence does not leak.
func (s *Service) Get(ctx context.Context, actor lifecycle.Actor, listingID string) (lifecycle.Listing, error) {
	listing, err := s.store.Get(ctx, listingID)
	if err != nil {
		return lifecycle.Listing{}, err
	}
	if !canView(actor, listing) {
		return lifecycle.Listing{}, ErrNotFound
	}
	return listing, nil
}

// ListMine returns the actor's own listings plus those of their showroom.
func (s *Service) ListMine(ctx context.Context, actor lifecycle.Actor) ([]lifecycle.Listing, error) {
	owned, err := s.store.ListByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if actor.ShowroomID == "" || !auth.HasPermission(actor.Role, auth.PermissionManageShowroomListings) {
		return owned, nil
	}

	showroom, err := s.store.ListByShowroom(ctx, actor.ShowroomID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(owned))
	for _, listing := range owned {
		seen[listing.ID] = struct{}{}
	}
	for _, listing := range showroom {
		if _, exists := seen[listing.ID]; !exists {
			owned = append(owned, listing)
		}
	}
	return owned, nil
}

// ListActive is the public browse view.
func (s *Service) ListActive(ctx context.Context, limit, offset int) ([]lifecycle.Listing, error) {
	limit, offset = clampPage(limit, offset)
	return s.store.ListByStatus(ctx, lifecycle.StatusActive, limit, offset)
}

// ListByStatus is the moderation queue view.
func (s *Service) ListByStatus(ctx context.Context, actor lifecycle.Actor, status lifecycle.Status, limit, offset int) ([]lifecycle.Listing, error) {
	if !lifecycle.IsPrivileged(actor.Role) {
		return nil, ErrForbidden
	}
	limit, offset = clampPage(limit, offset)
	return s.store.ListByStatus(ctx, status, limit, offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// AllowedActions reports which actions the actor can currently request.
func (s *Service) AllowedActions(ctx context.Context, actor lifecycle.Actor, listingID string) ([]lifecycle.Action, error) {
	listing, err := s.Get(ctx, actor, listingID)
	if err != nil {
		return nil, err
	}
	return lifecycle.AllowedActions(actor, listing), nil
}

// ApplyAction runs one lifecycle action end to end: in-flight guard, fresh
// snapshot, engine decision, conditional persist, then audit and event
// fan-out. Denials come back as lifecycle sentinel errors, except that an
// unauthorized caller who cannot see the listing gets ErrNotFound, as Get
// would return.
func (s *Service) ApplyAction(ctx context.Context, actor lifecycle.Actor, listingID string, input ActionInput) (lifecycle.Listing, error) {
	action, ok := lifecycle.ParseAction(strings.TrimSpace(input.Action))
	if !ok {
		decision := lifecycle.Deny(lifecycle.ReasonInvalidTransition)
		s.recordDecision(lifecycle.Action(input.Action), decision)
		return lifecycle.Listing{}, decision.Err()
	}

	release, err := s.guard.Acquire(ctx, inflight.Key(listingID, string(action)))
	if errors.Is(err, inflight.ErrHeld) {
		return lifecycle.Listing{}, ErrActionInFlight
	}
	if err != nil {
		return lifecycle.Listing{}, fmt.Errorf("listings: in-flight guard: %w", err)
	}
	defer release()

	current, err := s.store.Get(ctx, listingID)
	if err != nil {
		return lifecycle.Listing{}, err
	}

	request := lifecycle.ActionRequest{
		Actor:    actor,
		Listing:  current,
		Action:   action,
		Reason:   input.Reason,
		Featured: input.Featured,
	}
	if action == lifecycle.ActionFeature {
		if input.Package != nil {
			snapshot := *input.Package
			request.Package = &snapshot
		} else {
			request.Package = s.resolvePackage(ctx, input.PackageID)
		}
	}

	result := s.engine.Apply(request)
	s.recordDecision(action, result.Decision)
	if !result.Decision.Allowed {
		s.logger.InfoContext(ctx, "listing action denied",
			slog.String("listing_id", listingID),
			slog.String("action", string(action)),
			slog.String("actor_id", actor.UserID),
			slog.String("reason", string(result.Decision.Reason)),
		)
		if result.Decision.Reason == lifecycle.ReasonUnauthorized && !canView(actor, current) {
			return lifecycle.Listing{}, ErrNotFound
		}
		return lifecycle.Listing{}, result.Decision.Err()
	}

	next := *result.Listing
	if err := s.store.Update(ctx, next, current.Version); err != nil {
		if errors.Is(err, ErrConflict) {
			s.logger.InfoContext(ctx, "listing action lost version race",
				slog.String("listing_id", listingID),
				slog.String("action", string(action)),
				slog.Int64("version", current.Version),
			)
			return lifecycle.Listing{}, err
		}
		s.logger.ErrorContext(ctx, "persist listing transition", slog.String("listing_id", listingID), slog.Any("error", err))
		return lifecycle.Listing{}, err
	}

	s.afterTransition(ctx, *result.Transition, current, next, actor)
	return next, nil
}

func (s *Service) afterTransition(ctx context.Context, transition lifecycle.Transition, before, after lifecycle.Listing, actor lifecycle.Actor) {
	if s.auditor != nil {
		if _, err := s.auditor.RecordTransition(transition, before, after, actor.Role.IsStaff()); err != nil {
			s.logger.ErrorContext(ctx, "record transition audit", slog.String("listing_id", transition.ListingID), slog.Any("error", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishTransition(ctx, transition); err != nil {
			s.logger.ErrorContext(ctx, "publish transition", slog.String("listing_id", transition.ListingID), slog.Any("error", err))
		}
	}
}

// resolvePackage returns nil for unknown or inactive packages; the engine's
// validator then reports InvalidPayload after authorization has run.
func (s *Service) resolvePackage(ctx context.Context, packageID string) *lifecycle.Package {
	packageID = strings.TrimSpace(packageID)
	if packageID == "" || s.packages == nil {
		return nil
	}
	pkg, err := s.packages.ResolveActive(packageID)
	if err != nil {
		s.logger.DebugContext(ctx, "promotion package unavailable", slog.String("package_id", packageID), slog.Any("error", err))
		return nil
	}
	return &pkg
}

func (s *Service) recordDecision(action lifecycle.Action, decision lifecycle.Decision) {
	if s.recorder != nil {
		s.recorder.RecordDecision(action, decision)
	}
}

// canView hides drafts and moderation states from the public and deleted
// listings from everyone but staff.
func canView(actor lifecycle.Actor, listing lifecycle.Listing) bool {
	privileged := lifecycle.IsPrivileged(actor.Role)
	switch listing.Status {
	case lifecycle.StatusActive, lifecycle.StatusSold:
		return true
	case lifecycle.StatusDeleted:
		return privileged
	default:
		return privileged || lifecycle.IsOwner(actor, listing)
	}
}

func canManage(actor lifecycle.Actor, listing lifecycle.Listing) bool {
	permissions := auth.PermissionsOf(actor.Role)
	if permissions.Has(auth.PermissionManageAllListings) {
		return true
	}
	return lifecycle.IsOwner(actor, listing) &&
		permissions.HasAny(auth.PermissionManageOwnListings, auth.PermissionManageShowroomListings)
}

func normalizeCreate(input CreateInput) (CreateInput, error) {
	normalized := CreateInput{
		Title:      strings.TrimSpace(input.Title),
		Make:       strings.TrimSpace(input.Make),
		Model:      strings.TrimSpace(input.Model),
		Year:       input.Year,
		PriceCents: input.PriceCents,
		Currency:   strings.ToUpper(strings.TrimSpace(input.Currency)),
		MileageKM:  input.MileageKM,
	}
	if err := validateDetails(normalized); err != nil {
		return CreateInput{}, err
	}
	return normalized, nil
}

func applyUpdate(current lifecycle.Listing, input UpdateInput) (lifecycle.Listing, error) {
	details := CreateInput{
		Title:      current.Title,
		Make:       current.Make,
		Model:      current.Model,
		Year:       current.Year,
		PriceCents: current.PriceCents,
		Currency:   current.Currency,
		MileageKM:  current.MileageKM,
	}
	if input.Title != nil {
		details.Title = *input.Title
	}
	if input.Make != nil {
		details.Make = *input.Make
	}
	if input.Model != nil {
		details.Model = *input.Model
	}
	if input.Year != nil {
		details.Year = *input.Year
	}
	if input.PriceCents != nil {
		details.PriceCents = *input.PriceCents
	}
	if input.Currency != nil {
		details.Currency = *input.Currency
	}
	if input.MileageKM != nil {
		details.MileageKM = *input.MileageKM
	}

	normalized, err := normalizeCreate(details)
	if err != nil {
		return lifecycle.Listing{}, err
	}

	next := cloneListing(current)
	next.Title = normalized.Title
	next.Make = normalized.Make
	next.Model = normalized.Model
	next.Year = normalized.Year
	next.PriceCents = normalized.PriceCents
	next.Currency = normalized.Currency
	next.MileageKM = normalized.MileageKM
	return next, nil
}

func validateDetails(input CreateInput) error {
	switch {
	case len(input.Title) < 3 || len(input.Title) > 140:
		return ErrInvalidInput
	case input.Make == "" || input.Model == "":
		return ErrInvalidInput
	case input.Year < 1900 || input.Year > time.Now().UTC().Year()+1:
		return ErrInvalidInput
	case input.PriceCents <= 0:
		return ErrInvalidInput
	case len(input.Currency) != 3:
		return ErrInvalidInput
	case input.MileageKM < 0:
		return ErrInvalidInput
	}
	return nil
}
