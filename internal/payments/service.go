package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/motorlot/marketplace-api/internal/auth"
	"github.com/motorlot/marketplace-api/internal/lifecycle"
	"github.com/motorlot/marketplace-api/internal/listings"
	"github.com/motorlot/marketplace-api/internal/platform/identifier"
	"github.com/motorlot/marketplace-api/internal/promotions"
)

const (
	ProviderStripe = "stripe"

	CheckoutStatusPending     = "pending"
	CheckoutStatusSucceeded   = "succeeded"
	CheckoutStatusFailed      = "failed"
	CheckoutStatusUnfulfilled = "unfulfilled"

	// SystemActorID is the audit identity of webhook-driven transitions.
	SystemActorID = "system:payments"

	stripeEventIntentSucceeded = "payment_intent.succeeded"
	stripeEventIntentFailed    = "payment_intent.payment_failed"
)

var (
	ErrIdempotencyKey        = errors.New("idempotency key is required")
	ErrStripeDisabled        = errors.New("stripe payments are disabled")
	ErrNotListingOwner       = errors.New("only the listing owner can buy a feature package")
	ErrListingNotFeaturable  = errors.New("listing must be active to be featured")
	ErrPackageNotPurchasable = errors.New("promotion package is not purchasable")
	ErrWebhookSecretRequired = errors.New("stripe webhook secret is required")
	ErrInvalidSignature      = errors.New("invalid stripe webhook signature")
	ErrInvalidPayload        = errors.New("invalid stripe webhook payload")
	ErrCheckoutNotFound      = errors.New("feature checkout not found")
	ErrFeatureSyncFailed     = errors.New("failed to apply feature to listing")
)

// ListingActions is the slice of the listings service checkout needs.
type ListingActions interface {
	Get(ctx context.Context, actor lifecycle.Actor, listingID string) (lifecycle.Listing, error)
	ApplyAction(ctx context.Context, actor lifecycle.Actor, listingID string, input listings.ActionInput) (lifecycle.Listing, error)
}

// PackageCatalog looks up priced promotion packages.
type PackageCatalog interface {
	Get(packageID string) (promotions.Package, error)
}

// CheckoutRecorder counts checkout stages.
type CheckoutRecorder interface {
	RecordCheckout(stage string)
}

type Config struct {
	WebhookSecret string
	StripeClient  StripeClient
	Listings      ListingActions
	Packages      PackageCatalog
	Recorder      CheckoutRecorder
	Logger        *slog.Logger
}

// FeatureCheckout is one attempt to pay for featured placement.
type FeatureCheckout struct {
	ID                  string    `json:"id"`
	ListingID           string    `json:"listing_id"`
	PackageID           string    `json:"package_id"`
	BuyerUserID         string    `json:"buyer_user_id"`
	Status              string    `json:"status"`
	Provider            string    `json:"provider"`
	ProviderRef         string    `json:"provider_ref"`
	ClientSecret        string    `json:"client_secret"`
	AmountCents         int64     `json:"amount_cents"`
	Currency            string    `json:"currency"`
	FeatureDurationDays int       `json:"feature_duration_days"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type WebhookResult struct {
	EventID        string `json:"event_id"`
	Processed      bool   `json:"processed"`
	Duplicate      bool   `json:"duplicate"`
	CheckoutID     string `json:"checkout_id,omitempty"`
	ListingID      string `json:"listing_id,omitempty"`
	CheckoutStatus string `json:"checkout_status,omitempty"`
}

type Settings struct {
	StripeEnabled bool      `json:"stripe_enabled"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type SettingsUpdate struct {
	StripeEnabled *bool `json:"stripe_enabled,omitempty"`
}

type Service struct {
	mu            sync.Mutex
	webhookSecret string
	stripeClient  StripeClient
	listings      ListingActions
	packages      PackageCatalog
	recorder      CheckoutRecorder
	logger        *slog.Logger
	now           func() time.Time

	checkoutsByID       map[string]FeatureCheckout
	checkoutByRequestID map[string]string
	pendingByListing    map[string]string
	providerToCheckout  map[string]string
	processedEvents     map[string]struct{}
	processingEvents    map[string]struct{}
	settings            Settings
}

type stripeWebhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeWebhookPaymentIntent struct {
	ID string `json:"id"`
}

func NewService(cfg Config) *Service {
	client := cfg.StripeClient
	if client == nil {
		client = NewMockStripeClient()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	nowFn := func() time.Time { return time.Now().UTC() }

	return &Service{
		webhookSecret:       strings.TrimSpace(cfg.WebhookSecret),
		stripeClient:        client,
		listings:            cfg.Listings,
		packages:            cfg.Packages,
		recorder:            cfg.Recorder,
		logger:              logger,
		now:                 nowFn,
		checkoutsByID:       make(map[string]FeatureCheckout),
		checkoutByRequestID: make(map[string]string),
		pendingByListing:    make(map[string]string),
		providerToCheckout:  make(map[string]string),
		processedEvents:     make(map[string]struct{}),
		processingEvents:    make(map[string]struct{}),
		settings: Settings{
			StripeEnabled: true,
			UpdatedAt:     nowFn(),
		},
	}
}

// SystemActor is the platform identity that applies paid features.
func SystemActor() lifecycle.Actor {
	return lifecycle.Actor{UserID: SystemActorID, Role: auth.RoleAdmin}
}

// CreateFeatureCheckout opens a payment for featuring an active listing the
// actor owns. Retries with the same idempotency key, or while a checkout
// for the same listing and package is still pending, return the existing
// checkout.
func (s *Service) CreateFeatureCheckout(ctx context.Context, actor lifecycle.Actor, listingID, packageID, idempotencyKey string) (FeatureCheckout, error) {
	normalizedKey := strings.TrimSpace(idempotencyKey)
	if normalizedKey == "" {
		return FeatureCheckout{}, ErrIdempotencyKey
	}

	listing, err := s.listings.Get(ctx, actor, strings.TrimSpace(listingID))
	if err != nil {
		return FeatureCheckout{}, err
	}
	if !lifecycle.IsOwner(actor, listing) {
		return FeatureCheckout{}, ErrNotListingOwner
	}
	if listing.Status != lifecycle.StatusActive {
		return FeatureCheckout{}, ErrListingNotFeaturable
	}

	pkg, err := s.packages.Get(packageID)
	if err != nil {
		return FeatureCheckout{}, err
	}
	if !pkg.Active || pkg.PriceCents <= 0 {
		return FeatureCheckout{}, ErrPackageNotPurchasable
	}

	requestID := listing.ID + "::" + normalizedKey

	s.mu.Lock()
	if existing, ok := s.reusableLocked(requestID, listing.ID, pkg.ID); ok {
		s.mu.Unlock()
		return existing, nil
	}
	if !s.settings.StripeEnabled {
		s.mu.Unlock()
		return FeatureCheckout{}, ErrStripeDisabled
	}
	s.mu.Unlock()

	checkoutID := identifier.New("fco")
	gatewayResult, err := s.stripeClient.CreatePaymentIntent(ctx, IntentRequest{
		CheckoutID:     checkoutID,
		ListingID:      listing.ID,
		PackageID:      pkg.ID,
		AmountCents:    pkg.PriceCents,
		Currency:       pkg.Currency,
		IdempotencyKey: normalizedKey,
	})
	if err != nil {
		s.recordCheckout("gateway_error")
		return FeatureCheckout{}, err
	}
	if strings.TrimSpace(gatewayResult.ProviderRef) == "" {
		return FeatureCheckout{}, ErrInvalidPayload
	}

	now := s.now()
	checkout := FeatureCheckout{
		ID:                  checkoutID,
		ListingID:           listing.ID,
		PackageID:           pkg.ID,
		BuyerUserID:         actor.UserID,
		Status:              CheckoutStatusPending,
		Provider:            ProviderStripe,
		ProviderRef:         strings.TrimSpace(gatewayResult.ProviderRef),
		ClientSecret:        strings.TrimSpace(gatewayResult.ClientSecret),
		AmountCents:         pkg.PriceCents,
		Currency:            pkg.Currency,
		FeatureDurationDays: pkg.FeatureDurationDays,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.reusableLocked(requestID, listing.ID, pkg.ID); ok {
		return existing, nil
	}
	s.checkoutsByID[checkout.ID] = checkout
	s.checkoutByRequestID[requestID] = checkout.ID
	s.pendingByListing[checkout.ListingID] = checkout.ID
	s.providerToCheckout[checkout.ProviderRef] = checkout.ID
	s.recordCheckout("created")

	return checkout, nil
}

func (s *Service) reusableLocked(requestID, listingID, packageID string) (FeatureCheckout, bool) {
	if checkoutID, exists := s.checkoutByRequestID[requestID]; exists {
		return s.checkoutsByID[checkoutID], true
	}
	if checkoutID, exists := s.pendingByListing[listingID]; exists {
		pending := s.checkoutsByID[checkoutID]
		if pending.Status == CheckoutStatusPending && pending.PackageID == packageID {
			s.checkoutByRequestID[requestID] = checkoutID
			return pending, true
		}
	}
	return FeatureCheckout{}, false
}

func (s *Service) GetCheckout(checkoutID string) (FeatureCheckout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkout, exists := s.checkoutsByID[strings.TrimSpace(checkoutID)]
	if !exists {
		return FeatureCheckout{}, ErrCheckoutNotFound
	}
	return checkout, nil
}

func (s *Service) GetSettings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

func (s *Service) UpdateSettings(update SettingsUpdate) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.StripeEnabled != nil {
		s.settings.StripeEnabled = *update.StripeEnabled
		s.settings.UpdatedAt = s.now()
	}
	return s.settings
}

// HandleStripeWebhook verifies and applies one Stripe event. A succeeded
// intent features the listing through the lifecycle engine as the system
// actor. Transient failures leave the event unprocessed so Stripe retries.
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, signatureHeader string) (WebhookResult, error) {
	if s.webhookSecret == "" {
		return WebhookResult{}, ErrWebhookSecretRequired
	}

	if err := webhook.ValidatePayload(payload, signatureHeader, s.webhookSecret); err != nil {
		return WebhookResult{}, ErrInvalidSignature
	}

	var event stripeWebhookEnvelope
	if err := json.Unmarshal(payload, &event); err != nil {
		return WebhookResult{}, ErrInvalidPayload
	}
	event.ID = strings.TrimSpace(event.ID)
	if event.ID == "" {
		return WebhookResult{}, ErrInvalidPayload
	}

	if !s.startEventProcessing(event.ID) {
		return WebhookResult{EventID: event.ID, Duplicate: true}, nil
	}
	processed := false
	defer s.finishEventProcessing(event.ID, &processed)

	switch event.Type {
	case stripeEventIntentSucceeded, stripeEventIntentFailed:
	default:
		processed = true
		return WebhookResult{EventID: event.ID}, nil
	}

	var intent stripeWebhookPaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return WebhookResult{}, ErrInvalidPayload
	}
	providerRef := strings.TrimSpace(intent.ID)
	if providerRef == "" {
		return WebhookResult{}, ErrInvalidPayload
	}

	s.mu.Lock()
	checkoutID, exists := s.providerToCheckout[providerRef]
	if !exists {
		s.mu.Unlock()
		return WebhookResult{}, ErrCheckoutNotFound
	}
	checkout := s.checkoutsByID[checkoutID]
	s.mu.Unlock()

	nextStatus := CheckoutStatusFailed
	if event.Type == stripeEventIntentSucceeded {
		status, err := s.applyFeature(ctx, checkout)
		if err != nil {
			return WebhookResult{}, err
		}
		nextStatus = status
	}

	checkout = s.settle(checkoutID, nextStatus)
	s.recordCheckout(nextStatus)
	processed = true

	return WebhookResult{
		EventID:        event.ID,
		Processed:      true,
		CheckoutID:     checkout.ID,
		ListingID:      checkout.ListingID,
		CheckoutStatus: checkout.Status,
	}, nil
}

// applyFeature runs the feature action for a paid checkout with the package
// terms captured at checkout, so later catalog edits or deactivation do not
// change what was bought. Engine denials are final: the listing left the
// active state after payment started, so the checkout is marked unfulfilled
// for manual refund.
func (s *Service) applyFeature(ctx context.Context, checkout FeatureCheckout) (string, error) {
	featured := true
	_, err := s.listings.ApplyAction(ctx, SystemActor(), checkout.ListingID, listings.ActionInput{
		Action:    string(lifecycle.ActionFeature),
		Featured:  &featured,
		PackageID: checkout.PackageID,
		Package: &lifecycle.Package{
			ID:                  checkout.PackageID,
			FeatureDurationDays: checkout.FeatureDurationDays,
		},
	})
	switch {
	case err == nil:
		return CheckoutStatusSucceeded, nil
	case lifecycle.IsDenial(err), errors.Is(err, listings.ErrNotFound):
		s.logger.WarnContext(ctx, "paid feature could not be applied",
			slog.String("checkout_id", checkout.ID),
			slog.String("listing_id", checkout.ListingID),
			slog.Any("error", err),
		)
		return CheckoutStatusUnfulfilled, nil
	default:
		s.logger.ErrorContext(ctx, "apply paid feature",
			slog.String("checkout_id", checkout.ID),
			slog.String("listing_id", checkout.ListingID),
			slog.Any("error", err),
		)
		return "", ErrFeatureSyncFailed
	}
}

func (s *Service) settle(checkoutID, status string) FeatureCheckout {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkout := s.checkoutsByID[checkoutID]
	checkout.Status = status
	checkout.UpdatedAt = s.now()
	s.checkoutsByID[checkoutID] = checkout
	if s.pendingByListing[checkout.ListingID] == checkoutID {
		delete(s.pendingByListing, checkout.ListingID)
	}
	return checkout
}

func (s *Service) recordCheckout(stage string) {
	if s.recorder != nil {
		s.recorder.RecordCheckout(stage)
	}
}

func (s *Service) startEventProcessing(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.processedEvents[eventID]; exists {
		return false
	}
	if _, exists := s.processingEvents[eventID]; exists {
		return false
	}
	s.processingEvents[eventID] = struct{}{}

	return true
}

func (s *Service) finishEventProcessing(eventID string, processed *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.processingEvents, eventID)
	if processed != nil && *processed {
		s.processedEvents[eventID] = struct{}{}
	}
}
