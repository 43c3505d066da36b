package payments

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/motorlot/marketplace-api/internal/auth"
	"github.com/motorlot/marketplace-api/internal/lifecycle"
	"github.com/motorlot/marketplace-api/internal/listings"
	"github.com/motorlot/marketplace-api/internal/promotions"
)

const testWebhookSecret = "whsec_test_secret"

var (
	seller    = lifecycle.Actor{UserID: "usr_seller", Role: auth.RoleSeller}
	stranger  = lifecycle.Actor{UserID: "usr_other", Role: auth.RoleSeller}
	moderator = lifecycle.Actor{UserID: "usr_mod", Role: auth.RoleModerator}
)

type stageCounter struct {
	mu     sync.Mutex
	stages map[string]int
}

func (c *stageCounter) RecordCheckout(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stages == nil {
		c.stages = make(map[string]int)
	}
	c.stages[stage]++
}

func (c *stageCounter) count(stage string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stages[stage]
}

type checkoutFixture struct {
	service  *Service
	listings *listings.Service
	packages *promotions.Service
	stripe   *MockStripeClient
	counter  *stageCounter
	pkg      promotions.Package
}

func newCheckoutFixture(t *testing.T) checkoutFixture {
	t.Helper()

	packages := promotions.NewService("EUR")
	pkg, err := packages.Create(promotions.CreatePackageInput{Name: "Week spotlight", FeatureDurationDays: 7, PriceCents: 1900})
	require.NoError(t, err)

	listingService := listings.NewService(listings.NewMemoryStore(), lifecycle.NewEngine(), listings.WithPackages(packages))
	stripeClient := NewMockStripeClient()
	counter := &stageCounter{}

	return checkoutFixture{
		service: NewService(Config{
			WebhookSecret: testWebhookSecret,
			StripeClient:  stripeClient,
			Listings:      listingService,
			Packages:      packages,
			Recorder:      counter,
		}),
		listings: listingService,
		packages: packages,
		stripe:   stripeClient,
		counter:  counter,
		pkg:      pkg,
	}
}

func (f checkoutFixture) activeListing(t *testing.T) lifecycle.Listing {
	t.Helper()
	ctx := context.Background()

	listing, err := f.listings.Create(ctx, seller, listings.CreateInput{
		Title:      "2019 Skoda Octavia Combi",
		Make:       "Skoda",
		Model:      "Octavia",
		Year:       2019,
		PriceCents: 1450000,
		Currency:   "EUR",
		MileageKM:  84000,
	})
	require.NoError(t, err)

	_, err = f.listings.ApplyAction(ctx, seller, listing.ID, listings.ActionInput{Action: "publish"})
	require.NoError(t, err)
	active, err := f.listings.ApplyAction(ctx, moderator, listing.ID, listings.ActionInput{Action: "approve"})
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusActive, active.Status)
	return active
}

func TestCreateFeatureCheckoutIsIdempotent(t *testing.T) {
	f := newCheckoutFixture(t)
	listing := f.activeListing(t)
	ctx := context.Background()

	first, err := f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, "idem-1")
	require.NoError(t, err)
	assert.Equal(t, CheckoutStatusPending, first.Status)
	assert.Equal(t, int64(1900), first.AmountCents)
	assert.Equal(t, 7, first.FeatureDurationDays)

	second, err := f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, "idem-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	third, err := f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, "idem-2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID, "pending checkout for the same package is reused")
	assert.Equal(t, 1, f.stripe.Calls())
	assert.Equal(t, 1, f.counter.count("created"))
}

func TestCreateFeatureCheckoutRejections(t *testing.T) {
	f := newCheckoutFixture(t)
	listing := f.activeListing(t)
	ctx := context.Background()

	_, err := f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, " ")
	assert.ErrorIs(t, err, ErrIdempotencyKey)

	_, err = f.service.CreateFeatureCheckout(ctx, stranger, listing.ID, f.pkg.ID, "idem")
	assert.ErrorIs(t, err, ErrNotListingOwner)

	_, err = f.service.CreateFeatureCheckout(ctx, seller, listing.ID, "pkg_missing", "idem")
	assert.ErrorIs(t, err, promotions.ErrPackageNotFound)

	free, err := f.packages.Create(promotions.CreatePackageInput{Name: "Free trial", FeatureDurationDays: 1})
	require.NoError(t, err)
	_, err = f.service.CreateFeatureCheckout(ctx, seller, listing.ID, free.ID, "idem")
	assert.ErrorIs(t, err, ErrPackageNotPurchasable)

	draft, err := f.listings.Create(ctx, seller, listings.CreateInput{
		Title: "2015 VW Golf", Make: "VW", Model: "Golf", Year: 2015, PriceCents: 700000, Currency: "EUR",
	})
	require.NoError(t, err)
	_, err = f.service.CreateFeatureCheckout(ctx, seller, draft.ID, f.pkg.ID, "idem")
	assert.ErrorIs(t, err, ErrListingNotFeaturable)

	disabled := false
	f.service.UpdateSettings(SettingsUpdate{StripeEnabled: &disabled})
	_, err = f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, "idem-disabled")
	assert.ErrorIs(t, err, ErrStripeDisabled)
}

func TestWebhookSucceededFeaturesListingOnce(t *testing.T) {
	f := newCheckoutFixture(t)
	listing := f.activeListing(t)
	ctx := context.Background()

	checkout, err := f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, "idem-paid")
	require.NoError(t, err)

	payload, signature := signedStripeEventPayload(t, testWebhookSecret, "evt_paid", "payment_intent.succeeded", checkout.ProviderRef)

	first, err := f.service.HandleStripeWebhook(ctx, payload, signature)
	require.NoError(t, err)
	assert.True(t, first.Processed)
	assert.False(t, first.Duplicate)
	assert.Equal(t, CheckoutStatusSucceeded, first.CheckoutStatus)

	featured, err := f.listings.Get(ctx, seller, listing.ID)
	require.NoError(t, err)
	assert.True(t, featured.IsFeatured)
	require.NotNil(t, featured.FeatureStart)
	require.NotNil(t, featured.FeatureEnd)
	assert.Equal(t, 7*24*time.Hour, featured.FeatureEnd.Sub(*featured.FeatureStart))
	assert.Equal(t, SystemActorID, featured.LastActorID)

	second, err := f.service.HandleStripeWebhook(ctx, payload, signature)
	require.NoError(t, err)
	assert.False(t, second.Processed)
	assert.True(t, second.Duplicate)

	again, err := f.listings.Get(ctx, seller, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, featured.Version, again.Version, "duplicate delivery must not re-apply")
	assert.Equal(t, 1, f.counter.count(CheckoutStatusSucceeded))
}

func TestWebhookConcurrentDeliveryIsIdempotent(t *testing.T) {
	f := newCheckoutFixture(t)
	listing := f.activeListing(t)
	ctx := context.Background()

	checkout, err := f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, "idem-concurrent")
	require.NoError(t, err)
	payload, signature := signedStripeEventPayload(t, testWebhookSecret, "evt_concurrent", "payment_intent.succeeded", checkout.ProviderRef)

	const deliveries = 16
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make(chan WebhookResult, deliveries)
		errs    = make(chan error, deliveries)
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			result, err := f.service.HandleStripeWebhook(ctx, payload, signature)
			if err != nil {
				errs <- err
				return
			}
			results <- result
		}()
	}
	close(start)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("HandleStripeWebhook() concurrent error = %v", err)
	}

	processed, duplicates := 0, 0
	for result := range results {
		if result.Processed {
			processed++
		}
		if result.Duplicate {
			duplicates++
		}
	}
	assert.Equal(t, 1, processed)
	assert.Equal(t, deliveries-1, duplicates)
}

func TestWebhookAfterListingSoldIsUnfulfilled(t *testing.T) {
	f := newCheckoutFixture(t)
	listing := f.activeListing(t)
	ctx := context.Background()

	checkout, err := f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, "idem-late")
	require.NoError(t, err)

	_, err = f.listings.ApplyAction(ctx, seller, listing.ID, listings.ActionInput{Action: "markSold"})
	require.NoError(t, err)

	payload, signature := signedStripeEventPayload(t, testWebhookSecret, "evt_late", "payment_intent.succeeded", checkout.ProviderRef)
	result, err := f.service.HandleStripeWebhook(ctx, payload, signature)
	require.NoError(t, err)
	assert.Equal(t, CheckoutStatusUnfulfilled, result.CheckoutStatus)

	stored, err := f.service.GetCheckout(checkout.ID)
	require.NoError(t, err)
	assert.Equal(t, CheckoutStatusUnfulfilled, stored.Status)
}

func TestWebhookHonoursPackageTermsAtCheckout(t *testing.T) {
	tests := []struct {
		name   string
		change promotions.UpdatePackageInput
	}{
		{name: "package deactivated after checkout", change: promotions.UpdatePackageInput{Active: boolPtr(false)}},
		{name: "duration shortened after checkout", change: promotions.UpdatePackageInput{FeatureDurationDays: intPtr(1)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newCheckoutFixture(t)
			listing := f.activeListing(t)
			ctx := context.Background()

			checkout, err := f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, "idem-terms")
			require.NoError(t, err)
			require.Equal(t, 7, checkout.FeatureDurationDays)

			_, err = f.packages.Update(f.pkg.ID, tc.change)
			require.NoError(t, err)

			payload, signature := signedStripeEventPayload(t, testWebhookSecret, "evt_terms", "payment_intent.succeeded", checkout.ProviderRef)
			result, err := f.service.HandleStripeWebhook(ctx, payload, signature)
			require.NoError(t, err)
			assert.Equal(t, CheckoutStatusSucceeded, result.CheckoutStatus)

			featured, err := f.listings.Get(ctx, seller, listing.ID)
			require.NoError(t, err)
			assert.True(t, featured.IsFeatured)
			require.NotNil(t, featured.FeatureStart)
			require.NotNil(t, featured.FeatureEnd)
			assert.Equal(t, 7*24*time.Hour, featured.FeatureEnd.Sub(*featured.FeatureStart))
		})
	}
}

func TestClientFeatureStillResolvesCurrentCatalog(t *testing.T) {
	f := newCheckoutFixture(t)
	listing := f.activeListing(t)
	ctx := context.Background()

	_, err := f.packages.Update(f.pkg.ID, promotions.UpdatePackageInput{Active: boolPtr(false)})
	require.NoError(t, err)

	featured := true
	_, err = f.listings.ApplyAction(ctx, lifecycle.Actor{UserID: "usr_admin", Role: auth.RoleAdmin}, listing.ID, listings.ActionInput{
		Action:    "feature",
		Featured:  &featured,
		PackageID: f.pkg.ID,
	})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidPayload)
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }

func TestWebhookFailedPaymentAllowsNewCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	listing := f.activeListing(t)
	ctx := context.Background()

	first, err := f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, "idem-fail-1")
	require.NoError(t, err)

	payload, signature := signedStripeEventPayload(t, testWebhookSecret, "evt_failed", "payment_intent.payment_failed", first.ProviderRef)
	result, err := f.service.HandleStripeWebhook(ctx, payload, signature)
	require.NoError(t, err)
	assert.Equal(t, CheckoutStatusFailed, result.CheckoutStatus)

	second, err := f.service.CreateFeatureCheckout(ctx, seller, listing.ID, f.pkg.ID, "idem-fail-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.ProviderRef, second.ProviderRef)

	unchanged, err := f.listings.Get(ctx, seller, listing.ID)
	require.NoError(t, err)
	assert.False(t, unchanged.IsFeatured)
}

func TestWebhookRejectsBadInput(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	payload, _ := signedStripeEventPayload(t, testWebhookSecret, "evt_bad", "payment_intent.succeeded", "pi_unknown")
	_, err := f.service.HandleStripeWebhook(ctx, payload, "t=1,v1=invalid")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	payload, signature := signedStripeEventPayload(t, testWebhookSecret, "evt_unknown", "payment_intent.succeeded", "pi_unknown")
	_, err = f.service.HandleStripeWebhook(ctx, payload, signature)
	assert.ErrorIs(t, err, ErrCheckoutNotFound)

	payload, signature = signedStripeEventPayload(t, testWebhookSecret, "evt_ignored", "customer.created", "cus_1")
	ignored, err := f.service.HandleStripeWebhook(ctx, payload, signature)
	require.NoError(t, err)
	assert.False(t, ignored.Processed)
	assert.False(t, ignored.Duplicate)

	unsigned := NewService(Config{Listings: f.listings, Packages: f.packages})
	_, err = unsigned.HandleStripeWebhook(ctx, payload, signature)
	assert.ErrorIs(t, err, ErrWebhookSecretRequired)
}

func signedStripeEventPayload(t *testing.T, secret, eventID, eventType, objectID string) ([]byte, string) {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": eventType,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id": objectID,
			},
		},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now().UTC(),
		Scheme:    "v1",
	})

	return signed.Payload, signed.Header
}
