package payments

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"

	"github.com/motorlot/marketplace-api/internal/platform/identifier"
)

var ErrStripeSecretKeyRequired = errors.New("stripe secret key is required")

// IntentRequest describes the promotion charge for one feature checkout.
type IntentRequest struct {
	CheckoutID     string
	ListingID      string
	PackageID      string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
}

func (r IntentRequest) metadata() map[string]string {
	return map[string]string{
		"checkout_id": strings.TrimSpace(r.CheckoutID),
		"listing_id":  strings.TrimSpace(r.ListingID),
		"package_id":  strings.TrimSpace(r.PackageID),
	}
}

// Intent is what the gateway hands back: the id webhooks refer to and the
// secret the browser confirms with.
type Intent struct {
	ProviderRef  string
	ClientSecret string
}

type StripeClient interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error)
}

// MockStripeClient fabricates intent ids so checkout works without Stripe
// credentials in development and tests.
type MockStripeClient struct {
	created atomic.Int64
}

func NewMockStripeClient() *MockStripeClient {
	return &MockStripeClient{}
}

func (c *MockStripeClient) CreatePaymentIntent(_ context.Context, _ IntentRequest) (Intent, error) {
	c.created.Add(1)
	ref := identifier.New("pi")
	return Intent{ProviderRef: ref, ClientSecret: ref + "_secret_" + identifier.New("sec")}, nil
}

// Calls reports how many intents the mock has created.
func (c *MockStripeClient) Calls() int {
	return int(c.created.Load())
}

// LiveStripeClient talks to the Stripe API with a secret key.
type LiveStripeClient struct {
	secretKey string
}

func NewLiveStripeClient(secretKey string) *LiveStripeClient {
	return &LiveStripeClient{secretKey: strings.TrimSpace(secretKey)}
}

func (c *LiveStripeClient) CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if c.secretKey == "" {
		return Intent{}, ErrStripeSecretKeyRequired
	}
	stripe.Key = c.secretKey

	params := &stripe.PaymentIntentParams{
		Amount:                  stripe.Int64(req.AmountCents),
		Currency:                stripe.String(strings.ToLower(strings.TrimSpace(req.Currency))),
		Metadata:                req.metadata(),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{Enabled: stripe.Bool(true)},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey("feature-checkout:" + key)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, err
	}
	return Intent{ProviderRef: strings.TrimSpace(pi.ID), ClientSecret: strings.TrimSpace(pi.ClientSecret)}, nil
}
