package router

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/motorlot/marketplace-api/internal/listings"
	"github.com/motorlot/marketplace-api/internal/payments"
	"github.com/motorlot/marketplace-api/internal/promotions"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBytes       = 1 << 20
)

type featureCheckoutRequest struct {
	PackageID      string `json:"package_id" validate:"required,max=64"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,max=255"`
}

// errorResponse pairs a sentinel with the status and message a client sees.
type errorResponse struct {
	target  error
	status  int
	message string
}

var checkoutErrors = []errorResponse{
	{listings.ErrNotFound, http.StatusNotFound, "listing not found"},
	{payments.ErrNotListingOwner, http.StatusForbidden, "only the listing owner can buy a feature package"},
	{payments.ErrListingNotFeaturable, http.StatusConflict, "listing must be active to be featured"},
	{promotions.ErrPackageNotFound, http.StatusUnprocessableEntity, "promotion package unavailable"},
	{payments.ErrPackageNotPurchasable, http.StatusUnprocessableEntity, "promotion package unavailable"},
	{payments.ErrStripeDisabled, http.StatusConflict, "stripe payments are disabled"},
	{payments.ErrIdempotencyKey, http.StatusBadRequest, "idempotency key is required"},
}

var webhookErrors = []errorResponse{
	{payments.ErrInvalidSignature, http.StatusBadRequest, "invalid stripe signature"},
	{payments.ErrCheckoutNotFound, http.StatusConflict, "payment event could not be matched"},
	{payments.ErrInvalidPayload, http.StatusBadRequest, "invalid webhook payload"},
	{payments.ErrWebhookSecretRequired, http.StatusServiceUnavailable, "stripe webhooks are not configured"},
}

// writeMappedError writes the first matching entry and reports whether
// one matched.
func writeMappedError(w http.ResponseWriter, err error, table []errorResponse) bool {
	for _, candidate := range table {
		if errors.Is(err, candidate.target) {
			writeError(w, candidate.status, candidate.message)
			return true
		}
	}
	return false
}

func (a *api) handleFeatureCheckoutCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req featureCheckoutRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	checkout, err := a.payments.CreateFeatureCheckout(r.Context(), actor, chi.URLParam(r, "listingID"), req.PackageID, req.IdempotencyKey)
	if err == nil {
		writeJSON(w, http.StatusCreated, checkout)
		return
	}
	if !writeMappedError(w, err, checkoutErrors) {
		a.logger.ErrorContext(r.Context(), "create feature checkout", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "unable to create stripe payment intent")
	}
}

// handleStripeWebhook is unauthenticated; the Stripe-Signature header over
// the raw body is the only credential.
func (a *api) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	signature := strings.TrimSpace(r.Header.Get(stripeSignatureHeader))
	if signature == "" {
		writeError(w, http.StatusBadRequest, "missing stripe signature")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	result, err := a.payments.HandleStripeWebhook(r.Context(), payload, signature)
	if err == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	if !writeMappedError(w, err, webhookErrors) {
		a.logger.ErrorContext(r.Context(), "handle stripe webhook", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "unable to process stripe webhook")
	}
}
