package router

import (
	"net/http"

	"github.com/motorlot/marketplace-api/internal/payments"
)

type paymentSettingsPatchRequest struct {
	StripeEnabled *bool `json:"stripe_enabled" validate:"required"`
}

func (a *api) handleAdminPaymentSettingsGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.payments.GetSettings())
}

// handleAdminPaymentSettingsPatch toggles paid featuring. Checkouts already
// pending keep settling through the webhook when it is switched off.
func (a *api) handleAdminPaymentSettingsPatch(w http.ResponseWriter, r *http.Request) {
	var req paymentSettingsPatchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	before := a.payments.GetSettings()
	after := a.payments.UpdateSettings(payments.SettingsUpdate{StripeEnabled: req.StripeEnabled})
	if before.StripeEnabled != after.StripeEnabled {
		a.recordAuditLog(r, "payment_settings_updated", "payment_settings", "default", before, after, nil)
	}
	writeJSON(w, http.StatusOK, after)
}
