package lifecycle

import "strings"

// Validate checks per-action payload requirements. It runs only after the
// request was authorized.
func Validate(request ActionRequest) Decision {
	switch request.Action {
	case ActionReject:
		if strings.TrimSpace(request.Reason) == "" {
			return Deny(ReasonMissingReason)
		}
	case ActionFeature:
		if request.wantsFeatured() {
			if request.Package == nil || request.Package.FeatureDurationDays <= 0 {
				return Deny(ReasonInvalidPayload)
			}
		}
	}
	return Allow()
}
