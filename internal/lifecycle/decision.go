package lifecycle

import (
	"errors"
	"fmt"
)

// ReasonCode explains why a request was denied.
type ReasonCode string

const (
	ReasonNone              ReasonCode = ""
	ReasonInvalidTransition ReasonCode = "InvalidTransition"
	ReasonUnauthorized      ReasonCode = "Unauthorized"
	ReasonMissingReason     ReasonCode = "MissingReason"
	ReasonInvalidPayload    ReasonCode = "InvalidPayload"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrMissingReason     = errors.New("missing reason")
	ErrInvalidPayload    = errors.New("invalid payload")
)

// IsValidationFailure separates payload problems from permission problems.
func (c ReasonCode) IsValidationFailure() bool {
	return c == ReasonMissingReason || c == ReasonInvalidPayload
}

// Decision is the outcome of authorization or validation.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  ReasonCode `json:"reason,omitempty"`
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason ReasonCode) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Err returns nil for an allow and a sentinel-wrapped error for a deny.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}

	var sentinel error
	switch d.Reason {
	case ReasonInvalidTransition:
		sentinel = ErrInvalidTransition
	case ReasonUnauthorized:
		sentinel = ErrUnauthorized
	case ReasonMissingReason:
		sentinel = ErrMissingReason
	case ReasonInvalidPayload:
		sentinel = ErrInvalidPayload
	default:
		sentinel = ErrUnauthorized
	}
	return fmt.Errorf("lifecycle: %w", sentinel)
}

// IsDenial reports whether err came from an engine denial rather than from
// storage or transport.
func IsDenial(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrMissingReason) ||
		errors.Is(err, ErrInvalidPayload)
}
