package lifecycle

import (
	"math"
	"time"
)

// Result is the outcome of running a request through the engine. Listing
// and Transition are set only when the decision allows the request.
type Result struct {
	Decision   Decision
	Listing    *Listing
	Transition *Transition
}

// Engine runs authorize, validate and execute in order. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	now func() time.Time
}

type Option func(*Engine)

// WithClock replaces the wall clock used for feature windows and audit
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	engine := &Engine{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (e *Engine) Apply(request ActionRequest) Result {
	decision := Authorize(request.Actor, request.Listing, request.Action)
	if !decision.Allowed {
		return Result{Decision: decision}
	}

	decision = Validate(request)
	if !decision.Allowed {
		return Result{Decision: decision}
	}

	next, transition, ok := Execute(request, e.now())
	if !ok {
		return Result{Decision: Deny(ReasonInvalidTransition)}
	}
	return Result{Decision: decision, Listing: &next, Transition: &transition}
}

// FeaturedDaysRemaining is display data: whole days left in the feature
// window, rounded up, or 0 when the listing is not featured or expired.
func FeaturedDaysRemaining(listing Listing, now time.Time) int {
	if !listing.IsFeatured || listing.FeatureEnd == nil {
		return 0
	}
	remaining := listing.FeatureEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(float64(remaining) / float64(day)))
}
