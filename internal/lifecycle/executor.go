package lifecycle

import (
	"strings"
	"time"
)

const day = 24 * time.Hour

// Execute computes the next listing state for an authorized and validated
// request. It does not touch its input and performs no I/O. It reports false
// and zero values when the action is not legal from the listing's status.
func Execute(request ActionRequest, now time.Time) (Listing, Transition, bool) {
	current := request.Listing
	to, ok := Target(request.Action, current.Status, IsPrivileged(request.Actor.Role))
	if !ok {
		return Listing{}, Transition{}, false
	}

	next := current
	next.FeatureStart = cloneTime(current.FeatureStart)
	next.FeatureEnd = cloneTime(current.FeatureEnd)
	next.SoldAt = cloneTime(current.SoldAt)
	next.DeletedAt = cloneTime(current.DeletedAt)

	next.Status = to

	transition := Transition{
		ListingID: current.ID,
		Action:    request.Action,
		From:      current.Status,
		To:        to,
		ActorID:   request.Actor.UserID,
		ActorRole: request.Actor.Role,
		At:        now,
	}

	switch request.Action {
	case ActionPublish, ActionApprove:
		next.RejectionReason = ""
	case ActionReject:
		next.RejectionReason = strings.TrimSpace(request.Reason)
		transition.Reason = next.RejectionReason
	case ActionFeature:
		if request.wantsFeatured() {
			start := now
			end := now.Add(time.Duration(request.Package.FeatureDurationDays) * day)
			next.IsFeatured = true
			next.FeatureStart = &start
			next.FeatureEnd = &end
			transition.PackageID = request.Package.ID
		} else {
			next.IsFeatured = false
			next.FeatureStart = nil
			next.FeatureEnd = nil
		}
		transition.Featured = next.IsFeatured
		transition.FeatureStart = cloneTime(next.FeatureStart)
		transition.FeatureEnd = cloneTime(next.FeatureEnd)
	case ActionMarkSold:
		soldAt := now
		next.SoldAt = &soldAt
	case ActionDelete:
		deletedAt := now
		next.DeletedAt = &deletedAt
	}

	if next.Status != current.Status {
		next.StatusChangedAt = now
	}
	next.LastAction = request.Action
	next.LastActorID = request.Actor.UserID
	next.UpdatedAt = now
	next.Version = current.Version + 1

	transition.Version = next.Version
	return next, transition, true
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}
