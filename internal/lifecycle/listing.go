package lifecycle

import (
	"strings"
	"time"

	"github.com/motorlot/marketplace-api/internal/auth"
)

// Status is the lifecycle state of a listing.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
	StatusSold     Status = "sold"
	StatusDeleted  Status = "deleted"
)

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusDraft, StatusPending, StatusActive, StatusRejected, StatusSold, StatusDeleted}
}

func ParseStatus(raw string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, status := range Statuses() {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no action can leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusDeleted
}

// Action is a lifecycle command requested against a listing.
type Action string

const (
	ActionPublish  Action = "publish"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionFeature  Action = "feature"
	ActionMarkSold Action = "markSold"
	ActionDelete   Action = "delete"
)

// Actions returns every action in the order buttons are rendered.
func Actions() []Action {
	return []Action{ActionPublish, ActionApprove, ActionReject, ActionFeature, ActionMarkSold, ActionDelete}
}

// ParseAction matches the exact wire name of an action.
func ParseAction(raw string) (Action, bool) {
	for _, action := range Actions() {
		if string(action) == raw {
			return action, true
		}
	}
	return "", false
}

// Listing is the snapshot of a for-sale vehicle the engine decides on.
type Listing struct {
	ID              string     `json:"id"`
	OwnerUserID     string     `json:"owner_user_id"`
	ShowroomID      string     `json:"showroom_id,omitempty"`
	Title           string     `json:"title"`
	Make            string     `json:"make"`
	Model           string     `json:"model"`
	Year            int        `json:"year"`
	PriceCents      int64      `json:"price_cents"`
	Currency        string     `json:"currency"`
	MileageKM       int        `json:"mileage_km"`
	Status          Status     `json:"status"`
	IsFeatured      bool       `json:"is_featured"`
	FeatureStart    *time.Time `json:"feature_start,omitempty"`
	FeatureEnd      *time.Time `json:"feature_end,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	Version         int64      `json:"version"`
	LastAction      Action     `json:"last_action,omitempty"`
	LastActorID     string     `json:"last_actor_id,omitempty"`
	StatusChangedAt time.Time  `json:"status_changed_at"`
	SoldAt          *time.Time `json:"sold_at,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Actor is the authenticated principal making a request. It is built fresh
// for every call from the transport layer's identity.
type Actor struct {
	UserID     string
	Role       auth.Role
	ShowroomID string
}

// Package is the promotion package whose duration drives a feature window.
type Package struct {
	ID                  string
	FeatureDurationDays int
}

// ActionRequest is one requested lifecycle action against a listing snapshot.
type ActionRequest struct {
	Actor    Actor
	Listing  Listing
	Action   Action
	Reason   string
	Featured *bool
	Package  *Package
}

// wantsFeatured applies the default of featured=true.
func (r ActionRequest) wantsFeatured() bool {
	return r.Featured == nil || *r.Featured
}

// Transition records one applied status change.
type Transition struct {
	ListingID    string     `json:"listing_id"`
	Action       Action     `json:"action"`
	From         Status     `json:"from"`
	To           Status     `json:"to"`
	ActorID      string     `json:"actor_id"`
	ActorRole    auth.Role  `json:"actor_role"`
	Reason       string     `json:"reason,omitempty"`
	Featured     bool       `json:"featured"`
	PackageID    string     `json:"package_id,omitempty"`
	FeatureStart *time.Time `json:"feature_start,omitempty"`
	FeatureEnd   *time.Time `json:"feature_end,omitempty"`
	Version      int64      `json:"version"`
	At           time.Time  `json:"at"`
}
