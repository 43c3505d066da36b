package auditlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/motorlot/marketplace-api/internal/lifecycle"
	"github.com/motorlot/marketplace-api/internal/platform/identifier"
)

var ErrInvalidAuditLog = errors.New("invalid audit log input")

const (
	ActorTypeUser   = "user"
	ActorTypeStaff  = "staff"
	ActorTypeSystem = "system"

	TargetListing          = "listing"
	TargetUser             = "user"
	TargetShowroom         = "showroom"
	TargetPromotionPackage = "promotion_package"

	ActionListingTransition       = "listing_transition"
	ActionUserRoleChanged         = "user_role_changed"
	ActionShowroomStaffChanged    = "showroom_staff_changed"
	ActionPromotionPackageChanged = "promotion_package_changed"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Entry is one immutable audit record.
type Entry struct {
	ID           string          `json:"id"`
	ActorType    string          `json:"actor_type"`
	ActorID      string          `json:"actor_id"`
	ActorRole    string          `json:"actor_role,omitempty"`
	Action       string          `json:"action"`
	TargetType   string          `json:"target_type"`
	TargetID     string          `json:"target_id"`
	BeforeJSON   json.RawMessage `json:"before_json,omitempty"`
	AfterJSON    json.RawMessage `json:"after_json,omitempty"`
	MetadataJSON json.RawMessage `json:"metadata_json,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RecordInput carries arbitrary before/after/metadata values; they are
// stored as JSON.
type RecordInput struct {
	ActorType  string
	ActorID    string
	ActorRole  string
	Action     string
	TargetType string
	TargetID   string
	Before     any
	After      any
	Metadata   any
}

// ListInput filters are exact matches; empty fields match everything.
type ListInput struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Limit      int
	Offset     int
}

func (in ListInput) normalized() ListInput {
	in.ActorID = strings.TrimSpace(in.ActorID)
	in.Action = strings.ToLower(strings.TrimSpace(in.Action))
	in.TargetType = strings.ToLower(strings.TrimSpace(in.TargetType))
	in.TargetID = strings.TrimSpace(in.TargetID)
	switch {
	case in.Limit <= 0:
		in.Limit = defaultPageSize
	case in.Limit > maxPageSize:
		in.Limit = maxPageSize
	}
	in.Offset = max(in.Offset, 0)
	return in
}

func (in ListInput) matches(entry Entry) bool {
	return (in.ActorID == "" || entry.ActorID == in.ActorID) &&
		(in.Action == "" || entry.Action == in.Action) &&
		(in.TargetType == "" || entry.TargetType == in.TargetType) &&
		(in.TargetID == "" || entry.TargetID == in.TargetID)
}

type ListResult struct {
	Items []Entry `json:"items"`
	Total int     `json:"total"`
}

// transitionSnapshot is the slice of listing state worth diffing in audits.
type transitionSnapshot struct {
	Status          lifecycle.Status `json:"status"`
	IsFeatured      bool             `json:"is_featured"`
	FeatureStart    *time.Time       `json:"feature_start,omitempty"`
	FeatureEnd      *time.Time       `json:"feature_end,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	Version         int64            `json:"version"`
}

// Service is an append-only in-memory audit trail.
type Service struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

func NewService() *Service {
	return &Service{now: func() time.Time { return time.Now().UTC() }}
}

// ActorTypeFor classifies an actor id for audit filtering.
func ActorTypeFor(actorID string, staff bool) string {
	switch {
	case strings.HasPrefix(actorID, "system:"):
		return ActorTypeSystem
	case staff:
		return ActorTypeStaff
	default:
		return ActorTypeUser
	}
}

// RecordTransition stores the before/after state of an applied lifecycle
// transition.
func (s *Service) RecordTransition(transition lifecycle.Transition, before, after lifecycle.Listing, staff bool) (Entry, error) {
	return s.Record(RecordInput{
		ActorType:  ActorTypeFor(transition.ActorID, staff),
		ActorID:    transition.ActorID,
		ActorRole:  transition.ActorRole.String(),
		Action:     ActionListingTransition,
		TargetType: TargetListing,
		TargetID:   transition.ListingID,
		Before:     snapshotOf(before),
		After:      snapshotOf(after),
		Metadata: map[string]any{
			"action":     transition.Action,
			"from":       transition.From,
			"to":         transition.To,
			"reason":     transition.Reason,
			"package_id": transition.PackageID,
		},
	})
}

func (s *Service) Record(input RecordInput) (Entry, error) {
	entry := Entry{
		ActorType:  strings.ToLower(strings.TrimSpace(input.ActorType)),
		ActorID:    strings.TrimSpace(input.ActorID),
		ActorRole:  strings.ToLower(strings.TrimSpace(input.ActorRole)),
		Action:     strings.ToLower(strings.TrimSpace(input.Action)),
		TargetType: strings.ToLower(strings.TrimSpace(input.TargetType)),
		TargetID:   strings.TrimSpace(input.TargetID),
	}
	for field, value := range map[string]string{
		"actor_type":  entry.ActorType,
		"actor_id":    entry.ActorID,
		"action":      entry.Action,
		"target_type": entry.TargetType,
		"target_id":   entry.TargetID,
	} {
		if value == "" {
			return Entry{}, fmt.Errorf("%w: %s is required", ErrInvalidAuditLog, field)
		}
	}

	var err error
	if entry.BeforeJSON, err = encodeJSON(input.Before); err != nil {
		return Entry{}, fmt.Errorf("%w: before: %v", ErrInvalidAuditLog, err)
	}
	if entry.AfterJSON, err = encodeJSON(input.After); err != nil {
		return Entry{}, fmt.Errorf("%w: after: %v", ErrInvalidAuditLog, err)
	}
	if entry.MetadataJSON, err = encodeJSON(input.Metadata); err != nil {
		return Entry{}, fmt.Errorf("%w: metadata: %v", ErrInvalidAuditLog, err)
	}

	entry.ID = identifier.New("aud")
	entry.CreatedAt = s.now()

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return entry, nil
}

// List returns matching entries newest first.
func (s *Service) List(input ListInput) ListResult {
	filter := input.normalized()

	s.mu.RLock()
	var matched []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if filter.matches(s.entries[i]) {
			matched = append(matched, s.entries[i])
		}
	}
	s.mu.RUnlock()

	result := ListResult{Items: []Entry{}, Total: len(matched)}
	if filter.Offset < len(matched) {
		end := min(filter.Offset+filter.Limit, len(matched))
		result.Items = matched[filter.Offset:end]
	}
	return result
}

func snapshotOf(listing lifecycle.Listing) transitionSnapshot {
	return transitionSnapshot{
		Status:          listing.Status,
		IsFeatured:      listing.IsFeatured,
		FeatureStart:    listing.FeatureStart,
		FeatureEnd:      listing.FeatureEnd,
		RejectionReason: listing.RejectionReason,
		Version:         listing.Version,
	}
}

// encodeJSON passes raw JSON through after validating it and marshals
// anything else. nil and blank raw messages store nothing.
func encodeJSON(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if strings.TrimSpace(string(v)) == "" {
			return nil, nil
		}
		if !json.Valid(v) {
			return nil, errors.New("malformed json")
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}
