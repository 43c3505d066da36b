package auditlog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorlot/marketplace-api/internal/auth"
	"github.com/motorlot/marketplace-api/internal/lifecycle"
)

func TestRecordTransitionAndList(t *testing.T) {
	svc := NewService()
	clock := []time.Time{
		time.Date(2026, time.January, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 1, 10, 1, 0, 0, time.UTC),
	}
	idx := 0
	svc.now = func() time.Time {
		value := clock[idx]
		if idx < len(clock)-1 {
			idx++
		}
		return value
	}

	before := lifecycle.Listing{ID: "lst_1", Status: lifecycle.StatusPending, Version: 2}
	after := before
	after.Status = lifecycle.StatusRejected
	after.RejectionReason = "blurry photos"
	after.Version = 3

	first, err := svc.RecordTransition(lifecycle.Transition{
		ListingID: "lst_1",
		Action:    lifecycle.ActionReject,
		From:      lifecycle.StatusPending,
		To:        lifecycle.StatusRejected,
		ActorID:   "usr_mod",
		ActorRole: auth.RoleModerator,
		Reason:    "blurry photos",
	}, before, after, true)
	require.NoError(t, err)
	assert.Equal(t, ActorTypeStaff, first.ActorType)
	assert.Equal(t, ActionListingTransition, first.Action)

	second, err := svc.Record(RecordInput{
		ActorType:  ActorTypeStaff,
		ActorID:    "usr_admin",
		ActorRole:  "admin",
		Action:     ActionUserRoleChanged,
		TargetType: TargetUser,
		TargetID:   "usr_7",
		Before:     map[string]string{"role": "seller"},
		After:      map[string]string{"role": "moderator"},
	})
	require.NoError(t, err)

	all := svc.List(ListInput{})
	require.Equal(t, 2, all.Total)
	assert.Equal(t, second.ID, all.Items[0].ID, "newest first")
	assert.Equal(t, first.ID, all.Items[1].ID)

	byListing := svc.List(ListInput{TargetType: "LISTING", TargetID: "lst_1"})
	require.Equal(t, 1, byListing.Total)
	assert.Equal(t, first.ID, byListing.Items[0].ID)

	paginated := svc.List(ListInput{Limit: 1, Offset: 1})
	assert.Equal(t, 2, paginated.Total)
	require.Len(t, paginated.Items, 1)
	assert.Equal(t, first.ID, paginated.Items[0].ID)

	var afterPayload map[string]interface{}
	require.NoError(t, json.Unmarshal(first.AfterJSON, &afterPayload))
	assert.Equal(t, "rejected", afterPayload["status"])
	assert.Equal(t, "blurry photos", afterPayload["rejection_reason"])

	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal(first.MetadataJSON, &metadata))
	assert.Equal(t, "reject", metadata["action"])
}

func TestActorTypeFor(t *testing.T) {
	assert.Equal(t, ActorTypeSystem, ActorTypeFor("system:payments", true))
	assert.Equal(t, ActorTypeStaff, ActorTypeFor("usr_1", true))
	assert.Equal(t, ActorTypeUser, ActorTypeFor("usr_1", false))
}

func TestRecordValidation(t *testing.T) {
	svc := NewService()

	_, err := svc.Record(RecordInput{ActorID: "usr_1", Action: "x", TargetType: "y", TargetID: "z"})
	assert.ErrorIs(t, err, ErrInvalidAuditLog)

	_, err = svc.Record(RecordInput{
		ActorType:  ActorTypeUser,
		ActorID:    "usr_1",
		Action:     "x",
		TargetType: "y",
		TargetID:   "z",
		Before:     json.RawMessage("{"),
	})
	assert.ErrorIs(t, err, ErrInvalidAuditLog)
}
