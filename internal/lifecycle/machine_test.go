package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTable(t *testing.T) {
	tests := []struct {
		action Action
		from   Status
		want   bool
	}{
		{ActionPublish, StatusDraft, true},
		{ActionPublish, StatusRejected, false},
		{ActionApprove, StatusPending, true},
		{ActionApprove, StatusDraft, false},
		{ActionReject, StatusPending, true},
		{ActionReject, StatusActive, false},
		{ActionFeature, StatusActive, true},
		{ActionFeature, StatusSold, false},
		{ActionFeature, StatusPending, false},
		{ActionMarkSold, StatusActive, true},
		{ActionMarkSold, StatusSold, false},
		{ActionDelete, StatusSold, true},
		{ActionDelete, StatusDeleted, false},
		{Action("archive"), StatusActive, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.action)+"_from_"+string(tc.from), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.action, tc.from))
		})
	}
}

func TestDeletedIsTerminal(t *testing.T) {
	assert.True(t, StatusDeleted.IsTerminal())
	for _, action := range Actions() {
		assert.False(t, CanTransition(action, StatusDeleted), "action %s must not leave deleted", action)
	}
}

func TestValidFromDelete(t *testing.T) {
	assert.ElementsMatch(t,
		[]Status{StatusDraft, StatusPending, StatusActive, StatusRejected, StatusSold},
		ValidFrom(ActionDelete),
	)
	assert.Equal(t, []Status{StatusActive}, ValidFrom(ActionFeature))
	assert.Empty(t, ValidFrom(Action("archive")))
}

func TestTargetPrivilegedPublish(t *testing.T) {
	to, ok := Target(ActionPublish, StatusDraft, false)
	assert.True(t, ok)
	assert.Equal(t, StatusPending, to)

	to, ok = Target(ActionPublish, StatusDraft, true)
	assert.True(t, ok)
	assert.Equal(t, StatusActive, to)

	to, ok = Target(ActionMarkSold, StatusActive, true)
	assert.True(t, ok)
	assert.Equal(t, StatusSold, to, "privilege only changes the publish target")

	_, ok = Target(ActionPublish, StatusActive, true)
	assert.False(t, ok)
}

func TestParseActionAndStatus(t *testing.T) {
	action, ok := ParseAction("markSold")
	assert.True(t, ok)
	assert.Equal(t, ActionMarkSold, action)

	_, ok = ParseAction("marksold")
	assert.False(t, ok, "action names are exact")

	status, ok := ParseStatus(" Pending ")
	assert.True(t, ok)
	assert.Equal(t, StatusPending, status)

	_, ok = ParseStatus("archived")
	assert.False(t, ok)
}
