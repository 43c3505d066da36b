package lifecycle

// edge is one row of the transition table: an action moves a listing from
// Src to Dst.
type edge struct {
	Action Action
	Src    Status
	Dst    Status
}

var edges = []edge{
	{Action: ActionPublish, Src: StatusDraft, Dst: StatusPending},
	{Action: ActionApprove, Src: StatusPending, Dst: StatusActive},
	{Action: ActionReject, Src: StatusPending, Dst: StatusRejected},
	{Action: ActionFeature, Src: StatusActive, Dst: StatusActive},
	{Action: ActionMarkSold, Src: StatusActive, Dst: StatusSold},
	{Action: ActionDelete, Src: StatusDraft, Dst: StatusDeleted},
	{Action: ActionDelete, Src: StatusPending, Dst: StatusDeleted},
	{Action: ActionDelete, Src: StatusActive, Dst: StatusDeleted},
	{Action: ActionDelete, Src: StatusRejected, Dst: StatusDeleted},
	{Action: ActionDelete, Src: StatusSold, Dst: StatusDeleted},
}

// privilegedTargets overrides Dst when the actor holds moderation rights.
var privilegedTargets = map[Action]Status{
	ActionPublish: StatusActive,
}

// CanTransition reports whether the action is legal from the status,
// independent of who asks.
func CanTransition(action Action, from Status) bool {
	_, ok := lookup(action, from)
	return ok
}

// ValidFrom lists the statuses an action may be requested from.
func ValidFrom(action Action) []Status {
	var statuses []Status
	for _, e := range edges {
		if e.Action == action {
			statuses = append(statuses, e.Src)
		}
	}
	return statuses
}

// Target returns the status an action leads to from the given status.
func Target(action Action, from Status, privileged bool) (Status, bool) {
	e, ok := lookup(action, from)
	if !ok {
		return "", false
	}
	if privileged {
		if dst, exists := privilegedTargets[action]; exists {
			return dst, true
		}
	}
	return e.Dst, true
}

func lookup(action Action, from Status) (edge, bool) {
	for _, e := range edges {
		if e.Action == action && e.Src == from {
			return e, true
		}
	}
	return edge{}, false
}
