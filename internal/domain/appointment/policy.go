package appointment

// TransitionPolicy decides whether a status change is allowed. Both statuses
// are already known to be valid enum values when the policy runs.
type TransitionPolicy func(from, to string) error

// PermissiveTransitions allows any status to move to any status. This
// mirrors how the system has always behaved; whether stricter rules are
// wanted is a business question the policy seam leaves open.
func PermissiveTransitions(from, to string) error { return nil }

// strictGraph encodes the forward-only lifecycle:
// scheduled -> confirmed/cancelled/no_show, confirmed ->
// completed/cancelled/no_show. Completed, cancelled and no_show are
// terminal.
var strictGraph = map[string]map[string]bool{
	StatusScheduled: {StatusConfirmed: true, StatusCancelled: true, StatusNoShow: true},
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true, StatusNoShow: true},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusNoShow:    {},
}

// StrictTransitions only allows forward moves through the lifecycle graph.
// Setting the current status again is a no-op and always allowed.
func StrictTransitions(from, to string) error {
	if from == to {
		return nil
	}
	if !strictGraph[from][to] {
		return validationErr("status cannot change from %s to %s", from, to)
	}
	return nil
}
