package orders

// transitions lists the legal next statuses. Moving to the current status is
// always allowed so a retried submission does not fail on its last step.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusPending},
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an order in status from may move to to.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
