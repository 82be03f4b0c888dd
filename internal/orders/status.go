package orders

// Transitions are one-way; completed, cancelled and rejected are terminal.
// Deletion of a still-pending order is not a transition, it removes the row
// and reverses its ledger effect.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusApproved: true, StatusCancelled: true, StatusRejected: true},
	StatusApproved:  {StatusCompleted: true},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusRejected:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
