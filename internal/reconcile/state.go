package reconcile

// State is the reconciliation state of one delivery note session.
type State uint

const (
	// StateDraft represents a note with no confirmation yet
	StateDraft State = iota
	// StateConfirmedEditing represents wave-1 quantities being edited
	StateConfirmedEditing
	// StateSettled represents a note whose submitted waves are all frozen
	StateSettled
	// StateOutstandingOpen represents a new wave being edited, not yet submitted
	StateOutstandingOpen
	// StateClosed represents a note whose delivered quantities all match the request
	StateClosed
)

// String returns a string representation of State
func (s State) String() string {
	stateMap := map[State]string{
		StateDraft:            "draft",
		StateConfirmedEditing: "confirmed-editing",
		StateSettled:          "settled",
		StateOutstandingOpen:  "outstanding-open",
		StateClosed:           "closed",
	}

	if str, ok := stateMap[s]; ok {
		return str
	}
	return "unknown"
}
