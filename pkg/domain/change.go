package domain

// Action indicates the type of modification captured by an Event.
type Action string

// Change actions enumerate the mutations a record store can commit.
const (
	// ActionCreate indicates a record was created; Before is the zero value.
	ActionCreate Action = "create"
	// ActionUpdate indicates a record was replaced; Before holds the prior value.
	ActionUpdate Action = "update"
	// ActionDelete indicates a record was removed; After is the zero value.
	ActionDelete Action = "delete"
)

// Event describes a committed change to a single record. Stores deliver
// events to listeners synchronously after commit, exactly once per change,
// in commit order per key.
type Event[V any] struct {
	Key    string
	Action Action
	Before V
	After  V
}
