package domain

import "fmt"

// NotFoundError is returned when an operation references a key absent from
// a record store. Callers that want create-if-absent semantics should use
// PutIfAbsent instead of recovering from this error.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// ValidationError reports caller input that fails a domain check. Handlers
// map it to a client error; everything else an operation returns is a
// server fault.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// DuplicateViewError is returned when a second view with the same name is
// registered against one store. Duplicate indices over the same backing
// store would disagree with each other, so registration fails fast.
type DuplicateViewError struct {
	Kind string
	Name string
}

func (e DuplicateViewError) Error() string {
	return fmt.Sprintf("view %q already registered on %s store", e.Name, e.Kind)
}
