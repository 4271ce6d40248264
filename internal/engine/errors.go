package engine

import "fmt"

// InvalidStateError indicates an action attempted from a state that does not
// allow it, such as responding to a terminal proposal.
type InvalidStateError struct {
	Entity string
	Status string
	Action string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s in status %s does not allow %s", e.Entity, e.Status, e.Action)
}

// ForbiddenError indicates the acting principal is not a party to the record.
type ForbiddenError struct {
	ActorID string
	Action  string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s may not %s", e.ActorID, e.Action)
}
