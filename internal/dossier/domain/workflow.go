package domain

import "errors"

// Status is a dossier's workflow state. Work runs in "open", the staff marks
// it "completed", and the client's sign-off makes it "signed".
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusSigned    Status = "signed"
)

var ErrInvalidWorkflowTransition = errors.New("invalid_workflow_transition")

// The workflow only moves forward: once completed a dossier waits for the
// client's signature and nothing else.
var workflow = map[Status][]Status{
	StatusOpen:      {StatusCompleted},
	StatusCompleted: {StatusSigned},
	StatusSigned:    {},
}

func CanTransition(from, to Status) bool {
	for _, next := range workflow[from] {
		if next == to {
			return true
		}
	}
	return false
}

func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidWorkflowTransition
	}
	return to, nil
}
