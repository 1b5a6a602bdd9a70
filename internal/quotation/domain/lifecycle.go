package domain

import "errors"

// Status is a quotation's lifecycle state.
type Status string

const (
	StatusNewLead   Status = "new_lead"
	StatusQuoteSent Status = "quote_sent"
	StatusViewed    Status = "viewed"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusInvoiced  Status = "invoiced"
	StatusPaid      Status = "paid"
)

// ErrInvalidTransition is returned when a lifecycle move is not in the
// transition table. Callers map it to a conflict at the HTTP layer.
var ErrInvalidTransition = errors.New("invalid_transition")

// successors is the full lifecycle. A quote may be viewed before the staff
// formally sends it, since the token already exists after lead submission.
// "rejected" and "paid" are terminal.
var successors = map[Status][]Status{
	StatusNewLead:   {StatusQuoteSent, StatusViewed},
	StatusQuoteSent: {StatusViewed},
	StatusViewed:    {StatusApproved, StatusRejected},
	StatusApproved:  {StatusInvoiced},
	StatusInvoiced:  {StatusPaid},
	StatusRejected:  {},
	StatusPaid:      {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range successors[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns to, or ErrInvalidTransition.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidTransition
	}
	return to, nil
}

// NextStatuses returns the legal successors of a status.
func NextStatuses(from Status) []Status {
	next := successors[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether the status has no successors.
func IsTerminal(s Status) bool {
	next, ok := successors[s]
	return ok && len(next) == 0
}

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s Status) bool {
	_, ok := successors[s]
	return ok
}
