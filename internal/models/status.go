package models

import (
	"fmt"

	apperrors "queuedesk/internal/errors"
)

// TicketStatus is the lifecycle state of a ticket
type TicketStatus string

const (
	StatusVirtual  TicketStatus = "virtual"
	StatusPhysical TicketStatus = "physical"
	StatusServing  TicketStatus = "serving"
	StatusServed   TicketStatus = "served"
	StatusMissed   TicketStatus = "missed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []TicketStatus{StatusVirtual, StatusPhysical, StatusServing, StatusServed, StatusMissed}

func ParseTicketStatus(s string) (TicketStatus, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", apperrors.New(apperrors.ErrValidation, fmt.Sprintf("Unknown ticket status %q", s))
}

// Active reports whether the ticket still counts against its owner's single active ticket.
func (s TicketStatus) Active() bool {
	return s != StatusServed
}

// TicketAction is a lifecycle event applied to a ticket
type TicketAction string

const (
	ActionPresent  TicketAction = "present"  // customer confirms presence
	ActionCall     TicketAction = "call"     // staff takes from the physical queue
	ActionRecall   TicketAction = "recall"   // staff re-activates a missed ticket
	ActionComplete TicketAction = "complete" // staff finishes serving
	ActionSkip     TicketAction = "skip"     // staff gives up on a called customer
)

type transition struct {
	from TicketStatus
	to   TicketStatus
}

var transitions = map[TicketAction]transition{
	ActionPresent:  {from: StatusVirtual, to: StatusPhysical},
	ActionCall:     {from: StatusPhysical, to: StatusServing},
	ActionRecall:   {from: StatusMissed, to: StatusServing},
	ActionComplete: {from: StatusServing, to: StatusServed},
	ActionSkip:     {from: StatusServing, to: StatusMissed},
}

// Transition returns the status reached by applying action to from, or an
// InvalidState error when from is not the action's source status.
func Transition(from TicketStatus, action TicketAction) (TicketStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("unknown ticket action %q", action)
	}
	if from != t.from {
		return "", apperrors.New(apperrors.ErrInvalidState, fmt.Sprintf("Ticket is not in %s status", t.from))
	}
	return t.to, nil
}
