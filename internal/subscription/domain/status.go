package domain

import (
	"errors"
	"strings"
)

// Status is the mirrored gateway subscription state. The payment substates
// failed and action_required are local.
type Status string

const (
	StatusNone              Status = ""
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusUnpaid            Status = "unpaid"
	StatusPaused            Status = "paused"
	StatusCanceled          Status = "canceled"
	StatusFailed            Status = "failed"
	StatusActionRequired    Status = "action_required"
)

// EventKind is the billing occurrence that drives a status change.
type EventKind string

const (
	EventSubscriptionCreated   EventKind = "subscription.created"
	EventSubscriptionUpdated   EventKind = "subscription.updated"
	EventSubscriptionDeleted   EventKind = "subscription.deleted"
	EventPaymentSucceeded      EventKind = "payment.succeeded"
	EventPaymentFailed         EventKind = "payment.failed"
	EventPaymentActionRequired EventKind = "payment.action_required"
)

// Event is a status-changing occurrence. Reported is the gateway's own status
// for created and updated events.
type Event struct {
	Kind     EventKind
	Reported Status
}

var ErrInvalidTransition = errors.New("invalid_status_transition")

var allowedTransitions = map[Status][]Status{
	StatusNone: {
		StatusIncomplete, StatusTrialing, StatusActive, StatusPastDue, StatusUnpaid,
		StatusFailed, StatusActionRequired, StatusCanceled, StatusPaused, StatusIncompleteExpired,
	},
	StatusIncomplete: {
		StatusActive, StatusTrialing, StatusCanceled, StatusIncompleteExpired,
		StatusPastDue, StatusFailed, StatusActionRequired,
	},
	StatusTrialing: {
		StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid, StatusPaused,
		StatusFailed, StatusActionRequired, StatusIncomplete,
	},
	StatusActive: {
		StatusPastDue, StatusFailed, StatusActionRequired, StatusCanceled,
		StatusUnpaid, StatusPaused, StatusTrialing,
	},
	StatusPastDue: {
		StatusActive, StatusCanceled, StatusUnpaid, StatusFailed, StatusActionRequired,
	},
	StatusUnpaid: {
		StatusActive, StatusPastDue, StatusCanceled,
	},
	StatusPaused: {
		StatusActive, StatusTrialing, StatusCanceled,
	},
	StatusFailed: {
		StatusActive, StatusCanceled, StatusActionRequired, StatusPastDue, StatusUnpaid,
	},
	StatusActionRequired: {
		StatusActive, StatusCanceled, StatusFailed, StatusPastDue, StatusUnpaid,
	},
	StatusCanceled:          {},
	StatusIncompleteExpired: {},
}

// ParseStatus normalizes a gateway status string.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := allowedTransitions[status]; !ok {
		return StatusNone, false
	}
	return status, true
}

// Target returns the status an event asks for.
func (e Event) Target() (Status, error) {
	switch e.Kind {
	case EventPaymentSucceeded:
		return StatusActive, nil
	case EventPaymentFailed:
		return StatusFailed, nil
	case EventPaymentActionRequired:
		return StatusActionRequired, nil
	case EventSubscriptionDeleted:
		return StatusCanceled, nil
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		status, ok := ParseStatus(string(e.Reported))
		if !ok || status == StatusNone {
			return StatusNone, ErrInvalidTransition
		}
		return status, nil
	default:
		return StatusNone, ErrInvalidTransition
	}
}

// Transition returns the status that results from applying event to current.
// Re-applying the current status is allowed; anything outside the table,
// including leaving a terminal state, returns ErrInvalidTransition.
func Transition(current Status, event Event) (Status, error) {
	target, err := event.Target()
	if err != nil {
		return current, err
	}
	if target == current {
		return current, nil
	}

	next, ok := allowedTransitions[current]
	if !ok {
		return current, ErrInvalidTransition
	}
	for _, candidate := range next {
		if candidate == target {
			return target, nil
		}
	}
	return current, ErrInvalidTransition
}

// IsTerminal reports whether no further transitions leave this status.
func IsTerminal(status Status) bool {
	next, ok := allowedTransitions[status]
	return ok && len(next) == 0
}
