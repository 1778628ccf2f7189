// Package lifecycle holds the ticket status graph. It never touches storage:
// callers persist the returned status and advance updated_at themselves.
package lifecycle

import (
	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
)

// staffMoves is the graph for transitions a staff member requests explicitly.
// closed has no outgoing edges; only the owner can bring it back.
var staffMoves = map[model.TicketStatus][]model.TicketStatus{
	model.TicketStatusNew:             {model.TicketStatusInProgress, model.TicketStatusResolved},
	model.TicketStatusInProgress:      {model.TicketStatusWaitingResponse, model.TicketStatusResolved},
	model.TicketStatusWaitingResponse: {model.TicketStatusInProgress, model.TicketStatusResolved},
	model.TicketStatusResolved:        {model.TicketStatusClosed, model.TicketStatusInProgress},
	model.TicketStatusClosed:          nil,
}

// Allowed returns the statuses staff may move a ticket to from current.
func Allowed(current model.TicketStatus) []model.TicketStatus {
	out := make([]model.TicketStatus, len(staffMoves[current]))
	copy(out, staffMoves[current])
	return out
}

// Transition validates moving a ticket from current to requested.
//
// ownerMessage marks the automatic move caused by the ticket owner posting a
// message: it always lands on waiting_response and skips the staff check.
// Every other transition needs an agent or admin and an edge in the graph.
func Transition(current, requested model.TicketStatus, actor model.Role, ownerMessage bool) (model.TicketStatus, error) {
	if !current.Valid() || !requested.Valid() {
		return current, invalid(current, requested)
	}
	if ownerMessage {
		if requested != model.TicketStatusWaitingResponse {
			return current, invalid(current, requested)
		}
		return model.TicketStatusWaitingResponse, nil
	}
	if !actor.Staff() {
		return current, errs.ErrPermissionDenied
	}
	for _, next := range staffMoves[current] {
		if next == requested {
			return requested, nil
		}
	}
	return current, invalid(current, requested)
}

// OnOwnerMessage is the status a ticket takes when its owner adds a message.
func OnOwnerMessage(current model.TicketStatus) (model.TicketStatus, error) {
	return Transition(current, model.TicketStatusWaitingResponse, model.RoleClient, true)
}

func invalid(from, to model.TicketStatus) error {
	allowed := staffMoves[from]
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return &errs.InvalidTransitionError{From: string(from), To: string(to), Allowed: names}
}
