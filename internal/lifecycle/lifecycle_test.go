package lifecycle

import (
	"errors"
	"testing"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
)

func TestTransition_StaffGraph(t *testing.T) {
	valid := map[[2]model.TicketStatus]bool{
		{model.TicketStatusNew, model.TicketStatusInProgress}:             true,
		{model.TicketStatusNew, model.TicketStatusResolved}:               true,
		{model.TicketStatusInProgress, model.TicketStatusWaitingResponse}: true,
		{model.TicketStatusInProgress, model.TicketStatusResolved}:        true,
		{model.TicketStatusWaitingResponse, model.TicketStatusInProgress}: true,
		{model.TicketStatusWaitingResponse, model.TicketStatusResolved}:   true,
		{model.TicketStatusResolved, model.TicketStatusClosed}:            true,
		{model.TicketStatusResolved, model.TicketStatusInProgress}:        true,
	}
	for _, from := range model.Statuses {
		for _, to := range model.Statuses {
			for _, role := range []model.Role{model.RoleAgent, model.RoleAdmin} {
				got, err := Transition(from, to, role, false)
				if valid[[2]model.TicketStatus{from, to}] {
					if err != nil || got != to {
						t.Fatalf("%s -> %s by %s: got %s, %v", from, to, role, got, err)
					}
					continue
				}
				if !errors.Is(err, errs.ErrInvalidTransition) {
					t.Fatalf("%s -> %s by %s: expected invalid transition, got %v", from, to, role, err)
				}
				if got != from {
					t.Fatalf("rejected transition must return current status, got %s", got)
				}
			}
		}
	}
}

func TestTransition_ClientNeverMovesExplicitly(t *testing.T) {
	for _, from := range model.Statuses {
		for _, to := range model.Statuses {
			if _, err := Transition(from, to, model.RoleClient, false); !errors.Is(err, errs.ErrPermissionDenied) {
				t.Fatalf("%s -> %s by client: expected permission denied, got %v", from, to, err)
			}
		}
	}
}

func TestTransition_CloseOnlyFromResolved(t *testing.T) {
	for _, from := range model.Statuses {
		_, err := Transition(from, model.TicketStatusClosed, model.RoleAdmin, false)
		if from == model.TicketStatusResolved {
			if err != nil {
				t.Fatalf("close from resolved: %v", err)
			}
			continue
		}
		var te *errs.InvalidTransitionError
		if !errors.As(err, &te) {
			t.Fatalf("close from %s: expected InvalidTransitionError, got %v", from, err)
		}
		if te.From != string(from) || te.To != string(model.TicketStatusClosed) {
			t.Fatalf("unexpected error detail: %+v", te)
		}
	}
}

func TestOnOwnerMessage(t *testing.T) {
	for _, from := range model.Statuses {
		got, err := OnOwnerMessage(from)
		if err != nil || got != model.TicketStatusWaitingResponse {
			t.Fatalf("owner message on %s: got %s, %v", from, got, err)
		}
	}
	if _, err := Transition(model.TicketStatusClosed, model.TicketStatusInProgress, model.RoleClient, true); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("owner reopen may only target waiting_response, got %v", err)
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	_, err := Transition(model.TicketStatusNew, model.TicketStatus("archived"), model.RoleAdmin, false)
	var te *errs.InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if len(te.Allowed) != 2 {
		t.Fatalf("expected allowed options from new, got %v", te.Allowed)
	}
}

func TestAllowedIsACopy(t *testing.T) {
	a := Allowed(model.TicketStatusNew)
	a[0] = model.TicketStatusClosed
	if Allowed(model.TicketStatusNew)[0] != model.TicketStatusInProgress {
		t.Fatalf("Allowed must not expose the graph")
	}
	if len(Allowed(model.TicketStatusClosed)) != 0 {
		t.Fatalf("closed must be terminal for staff")
	}
}
