package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
	"github.com/psds-microservice/support-service/internal/testutil"
)

func newTicketFixture(t *testing.T) (*TicketService, *model.Ticket) {
	t.Helper()
	db := testutil.OpenDB(t)
	testutil.SeedUser(t, db, "client", model.RoleClient, true)
	testutil.SeedUser(t, db, "agent", model.RoleAgent, true)
	svc := NewTicketService(db)
	tk, err := svc.Create(context.Background(), "client", model.NewTicketInput{
		Category:    "technical",
		Subject:     "Login broken",
		Description: "Cannot log in since morning",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return svc, tk
}

func TestTicketService_CreateDefaults(t *testing.T) {
	svc, tk := newTicketFixture(t)
	if tk.ID == 0 || tk.Status != model.TicketStatusNew || tk.Priority != model.PriorityMedium {
		t.Fatalf("unexpected ticket: %+v", tk)
	}
	got, err := svc.GetByID(context.Background(), tk.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Subject != "Login broken" || got.AssignedStaffID != nil {
		t.Fatalf("stored ticket mismatch: %+v", got)
	}
}

func TestTicketService_CreateValidatesBeforeWrite(t *testing.T) {
	svc, _ := newTicketFixture(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "client", model.NewTicketInput{Category: "technical", Subject: "abcd", Description: "Cannot log in since morning"})
	var ve *errs.ValidationError
	if !errors.As(err, &ve) || ve.Field != "subject" || ve.Constraint != "min=5" {
		t.Fatalf("expected subject min=5, got %v", err)
	}
	items, total, _ := svc.ListByOwner(ctx, "client", 10, 0)
	if total != 1 || len(items) != 1 {
		t.Fatalf("rejected ticket was stored: total %d", total)
	}
}

func TestTicketService_GetByIDNotFound(t *testing.T) {
	svc, _ := newTicketFixture(t)
	if _, err := svc.GetByID(context.Background(), 999); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
	if _, _, err := svc.Apply(context.Background(), 999, func(*model.Ticket) (*model.TicketMessage, error) { return nil, nil }); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("Apply: expected ErrTicketNotFound, got %v", err)
	}
}

func TestTicketService_UpdateStatusAssignsAndBumps(t *testing.T) {
	svc, tk := newTicketFixture(t)
	ctx := context.Background()

	got, prev, err := svc.UpdateStatus(ctx, tk.ID, model.TicketStatusInProgress, model.RoleAgent, "agent")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if prev != model.TicketStatusNew || got.Status != model.TicketStatusInProgress {
		t.Fatalf("prev %s now %s", prev, got.Status)
	}
	if got.AssignedStaffID == nil || *got.AssignedStaffID != "agent" {
		t.Fatalf("ticket not assigned to actor: %+v", got.AssignedStaffID)
	}
	if !got.UpdatedAt.After(tk.UpdatedAt) {
		t.Fatalf("updated_at did not advance: %s -> %s", tk.UpdatedAt, got.UpdatedAt)
	}

	_, _, err = svc.UpdateStatus(ctx, tk.ID, model.TicketStatusClosed, model.RoleAgent, "agent")
	if !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("close from in_progress: expected InvalidTransition, got %v", err)
	}
	stored, _ := svc.GetByID(ctx, tk.ID)
	if stored.Status != model.TicketStatusInProgress || !stored.UpdatedAt.Equal(got.UpdatedAt) {
		t.Fatalf("rejected transition mutated ticket: %+v", stored)
	}
}

func TestTicketService_ClosedStaysClosedForStaff(t *testing.T) {
	svc, tk := newTicketFixture(t)
	ctx := context.Background()
	for _, s := range []model.TicketStatus{model.TicketStatusResolved, model.TicketStatusClosed} {
		if _, _, err := svc.UpdateStatus(ctx, tk.ID, s, model.RoleAdmin, "agent"); err != nil {
			t.Fatalf("-> %s: %v", s, err)
		}
	}
	for _, s := range model.Statuses {
		if _, _, err := svc.UpdateStatus(ctx, tk.ID, s, model.RoleAdmin, "agent"); !errors.Is(err, errs.ErrInvalidTransition) {
			t.Fatalf("closed -> %s: expected InvalidTransition, got %v", s, err)
		}
	}
	got, _, prev, err := svc.AppendMessage(ctx, tk.ID, "client", "Still broken for me", false)
	if err != nil {
		t.Fatalf("owner message on closed ticket: %v", err)
	}
	if prev != model.TicketStatusClosed || got.Status != model.TicketStatusWaitingResponse {
		t.Fatalf("expected reopen to waiting_response, got %s (from %s)", got.Status, prev)
	}
}

func TestTicketService_StaffMessageKeepsStatus(t *testing.T) {
	svc, tk := newTicketFixture(t)
	ctx := context.Background()
	got, msg, _, err := svc.AppendMessage(ctx, tk.ID, "agent", "Looking into it now", true)
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if got.Status != model.TicketStatusNew || !msg.IsStaff {
		t.Fatalf("staff message changed status to %s", got.Status)
	}
	if !got.UpdatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("updated_at %s should equal message time %s", got.UpdatedAt, msg.CreatedAt)
	}
	if _, _, _, err := svc.AppendMessage(ctx, tk.ID, "agent", "ok", true); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("short body: expected validation error, got %v", err)
	}
}

func TestTicketService_UpdatedAtStrictlyIncreases(t *testing.T) {
	svc, tk := newTicketFixture(t)
	frozen := tk.UpdatedAt.Add(-time.Hour)
	svc.now = func() time.Time { return frozen }
	ctx := context.Background()

	first, err := svc.UpdatePriority(ctx, tk.ID, model.PriorityHigh)
	if err != nil {
		t.Fatalf("UpdatePriority: %v", err)
	}
	second, err := svc.UpdatePriority(ctx, tk.ID, model.PriorityLow)
	if err != nil {
		t.Fatalf("UpdatePriority: %v", err)
	}
	if !first.UpdatedAt.After(tk.UpdatedAt) || !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updated_at not strictly increasing: %s, %s, %s", tk.UpdatedAt, first.UpdatedAt, second.UpdatedAt)
	}
	if _, err := svc.UpdatePriority(ctx, tk.ID, model.Priority("urgent")); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTicketService_ConcurrentAppends(t *testing.T) {
	svc, tk := newTicketFixture(t)
	ctx := context.Background()

	const n = 2
	var wg sync.WaitGroup
	stamps := make([]time.Time, n)
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _, _, err := svc.AppendMessage(ctx, tk.ID, "agent", "Concurrent reply "+strings.Repeat("x", i+1), true)
			if err != nil {
				errCh <- err
				return
			}
			stamps[i] = got.UpdatedAt
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("AppendMessage: %v", err)
	}

	msgs, err := svc.ListMessages(ctx, tk.ID)
	if err != nil || len(msgs) != n {
		t.Fatalf("messages = %d, %v; want %d", len(msgs), err, n)
	}
	latest := stamps[0]
	if stamps[1].After(latest) {
		latest = stamps[1]
	}
	stored, _ := svc.GetByID(ctx, tk.ID)
	if !stored.UpdatedAt.Equal(latest) {
		t.Fatalf("updated_at %s, want later append %s", stored.UpdatedAt, latest)
	}
	if !msgs[1].CreatedAt.After(msgs[0].CreatedAt) {
		t.Fatalf("thread not ordered: %s then %s", msgs[0].CreatedAt, msgs[1].CreatedAt)
	}
}

func TestTicketService_QueuesAndStats(t *testing.T) {
	svc, tk := newTicketFixture(t)
	ctx := context.Background()
	second, err := svc.Create(ctx, "client", model.NewTicketInput{Category: "billing", Subject: "Double charge", Description: "Charged twice this month"})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.UpdateStatus(ctx, tk.ID, model.TicketStatusResolved, model.RoleAgent, "agent"); err != nil {
		t.Fatal(err)
	}

	pending, _ := svc.ListPending(ctx, 10)
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("pending = %+v", pending)
	}
	closed, _ := svc.ListClosed(ctx, 10)
	if len(closed) != 1 || closed[0].ID != tk.ID {
		t.Fatalf("closed = %+v", closed)
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 2 || st.ByStatus[model.TicketStatusNew] != 1 || st.ByStatus[model.TicketStatusResolved] != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if _, ok := st.ByStatus[model.TicketStatusClosed]; !ok || len(st.ByStatus) != len(model.Statuses) {
		t.Fatalf("stats must list every status: %+v", st.ByStatus)
	}

	mine, total, _ := svc.ListByOwner(ctx, "client", 1, 0)
	if total != 2 || len(mine) != 1 || mine[0].ID != second.ID {
		t.Fatalf("ListByOwner newest first: %+v total %d", mine, total)
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock(1)
	done := make(chan struct{})
	go func() {
		u := k.Lock(1)
		u()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
	if len(k.locks) != 0 {
		t.Fatalf("lock map leaked %d entries", len(k.locks))
	}
}
