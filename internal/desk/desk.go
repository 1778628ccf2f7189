// Package desk is the entry point the transport layer calls. Every operation
// passes the access gate first, then mutates through the ticket store, and
// publishes notifications only after the write has committed.
package desk

import (
	"context"
	"log/slog"

	"github.com/psds-microservice/support-service/internal/access"
	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/lifecycle"
	"github.com/psds-microservice/support-service/internal/metrics"
	"github.com/psds-microservice/support-service/internal/model"
	"github.com/psds-microservice/support-service/internal/notify"
	"github.com/psds-microservice/support-service/internal/service"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Publisher receives committed ticket events.
type Publisher interface {
	Publish(ev notify.Event)
}

type Deps struct {
	Users   *service.UserService
	Tickets *service.TicketService
	Gate    *access.Gate
	Notify  Publisher
	// Roster is the configured staff list consulted by role reconciliation.
	Roster model.Roster
}

type Desk struct {
	Deps
	log *slog.Logger
}

func New(deps Deps) *Desk {
	return &Desk{Deps: deps, log: slog.Default().With("component", "desk")}
}

// TicketView is a ticket with its ordered thread.
type TicketView struct {
	Ticket   model.Ticket          `json:"ticket"`
	Messages []model.TicketMessage `json:"messages"`
}

type TicketPage struct {
	Items []model.Ticket `json:"items"`
	Total int64          `json:"total"`
}

// Stats is the staff dashboard: ticket totals plus active users per role.
type Stats struct {
	Total    int64                        `json:"total"`
	ByStatus map[model.TicketStatus]int64 `json:"by_status"`
	Users    map[model.Role]int64         `json:"users"`
}

// StartSession registers or refreshes the caller and reconciles their role
// against the roster.
func (d *Desk) StartSession(ctx context.Context, userID, displayName, username string) (*model.User, error) {
	u, err := d.Users.Upsert(ctx, userID, displayName, username)
	if err != nil {
		return nil, err
	}
	role, err := d.Users.ReconcileRole(ctx, u.ID, d.Roster)
	if err != nil {
		return nil, err
	}
	if role != u.Role {
		d.log.Info("desk: role reconciled", "user_id", u.ID, "from", u.Role, "to", role)
		u.Role = role
	}
	return u, nil
}

func (d *Desk) HandleCreateTicket(ctx context.Context, userID string, in model.NewTicketInput) (*model.Ticket, error) {
	actor, err := d.Gate.RequireActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	t, err := d.Tickets.Create(ctx, actor.ID, in)
	if err != nil {
		return nil, err
	}
	metrics.TicketCreated(string(t.Category))
	d.Notify.Publish(notify.Event{Kind: notify.KindTicketCreated, Ticket: *t, ActorID: actor.ID, PreviousStatus: t.Status})
	return t, nil
}

// HandleAddMessage appends to a thread. The owner's message moves the ticket
// to waiting_response; a staff message leaves status alone. Anyone else gets
// NotFound.
func (d *Desk) HandleAddMessage(ctx context.Context, userID string, ticketID uint64, body string) (*model.Ticket, error) {
	actor, err := d.Gate.RequireActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	current, err := d.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	var isStaff bool
	switch {
	case current.OwnerID == actor.ID:
	case actor.IsAgentOrAdmin():
		isStaff = true
	default:
		return nil, errs.ErrTicketNotFound
	}

	t, msg, prev, err := d.Tickets.AppendMessage(ctx, ticketID, actor.ID, body, isStaff)
	if err != nil {
		return nil, err
	}
	kind := notify.KindClientMessage
	if isStaff {
		kind = notify.KindStaffMessage
	}
	metrics.Transition(string(prev), string(t.Status))
	d.Notify.Publish(notify.Event{Kind: kind, Ticket: *t, Message: msg, ActorID: actor.ID, PreviousStatus: prev})
	return t, nil
}

// HandleRespond is the staff reply: message and status change land in one
// write. target defaults to in_progress; a target equal to the current status
// is not a transition, but the ticket is still assigned to the responder.
func (d *Desk) HandleRespond(ctx context.Context, actorID string, ticketID uint64, body string, target *model.TicketStatus) (*model.Ticket, error) {
	actor, err := d.Gate.RequireAgentOrAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	body, err = model.NormalizeBody(body)
	if err != nil {
		return nil, err
	}
	to := model.TicketStatusInProgress
	if target != nil {
		to = *target
	}

	var prev model.TicketStatus
	t, msg, err := d.Tickets.Apply(ctx, ticketID, func(t *model.Ticket) (*model.TicketMessage, error) {
		prev = t.Status
		if to != t.Status {
			next, err := lifecycle.Transition(t.Status, to, actor.Effective(), false)
			if err != nil {
				return nil, err
			}
			t.Status = next
		}
		t.AssignedStaffID = &actor.ID
		return &model.TicketMessage{AuthorID: actor.ID, Body: body, IsStaff: true}, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Transition(string(prev), string(t.Status))
	d.Notify.Publish(notify.Event{Kind: notify.KindStaffMessage, Ticket: *t, Message: msg, ActorID: actor.ID, PreviousStatus: prev})
	return t, nil
}

// HandleChangeStatus applies an explicit staff transition and assigns the
// ticket to the actor. Clients are denied whatever the target.
func (d *Desk) HandleChangeStatus(ctx context.Context, actorID string, ticketID uint64, target string) (*model.Ticket, error) {
	actor, err := d.Gate.RequireAgentOrAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	status, ok := model.ParseStatus(target)
	if !ok {
		current, err := d.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		return nil, unknownStatus(current.Status, target)
	}
	t, prev, err := d.Tickets.UpdateStatus(ctx, ticketID, status, actor.Effective(), actor.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transition(string(prev), string(t.Status))
	d.Notify.Publish(notify.Event{Kind: notify.KindStatusChanged, Ticket: *t, ActorID: actor.ID, PreviousStatus: prev})
	return t, nil
}

func unknownStatus(current model.TicketStatus, target string) error {
	allowed := lifecycle.Allowed(current)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return &errs.InvalidTransitionError{From: string(current), To: target, Allowed: names}
}

func (d *Desk) HandleChangePriority(ctx context.Context, actorID string, ticketID uint64, priority string) (*model.Ticket, error) {
	if _, err := d.Gate.RequireAgentOrAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	p, err := model.ParsePriority(priority)
	if err != nil {
		return nil, err
	}
	return d.Tickets.UpdatePriority(ctx, ticketID, p)
}

// HandleAssign reassigns a ticket. Admin only; the assignee must be active staff.
func (d *Desk) HandleAssign(ctx context.Context, actorID string, ticketID uint64, staffID string) (*model.Ticket, error) {
	if _, err := d.Gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	staff, err := d.Users.Get(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if !staff.Active || !staff.Role.Staff() {
		return nil, errs.Invalid("staff_id", "must be an active agent or admin")
	}
	return d.Tickets.Assign(ctx, ticketID, staff.ID)
}

// GetTicket returns the ticket and its thread to the owner or to staff.
func (d *Desk) GetTicket(ctx context.Context, actorID string, ticketID uint64) (*TicketView, error) {
	actor, err := d.Gate.RequireActive(ctx, actorID)
	if err != nil {
		return nil, err
	}
	t, err := d.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != actor.ID && !actor.IsAgentOrAdmin() {
		return nil, errs.ErrTicketNotFound
	}
	msgs, err := d.Tickets.ListMessages(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return &TicketView{Ticket: *t, Messages: msgs}, nil
}

func (d *Desk) ListMyTickets(ctx context.Context, actorID string, limit, offset int) (*TicketPage, error) {
	actor, err := d.Gate.RequireActive(ctx, actorID)
	if err != nil {
		return nil, err
	}
	items, total, err := d.Tickets.ListByOwner(ctx, actor.ID, pageSize(limit), max(offset, 0))
	if err != nil {
		return nil, err
	}
	return &TicketPage{Items: items, Total: total}, nil
}

func (d *Desk) ListPending(ctx context.Context, actorID string, limit int) ([]model.Ticket, error) {
	if _, err := d.Gate.RequireAgentOrAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return d.Tickets.ListPending(ctx, pageSize(limit))
}

func (d *Desk) ListClosed(ctx context.Context, actorID string, limit int) ([]model.Ticket, error) {
	if _, err := d.Gate.RequireAgentOrAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return d.Tickets.ListClosed(ctx, pageSize(limit))
}

func (d *Desk) GetStats(ctx context.Context, actorID string) (*Stats, error) {
	if _, err := d.Gate.RequireAgentOrAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	ts, err := d.Tickets.Stats(ctx)
	if err != nil {
		return nil, err
	}
	users, err := d.roleCounts(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Total: ts.Total, ByStatus: ts.ByStatus, Users: users}, nil
}

func (d *Desk) roleCounts(ctx context.Context) (map[model.Role]int64, error) {
	out := make(map[model.Role]int64, len(model.Roles))
	for _, r := range model.Roles {
		n, err := d.Users.CountByRole(ctx, r)
		if err != nil {
			return nil, err
		}
		out[r] = n
	}
	return out, nil
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}
