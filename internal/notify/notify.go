// Package notify turns ticket events into per-recipient notices and delivers
// them after the triggering write has committed.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/support-service/internal/model"
)

type Kind string

const (
	KindTicketCreated Kind = "ticket_created"
	KindClientMessage Kind = "client_message"
	KindStaffMessage  Kind = "staff_message"
	KindStatusChanged Kind = "status_changed"
)

// SubjectPreviewLen bounds the subject carried in a notice.
const SubjectPreviewLen = 50

// Event is what the desk publishes after a committed change.
type Event struct {
	Kind           Kind
	Ticket         model.Ticket
	Message        *model.TicketMessage
	ActorID        string
	PreviousStatus model.TicketStatus
}

// Notice is the payload handed to a Sender for one recipient.
type Notice struct {
	ID             string             `json:"id"`
	Kind           Kind               `json:"kind"`
	RecipientID    string             `json:"recipient_id"`
	TicketID       uint64             `json:"ticket_id"`
	Category       model.Category     `json:"category"`
	Subject        string             `json:"subject"`
	OwnerName      string             `json:"owner_name,omitempty"`
	Status         model.TicketStatus `json:"status"`
	PreviousStatus model.TicketStatus `json:"previous_status,omitempty"`
	Body           string             `json:"body,omitempty"`
	ActorID        string             `json:"actor_id"`
	CreatedAt      time.Time          `json:"created_at"`
}

func newNotice(ev Event, recipient, ownerName string, now time.Time) Notice {
	n := Notice{
		ID:          uuid.NewString(),
		Kind:        ev.Kind,
		RecipientID: recipient,
		TicketID:    ev.Ticket.ID,
		Category:    ev.Ticket.Category,
		Subject:     model.Truncate(ev.Ticket.Subject, SubjectPreviewLen),
		OwnerName:   ownerName,
		Status:      ev.Ticket.Status,
		ActorID:     ev.ActorID,
		CreatedAt:   now,
	}
	if ev.PreviousStatus != ev.Ticket.Status {
		n.PreviousStatus = ev.PreviousStatus
	}
	if ev.Message != nil {
		n.Body = ev.Message.Body
	}
	return n
}

// Sender delivers one notice. Implementations must honor ctx cancellation.
type Sender interface {
	Send(ctx context.Context, n Notice) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n Notice) error

func (f SenderFunc) Send(ctx context.Context, n Notice) error { return f(ctx, n) }

// LogSender only logs notices. Used when no transport is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, n Notice) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("notify: notice", "kind", n.Kind, "recipient", n.RecipientID, "ticket_id", n.TicketID, "status", n.Status)
	return nil
}
