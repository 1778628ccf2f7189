package service

import (
	"context"
	"errors"
	"time"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/lifecycle"
	"github.com/psds-microservice/support-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChangeFunc mutates a freshly read ticket inside its write unit. A returned
// message is appended in the same transaction.
type ChangeFunc func(t *model.Ticket) (*model.TicketMessage, error)

// Stats is the aggregate view of the tickets table. ByStatus holds every status, zero filled.
type Stats struct {
	Total    int64                        `json:"total"`
	ByStatus map[model.TicketStatus]int64 `json:"by_status"`
}

// TicketService is the ticket store. It exclusively owns tickets and ticket_messages.
type TicketService struct {
	db    *gorm.DB
	locks *keyedMutex
	now   func() time.Time
}

func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db, locks: newKeyedMutex(), now: time.Now}
}

// Create validates the input and stores a new ticket with status new and priority medium.
func (s *TicketService) Create(ctx context.Context, ownerID string, in model.NewTicketInput) (*model.Ticket, error) {
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	t := &model.Ticket{
		OwnerID:     ownerID,
		Category:    model.Category(in.Category),
		Subject:     in.Subject,
		Description: in.Description,
		Status:      model.TicketStatusNew,
		Priority:    model.PriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TicketService) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListByOwner pages through the owner's tickets, newest first.
func (s *TicketService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Ticket, int64, error) {
	var items []model.Ticket
	var total int64
	tx := s.db.WithContext(ctx).Model(&model.Ticket{}).Where("owner_id = ?", ownerID)
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListPending returns tickets staff still owe work on, newest first.
func (s *TicketService) ListPending(ctx context.Context, limit int) ([]model.Ticket, error) {
	return s.listByStatus(ctx, model.PendingStatuses, "created_at DESC, id DESC", limit)
}

// ListClosed returns resolved and closed tickets, most recently touched first.
func (s *TicketService) ListClosed(ctx context.Context, limit int) ([]model.Ticket, error) {
	return s.listByStatus(ctx, model.ClosedStatuses, "updated_at DESC, id DESC", limit)
}

func (s *TicketService) listByStatus(ctx context.Context, statuses []model.TicketStatus, order string, limit int) ([]model.Ticket, error) {
	var items []model.Ticket
	tx := s.db.WithContext(ctx).Where("status IN ?", statuses).Order(order)
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListAll returns every ticket in creation order.
func (s *TicketService) ListAll(ctx context.Context) ([]model.Ticket, error) {
	var items []model.Ticket
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListMessages returns the thread of a ticket in posting order.
func (s *TicketService) ListMessages(ctx context.Context, ticketID uint64) ([]model.TicketMessage, error) {
	var items []model.TicketMessage
	if err := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("created_at, id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListAllMessages returns every message; used by export.
func (s *TicketService) ListAllMessages(ctx context.Context) ([]model.TicketMessage, error) {
	var items []model.TicketMessage
	if err := s.db.WithContext(ctx).Order("ticket_id, created_at, id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *TicketService) Stats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		Status model.TicketStatus
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&model.Ticket{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	st := &Stats{ByStatus: make(map[model.TicketStatus]int64, len(model.Statuses))}
	for _, status := range model.Statuses {
		st.ByStatus[status] = 0
	}
	for _, r := range rows {
		st.ByStatus[r.Status] = r.N
		st.Total += r.N
	}
	return st, nil
}

// Apply runs change against ticket id as one atomic unit: concurrent Apply
// calls on the same ticket never interleave, and updated_at strictly increases.
func (s *TicketService) Apply(ctx context.Context, id uint64, change ChangeFunc) (*model.Ticket, *model.TicketMessage, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var out model.Ticket
	var msg *model.TicketMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var t model.Ticket
		if err := q.First(&t, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrTicketNotFound
			}
			return err
		}
		m, err := change(&t)
		if err != nil {
			return err
		}
		if !t.Status.Valid() {
			return errs.Invalid("status", "unknown status")
		}
		if !t.Priority.Valid() {
			return errs.Invalid("priority", "unknown priority")
		}
		stamp := s.next(t.UpdatedAt)
		if m != nil {
			m.ID = 0
			m.TicketID = id
			m.CreatedAt = stamp
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		t.UpdatedAt = stamp
		err = tx.Model(&model.Ticket{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":            t.Status,
			"priority":          t.Priority,
			"assigned_staff_id": t.AssignedStaffID,
			"updated_at":        stamp,
		}).Error
		if err != nil {
			return err
		}
		out, msg = t, m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &out, msg, nil
}

// next returns a timestamp strictly after prev.
func (s *TicketService) next(prev time.Time) time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return now
}

// UpdateStatus moves a ticket through the lifecycle on behalf of a staff member
// and assigns it to them.
func (s *TicketService) UpdateStatus(ctx context.Context, id uint64, target model.TicketStatus, actor model.Role, actingStaffID string) (*model.Ticket, model.TicketStatus, error) {
	var prev model.TicketStatus
	t, _, err := s.Apply(ctx, id, func(t *model.Ticket) (*model.TicketMessage, error) {
		next, err := lifecycle.Transition(t.Status, target, actor, false)
		if err != nil {
			return nil, err
		}
		prev = t.Status
		t.Status = next
		if actingStaffID != "" {
			t.AssignedStaffID = &actingStaffID
		}
		return nil, nil
	})
	return t, prev, err
}

func (s *TicketService) UpdatePriority(ctx context.Context, id uint64, p model.Priority) (*model.Ticket, error) {
	if !p.Valid() {
		return nil, errs.Invalid("priority", "one of low, medium, high")
	}
	t, _, err := s.Apply(ctx, id, func(t *model.Ticket) (*model.TicketMessage, error) {
		t.Priority = p
		return nil, nil
	})
	return t, err
}

// Assign sets the assigned staff member without touching status.
func (s *TicketService) Assign(ctx context.Context, id uint64, staffID string) (*model.Ticket, error) {
	t, _, err := s.Apply(ctx, id, func(t *model.Ticket) (*model.TicketMessage, error) {
		t.AssignedStaffID = &staffID
		return nil, nil
	})
	return t, err
}

// AppendMessage adds body to the thread. A non-staff message from the owner
// moves the ticket to waiting_response, reopening it if resolved or closed.
func (s *TicketService) AppendMessage(ctx context.Context, ticketID uint64, authorID, body string, isStaff bool) (*model.Ticket, *model.TicketMessage, model.TicketStatus, error) {
	body, err := model.NormalizeBody(body)
	if err != nil {
		return nil, nil, "", err
	}
	var prev model.TicketStatus
	t, m, err := s.Apply(ctx, ticketID, func(t *model.Ticket) (*model.TicketMessage, error) {
		prev = t.Status
		if !isStaff && t.OwnerID == authorID {
			next, err := lifecycle.OnOwnerMessage(t.Status)
			if err != nil {
				return nil, err
			}
			t.Status = next
		}
		return &model.TicketMessage{AuthorID: authorID, Body: body, IsStaff: isStaff}, nil
	})
	return t, m, prev, err
}
