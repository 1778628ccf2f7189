package model

import "time"

type Role string

const (
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// Roles lists every role in ascending privilege.
var Roles = []Role{RoleClient, RoleAgent, RoleAdmin}

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAgent || r == RoleAdmin
}

// Staff reports whether the role handles tickets (agent or admin).
func (r Role) Staff() bool {
	return r == RoleAgent || r == RoleAdmin
}

type TicketStatus string

const (
	TicketStatusNew             TicketStatus = "new"
	TicketStatusInProgress      TicketStatus = "in_progress"
	TicketStatusWaitingResponse TicketStatus = "waiting_response"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusClosed          TicketStatus = "closed"
)

// Statuses lists every ticket status in lifecycle order.
var Statuses = []TicketStatus{
	TicketStatusNew,
	TicketStatusInProgress,
	TicketStatusWaitingResponse,
	TicketStatusResolved,
	TicketStatusClosed,
}

// PendingStatuses are the statuses staff still owe work on.
var PendingStatuses = []TicketStatus{TicketStatusNew, TicketStatusInProgress, TicketStatusWaitingResponse}

// ClosedStatuses are the statuses of finished tickets.
var ClosedStatuses = []TicketStatus{TicketStatusResolved, TicketStatusClosed}

func (s TicketStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Category string

const (
	CategoryTechnical  Category = "technical"
	CategoryBilling    Category = "billing"
	CategoryAccount    Category = "account"
	CategoryGeneral    Category = "general"
	CategoryComplaint  Category = "complaint"
	CategorySuggestion Category = "suggestion"
)

var Categories = []Category{
	CategoryTechnical,
	CategoryBilling,
	CategoryAccount,
	CategoryGeneral,
	CategoryComplaint,
	CategorySuggestion,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// User is a chat participant. ID is the external chat identity.
type User struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	DisplayName string    `gorm:"size:255;not null" json:"display_name"`
	Username    string    `gorm:"size:255;not null" json:"username,omitempty"`
	Role        Role      `gorm:"type:varchar(16);index;not null" json:"role"`
	Active      bool      `gorm:"not null" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Ticket struct {
	ID              uint64       `gorm:"primaryKey" json:"id"`
	OwnerID         string       `gorm:"size:64;index;not null" json:"owner_id"`
	Category        Category     `gorm:"type:varchar(32);not null" json:"category"`
	Subject         string       `gorm:"type:varchar(100);not null" json:"subject"`
	Description     string       `gorm:"type:text;not null" json:"description"`
	Status          TicketStatus `gorm:"type:varchar(32);index;not null" json:"status"`
	Priority        Priority     `gorm:"type:varchar(16);not null" json:"priority"`
	AssignedStaffID *string      `gorm:"size:64" json:"assigned_staff_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TicketMessage is one entry of a ticket thread. Rows are never updated.
type TicketMessage struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	TicketID  uint64    `gorm:"index;not null" json:"ticket_id"`
	AuthorID  string    `gorm:"size:64;not null" json:"author_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	IsStaff   bool      `gorm:"not null" json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
}
