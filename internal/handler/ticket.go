package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-service/internal/auth"
	"github.com/psds-microservice/support-service/internal/desk"
	"github.com/psds-microservice/support-service/internal/model"
)

type TicketHandler struct {
	desk *desk.Desk
}

func NewTicketHandler(d *desk.Desk) *TicketHandler {
	return &TicketHandler{desk: d}
}

type startSessionRequest struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
}

// StartSession registers the caller and reconciles their role.
func (h *TicketHandler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	u, err := h.desk.StartSession(c.Request.Context(), auth.CallerID(c), req.DisplayName, req.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type createTicketRequest struct {
	Category    string `json:"category" binding:"required"`
	Subject     string `json:"subject" binding:"required"`
	Description string `json:"description" binding:"required"`
}

func (h *TicketHandler) Create(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	t, err := h.desk.HandleCreateTicket(c.Request.Context(), auth.CallerID(c), model.NewTicketInput{
		Category:    req.Category,
		Subject:     req.Subject,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	view, err := h.desk.GetTicket(c.Request.Context(), auth.CallerID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListMine lists the caller's own tickets.
func (h *TicketHandler) ListMine(c *gin.Context) {
	page, err := h.desk.ListMyTickets(c.Request.Context(), auth.CallerID(c), queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type messageRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *TicketHandler) AddMessage(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	t, err := h.desk.HandleAddMessage(c.Request.Context(), auth.CallerID(c), id, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type respondRequest struct {
	Body   string `json:"body" binding:"required"`
	Status string `json:"status"`
}

func (h *TicketHandler) Respond(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	var target *model.TicketStatus
	if req.Status != "" {
		s := model.TicketStatus(req.Status)
		target = &s
	}
	t, err := h.desk.HandleRespond(c.Request.Context(), auth.CallerID(c), id, req.Body, target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *TicketHandler) ChangeStatus(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	t, err := h.desk.HandleChangeStatus(c.Request.Context(), auth.CallerID(c), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type priorityRequest struct {
	Priority string `json:"priority" binding:"required"`
}

func (h *TicketHandler) ChangePriority(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req priorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	t, err := h.desk.HandleChangePriority(c.Request.Context(), auth.CallerID(c), id, req.Priority)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type assignRequest struct {
	StaffID string `json:"staff_id" binding:"required"`
}

func (h *TicketHandler) Assign(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	t, err := h.desk.HandleAssign(c.Request.Context(), auth.CallerID(c), id, req.StaffID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Pending(c *gin.Context) {
	items, err := h.desk.ListPending(c.Request.Context(), auth.CallerID(c), queryInt(c, "limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": nonNil(items)})
}

func (h *TicketHandler) Closed(c *gin.Context) {
	items, err := h.desk.ListClosed(c.Request.Context(), auth.CallerID(c), queryInt(c, "limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": nonNil(items)})
}

func (h *TicketHandler) Stats(c *gin.Context) {
	st, err := h.desk.GetStats(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func nonNil(items []model.Ticket) []model.Ticket {
	if items == nil {
		return []model.Ticket{}
	}
	return items
}
