package handlers

import (
	"net/http"

	"queuedesk/internal/models"

	"github.com/gin-gonic/gin"
)

// QueueStatus - GET /api/queue/status
func (h *Handlers) QueueStatus(c *gin.Context) {
	status, err := h.services.Queries.QueueStatus(c.Request.Context())
	if err != nil {
		respondError(c, err, "get queue status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// UserTicket - GET /api/queue/user-ticket
// Активный талон пользователя или null
func (h *Handlers) UserTicket(c *gin.Context) {
	ticket, err := h.services.Queries.ActiveTicket(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondError(c, err, "get user ticket")
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// CreateVirtualTicket - POST /api/queue/virtual-ticket
func (h *Handlers) CreateVirtualTicket(c *gin.Context) {
	var req models.CreateVirtualTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	ticket, err := h.services.Tickets.CreateVirtualTicket(c.Request.Context(), identity(c), req.ServiceID)
	if err != nil {
		respondError(c, err, "create virtual ticket")
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// MarkPresent - PATCH /api/queue/tickets/:id/present
func (h *Handlers) MarkPresent(c *gin.Context) {
	ticket, err := h.services.Tickets.MarkPresent(c.Request.Context(), c.Param("id"), identity(c).UserID)
	if err != nil {
		respondError(c, err, "mark ticket present")
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// NextCustomer - POST /api/queue/next-customer
// Завершает текущий талон стойки и вызывает следующего клиента
func (h *Handlers) NextCustomer(c *gin.Context) {
	var req models.CallNextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := h.services.Tickets.CallNext(c.Request.Context(), req.CounterID, req.ServiceID, identity(c).Role)
	if err != nil {
		respondError(c, err, "call next customer")
		return
	}

	if !result.Waiting() {
		c.JSON(http.StatusOK, gin.H{"message": result.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": result.Ticket})
}

// SkipCurrent - POST /api/queue/skip
// Отмечает текущего клиента стойки как не явившегося
func (h *Handlers) SkipCurrent(c *gin.Context) {
	var req models.CallNextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	ticket, err := h.services.Tickets.SkipCurrent(c.Request.Context(), req.CounterID, req.ServiceID, identity(c).Role)
	if err != nil {
		respondError(c, err, "skip current ticket")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}
