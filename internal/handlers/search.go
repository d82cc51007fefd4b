package handlers

import (
	"net/http"
	"strconv"

	"queuedesk/internal/models"

	"github.com/gin-gonic/gin"
)

// SearchTickets - GET /api/tickets/search?q=&serviceId=&status=&page=&pageSize=
func (h *Handlers) SearchTickets(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be >= 1"})
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil || pageSize < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be >= 1"})
		return
	}

	res, err := h.services.Queries.SearchTickets(c.Request.Context(), models.TicketSearchRequest{
		Query:     c.Query("q"),
		ServiceID: c.Query("serviceId"),
		Status:    c.Query("status"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		respondError(c, err, "search tickets")
		return
	}
	c.JSON(http.StatusOK, res)
}
