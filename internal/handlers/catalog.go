package handlers

import (
	"net/http"

	"queuedesk/internal/models"

	"github.com/gin-gonic/gin"
)

// ListServices - GET /api/services
func (h *Handlers) ListServices(c *gin.Context) {
	services, err := h.services.Queries.ListServices(c.Request.Context())
	if err != nil {
		respondError(c, err, "list services")
		return
	}
	if services == nil {
		services = []models.Service{}
	}
	c.JSON(http.StatusOK, services)
}

// GetService - GET /api/services/:id
func (h *Handlers) GetService(c *gin.Context) {
	svc, err := h.services.Queries.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "get service")
		return
	}
	c.JSON(http.StatusOK, svc)
}

// CreateService - POST /api/services (admin)
func (h *Handlers) CreateService(c *gin.Context) {
	var req models.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	svc, err := h.services.Admin.CreateService(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "create service")
		return
	}
	c.JSON(http.StatusCreated, svc)
}

// DeleteService - DELETE /api/services/:id (admin)
func (h *Handlers) DeleteService(c *gin.Context) {
	if err := h.services.Admin.DeleteService(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "delete service")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Service deleted"})
}

// ListCounters - GET /api/counters[?serviceId=]
func (h *Handlers) ListCounters(c *gin.Context) {
	h.listCounters(c, c.Query("serviceId"))
}

// CountersByService - GET /api/counters/service/:serviceId
func (h *Handlers) CountersByService(c *gin.Context) {
	h.listCounters(c, c.Param("serviceId"))
}

func (h *Handlers) listCounters(c *gin.Context, serviceID string) {
	counters, err := h.services.Queries.ListCounters(c.Request.Context(), serviceID)
	if err != nil {
		respondError(c, err, "list counters")
		return
	}
	if counters == nil {
		counters = []models.Counter{}
	}
	c.JSON(http.StatusOK, counters)
}

// GetCounter - GET /api/counters/:id
func (h *Handlers) GetCounter(c *gin.Context) {
	counter, err := h.services.Queries.GetCounter(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "get counter")
		return
	}
	c.JSON(http.StatusOK, counter)
}

// CreateCounter - POST /api/counters (admin)
func (h *Handlers) CreateCounter(c *gin.Context) {
	var req models.CreateCounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	counter, err := h.services.Admin.CreateCounter(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "create counter")
		return
	}
	c.JSON(http.StatusCreated, counter)
}

// DeleteCounter - DELETE /api/counters/:id (admin)
func (h *Handlers) DeleteCounter(c *gin.Context) {
	if err := h.services.Admin.DeleteCounter(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "delete counter")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Counter deleted"})
}
