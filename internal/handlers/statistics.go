package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatisticsOverview - GET /api/statistics (admin)
// Сегодняшняя статистика и история за 7 дней
func (h *Handlers) StatisticsOverview(c *gin.Context) {
	overview, err := h.services.Queries.Overview(c.Request.Context())
	if err != nil {
		respondError(c, err, "get statistics overview")
		return
	}
	c.JSON(http.StatusOK, overview)
}

// TodayStatistics - GET /api/statistics/today
func (h *Handlers) TodayStatistics(c *gin.Context) {
	stats, err := h.services.Queries.TodayStatistics(c.Request.Context())
	if err != nil {
		respondError(c, err, "get today statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// DailyStatistics - GET /api/statistics/daily/:date (admin)
func (h *Handlers) DailyStatistics(c *gin.Context) {
	stats, err := h.services.Queries.Daily(c.Request.Context(), c.Param("date"))
	if err != nil {
		respondError(c, err, "get daily statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ServiceStatistics - GET /api/statistics/service/:id (admin)
func (h *Handlers) ServiceStatistics(c *gin.Context) {
	stats, err := h.services.Queries.ServiceStatistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "get service statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// StatisticsRange - GET /api/statistics/range?from=&to=&serviceId= (admin)
func (h *Handlers) StatisticsRange(c *gin.Context) {
	stats, err := h.services.Queries.Range(c.Request.Context(), c.Query("from"), c.Query("to"), c.Query("serviceId"))
	if err != nil {
		respondError(c, err, "get statistics range")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ReconcileStatistics - POST /api/statistics/reconcile/:date (admin)
// Пересчитывает дневную статистику по обслуженным талонам
func (h *Handlers) ReconcileStatistics(c *gin.Context) {
	report, err := h.services.Statistics.Reconcile(c.Request.Context(), c.Param("date"))
	if err != nil {
		respondError(c, err, "reconcile statistics")
		return
	}
	c.JSON(http.StatusOK, report)
}
