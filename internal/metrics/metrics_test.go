package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"queuedesk/internal/events"
	"queuedesk/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserverCountsTicketEvents(t *testing.T) {
	before := testutil.ToFloat64(TicketEvents.WithLabelValues("ticket.served"))

	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	served := created.Add(7 * time.Minute)
	Observer{}.HandleEvent(context.Background(), events.Event{
		Kind:   events.TicketServed,
		Ticket: &models.Ticket{CreatedAt: created, ServedAt: &served},
	})
	Observer{}.HandleEvent(context.Background(), events.Event{Kind: events.ServiceCreated})

	assert.Equal(t, before+1, testutil.ToFloat64(TicketEvents.WithLabelValues("ticket.served")))
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/metrics", Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "queuedesk_http_request_duration_seconds")
}
