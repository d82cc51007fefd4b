package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"queuedesk/internal/auth"
	"queuedesk/internal/events"
	"queuedesk/internal/middleware"
	"queuedesk/internal/models"
	"queuedesk/internal/repository/memory"
	"queuedesk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testValidator = auth.StaticValidator{
	"alice": {UserID: "u-alice", Name: "Alice", Role: models.RoleCustomer},
	"bob":   {UserID: "u-bob", Name: "Bob", Role: models.RoleCustomer},
	"staff": {UserID: "u-staff", Name: "Desk", Role: models.RoleCounterStaff},
	"admin": {UserID: "u-admin", Name: "Boss", Role: models.RoleAdmin},
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	svcs := service.NewServices(memory.New(), events.NewBus(nil), nil, service.Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
	h := NewHandlers(svcs)

	r := gin.New()
	r.Use(middleware.Recovery())

	api := r.Group("/api")
	authed := middleware.Authenticate(testValidator)
	staff := middleware.RequireRole(models.RoleCounterStaff, models.RoleAdmin)
	admin := middleware.RequireRole(models.RoleAdmin)

	queue := api.Group("/queue")
	{
		queue.GET("/status", h.QueueStatus)
		queue.GET("/user-ticket", authed, h.UserTicket)
		queue.POST("/virtual-ticket", authed, h.CreateVirtualTicket)
		queue.PATCH("/tickets/:id/present", authed, h.MarkPresent)
		queue.POST("/next-customer", authed, staff, h.NextCustomer)
		queue.POST("/skip", authed, staff, h.SkipCurrent)
	}

	services := api.Group("/services")
	{
		services.GET("", h.ListServices)
		services.GET("/:id", h.GetService)
		services.POST("", authed, admin, h.CreateService)
		services.DELETE("/:id", authed, admin, h.DeleteService)
	}

	counters := api.Group("/counters")
	{
		counters.GET("", h.ListCounters)
		counters.GET("/service/:serviceId", h.CountersByService)
		counters.GET("/:id", h.GetCounter)
		counters.POST("", authed, admin, h.CreateCounter)
		counters.DELETE("/:id", authed, admin, h.DeleteCounter)
	}

	stats := api.Group("/statistics")
	{
		stats.GET("/today", h.TodayStatistics)
		stats.GET("", authed, admin, h.StatisticsOverview)
		stats.GET("/daily/:date", authed, admin, h.DailyStatistics)
		stats.GET("/service/:id", authed, admin, h.ServiceStatistics)
		stats.GET("/range", authed, admin, h.StatisticsRange)
		stats.POST("/reconcile/:date", authed, admin, h.ReconcileStatistics)
	}

	api.GET("/tickets/search", authed, staff, h.SearchTickets)
	return r
}

func call(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

func seed(t *testing.T, r *gin.Engine) (models.Service, models.Counter) {
	t.Helper()
	w := call(r, http.MethodPost, "/api/services", "admin", models.CreateServiceRequest{Name: "Payments"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	svc := decode[models.Service](t, w)

	w = call(r, http.MethodPost, "/api/counters", "admin", models.CreateCounterRequest{Name: "Desk 1", RoomNumber: "101", ServiceID: svc.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return svc, decode[models.Counter](t, w)
}

func TestTicketFlow(t *testing.T) {
	r := setupRouter(t)
	svc, desk := seed(t, r)

	w := call(r, http.MethodPost, "/api/queue/virtual-ticket", "alice", models.CreateVirtualTicketRequest{ServiceID: svc.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ticket := decode[models.Ticket](t, w)
	assert.Equal(t, "PA250314001", ticket.TicketNumber)
	assert.Equal(t, models.StatusVirtual, ticket.Status)

	w = call(r, http.MethodPost, "/api/queue/virtual-ticket", "alice", models.CreateVirtualTicketRequest{ServiceID: svc.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "You already have an active ticket", errorMessage(t, w))

	w = call(r, http.MethodGet, "/api/queue/user-ticket", "alice", nil)
	assert.Equal(t, ticket.ID, decode[models.Ticket](t, w).ID)

	w = call(r, http.MethodPatch, "/api/queue/tickets/"+ticket.ID+"/present", "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(r, http.MethodPatch, "/api/queue/tickets/"+ticket.ID+"/present", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusPhysical, decode[models.Ticket](t, w).Status)

	w = call(r, http.MethodPost, "/api/queue/next-customer", "alice", models.CallNextRequest{CounterID: desk.ID, ServiceID: svc.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(r, http.MethodPost, "/api/queue/next-customer", "staff", models.CallNextRequest{CounterID: desk.ID, ServiceID: svc.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	called := decode[map[string]models.Ticket](t, w)["ticket"]
	assert.Equal(t, models.StatusServing, called.Status)
	require.NotNil(t, called.CounterID)
	assert.Equal(t, desk.ID, *called.CounterID)

	w = call(r, http.MethodGet, "/api/queue/status", "", nil)
	status := decode[models.QueueStatus](t, w)
	assert.Equal(t, ticket.ID, status.CurrentServing[desk.ID].ID)

	w = call(r, http.MethodPost, "/api/queue/next-customer", "staff", models.CallNextRequest{CounterID: desk.ID, ServiceID: svc.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"message": "No customers waiting"}, decode[map[string]string](t, w))

	w = call(r, http.MethodGet, "/api/queue/user-ticket", "alice", nil)
	assert.Equal(t, "null", w.Body.String())

	w = call(r, http.MethodGet, "/api/statistics/today", "", nil)
	today := decode[models.TodayStatistics](t, w)
	assert.Equal(t, 1, today.TotalServedToday)
	assert.Equal(t, 1, today.ServedTodayByService[svc.ID])
}

func TestSkipCurrent(t *testing.T) {
	r := setupRouter(t)
	svc, desk := seed(t, r)

	w := call(r, http.MethodPost, "/api/queue/skip", "staff", models.CallNextRequest{CounterID: desk.ID, ServiceID: svc.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Counter is not serving any ticket", errorMessage(t, w))

	w = call(r, http.MethodPost, "/api/queue/virtual-ticket", "alice", models.CreateVirtualTicketRequest{ServiceID: svc.ID})
	ticket := decode[models.Ticket](t, w)
	call(r, http.MethodPatch, "/api/queue/tickets/"+ticket.ID+"/present", "alice", nil)
	call(r, http.MethodPost, "/api/queue/next-customer", "staff", models.CallNextRequest{CounterID: desk.ID, ServiceID: svc.ID})

	w = call(r, http.MethodPost, "/api/queue/skip", "staff", models.CallNextRequest{CounterID: desk.ID, ServiceID: svc.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusMissed, decode[map[string]models.Ticket](t, w)["ticket"].Status)
}

func TestValidationErrors(t *testing.T) {
	r := setupRouter(t)

	w := call(r, http.MethodPost, "/api/queue/virtual-ticket", "alice", models.CreateVirtualTicketRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Service ID is required", errorMessage(t, w))

	w = call(r, http.MethodPost, "/api/queue/virtual-ticket", "alice", models.CreateVirtualTicketRequest{ServiceID: "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Service not found", errorMessage(t, w))

	req, _ := http.NewRequest(http.MethodPost, "/api/services", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer admin")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", errorMessage(t, rec))

	w = call(r, http.MethodPost, "/api/queue/next-customer", "staff", models.CallNextRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Counter ID and Service ID are required", errorMessage(t, w))

	w = call(r, http.MethodGet, "/api/statistics/daily/2025-13-01", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodGet, "/api/tickets/search?q=PA", "staff", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = call(r, http.MethodGet, "/api/tickets/search?page=0", "staff", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	r := setupRouter(t)

	w := call(r, http.MethodGet, "/api/services", "", nil)
	assert.Equal(t, "[]", w.Body.String())

	w = call(r, http.MethodPost, "/api/services", "staff", models.CreateServiceRequest{Name: "X"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied. Admin only.", errorMessage(t, w))

	svc, desk := seed(t, r)

	w = call(r, http.MethodPost, "/api/services", "admin", models.CreateServiceRequest{Name: "Payments"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(r, http.MethodGet, "/api/services/"+svc.ID, "", nil)
	assert.Equal(t, "Payments", decode[models.Service](t, w).Name)

	w = call(r, http.MethodGet, "/api/counters/service/"+svc.ID, "", nil)
	assert.Len(t, decode[[]models.Counter](t, w), 1)

	w = call(r, http.MethodGet, "/api/counters?serviceId=other", "", nil)
	assert.Equal(t, "[]", w.Body.String())

	w = call(r, http.MethodGet, "/api/counters/"+desk.ID, "", nil)
	assert.Equal(t, "101", decode[models.Counter](t, w).RoomNumber)

	w = call(r, http.MethodDelete, "/api/counters/"+desk.ID, "admin", nil)
	assert.Equal(t, map[string]string{"message": "Counter deleted"}, decode[map[string]string](t, w))

	w = call(r, http.MethodGet, "/api/counters/"+desk.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Counter not found", errorMessage(t, w))

	w = call(r, http.MethodDelete, "/api/services/"+svc.ID, "admin", nil)
	assert.Equal(t, map[string]string{"message": "Service deleted"}, decode[map[string]string](t, w))

	w = call(r, http.MethodDelete, "/api/services/"+svc.ID, "admin", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminStatistics(t *testing.T) {
	r := setupRouter(t)
	svc, _ := seed(t, r)

	w := call(r, http.MethodGet, "/api/statistics", "staff", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(r, http.MethodGet, "/api/statistics", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	overview := decode[map[string]json.RawMessage](t, w)
	assert.Contains(t, overview, "totalServedToday")
	assert.Contains(t, overview, "historicalData")

	w = call(r, http.MethodGet, "/api/statistics/daily/2025-03-14", "admin", nil)
	assert.Equal(t, "2025-03-14", decode[models.DailyStatistics](t, w).Date)

	w = call(r, http.MethodGet, "/api/statistics/service/"+svc.ID, "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(r, http.MethodGet, "/api/statistics/range?from=2025-03-01&to=2025-03-14", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(r, http.MethodPost, "/api/statistics/reconcile/2025-03-14", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
