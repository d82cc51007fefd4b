// Package validation runs an end-to-end smoke scenario against a running API.
package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"queuedesk/internal/auth"
	"queuedesk/internal/models"

	"github.com/google/uuid"
)

// SmokeValidator walks one customer through the whole queue: a service and a
// counter are created, a ticket is issued, marked present, called and served,
// and everything is removed again.
type SmokeValidator struct {
	baseURL string
	secret  string
	client  *http.Client
	logger  *slog.Logger

	admin    string
	staff    string
	customer string
	userID   string
}

// NewSmokeValidator создает валидатор. secret must be the API's JWT_SECRET.
func NewSmokeValidator(baseURL, secret string, logger *slog.Logger) *SmokeValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SmokeValidator{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (v *SmokeValidator) issueTokens() error {
	run := uuid.NewString()[:8]
	v.userID = "smoke-customer-" + run

	var err error
	if v.admin, err = auth.SignToken(v.secret, models.Identity{UserID: "smoke-admin-" + run, Name: "Smoke Admin", Role: models.RoleAdmin}, time.Hour); err != nil {
		return err
	}
	if v.staff, err = auth.SignToken(v.secret, models.Identity{UserID: "smoke-staff-" + run, Name: "Smoke Staff", Role: models.RoleCounterStaff}, time.Hour); err != nil {
		return err
	}
	v.customer, err = auth.SignToken(v.secret, models.Identity{UserID: v.userID, Name: "Smoke Customer", Role: models.RoleCustomer}, time.Hour)
	return err
}

// ValidateAll проверяет полный цикл обслуживания клиента
func (v *SmokeValidator) ValidateAll(ctx context.Context) (err error) {
	v.logger.Info("Starting smoke validation", "url", v.baseURL)

	if err := v.issueTokens(); err != nil {
		return fmt.Errorf("failed to sign tokens: %w", err)
	}

	if err := v.call(ctx, http.MethodGet, "/health", "", nil, http.StatusOK, nil); err != nil {
		return err
	}

	var svc models.Service
	name := "Smoke " + v.userID
	if err := v.call(ctx, http.MethodPost, "/api/services", v.admin, models.CreateServiceRequest{Name: name}, http.StatusCreated, &svc); err != nil {
		return err
	}
	defer func() {
		cleanupErr := v.call(context.WithoutCancel(ctx), http.MethodDelete, "/api/services/"+svc.ID, v.admin, nil, http.StatusOK, nil)
		if err == nil {
			err = cleanupErr
		}
	}()

	var counter models.Counter
	counterReq := models.CreateCounterRequest{Name: "Smoke desk", RoomNumber: "0", ServiceID: svc.ID}
	if err := v.call(ctx, http.MethodPost, "/api/counters", v.admin, counterReq, http.StatusCreated, &counter); err != nil {
		return err
	}

	var ticket models.Ticket
	if err := v.call(ctx, http.MethodPost, "/api/queue/virtual-ticket", v.customer, models.CreateVirtualTicketRequest{ServiceID: svc.ID}, http.StatusCreated, &ticket); err != nil {
		return err
	}
	if ticket.Status != models.StatusVirtual || ticket.TicketNumber == "" {
		return fmt.Errorf("new ticket: got status %q number %q", ticket.Status, ticket.TicketNumber)
	}

	var active *models.Ticket
	if err := v.call(ctx, http.MethodGet, "/api/queue/user-ticket", v.customer, nil, http.StatusOK, &active); err != nil {
		return err
	}
	if active == nil || active.ID != ticket.ID {
		return fmt.Errorf("user-ticket: expected %s", ticket.ID)
	}

	if err := v.call(ctx, http.MethodPatch, "/api/queue/tickets/"+ticket.ID+"/present", v.customer, nil, http.StatusOK, &ticket); err != nil {
		return err
	}
	if ticket.Status != models.StatusPhysical {
		return fmt.Errorf("present: got status %q", ticket.Status)
	}

	callReq := models.CallNextRequest{CounterID: counter.ID, ServiceID: svc.ID}
	var called struct {
		Ticket  *models.Ticket `json:"ticket"`
		Message string         `json:"message"`
	}
	if err := v.call(ctx, http.MethodPost, "/api/queue/next-customer", v.staff, callReq, http.StatusOK, &called); err != nil {
		return err
	}
	if called.Ticket == nil || called.Ticket.ID != ticket.ID || called.Ticket.Status != models.StatusServing {
		return fmt.Errorf("next-customer: expected ticket %s to be serving", ticket.ID)
	}

	called.Ticket = nil
	if err := v.call(ctx, http.MethodPost, "/api/queue/next-customer", v.staff, callReq, http.StatusOK, &called); err != nil {
		return err
	}
	if called.Ticket != nil {
		return fmt.Errorf("next-customer: expected an empty queue, got %s", called.Ticket.ID)
	}

	var today models.TodayStatistics
	if err := v.call(ctx, http.MethodGet, "/api/statistics/today", "", nil, http.StatusOK, &today); err != nil {
		return err
	}
	if today.ServedTodayByService[svc.ID] != 1 {
		return fmt.Errorf("statistics: expected 1 served for %s, got %d", svc.ID, today.ServedTodayByService[svc.ID])
	}

	v.logger.Info("Smoke validation passed", "ticket", ticket.TicketNumber)
	return nil
}

func (v *SmokeValidator) call(ctx context.Context, method, path, token string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, want, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	v.logger.Debug("Smoke step passed", "method", method, "path", path, "status", resp.StatusCode)
	return nil
}

// RunValidation запускает проверку API
func RunValidation(baseURL, secret string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return NewSmokeValidator(baseURL, secret, nil).ValidateAll(ctx)
}
