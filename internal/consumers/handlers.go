package consumers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"queuedesk/internal/models"

	"github.com/nats-io/stan.go"
)

// TicketIndex is the search index the consumers keep current.
type TicketIndex interface {
	IndexTicket(ctx context.Context, ticket *models.Ticket) error
	DeleteByService(ctx context.Context, serviceID string) error
}

type Handlers struct {
	index   TicketIndex
	timeout time.Duration
}

func NewHandlers(index TicketIndex, timeout time.Duration) *Handlers {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handlers{index: index, timeout: timeout}
}

// HandleTicketEvent indexes the ticket snapshot carried by any ticket.* message.
// Failed writes are left unacknowledged so NATS redelivers them.
func (h *Handlers) HandleTicketEvent(m *stan.Msg) {
	if h.indexTicket(m.Data) {
		m.Ack()
	}
}

// HandleServiceDeleted drops the documents of a deleted service.
func (h *Handlers) HandleServiceDeleted(m *stan.Msg) {
	if h.deleteService(m.Data) {
		m.Ack()
	}
}

// indexTicket reports whether the message is done with. Malformed messages
// are acknowledged to avoid redelivering them forever.
func (h *Handlers) indexTicket(data []byte) bool {
	var event models.TicketEventMessage
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal ticket event", "error", err)
		return true
	}
	if event.TicketID == "" {
		slog.Warn("Ticket event without ticket id", "event", event.Event)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	ticket := event.Ticket()
	if err := h.index.IndexTicket(ctx, &ticket); err != nil {
		slog.Error("Failed to index ticket", "ticket_id", event.TicketID, "event", event.Event, "error", err)
		return false
	}

	slog.Debug("Indexed ticket", "ticket_id", event.TicketID, "status", event.Status)
	return true
}

func (h *Handlers) deleteService(data []byte) bool {
	var event models.ServiceEventMessage
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal service event", "error", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.index.DeleteByService(ctx, event.ServiceID); err != nil {
		slog.Error("Failed to delete service tickets from index", "service_id", event.ServiceID, "error", err)
		return false
	}

	slog.Info("Removed service tickets from index", "service_id", event.ServiceID)
	return true
}
