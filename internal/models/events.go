package models

import "time"

// NATS subjects
const (
	SubjectPrefix = "queuedesk."

	EventTicketCreated     = "ticket.created"
	EventTicketPresent     = "ticket.present"
	EventTicketCalled      = "ticket.called"
	EventTicketServed      = "ticket.served"
	EventTicketMissed      = "ticket.missed"
	EventStatisticsUpdated = "statistics.updated"
	EventServiceCreated    = "service.created"
	EventServiceDeleted    = "service.deleted"
	EventCounterCreated    = "counter.created"
	EventCounterDeleted    = "counter.deleted"
)

// TicketEventMessage carries a ticket snapshot after a lifecycle change
type TicketEventMessage struct {
	Event        string     `json:"event"`
	TicketID     string     `json:"ticket_id"`
	TicketNumber string     `json:"ticket_number"`
	ServiceID    string     `json:"service_id"`
	ServiceName  string     `json:"service_name,omitempty"`
	UserID       string     `json:"user_id"`
	CustomerName string     `json:"customer_name,omitempty"`
	CounterID    *string    `json:"counter_id,omitempty"`
	CounterName  string     `json:"counter_name,omitempty"`
	RoomNumber   string     `json:"room_number,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ServedAt     *time.Time `json:"served_at,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// NewTicketEventMessage builds the wire message for a ticket event.
func NewTicketEventMessage(event string, t *Ticket, at time.Time) TicketEventMessage {
	return TicketEventMessage{
		Event:        event,
		TicketID:     t.ID,
		TicketNumber: t.TicketNumber,
		ServiceID:    t.ServiceID,
		ServiceName:  t.ServiceName,
		UserID:       t.UserID,
		CustomerName: t.CustomerName,
		CounterID:    t.CounterID,
		CounterName:  t.CounterName,
		RoomNumber:   t.RoomNumber,
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		ServedAt:     t.ServedAt,
		Timestamp:    at,
	}
}

// Ticket converts the message back into a ticket document.
func (m TicketEventMessage) Ticket() Ticket {
	return Ticket{
		ID:           m.TicketID,
		TicketNumber: m.TicketNumber,
		ServiceID:    m.ServiceID,
		UserID:       m.UserID,
		CounterID:    m.CounterID,
		Status:       TicketStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		ServedAt:     m.ServedAt,
		CustomerName: m.CustomerName,
		ServiceName:  m.ServiceName,
		CounterName:  m.CounterName,
		RoomNumber:   m.RoomNumber,
	}
}

// ServiceEventMessage represents a service creation or deletion
type ServiceEventMessage struct {
	Event     string    `json:"event"`
	ServiceID string    `json:"service_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// CounterEventMessage represents a counter creation or deletion
type CounterEventMessage struct {
	Event      string    `json:"event"`
	CounterID  string    `json:"counter_id"`
	ServiceID  string    `json:"service_id"`
	Name       string    `json:"name"`
	RoomNumber string    `json:"room_number"`
	Timestamp  time.Time `json:"timestamp"`
}

// StatisticsEventMessage represents an incremental statistics update
type StatisticsEventMessage struct {
	Event       string    `json:"event"`
	Date        string    `json:"date"`
	ServiceID   string    `json:"service_id"`
	TotalServed int       `json:"total_served"`
	AvgWaitTime float64   `json:"avg_wait_time"`
	Timestamp   time.Time `json:"timestamp"`
}
