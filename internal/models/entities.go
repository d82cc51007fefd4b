package models

import (
	"strings"
	"time"
)

// Role of a caller as established by the identity provider
type Role string

const (
	RoleCustomer     Role = "customer"
	RoleCounterStaff Role = "counter_staff"
	RoleAdmin        Role = "admin"
)

// ParseRole accepts the canonical names plus the legacy "user" and "counter" aliases.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer", "user":
		return RoleCustomer, true
	case "counter_staff", "counter", "staff":
		return RoleCounterStaff, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

// IsStaff reports whether the role may operate counters.
func (r Role) IsStaff() bool {
	return r == RoleCounterStaff || r == RoleAdmin
}

// Identity is the caller established at the request boundary
type Identity struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Role   Role   `json:"role"`

	// ExpiresAt is when the token behind this identity stops being valid.
	// Zero when unknown.
	ExpiresAt time.Time `json:"-"`
}

// User represents a user in the system
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Service is a kind of walk-in service with its own queue
type Service struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Counter is a desk bound to exactly one service
type Counter struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	RoomNumber  string    `json:"roomNumber" db:"room_number"`
	ServiceID   string    `json:"serviceId" db:"service_id"`
	ServiceName string    `json:"serviceName,omitempty"` // Not from counters table, joined
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Ticket is a customer's place in a service queue
type Ticket struct {
	ID           string       `json:"id" db:"id"`
	TicketNumber string       `json:"ticketNumber" db:"ticket_number"`
	ServiceID    string       `json:"serviceId" db:"service_id"`
	UserID       string       `json:"userId" db:"user_id"`
	CounterID    *string      `json:"counterId" db:"counter_id"`
	Status       TicketStatus `json:"status" db:"status"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
	ServedAt     *time.Time   `json:"servedAt" db:"served_at"`

	// Joined for projections
	CustomerName string `json:"customerName,omitempty"`
	ServiceName  string `json:"serviceName,omitempty"`
	CounterName  string `json:"counterName,omitempty"`
	RoomNumber   string `json:"roomNumber,omitempty"`
}

// Apply moves the ticket through the given action, stamping the update time.
func (t *Ticket) Apply(action TicketAction, at time.Time) error {
	next, err := Transition(t.Status, action)
	if err != nil {
		return err
	}
	t.Status = next
	t.UpdatedAt = at
	if next == StatusServed {
		servedAt := at
		t.ServedAt = &servedAt
	}
	return nil
}

// AssignCounter binds the ticket to a counter, filling the joined counter fields.
func (t *Ticket) AssignCounter(c *Counter) {
	id := c.ID
	t.CounterID = &id
	t.CounterName = c.Name
	t.RoomNumber = c.RoomNumber
}

// DailyStatistic holds the running served count and mean wait of a service for one day
type DailyStatistic struct {
	ID          string    `json:"id" db:"id"`
	Date        string    `json:"date" db:"date"` // YYYY-MM-DD
	ServiceID   string    `json:"serviceId" db:"service_id"`
	TotalServed int       `json:"totalServed" db:"total_served"`
	AvgWaitTime float64   `json:"avgWaitTime" db:"avg_wait_time"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
