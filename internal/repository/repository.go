package repository

import (
	"context"
	"time"

	"queuedesk/internal/models"
)

// Lookups return (nil, nil) when the row does not exist.

type UserRepository interface {
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type ServiceRepository interface {
	CreateService(ctx context.Context, service *models.Service) error
	GetService(ctx context.Context, id string) (*models.Service, error)
	GetServiceByName(ctx context.Context, name string) (*models.Service, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	// DeleteService removes the service with its counters, tickets and statistics.
	DeleteService(ctx context.Context, id string) (bool, error)
}

type CounterRepository interface {
	CreateCounter(ctx context.Context, counter *models.Counter) error
	GetCounter(ctx context.Context, id string) (*models.Counter, error)
	// ListCounters lists all counters when serviceID is empty.
	ListCounters(ctx context.Context, serviceID string) ([]models.Counter, error)
	// DeleteCounter removes the counter and clears ticket references to it.
	DeleteCounter(ctx context.Context, id string) (bool, error)
}

// TicketFilter narrows ListTickets. Zero values match everything.
type TicketFilter struct {
	Statuses  []models.TicketStatus
	ServiceID string
	Limit     int
}

type TicketRepository interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	// UpdateTicket persists status, counter_id, updated_at and served_at.
	UpdateTicket(ctx context.Context, ticket *models.Ticket) error
	ActiveTicketForUser(ctx context.Context, userID string) (*models.Ticket, error)
	// LatestTicketForService returns the most recently created ticket in [from, to).
	LatestTicketForService(ctx context.Context, serviceID string, from, to time.Time) (*models.Ticket, error)
	ServingTicketForCounter(ctx context.Context, counterID string) (*models.Ticket, error)
	// NextTicket returns the oldest ticket of the service in the given status.
	NextTicket(ctx context.Context, serviceID string, status models.TicketStatus) (*models.Ticket, error)
	// ListTickets returns tickets oldest first.
	ListTickets(ctx context.Context, filter TicketFilter) ([]models.Ticket, error)
	// ServedStats aggregates tickets served in [from, to) for every service,
	// including services with nothing served.
	ServedStats(ctx context.Context, from, to time.Time) ([]models.ServiceDayStat, error)
	// HourlyServed counts tickets served in [from, to) per hour of day in loc.
	HourlyServed(ctx context.Context, from, to time.Time, loc *time.Location) ([]models.HourlyStat, error)
}

type StatisticsRepository interface {
	GetDailyStatistic(ctx context.Context, date, serviceID string) (*models.DailyStatistic, error)
	// SaveDailyStatistic inserts or replaces the (date, service) row.
	SaveDailyStatistic(ctx context.Context, stat *models.DailyStatistic) error
	// ListDailyStatistics returns rows with fromDate <= date <= toDate, optionally for one service.
	ListDailyStatistics(ctx context.Context, fromDate, toDate, serviceID string) ([]models.DailyStatistic, error)
}

// Tx is the set of repositories bound to one unit of work.
type Tx interface {
	UserRepository
	ServiceRepository
	CounterRepository
	TicketRepository
	StatisticsRepository

	// LockKey serializes concurrent transactions on key until the unit of work ends.
	LockKey(ctx context.Context, key string) error
}

// Store is the persistent store. Its own methods run outside any explicit
// transaction; WithinTx runs fn atomically and rolls back when fn errors.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// WaitMinutes is the whole minutes between creation and service, never negative.
func WaitMinutes(createdAt, servedAt time.Time) int {
	d := servedAt.Sub(createdAt)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
