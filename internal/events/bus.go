// Package events carries domain events from the services to their observers.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"queuedesk/internal/models"
)

type Kind string

const (
	TicketCreated     Kind = models.EventTicketCreated
	TicketPresent     Kind = models.EventTicketPresent
	TicketCalled      Kind = models.EventTicketCalled
	TicketServed      Kind = models.EventTicketServed
	TicketMissed      Kind = models.EventTicketMissed
	StatisticsUpdated Kind = models.EventStatisticsUpdated
	ServiceCreated    Kind = models.EventServiceCreated
	ServiceDeleted    Kind = models.EventServiceDeleted
	CounterCreated    Kind = models.EventCounterCreated
	CounterDeleted    Kind = models.EventCounterDeleted
)

// IsTicket reports whether the event describes a ticket lifecycle change.
func (k Kind) IsTicket() bool {
	switch k {
	case TicketCreated, TicketPresent, TicketCalled, TicketServed, TicketMissed:
		return true
	}
	return false
}

// Event is emitted after a mutation has been committed.
type Event struct {
	Kind      Kind
	ServiceID string
	CounterID string
	Ticket    *models.Ticket
	Service   *models.Service
	Counter   *models.Counter
	Statistic *models.DailyStatistic
	At        time.Time
}

type Handler interface {
	HandleEvent(ctx context.Context, ev Event)
}

type HandlerFunc func(ctx context.Context, ev Event)

func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) { f(ctx, ev) }

type subscriber struct {
	name    string
	handler Handler
}

// Bus fans events out to subscribers in registration order. A nil *Bus
// silently drops events.
type Bus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	logger      *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber{name: name, handler: h})
}

// Publish delivers ev synchronously. A panicking subscriber is logged and
// does not stop delivery to the others.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event subscriber panicked",
				"subscriber", s.name, "event", string(ev.Kind), "panic", r)
		}
	}()
	s.handler.HandleEvent(ctx, ev)
}
