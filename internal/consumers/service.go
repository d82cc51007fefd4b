package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"queuedesk/internal/events"
	"queuedesk/internal/messaging"

	"github.com/nats-io/stan.go"
)

// Subscriber is the queue-subscribe part of the NATS client.
type Subscriber interface {
	SubscribeQueue(subject, queue string, handler stan.MsgHandler) (stan.Subscription, error)
}

const queueGroup = "queuedesk-indexer"

var ticketKinds = []events.Kind{
	events.TicketCreated,
	events.TicketPresent,
	events.TicketCalled,
	events.TicketServed,
	events.TicketMissed,
}

type ConsumerService struct {
	nats     Subscriber
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(nats Subscriber, handlers *Handlers) *ConsumerService {
	return &ConsumerService{nats: nats, handlers: handlers}
}

// Start subscribes the indexer to every ticket subject and to service deletions.
func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	for _, kind := range ticketKinds {
		if err := cs.subscribe(messaging.Subject(kind), cs.handlers.HandleTicketEvent); err != nil {
			return err
		}
	}
	if err := cs.subscribe(messaging.Subject(events.ServiceDeleted), cs.handlers.HandleServiceDeleted); err != nil {
		return err
	}

	slog.Info("All consumers started successfully", "subscriptions", len(cs.subs))
	return nil
}

func (cs *ConsumerService) subscribe(subject string, handler stan.MsgHandler) error {
	sub, err := cs.nats.SubscribeQueue(subject, queueGroup, handler)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	cs.subs = append(cs.subs, sub)
	return nil
}

// Shutdown closes the subscriptions while keeping the durable positions.
func (cs *ConsumerService) Shutdown(_ context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}
	cs.subs = nil
	return nil
}
