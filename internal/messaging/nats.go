package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"queuedesk/internal/events"
	"queuedesk/internal/metrics"
	"queuedesk/internal/models"

	"github.com/google/uuid"
	"github.com/nats-io/stan.go"
)

// Conn is the part of stan.Conn the client uses.
type Conn interface {
	Publish(subject string, data []byte) error
	QueueSubscribe(subject, qgroup string, cb stan.MsgHandler, opts ...stan.SubscriptionOption) (stan.Subscription, error)
	Close() error
}

type NATSClient struct {
	conn   Conn
	logger *slog.Logger
}

type Config struct {
	URL       string
	ClusterID string
	ClientID  string
}

func NewNATSClient(cfg Config) (*NATSClient, error) {
	// Unique suffix so several replicas can share one client id prefix
	uniqueClientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])

	conn, err := stan.Connect(cfg.ClusterID, uniqueClientID, stan.NatsURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS Streaming: %w", err)
	}

	slog.Info("Connected to NATS Streaming",
		"url", cfg.URL, "cluster", cfg.ClusterID, "client", uniqueClientID)

	return &NATSClient{conn: conn, logger: slog.Default()}, nil
}

// NewWithConn wraps an established connection.
func NewWithConn(conn Conn, logger *slog.Logger) *NATSClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSClient{conn: conn, logger: logger}
}

func (nc *NATSClient) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := nc.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}

	nc.logger.Debug("Published message", "subject", subject)
	return nil
}

func (nc *NATSClient) SubscribeQueue(subject, queue string, handler stan.MsgHandler) (stan.Subscription, error) {
	sub, err := nc.conn.QueueSubscribe(subject, queue, handler,
		stan.DurableName(subject+"-"+queue+"-durable"),
		stan.SetManualAckMode(),
		stan.AckWait(30*time.Second),
		stan.MaxInflight(1))
	if err != nil {
		return nil, fmt.Errorf("failed to queue subscribe to subject %s: %w", subject, err)
	}

	nc.logger.Info("Subscribed to subject", "subject", subject, "queue", queue)
	return sub, nil
}

func (nc *NATSClient) Close() error {
	if nc.conn != nil {
		return nc.conn.Close()
	}
	return nil
}

// Subject returns the NATS subject for an event kind.
func Subject(kind events.Kind) string {
	return models.SubjectPrefix + string(kind)
}

// HandleEvent forwards committed domain events to NATS. A failed publish is
// logged and counted; the mutation it describes has already committed.
func (nc *NATSClient) HandleEvent(_ context.Context, ev events.Event) {
	msg, ok := message(ev)
	if !ok {
		return
	}
	if err := nc.Publish(Subject(ev.Kind), msg); err != nil {
		metrics.PublishFailures.WithLabelValues("nats").Inc()
		nc.logger.Error("Failed to publish event", "event", ev.Kind, "error", err)
	}
}

func message(ev events.Event) (interface{}, bool) {
	event := string(ev.Kind)
	switch {
	case ev.Kind.IsTicket() && ev.Ticket != nil:
		return models.NewTicketEventMessage(event, ev.Ticket, ev.At), true
	case ev.Kind == events.StatisticsUpdated && ev.Statistic != nil:
		return models.StatisticsEventMessage{
			Event:       event,
			Date:        ev.Statistic.Date,
			ServiceID:   ev.Statistic.ServiceID,
			TotalServed: ev.Statistic.TotalServed,
			AvgWaitTime: ev.Statistic.AvgWaitTime,
			Timestamp:   ev.At,
		}, true
	case ev.Service != nil:
		return models.ServiceEventMessage{
			Event:     event,
			ServiceID: ev.Service.ID,
			Name:      ev.Service.Name,
			Timestamp: ev.At,
		}, true
	case ev.Counter != nil:
		return models.CounterEventMessage{
			Event:      event,
			CounterID:  ev.Counter.ID,
			ServiceID:  ev.Counter.ServiceID,
			Name:       ev.Counter.Name,
			RoomNumber: ev.Counter.RoomNumber,
			Timestamp:  ev.At,
		}, true
	}
	return nil, false
}
