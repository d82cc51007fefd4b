package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"queuedesk/internal/events"
	"queuedesk/internal/metrics"
	"queuedesk/internal/models"

	"github.com/nats-io/stan.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject, data})
	return nil
}

func (c *fakeConn) QueueSubscribe(string, string, stan.MsgHandler, ...stan.SubscriptionOption) (stan.Subscription, error) {
	return nil, errors.New("not supported")
}

func (c *fakeConn) Close() error { return nil }

func TestHandleEventPublishesTicketMessage(t *testing.T) {
	conn := &fakeConn{}
	client := NewWithConn(conn, nil)
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	counter := "c1"

	client.HandleEvent(context.Background(), events.Event{
		Kind: events.TicketCalled,
		Ticket: &models.Ticket{
			ID: "t1", TicketNumber: "PA250314001", ServiceID: "s1", UserID: "u1",
			CounterID: &counter, Status: models.StatusServing, CreatedAt: at,
		},
		At: at,
	})

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "queuedesk.ticket.called", conn.msgs[0].subject)

	var msg models.TicketEventMessage
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &msg))
	assert.Equal(t, "ticket.called", msg.Event)
	assert.Equal(t, "PA250314001", msg.TicketNumber)
	assert.Equal(t, "serving", msg.Status)
	assert.Equal(t, "c1", *msg.CounterID)
}

func TestHandleEventOtherKinds(t *testing.T) {
	conn := &fakeConn{}
	client := NewWithConn(conn, nil)
	ctx := context.Background()

	client.HandleEvent(ctx, events.Event{Kind: events.StatisticsUpdated, Statistic: &models.DailyStatistic{Date: "2025-03-14", ServiceID: "s1", TotalServed: 2, AvgWaitTime: 3}})
	client.HandleEvent(ctx, events.Event{Kind: events.ServiceDeleted, Service: &models.Service{ID: "s1", Name: "Payments"}})
	client.HandleEvent(ctx, events.Event{Kind: events.CounterCreated, Counter: &models.Counter{ID: "c1", ServiceID: "s1", Name: "Desk"}})
	client.HandleEvent(ctx, events.Event{Kind: events.TicketCreated}) // no ticket attached

	require.Len(t, conn.msgs, 3)
	assert.Equal(t, "queuedesk.statistics.updated", conn.msgs[0].subject)
	assert.Equal(t, "queuedesk.service.deleted", conn.msgs[1].subject)
	assert.Equal(t, "queuedesk.counter.created", conn.msgs[2].subject)

	var stat models.StatisticsEventMessage
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &stat))
	assert.Equal(t, 2, stat.TotalServed)
}

func TestHandleEventCountsFailures(t *testing.T) {
	conn := &fakeConn{err: errors.New("connection lost")}
	client := NewWithConn(conn, nil)
	before := testutil.ToFloat64(metrics.PublishFailures.WithLabelValues("nats"))

	client.HandleEvent(context.Background(), events.Event{Kind: events.ServiceCreated, Service: &models.Service{ID: "s1"}})

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PublishFailures.WithLabelValues("nats")))
}
