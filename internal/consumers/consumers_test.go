package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"queuedesk/internal/models"

	"github.com/nats-io/stan.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	indexed []models.Ticket
	deleted []string
	err     error
}

func (f *fakeIndex) IndexTicket(_ context.Context, t *models.Ticket) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, *t)
	return nil
}

func (f *fakeIndex) DeleteByService(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func ticketMessage(t *testing.T) []byte {
	t.Helper()
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	data, err := json.Marshal(models.NewTicketEventMessage("ticket.present", &models.Ticket{
		ID: "t1", TicketNumber: "PA250314001", ServiceID: "s1", UserID: "u1",
		Status: models.StatusPhysical, CreatedAt: at, UpdatedAt: at, ServiceName: "Payments",
	}, at))
	require.NoError(t, err)
	return data
}

func TestIndexTicket(t *testing.T) {
	index := &fakeIndex{}
	h := NewHandlers(index, time.Second)

	assert.True(t, h.indexTicket(ticketMessage(t)))
	require.Len(t, index.indexed, 1)
	assert.Equal(t, "PA250314001", index.indexed[0].TicketNumber)
	assert.Equal(t, models.StatusPhysical, index.indexed[0].Status)
	assert.Equal(t, "Payments", index.indexed[0].ServiceName)

	// Poison messages are acknowledged and skipped.
	assert.True(t, h.indexTicket([]byte("{not json")))
	assert.True(t, h.indexTicket([]byte(`{"event":"ticket.created"}`)))
	assert.Len(t, index.indexed, 1)
}

func TestIndexTicketFailureIsRetried(t *testing.T) {
	h := NewHandlers(&fakeIndex{err: errors.New("es down")}, time.Second)
	assert.False(t, h.indexTicket(ticketMessage(t)))
	assert.False(t, h.deleteService([]byte(`{"event":"service.deleted","service_id":"s1"}`)))
}

func TestDeleteService(t *testing.T) {
	index := &fakeIndex{}
	h := NewHandlers(index, time.Second)
	assert.True(t, h.deleteService([]byte(`{"event":"service.deleted","service_id":"s1"}`)))
	assert.Equal(t, []string{"s1"}, index.deleted)
}

type fakeSub struct {
	stan.Subscription
	closed bool
}

func (s *fakeSub) Close() error {
	s.closed = true
	return nil
}

type fakeSubscriber struct {
	subjects []string
	subs     []*fakeSub
}

func (f *fakeSubscriber) SubscribeQueue(subject, queue string, _ stan.MsgHandler) (stan.Subscription, error) {
	f.subjects = append(f.subjects, subject+"@"+queue)
	sub := &fakeSub{}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func TestConsumerServiceSubscriptions(t *testing.T) {
	nats := &fakeSubscriber{}
	cs := NewConsumerService(nats, NewHandlers(&fakeIndex{}, 0))

	require.NoError(t, cs.Start())
	assert.Equal(t, []string{
		"queuedesk.ticket.created@queuedesk-indexer",
		"queuedesk.ticket.present@queuedesk-indexer",
		"queuedesk.ticket.called@queuedesk-indexer",
		"queuedesk.ticket.served@queuedesk-indexer",
		"queuedesk.ticket.missed@queuedesk-indexer",
		"queuedesk.service.deleted@queuedesk-indexer",
	}, nats.subjects)

	require.NoError(t, cs.Shutdown(context.Background()))
	for _, sub := range nats.subs {
		assert.True(t, sub.closed)
	}
}
