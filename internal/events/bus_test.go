package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewBus(nil)
	var got []string

	bus.Subscribe("first", HandlerFunc(func(_ context.Context, ev Event) {
		got = append(got, "first:"+string(ev.Kind))
	}))
	bus.Subscribe("second", HandlerFunc(func(_ context.Context, ev Event) {
		got = append(got, "second:"+string(ev.Kind))
	}))

	bus.Publish(context.Background(), Event{Kind: TicketCreated})

	assert.Equal(t, []string{"first:ticket.created", "second:ticket.created"}, got)
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	bus := NewBus(nil)
	delivered := false

	bus.Subscribe("broken", HandlerFunc(func(context.Context, Event) { panic("boom") }))
	bus.Subscribe("ok", HandlerFunc(func(_ context.Context, ev Event) {
		delivered = true
		assert.False(t, ev.At.IsZero())
	}))

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Kind: CounterDeleted})
	})
	assert.True(t, delivered)
}

func TestNilBusDropsEvents(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Kind: ServiceCreated})
	})
}

func TestIsTicket(t *testing.T) {
	assert.True(t, TicketMissed.IsTicket())
	assert.False(t, StatisticsUpdated.IsTicket())
	assert.False(t, ServiceDeleted.IsTicket())
}
