package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"queuedesk/internal/events"
	"queuedesk/internal/keylock"
	"queuedesk/internal/models"
	"queuedesk/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	svcs  *Services
	locks *keylock.Locker

	mu       sync.Mutex
	now      time.Time
	recorded []events.Event
	// keys held by the engine when each event was delivered
	heldLocks []int
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{t: t, ctx: context.Background(), store: memory.New(), locks: keylock.New(), now: t0}

	bus := events.NewBus(nil)
	bus.Subscribe("recorder", events.HandlerFunc(func(_ context.Context, ev events.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.recorded = append(f.recorded, ev)
		f.heldLocks = append(f.heldLocks, f.locks.Len())
	}))

	f.svcs = NewServices(f.store, bus, f.locks, Options{
		Location: time.UTC,
		Now: func() time.Time {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.now
		},
	})
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) kinds() []events.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]events.Kind, len(f.recorded))
	for i, ev := range f.recorded {
		kinds[i] = ev.Kind
	}
	return kinds
}

func (f *fixture) resetEvents() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = nil
	f.heldLocks = nil
}

func (f *fixture) service(name string) *models.Service {
	s, err := f.svcs.Admin.CreateService(f.ctx, models.CreateServiceRequest{Name: name})
	require.NoError(f.t, err)
	return s
}

func (f *fixture) counter(serviceID, name string) *models.Counter {
	c, err := f.svcs.Admin.CreateCounter(f.ctx, models.CreateCounterRequest{
		Name: name, RoomNumber: "1" + name, ServiceID: serviceID,
	})
	require.NoError(f.t, err)
	return c
}

func customer(id string) models.Identity {
	return models.Identity{UserID: id, Name: "Customer " + id, Email: id + "@example.com", Role: models.RoleCustomer}
}

func (f *fixture) ticket(userID, serviceID string) *models.Ticket {
	tk, err := f.svcs.Tickets.CreateVirtualTicket(f.ctx, customer(userID), serviceID)
	require.NoError(f.t, err)
	return tk
}

func (f *fixture) present(userID, serviceID string) *models.Ticket {
	tk := f.ticket(userID, serviceID)
	tk, err := f.svcs.Tickets.MarkPresent(f.ctx, tk.ID, userID)
	require.NoError(f.t, err)
	return tk
}
