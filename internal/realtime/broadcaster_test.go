package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"queuedesk/internal/events"
	"queuedesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshots struct {
	failQueue bool
}

func (f *fakeSnapshots) QueueStatus(context.Context) (*models.QueueStatus, error) {
	if f.failQueue {
		return nil, errors.New("store down")
	}
	return &models.QueueStatus{
		VirtualTickets:  []models.Ticket{{ID: "t1", TicketNumber: "PA250314001"}},
		PhysicalTickets: []models.Ticket{},
		CurrentServing:  map[string]models.Ticket{},
	}, nil
}

func (f *fakeSnapshots) ListServices(context.Context) ([]models.Service, error) {
	return []models.Service{{ID: "s1", Name: "Payments"}}, nil
}

func (f *fakeSnapshots) ListCounters(context.Context, string) ([]models.Counter, error) {
	return nil, nil
}

func (f *fakeSnapshots) TodayStatistics(context.Context) (*models.TodayStatistics, error) {
	return &models.TodayStatistics{TotalServedToday: 3}, nil
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func drain(t *testing.T, c *Client) []received {
	t.Helper()
	var out []received
	for {
		select {
		case raw := <-c.Send:
			var msg received
			require.NoError(t, json.Unmarshal(raw, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func types(msgs []received) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func TestBroadcasterProjectionsPerEvent(t *testing.T) {
	hub := NewHub(nil)
	viewer := NewClient("v", 16)
	hub.Register(viewer)
	b := NewBroadcaster(hub, &fakeSnapshots{}, 0, nil)
	ctx := context.Background()

	cases := []struct {
		kind events.Kind
		want []string
	}{
		{events.TicketCreated, []string{TypeQueueUpdate}},
		{events.TicketServed, []string{TypeQueueUpdate}},
		{events.StatisticsUpdated, []string{TypeStatisticsUpdate}},
		{events.ServiceDeleted, []string{TypeServiceUpdate, TypeCounterUpdate, TypeQueueUpdate, TypeStatisticsUpdate}},
		{events.CounterCreated, []string{TypeCounterUpdate, TypeQueueUpdate}},
	}
	for _, tc := range cases {
		b.HandleEvent(ctx, events.Event{Kind: tc.kind})
		assert.Equal(t, tc.want, types(drain(t, viewer)), tc.kind)
	}
}

func TestBroadcasterPayloadShapes(t *testing.T) {
	hub := NewHub(nil)
	viewer := NewClient("v", 16)
	hub.Register(viewer)
	b := NewBroadcaster(hub, &fakeSnapshots{}, 0, nil)

	b.SendInitial(context.Background(), viewer)
	msgs := drain(t, viewer)
	require.Equal(t, []string{TypeQueueUpdate, TypeServiceUpdate, TypeCounterUpdate, TypeStatisticsUpdate}, types(msgs))

	assert.Contains(t, string(msgs[0].Payload), `"virtualTickets"`)
	assert.JSONEq(t, `{"services":[{"id":"s1","name":"Payments","createdAt":"0001-01-01T00:00:00Z"}]}`, string(msgs[1].Payload))
	assert.JSONEq(t, `{"counters":[]}`, string(msgs[2].Payload))
	assert.Contains(t, string(msgs[3].Payload), `"totalServedToday":3`)
}

func TestBroadcasterSkipsFailedProjection(t *testing.T) {
	hub := NewHub(nil)
	viewer := NewClient("v", 16)
	hub.Register(viewer)
	b := NewBroadcaster(hub, &fakeSnapshots{failQueue: true}, 0, nil)

	b.HandleEvent(context.Background(), events.Event{Kind: events.CounterDeleted})
	assert.Equal(t, []string{TypeCounterUpdate}, types(drain(t, viewer)))
}

// orderedSnapshots holds the first queue read until released, then serves a
// newer state to every later read.
type orderedSnapshots struct {
	fakeSnapshots

	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func newOrderedSnapshots() *orderedSnapshots {
	return &orderedSnapshots{entered: make(chan struct{}), release: make(chan struct{})}
}

func (o *orderedSnapshots) QueueStatus(context.Context) (*models.QueueStatus, error) {
	o.mu.Lock()
	o.calls++
	first := o.calls == 1
	o.mu.Unlock()

	status := &models.QueueStatus{
		VirtualTickets:  []models.Ticket{},
		PhysicalTickets: []models.Ticket{},
		CurrentServing:  map[string]models.Ticket{},
	}
	if first {
		close(o.entered)
		<-o.release
		return status, nil
	}
	status.VirtualTickets = []models.Ticket{{ID: "t1", TicketNumber: "PA250314001"}}
	return status, nil
}

func (o *orderedSnapshots) queueCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func lastQueueUpdate(t *testing.T, msgs []received) models.QueueStatus {
	t.Helper()
	var status models.QueueStatus
	found := false
	for _, m := range msgs {
		if m.Type == TypeQueueUpdate {
			require.NoError(t, json.Unmarshal(m.Payload, &status))
			found = true
		}
	}
	require.True(t, found, "no queueUpdate delivered")
	return status
}

func TestBroadcasterDeliversQueueSnapshotsInReadOrder(t *testing.T) {
	hub := NewHub(nil)
	viewer := NewClient("v", 16)
	hub.Register(viewer)
	snap := newOrderedSnapshots()
	b := NewBroadcaster(hub, snap, time.Second, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.HandleEvent(ctx, events.Event{Kind: events.TicketCreated})
	}()
	<-snap.entered
	go func() {
		defer wg.Done()
		b.HandleEvent(ctx, events.Event{Kind: events.TicketCalled})
	}()

	// The second publisher must wait for the first to deliver.
	assert.Never(t, func() bool { return snap.queueCalls() == 2 }, 50*time.Millisecond, 5*time.Millisecond)
	close(snap.release)
	wg.Wait()

	msgs := drain(t, viewer)
	require.Len(t, msgs, 2)
	assert.Len(t, lastQueueUpdate(t, msgs).VirtualTickets, 1)
}

func TestBroadcasterInitialSnapshotDoesNotOverwriteNewerBroadcast(t *testing.T) {
	hub := NewHub(nil)
	viewer := NewClient("v", 16)
	hub.Register(viewer)
	snap := newOrderedSnapshots()
	b := NewBroadcaster(hub, snap, time.Second, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.SendInitial(ctx, viewer)
	}()
	<-snap.entered
	go func() {
		defer wg.Done()
		b.HandleEvent(ctx, events.Event{Kind: events.TicketCreated})
	}()

	assert.Never(t, func() bool { return snap.queueCalls() == 2 }, 50*time.Millisecond, 5*time.Millisecond)
	close(snap.release)
	wg.Wait()

	msgs := drain(t, viewer)
	assert.Len(t, msgs, 5)
	assert.Len(t, lastQueueUpdate(t, msgs).VirtualTickets, 1)
}
