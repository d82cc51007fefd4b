package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"queuedesk/internal/events"
	"queuedesk/internal/models"
)

// Message types pushed to viewers
const (
	TypeQueueUpdate      = "queueUpdate"
	TypeServiceUpdate    = "serviceUpdate"
	TypeCounterUpdate    = "counterUpdate"
	TypeStatisticsUpdate = "statisticsUpdate"
	TypeAuthenticated    = "authenticated"
	TypeError            = "error"
)

type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func encode(kind string, payload interface{}) ([]byte, error) {
	return json.Marshal(envelope{Type: kind, Payload: payload})
}

// Snapshotter computes the projections viewers see.
type Snapshotter interface {
	QueueStatus(ctx context.Context) (*models.QueueStatus, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	ListCounters(ctx context.Context, serviceID string) ([]models.Counter, error)
	TodayStatistics(ctx context.Context) (*models.TodayStatistics, error)
}

type projection int

const (
	projectQueue projection = iota
	projectServices
	projectCounters
	projectStatistics
)

const projectionCount = 4

var allProjections = []projection{projectQueue, projectServices, projectCounters, projectStatistics}

// projectionsFor lists what an event invalidates.
func projectionsFor(kind events.Kind) []projection {
	switch {
	case kind.IsTicket():
		return []projection{projectQueue}
	case kind == events.StatisticsUpdated:
		return []projection{projectStatistics}
	case kind == events.ServiceCreated || kind == events.ServiceDeleted:
		return []projection{projectServices, projectCounters, projectQueue, projectStatistics}
	case kind == events.CounterCreated || kind == events.CounterDeleted:
		return []projection{projectCounters, projectQueue}
	}
	return nil
}

// Broadcaster turns committed events into fresh projections for every viewer.
// Building and pushing a projection happen under that projection's lock, so
// a snapshot read later is never delivered before one read earlier.
type Broadcaster struct {
	hub     *Hub
	snap    Snapshotter
	timeout time.Duration
	logger  *slog.Logger

	locks [projectionCount]sync.Mutex
}

func NewBroadcaster(hub *Hub, snap Snapshotter, timeout time.Duration, logger *slog.Logger) *Broadcaster {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{hub: hub, snap: snap, timeout: timeout, logger: logger}
}

func (b *Broadcaster) HandleEvent(ctx context.Context, ev events.Event) {
	wanted := projectionsFor(ev.Kind)
	if len(wanted) == 0 || b.hub.Len() == 0 {
		return
	}

	// The request that committed the change may be finishing; the push must not.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	for _, p := range wanted {
		if err := b.push(ctx, p, b.hub.Broadcast); err != nil {
			b.logger.Error("Failed to build realtime projection", "event", ev.Kind, "error", err)
		}
	}
}

// SendInitial pushes every projection to a newly connected viewer.
func (b *Broadcaster) SendInitial(ctx context.Context, client *Client) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	send := func(msg []byte) { b.hub.SendTo(client, msg) }
	for _, p := range allProjections {
		if err := b.push(ctx, p, send); err != nil {
			b.logger.Error("Error sending initial data", "client_id", client.ID, "error", err)
			return
		}
	}
}

// push builds projection p and hands it to deliver while holding p's lock.
func (b *Broadcaster) push(ctx context.Context, p projection, deliver func([]byte)) error {
	b.locks[p].Lock()
	defer b.locks[p].Unlock()

	msg, err := b.build(ctx, p)
	if err != nil {
		return err
	}
	deliver(msg)
	return nil
}

func (b *Broadcaster) build(ctx context.Context, p projection) ([]byte, error) {
	switch p {
	case projectQueue:
		status, err := b.snap.QueueStatus(ctx)
		if err != nil {
			return nil, err
		}
		return encode(TypeQueueUpdate, status)
	case projectServices:
		services, err := b.snap.ListServices(ctx)
		if err != nil {
			return nil, err
		}
		if services == nil {
			services = []models.Service{}
		}
		return encode(TypeServiceUpdate, map[string]interface{}{"services": services})
	case projectCounters:
		counters, err := b.snap.ListCounters(ctx, "")
		if err != nil {
			return nil, err
		}
		if counters == nil {
			counters = []models.Counter{}
		}
		return encode(TypeCounterUpdate, map[string]interface{}{"counters": counters})
	default:
		stats, err := b.snap.TodayStatistics(ctx)
		if err != nil {
			return nil, err
		}
		return encode(TypeStatisticsUpdate, map[string]interface{}{"statistics": stats})
	}
}
