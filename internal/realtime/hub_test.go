package realtime

import (
	"testing"

	"queuedesk/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	before := testutil.ToFloat64(metrics.ConnectedViewers)
	a := NewClient("a", 4)
	b := NewClient("b", 4)
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.Len())
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.ConnectedViewers))

	hub.Broadcast([]byte("hello"))
	assert.Equal(t, "hello", string(<-a.Send))
	assert.Equal(t, "hello", string(<-b.Send))

	hub.Unregister(a)
	hub.Unregister(a)
	_, open := <-a.Send
	assert.False(t, open)
	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ConnectedViewers))

	assert.False(t, hub.SendTo(a, []byte("late")))
	assert.True(t, hub.SendTo(b, []byte("direct")))
	assert.Equal(t, "direct", string(<-b.Send))
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	slow := NewClient("slow", 1)
	fast := NewClient("fast", 4)
	hub.Register(slow)
	hub.Register(fast)
	before := testutil.ToFloat64(metrics.DroppedMessages)

	hub.Broadcast([]byte("1"))
	hub.Broadcast([]byte("2"))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DroppedMessages))
	assert.Len(t, slow.Send, 1)
	assert.Len(t, fast.Send, 2)
}

func TestHubClose(t *testing.T) {
	hub := NewHub(nil)
	c := NewClient("c", 1)
	hub.Register(c)

	hub.Close()
	assert.Zero(t, hub.Len())
	_, open := <-c.Send
	require.False(t, open)

	// Unregister after Close must not double-close.
	hub.Unregister(c)
}

func TestHubsShareViewerGauge(t *testing.T) {
	before := testutil.ToFloat64(metrics.ConnectedViewers)
	first := NewHub(nil)
	second := NewHub(nil)
	first.Register(NewClient("a", 1))
	first.Register(NewClient("b", 1))
	second.Register(NewClient("a", 1))
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.ConnectedViewers))

	first.Close()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ConnectedViewers))

	second.Close()
	assert.Equal(t, before, testutil.ToFloat64(metrics.ConnectedViewers))
}

func TestHubRegisterReplacesSameID(t *testing.T) {
	hub := NewHub(nil)
	before := testutil.ToFloat64(metrics.ConnectedViewers)
	old := NewClient("v", 1)
	fresh := NewClient("v", 1)
	hub.Register(old)
	hub.Register(old)
	hub.Register(fresh)

	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ConnectedViewers))
	_, open := <-old.Send
	assert.False(t, open)

	// The replaced client no longer owns the ID.
	hub.Unregister(old)
	assert.Equal(t, 1, hub.Len())
	hub.Unregister(fresh)
	assert.Equal(t, before, testutil.ToFloat64(metrics.ConnectedViewers))
}
