package hub

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/command-center/internal/model"
)

// fakeConn records written frames and can be told to fail.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	failWith error
	closed   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newTestHub() *Hub {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	h := newTestHub()

	a, b := &fakeConn{}, &fakeConn{}
	h.Register(a)
	h.Register(b)

	n := model.NewNotification(model.SourceSlack, "acme", "C1:1.0")
	h.SendNotification(n)

	require.Equal(t, 1, a.frameCount())
	require.Equal(t, 1, b.frameCount())

	var event model.Event
	require.NoError(t, json.Unmarshal(a.frames[0], &event))
	assert.Equal(t, model.EventNewNotification, event.Event)
}

func TestBroadcastEvictsDeadConnections(t *testing.T) {
	h := newTestHub()

	healthy := &fakeConn{}
	dead := &fakeConn{failWith: errors.New("broken pipe")}
	h.Register(healthy)
	h.Register(dead)
	require.Equal(t, 2, h.Count())

	h.SendError("first")
	assert.Equal(t, 1, h.Count(), "failed connection is removed")
	assert.True(t, dead.closed)

	// The evicted connection never sees later events.
	h.SendError("second")
	assert.Equal(t, 2, healthy.frameCount())
	assert.Equal(t, 0, dead.frameCount())
}

func TestSendToTargetsSingleConnection(t *testing.T) {
	h := newTestHub()

	a, b := &fakeConn{}, &fakeConn{}
	h.Register(a)
	h.Register(b)

	err := h.SendTo(a, model.InitialLoadEvent(nil))
	require.NoError(t, err)

	assert.Equal(t, 1, a.frameCount())
	assert.Equal(t, 0, b.frameCount())
}

func TestUnregisterStopsDelivery(t *testing.T) {
	h := newTestHub()

	conn := &fakeConn{}
	h.Register(conn)
	h.Unregister(conn)

	h.SendConnectionStatus(model.SourceGmail, "work@example.com", false)
	assert.Equal(t, 0, conn.frameCount())
	assert.Equal(t, 0, h.Count())
}
