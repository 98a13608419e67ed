package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cardforge/cardforge-api/internal/events"
)

const (
	readLimit    = 8 << 10
	readDeadline = 60 * time.Second
	pingInterval = 25 * time.Second
)

// userConn wraps a single websocket connection for one authenticated user.
// All writes are serialized through writeMu; the read loop owns all reads.
type userConn struct {
	userID uuid.UUID
	conn   *websocket.Conn

	writeMu sync.Mutex

	// pending maps event IDs to waiters resolved when the client acks.
	pendingMu sync.Mutex
	pending   map[uint64]chan struct{}
	nextEvent uint64

	closed    chan struct{}
	closeOnce sync.Once
}

func newUserConn(userID uuid.UUID, conn *websocket.Conn) *userConn {
	return &userConn{
		userID:  userID,
		conn:    conn,
		pending: make(map[uint64]chan struct{}),
		closed:  make(chan struct{}),
	}
}

// nextEventID returns the next per-connection event sequence number. Callers
// must hold writeMu so IDs are assigned in the same order frames hit the
// wire.
func (c *userConn) nextEventID() uint64 {
	c.nextEvent++
	return c.nextEvent
}

// registerAck installs a waiter for the given event ID. The returned channel
// is closed when the client acknowledges the event.
func (c *userConn) registerAck(eventID uint64) chan struct{} {
	ch := make(chan struct{})
	c.pendingMu.Lock()
	c.pending[eventID] = ch
	c.pendingMu.Unlock()
	return ch
}

// resolveAck releases the waiter for eventID, if any. Unknown or duplicate
// acks are ignored.
func (c *userConn) resolveAck(eventID uint64) {
	c.pendingMu.Lock()
	ch, ok := c.pending[eventID]
	if ok {
		delete(c.pending, eventID)
	}
	c.pendingMu.Unlock()
	if ok {
		close(ch)
	}
}

// dropAck removes a waiter without resolving it, used when a delivery times
// out so the map does not accumulate dead entries.
func (c *userConn) dropAck(eventID uint64) {
	c.pendingMu.Lock()
	delete(c.pending, eventID)
	c.pendingMu.Unlock()
}

// writeFrame sends one outbound frame under the write lock with a bounded
// deadline.
func (c *userConn) writeFrame(frame events.OutboundFrame, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(frame)
}

// close tears down the underlying socket exactly once. Waiters blocked on
// acknowledgement observe the closed channel instead of hanging until their
// timeout.
func (c *userConn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.Close()
		c.writeMu.Unlock()
	})
}
