package presence

import (
	"sync"

	"github.com/friendsforever/server-go/internal/realtime"
)

// Dequeuer is the part of the matchmaking queue presence needs.
type Dequeuer interface {
	Dequeue(userID int64) bool
}

// Tracker maps each user to their newest connection.
type Tracker struct {
	conns map[int64]realtime.Conn
	queue Dequeuer
	mu    sync.RWMutex
}

func NewTracker(queue Dequeuer) *Tracker {
	return &Tracker{
		conns: make(map[int64]realtime.Conn),
		queue: queue,
	}
}

// Register makes conn the user's current connection and returns the one it
// replaced, if any.
func (t *Tracker) Register(userID int64, conn realtime.Conn) realtime.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.conns[userID]
	t.conns[userID] = conn
	return prev
}

// Unregister drops the user's mapping and takes them out of matchmaking.
func (t *Tracker) Unregister(userID int64) {
	t.mu.Lock()
	delete(t.conns, userID)
	t.mu.Unlock()

	t.queue.Dequeue(userID)
}

// UnregisterConn behaves like Unregister only while conn is still the
// user's current connection. It reports whether it did anything.
func (t *Tracker) UnregisterConn(userID int64, conn realtime.Conn) bool {
	t.mu.Lock()
	if t.conns[userID] != conn {
		t.mu.Unlock()
		return false
	}
	delete(t.conns, userID)
	t.mu.Unlock()

	t.queue.Dequeue(userID)
	return true
}

func (t *Tracker) Lookup(userID int64) (realtime.Conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	conn, ok := t.conns[userID]
	return conn, ok
}

func (t *Tracker) Online() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}
