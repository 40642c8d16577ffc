package matchmaking

import (
	"sync"

	"github.com/friendsforever/server-go/internal/realtime"
)

type Entry struct {
	UserID int64
	Conn   realtime.Conn
}

type Pair struct {
	First  Entry
	Second Entry
}

// Queue is a FIFO waiting list. Every method is safe for concurrent use.
type Queue struct {
	entries []Entry
	mu      sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends the user at the back. A user already waiting loses their
// old position.
func (q *Queue) Enqueue(userID int64, conn realtime.Conn) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(userID)
	q.entries = append(q.entries, Entry{UserID: userID, Conn: conn})
}

// Dequeue removes the user and reports whether they were waiting.
func (q *Queue) Dequeue(userID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(userID)
}

// TryPair pops the two longest-waiting entries.
func (q *Queue) TryPair() (Pair, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) < 2 {
		return Pair{}, false
	}
	pair := Pair{First: q.entries[0], Second: q.entries[1]}
	q.entries = append(q.entries[:0:0], q.entries[2:]...)
	return pair, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) Contains(userID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

func (q *Queue) removeLocked(userID int64) bool {
	for i, e := range q.entries {
		if e.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}
