package matchmaking

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsforever/server-go/internal/realtime/realtimetest"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	for id := int64(1); id <= 6; id++ {
		q.Enqueue(id, realtimetest.NewConn(id))
	}

	expected := [][2]int64{{1, 2}, {3, 4}, {5, 6}}
	for _, want := range expected {
		pair, ok := q.TryPair()
		require.True(t, ok)
		assert.Equal(t, want[0], pair.First.UserID)
		assert.Equal(t, want[1], pair.Second.UserID)
	}

	_, ok := q.TryPair()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_TryPairNeedsTwo(t *testing.T) {
	q := NewQueue()
	_, ok := q.TryPair()
	assert.False(t, ok)

	q.Enqueue(1, realtimetest.NewConn(1))
	_, ok = q.TryPair()
	assert.False(t, ok)
	assert.True(t, q.Contains(1), "unpaired entry stays queued")
}

func TestQueue_IdempotentEnqueue(t *testing.T) {
	q := NewQueue()
	first := realtimetest.NewConn(1)
	second := realtimetest.NewConn(1)

	q.Enqueue(1, first)
	q.Enqueue(2, realtimetest.NewConn(2))
	q.Enqueue(1, second)
	assert.Equal(t, 2, q.Len())

	pair, ok := q.TryPair()
	require.True(t, ok)
	assert.Equal(t, int64(2), pair.First.UserID, "re-enqueue moves the user to the back")
	assert.Equal(t, int64(1), pair.Second.UserID)
	assert.Same(t, second, pair.Second.Conn)

	_, ok = q.TryPair()
	assert.False(t, ok)
}

func TestQueue_Dequeue(t *testing.T) {
	q := NewQueue()
	q.Enqueue(1, realtimetest.NewConn(1))
	q.Enqueue(2, realtimetest.NewConn(2))
	q.Enqueue(3, realtimetest.NewConn(3))

	assert.True(t, q.Dequeue(2))
	assert.False(t, q.Dequeue(2))
	assert.False(t, q.Dequeue(99))

	pair, ok := q.TryPair()
	require.True(t, ok)
	assert.Equal(t, int64(1), pair.First.UserID)
	assert.Equal(t, int64(3), pair.Second.UserID)
}

func TestQueue_ConcurrentPairing(t *testing.T) {
	q := NewQueue()
	const users = 200

	var wg sync.WaitGroup
	for id := int64(1); id <= users; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			q.Enqueue(id, realtimetest.NewConn(id))
		}(id)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				pair, ok := q.TryPair()
				if !ok {
					return
				}
				mu.Lock()
				assert.False(t, seen[pair.First.UserID])
				assert.False(t, seen[pair.Second.UserID])
				seen[pair.First.UserID] = true
				seen[pair.Second.UserID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, users)
}
