package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/realtime"
	"github.com/friendsforever/server-go/internal/repository/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(map[string][]string)}
}

func (n *recordingNotifier) Broadcast(roomToken string, ev realtime.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[roomToken] = append(n.events[roomToken], ev.Type)
	return 2
}

func (n *recordingNotifier) types(roomToken string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events[roomToken]...)
}

func (n *recordingNotifier) count(roomToken, eventType string) int {
	c := 0
	for _, t := range n.types(roomToken) {
		if t == eventType {
			c++
		}
	}
	return c
}

func setup(t *testing.T) (*memory.Store, *recordingNotifier, *Manager, *model.Conversation) {
	t.Helper()
	store := memory.New()
	conv, err := store.Conversations.Create(context.Background(), model.CreateConversationParams{
		RoomToken:    "room",
		ParticipantA: 1,
		ParticipantB: 2,
	})
	require.NoError(t, err)

	notifier := newRecordingNotifier()
	m := NewManager(store.Conversations, notifier, time.Second, 0)
	t.Cleanup(m.StopAll)
	return store, notifier, m, conv
}

func TestManager_StartPersistsAndAnnounces(t *testing.T) {
	store, notifier, m, conv := setup(t)
	ctx := context.Background()

	before := time.Now()
	require.NoError(t, m.Start(ctx, "room", conv.ID, time.Minute, 10*time.Second))

	updated, err := store.Conversations.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentTimerEnd)
	assert.WithinDuration(t, before.Add(time.Minute), *updated.CurrentTimerEnd, time.Second)
	assert.Equal(t, []string{realtime.EventTimerStart}, notifier.types("room"))
	assert.True(t, m.Active("room"))
}

func TestManager_WarningThenExpiry(t *testing.T) {
	store, notifier, m, conv := setup(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx, "room", conv.ID, 120*time.Millisecond, 60*time.Millisecond))

	assert.Eventually(t, func() bool {
		return notifier.count("room", realtime.EventExtensionPrompt) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{
		realtime.EventTimerStart,
		realtime.EventTimerWarning,
		realtime.EventTimerExpired,
		realtime.EventExtensionPrompt,
	}, notifier.types("room"))

	updated, err := store.Conversations.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExtensionPending, updated.Status)
	assert.False(t, m.Active("room"))
}

func TestManager_RestartCancelsPrevious(t *testing.T) {
	_, notifier, m, conv := setup(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx, "room", conv.ID, 50*time.Millisecond, 0))
	require.NoError(t, m.Start(ctx, "room", conv.ID, time.Hour, 0))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, notifier.count("room", realtime.EventTimerExpired))
	assert.Equal(t, 2, notifier.count("room", realtime.EventTimerStart))
	assert.True(t, m.Active("room"))
}

func TestManager_StaleCallbackIgnored(t *testing.T) {
	_, notifier, m, conv := setup(t)
	ctx := context.Background()

	var queued []func()
	var mu sync.Mutex
	m.SetDispatcher(func(fn func()) {
		mu.Lock()
		queued = append(queued, fn)
		mu.Unlock()
	})

	require.NoError(t, m.Start(ctx, "room", conv.ID, 20*time.Millisecond, 0))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(queued) == 1
	}, time.Second, 5*time.Millisecond)

	// The first expiry is already in the event queue when the room restarts.
	require.NoError(t, m.Start(ctx, "room", conv.ID, time.Hour, 0))
	mu.Lock()
	queued[0]()
	mu.Unlock()

	assert.Equal(t, 0, notifier.count("room", realtime.EventTimerExpired))
	assert.True(t, m.Active("room"))
}

func TestManager_Clear(t *testing.T) {
	_, notifier, m, conv := setup(t)
	ctx := context.Background()

	assert.False(t, m.Clear("room"))
	require.NoError(t, m.Start(ctx, "room", conv.ID, 40*time.Millisecond, 0))
	assert.True(t, m.Clear("room"))

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, notifier.count("room", realtime.EventTimerExpired))
}

func TestManager_ExpiryOnClosedConversation(t *testing.T) {
	store, notifier, m, conv := setup(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx, "room", conv.ID, 40*time.Millisecond, 0))
	store.SetStatus(conv.ID, model.StatusClosed)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, notifier.count("room", realtime.EventTimerExpired))
	assert.Equal(t, 0, notifier.count("room", realtime.EventExtensionPrompt))
}

func TestManager_StartRejectsTerminalState(t *testing.T) {
	store, notifier, m, conv := setup(t)
	store.SetStatus(conv.ID, model.StatusFriendsForever)

	err := m.StartRound(context.Background(), "room", conv.ID)
	assert.ErrorIs(t, err, ErrNotTimed)
	assert.Empty(t, notifier.types("room"))
	assert.False(t, m.Active("room"))
}

func TestManager_StartStoreFailure(t *testing.T) {
	store, _, m, conv := setup(t)
	store.FailOn("conversations", true)

	err := m.StartRound(context.Background(), "room", conv.ID)
	assert.ErrorIs(t, err, memory.ErrFailure)
	assert.False(t, m.Active("room"))
}
