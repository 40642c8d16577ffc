package service

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/realtime"
	"github.com/friendsforever/server-go/internal/repository/memory"
)

type fakeNotifier struct {
	mu     sync.Mutex
	rooms  map[string][]realtime.Event
	direct map[int64][]realtime.Event
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		rooms:  make(map[string][]realtime.Event),
		direct: make(map[int64][]realtime.Event),
	}
}

func (n *fakeNotifier) Broadcast(roomToken string, ev realtime.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms[roomToken] = append(n.rooms[roomToken], ev)
	return 2
}

func (n *fakeNotifier) SendToUser(userID int64, ev realtime.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.direct[userID] = append(n.direct[userID], ev)
	return true
}

func (n *fakeNotifier) roomTypes(roomToken string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, ev := range n.rooms[roomToken] {
		out = append(out, ev.Type)
	}
	return out
}

func (n *fakeNotifier) roomEvent(roomToken, eventType string) (realtime.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ev := range n.rooms[roomToken] {
		if ev.Type == eventType {
			return ev, true
		}
	}
	return realtime.Event{}, false
}

func (n *fakeNotifier) lastRoomEvent(roomToken, eventType string) (realtime.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	events := n.rooms[roomToken]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return events[i], true
		}
	}
	return realtime.Event{}, false
}

func (n *fakeNotifier) directTypes(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, ev := range n.direct[userID] {
		out = append(out, ev.Type)
	}
	return out
}

type fakeTimers struct {
	mu      sync.Mutex
	started []string
	cleared []string
	err     error
}

func (f *fakeTimers) StartRound(_ context.Context, roomToken string, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, roomToken)
	return nil
}

func (f *fakeTimers) Clear(roomToken string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, roomToken)
	return true
}

type fixture struct {
	store         *memory.Store
	redis         *goredis.Client
	notifier      *fakeNotifier
	timers        *fakeTimers
	conversations *ConversationService
	points        *PointsService
	photos        *PhotoCoordinator
	votes         *VoteResolver
	rules         Rules
	alice, bob    *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := memory.New()
	f := &fixture{
		store:    store,
		redis:    rdb,
		notifier: newFakeNotifier(),
		timers:   &fakeTimers{},
		rules:    DefaultRules(),
	}
	f.conversations = NewConversationService(store.Conversations)
	f.points = NewPointsService(store.Points, rdb)
	f.photos = NewPhotoCoordinator(f.conversations, store.Photos, store.Ratings, f.points, f.notifier, f.timers, f.rules)
	f.votes = NewVoteResolver(f.conversations, store.Votes, f.points, f.notifier, f.timers, f.photos, f.rules)

	ctx := context.Background()
	var err error
	f.alice, err = store.Users.Create(ctx, model.CreateUserParams{DisplayName: "alice"})
	require.NoError(t, err)
	f.bob, err = store.Users.Create(ctx, model.CreateUserParams{DisplayName: "bob"})
	require.NoError(t, err)
	return f
}

// pendingConversation returns a conversation waiting for extension votes.
func (f *fixture) pendingConversation(t *testing.T) *model.Conversation {
	t.Helper()
	ctx := context.Background()
	conv, err := f.conversations.Create(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	conv, err = f.conversations.MarkExtensionPending(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv
}

// photoConversation returns a conversation in the photo exchange.
func (f *fixture) photoConversation(t *testing.T) *model.Conversation {
	t.Helper()
	conv := f.pendingConversation(t)
	conv, err := f.conversations.Extend(context.Background(), conv.ID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv
}

func (f *fixture) userPoints(t *testing.T, id int64) int {
	t.Helper()
	u, err := f.store.Users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u.Points
}
