package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/config"
	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/realtime"
)

// ErrNotTimed is returned by Start when the conversation is not in a state
// that runs a countdown.
var ErrNotTimed = errors.New("conversation is not in a timed state")

// Store is the slice of the conversation registry the timer drives.
type Store interface {
	StartTimer(ctx context.Context, id int64, endsAt time.Time) (*model.Conversation, error)
	MarkExtensionPending(ctx context.Context, id int64) (*model.Conversation, error)
}

type Notifier interface {
	Broadcast(roomToken string, ev realtime.Event) int
}

// Dispatcher runs fn on the caller's serialized event loop.
type Dispatcher func(fn func())

type handle struct {
	gen     uint64
	warning *time.Timer
	expiry  *time.Timer
}

func (h *handle) stop() {
	if h.warning != nil {
		h.warning.Stop()
	}
	h.expiry.Stop()
}

// Manager owns at most one countdown per room.
type Manager struct {
	store       Store
	notifier    Notifier
	dispatch    Dispatcher
	duration    time.Duration
	warningLead time.Duration
	now         func() time.Time

	handles map[string]*handle
	gen     uint64
	mu      sync.Mutex
}

func NewManager(store Store, notifier Notifier, duration, warningLead time.Duration) *Manager {
	return &Manager{
		store:       store,
		notifier:    notifier,
		dispatch:    func(fn func()) { fn() },
		duration:    duration,
		warningLead: warningLead,
		now:         time.Now,
		handles:     make(map[string]*handle),
	}
}

// SetDispatcher routes timer callbacks through d instead of running them on
// the timer goroutine.
func (m *Manager) SetDispatcher(d Dispatcher) {
	m.dispatch = d
}

// StartRound starts a countdown with the configured durations.
func (m *Manager) StartRound(ctx context.Context, roomToken string, conversationID int64) error {
	return m.Start(ctx, roomToken, conversationID, m.duration, m.warningLead)
}

// Start replaces any countdown on the room, persists the absolute end and
// status active, announces it, then schedules warning and expiry.
func (m *Manager) Start(ctx context.Context, roomToken string, conversationID int64, duration, warningLead time.Duration) error {
	m.Clear(roomToken)

	endsAt := m.now().Add(duration)
	conv, err := m.store.StartTimer(ctx, conversationID, endsAt)
	if err != nil {
		return fmt.Errorf("persist timer end: %w", err)
	}
	if conv == nil {
		return ErrNotTimed
	}

	m.notifier.Broadcast(roomToken, realtime.NewEvent(realtime.EventTimerStart, realtime.TimerStartPayload{
		ConversationID:  conversationID,
		DurationSeconds: int(duration / time.Second),
		AbsoluteEndTime: endsAt.UTC(),
	}))

	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	gen := m.gen
	h := &handle{gen: gen}
	if warningLead > 0 && warningLead < duration {
		h.warning = time.AfterFunc(duration-warningLead, func() {
			m.dispatch(func() { m.fireWarning(roomToken, conversationID, gen, warningLead) })
		})
	}
	h.expiry = time.AfterFunc(duration, func() {
		m.dispatch(func() { m.fireExpiry(roomToken, conversationID, gen) })
	})
	m.handles[roomToken] = h

	log.Debug().
		Str("roomToken", roomToken).
		Int64("conversationId", conversationID).
		Time("endsAt", endsAt).
		Msg("room timer started")

	return nil
}

// Clear cancels the room's countdown. It reports whether one was running.
func (m *Manager) Clear(roomToken string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handles[roomToken]
	if !ok {
		return false
	}
	h.stop()
	delete(m.handles, roomToken)
	return true
}

func (m *Manager) Active(roomToken string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handles[roomToken]
	return ok
}

// StopAll cancels every countdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for roomToken, h := range m.handles {
		h.stop()
		delete(m.handles, roomToken)
	}
}

func (m *Manager) current(roomToken string, gen uint64) bool {
	h, ok := m.handles[roomToken]
	return ok && h.gen == gen
}

func (m *Manager) fireWarning(roomToken string, conversationID int64, gen uint64, lead time.Duration) {
	m.mu.Lock()
	live := m.current(roomToken, gen)
	m.mu.Unlock()
	if !live {
		return
	}

	m.notifier.Broadcast(roomToken, realtime.NewEvent(realtime.EventTimerWarning, realtime.TimerWarningPayload{
		ConversationID: conversationID,
		SecondsLeft:    int(lead / time.Second),
	}))
}

func (m *Manager) fireExpiry(roomToken string, conversationID int64, gen uint64) {
	m.mu.Lock()
	if !m.current(roomToken, gen) {
		m.mu.Unlock()
		return
	}
	delete(m.handles, roomToken)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), config.EventTimeout)
	defer cancel()

	conv, err := m.store.MarkExtensionPending(ctx, conversationID)
	if err != nil {
		log.Error().Err(err).
			Int64("conversationId", conversationID).
			Msg("failed to mark conversation extension pending")
		return
	}
	if conv == nil {
		log.Debug().Int64("conversationId", conversationID).Msg("timer expired on inactive conversation")
		return
	}

	payload := realtime.ConversationPayload{ConversationID: conversationID}
	m.notifier.Broadcast(roomToken, realtime.NewEvent(realtime.EventTimerExpired, payload))
	m.notifier.Broadcast(roomToken, realtime.NewEvent(realtime.EventExtensionPrompt, payload))

	log.Info().
		Str("roomToken", roomToken).
		Int64("conversationId", conversationID).
		Msg("room timer expired")
}
