package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/matchmaking"
	"github.com/friendsforever/server-go/internal/presence"
	"github.com/friendsforever/server-go/internal/realtime"
	"github.com/friendsforever/server-go/internal/service"
	"github.com/friendsforever/server-go/internal/timer"
)

const eventBufferSize = 1024

type Deps struct {
	Queue         *matchmaking.Queue
	Presence      *presence.Tracker
	Hub           *realtime.Hub
	Timers        *timer.Manager
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Profiles      *service.ProfileService
	Points        service.PointsAwarder
	Votes         *service.VoteResolver
	Photos        *service.PhotoCoordinator
	Rules         service.Rules
}

type graceHandle struct {
	gen            uint64
	conversationID int64
	timer          *time.Timer
}

// Orchestrator serializes every client event, timer callback and grace
// expiry onto one goroutine.
type Orchestrator struct {
	Deps
	grace time.Duration

	events chan func()
	done   chan struct{}

	graces   map[int64]*graceHandle
	graceGen uint64
	graceMu  sync.Mutex
}

func New(deps Deps, grace time.Duration) *Orchestrator {
	o := &Orchestrator{
		Deps:   deps,
		grace:  grace,
		events: make(chan func(), eventBufferSize),
		done:   make(chan struct{}),
		graces: make(map[int64]*graceHandle),
	}
	deps.Timers.SetDispatcher(func(fn func()) { o.Post(fn) })
	return o
}

// Run drains the event loop until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.done)
	log.Info().Msg("orchestrator started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("orchestrator stopped")
			return
		case fn := <-o.events:
			o.safely(fn)
		}
	}
}

// Post queues fn on the event loop. It reports false once the loop stopped.
func (o *Orchestrator) Post(fn func()) bool {
	select {
	case o.events <- fn:
		return true
	case <-o.done:
		return false
	}
}

// Call runs fn on the event loop and waits for it to finish.
func (o *Orchestrator) Call(fn func()) bool {
	finished := make(chan struct{})
	if !o.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-o.done:
		return false
	}
}

// Shutdown cancels every room timer and grace period.
func (o *Orchestrator) Shutdown() {
	o.Timers.StopAll()

	o.graceMu.Lock()
	defer o.graceMu.Unlock()
	for userID, h := range o.graces {
		h.timer.Stop()
		delete(o.graces, userID)
	}
}

func (o *Orchestrator) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered panic in event loop")
		}
	}()
	fn()
}

// Connect registers a new connection. It must be called before the
// connection's first event is handled.
func (o *Orchestrator) Connect(conn realtime.Conn) {
	o.Post(func() { o.handleConnect(conn) })
}

// HandleEvent implements realtime.Handler.
func (o *Orchestrator) HandleEvent(conn realtime.Conn, ev realtime.Event) {
	o.Post(func() { o.dispatch(conn, ev) })
}

// Disconnected implements realtime.Handler.
func (o *Orchestrator) Disconnected(conn realtime.Conn) {
	o.Post(func() { o.handleDisconnect(conn) })
}

func (o *Orchestrator) dispatch(conn realtime.Conn, ev realtime.Event) {
	switch ev.Type {
	case realtime.EventJoinQueue:
		o.handleJoinQueue(conn)
	case realtime.EventLeaveQueue:
		o.handleLeaveQueue(conn)
	case realtime.EventJoinRoom:
		var p realtime.JoinRoomPayload
		if decode(conn, ev, &p) {
			o.handleJoinRoom(conn, p)
		}
	case realtime.EventSendMessage:
		var p realtime.SendMessagePayload
		if decode(conn, ev, &p) {
			o.handleSendMessage(conn, p)
		}
	case realtime.EventSendVoiceNote:
		var p realtime.SendVoiceNotePayload
		if decode(conn, ev, &p) {
			o.handleSendVoiceNote(conn, p)
		}
	case realtime.EventExtensionVote:
		var p realtime.ExtensionVotePayload
		if decode(conn, ev, &p) {
			o.handleVote(conn, p)
		}
	case realtime.EventPhotoExchangeSubmit:
		var p realtime.PhotoSubmitPayload
		if decode(conn, ev, &p) {
			o.handlePhotoSubmit(conn, p)
		}
	case realtime.EventRatePhoto:
		var p realtime.RatePhotoPayload
		if decode(conn, ev, &p) {
			o.handleRatePhoto(conn, p)
		}
	default:
		log.Debug().
			Int64("userId", conn.UserID()).
			Str("eventType", ev.Type).
			Msg("ignoring unknown event")
	}
}

func decode(conn realtime.Conn, ev realtime.Event, dst interface{}) bool {
	if err := ev.Decode(dst); err != nil {
		log.Debug().Err(err).
			Int64("userId", conn.UserID()).
			Str("eventType", ev.Type).
			Msg("ignoring malformed payload")
		return false
	}
	return true
}
