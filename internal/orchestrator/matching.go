package orchestrator

import (
	"github.com/rs/zerolog/log"

	apperrors "github.com/friendsforever/server-go/internal/errors"
	"github.com/friendsforever/server-go/internal/matchmaking"
	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/realtime"
)

func (o *Orchestrator) handleJoinQueue(conn realtime.Conn) {
	userID := conn.UserID()

	ctx, cancel := eventContext()
	defer cancel()

	// One timed conversation per user. Friends forever rooms stay open
	// alongside new matches.
	live, err := o.Conversations.FindLiveForUser(ctx, userID)
	if err != nil {
		sendError(conn, err)
		return
	}
	if live != nil && live.Status.HasTimer() {
		conn.Send(errorEvent(apperrors.AlreadyInConversation()))
		return
	}

	o.Queue.Enqueue(userID, conn)
	conn.Send(realtime.NewEvent(realtime.EventQueued, realtime.WaitingPayload{Waiting: true}))

	log.Debug().Int64("userId", userID).Int("queueLength", o.Queue.Len()).Msg("user queued")

	pair, ok := o.Queue.TryPair()
	if !ok {
		return
	}
	o.startConversation(conn, pair)
}

func (o *Orchestrator) startConversation(initiator realtime.Conn, pair matchmaking.Pair) {
	ctx, cancel := eventContext()
	defer cancel()

	a, b := o.current(pair.First), o.current(pair.Second)
	conv, err := o.Conversations.Create(ctx, a.UserID, b.UserID)
	if err != nil {
		log.Error().Err(err).
			Int64("userA", a.UserID).
			Int64("userB", b.UserID).
			Msg("failed to create conversation")
		for _, e := range []matchmaking.Entry{a, b} {
			if e.Conn != nil && e.Conn.Alive() {
				o.Queue.Enqueue(e.UserID, e.Conn)
			}
		}
		sendError(initiator, err)
		return
	}

	profileA, err := o.Profiles.MinimalProfile(ctx, a.UserID)
	if err != nil {
		log.Warn().Err(err).Int64("userId", a.UserID).Msg("failed to load partner profile")
	}
	profileB, err := o.Profiles.MinimalProfile(ctx, b.UserID)
	if err != nil {
		log.Warn().Err(err).Int64("userId", b.UserID).Msg("failed to load partner profile")
	}

	o.Hub.Join(conv.RoomToken, a.Conn)
	o.Hub.Join(conv.RoomToken, b.Conn)

	o.Points.Award(ctx, a.UserID, conv.ID, model.PointsEventParticipation, o.Rules.ParticipationPoints, "matched into a conversation")
	o.Points.Award(ctx, b.UserID, conv.ID, model.PointsEventParticipation, o.Rules.ParticipationPoints, "matched into a conversation")

	if _, err := o.Messages.CreateGreeting(ctx, conv.ID); err != nil {
		log.Error().Err(err).Int64("conversationId", conv.ID).Msg("failed to create greeting")
	}

	sendIfLive(a.Conn, realtime.NewEvent(realtime.EventMatched, realtime.MatchedPayload{
		ConversationID: conv.ID,
		RoomToken:      conv.RoomToken,
		Partner:        profileB,
	}))
	sendIfLive(b.Conn, realtime.NewEvent(realtime.EventMatched, realtime.MatchedPayload{
		ConversationID: conv.ID,
		RoomToken:      conv.RoomToken,
		Partner:        profileA,
	}))

	if err := o.Timers.StartRound(ctx, conv.RoomToken, conv.ID); err != nil {
		log.Error().Err(err).Int64("conversationId", conv.ID).Msg("failed to start room timer")
	}
}

// current swaps the queued connection for the one presence holds now. A tab
// opened while the user waited replaces the connection the queue captured.
func (o *Orchestrator) current(e matchmaking.Entry) matchmaking.Entry {
	if conn, ok := o.Presence.Lookup(e.UserID); ok {
		e.Conn = conn
	}
	return e
}

func (o *Orchestrator) handleLeaveQueue(conn realtime.Conn) {
	if o.Queue.Dequeue(conn.UserID()) {
		log.Debug().Int64("userId", conn.UserID()).Msg("user left queue")
	}
}

func (o *Orchestrator) handleJoinRoom(conn realtime.Conn, p realtime.JoinRoomPayload) {
	ctx, cancel := eventContext()
	defer cancel()

	conv, err := o.Conversations.GetByRoomToken(ctx, p.RoomToken)
	if err != nil {
		sendError(conn, err)
		return
	}
	if conv == nil || !conv.HasParticipant(conn.UserID()) || !conv.Status.IsLive() {
		return
	}
	o.rejoin(conn, conv)
}

func sendIfLive(conn realtime.Conn, ev realtime.Event) {
	if conn != nil && conn.Alive() {
		conn.Send(ev)
	}
}
