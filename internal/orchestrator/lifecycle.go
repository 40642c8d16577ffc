package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/audit"
	"github.com/friendsforever/server-go/internal/config"
	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/realtime"
)

func eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), config.EventTimeout)
}

func (o *Orchestrator) handleConnect(conn realtime.Conn) {
	userID := conn.UserID()
	replaced := o.Presence.Register(userID, conn)

	log.Info().
		Int64("userId", userID).
		Str("connId", conn.ID()).
		Msg("client connected")

	// Rejoin after a drop, or when this connection replaces one whose
	// disconnect has not been seen yet.
	resumed := o.cancelGrace(userID)
	if !resumed && replaced == nil {
		return
	}

	ctx, cancel := eventContext()
	defer cancel()

	conv, err := o.Conversations.FindLiveForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("userId", userID).Msg("failed to load live conversation on reconnect")
		sendError(conn, err)
		return
	}
	if conv == nil {
		return
	}
	o.rejoin(conn, conv)
}

func (o *Orchestrator) rejoin(conn realtime.Conn, conv *model.Conversation) {
	o.Hub.Join(conv.RoomToken, conn)
	conn.Send(realtime.NewEvent(realtime.EventRejoinConversation, realtime.RejoinPayload{
		ConversationID:  conv.ID,
		RoomToken:       conv.RoomToken,
		Status:          conv.Status,
		PartnerID:       conv.Partner(conn.UserID()),
		CurrentTimerEnd: conv.CurrentTimerEnd,
	}))

	log.Info().
		Int64("userId", conn.UserID()).
		Int64("conversationId", conv.ID).
		Str("status", string(conv.Status)).
		Msg("client rejoined conversation")
}

func (o *Orchestrator) handleDisconnect(conn realtime.Conn) {
	userID := conn.UserID()
	o.Hub.LeaveAll(conn)

	// A newer connection for the same user keeps everything as is.
	if !o.Presence.UnregisterConn(userID, conn) {
		return
	}

	log.Info().
		Int64("userId", userID).
		Str("connId", conn.ID()).
		Msg("client disconnected")

	ctx, cancel := eventContext()
	defer cancel()

	conv, err := o.Conversations.FindLiveForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("userId", userID).Msg("failed to load live conversation on disconnect")
		return
	}
	if conv == nil {
		return
	}
	o.startGrace(userID, conv.ID)
}

func (o *Orchestrator) startGrace(userID, conversationID int64) {
	o.graceMu.Lock()
	defer o.graceMu.Unlock()

	if prev, ok := o.graces[userID]; ok {
		prev.timer.Stop()
	}
	o.graceGen++
	gen := o.graceGen
	o.graces[userID] = &graceHandle{
		gen:            gen,
		conversationID: conversationID,
		timer: time.AfterFunc(o.grace, func() {
			o.Post(func() { o.graceExpired(userID, gen) })
		}),
	}

	log.Debug().
		Int64("userId", userID).
		Int64("conversationId", conversationID).
		Dur("grace", o.grace).
		Msg("disconnect grace started")
}

// cancelGrace stops a pending grace period and reports whether one existed.
func (o *Orchestrator) cancelGrace(userID int64) bool {
	o.graceMu.Lock()
	defer o.graceMu.Unlock()

	h, ok := o.graces[userID]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(o.graces, userID)
	return true
}

func (o *Orchestrator) hasGrace(userID int64) bool {
	o.graceMu.Lock()
	defer o.graceMu.Unlock()
	_, ok := o.graces[userID]
	return ok
}

func (o *Orchestrator) graceExpired(userID int64, gen uint64) {
	o.graceMu.Lock()
	h, ok := o.graces[userID]
	if !ok || h.gen != gen {
		o.graceMu.Unlock()
		return
	}
	delete(o.graces, userID)
	o.graceMu.Unlock()

	ctx, cancel := eventContext()
	defer cancel()

	// The partner may have closed it in the meantime.
	closed, err := o.Conversations.Close(ctx, h.conversationID)
	if err != nil {
		log.Error().Err(err).
			Int64("userId", userID).
			Int64("conversationId", h.conversationID).
			Msg("failed to close conversation after grace period")
		return
	}
	if closed == nil {
		return
	}

	o.Timers.Clear(closed.RoomToken)
	o.Photos.ResetRound(closed.ID)

	o.Hub.Broadcast(closed.RoomToken, realtime.NewEvent(realtime.EventPartnerDisconnected,
		realtime.ConversationPayload{ConversationID: closed.ID}))
	o.Hub.Broadcast(closed.RoomToken, realtime.NewEvent(realtime.EventConversationClosed, realtime.ConversationClosedPayload{
		ConversationID: closed.ID,
		Reason:         realtime.ReasonPartnerDisconnected,
	}))
	o.Hub.CloseRoom(closed.RoomToken)

	audit.Log(ctx, audit.Event{
		Type:           audit.EventGraceExpired,
		UserID:         userID,
		ConversationID: closed.ID,
		Details:        map[string]interface{}{"reason": realtime.ReasonPartnerDisconnected},
	})
}
