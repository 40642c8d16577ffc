package orchestrator

import (
	"errors"

	"github.com/rs/zerolog/log"

	apperrors "github.com/friendsforever/server-go/internal/errors"
	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/realtime"
	"github.com/friendsforever/server-go/internal/service"
)

func (o *Orchestrator) handleSendMessage(conn realtime.Conn, p realtime.SendMessagePayload) {
	ctx, cancel := eventContext()
	defer cancel()

	msg, conv, err := o.Messages.SendText(ctx, p.ConversationID, conn.UserID(), p.Content)
	if o.failed(conn, realtime.EventSendMessage, err) {
		return
	}
	o.Hub.Broadcast(conv.RoomToken, realtime.NewEvent(realtime.EventNewMessage, msg))
}

func (o *Orchestrator) handleSendVoiceNote(conn realtime.Conn, p realtime.SendVoiceNotePayload) {
	ctx, cancel := eventContext()
	defer cancel()

	msg, conv, err := o.Messages.SendVoice(ctx, p.ConversationID, conn.UserID(), p.VoiceRef, p.DurationSeconds)
	if o.failed(conn, realtime.EventSendVoiceNote, err) {
		return
	}
	o.Hub.Broadcast(conv.RoomToken, realtime.NewEvent(realtime.EventNewMessage, msg))
}

func (o *Orchestrator) handleVote(conn realtime.Conn, p realtime.ExtensionVotePayload) {
	ctx, cancel := eventContext()
	defer cancel()

	result, err := o.Votes.SubmitVote(ctx, p.ConversationID, conn.UserID(), p.Vote)
	if o.failed(conn, realtime.EventExtensionVote, err) {
		return
	}
	if result == model.ResultClosed || result == model.ResultFriendsForever {
		log.Info().
			Int64("conversationId", p.ConversationID).
			Str("result", string(result)).
			Msg("conversation left the timed cycle")
	}
}

func (o *Orchestrator) handlePhotoSubmit(conn realtime.Conn, p realtime.PhotoSubmitPayload) {
	ctx, cancel := eventContext()
	defer cancel()

	_, err := o.Photos.SubmitPhoto(ctx, p.ConversationID, conn.UserID(), p.PhotoRef)
	o.failed(conn, realtime.EventPhotoExchangeSubmit, err)
}

func (o *Orchestrator) handleRatePhoto(conn realtime.Conn, p realtime.RatePhotoPayload) {
	ctx, cancel := eventContext()
	defer cancel()

	_, err := o.Photos.SubmitRating(ctx, p.ConversationID, conn.UserID(), p.Score)
	o.failed(conn, realtime.EventRatePhoto, err)
}

// failed reports whether err ended the event. Ignored actions are dropped
// silently; anything else reaches the sender as a generic error.
func (o *Orchestrator) failed(conn realtime.Conn, eventType string, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, service.ErrIgnored) {
		log.Debug().
			Int64("userId", conn.UserID()).
			Str("eventType", eventType).
			Msg("event ignored")
		return true
	}
	logEvent := log.Error()
	if apperrors.IsAppError(err) {
		logEvent = log.Warn()
	}
	logEvent.Err(err).
		Int64("userId", conn.UserID()).
		Str("eventType", eventType).
		Str("code", string(apperrors.GetCode(err))).
		Msg("event failed")
	sendError(conn, err)
	return true
}

func sendError(conn realtime.Conn, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		conn.Send(errorEvent(appErr))
		return
	}
	conn.Send(errorEvent(apperrors.Internal("Request failed")))
}

func errorEvent(err *apperrors.AppError) realtime.Event {
	return realtime.NewEvent(realtime.EventError, realtime.ErrorPayload{
		Code:    string(err.Code),
		Message: err.Message,
	})
}
