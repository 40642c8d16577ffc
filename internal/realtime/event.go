package realtime

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/model"
)

// Event is the single frame shape on the wire in both directions.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEvent(eventType string, payload interface{}) Event {
	if payload == nil {
		return Event{Type: eventType}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("eventType", eventType).Msg("failed to marshal event payload")
		return Event{Type: eventType}
	}
	return Event{Type: eventType, Data: data}
}

// Decode unmarshals the event payload into dst.
func (e Event) Decode(dst interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, dst)
}

// Inbound event names.
const (
	EventJoinQueue           = "join-queue"
	EventLeaveQueue          = "leave-queue"
	EventJoinRoom            = "join-room"
	EventSendMessage         = "send-message"
	EventSendVoiceNote       = "send-voice-note"
	EventExtensionVote       = "extension-vote"
	EventPhotoExchangeSubmit = "photo-exchange-submit"
	EventRatePhoto           = "rate-photo"
)

// Outbound event names.
const (
	EventMatched                 = "matched"
	EventNewMessage              = "new-message"
	EventTimerStart              = "timer-start"
	EventTimerWarning            = "timer-warning"
	EventTimerExpired            = "timer-expired"
	EventExtensionPrompt         = "extension-prompt"
	EventVoteReceived            = "vote-received"
	EventExtensionResult         = "extension-result"
	EventPhotoExchangeStart      = "photo-exchange-start"
	EventPhotoReceived           = "photo-received"
	EventPhotoExchangeReveal     = "photo-exchange-reveal"
	EventRatingReceived          = "rating-received"
	EventFriendsForeverConfirmed = "friends-forever-confirmed"
	EventPartnerDisconnected     = "partner-disconnected"
	EventConversationClosed      = "conversation-closed"
	EventRejoinConversation      = "rejoin-conversation"
	EventQueued                  = "queued"
	EventError                   = "error"
)

// Closure reasons carried by conversation-closed.
const (
	ReasonVotedLeave          = "voted_leave"
	ReasonPartnerDisconnected = "partner_disconnected"
)

type JoinRoomPayload struct {
	RoomToken string `json:"roomToken"`
}

type SendMessagePayload struct {
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
}

type SendVoiceNotePayload struct {
	ConversationID  int64  `json:"conversationId"`
	VoiceRef        string `json:"voiceRef"`
	DurationSeconds int    `json:"durationSeconds"`
}

type ExtensionVotePayload struct {
	ConversationID int64      `json:"conversationId"`
	Vote           model.Vote `json:"vote"`
}

type PhotoSubmitPayload struct {
	ConversationID int64  `json:"conversationId"`
	PhotoRef       string `json:"photoRef"`
}

type RatePhotoPayload struct {
	ConversationID int64 `json:"conversationId"`
	Score          int   `json:"score"`
}

type MatchedPayload struct {
	ConversationID int64         `json:"conversationId"`
	RoomToken      string        `json:"roomToken"`
	Partner        model.Profile `json:"partner"`
}

type TimerStartPayload struct {
	ConversationID  int64     `json:"conversationId"`
	DurationSeconds int       `json:"durationSeconds"`
	AbsoluteEndTime time.Time `json:"absoluteEndTime"`
}

type TimerWarningPayload struct {
	ConversationID int64 `json:"conversationId"`
	SecondsLeft    int   `json:"secondsLeft"`
}

type ConversationPayload struct {
	ConversationID int64 `json:"conversationId"`
}

type WaitingPayload struct {
	Waiting bool `json:"waiting"`
}

type ExtensionResultPayload struct {
	ConversationID int64                 `json:"conversationId"`
	Result         model.ExtensionResult `json:"result"`
}

type RevealedPhoto struct {
	UserID   int64  `json:"userId"`
	PhotoRef string `json:"photoRef"`
}

type PhotoRevealPayload struct {
	ConversationID int64           `json:"conversationId"`
	Photos         []RevealedPhoto `json:"photos"`
}

type RatingReceivedPayload struct {
	ConversationID int64 `json:"conversationId"`
	Score          int   `json:"score"`
	RaterID        int64 `json:"raterId"`
}

type ConversationClosedPayload struct {
	ConversationID int64  `json:"conversationId"`
	Reason         string `json:"reason"`
}

type RejoinPayload struct {
	ConversationID  int64                    `json:"conversationId"`
	RoomToken       string                   `json:"roomToken"`
	Status          model.ConversationStatus `json:"status"`
	PartnerID       int64                    `json:"partnerId"`
	CurrentTimerEnd *time.Time               `json:"currentTimerEnd,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
