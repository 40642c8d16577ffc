package model

import (
	"time"
)

type Conversation struct {
	ID               int64              `db:"id" json:"id"`
	RoomToken        string             `db:"room_token" json:"roomToken"`
	ParticipantA     int64              `db:"participant_a" json:"participantA"`
	ParticipantB     int64              `db:"participant_b" json:"participantB"`
	Status           ConversationStatus `db:"status" json:"status"`
	ExtensionsCount  int                `db:"extensions_count" json:"extensionsCount"`
	IsFriendsForever bool               `db:"is_friends_forever" json:"isFriendsForever"`
	CurrentTimerEnd  *time.Time         `db:"current_timer_end" json:"currentTimerEnd,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID int64) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Partner returns the participant that is not userID. The caller must make
// sure userID is a participant.
func (c *Conversation) Partner(userID int64) int64 {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// CurrentRound is the extension round votes cast now belong to.
func (c *Conversation) CurrentRound() int {
	return c.ExtensionsCount + 1
}

type CreateConversationParams struct {
	RoomToken    string
	ParticipantA int64
	ParticipantB int64
}
