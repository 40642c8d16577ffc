package model

import (
	"time"
)

type Message struct {
	ID                   int64       `db:"id" json:"id"`
	ConversationID       int64       `db:"conversation_id" json:"conversationId"`
	SenderID             *int64      `db:"sender_id" json:"senderId,omitempty"`
	Type                 MessageType `db:"type" json:"type"`
	Content              *string     `db:"content" json:"content,omitempty"`
	VoiceRef             *string     `db:"voice_ref" json:"voiceRef,omitempty"`
	VoiceDurationSeconds *int        `db:"voice_duration_seconds" json:"voiceDurationSeconds,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"createdAt"`
}

type CreateMessageParams struct {
	ConversationID       int64
	SenderID             *int64
	Type                 MessageType
	Content              *string
	VoiceRef             *string
	VoiceDurationSeconds *int
}
