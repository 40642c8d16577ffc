package model

import "time"

type ExtensionVote struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversationId"`
	UserID         int64     `db:"user_id" json:"userId"`
	Round          int       `db:"round" json:"round"`
	Vote           Vote      `db:"vote" json:"vote"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

type PhotoSubmission struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversationId"`
	UserID         int64     `db:"user_id" json:"userId"`
	PhotoRef       string    `db:"photo_ref" json:"photoRef"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

type Rating struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversationId"`
	RaterID        int64     `db:"rater_id" json:"raterId"`
	RatedUserID    int64     `db:"rated_user_id" json:"ratedUserId"`
	Score          int       `db:"score" json:"score"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

type PointsLogEntry struct {
	ID             int64       `db:"id" json:"id"`
	UserID         int64       `db:"user_id" json:"userId"`
	ConversationID *int64      `db:"conversation_id" json:"conversationId,omitempty"`
	EventKind      PointsEvent `db:"event_kind" json:"eventKind"`
	Points         int         `db:"points" json:"points"`
	Description    string      `db:"description" json:"description"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
}

type AwardPointsParams struct {
	UserID         int64
	ConversationID *int64
	EventKind      PointsEvent
	Points         int
	Description    string
}

type LeaderboardEntry struct {
	UserID int64 `json:"userId"`
	Points int   `json:"points"`
}

type CreateRatingParams struct {
	ConversationID int64
	RaterID        int64
	RatedUserID    int64
	Score          int
}
