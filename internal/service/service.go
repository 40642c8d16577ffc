package service

import (
	"context"
	"errors"

	"github.com/friendsforever/server-go/internal/config"
	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/realtime"
)

// ErrIgnored marks an action dropped without feedback: the caller is not a
// participant, the conversation is gone, or it is in the wrong state.
var ErrIgnored = errors.New("action ignored")

type Notifier interface {
	Broadcast(roomToken string, ev realtime.Event) int
	SendToUser(userID int64, ev realtime.Event) bool
}

type RoomTimers interface {
	StartRound(ctx context.Context, roomToken string, conversationID int64) error
	Clear(roomToken string) bool
}

// PointsAwarder credits points. Failures are logged, never returned.
type PointsAwarder interface {
	Award(ctx context.Context, userID, conversationID int64, kind model.PointsEvent, points int, description string)
}

// Rules holds the point values and thresholds of the extension ritual.
type Rules struct {
	ParticipationPoints  int
	ExtensionPoints      int
	StreakThreshold      int
	StreakBonusPoints    int
	FriendsForeverPoints int
	RatingPointsPerStar  int
}

func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		ParticipationPoints:  cfg.ParticipationPoints,
		ExtensionPoints:      cfg.ExtensionPoints,
		StreakThreshold:      cfg.StreakThreshold,
		StreakBonusPoints:    cfg.StreakBonusPoints,
		FriendsForeverPoints: cfg.FriendsForeverPoints,
		RatingPointsPerStar:  cfg.RatingPointsPerStar,
	}
}

func DefaultRules() Rules {
	return Rules{
		ParticipationPoints:  10,
		ExtensionPoints:      15,
		StreakThreshold:      3,
		StreakBonusPoints:    10,
		FriendsForeverPoints: 50,
		RatingPointsPerStar:  5,
	}
}
