package service

import (
	"context"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/audit"
	apperrors "github.com/friendsforever/server-go/internal/errors"
	"github.com/friendsforever/server-go/internal/model"
	redisclient "github.com/friendsforever/server-go/internal/redis"
	"github.com/friendsforever/server-go/internal/repository"
)

// PointsService is the ledger adapter. The ledger row and user total are
// authoritative; the Redis leaderboard is a best effort mirror.
type PointsService struct {
	repo  repository.PointsRepository
	redis *goredis.Client
}

func NewPointsService(repo repository.PointsRepository, redis *goredis.Client) *PointsService {
	return &PointsService{repo: repo, redis: redis}
}

func (s *PointsService) Award(ctx context.Context, userID, conversationID int64, kind model.PointsEvent, points int, description string) {
	params := model.AwardPointsParams{
		UserID:      userID,
		EventKind:   kind,
		Points:      points,
		Description: description,
	}
	if conversationID != 0 {
		params.ConversationID = &conversationID
	}

	if _, err := s.repo.Award(ctx, params); err != nil {
		log.Error().Err(err).
			Int64("userId", userID).
			Int64("conversationId", conversationID).
			Str("eventKind", string(kind)).
			Msg("failed to award points")
		return
	}

	if s.redis != nil {
		member := strconv.FormatInt(userID, 10)
		if err := s.redis.ZIncrBy(ctx, redisclient.LeaderboardKey(), float64(points), member).Err(); err != nil {
			log.Warn().Err(err).Int64("userId", userID).Msg("failed to update leaderboard")
		}
	}

	audit.Log(ctx, audit.Event{
		Type:           audit.EventPointsAwarded,
		UserID:         userID,
		ConversationID: conversationID,
		Details: map[string]interface{}{
			"eventKind":   string(kind),
			"points":      points,
			"description": description,
		},
	})
}

// Leaderboard returns the top n users by points.
func (s *PointsService) Leaderboard(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	if s.redis == nil {
		return nil, apperrors.Internal("leaderboard unavailable")
	}

	members, err := s.redis.ZRevRangeWithScores(ctx, redisclient.LeaderboardKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "leaderboard unavailable", err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(members))
	for _, m := range members {
		raw, ok := m.Member.(string)
		if !ok {
			continue
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, model.LeaderboardEntry{UserID: userID, Points: int(m.Score)})
	}
	return entries, nil
}

func (s *PointsService) History(ctx context.Context, userID int64, limit int) ([]model.PointsLogEntry, error) {
	return s.repo.FindByUser(ctx, userID, limit)
}
