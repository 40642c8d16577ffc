package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/friendsforever/server-go/internal/errors"
	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/repository"
)

// ConversationService is the only writer of conversation lifecycle state.
type ConversationService struct {
	repo repository.ConversationRepository
}

func NewConversationService(repo repository.ConversationRepository) *ConversationService {
	return &ConversationService{repo: repo}
}

func (s *ConversationService) Get(ctx context.Context, id int64) (*model.Conversation, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByRoomToken treats a malformed token like an unknown one.
func (s *ConversationService) GetByRoomToken(ctx context.Context, roomToken string) (*model.Conversation, error) {
	if _, err := uuid.Parse(roomToken); err != nil {
		return nil, nil
	}
	return s.repo.FindByRoomToken(ctx, roomToken)
}

// GetForParticipant loads a conversation for REST callers. Conversations the
// user is not part of look the same as missing ones.
func (s *ConversationService) GetForParticipant(ctx context.Context, id, userID int64) (*model.Conversation, error) {
	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return nil, apperrors.NotFound("conversation")
	}
	return conv, nil
}

// Partner returns the other participant. userID must be a participant.
func (s *ConversationService) Partner(conv *model.Conversation, userID int64) int64 {
	return conv.Partner(userID)
}

func (s *ConversationService) FindLiveForUser(ctx context.Context, userID int64) (*model.Conversation, error) {
	return s.repo.FindLiveForUser(ctx, userID)
}

// Create opens a new ACTIVE conversation under a fresh random room token.
func (s *ConversationService) Create(ctx context.Context, userA, userB int64) (*model.Conversation, error) {
	conv, err := s.repo.Create(ctx, model.CreateConversationParams{
		RoomToken:    uuid.NewString(),
		ParticipantA: userA,
		ParticipantB: userB,
	})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	log.Info().
		Int64("conversationId", conv.ID).
		Str("roomToken", conv.RoomToken).
		Int64("participantA", userA).
		Int64("participantB", userB).
		Msg("conversation created")

	return conv, nil
}

// The transitions below return (nil, nil) when the conversation was not in
// the required source state.

func (s *ConversationService) StartTimer(ctx context.Context, id int64, endsAt time.Time) (*model.Conversation, error) {
	return s.transition(ctx, "start timer", id, func() (*model.Conversation, error) {
		return s.repo.StartTimer(ctx, id, endsAt)
	})
}

func (s *ConversationService) MarkExtensionPending(ctx context.Context, id int64) (*model.Conversation, error) {
	return s.transition(ctx, "mark extension pending", id, func() (*model.Conversation, error) {
		return s.repo.MarkExtensionPending(ctx, id)
	})
}

func (s *ConversationService) Extend(ctx context.Context, id int64) (*model.Conversation, error) {
	return s.transition(ctx, "extend", id, func() (*model.Conversation, error) {
		return s.repo.Extend(ctx, id)
	})
}

func (s *ConversationService) MarkFriendsForever(ctx context.Context, id int64) (*model.Conversation, error) {
	return s.transition(ctx, "mark friends forever", id, func() (*model.Conversation, error) {
		return s.repo.MarkFriendsForever(ctx, id)
	})
}

func (s *ConversationService) Reactivate(ctx context.Context, id int64) (*model.Conversation, error) {
	return s.transition(ctx, "reactivate", id, func() (*model.Conversation, error) {
		return s.repo.Reactivate(ctx, id)
	})
}

func (s *ConversationService) Close(ctx context.Context, id int64) (*model.Conversation, error) {
	return s.transition(ctx, "close", id, func() (*model.Conversation, error) {
		return s.repo.Close(ctx, id)
	})
}

func (s *ConversationService) transition(ctx context.Context, name string, id int64, fn func() (*model.Conversation, error)) (*model.Conversation, error) {
	conv, err := fn()
	if err != nil {
		return nil, fmt.Errorf("%s conversation: %w", name, err)
	}
	if conv != nil {
		log.Ctx(ctx).Debug().
			Int64("conversationId", id).
			Str("status", string(conv.Status)).
			Int("extensionsCount", conv.ExtensionsCount).
			Msg("conversation transitioned")
	}
	return conv, nil
}
