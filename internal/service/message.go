package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/repository"
)

const (
	MaxMessageLength    = 2000
	MaxVoiceNoteSeconds = 300
	matchGreeting       = "You have been matched. Say hello!"
	DefaultMessageLimit = 50
	MaxMessagePageLimit = 200
)

type MessageService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
}

func NewMessageService(messages repository.MessageRepository, conversations repository.ConversationRepository) *MessageService {
	return &MessageService{messages: messages, conversations: conversations}
}

// SendText stores a chat line from a participant. Anything else is ErrIgnored.
func (s *MessageService) SendText(ctx context.Context, conversationID, senderID int64, content string) (*model.Message, *model.Conversation, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, nil, ErrIgnored
	}

	conv, err := s.authorize(ctx, conversationID, senderID)
	if err != nil {
		return nil, nil, err
	}

	msg, err := s.messages.Create(ctx, model.CreateMessageParams{
		ConversationID: conversationID,
		SenderID:       &senderID,
		Type:           model.MessageTypeText,
		Content:        &content,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create text message: %w", err)
	}
	return msg, conv, nil
}

func (s *MessageService) SendVoice(ctx context.Context, conversationID, senderID int64, voiceRef string, durationSeconds int) (*model.Message, *model.Conversation, error) {
	voiceRef = strings.TrimSpace(voiceRef)
	if voiceRef == "" || durationSeconds < 0 || durationSeconds > MaxVoiceNoteSeconds {
		return nil, nil, ErrIgnored
	}

	conv, err := s.authorize(ctx, conversationID, senderID)
	if err != nil {
		return nil, nil, err
	}

	msg, err := s.messages.Create(ctx, model.CreateMessageParams{
		ConversationID:       conversationID,
		SenderID:             &senderID,
		Type:                 model.MessageTypeVoice,
		VoiceRef:             &voiceRef,
		VoiceDurationSeconds: &durationSeconds,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create voice message: %w", err)
	}
	return msg, conv, nil
}

// CreateGreeting inserts the system line every new match starts with.
func (s *MessageService) CreateGreeting(ctx context.Context, conversationID int64) (*model.Message, error) {
	return s.CreateSystem(ctx, conversationID, matchGreeting)
}

func (s *MessageService) CreateSystem(ctx context.Context, conversationID int64, content string) (*model.Message, error) {
	msg, err := s.messages.Create(ctx, model.CreateMessageParams{
		ConversationID: conversationID,
		Type:           model.MessageTypeSystem,
		Content:        &content,
	})
	if err != nil {
		return nil, fmt.Errorf("create system message: %w", err)
	}
	return msg, nil
}

func (s *MessageService) List(ctx context.Context, conversationID int64, limit, offset int) ([]model.Message, int, error) {
	msgs, err := s.messages.FindByConversation(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	total, err := s.messages.CountByConversation(ctx, conversationID)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, total, nil
}

func (s *MessageService) authorize(ctx context.Context, conversationID, senderID int64) (*model.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil || !conv.HasParticipant(senderID) || !conv.Status.IsLive() {
		log.Debug().
			Int64("conversationId", conversationID).
			Int64("userId", senderID).
			Msg("dropping message from non-participant")
		return nil, ErrIgnored
	}
	return conv, nil
}
