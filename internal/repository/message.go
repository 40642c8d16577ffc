package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/friendsforever/server-go/internal/model"
)

type MessageRepository interface {
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
	FindByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]model.Message, error)
	CountByConversation(ctx context.Context, conversationID int64) (int, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages (conversation_id, sender_id, type, content, voice_ref, voice_duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.ConversationID, params.SenderID, params.Type, params.Content,
		params.VoiceRef, params.VoiceDurationSeconds)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) FindByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	return msgs, err
}

func (r *messageRepo) CountByConversation(ctx context.Context, conversationID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE conversation_id = $1
	`, conversationID)
	return count, err
}
