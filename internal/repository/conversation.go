package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/friendsforever/server-go/internal/model"
)

// ConversationRepository owns the persisted lifecycle. Transition methods
// guard the source state in SQL and return (nil, nil) when it did not match.
type ConversationRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Conversation, error)
	FindByRoomToken(ctx context.Context, roomToken string) (*model.Conversation, error)
	FindLiveForUser(ctx context.Context, userID int64) (*model.Conversation, error)
	Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error)
	StartTimer(ctx context.Context, id int64, endsAt time.Time) (*model.Conversation, error)
	MarkExtensionPending(ctx context.Context, id int64) (*model.Conversation, error)
	Extend(ctx context.Context, id int64) (*model.Conversation, error)
	MarkFriendsForever(ctx context.Context, id int64) (*model.Conversation, error)
	Reactivate(ctx context.Context, id int64) (*model.Conversation, error)
	Close(ctx context.Context, id int64) (*model.Conversation, error)
}

type conversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByID(ctx context.Context, id int64) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT * FROM conversations WHERE id = $1`, id)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) FindByRoomToken(ctx context.Context, roomToken string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT * FROM conversations WHERE room_token = $1`, roomToken)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) FindLiveForUser(ctx context.Context, userID int64) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations
		WHERE (participant_a = $1 OR participant_b = $1)
		  AND status IN ('active', 'extension_pending', 'photo_exchange', 'friends_forever')
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, userID)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO conversations (room_token, participant_a, participant_b, status)
		VALUES ($1, $2, $3, 'active')
		RETURNING *
	`, params.RoomToken, params.ParticipantA, params.ParticipantB)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) StartTimer(ctx context.Context, id int64, endsAt time.Time) (*model.Conversation, error) {
	return r.transition(ctx, `
		UPDATE conversations SET
			status = 'active',
			current_timer_end = $2,
			updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'photo_exchange')
		RETURNING *
	`, id, endsAt)
}

func (r *conversationRepo) MarkExtensionPending(ctx context.Context, id int64) (*model.Conversation, error) {
	return r.transition(ctx, `
		UPDATE conversations SET
			status = 'extension_pending',
			updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING *
	`, id)
}

func (r *conversationRepo) Extend(ctx context.Context, id int64) (*model.Conversation, error) {
	return r.transition(ctx, `
		UPDATE conversations SET
			status = 'photo_exchange',
			extensions_count = extensions_count + 1,
			current_timer_end = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'extension_pending'
		RETURNING *
	`, id)
}

func (r *conversationRepo) MarkFriendsForever(ctx context.Context, id int64) (*model.Conversation, error) {
	return r.transition(ctx, `
		UPDATE conversations SET
			status = 'friends_forever',
			is_friends_forever = TRUE,
			current_timer_end = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'extension_pending'
		RETURNING *
	`, id)
}

func (r *conversationRepo) Reactivate(ctx context.Context, id int64) (*model.Conversation, error) {
	return r.transition(ctx, `
		UPDATE conversations SET
			status = 'active',
			updated_at = NOW()
		WHERE id = $1 AND status = 'photo_exchange'
		RETURNING *
	`, id)
}

func (r *conversationRepo) Close(ctx context.Context, id int64) (*model.Conversation, error) {
	return r.transition(ctx, `
		UPDATE conversations SET
			status = 'closed',
			current_timer_end = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status <> 'closed'
		RETURNING *
	`, id)
}

func (r *conversationRepo) transition(ctx context.Context, query string, args ...interface{}) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, query, args...)
	return HandleNotFound(&conv, err)
}
