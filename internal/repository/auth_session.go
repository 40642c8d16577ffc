package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/friendsforever/server-go/internal/model"
)

// AuthSessionRepository reads bearer sessions issued by the identity service.
type AuthSessionRepository interface {
	FindValidByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error)
	Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*model.AuthSession, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type authSessionRepo struct {
	db *sqlx.DB
}

func NewAuthSessionRepository(db *sqlx.DB) AuthSessionRepository {
	return &authSessionRepo{db: db}
}

func (r *authSessionRepo) FindValidByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error) {
	var session model.AuthSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM auth_sessions
		WHERE token_hash = $1 AND expires_at > NOW()
	`, tokenHash)
	return HandleNotFound(&session, err)
}

func (r *authSessionRepo) Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*model.AuthSession, error) {
	var session model.AuthSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO auth_sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, userID, tokenHash, expiresAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *authSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
