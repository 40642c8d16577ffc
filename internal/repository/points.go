package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/friendsforever/server-go/internal/database"
	"github.com/friendsforever/server-go/internal/model"
)

type PointsRepository interface {
	// Award appends the ledger row and bumps the user's total in one transaction.
	Award(ctx context.Context, params model.AwardPointsParams) (*model.PointsLogEntry, error)
	FindByUser(ctx context.Context, userID int64, limit int) ([]model.PointsLogEntry, error)
}

type pointsRepo struct {
	db    *database.DB
	users UserRepository
}

func NewPointsRepository(db *database.DB) PointsRepository {
	return &pointsRepo{db: db, users: NewUserRepository(db.DB)}
}

func (r *pointsRepo) Award(ctx context.Context, params model.AwardPointsParams) (*model.PointsLogEntry, error) {
	var entry model.PointsLogEntry
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &entry, `
			INSERT INTO points_log (user_id, conversation_id, event_kind, points, description)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		`, params.UserID, params.ConversationID, params.EventKind, params.Points, params.Description); err != nil {
			return err
		}
		return r.users.WithTx(tx).AddPoints(ctx, params.UserID, params.Points)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *pointsRepo) FindByUser(ctx context.Context, userID int64, limit int) ([]model.PointsLogEntry, error) {
	var entries []model.PointsLogEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM points_log
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	return entries, err
}
