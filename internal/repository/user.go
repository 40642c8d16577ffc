package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/friendsforever/server-go/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	AddPoints(ctx context.Context, id int64, delta int) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepo struct {
	db sqlxDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (display_name, photo_ref)
		VALUES ($1, $2)
		RETURNING *
	`, params.DisplayName, params.PhotoRef)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) AddPoints(ctx context.Context, id int64, delta int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET points = points + $2 WHERE id = $1
	`, id, delta)
	return err
}
