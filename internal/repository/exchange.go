package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/friendsforever/server-go/internal/model"
)

type VoteRepository interface {
	Create(ctx context.Context, conversationID, userID int64, round int, vote model.Vote) (*model.ExtensionVote, error)
	FindByRound(ctx context.Context, conversationID int64, round int) ([]model.ExtensionVote, error)
}

type voteRepo struct {
	db *sqlx.DB
}

func NewVoteRepository(db *sqlx.DB) VoteRepository {
	return &voteRepo{db: db}
}

func (r *voteRepo) Create(ctx context.Context, conversationID, userID int64, round int, vote model.Vote) (*model.ExtensionVote, error) {
	var v model.ExtensionVote
	err := r.db.GetContext(ctx, &v, `
		INSERT INTO extension_votes (conversation_id, user_id, round, vote)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, conversationID, userID, round, vote)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *voteRepo) FindByRound(ctx context.Context, conversationID int64, round int) ([]model.ExtensionVote, error) {
	var votes []model.ExtensionVote
	err := r.db.SelectContext(ctx, &votes, `
		SELECT * FROM extension_votes
		WHERE conversation_id = $1 AND round = $2
		ORDER BY id ASC
	`, conversationID, round)
	return votes, err
}

type PhotoRepository interface {
	Create(ctx context.Context, conversationID, userID int64, photoRef string) (*model.PhotoSubmission, error)
	FindLatestPerUser(ctx context.Context, conversationID int64) ([]model.PhotoSubmission, error)
}

type photoRepo struct {
	db *sqlx.DB
}

func NewPhotoRepository(db *sqlx.DB) PhotoRepository {
	return &photoRepo{db: db}
}

func (r *photoRepo) Create(ctx context.Context, conversationID, userID int64, photoRef string) (*model.PhotoSubmission, error) {
	var p model.PhotoSubmission
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO photo_exchange_submissions (conversation_id, user_id, photo_ref)
		VALUES ($1, $2, $3)
		RETURNING *
	`, conversationID, userID, photoRef)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindLatestPerUser returns each submitter's most recent photo, newest first.
func (r *photoRepo) FindLatestPerUser(ctx context.Context, conversationID int64) ([]model.PhotoSubmission, error) {
	var photos []model.PhotoSubmission
	err := r.db.SelectContext(ctx, &photos, `
		SELECT * FROM (
			SELECT DISTINCT ON (user_id) * FROM photo_exchange_submissions
			WHERE conversation_id = $1
			ORDER BY user_id, id DESC
		) latest
		ORDER BY id DESC
	`, conversationID)
	return photos, err
}

type RatingRepository interface {
	Create(ctx context.Context, params model.CreateRatingParams) (*model.Rating, error)
}

type ratingRepo struct {
	db *sqlx.DB
}

func NewRatingRepository(db *sqlx.DB) RatingRepository {
	return &ratingRepo{db: db}
}

func (r *ratingRepo) Create(ctx context.Context, params model.CreateRatingParams) (*model.Rating, error) {
	var rating model.Rating
	err := r.db.GetContext(ctx, &rating, `
		INSERT INTO ratings (conversation_id, rater_id, rated_user_id, score)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.ConversationID, params.RaterID, params.RatedUserID, params.Score)
	if err != nil {
		return nil, err
	}
	return &rating, nil
}
