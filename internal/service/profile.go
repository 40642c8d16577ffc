package service

import (
	"context"
	"fmt"

	apperrors "github.com/friendsforever/server-go/internal/errors"
	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/repository"
)

type ProfileService struct {
	users repository.UserRepository
}

func NewProfileService(users repository.UserRepository) *ProfileService {
	return &ProfileService{users: users}
}

// MinimalProfile is what a new partner gets to see.
func (s *ProfileService) MinimalProfile(ctx context.Context, userID int64) (model.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if user == nil {
		return model.Profile{ID: userID}, nil
	}
	return user.Profile(), nil
}

func (s *ProfileService) Me(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user")
	}
	return user, nil
}
