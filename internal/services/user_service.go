package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"cookbook/internal/models"
	"cookbook/internal/repositories"
	"cookbook/internal/validation"
)

// сколько последних рецептов показывать в профиле
const profileRecipes = 50

type UserService struct {
	users   repositories.UserRepository
	recipes repositories.RecipeRepository
}

func NewUserService(users repositories.UserRepository, recipes repositories.RecipeRepository) *UserService {
	return &UserService{users: users, recipes: recipes}
}

func (s *UserService) Account(ctx context.Context, userID int) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Profile is the public view of a user with their latest recipes.
func (s *UserService) Profile(ctx context.Context, userID int) (*models.PublicProfile, error) {
	u, err := s.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, _, err := s.recipes.List(ctx, models.RecipeFilter{AuthorID: u.ID, Limit: profileRecipes})
	if err != nil {
		return nil, err
	}
	for _, r := range items {
		r.AverageRating = RoundRating(r.AverageRating)
	}
	return &models.PublicProfile{ID: u.ID, Nickname: u.Nickname, Bio: u.Bio, Avatar: u.Avatar, Recipes: items}, nil
}

func (s *UserService) UpdateBio(ctx context.Context, userID int, bio string) (*models.User, error) {
	bio = strings.TrimSpace(bio)
	switch {
	case utf8.RuneCountInString(bio) > 1000:
		return nil, validation.Errors{"bio": "must be at most 1000 characters"}
	case bio != "" && !validation.CapitalizedFirst(bio):
		return nil, validation.Errors{"bio": "must start with an uppercase letter"}
	}
	if err := s.users.UpdateBio(ctx, userID, bio); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Account(ctx, userID)
}
