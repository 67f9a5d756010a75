package services

import (
	"context"
	"errors"
	"math"

	"cookbook/internal/logging"
	"cookbook/internal/repositories"
	"cookbook/internal/validation"
)

// RoundRating rounds an average to one decimal.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

type RatingResult struct {
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
	UserRating    int     `json:"user_rating"`
}

type ratingWatcher interface {
	AfterRating(recipeID int)
}

type RatingService struct {
	ratings  repositories.RatingRepository
	recipes  repositories.RecipeRepository
	watchers ratingWatcher
	log      logging.Logger
}

func NewRatingService(ratings repositories.RatingRepository, recipes repositories.RecipeRepository, watchers ratingWatcher, log logging.Logger) *RatingService {
	return &RatingService{ratings: ratings, recipes: recipes, watchers: watchers, log: log}
}

// Rate: одна оценка на пользователя, повторная перезаписывает прежнюю.
func (s *RatingService) Rate(ctx context.Context, userID, recipeID, value int) (*RatingResult, error) {
	if value < 1 || value > 5 {
		return nil, validation.Errors{"value": "must be between 1 and 5"}
	}
	if _, err := s.recipes.GetByID(ctx, recipeID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	if err := s.ratings.Upsert(ctx, userID, recipeID, value); err != nil {
		if errors.Is(err, repositories.ErrInUse) {
			return nil, ErrRecipeNotFound // рецепт удалён между проверкой и записью
		}
		return nil, err
	}

	avg, n, err := s.Average(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "[rating][rate] saved", "user_id", userID, "recipe_id", recipeID, "value", value, "avg", avg)
	if s.watchers != nil {
		s.watchers.AfterRating(recipeID)
	}
	return &RatingResult{AverageRating: avg, RatingCount: n, UserRating: value}, nil
}

// Average returns the rounded mean, 0.0 when nobody rated yet.
func (s *RatingService) Average(ctx context.Context, recipeID int) (float64, int, error) {
	raw, n, err := s.ratings.Average(ctx, recipeID)
	if err != nil {
		return 0, 0, err
	}
	if n == 0 {
		return 0, 0, nil
	}
	return RoundRating(raw), n, nil
}
