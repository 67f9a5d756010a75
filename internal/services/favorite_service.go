package services

import (
	"context"
	"errors"

	"cookbook/internal/logging"
	"cookbook/internal/models"
	"cookbook/internal/repositories"
)

type FavoriteResult struct {
	Favorited      bool `json:"favorited"`
	FavoritesCount int  `json:"favorites_count"`
}

type favoriteWatcher interface {
	AfterFavorite(recipeID int)
}

type FavoriteService struct {
	favorites repositories.FavoriteRepository
	recipes   repositories.RecipeRepository
	users     repositories.UserRepository
	watchers  favoriteWatcher
	log       logging.Logger
}

func NewFavoriteService(
	favorites repositories.FavoriteRepository,
	recipes repositories.RecipeRepository,
	users repositories.UserRepository,
	watchers favoriteWatcher,
	log logging.Logger,
) *FavoriteService {
	return &FavoriteService{favorites: favorites, recipes: recipes, users: users, watchers: watchers, log: log}
}

// Toggle добавляет рецепт в избранное или убирает из него.
func (s *FavoriteService) Toggle(ctx context.Context, userID, recipeID int) (*FavoriteResult, error) {
	if _, err := s.recipes.GetByID(ctx, recipeID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}

	removed, err := s.favorites.Remove(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}
	favorited := false
	if !removed {
		created, err := s.favorites.Add(ctx, userID, recipeID)
		if err != nil {
			if errors.Is(err, repositories.ErrInUse) {
				return nil, ErrRecipeNotFound
			}
			return nil, err
		}
		favorited = true
		if created && s.watchers != nil {
			s.watchers.AfterFavorite(recipeID)
		}
	}

	n, err := s.favorites.CountByRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "[favorite][toggle]", "user_id", userID, "recipe_id", recipeID, "favorited", favorited)
	return &FavoriteResult{Favorited: favorited, FavoritesCount: n}, nil
}

func (s *FavoriteService) ListByNickname(ctx context.Context, nickname string, page int) (*models.RecipePage, error) {
	user, err := s.users.GetByNickname(ctx, nickname)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	page = normalizePage(page)
	items, total, err := s.favorites.ListByUser(ctx, user.ID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}
	return newPage(items, page, total), nil
}
