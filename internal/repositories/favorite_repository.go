package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"cookbook/internal/models"
)

type FavoriteRepository interface {
	// Add возвращает true, если запись создана этим вызовом.
	Add(ctx context.Context, userID, recipeID int) (bool, error)
	Remove(ctx context.Context, userID, recipeID int) (bool, error)
	Exists(ctx context.Context, userID, recipeID int) (bool, error)
	CountByRecipe(ctx context.Context, recipeID int) (int, error)
	ListByUser(ctx context.Context, userID, limit, offset int) ([]*models.Recipe, int, error)
}

type favoriteRepository struct {
	db *sql.DB
}

func NewFavoriteRepository(db *sql.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) Add(ctx context.Context, userID, recipeID int) (bool, error) {
	const q = `
		INSERT INTO favorites (user_id, recipe_id) VALUES ($1, $2)
		ON CONFLICT (user_id, recipe_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, q, userID, recipeID)
	if err != nil {
		return false, fmt.Errorf("add favorite: %w", mapPQError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *favoriteRepository) Remove(ctx context.Context, userID, recipeID int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID)
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *favoriteRepository) Exists(ctx context.Context, userID, recipeID int) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND recipe_id = $2)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, userID, recipeID).Scan(&ok); err != nil {
		return false, fmt.Errorf("favorite exists: %w", err)
	}
	return ok, nil
}

func (r *favoriteRepository) CountByRecipe(ctx context.Context, recipeID int) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE recipe_id = $1`, recipeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count favorites: %w", err)
	}
	return n, nil
}

func (r *favoriteRepository) ListByUser(ctx context.Context, userID, limit, offset int) ([]*models.Recipe, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count user favorites: %w", err)
	}
	if limit <= 0 {
		limit = 6
	}
	q := recipeSelect + `
	JOIN favorites f ON f.recipe_id = r.id
	WHERE f.user_id = $1
	ORDER BY f.created_at DESC, r.id DESC
	LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	res := []*models.Recipe{}
	for rows.Next() {
		rc, err := scanRecipe(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan favorite: %w", err)
		}
		res = append(res, rc)
	}
	return res, total, rows.Err()
}
