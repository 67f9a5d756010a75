package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type RatingRepository interface {
	// Upsert: одна оценка на пару (user, recipe), повтор перезаписывает.
	Upsert(ctx context.Context, userID, recipeID, value int) error
	Get(ctx context.Context, userID, recipeID int) (int, bool, error)
	// Average возвращает неокруглённое среднее и число оценок (0, 0 без оценок).
	Average(ctx context.Context, recipeID int) (float64, int, error)
}

type ratingRepository struct {
	db *sql.DB
}

func NewRatingRepository(db *sql.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Upsert(ctx context.Context, userID, recipeID, value int) error {
	const q = `
		INSERT INTO recipe_ratings (user_id, recipe_id, rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, recipe_id) DO UPDATE SET rating = EXCLUDED.rating
	`
	if _, err := r.db.ExecContext(ctx, q, userID, recipeID, value); err != nil {
		return fmt.Errorf("upsert rating: %w", mapPQError(err))
	}
	return nil
}

func (r *ratingRepository) Get(ctx context.Context, userID, recipeID int) (int, bool, error) {
	const q = `SELECT rating FROM recipe_ratings WHERE user_id = $1 AND recipe_id = $2`
	var v int
	err := r.db.QueryRowContext(ctx, q, userID, recipeID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get rating: %w", err)
	}
	return v, true, nil
}

func (r *ratingRepository) Average(ctx context.Context, recipeID int) (float64, int, error) {
	const q = `SELECT COALESCE(AVG(rating)::float8, 0), COUNT(*) FROM recipe_ratings WHERE recipe_id = $1`
	var (
		avg float64
		cnt int
	)
	if err := r.db.QueryRowContext(ctx, q, recipeID).Scan(&avg, &cnt); err != nil {
		return 0, 0, fmt.Errorf("average rating: %w", err)
	}
	return avg, cnt, nil
}
