package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cookbook/internal/models"
)

type RecipeRepository interface {
	Create(ctx context.Context, recipe *models.Recipe) error
	GetByID(ctx context.Context, id int) (*models.Recipe, error)
	Update(ctx context.Context, recipe *models.Recipe) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context, filter models.RecipeFilter) ([]*models.Recipe, int, error)

	// одноразовые флаги: true только если флаг переключил именно этот вызов
	MarkNotifiedSaved(ctx context.Context, id int) (bool, error)
	MarkNotifiedTop(ctx context.Context, id int) (bool, error)
}

type recipeRepository struct {
	db *sql.DB
}

func NewRecipeRepository(db *sql.DB) RecipeRepository {
	return &recipeRepository{db: db}
}

const recipeSelect = `
	SELECT r.id, r.author_id, r.category_id, r.dish_name, r.picture, r.description, r.text,
	       r.notified_saved, r.notified_top, r.created_at, r.updated_at,
	       u.email, u.nickname, c.category,
	       COALESCE(s.avg_rating, 0), COALESCE(s.cnt, 0)
	FROM recipes r
	JOIN users u ON u.id = r.author_id
	JOIN categories c ON c.id = r.category_id
	LEFT JOIN (
		SELECT recipe_id, AVG(rating)::float8 AS avg_rating, COUNT(*) AS cnt
		FROM recipe_ratings
		GROUP BY recipe_id
	) s ON s.recipe_id = r.id`

func scanRecipe(row interface{ Scan(...any) error }) (*models.Recipe, error) {
	rc := &models.Recipe{}
	err := row.Scan(
		&rc.ID, &rc.AuthorID, &rc.CategoryID, &rc.DishName, &rc.Picture, &rc.Description, &rc.Text,
		&rc.NotifiedSaved, &rc.NotifiedTop, &rc.CreatedAt, &rc.UpdatedAt,
		&rc.AuthorEmail, &rc.AuthorNickname, &rc.CategoryName,
		&rc.AverageRating, &rc.RatingCount,
	)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (r *recipeRepository) Create(ctx context.Context, rc *models.Recipe) error {
	const q = `
		INSERT INTO recipes (author_id, category_id, dish_name, picture, description, text)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		rc.AuthorID, rc.CategoryID, rc.DishName, rc.Picture, rc.Description, rc.Text,
	).Scan(&rc.ID, &rc.CreatedAt, &rc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create recipe: %w", mapPQError(err))
	}
	return nil
}

func (r *recipeRepository) GetByID(ctx context.Context, id int) (*models.Recipe, error) {
	rc, err := scanRecipe(r.db.QueryRowContext(ctx, recipeSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return rc, nil
}

func (r *recipeRepository) Update(ctx context.Context, rc *models.Recipe) error {
	const q = `
		UPDATE recipes
		SET category_id = $1, dish_name = $2, picture = $3, description = $4, text = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		rc.CategoryID, rc.DishName, rc.Picture, rc.Description, rc.Text, rc.ID,
	).Scan(&rc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update recipe: %w", mapPQError(err))
	}
	return nil
}

func (r *recipeRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	return requireAffected(res)
}

// List строит WHERE по фильтру и возвращает страницу + общее количество.
func (r *recipeRepository) List(ctx context.Context, f models.RecipeFilter) ([]*models.Recipe, int, error) {
	conditions := []string{}
	args := []any{}
	argID := 1

	if q := strings.TrimSpace(f.Query); q != "" {
		conditions = append(conditions, fmt.Sprintf("r.dish_name ILIKE $%d", argID))
		args = append(args, "%"+escapeLike(q)+"%")
		argID++
	}
	if f.CategoryID > 0 {
		conditions = append(conditions, fmt.Sprintf("r.category_id = $%d", argID))
		args = append(args, f.CategoryID)
		argID++
	}
	if f.AuthorID > 0 {
		conditions = append(conditions, fmt.Sprintf("r.author_id = $%d", argID))
		args = append(args, f.AuthorID)
		argID++
	}
	if f.MinRating > 0 {
		conditions = append(conditions, fmt.Sprintf("s.avg_rating >= $%d", argID))
		args = append(args, f.MinRating)
		argID++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQ := `
	SELECT COUNT(*)
	FROM recipes r
	LEFT JOIN (
		SELECT recipe_id, AVG(rating)::float8 AS avg_rating
		FROM recipe_ratings
		GROUP BY recipe_id
	) s ON s.recipe_id = r.id` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}

	order := " ORDER BY r.created_at DESC, r.id DESC"
	if f.OrderBy == "rating" {
		order = " ORDER BY COALESCE(s.avg_rating, 0) DESC, r.id DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 6
	}
	q := recipeSelect + where + order + fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	res := []*models.Recipe{}
	for rows.Next() {
		rc, err := scanRecipe(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan recipe: %w", err)
		}
		res = append(res, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}
	return res, total, nil
}

func (r *recipeRepository) markFlag(ctx context.Context, column string, id int) (bool, error) {
	q := fmt.Sprintf(`UPDATE recipes SET %[1]s = TRUE WHERE id = $1 AND %[1]s = FALSE`, column)
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *recipeRepository) MarkNotifiedSaved(ctx context.Context, id int) (bool, error) {
	return r.markFlag(ctx, "notified_saved", id)
}

func (r *recipeRepository) MarkNotifiedTop(ctx context.Context, id int) (bool, error) {
	return r.markFlag(ctx, "notified_top", id)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
