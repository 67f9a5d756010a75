package models

import "time"

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"category"`
}

type Recipe struct {
	ID          int       `json:"id"`
	AuthorID    int       `json:"author_id"`
	CategoryID  int       `json:"category_id"`
	DishName    string    `json:"dish_name"`
	Picture     string    `json:"picture"`
	Description string    `json:"description"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// одноразовые флаги уведомлений, только false -> true
	NotifiedSaved bool `json:"-"`
	NotifiedTop   bool `json:"-"`

	// заполняются выборками со статистикой
	AuthorEmail    string  `json:"-"`
	AuthorNickname string  `json:"author_nickname,omitempty"`
	CategoryName   string  `json:"category,omitempty"`
	AverageRating  float64 `json:"average_rating"`
	RatingCount    int     `json:"rating_count"`
}

// Preview обрезает описание до 100 символов, как в карточке каталога.
func (r *Recipe) Preview() string {
	rs := []rune(r.Description)
	if len(rs) > 100 {
		return string(rs[:100]) + "..."
	}
	return r.Description
}

type RecipeRating struct {
	UserID   int `json:"user_id"`
	RecipeID int `json:"recipe_id"`
	Rating   int `json:"rating"`
}

type Favorite struct {
	UserID    int       `json:"user_id"`
	RecipeID  int       `json:"recipe_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RecipeFilter: параметры каталога (поиск, лучшие, по автору).
type RecipeFilter struct {
	Query      string
	CategoryID int
	AuthorID   int
	MinRating  float64 // > 0: только рецепты со средним >= MinRating
	OrderBy    string  // "created_at" | "rating"
	Limit      int
	Offset     int
}

type RecipePage struct {
	Items   []*Recipe `json:"items"`
	Page    int       `json:"page"`
	Size    int       `json:"size"`
	Total   int       `json:"total"`
	HasNext bool      `json:"has_next"`
}
