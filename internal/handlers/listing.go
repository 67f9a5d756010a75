package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cookbook/internal/logging"
	"cookbook/internal/models"
	"cookbook/internal/services"
)

// ListQuery: разобранные параметры выборки рецептов.
type ListQuery struct {
	Query      string
	CategoryID int
	Nickname   string
	Page       int
}

// Listable отдаёт страницу рецептов.
type Listable interface {
	List(ctx context.Context, q ListQuery) (*models.RecipePage, error)
}

// Filterable называет query-фильтры, которые понимает выборка: "q", "category".
type Filterable interface {
	Filters() []string
}

// Paginated: выборка понимает ?page=.
type Paginated interface {
	Paginated()
}

// AuthorOwned: менять ресурс может только его автор.
type AuthorOwned interface {
	AuthorOf(ctx context.Context, id int) (int, error)
}

// ListHandler builds a GET handler from the capabilities l implements.
func ListHandler(l Listable, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := ListQuery{Nickname: c.Param("nickname"), Page: 1}
		if _, ok := l.(Paginated); ok {
			page, err := queryInt(c, "page", 1)
			if err != nil {
				writeError(c, log, err)
				return
			}
			q.Page = page
		}
		if f, ok := l.(Filterable); ok {
			for _, name := range f.Filters() {
				switch name {
				case "q":
					q.Query = c.Query("q")
				case "category":
					id, err := queryInt(c, "category", 0)
					if err != nil {
						writeError(c, log, err)
						return
					}
					q.CategoryID = id
				}
			}
		}

		page, err := l.List(c.Request.Context(), q)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// RequireAuthor отсекает чужие правки до разбора тела запроса.
func RequireAuthor(owned AuthorOwned, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			c.Abort()
			return
		}
		author, err := owned.AuthorOf(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			c.Abort()
			return
		}
		if author != viewerID(c) {
			writeError(c, log, services.ErrNotAuthor)
			c.Abort()
			return
		}
		c.Next()
	}
}

type recipeCatalog interface {
	Search(ctx context.Context, query string, categoryID, page int) (*models.RecipePage, error)
	Best(ctx context.Context, categoryID, page int) (*models.RecipePage, error)
}

type searchListing struct{ recipes recipeCatalog }

func (searchListing) Filters() []string { return []string{"q", "category"} }
func (searchListing) Paginated() {}
func (l searchListing) List(ctx context.Context, q ListQuery) (*models.RecipePage, error) {
	return l.recipes.Search(ctx, q.Query, q.CategoryID, q.Page)
}

type bestListing struct{ recipes recipeCatalog }

func (bestListing) Filters() []string { return []string{"category"} }
func (bestListing) Paginated() {}
func (l bestListing) List(ctx context.Context, q ListQuery) (*models.RecipePage, error) {
	return l.recipes.Best(ctx, q.CategoryID, q.Page)
}

type favoriteLister interface {
	ListByNickname(ctx context.Context, nickname string, page int) (*models.RecipePage, error)
}

type favoritesListing struct{ favorites favoriteLister }

func (favoritesListing) Paginated() {}
func (l favoritesListing) List(ctx context.Context, q ListQuery) (*models.RecipePage, error) {
	return l.favorites.ListByNickname(ctx, q.Nickname, q.Page)
}
