package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"cookbook/internal/logging"
	"cookbook/internal/models"
	"cookbook/internal/services"
)

type recipeService interface {
	recipeCatalog
	AuthorOwned
	Create(ctx context.Context, authorID int, in services.RecipeInput) (*models.Recipe, error)
	Get(ctx context.Context, id, viewerID int) (*services.RecipeDetail, error)
	Update(ctx context.Context, userID, id int, in services.RecipeInput) (*models.Recipe, error)
	Delete(ctx context.Context, userID, id int) error
	Card(ctx context.Context, id int, w io.Writer) error
}

type rater interface {
	Rate(ctx context.Context, userID, recipeID, value int) (*services.RatingResult, error)
}

type favoriter interface {
	favoriteLister
	Toggle(ctx context.Context, userID, recipeID int) (*services.FavoriteResult, error)
}

type RecipeHandler struct {
	recipes   recipeService
	ratings   rater
	favorites favoriter
	log       logging.Logger

	search    gin.HandlerFunc
	best      gin.HandlerFunc
	favorited gin.HandlerFunc
}

func NewRecipeHandler(recipes recipeService, ratings rater, favorites favoriter, log logging.Logger) *RecipeHandler {
	return &RecipeHandler{
		recipes:   recipes,
		ratings:   ratings,
		favorites: favorites,
		log:       log,
		search:    ListHandler(searchListing{recipes}, log),
		best:      ListHandler(bestListing{recipes}, log),
		favorited: ListHandler(favoritesListing{favorites}, log),
	}
}

// Owner is the AuthorOwned guard for PUT and DELETE.
func (h *RecipeHandler) Owner() gin.HandlerFunc {
	return RequireAuthor(h.recipes, h.log)
}

func (h *RecipeHandler) bindInput(c *gin.Context) (services.RecipeInput, bool) {
	var in services.RecipeInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, err)
		return in, false
	}
	pic, err := readUpload(c, "picture")
	if err != nil {
		writeError(c, h.log, err)
		return in, false
	}
	in.Picture = pic
	return in, true
}

// @Summary      Новый рецепт
// @Tags         Recipes
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        dish_name    formData  string  true  "Название"
// @Param        category_id  formData  int     true  "Категория"
// @Param        description  formData  string  true  "Описание"
// @Param        text         formData  string  true  "Инструкция (HTML)"
// @Param        picture      formData  file    true  "Фото"
// @Success      201  {object}  models.Recipe
// @Failure      400  {object}  map[string]interface{}
// @Router       /recipes [post]
func (h *RecipeHandler) Create(c *gin.Context) {
	in, ok := h.bindInput(c)
	if !ok {
		return
	}
	r, err := h.recipes.Create(c.Request.Context(), viewerID(c), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// @Summary      Рецепт
// @Tags         Recipes
// @Produce      json
// @Param        id  path  int  true  "ID"
// @Success      200  {object}  services.RecipeDetail
// @Failure      404  {object}  map[string]string
// @Router       /recipes/{id} [get]
func (h *RecipeHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.recipes.Get(c.Request.Context(), id, viewerID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *RecipeHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, ok := h.bindInput(c)
	if !ok {
		return
	}
	r, err := h.recipes.Update(c.Request.Context(), viewerID(c), id, in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *RecipeHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.recipes.Delete(c.Request.Context(), viewerID(c), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Поиск рецептов
// @Tags         Recipes
// @Produce      json
// @Param        q         query  string  false  "Название"
// @Param        category  query  int     false  "Категория"
// @Param        page      query  int     false  "Страница"
// @Success      200  {object}  models.RecipePage
// @Router       /recipes/search [get]
func (h *RecipeHandler) Search(c *gin.Context) { h.search(c) }

// @Summary      Лучшие рецепты
// @Tags         Recipes
// @Produce      json
// @Param        category  query  int  false  "Категория"
// @Param        page      query  int  false  "Страница"
// @Success      200  {object}  models.RecipePage
// @Router       /recipes/best [get]
func (h *RecipeHandler) Best(c *gin.Context) { h.best(c) }

func (h *RecipeHandler) Favorites(c *gin.Context) { h.favorited(c) }

// @Summary      PDF-карточка рецепта
// @Tags         Recipes
// @Produce      application/pdf
// @Param        id  path  int  true  "ID"
// @Success      200  {file}  file
// @Router       /recipes/{id}/pdf [get]
func (h *RecipeHandler) Card(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	// собираем в буфер, чтобы при ошибке ответить JSON
	var buf bytes.Buffer
	if err := h.recipes.Card(c.Request.Context(), id, &buf); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="recipe-%d.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// @Summary      Оценить рецепт
// @Tags         Recipes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "ID"
// @Success      200  {object}  services.RatingResult
// @Failure      400  {object}  map[string]interface{}
// @Router       /recipes/{id}/rate [post]
func (h *RecipeHandler) Rate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Value int `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.ratings.Rate(c.Request.Context(), viewerID(c), id, req.Value)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Добавить или убрать из избранного
// @Tags         Recipes
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "ID"
// @Success      200  {object}  services.FavoriteResult
// @Router       /recipes/{id}/favorite [post]
func (h *RecipeHandler) ToggleFavorite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.favorites.Toggle(c.Request.Context(), viewerID(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
