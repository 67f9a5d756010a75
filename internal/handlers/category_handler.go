package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cookbook/internal/logging"
	"cookbook/internal/models"
)

type categories interface {
	List(ctx context.Context) ([]*models.Category, error)
	Create(ctx context.Context, isStaff bool, name string) (*models.Category, error)
}

type CategoryHandler struct {
	categories categories
	log        logging.Logger
}

func NewCategoryHandler(c categories, log logging.Logger) *CategoryHandler {
	return &CategoryHandler{categories: c, log: log}
}

// @Summary      Категории
// @Tags         Categories
// @Produce      json
// @Success      200  {array}  models.Category
// @Router       /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	items, err := h.categories.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// @Summary      Новая категория (персонал)
// @Tags         Categories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  models.Category
// @Failure      403  {object}  map[string]string
// @Router       /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req struct {
		Category string `json:"category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), isStaff(c), req.Category)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}
