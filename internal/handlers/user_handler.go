package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cookbook/internal/logging"
	"cookbook/internal/models"
)

type accounts interface {
	Account(ctx context.Context, userID int) (*models.User, error)
	Profile(ctx context.Context, userID int) (*models.PublicProfile, error)
	UpdateBio(ctx context.Context, userID int, bio string) (*models.User, error)
}

type UserHandler struct {
	users accounts
	log   logging.Logger
}

func NewUserHandler(users accounts, log logging.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// @Summary      Свой аккаунт
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Router       /account [get]
func (h *UserHandler) Account(c *gin.Context) {
	u, err := h.users.Account(c.Request.Context(), viewerID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// @Summary      Обновить «о себе»
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      400  {object}  map[string]interface{}
// @Router       /account [put]
func (h *UserHandler) UpdateAccount(c *gin.Context) {
	var req struct {
		Bio string `json:"bio" binding:"omitempty,max=1000,capfirst"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.UpdateBio(c.Request.Context(), viewerID(c), req.Bio)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// @Summary      Публичный профиль
// @Tags         Users
// @Produce      json
// @Param        id  path  int  true  "ID"
// @Success      200  {object}  models.PublicProfile
// @Failure      404  {object}  map[string]string
// @Router       /profile/{id} [get]
func (h *UserHandler) Profile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.users.Profile(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
