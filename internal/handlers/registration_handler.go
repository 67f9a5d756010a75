package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cookbook/internal/logging"
	"cookbook/internal/models"
	"cookbook/internal/services"
)

type registrar interface {
	SignUp(ctx context.Context, in services.SignUpInput) (*services.SignUpResult, error)
	Verify(ctx context.Context, email, code, avatarHint string) (*models.User, error)
	Resend(ctx context.Context, email string) error
	State(ctx context.Context, email string) (services.RegistrationState, error)
}

type RegistrationHandler struct {
	reg registrar
	log logging.Logger
}

func NewRegistrationHandler(reg registrar, log logging.Logger) *RegistrationHandler {
	return &RegistrationHandler{reg: reg, log: log}
}

// @Summary      Регистрация
// @Description  Принимает форму, сохраняет её до подтверждения и отправляет код на email
// @Tags         Signup
// @Accept       multipart/form-data
// @Produce      json
// @Param        email             formData  string  true   "Email"
// @Param        nickname          formData  string  true   "Никнейм"
// @Param        bio               formData  string  false  "О себе"
// @Param        password          formData  string  true   "Пароль"
// @Param        password_confirm  formData  string  true   "Повтор пароля"
// @Param        avatar            formData  file    false  "Аватар"
// @Success      202  {object}  services.SignUpResult
// @Failure      400  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]interface{}
// @Router       /signup [post]
func (h *RegistrationHandler) SignUp(c *gin.Context) {
	var in services.SignUpInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, err)
		return
	}
	avatar, err := readUpload(c, "avatar")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	in.Avatar = avatar

	res, err := h.reg.SignUp(c.Request.Context(), in)
	if errors.Is(err, services.ErrCodeDelivery) && res != nil {
		// форма сохранена, клиент может запросить повторную отправку
		c.JSON(http.StatusBadGateway, gin.H{
			"error":            err.Error(),
			"email":            res.Email,
			"avatar_temp_path": res.AvatarTempPath,
			"code_ttl_seconds": res.CodeTTLSeconds,
		})
		return
	}
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

type verifyRequest struct {
	Code           string `json:"code" binding:"required"`
	AvatarTempPath string `json:"avatar_temp_path"`
}

// @Summary      Подтверждение регистрации
// @Tags         Signup
// @Accept       json
// @Produce      json
// @Param        email  path  string         true  "Email"
// @Param        body   body  verifyRequest  true  "Код"
// @Success      201  {object}  models.User
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      410  {object}  map[string]string
// @Router       /signup/{email}/verify [post]
func (h *RegistrationHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.reg.Verify(c.Request.Context(), c.Param("email"), req.Code, req.AvatarTempPath)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// @Summary      Повторная отправка кода
// @Tags         Signup
// @Produce      json
// @Param        email  path  string  true  "Email"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /signup/{email}/resend [post]
func (h *RegistrationHandler) Resend(c *gin.Context) {
	if err := h.reg.Resend(c.Request.Context(), c.Param("email")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Code sent"})
}

func (h *RegistrationHandler) State(c *gin.Context) {
	state, err := h.reg.State(c.Request.Context(), c.Param("email"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
