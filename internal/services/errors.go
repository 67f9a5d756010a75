package services

import "errors"

var (
	// регистрация
	ErrPendingNotFound = errors.New("registration not found or expired, please sign up again")
	ErrCodeExpired     = errors.New("verification code expired, request a new one")
	ErrCodeInvalid     = errors.New("invalid verification code")
	ErrCodeDelivery    = errors.New("failed to deliver verification code")

	// вход
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRefresh     = errors.New("invalid refresh token")

	// сброс пароля
	ErrResetTokenInvalid = errors.New("invalid or expired token")
	ErrResetTokenUsed    = errors.New("token already used")

	ErrUserNotFound     = errors.New("user not found")
	ErrRecipeNotFound   = errors.New("recipe not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrNotAuthor        = errors.New("only the author can change this recipe")
	ErrForbidden        = errors.New("forbidden")
)
