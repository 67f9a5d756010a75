package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cookbook/internal/authz"
	"cookbook/internal/logging"
	"cookbook/internal/models"
	"cookbook/internal/repositories"
	"cookbook/internal/utils"
)

type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type TokenPair struct {
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	RefreshToken    string    `json:"refresh_token"`
}

type AuthService struct {
	users      repositories.UserRepository
	tokens     *authz.Tokens
	refreshTTL time.Duration
	cost       int
	log        logging.Logger
}

func NewAuthService(users repositories.UserRepository, tokens *authz.Tokens, refreshTTL time.Duration, log logging.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, refreshTTL: refreshTTL, cost: bcrypt.DefaultCost, log: log}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Login сверяет пароль и выдаёт пару токенов; refresh хранится в строке пользователя.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	start := time.Now()
	email = strings.TrimSpace(email)

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		s.log.Info(ctx, "[auth][login] unknown email", "email", email)
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Info(ctx, "[auth][login] password mismatch", "user_id", user.ID)
		return nil, nil, ErrInvalidCredentials
	}

	rt, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, nil, err
	}
	rtExp := time.Now().Add(s.refreshTTL)
	if err := s.users.UpdateRefresh(ctx, user.ID, rt, rtExp); err != nil {
		return nil, nil, err
	}
	pair, err := s.access(user, rt)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info(ctx, "[auth][login] success", "user_id", user.ID, "took", time.Since(start).Truncate(time.Millisecond))
	return user, pair, nil
}

// Refresh ротирует refresh-токен; старый становится недействительным.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	old := strings.TrimSpace(refreshToken)
	if old == "" {
		return nil, ErrInvalidRefresh
	}
	newRT, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, err
	}
	user, err := s.users.RotateRefresh(ctx, old, newRT, time.Now().Add(s.refreshTTL))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}
	return s.access(user, newRT)
}

func (s *AuthService) access(user *models.User, refresh string) (*TokenPair, error) {
	at, exp, err := s.tokens.Issue(user.ID, user.IsStaff)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &TokenPair{AccessToken: at, AccessExpiresAt: exp, RefreshToken: refresh}, nil
}
