package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"cookbook/internal/logging"
	"cookbook/internal/repositories"
	"cookbook/internal/utils"
	"cookbook/internal/validation"
)

const resetTokenTTL = time.Hour

type PasswordResetService struct {
	users  repositories.UserRepository
	repo   repositories.PasswordResetRepository
	mailer Notifier
	hasher PasswordHasher
	log    logging.Logger
	now    func() time.Time
}

func NewPasswordResetService(users repositories.UserRepository, repo repositories.PasswordResetRepository, mailer Notifier, hasher PasswordHasher, log logging.Logger) *PasswordResetService {
	return &PasswordResetService{users: users, repo: repo, mailer: mailer, hasher: hasher, log: log, now: time.Now}
}

// RequestReset всегда отвечает успехом, чтобы не раскрывать существование email.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if email == "" {
		return validation.Errors{"email": "is required"}
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.log.Info(ctx, "[password-reset] request for unknown email or lookup error", "email", email, "err", err)
		return nil
	}

	token, err := utils.NewRefreshToken(32)
	if err != nil {
		return err
	}
	if _, err := s.repo.Create(ctx, user.ID, token, s.now().Add(resetTokenTTL)); err != nil {
		return err
	}
	subject, body := passwordResetEmail(token)
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.log.Warn(ctx, "[password-reset] email not sent", "user_id", user.ID, "err", err)
	}
	return nil
}

func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrResetTokenInvalid
	}

	pr, err := s.repo.GetByToken(ctx, token)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return err
	}
	if pr.UsedAt != nil {
		return ErrResetTokenUsed
	}
	if s.now().After(pr.ExpiresAt) {
		return ErrResetTokenInvalid
	}

	user, err := s.users.GetByID(ctx, pr.UserID)
	if err != nil {
		return err
	}
	switch {
	case !validation.PasswordComplex(newPassword):
		return validation.Errors{"password": "must be at least 8 characters with a letter and a digit"}
	case !validation.PasswordDistinct(newPassword, user.Email, user.Nickname):
		return validation.Errors{"password": "must differ from email and nickname"}
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}
	// сначала гасим токен: повторное использование невозможно даже при гонке
	if err := s.repo.MarkUsed(ctx, pr.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrResetTokenUsed
		}
		return err
	}
	if err := s.users.UpdatePassword(ctx, pr.UserID, hash); err != nil {
		return err
	}
	s.log.Info(ctx, "[password-reset] password changed", "user_id", pr.UserID)
	return nil
}
