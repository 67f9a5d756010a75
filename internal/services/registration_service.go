package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"cookbook/internal/imageproc"
	"cookbook/internal/logging"
	"cookbook/internal/metrics"
	"cookbook/internal/models"
	"cookbook/internal/repositories"
	"cookbook/internal/storage"
	"cookbook/internal/utils"
	"cookbook/internal/validation"
)

type SignUpInput struct {
	Email           string         `json:"email" form:"email" validate:"required,email,max=254"`
	Nickname        string         `json:"nickname" form:"nickname" validate:"required,max=60,capfirst"`
	Bio             string         `json:"bio" form:"bio" validate:"omitempty,max=1000,capfirst"`
	Password        string         `json:"password" form:"password" validate:"required,min=8,password"`
	PasswordConfirm string         `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=Password"`
	Avatar          *models.Upload `json:"-" form:"-" validate:"-"`
}

type SignUpResult struct {
	Email          string        `json:"email"`
	AvatarTempPath string        `json:"avatar_temp_path,omitempty"`
	CodeTTL        time.Duration `json:"-"`
	CodeTTLSeconds int           `json:"code_ttl_seconds"`
}

type RegistrationState string

const (
	StatePending     RegistrationState = "pending"
	StateCodeExpired RegistrationState = "code_expired"
	StateAbsent      RegistrationState = "absent"
)

// RegistrationService drives sign-up: submit form, receive code, verify, create user.
type RegistrationService struct {
	users     repositories.UserRepository
	pending   *PendingRegistrations
	files     storage.Storage
	images    *imageproc.Processor
	mailer    Notifier
	hasher    PasswordHasher
	validator *validation.Validator
	locks     *utils.KeyedMutex
	metrics   *metrics.Metrics
	log       logging.Logger
}

func NewRegistrationService(
	users repositories.UserRepository,
	pending *PendingRegistrations,
	files storage.Storage,
	images *imageproc.Processor,
	mailer Notifier,
	hasher PasswordHasher,
	validator *validation.Validator,
	m *metrics.Metrics,
	log logging.Logger,
) *RegistrationService {
	return &RegistrationService{
		users:     users,
		pending:   pending,
		files:     files,
		images:    images,
		mailer:    mailer,
		hasher:    hasher,
		validator: validator,
		locks:     utils.NewKeyedMutex(),
		metrics:   m,
		log:       log,
	}
}

func (s *RegistrationService) count(stage, result string) {
	if s.metrics != nil {
		s.metrics.Registrations.WithLabelValues(stage, result).Inc()
	}
}

// SignUp validates the form, parks it with a fresh code and mails the code.
// Returns ErrCodeDelivery together with a result: the pending entry stays, so resend works.
func (s *RegistrationService) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	in.Nickname = strings.TrimSpace(in.Nickname)
	in.Bio = strings.TrimSpace(in.Bio)

	if err := s.validateSignUp(ctx, in); err != nil {
		s.count("signup", "invalid")
		return nil, err
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	form := map[string]string{
		models.FieldEmail:        in.Email,
		models.FieldNickname:     in.Nickname,
		models.FieldBio:          in.Bio,
		models.FieldPasswordHash: hash,
	}

	unlock := s.locks.Lock(in.Email)
	defer unlock()

	code, err := s.pending.Save(ctx, in.Email, form, in.Avatar)
	if err != nil {
		return nil, err
	}
	res := &SignUpResult{
		Email:          in.Email,
		CodeTTL:        s.pending.CodeTTL(),
		CodeTTLSeconds: int(s.pending.CodeTTL().Seconds()),
	}
	if in.Avatar != nil && len(in.Avatar.Data) > 0 {
		res.AvatarTempPath = storage.TempAvatarKey(in.Avatar.Filename)
	}

	if err := s.sendCode(ctx, in.Email, code); err != nil {
		s.count("signup", "delivery_failed")
		return res, err
	}
	s.log.Info(ctx, "[registration][signup] code sent", "email", in.Email)
	s.count("signup", "ok")
	return res, nil
}

func (s *RegistrationService) validateSignUp(ctx context.Context, in SignUpInput) error {
	ve := validation.Errors{}
	if err := s.validator.Struct(in); err != nil {
		fields, ok := validation.AsErrors(err)
		if !ok {
			return err
		}
		for f, msg := range fields {
			ve.Add(f, msg)
		}
	}
	if !validation.PasswordDistinct(in.Password, in.Email, in.Nickname) {
		ve.Add("password", "must differ from email and nickname")
	}
	if in.Avatar != nil && len(in.Avatar.Data) > 0 {
		if _, err := validation.Image(in.Avatar.Data); err != nil {
			ve.Add("avatar", err.Error())
		}
	}
	if len(ve) > 0 {
		return ve
	}

	// предварительная проверка; решает уникальный индекс в БД
	taken, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return err
	}
	if taken {
		ve.Add("email", "is already registered")
	}
	taken, err = s.users.NicknameExists(ctx, in.Nickname)
	if err != nil {
		return err
	}
	if taken {
		ve.Add("nickname", "is already taken")
	}
	return ve.Err()
}

func (s *RegistrationService) sendCode(ctx context.Context, email, code string) error {
	subject, body := verificationEmail(code, s.pending.CodeTTL())
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		s.log.Error(ctx, "[registration][code] delivery failed", "email", email, "err", err)
		return fmt.Errorf("%w: %v", ErrCodeDelivery, err)
	}
	return nil
}

// Verify checks the code and creates the user. The whole check runs under a per-email lock,
// so a repeated verify with the same code sees the entry already gone.
func (s *RegistrationService) Verify(ctx context.Context, email, code, avatarHint string) (*models.User, error) {
	email = validation.NormalizeEmail(email)
	unlock := s.locks.Lock(email)
	defer unlock()

	pending, stored, err := s.pending.Load(ctx, email)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		if avatarHint != "" {
			s.pending.discardHint(ctx, avatarHint)
		}
		s.count("verify", "not_found")
		return nil, ErrPendingNotFound
	}
	if stored == "" {
		s.count("verify", "expired")
		return nil, ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(stored)) != 1 {
		s.count("verify", "invalid")
		return nil, ErrCodeInvalid
	}

	user := &models.User{
		Email:        pending.FormData[models.FieldEmail],
		Nickname:     pending.FormData[models.FieldNickname],
		Bio:          pending.FormData[models.FieldBio],
		PasswordHash: pending.FormData[models.FieldPasswordHash],
		Avatar:       models.DefaultAvatar,
	}
	promoted := ""
	if pending.AvatarPath != "" {
		key, err := s.promoteAvatar(ctx, pending.AvatarPath)
		if err != nil {
			s.log.Warn(ctx, "[registration][verify] avatar not promoted, using default", "email", email, "err", err)
		} else {
			promoted, user.Avatar = key, key
		}
	}

	if err := s.users.Create(ctx, user); err != nil {
		if promoted != "" {
			if derr := s.files.Delete(ctx, promoted); derr != nil {
				s.log.Warn(ctx, "[registration][verify] promoted avatar not removed", "path", promoted, "err", derr)
			}
		}
		if errors.Is(err, repositories.ErrEmailTaken) || errors.Is(err, repositories.ErrNicknameTaken) {
			return nil, s.resolveConflict(ctx, email, err)
		}
		return nil, err
	}

	if err := s.pending.Delete(ctx, email); err != nil {
		s.log.Warn(ctx, "[registration][verify] pending entry not removed", "email", email, "err", err)
	}
	s.log.Info(ctx, "[registration][verify] user created", "user_id", user.ID, "email", email)
	s.count("verify", "ok")
	return user, nil
}

// resolveConflict: если другой процесс уже завершил эту регистрацию, отвечаем как на
// повторный verify; иначе форма больше не может пройти и удаляется.
func (s *RegistrationService) resolveConflict(ctx context.Context, email string, cause error) error {
	pending, _, err := s.pending.Load(ctx, email)
	if err == nil && pending == nil {
		s.count("verify", "not_found")
		return ErrPendingNotFound
	}
	if err := s.pending.Delete(ctx, email); err != nil {
		s.log.Warn(ctx, "[registration][verify] pending entry not removed", "email", email, "err", err)
	}
	s.count("verify", "conflict")
	return cause
}

func (s *RegistrationService) promoteAvatar(ctx context.Context, tempKey string) (string, error) {
	data, err := s.files.Get(ctx, tempKey)
	if err != nil {
		return "", err
	}
	fitted, format, err := s.images.Fit(data, imageproc.SizeAvatar)
	if err != nil {
		return "", err
	}
	key := storage.NewKey("avatars", "avatar"+imageproc.Extension(format))
	if bytes.Equal(fitted, data) {
		// уже нужного размера: копия внутри хранилища
		err = s.files.Copy(ctx, tempKey, key)
	} else {
		err = s.files.Put(ctx, key, fitted, imageproc.ContentType(format))
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

// Resend issues a new code for a live form. The form TTL is left untouched.
func (s *RegistrationService) Resend(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	unlock := s.locks.Lock(email)
	defer unlock()

	code, err := s.pending.Resend(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPendingNotFound) {
			s.count("resend", "not_found")
		}
		return err
	}
	if err := s.sendCode(ctx, email, code); err != nil {
		s.count("resend", "delivery_failed")
		return err
	}
	s.count("resend", "ok")
	return nil
}

// State infers the registration stage from the store alone.
func (s *RegistrationService) State(ctx context.Context, email string) (RegistrationState, error) {
	pending, code, err := s.pending.Load(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return "", err
	}
	switch {
	case pending == nil:
		return StateAbsent, nil
	case code == "":
		return StateCodeExpired, nil
	}
	return StatePending, nil
}
