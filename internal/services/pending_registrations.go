package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"cookbook/internal/cache"
	"cookbook/internal/logging"
	"cookbook/internal/models"
	"cookbook/internal/storage"
	"cookbook/internal/utils"
)

func formKey(email string) string { return "form:" + email }
func codeKey(email string) string { return "code:" + email }

// PendingRegistrations keeps unfinished sign-ups in the ephemeral store.
// form:{email} and code:{email} live and expire independently.
type PendingRegistrations struct {
	store   cache.Store
	files   storage.Storage
	codeTTL time.Duration
	dataTTL time.Duration
	newCode func() (string, error)
	now     func() time.Time
	log     logging.Logger
}

func NewPendingRegistrations(store cache.Store, files storage.Storage, codeTTL, dataTTL time.Duration, log logging.Logger) *PendingRegistrations {
	return &PendingRegistrations{
		store:   store,
		files:   files,
		codeTTL: codeTTL,
		dataTTL: dataTTL,
		newCode: utils.NewVerificationCode,
		now:     time.Now,
		log:     log,
	}
}

func (p *PendingRegistrations) CodeTTL() time.Duration { return p.codeTTL }

// Save перезаписывает незавершённую регистрацию и возвращает новый код.
func (p *PendingRegistrations) Save(ctx context.Context, email string, form map[string]string, avatar *models.Upload) (string, error) {
	pending := models.PendingRegistration{FormData: form}
	if avatar != nil && len(avatar.Data) > 0 {
		key := storage.TempAvatarKey(avatar.Filename)
		if err := p.files.Put(ctx, key, avatar.Data, ""); err != nil {
			return "", fmt.Errorf("save temp avatar: %w", err)
		}
		pending.AvatarPath = key
	}

	value, err := json.Marshal(pending)
	if err != nil {
		return "", fmt.Errorf("encode pending registration: %w", err)
	}
	code, err := p.newCode()
	if err != nil {
		return "", err
	}
	if err := p.store.Set(ctx, formKey(email), value, p.dataTTL); err != nil {
		return "", fmt.Errorf("store form: %w", err)
	}
	if err := p.store.Set(ctx, codeKey(email), []byte(code), p.codeTTL); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Load возвращает nil, если формы нет, и пустой код, если код истёк.
func (p *PendingRegistrations) Load(ctx context.Context, email string) (*models.PendingRegistration, string, error) {
	raw, ok, err := p.store.Get(ctx, formKey(email))
	if err != nil {
		return nil, "", fmt.Errorf("load form: %w", err)
	}
	var pending *models.PendingRegistration
	if ok {
		pending = &models.PendingRegistration{}
		if err := json.Unmarshal(raw, pending); err != nil {
			return nil, "", fmt.Errorf("decode pending registration: %w", err)
		}
	}

	code, ok, err := p.store.Get(ctx, codeKey(email))
	if err != nil {
		return nil, "", fmt.Errorf("load code: %w", err)
	}
	if !ok {
		return pending, "", nil
	}
	return pending, string(code), nil
}

// Delete is idempotent. Temp avatar removal is best-effort.
func (p *PendingRegistrations) Delete(ctx context.Context, email string) error {
	raw, ok, err := p.store.Get(ctx, formKey(email))
	if err != nil {
		p.log.Warn(ctx, "[registration][delete] read form failed", "email", email, "err", err)
	}
	if ok {
		var pending models.PendingRegistration
		if err := json.Unmarshal(raw, &pending); err == nil && pending.AvatarPath != "" {
			p.removeTemp(ctx, pending.AvatarPath)
		}
	}
	if err := p.store.Delete(ctx, formKey(email), codeKey(email)); err != nil {
		return fmt.Errorf("delete pending registration: %w", err)
	}
	return nil
}

// Resend выдаёт новый код; TTL формы не продлевается.
func (p *PendingRegistrations) Resend(ctx context.Context, email string) (string, error) {
	_, ok, err := p.store.Get(ctx, formKey(email))
	if err != nil {
		return "", fmt.Errorf("load form: %w", err)
	}
	if !ok {
		return "", ErrPendingNotFound
	}
	code, err := p.newCode()
	if err != nil {
		return "", err
	}
	if err := p.store.Set(ctx, codeKey(email), []byte(code), p.codeTTL); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// discardHint убирает temp-аватар, путь к которому прислал клиент после истечения формы.
// Живая форма перезаписывает файл не раньше чем dataTTL назад, поэтому более свежий файл
// принадлежит чужой незавершённой регистрации и остаётся на месте.
func (p *PendingRegistrations) discardHint(ctx context.Context, key string) {
	if key != storage.TempAvatarKey(path.Base(key)) {
		p.log.Warn(ctx, "[registration][cleanup] avatar hint is not a temp avatar key", "path", key)
		return
	}
	modified, err := p.files.ModTime(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		p.log.Warn(ctx, "[registration][cleanup] avatar hint not checked", "path", key, "err", err)
		return
	}
	if p.now().Sub(modified) < p.dataTTL {
		p.log.Info(ctx, "[registration][cleanup] avatar hint kept, file is still fresh", "path", key)
		return
	}
	p.log.Info(ctx, "[registration][cleanup] removing orphaned avatar by client hint", "path", key)
	p.removeTemp(ctx, key)
}

// removeTemp удаляет только объекты под tmp/.
func (p *PendingRegistrations) removeTemp(ctx context.Context, key string) {
	if !storage.IsTempKey(key) {
		p.log.Warn(ctx, "[registration][cleanup] refusing to delete non-temp path", "path", key)
		return
	}
	if err := p.files.Delete(ctx, key); err != nil {
		p.log.Warn(ctx, "[registration][cleanup] temp avatar not removed", "path", key, "err", err)
	}
}
