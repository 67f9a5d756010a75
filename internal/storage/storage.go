// Package storage keeps uploaded files (avatars, recipe pictures) behind one
// key-addressed interface. Keys are slash-separated relative paths.
package storage

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempPrefix marks objects that belong to unfinished sign-ups.
const TempPrefix = "tmp/"

var (
	ErrNotFound   = errors.New("file not found")
	ErrInvalidKey = errors.New("invalid file key")
)

type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	// ModTime возвращает время последней записи объекта, ErrNotFound если его нет.
	ModTime(ctx context.Context, key string) (time.Time, error)
	// PurgeTemp удаляет объекты под TempPrefix старше olderThan, возвращает их количество.
	PurgeTemp(ctx context.Context, olderThan time.Duration) (int, error)
}

// TempAvatarKey: tmp/avatars/<basename>. Одинаковые имена файлов перезаписывают друг друга.
func TempAvatarKey(filename string) string {
	return TempPrefix + "avatars/" + safeBase(filename)
}

// NewKey returns dir/<uuid><ext> for a permanent object.
func NewKey(dir, filename string) string {
	return dir + "/" + uuid.NewString() + strings.ToLower(path.Ext(safeBase(filename)))
}

// IsTempKey reports whether key is a clean key under TempPrefix.
func IsTempKey(key string) bool {
	k, err := cleanKey(key)
	return err == nil && strings.HasPrefix(k, TempPrefix)
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, `\`) {
		return "", ErrInvalidKey
	}
	k := path.Clean("/" + key)[1:]
	if k == "" || k != strings.TrimPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	return k, nil
}

func safeBase(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.TrimLeft(b.String(), ".")
	if s == "" {
		return "upload"
	}
	return s
}
