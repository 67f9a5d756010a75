package repositories

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrNicknameTaken = errors.New("nickname already taken")
	ErrDuplicate     = errors.New("duplicate record")
	ErrInUse         = errors.New("record is referenced")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// mapPQError переводит нарушения ограничений Postgres в ошибки репозитория.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pqUniqueViolation:
		c := pqErr.Constraint
		switch {
		case strings.Contains(c, "email"):
			return ErrEmailTaken
		case strings.Contains(c, "nickname"):
			return ErrNicknameTaken
		default:
			return ErrDuplicate
		}
	case pqForeignKeyViolation:
		return ErrInUse
	}
	return err
}
