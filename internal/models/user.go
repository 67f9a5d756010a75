package models

import "time"

const DefaultAvatar = "avatars/default.png"

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	Bio          string    `json:"bio"`
	Avatar       string    `json:"avatar"`
	PasswordHash string    `json:"-"` // не отдаём наружу
	IsStaff      bool      `json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`

	// refresh-хранение в БД
	RefreshToken     *string    `json:"-"`
	RefreshExpiresAt *time.Time `json:"-"`
	RefreshRevoked   bool       `json:"-"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// PublicProfile is what other users see.
type PublicProfile struct {
	ID       int       `json:"id"`
	Nickname string    `json:"nickname"`
	Bio      string    `json:"bio"`
	Avatar   string    `json:"avatar"`
	Recipes  []*Recipe `json:"recipes"`
}
