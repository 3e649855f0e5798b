package models

import "time"

// User представляет пользователя в системе
type User struct {
	CreatedAt    time.Time `json:"created_at"`   // время создания
	UpdatedAt    time.Time `json:"updated_at"`   // время последнего обновления
	ID           string    `json:"id"`           // UUID пользователя
	Username     string    `json:"username"`     // уникальный username
	DisplayName  string    `json:"display_name"` // имя для участников поездки
	PasswordHash string    `json:"-"`            // bcrypt хеш пароля
	DeviceToken  string    `json:"device_token"` // токен устройства для push уведомлений
}

// Name возвращает отображаемое имя пользователя
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// RefreshToken представляет refresh token пользователя
type RefreshToken struct {
	ExpiresAt time.Time `json:"expires_at"` // время истечения
	CreatedAt time.Time `json:"created_at"` // время создания
	TokenHash string    `json:"token_hash"` // SHA256 хеш токена
	UserID    string    `json:"user_id"`    // ID пользователя
}

// Expired проверяет, истек ли токен на момент now
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
