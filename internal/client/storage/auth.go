package storage

import (
	"context"
)

// AuthStorage хранит сессию пользователя на клиенте
type AuthStorage interface {
	// SaveAuth сохраняет данные сессии, заменяя предыдущие
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth возвращает сохраненную сессию.
	// Возвращает ErrAuthNotFound, если пользователь не входил.
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth удаляет сессию (logout)
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated проверяет, что сессия есть и refresh token не истек
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData данные сессии. Файл базы создается с правами 0600.
type AuthData struct {
	Username     string `json:"username"`
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt unix время истечения access token
	ExpiresAt int64 `json:"expires_at"`
	// RefreshExpiresAt unix время, после которого нужен повторный вход
	RefreshExpiresAt int64 `json:"refresh_expires_at,omitempty"`
}

// Name отображаемое имя пользователя
func (a *AuthData) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}
