package boltdb

import (
	"context"
	"errors"

	"github.com/iudanet/tripsync/internal/client/storage"
)

// sessionKey клиент хранит одну сессию
var sessionKey = []byte("session")

// SaveAuth заменяет сохраненную сессию
func (s *Storage) SaveAuth(_ context.Context, auth *storage.AuthData) error {
	if auth == nil {
		return errors.New("auth data is nil")
	}
	return s.putRecord(bucketAuth, sessionKey, auth)
}

// GetAuth возвращает сессию или storage.ErrAuthNotFound
func (s *Storage) GetAuth(_ context.Context) (*storage.AuthData, error) {
	return getRecord[storage.AuthData](s, bucketAuth, sessionKey, storage.ErrAuthNotFound)
}

// DeleteAuth удаляет сессию при logout
func (s *Storage) DeleteAuth(_ context.Context) error {
	return s.deleteRecord(bucketAuth, sessionKey, storage.ErrAuthNotFound)
}

// IsAuthenticated true, пока жив refresh token. Истекший access token
// обновляется при первом запросе.
func (s *Storage) IsAuthenticated(ctx context.Context) (bool, error) {
	auth, err := s.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if auth.RefreshToken == "" {
		return false, nil
	}
	return auth.RefreshExpiresAt == 0 || s.now().Unix() < auth.RefreshExpiresAt, nil
}
