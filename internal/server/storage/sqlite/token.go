package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/iudanet/tripsync/internal/models"
	"github.com/iudanet/tripsync/internal/server/storage"
)

const tableRefreshTokens = "refresh_tokens"

// SaveRefreshToken сохраняет хеш refresh token. Повторное сохранение того же
// хеша перезаписывает срок жизни.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.TokenHash == "" {
		return storage.ErrInvalidToken
	}

	query := squirrel.Insert(tableRefreshTokens).
		Options("OR REPLACE").
		Columns("token_hash", "user_id", "expires_at", "created_at").
		Values(token.TokenHash, token.UserID, token.ExpiresAt.UnixNano(), token.CreatedAt.UnixNano())

	if _, err := s.execAffected(ctx, query); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken ищет токен по хешу, storage.ErrTokenNotFound если его нет
func (s *Storage) GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query, args, err := squirrel.
		Select("token_hash", "user_id", "expires_at", "created_at").
		From(tableRefreshTokens).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		token                models.RefreshToken
		expiresAt, createdAt int64
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&token.TokenHash, &token.UserID, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	token.ExpiresAt = fromUnixNano(expiresAt)
	token.CreatedAt = fromUnixNano(createdAt)
	return &token, nil
}

// DeleteRefreshToken отзывает один токен
func (s *Storage) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	n, err := s.execAffected(ctx, squirrel.Delete(tableRefreshTokens).Where(squirrel.Eq{"token_hash": tokenHash}))
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	if n == 0 {
		return storage.ErrTokenNotFound
	}
	return nil
}

// DeleteUserTokens отзывает все сессии пользователя
func (s *Storage) DeleteUserTokens(ctx context.Context, userID string) (int, error) {
	n, err := s.execAffected(ctx, squirrel.Delete(tableRefreshTokens).Where(squirrel.Eq{"user_id": userID}))
	if err != nil {
		return 0, fmt.Errorf("failed to delete user tokens: %w", err)
	}
	return n, nil
}

// DeleteExpiredTokens удаляет токены, истекшие к моменту now
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	n, err := s.execAffected(ctx, squirrel.Delete(tableRefreshTokens).Where(squirrel.LtOrEq{"expires_at": now.UnixNano()}))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return n, nil
}

// execAffected выполняет запрос и возвращает число затронутых строк
func (s *Storage) execAffected(ctx context.Context, b squirrel.Sqlizer) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(rows), nil
}
