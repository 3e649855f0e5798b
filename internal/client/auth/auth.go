// Package auth управляет сессией пользователя на клиенте: вход, выход
// и обновление access token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/tripsync/internal/client/api"
	"github.com/iudanet/tripsync/internal/client/storage"
	"github.com/iudanet/tripsync/internal/validation"
	pkgapi "github.com/iudanet/tripsync/pkg/api"
)

// refreshSkew access token обновляется заранее, чтобы не истечь в полете
const refreshSkew = 30 * time.Second

var (
	// ErrNotAuthenticated пользователь не вошел или сессия истекла
	ErrNotAuthenticated = errors.New("not authenticated, please login")
)

// Service предоставляет функции авторизации.
// Реализует api.TokenSource.
type Service struct {
	backend Backend
	store   storage.AuthStorage
	meta    storage.MetadataStorage
	views   storage.ViewCache
	logger  *slog.Logger
	now     func() time.Time

	// mu не дает двум запросам одновременно обновлять токен
	mu sync.Mutex
}

var _ api.TokenSource = (*Service)(nil)

// NewService создает новый сервис авторизации. views может быть nil.
func NewService(logger *slog.Logger, backend Backend, store storage.AuthStorage, meta storage.MetadataStorage, views storage.ViewCache) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		backend: backend,
		store:   store,
		meta:    meta,
		views:   views,
		logger:  logger,
		now:     time.Now,
	}
}

// Register регистрирует нового пользователя. Вход выполняется отдельно.
func (s *Service) Register(ctx context.Context, username, password, displayName string) (string, error) {
	// ошибки validation уже содержат имя поля
	if err := validation.ValidateUsername(username); err != nil {
		return "", err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", err
	}
	if err := validation.ValidateDisplayName(displayName); err != nil {
		return "", err
	}

	resp, err := s.backend.Register(ctx, pkgapi.RegisterRequest{
		Username:    username,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}

	return resp.UserID, nil
}

// Login выполняет аутентификацию и сохраняет сессию
func (s *Service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, errors.New("password is required")
	}

	deviceID, err := s.getOrCreateDeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	resp, err := s.backend.Login(ctx, pkgapi.LoginRequest{
		Username:    username,
		Password:    password,
		DeviceToken: deviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	// кеш представлений принадлежит предыдущему пользователю
	if prev, err := s.store.GetAuth(ctx); err == nil && prev.UserID != resp.UserID {
		s.clearViews(ctx)
	}

	auth := s.authFromResponse(resp)
	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Debug("logged in", slog.String("user_id", auth.UserID))
	return auth, nil
}

// Logout удаляет локальную сессию и отзывает refresh token на сервере.
// Ошибка сервера не мешает локальному выходу.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return ErrNotAuthenticated
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := s.backend.Logout(ctx, auth.AccessToken, auth.RefreshToken); err != nil {
		s.logger.Warn("failed to logout on server", slog.Any("error", err))
	}

	if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete local session: %w", err)
	}
	s.clearViews(ctx)
	return nil
}

// Session возвращает текущую сессию или ErrNotAuthenticated
func (s *Service) Session(ctx context.Context) (*storage.AuthData, error) {
	auth, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return auth, nil
}

// IsAuthenticated проверяет наличие действующей сессии
func (s *Service) IsAuthenticated(ctx context.Context) (bool, error) {
	return s.store.IsAuthenticated(ctx)
}

// Token возвращает действующий access token, при необходимости обновляя его
func (s *Service) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, err := s.Session(ctx)
	if err != nil {
		return "", err
	}

	now := s.now()
	if now.Add(refreshSkew).Unix() < auth.ExpiresAt {
		return auth.AccessToken, nil
	}
	if auth.RefreshExpiresAt > 0 && now.Unix() >= auth.RefreshExpiresAt {
		s.dropSession(ctx)
		return "", ErrNotAuthenticated
	}

	resp, err := s.backend.Refresh(ctx, auth.RefreshToken)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.dropSession(ctx)
			return "", ErrNotAuthenticated
		}
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	refreshed := s.authFromResponse(resp)
	if refreshed.Username == "" {
		refreshed.Username = auth.Username
	}
	if err := s.store.SaveAuth(ctx, refreshed); err != nil {
		return "", fmt.Errorf("failed to save refreshed session: %w", err)
	}

	s.logger.Debug("access token refreshed")
	return refreshed.AccessToken, nil
}

func (s *Service) authFromResponse(resp *pkgapi.TokenResponse) *storage.AuthData {
	return &storage.AuthData{
		Username:         resp.Username,
		UserID:           resp.UserID,
		DisplayName:      resp.DisplayName,
		AccessToken:      resp.AccessToken,
		RefreshToken:     resp.RefreshToken,
		ExpiresAt:        s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
		RefreshExpiresAt: resp.RefreshExpiresAt,
	}
}

func (s *Service) dropSession(ctx context.Context) {
	if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		s.logger.Warn("failed to delete expired session", slog.Any("error", err))
	}
}

func (s *Service) clearViews(ctx context.Context) {
	if s.views == nil {
		return
	}
	if err := s.views.ClearViews(ctx); err != nil {
		s.logger.Warn("failed to clear cached views", slog.Any("error", err))
	}
}

// getOrCreateDeviceID возвращает идентификатор установки клиента.
// Сервер использует его как адрес push уведомлений.
func (s *Service) getOrCreateDeviceID(ctx context.Context) (string, error) {
	id, err := s.meta.GetDeviceID(ctx)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = uuid.New().String()
	if err := s.meta.SaveDeviceID(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}
