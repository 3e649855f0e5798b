package auth

import (
	"context"

	"github.com/iudanet/tripsync/pkg/api"
)

//go:generate moq -out backend_mock.go . Backend

// Backend методы сервера, которые нужны для управления сессией.
// Реализуется *api.Client.
type Backend interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}
