package storage

import (
	"context"

	"github.com/iudanet/tripsync/internal/models"
)

//go:generate moq -out user_mock.go . UserStorage

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if username already exists
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername retrieves user by username
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// GetUsersByIDs retrieves existing users by IDs, unknown IDs are skipped
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]*models.User, error)

	// UpdateDeviceToken stores push token of the user's current device
	// Returns ErrUserNotFound if user doesn't exist
	UpdateDeviceToken(ctx context.Context, userID, deviceToken string) error
}
