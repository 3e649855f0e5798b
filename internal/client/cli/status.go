package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tripsync/internal/client/auth"
)

func newStatusCommand(get func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().runStatus(cmd.Context())
		},
	}
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Authentication Status ===")
	c.io.Println()
	if c.serverURL != "" {
		c.io.Printf("Server: %s\n", c.serverURL)
	}

	session, err := c.auth.Session(ctx)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		c.io.Println("Status: Not authenticated")
		c.io.Println()
		c.io.Println("Run 'tripsync login' to authenticate.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	now := c.now()
	c.io.Println("Status: Authenticated")
	c.io.Printf("Username: %s\n", session.Username)
	if session.DisplayName != "" {
		c.io.Printf("Display name: %s\n", session.DisplayName)
	}
	c.io.Printf("User ID: %s\n", session.UserID)

	expiresAt := time.Unix(session.ExpiresAt, 0)
	c.io.Printf("Access token expires: %s\n", expiresAt.Format(time.RFC3339))

	if session.RefreshExpiresAt > 0 {
		refreshAt := time.Unix(session.RefreshExpiresAt, 0)
		remaining := refreshAt.Sub(now)
		if remaining > 0 {
			c.io.Printf("Session time remaining: %s\n", remaining.Round(time.Second))
		} else {
			c.io.Println("⚠️  Session has expired. Please login again.")
		}
	}
	return nil
}
