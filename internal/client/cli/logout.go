package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCommand(get func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and delete the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().runLogout(cmd.Context())
		},
	}
}

func (c *Cli) runLogout(ctx context.Context) error {
	c.io.Println("=== Logout ===")

	if err := c.auth.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session and cached trips have been deleted.")
	return nil
}
