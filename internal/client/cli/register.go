package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newRegisterCommand(get func() *Cli) *cobra.Command {
	var username, displayName string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().runRegister(cmd.Context(), username, displayName)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted if empty)")
	cmd.Flags().StringVar(&displayName, "display-name", "", "name shown to other trip members")
	return cmd
}

func (c *Cli) runRegister(ctx context.Context, username, displayName string) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	var err error
	if username == "" {
		username, err = c.io.ReadInput("Username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}
	if displayName == "" {
		displayName, err = c.io.ReadInput("Display name (optional): ")
		if err != nil {
			return fmt.Errorf("failed to read display name: %w", err)
		}
	}

	password, err := c.io.ReadPassword("Password (min 8 chars): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	c.io.Println()
	c.io.Println("Registering user...")

	userID, err := c.auth.Register(ctx, username, password, displayName)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.io.Printf("User ID:  %s\n", userID)
	c.io.Printf("Username: %s\n", username)
	c.io.Println()
	c.io.Println("Share your user ID with trip owners so they can add you to their trips.")
	c.io.Println("Please run 'tripsync login' to start using the service.")
	return nil
}
