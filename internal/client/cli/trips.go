package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tripsync/internal/client/storage"
	"github.com/iudanet/tripsync/internal/models"
)

func newTripsCommand(get func() *Cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trips",
		Short: "Manage your trips",
	}

	var offline bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List trips you are a member of",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().runTripsList(cmd.Context(), offline)
		},
	}
	list.Flags().BoolVar(&offline, "offline", false, "show the last synchronized list without connecting")

	var create tripForm
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().runTripsCreate(cmd.Context(), create)
		},
	}
	createCmd.Flags().StringVar(&create.Name, "name", "", "trip name")
	createCmd.Flags().StringVar(&create.Destination, "destination", "", "destination")
	createCmd.Flags().StringVar(&create.Start, "start", "", "first day, YYYY-MM-DD")
	createCmd.Flags().IntVar(&create.Days, "days", 1, "number of days")
	createCmd.Flags().StringSliceVar(&create.Members, "member", nil, "user id of another member (repeatable)")
	createCmd.Flags().StringVar(&create.CoverURL, "cover", "", "cover image URL")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("start")

	deleteCmd := &cobra.Command{
		Use:   "delete <trip>",
		Short: "Delete a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runTripsDelete(cmd.Context(), args[0])
		},
	}

	addMember := &cobra.Command{
		Use:   "add-member <trip> <user-id>",
		Short: "Invite a user to a trip",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runTripsAddMember(cmd.Context(), args[0], args[1])
		},
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Show trips and follow changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().runTripsWatch(cmd.Context())
		},
	}

	cmd.AddCommand(list, createCmd, deleteCmd, addMember, watch)
	return cmd
}

// tripForm параметры новой поездки из флагов
type tripForm struct {
	Name        string
	Destination string
	Start       string
	CoverURL    string
	Members     []string
	Days        int
}

func (c *Cli) runTripsList(ctx context.Context, offline bool) error {
	c.io.Println("=== Trips ===")
	c.io.Println()

	p, err := c.openPlanner(ctx)
	if err != nil {
		return err
	}

	if offline {
		trips, savedAt, err := p.CachedTrips(ctx)
		if errors.Is(err, storage.ErrViewNotFound) {
			return errors.New("no cached trips yet, run 'tripsync trips list' while online first")
		}
		if err != nil {
			return err
		}
		c.io.Printf("Offline copy from %s\n", savedAt.Local().Format(time.RFC3339))
		c.io.Println()
		c.printTrips(trips)
		return nil
	}

	list, err := p.Trips(ctx)
	if err != nil {
		return err
	}
	defer c.closeView(ctx, list)

	if err := waitReady(ctx, list); err != nil {
		return err
	}
	c.printTrips(list.Trips())
	return nil
}

func (c *Cli) runTripsCreate(ctx context.Context, form tripForm) error {
	start, err := parseDate(form.Start, time.UTC)
	if err != nil {
		return err
	}

	p, err := c.openPlanner(ctx)
	if err != nil {
		return err
	}
	list, err := p.Trips(ctx)
	if err != nil {
		return err
	}
	defer c.closeView(ctx, list)
	if err := waitReady(ctx, list); err != nil {
		return err
	}

	trip, err := list.CreateTrip(ctx, models.Trip{
		Name:        form.Name,
		Destination: form.Destination,
		StartDate:   start,
		Days:        form.Days,
		Members:     form.Members,
		CoverURL:    form.CoverURL,
	})
	if err != nil {
		return err
	}

	c.io.Println("✓ Trip created!")
	c.io.Printf("ID:    %s\n", trip.ID)
	c.io.Printf("Name:  %s\n", trip.Name)
	c.io.Printf("Dates: %s\n", formatDates(trip))
	return nil
}

func (c *Cli) runTripsDelete(ctx context.Context, ref string) error {
	p, err := c.openPlanner(ctx)
	if err != nil {
		return err
	}
	list, err := p.Trips(ctx)
	if err != nil {
		return err
	}
	defer c.closeView(ctx, list)
	if err := waitReady(ctx, list); err != nil {
		return err
	}

	trip, ok := list.Find(ref)
	if !ok {
		return fmt.Errorf("trip %q not found", ref)
	}
	if err := list.DeleteTrip(ctx, trip.ID); err != nil {
		return err
	}

	c.io.Printf("✓ Trip %q deleted.\n", trip.Name)
	return nil
}

func (c *Cli) runTripsAddMember(ctx context.Context, ref, userID string) error {
	p, err := c.openPlanner(ctx)
	if err != nil {
		return err
	}
	list, err := p.Trips(ctx)
	if err != nil {
		return err
	}
	defer c.closeView(ctx, list)
	if err := waitReady(ctx, list); err != nil {
		return err
	}

	trip, ok := list.Find(ref)
	if !ok {
		return fmt.Errorf("trip %q not found", ref)
	}
	if err := list.AddMember(ctx, trip.ID, userID); err != nil {
		return err
	}

	c.io.Printf("✓ User %s added to %q.\n", userID, trip.Name)
	return nil
}

func (c *Cli) runTripsWatch(ctx context.Context) error {
	p, err := c.openPlanner(ctx)
	if err != nil {
		return err
	}
	list, err := p.Trips(ctx)
	if err != nil {
		return err
	}
	defer c.closeView(ctx, list)
	if err := waitReady(ctx, list); err != nil {
		return err
	}

	c.io.Println("=== Trips (watching, Ctrl+C to stop) ===")
	c.io.Println()
	c.printTrips(list.Trips())

	stop := list.Listen(func(trips []models.Trip) {
		c.io.Printf("--- updated at %s ---\n", c.now().Format(clockLayout))
		c.printTrips(trips)
	})
	defer stop()

	return c.watchUntilDone(ctx, list)
}
