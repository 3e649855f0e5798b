package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tripsync/internal/client/planner"
	"github.com/iudanet/tripsync/internal/client/storage"
	"github.com/iudanet/tripsync/internal/models"
)

func newPlacesCommand(get func() *Cli) *cobra.Command {
	var tz string
	cmd := &cobra.Command{
		Use:   "places",
		Short: "Plan the itinerary and the wish list of a trip",
	}
	cmd.PersistentFlags().StringVar(&tz, "tz", "", "time zone of the trip, IANA name (default: local)")

	var day int
	list := &cobra.Command{
		Use:   "list <trip>",
		Short: "Show the itinerary day by day and the wish list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runPlacesList(cmd.Context(), args[0], tz, day)
		},
	}
	list.Flags().IntVar(&day, "day", 0, "show only this day (1-based)")

	var offline bool
	wishlist := &cobra.Command{
		Use:   "wishlist <trip>",
		Short: "Show places that are not scheduled yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runPlacesWishList(cmd.Context(), args[0], tz, offline)
		},
	}
	wishlist.Flags().BoolVar(&offline, "offline", false, "show the last synchronized wish list; <trip> must be a trip id")

	var form placeForm
	add := &cobra.Command{
		Use:   "add <trip>",
		Short: "Add a place to the wish list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runPlacesAdd(cmd.Context(), args[0], tz, form)
		},
	}
	add.Flags().StringVar(&form.Name, "name", "", "place name")
	add.Flags().StringVar(&form.Address, "address", "", "address")
	add.Flags().Float64Var(&form.Latitude, "lat", 0, "latitude")
	add.Flags().Float64Var(&form.Longitude, "lon", 0, "longitude")
	add.Flags().IntVar(&form.Duration, "duration", 60, "planned visit duration in minutes")
	_ = add.MarkFlagRequired("name")

	var (
		at       string
		atDay    int
		duration int
	)
	arrange := &cobra.Command{
		Use:   "arrange <trip> <place>",
		Short: "Schedule a place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runPlacesArrange(cmd.Context(), args[0], args[1], tz, at, atDay, duration)
		},
	}
	arrange.Flags().StringVar(&at, "at", "", `start time: "YYYY-MM-DD HH:MM", or "HH:MM" together with --day`)
	arrange.Flags().IntVar(&atDay, "day", 0, "trip day (1-based) for --at HH:MM")
	arrange.Flags().IntVar(&duration, "duration", 0, "visit duration in minutes (keeps current if 0)")
	_ = arrange.MarkFlagRequired("at")

	unarrange := &cobra.Command{
		Use:   "unarrange <trip> <place>",
		Short: "Move a scheduled place back to the wish list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runPlacesUnarrange(cmd.Context(), args[0], args[1], tz)
		},
	}

	swap := &cobra.Command{
		Use:   "swap <trip> <place> <place>",
		Short: "Swap the scheduled times of two places",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runPlacesSwap(cmd.Context(), args[0], args[1], args[2], tz)
		},
	}

	remove := &cobra.Command{
		Use:   "remove <trip> <place>",
		Short: "Remove a place from the trip",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runPlacesRemove(cmd.Context(), args[0], args[1], tz)
		},
	}

	watch := &cobra.Command{
		Use:   "watch <trip>",
		Short: "Show the itinerary and follow changes until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runPlacesWatch(cmd.Context(), args[0], tz)
		},
	}

	cmd.AddCommand(list, wishlist, add, arrange, unarrange, swap, remove, watch)
	return cmd
}

// placeForm параметры нового места из флагов
type placeForm struct {
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
	Duration  int
}

// itinerarySession открытое расписание поездки на время команды
type itinerarySession struct {
	it  *planner.Itinerary
	loc *time.Location
}

func (c *Cli) openItinerary(ctx context.Context, tripRef, tz string) (*itinerarySession, func(), error) {
	loc, err := loadLocation(tz)
	if err != nil {
		return nil, nil, err
	}
	p, err := c.openPlanner(ctx)
	if err != nil {
		return nil, nil, err
	}
	trip, err := c.resolveTrip(ctx, p, tripRef)
	if err != nil {
		return nil, nil, err
	}

	it, err := p.Itinerary(ctx, trip, loc)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { c.closeView(ctx, it) }
	if err := waitReady(ctx, it); err != nil {
		closeFn()
		return nil, nil, err
	}
	return &itinerarySession{it: it, loc: loc}, closeFn, nil
}

func (c *Cli) runPlacesList(ctx context.Context, tripRef, tz string, day int) error {
	s, closeFn, err := c.openItinerary(ctx, tripRef, tz)
	if err != nil {
		return err
	}
	defer closeFn()

	trip := s.it.Trip()
	if day < 0 || day > trip.Days {
		return fmt.Errorf("--day must be between 1 and %d", trip.Days)
	}

	c.io.Printf("=== %s ===\n", trip.Name)
	c.io.Println()
	c.printItinerary(s.it, s.loc, day)
	if day == 0 {
		c.printWishList(s.it.WishList(), s.loc)
	}
	return nil
}

func (c *Cli) runPlacesWishList(ctx context.Context, tripRef, tz string, offline bool) error {
	if offline {
		loc, err := loadLocation(tz)
		if err != nil {
			return err
		}
		p, err := c.openPlanner(ctx)
		if err != nil {
			return err
		}
		places, savedAt, err := p.CachedWishList(ctx, tripRef)
		if errors.Is(err, storage.ErrViewNotFound) {
			return fmt.Errorf("no cached wish list for trip %q", tripRef)
		}
		if err != nil {
			return err
		}
		c.io.Printf("Offline copy from %s\n", savedAt.Local().Format(time.RFC3339))
		c.printWishList(places, loc)
		return nil
	}

	s, closeFn, err := c.openItinerary(ctx, tripRef, tz)
	if err != nil {
		return err
	}
	defer closeFn()

	c.printWishList(s.it.WishList(), s.loc)
	return nil
}

func (c *Cli) runPlacesAdd(ctx context.Context, tripRef, tz string, form placeForm) error {
	s, closeFn, err := c.openItinerary(ctx, tripRef, tz)
	if err != nil {
		return err
	}
	defer closeFn()

	place, err := s.it.AddPlace(ctx, models.Place{
		Name:            form.Name,
		Address:         form.Address,
		Latitude:        form.Latitude,
		Longitude:       form.Longitude,
		DurationMinutes: form.Duration,
	})
	if err != nil {
		return err
	}

	c.io.Printf("✓ %q added to the wish list (id %s).\n", place.Name, place.ID)
	return nil
}

func (c *Cli) runPlacesArrange(ctx context.Context, tripRef, placeRef, tz, at string, day, duration int) error {
	s, closeFn, err := c.openItinerary(ctx, tripRef, tz)
	if err != nil {
		return err
	}
	defer closeFn()

	place, err := resolvePlace(s.it, placeRef)
	if err != nil {
		return err
	}
	start, err := parseDateTime(at, s.it.Trip(), day, s.loc)
	if err != nil {
		return err
	}
	if err := s.it.Arrange(ctx, place.ID, start, duration); err != nil {
		return err
	}

	c.io.Printf("✓ %q scheduled at %s.\n", place.Name, start.Format(dateTimeLayout))
	return nil
}

func (c *Cli) runPlacesUnarrange(ctx context.Context, tripRef, placeRef, tz string) error {
	s, closeFn, err := c.openItinerary(ctx, tripRef, tz)
	if err != nil {
		return err
	}
	defer closeFn()

	place, err := resolvePlace(s.it, placeRef)
	if err != nil {
		return err
	}
	if err := s.it.Unarrange(ctx, place.ID); err != nil {
		return err
	}

	c.io.Printf("✓ %q moved to the wish list.\n", place.Name)
	return nil
}

func (c *Cli) runPlacesSwap(ctx context.Context, tripRef, firstRef, secondRef, tz string) error {
	s, closeFn, err := c.openItinerary(ctx, tripRef, tz)
	if err != nil {
		return err
	}
	defer closeFn()

	first, err := resolvePlace(s.it, firstRef)
	if err != nil {
		return err
	}
	second, err := resolvePlace(s.it, secondRef)
	if err != nil {
		return err
	}
	if err := s.it.Swap(ctx, first.ID, second.ID); err != nil {
		return err
	}

	c.io.Printf("✓ Swapped %q and %q.\n", first.Name, second.Name)
	return nil
}

func (c *Cli) runPlacesRemove(ctx context.Context, tripRef, placeRef, tz string) error {
	s, closeFn, err := c.openItinerary(ctx, tripRef, tz)
	if err != nil {
		return err
	}
	defer closeFn()

	place, err := resolvePlace(s.it, placeRef)
	if err != nil {
		return err
	}
	if err := s.it.RemovePlace(ctx, place.ID); err != nil {
		return err
	}

	c.io.Printf("✓ %q removed.\n", place.Name)
	return nil
}

func (c *Cli) runPlacesWatch(ctx context.Context, tripRef, tz string) error {
	s, closeFn, err := c.openItinerary(ctx, tripRef, tz)
	if err != nil {
		return err
	}
	defer closeFn()

	render := func() {
		c.io.Printf("=== %s (watching, Ctrl+C to stop) ===\n", s.it.Trip().Name)
		c.io.Println()
		c.printItinerary(s.it, s.loc, 0)
		c.printWishList(s.it.WishList(), s.loc)
	}
	render()

	stop := s.it.Listen(func() {
		c.io.Printf("--- updated at %s ---\n", c.now().Format(clockLayout))
		render()
	})
	defer stop()

	return c.watchUntilDone(ctx, s.it)
}
