package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/tripsync/internal/client/planner"
	"github.com/iudanet/tripsync/internal/models"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
	clockLayout    = "15:04"
)

// shortID сокращает UUID для вывода
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// parseDateTime принимает "YYYY-MM-DD HH:MM" или "HH:MM" с номером дня поездки
func parseDateTime(value string, trip models.Trip, day int, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dateTimeLayout, value, loc); err == nil {
		return t, nil
	}
	clock, err := time.ParseInLocation(clockLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected \"YYYY-MM-DD HH:MM\" or \"HH:MM\" with --day", value)
	}
	if day < 1 || day > trip.Days {
		return time.Time{}, fmt.Errorf("--day must be between 1 and %d", trip.Days)
	}
	y, m, d := trip.StartDate.Date()
	return time.Date(y, m, d+day-1, clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}

func formatDates(trip models.Trip) string {
	if trip.StartDate.IsZero() {
		return "not set"
	}
	last := trip.DayDate(trip.Days - 1)
	return fmt.Sprintf("%s .. %s (%d days)",
		trip.StartDate.Format(dateLayout), last.Format(dateLayout), trip.Days)
}

func (c *Cli) printTrips(trips []models.Trip) {
	if len(trips) == 0 {
		c.io.Println("No trips found.")
		c.io.Println()
		c.io.Println("Use 'tripsync trips create' to plan your first trip.")
		return
	}

	c.io.Printf("Found %d trip(s):\n", len(trips))
	c.io.Println()
	for i, trip := range trips {
		c.io.Printf("%d. %s\n", i+1, trip.Name)
		c.io.Printf("   ID:          %s\n", trip.ID)
		if trip.Destination != "" {
			c.io.Printf("   Destination: %s\n", trip.Destination)
		}
		c.io.Printf("   Dates:       %s\n", formatDates(trip))
		c.io.Printf("   Members:     %d\n", len(trip.Members))
		c.io.Println()
	}
}

func (c *Cli) printPlace(i int, p models.Place, loc *time.Location) {
	if p.IsArranged {
		c.io.Printf("  %d. %s-%s  %s [%s]\n", i+1,
			p.ArrangedTime.In(loc).Format(clockLayout),
			p.EndTime().In(loc).Format(clockLayout),
			p.Name, shortID(p.ID))
	} else {
		c.io.Printf("  %d. %s [%s]\n", i+1, p.Name, shortID(p.ID))
	}
	if p.Address != "" {
		c.io.Printf("     %s\n", p.Address)
	}
}

func (c *Cli) printWishList(places []models.Place, loc *time.Location) {
	c.io.Println("Wish list:")
	if len(places) == 0 {
		c.io.Println("  (empty)")
		return
	}
	for i, p := range places {
		c.printPlace(i, p, loc)
	}
}

func (c *Cli) printItinerary(it *planner.Itinerary, loc *time.Location, onlyDay int) {
	trip := it.Trip()
	for d := range trip.Days {
		if onlyDay > 0 && d != onlyDay-1 {
			continue
		}
		c.io.Printf("Day %d (%s):\n", d+1, trip.DayDate(d).Format(dateLayout))
		places := it.Day(d)
		if len(places) == 0 {
			c.io.Println("  (nothing planned)")
		}
		for i, p := range places {
			c.printPlace(i, p, loc)
		}
		c.io.Println()
	}
}

func (c *Cli) printMessage(m models.Message, loc *time.Location) {
	c.io.Printf("[%s] %s: %s\n", m.SendTime.In(loc).Format(dateTimeLayout), m.SenderName, m.Content)
}

// resolveTrip ищет поездку пользователя по ID или названию
func (c *Cli) resolveTrip(ctx context.Context, p *planner.Planner, ref string) (models.Trip, error) {
	list, err := p.Trips(ctx)
	if err != nil {
		return models.Trip{}, err
	}
	defer c.closeView(ctx, list)

	if err := waitReady(ctx, list); err != nil {
		return models.Trip{}, err
	}
	trip, ok := list.Find(ref)
	if !ok {
		return models.Trip{}, fmt.Errorf("trip %q not found", ref)
	}
	return trip, nil
}

// resolvePlace ищет место по ID, префиксу ID или названию
func resolvePlace(it *planner.Itinerary, ref string) (models.Place, error) {
	if p, ok := it.Get(ref); ok {
		return p, nil
	}
	var found []models.Place
	for _, p := range it.Places() {
		if strings.HasPrefix(p.ID, ref) || strings.EqualFold(p.Name, ref) {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return models.Place{}, fmt.Errorf("place %q not found", ref)
	case 1:
		return found[0], nil
	default:
		return models.Place{}, fmt.Errorf("place %q is ambiguous, use the full id", ref)
	}
}

// failureNotifier представление, которое сообщает об обрыве подписки
type failureNotifier interface {
	OnFailure(fn func(error)) func()
	Err() error
}

// watchUntilDone блокируется до отмены ctx или обрыва подписки
func (c *Cli) watchUntilDone(ctx context.Context, v failureNotifier) error {
	failed := make(chan error, 1)
	cancel := v.OnFailure(func(err error) {
		select {
		case failed <- err:
		default:
		}
	})
	defer cancel()

	if err := v.Err(); err != nil {
		return fmt.Errorf("subscription lost: %w", err)
	}

	select {
	case <-ctx.Done():
		c.io.Println("Stopped watching.")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ctx.Err()
		}
		return nil
	case err := <-failed:
		return fmt.Errorf("subscription lost: %w", err)
	}
}
