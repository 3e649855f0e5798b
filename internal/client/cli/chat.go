package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tripsync/internal/client/planner"
	"github.com/iudanet/tripsync/internal/client/storage"
	"github.com/iudanet/tripsync/internal/models"
)

func newChatCommand(get func() *Cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk with the other members of a trip",
	}

	var offline bool
	history := &cobra.Command{
		Use:   "history <trip>",
		Short: "Print the messages of a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runChatHistory(cmd.Context(), args[0], offline)
		},
	}
	history.Flags().BoolVar(&offline, "offline", false, "print the last synchronized messages; <trip> must be a trip id")

	watch := &cobra.Command{
		Use:   "watch <trip>",
		Short: "Print messages as they arrive until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runChatWatch(cmd.Context(), args[0])
		},
	}

	send := &cobra.Command{
		Use:   "send <trip> <message>...",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runChatSend(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.AddCommand(history, watch, send)
	return cmd
}

func (c *Cli) openChat(ctx context.Context, tripRef string) (*planner.Chat, models.Trip, error) {
	p, err := c.openPlanner(ctx)
	if err != nil {
		return nil, models.Trip{}, err
	}
	trip, err := c.resolveTrip(ctx, p, tripRef)
	if err != nil {
		return nil, models.Trip{}, err
	}
	chat, err := p.Chat(ctx, trip.ID)
	if err != nil {
		return nil, models.Trip{}, err
	}
	if err := waitReady(ctx, chat); err != nil {
		c.closeView(ctx, chat)
		return nil, models.Trip{}, err
	}
	return chat, trip, nil
}

func (c *Cli) printMessages(messages []models.Message) {
	if len(messages) == 0 {
		c.io.Println("No messages yet.")
		return
	}
	for _, m := range messages {
		c.printMessage(m, time.Local)
	}
}

func (c *Cli) runChatHistory(ctx context.Context, tripRef string, offline bool) error {
	if offline {
		p, err := c.openPlanner(ctx)
		if err != nil {
			return err
		}
		messages, savedAt, err := p.CachedMessages(ctx, tripRef)
		if errors.Is(err, storage.ErrViewNotFound) {
			return fmt.Errorf("no cached messages for trip %q", tripRef)
		}
		if err != nil {
			return err
		}
		c.io.Printf("Offline copy from %s\n", savedAt.Local().Format(time.RFC3339))
		c.printMessages(messages)
		return nil
	}

	chat, trip, err := c.openChat(ctx, tripRef)
	if err != nil {
		return err
	}
	defer c.closeView(ctx, chat)

	c.io.Printf("=== %s: chat ===\n", trip.Name)
	c.printMessages(chat.Messages())
	return nil
}

func (c *Cli) runChatWatch(ctx context.Context, tripRef string) error {
	chat, trip, err := c.openChat(ctx, tripRef)
	if err != nil {
		return err
	}
	defer c.closeView(ctx, chat)

	c.io.Printf("=== %s: chat (watching, Ctrl+C to stop) ===\n", trip.Name)

	// слушатель регистрируется до печати истории; пока история печатается,
	// новые сообщения ждут на mu, уже напечатанные пропускаются
	var mu sync.Mutex
	printed := make(map[string]struct{})
	mu.Lock()
	stop := chat.Listen(func(m models.Message) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := printed[m.ID]; ok {
			return
		}
		printed[m.ID] = struct{}{}
		c.printMessage(m, time.Local)
	})
	defer stop()

	history := chat.Messages()
	for _, m := range history {
		printed[m.ID] = struct{}{}
	}
	c.printMessages(history)
	mu.Unlock()

	return c.watchUntilDone(ctx, chat)
}

func (c *Cli) runChatSend(ctx context.Context, tripRef, content string) error {
	chat, trip, err := c.openChat(ctx, tripRef)
	if err != nil {
		return err
	}
	defer c.closeView(ctx, chat)

	msg, err := chat.Send(ctx, content)
	if err != nil {
		return err
	}

	c.io.Printf("✓ Message sent to %q.\n", trip.Name)
	c.printMessage(msg, time.Local)
	return nil
}
