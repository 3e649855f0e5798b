// Package cli implements the tripsync client commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tripsync/internal/client/auth"
	"github.com/iudanet/tripsync/internal/client/iocli"
	"github.com/iudanet/tripsync/internal/client/planner"
	"github.com/iudanet/tripsync/internal/client/storage"
	"github.com/iudanet/tripsync/internal/livesync"
)

//go:generate moq -out auth_mock.go . AuthService

// AuthService операции с сессией пользователя
type AuthService interface {
	Register(ctx context.Context, username, password, displayName string) (string, error)
	Login(ctx context.Context, username, password string) (*storage.AuthData, error)
	Logout(ctx context.Context) error
	Session(ctx context.Context) (*storage.AuthData, error)
}

// readyTimeout сколько ждать первый снимок подписки
const readyTimeout = 15 * time.Second

// Deps зависимости команд
type Deps struct {
	IO     iocli.IO
	Auth   AuthService
	Feed   livesync.Feed
	Writer planner.Writer
	Views  storage.ViewCache
	Logger *slog.Logger
	// ServerURL для вывода в status
	ServerURL string
}

// Cli выполняет команды клиента
type Cli struct {
	io        iocli.IO
	auth      AuthService
	feed      livesync.Feed
	writer    planner.Writer
	views     storage.ViewCache
	logger    *slog.Logger
	registry  *livesync.Registry
	now       func() time.Time
	serverURL string
}

// New создает Cli
func New(deps Deps) *Cli {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cli{
		io:        deps.IO,
		auth:      deps.Auth,
		feed:      deps.Feed,
		writer:    deps.Writer,
		views:     deps.Views,
		logger:    logger,
		registry:  livesync.NewRegistry(logger),
		now:       time.Now,
		serverURL: deps.ServerURL,
	}
}

// Close останавливает открытые подписки
func (c *Cli) Close() {
	c.registry.Close()
}

// GlobalOptions глобальные флаги клиента
type GlobalOptions struct {
	ConfigPath string
	ServerURL  string
	DBPath     string
	LogLevel   string
}

// Builder создает Cli после разбора глобальных флагов. cleanup вызывается
// после выполнения команды.
type Builder func(ctx context.Context, opts GlobalOptions) (c *Cli, cleanup func(), err error)

// NewRootCommand собирает дерево команд
func NewRootCommand(version string, build Builder) *cobra.Command {
	var (
		opts    GlobalOptions
		c       *Cli
		cleanup func()
	)
	get := func() *Cli { return c }

	root := &cobra.Command{
		Use:           "tripsync",
		Short:         "TripSync client: plan trips together in real time",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			c, cleanup, err = build(cmd.Context(), opts)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if cleanup != nil {
				cleanup()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	flags.StringVar(&opts.ServerURL, "server", "", "server URL (overrides config)")
	flags.StringVar(&opts.DBPath, "db", "", "path to local database (overrides config)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newRegisterCommand(get),
		newLoginCommand(get),
		newLogoutCommand(get),
		newStatusCommand(get),
		newTripsCommand(get),
		newPlacesCommand(get),
		newChatCommand(get),
	)
	return root
}

// openPlanner открывает Planner от имени текущего пользователя
func (c *Cli) openPlanner(ctx context.Context) (*planner.Planner, error) {
	session, err := c.auth.Session(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			return nil, fmt.Errorf("%w: run 'tripsync login' first", err)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	identity := planner.Identity{UserID: session.UserID, Name: session.Name()}
	return planner.New(c.logger, c.feed, c.writer, c.registry, c.views, identity), nil
}

// waiter представление, которое ждет первый снимок
type waiter interface {
	Wait(ctx context.Context) error
}

func waitReady(ctx context.Context, w waiter) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := w.Wait(ctx); err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	return nil
}

// closer представление, которое нужно закрыть после команды
type closer interface {
	Close(ctx context.Context) error
}

func (c *Cli) closeView(ctx context.Context, v closer) {
	// снимок сохраняется даже после отмены команды
	if err := v.Close(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("failed to save view", slog.Any("error", err))
	}
}
