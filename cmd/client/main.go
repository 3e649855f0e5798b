package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/tripsync/internal/client/api"
	"github.com/iudanet/tripsync/internal/client/auth"
	"github.com/iudanet/tripsync/internal/client/cli"
	"github.com/iudanet/tripsync/internal/client/feed"
	"github.com/iudanet/tripsync/internal/client/iocli"
	"github.com/iudanet/tripsync/internal/client/storage/boltdb"
	"github.com/iudanet/tripsync/internal/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(Version, build)
	root.SetVersionTemplate(fmt.Sprintf("TripSync Client\nVersion:    %s\nBuild Date: %s\nGit Commit: %s\n",
		Version, BuildDate, GitCommit))

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// build собирает зависимости клиента по конфигу и глобальным флагам
func build(ctx context.Context, opts cli.GlobalOptions) (*cli.Cli, func(), error) {
	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.ServerURL != "" {
		cfg.ServerURL = opts.ServerURL
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	// логи клиента в stderr, чтобы не смешивались с выводом команд
	logger := cfg.Log.NewLogger(os.Stderr).With(slog.String("component", "client"))

	// Открываем BoltDB storage
	store, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	apiClient := api.NewClient(cfg.ServerURL, cfg.Timeout)
	authService := auth.NewService(logger, apiClient, store, store, store)
	apiClient.SetTokenSource(authService)

	feedClient, err := feed.NewClient(logger, cfg.ServerURL, authService)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	c := cli.New(cli.Deps{
		IO:        iocli.NewStdio(),
		Auth:      authService,
		Feed:      feedClient,
		Writer:    apiClient,
		Views:     store,
		Logger:    logger,
		ServerURL: cfg.ServerURL,
	})

	cleanup := func() {
		c.Close()
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}
	return c, cleanup, nil
}
