// Package app собирает зависимости сервера и запускает HTTP сервер,
// очередь push уведомлений и фоновую очистку базы.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/tripsync/internal/config"
	"github.com/iudanet/tripsync/internal/server/documents"
	"github.com/iudanet/tripsync/internal/server/feed"
	"github.com/iudanet/tripsync/internal/server/handlers"
	"github.com/iudanet/tripsync/internal/server/metrics"
	"github.com/iudanet/tripsync/internal/server/middleware"
	"github.com/iudanet/tripsync/internal/server/notify"
	"github.com/iudanet/tripsync/internal/server/storage/sqlite"
)

// App сервер со всеми зависимостями
type App struct {
	cfg      *config.Server
	logger   *slog.Logger
	store    *sqlite.Storage
	metrics  *metrics.Metrics
	hub      *feed.Hub
	notifier *notify.Notifier
	docs     *documents.Service

	authLimiter *middleware.RateLimiter
	apiLimiter  *middleware.RateLimiter

	handler http.Handler
	version string
}

// New открывает базу и собирает сервер
func New(ctx context.Context, cfg *config.Server, logger *slog.Logger, version string) (*App, error) {
	store, err := sqlite.New(ctx, cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	m := metrics.New()
	hub := feed.NewHub(logger, m, cfg.Feed.QueueSize)

	var pusher notify.Pusher
	if cfg.Push.WebhookURL != "" {
		pusher = notify.NewWebhookPusher(cfg.Push.WebhookURL, cfg.Push.WebhookToken, cfg.Push.Timeout)
	} else {
		logger.Info("push webhook is not configured, notifications are only logged")
		pusher = notify.NewLogPusher(logger)
	}
	notifier := notify.New(logger, store, store, pusher, m, cfg.Push.QueueSize)

	a := &App{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		metrics:     m,
		hub:         hub,
		notifier:    notifier,
		docs:        documents.NewService(logger, store, hub, notifier, m),
		authLimiter: middleware.NewRateLimiter(cfg.RateLimit.AuthRequests, cfg.RateLimit.Window, logger),
		apiLimiter:  middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger),
		version:     version,
	}
	a.handler = a.routes()
	return a, nil
}

// Handler корневой HTTP обработчик
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) jwtConfig() handlers.JWTConfig {
	return handlers.JWTConfig{
		Secret:          []byte(a.cfg.Auth.JWTSecret),
		AccessTokenTTL:  a.cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: a.cfg.Auth.RefreshTokenTTL,
	}
}

func (a *App) routes() http.Handler {
	jwtCfg := a.jwtConfig()
	authHandler := handlers.NewAuthHandler(a.logger, a.store, a.store, jwtCfg)
	docsHandler := handlers.NewDocumentsHandler(a.logger, a.docs)
	feedHandler := handlers.NewFeedHandler(a.logger, a.docs)
	healthHandler := handlers.NewHealthHandler(a.logger, a.store, a.version)

	authRequired := middleware.AuthMiddleware(a.logger, jwtCfg)
	public := func(h http.HandlerFunc) http.Handler {
		return a.authLimiter.Handler(h)
	}
	private := func(h http.HandlerFunc) http.Handler {
		return a.apiLimiter.Handler(authRequired(h))
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/auth/register", public(authHandler.Register))
	mux.Handle("POST /api/v1/auth/login", public(authHandler.Login))
	mux.Handle("POST /api/v1/auth/refresh", public(authHandler.Refresh))
	mux.Handle("POST /api/v1/auth/logout", private(authHandler.Logout))

	mux.Handle("GET /api/v1/documents/{path...}", private(docsHandler.Get))
	mux.Handle("POST /api/v1/documents/{path...}", private(docsHandler.Create))
	mux.Handle("PUT /api/v1/documents/{path...}", private(docsHandler.Upsert))
	mux.Handle("DELETE /api/v1/documents/{path...}", private(docsHandler.Delete))
	mux.Handle("POST /api/v1/batch", private(docsHandler.Batch))
	mux.Handle("GET /api/v1/query", private(docsHandler.Query))
	mux.Handle("GET /api/v1/feed", private(feedHandler.Feed))

	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)
	mux.Handle("GET /metrics", a.metrics.Handler())

	// MetricsMiddleware читает r.Pattern, поэтому оборачивает mux напрямую
	var h http.Handler = middleware.MetricsMiddleware(a.metrics)(mux)
	h = middleware.LoggingWithSkip(a.logger, []string{"/api/v1/health", "/metrics"})(h)
	h = middleware.RecoveryMiddleware(a.logger)(h)
	return h
}

// Run запускает сервер и блокируется до отмены ctx или ошибки одной из задач
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: a.cfg.HTTP.ReadTimeout,
		IdleTimeout:       a.cfg.HTTP.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.notifier.Run(gctx)
	})

	g.Go(func() error {
		a.runJanitor(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()

		// WebSocket соединения не отслеживаются http.Server, их закрывает hub
		a.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// runJanitor периодически удаляет истекшие refresh токены и старый журнал изменений
func (a *App) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Database.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.cleanup(ctx, now)
		}
	}
}

func (a *App) cleanup(ctx context.Context, now time.Time) {
	tokens, err := a.store.DeleteExpiredTokens(ctx, now)
	if err != nil {
		a.logger.Error("failed to delete expired tokens", slog.Any("error", err))
	}

	changes, err := a.store.PruneChanges(ctx, now.Add(-a.cfg.Database.ChangesRetention))
	if err != nil {
		a.logger.Error("failed to prune changes", slog.Any("error", err))
	}

	if tokens > 0 || changes > 0 {
		a.logger.Info("database cleanup finished",
			slog.Int("expired_tokens", tokens),
			slog.Int("pruned_changes", changes))
	}
}

// Close освобождает ресурсы. Вызывается после Run.
func (a *App) Close() error {
	a.hub.Close()
	a.authLimiter.Stop()
	a.apiLimiter.Stop()
	return a.store.Close()
}
