// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/leveler/internal/chat"
	"github.com/starford/leveler/internal/curve"
	"github.com/starford/leveler/internal/lbcache"
	"github.com/starford/leveler/internal/ledger"
	"github.com/starford/leveler/internal/mcpserver"
	"github.com/starford/leveler/internal/ping"
	"github.com/starford/leveler/internal/progression"
	"github.com/starford/leveler/internal/query"
	"github.com/starford/leveler/internal/sse"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{
		version:   "dev",
		logOutput: os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger installs a JSON logger whose level can be changed at runtime.
func (a *application) newLogger() (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(a.config.App.LogLevel)
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger, level
}

// services holds the storage-backed components shared by every command.
type services struct {
	ledger  *ledger.DB
	cache   *lbcache.Cache
	engine  *progression.Engine
	queries *query.Service
}

func openServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*services, error) {
	db, err := ledger.Open(cfg.Store.Driver, cfg.Store.Source())
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	svc := &services{ledger: db}

	if cfg.Redis.Enabled {
		cache, err := lbcache.New(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("leaderboard cache unavailable, serving from ledger", slog.String("error", err.Error()))
		} else {
			svc.cache = cache
			if err := rebuild(ctx, db, cache, logger); err != nil {
				logger.Warn("leaderboard cache rebuild failed", slog.String("error", err.Error()))
			}
		}
	}

	table := curve.Default()
	engineOpts := []progression.Option{progression.WithLogger(logger)}
	var board query.BoardReader
	if svc.cache != nil {
		engineOpts = append(engineOpts, progression.WithBoard(svc.cache))
		board = svc.cache
	}
	svc.engine = progression.NewEngine(db, table, engineOpts...)
	svc.queries = query.NewService(db, table, board, cfg.Leveling.LeaderboardLimit, logger)
	return svc, nil
}

func (s *services) Close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	_ = s.ledger.Close()
}

func rebuild(ctx context.Context, db ledger.Ledger, cache *lbcache.Cache, logger *slog.Logger) error {
	records, err := db.All(ctx)
	if err != nil {
		return err
	}
	if err := cache.Rebuild(ctx, records); err != nil {
		return err
	}
	logger.Info("leaderboard cache rebuilt", slog.Int("records", len(records)))
	return nil
}

func sseEventType(kind string) string {
	if kind == chat.KindLevelUp {
		return sse.EventLevelUp
	}
	return sse.EventPing
}

// broadcastNotifier publishes announcements to live SSE clients.
func broadcastNotifier(broker *sse.Broker, logger *slog.Logger) chat.Notifier {
	return chat.NotifierFunc(func(_ context.Context, a chat.Announcement) error {
		broker.Publish(sse.Event{
			ID:          a.ID,
			Type:        sseEventType(a.Kind),
			CommunityID: a.CommunityID,
			Data:        a,
		})
		logger.Info("announcement",
			slog.String("kind", a.Kind),
			slog.String("community_id", a.CommunityID),
			slog.String("channel_id", a.ChannelID),
			slog.String("text", a.Text))
		return nil
	})
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger, level := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.Bool("redis_enabled", cfg.Redis.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	broker := sse.NewBroker()
	defer broker.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	runner := ping.NewRunner(cfg.Ping.Interval, cfg.Ping.Window, logger)
	bot := chat.NewBot(svc.engine, broadcastNotifier(broker, logger),
		chat.WithPinger(runner),
		chat.WithXPPerMessage(cfg.Leveling.XPPerMessage),
		chat.WithPingContext(gCtx),
		chat.WithLogger(logger),
	)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(cfg, svc, bot, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	if app.configPath != "" {
		g.Go(func() error {
			if err := WatchLogLevel(gCtx, app.configPath, level, logger); err != nil {
				logger.Warn("config watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stops the config watcher and any ping runners.
		stop()
		return nil
	})

	err = g.Wait()
	runner.Wait()
	if err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger, _ := app.newLogger()

	svc, err := openServices(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc.queries, app.version).ServeStdio()
}

// RebuildCache repopulates the Redis leaderboards from the ledger.
func RebuildCache(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger, _ := app.newLogger()

	if !cfg.Redis.Enabled {
		return fmt.Errorf("redis is not enabled in config")
	}

	db, err := ledger.Open(cfg.Store.Driver, cfg.Store.Source())
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer db.Close()

	cache, err := lbcache.New(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer cache.Close()

	return rebuild(ctx, db, cache, logger)
}

// PrintLevels writes the XP curve as a table.
func PrintLevels(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "LEVEL\tXP TO NEXT\t")
	for _, e := range curve.Default().Entries() {
		fmt.Fprintf(tw, "%d\t%d\t\n", e.Level, e.Threshold)
	}
	return tw.Flush()
}
