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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/cardboard/internal/api"
	"github.com/starford/cardboard/internal/cardapi"
	"github.com/starford/cardboard/internal/mcpserver"
	"github.com/starford/cardboard/internal/mockapi"
	"github.com/starford/cardboard/internal/models"
	"github.com/starford/cardboard/internal/session"
	"github.com/starford/cardboard/internal/tui"
	"github.com/starford/cardboard/internal/ui"
	pkgconfig "github.com/starford/cardboard/pkg/config"
)

var errConfigRequired = errors.New("config is required")

const shutdownTimeout = 10 * time.Second

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func newRemoteClient(cfg RemoteConfig) (*cardapi.Client, error) {
	opts := []cardapi.Option{cardapi.WithTimeout(cfg.Timeout)}
	if cfg.Token != "" {
		opts = append(opts, cardapi.WithToken(cfg.Token))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, cardapi.WithUserAgent(cfg.UserAgent))
	}
	client, err := cardapi.New(cfg.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("init remote client: %w", err)
	}
	return client, nil
}

// Run starts the board server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger := newLogger(os.Stdout, level)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("remote", cfg.Remote.BaseURL),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	client, err := newRemoteClient(cfg.Remote)
	if err != nil {
		return err
	}

	renderer, err := ui.NewRenderer()
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}

	reg := session.NewRegistry(client, renderer, cfg.SessionSettings(), logger)
	defer reg.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, reg.Len())
	})

	r.Mount("/", api.NewRouter(reg, renderer, cfg.Auth.AuthEnabled(), cfg.Auth.Token))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		reg.Run(gCtx, cfg.Board.SweepInterval)
		return nil
	})

	if app.configFile != "" {
		g.Go(func() error {
			err := pkgconfig.Watch(gCtx, app.configFile, logger, func() {
				reloadSettings(app.configFile, level, reg, logger)
			})
			if err != nil {
				logger.Warn("config watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// reloadSettings re-reads the config file and applies the settings that can
// change at runtime: log level, toast duration and transition.
func reloadSettings(path string, level *slog.LevelVar, reg *session.Registry, logger *slog.Logger) {
	next := NewDefaultConfig()
	if err := pkgconfig.Load(path, next); err != nil {
		logger.Warn("config reload failed", slog.String("error", err.Error()))
		return
	}

	level.Set(next.App.LogLevel)

	s := reg.Settings()
	s.ToastDuration = next.Board.ToastDuration
	s.Transition = next.Board.Transition
	reg.UpdateSettings(s)

	logger.Info("config reloaded",
		slog.String("log_level", next.App.LogLevel.String()),
		slog.Duration("toast_duration", s.ToastDuration),
		slog.Duration("transition", s.Transition))
}

// RunTUI starts the terminal frontend. Logs are discarded because the
// terminal belongs to the UI.
func RunTUI(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	client, err := newRemoteClient(cfg.Remote)
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	return tui.Run(ctx, client, tui.Settings{
		ToastDuration:  cfg.Board.ToastDuration,
		Transition:     cfg.Board.Transition,
		RequestTimeout: cfg.Remote.Timeout,
		Logger:         newLogger(io.Discard, level),
	})
}

// RunMCP serves the card tools over stdio. Stdout carries the protocol, so
// logs go to stderr.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger := newLogger(os.Stderr, level)
	slog.SetDefault(logger)

	client, err := newRemoteClient(cfg.Remote)
	if err != nil {
		return err
	}

	srv := mcpserver.New(client, app.version, logger)
	defer srv.Close()

	logger.Info("MCP server starting", slog.String("remote", cfg.Remote.BaseURL))
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// RunMock serves the mock card collection.
func RunMock(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger := newLogger(os.Stdout, level)
	slog.SetDefault(logger)

	store, err := openMockStore(ctx, cfg.Mock)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := mockapi.NewServer(store,
		mockapi.WithLatency(cfg.Mock.Latency),
		mockapi.WithLogger(logger),
	)
	httpServer := &http.Server{
		Addr:              cfg.Mock.Address(),
		Handler:           srv.Handler(cfg.Mock.Prefix),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting mock collection",
			slog.String("address", cfg.Mock.Address()),
			slog.String("prefix", cfg.Mock.Prefix),
			slog.String("store", cfg.Mock.Store))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mock server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openMockStore(ctx context.Context, cfg MockConfig) (mockapi.Store, error) {
	switch cfg.Store {
	case StoreSQLite:
		store, err := mockapi.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case StoreS3:
		client, err := mockapi.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("init s3 store: %w", err)
		}
		return mockapi.NewS3Store(client, cfg.S3.Bucket, cfg.S3.Key), nil
	default:
		seed := make([]models.CardDraft, len(cfg.Seed))
		for i, c := range cfg.Seed {
			seed[i] = models.CardDraft{Title: c.Title, Description: c.Description}
		}
		return mockapi.NewMemoryStore(seed...), nil
	}
}
