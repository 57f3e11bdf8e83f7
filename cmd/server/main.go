package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/JonMunkholm/RecordGrid/internal/config"
	"github.com/JonMunkholm/RecordGrid/internal/core"
	_ "github.com/JonMunkholm/RecordGrid/internal/core/views" // Register all views
	"github.com/JonMunkholm/RecordGrid/internal/logging"
	"github.com/JonMunkholm/RecordGrid/internal/store"
	"github.com/JonMunkholm/RecordGrid/internal/web"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	addr := flag.String("addr", "", "listen address (host:port), overrides SERVER_HOST and SERVER_PORT")
	columns := flag.String("columns", "", "YAML column layout file, overrides GRID_COLUMNS_FILE")
	flag.Parse()

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(*envFile); err != nil {
		slog.Info("no .env file found, using environment variables", "file", *envFile)
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)", "file", *envFile)
	}

	// Load and validate configuration, flags take precedence
	cfg, err := config.LoadWith(func(c *config.Config) error {
		if *addr != "" {
			if err := c.Server.SetAddr(*addr); err != nil {
				return err
			}
		}
		if *columns != "" {
			c.Grid.ColumnsFile = *columns
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	st := store.New(pool)
	if cfg.Database.EnsureSchema {
		if err := st.EnsureSchema(ctx); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	if cfg.Grid.ColumnsFile != "" {
		if err := applyColumns(cfg.Grid.ColumnsFile); err != nil {
			slog.Error("failed to apply column layout", "file", cfg.Grid.ColumnsFile, "error", err)
			os.Exit(1)
		}
	}

	policy, err := core.ParseBatchPolicy(cfg.Grid.BatchPolicy)
	if err != nil {
		slog.Error("invalid batch policy", "error", err)
		os.Exit(1)
	}

	service := core.NewService(st, core.ServiceConfig{
		Policy:         policy,
		MaxConcurrent:  cfg.Grid.MaxConcurrent,
		IdleTimeout:    cfg.Grid.IdleTimeout,
		MaxViews:       cfg.Grid.MaxViews,
		NoticeCapacity: cfg.Grid.NoticeCapacity,
	})
	slog.Info("views registered", "count", core.ViewCount(), "policy", policy)

	server := web.NewServer(service, st, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartJanitor(jobCtx, cfg.Grid.JanitorInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// applyColumns replaces the built-in columns of the views named in a YAML
// column layout file.
func applyColumns(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	layout, err := core.LoadColumnLayout(f)
	if err != nil {
		return err
	}
	return core.ApplyColumnLayout(layout)
}
