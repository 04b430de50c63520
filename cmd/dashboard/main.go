// Command dashboard runs the Wellnest counselor dashboard client: the state
// layer wired to the backend API, with durable persistence in Redis (or
// in-memory when Redis is disabled).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wellnest-app/wellnest-dashboard/config"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/infrastructure/external/backend"
	"github.com/wellnest-app/wellnest-dashboard/internal/infrastructure/persistence/memory"
	"github.com/wellnest-app/wellnest-dashboard/internal/infrastructure/persistence/redis"
	"github.com/wellnest-app/wellnest-dashboard/internal/state"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGER
	// ─────────────────────────────────────────────────────────────────────────
	logLevel := slog.LevelInfo
	if cfg.App.Debug {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)

	log.Info("starting wellnest dashboard",
		"version", cfg.App.Version,
		"api_base_url", cfg.Client.APIBaseURL,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DURABLE STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	var storage state.DurableStorage
	if cfg.Redis.Disabled {
		log.Warn("Redis disabled, using in-memory storage; state will not survive restarts")
		storage = memory.NewStorage()
	} else {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
		redisCfg.KeyPrefix = cfg.Redis.KeyPrefix

		redisStorage, err := redis.NewStorage(redisCfg)
		if err != nil {
			return fmt.Errorf("redis connection: %w", err)
		}
		defer redisStorage.Close()
		storage = redisStorage
		log.Info("Redis connection established")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. BACKEND CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	clientCfg := backend.DefaultConfig()
	clientCfg.BaseURL = cfg.Client.APIBaseURL
	clientCfg.Timeout = cfg.Client.RequestTimeout

	client, err := backend.NewClient(clientCfg, log)
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. STATE LAYER
	// ─────────────────────────────────────────────────────────────────────────
	app, err := state.NewApp(state.Dependencies{
		Auth:      client,
		Sessions:  client,
		Resources: client,
		Storage:   storage,
		SessionConfig: state.SessionManagerConfig{
			CheckInterval: cfg.Client.HeartbeatInterval,
			RetryAttempts: cfg.Client.ValidationRetries,
			RetryDelay:    cfg.Client.ValidationRetryDelay,
		},
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("state layer: %w", err)
	}

	app.OnSessionInvalidated(func(reason shared.InvalidationReason) {
		log.Info("session invalidated, redirecting to sign-in", "reason", string(reason))
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REHYDRATION AND INITIAL SESSION CHECK
	// ─────────────────────────────────────────────────────────────────────────
	if err := app.Rehydrate(ctx); err != nil {
		log.Warn("rehydration incomplete", "error", err)
	}

	if err := app.Auth.CheckSession(ctx, false); err != nil {
		log.Warn("initial session check failed", "error", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("wellnest dashboard is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.SaveAll(shutdownCtx); err != nil {
		log.Error("state save failed", "error", err)
	}
	if err := app.Close(); err != nil {
		log.Error("state layer close failed", "error", err)
	}

	log.Info("shutdown complete")
	return nil
}
