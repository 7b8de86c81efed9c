package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/bracketworks/livecast/internal/admission"
	"github.com/bracketworks/livecast/internal/auth"
	"github.com/bracketworks/livecast/internal/broadcast"
	"github.com/bracketworks/livecast/internal/config"
	"github.com/bracketworks/livecast/internal/database"
	"github.com/bracketworks/livecast/internal/directory"
	"github.com/bracketworks/livecast/internal/gateway"
	"github.com/bracketworks/livecast/internal/room"
	"github.com/bracketworks/livecast/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/livecast.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting livecast",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"addr", cfg.Server.Addr,
	)

	// Create context cancelled on shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Connect to the platform database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Shared counter store (optional)
	var counterStore admission.CounterStore
	var redisStore *admission.RedisStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisStore = admission.NewRedisStore(client)

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			// Degraded but running: the gate falls back to local counts.
			logger.Warn("redis unreachable, admission runs on local counters", "error", err)
		} else {
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
		pingCancel()

		counterStore = redisStore
	}

	// Components
	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		logger.Error("failed to create verifier", "error", err)
		os.Exit(1)
	}

	dir := directory.NewPostgres(pool, cfg.Database.CacheTTL, logger)

	gate := admission.NewGate(admission.Limits{
		MaxConnections:    cfg.Limits.MaxConnections,
		MessagesPerWindow: cfg.Limits.MessagesPerWindow,
		RateWindow:        cfg.Limits.RateWindow,
		MaxPayloadBytes:   cfg.Limits.MaxPayloadBytes,
		IdleEviction:      cfg.Limits.IdleEviction,
	}, counterStore, logger)

	if err := gate.Start(ctx); err != nil {
		logger.Error("failed to start admission gate", "error", err)
		os.Exit(1)
	}
	defer gate.Stop()

	rooms := room.NewRegistry(logger)

	resolver := broadcast.RoomResolverFunc(func(ctx context.Context, kind directory.Kind, id string) []string {
		entity, err := dir.Resolve(ctx, kind, id)
		if err != nil {
			// Deliver to the narrow room even when the lookup fails:
			// fan-out is best effort and must not drop the event.
			logger.Warn("room resolve failed, using narrow room", "kind", kind, "id", id, "error", err)
			return []string{directory.RoomID(kind, id)}
		}
		return entity.Rooms()
	})

	coordinator := broadcast.NewCoordinator(broadcast.Config{
		DebounceWindow: cfg.Broadcast.DebounceWindow,
	}, rooms, resolver, logger)

	gw := gateway.New(gateway.Config{
		PingInterval:   cfg.Heartbeat.PingInterval,
		PongTimeout:    cfg.Heartbeat.PongTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		SendBuffer:     cfg.Server.SendBuffer,
		ReadLimit:      int64(4 * cfg.Limits.MaxPayloadBytes),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, verifier, dir, gate, rooms, coordinator, logger)

	// HTTP servers
	wsMux := http.NewServeMux()
	wsMux.Handle("/ws/", gw)
	wsServer := &http.Server{Addr: cfg.Server.Addr, Handler: wsMux}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(pool, redisStore, gw, rooms, coordinator),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("websocket server listening", "addr", cfg.Server.Addr)
		if err := wsServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("health server listening", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		// Drain: close every client with going-away, flush pending
		// batches, then stop the listeners.
		gw.Shutdown(shutdownCtx)
		coordinator.Stop(shutdownCtx)
		wsServer.Shutdown(shutdownCtx)
		healthServer.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("livecast stopped")
}

// createHealthHandler creates the HTTP handler for health checks and
// runtime stats.
func createHealthHandler(
	pool *pgxpool.Pool,
	redisStore *admission.RedisStore,
	gw *gateway.Gateway,
	rooms *room.Registry,
	coordinator *broadcast.Coordinator,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		if redisStore != nil {
			if err := redisStore.Ping(ctx); err != nil {
				// Admission degrades to local counters; not fatal.
				health.Status = "degraded"
				health.Components["redis"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["redis"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		roomCount, memberCount := rooms.Stats()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"gateway": gw.Stats(),
			"rooms": map[string]int{
				"rooms":   roomCount,
				"members": memberCount,
			},
			"broadcast": coordinator.Stats(),
			"version":   version.String(),
		})
	})

	return mux
}
