package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload" // Autoload .env file.
	"github.com/redis/go-redis/v9"

	"github.com/cropchain/yield-exchange/internal/config"
	"github.com/cropchain/yield-exchange/internal/correlation"
	"github.com/cropchain/yield-exchange/internal/market"
	"github.com/cropchain/yield-exchange/internal/metrics"
	"github.com/cropchain/yield-exchange/internal/provider"
	"github.com/cropchain/yield-exchange/internal/store"
	"github.com/cropchain/yield-exchange/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("yield-exchange failed", "err", err)
		os.Exit(1)
	}
	fmt.Println("yield-exchange stopped")
}

// run serves until SIGINT or SIGTERM. Deferred cleanup of the database pool
// and cache client runs on every return path.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store initialization failed: %w", err)
	}
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	if cfg.SeedFixtures {
		if err := provider.Seed(ctx, st, cfg.WalletAddress, time.Now()); err != nil {
			return fmt.Errorf("seeding fixtures failed: %w", err)
		}
	}

	// --- Collaborators ---
	limiter := correlation.NewPositionLimiter(cfg.MaxUnitsPerToken, cfg.MaxRegionExposure)
	settlement := provider.NewFixtureSettlement(cfg.SimulatedLatency, cfg.DeclinedTokens)
	session := wallet.NewSession(provider.FixtureConnector{
		Address: cfg.WalletAddress,
		Balance: cfg.WalletBalance,
		Network: cfg.WalletNetwork,
		Latency: cfg.SimulatedLatency,
	})

	// --- WebSocket hub ---
	wsHub := market.NewWSHub()
	go wsHub.Run(ctx)

	// --- Market service ---
	svc := market.NewService(st, limiter, settlement, session,
		market.WithHub(wsHub),
		market.WithTrendsWindow(cfg.TrendsWindowDays),
	)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"yield-exchange"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	// WriteTimeout covers simulated settlement latency.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10*time.Second + cfg.SimulatedLatency,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("yield-exchange listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down yield-exchange...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	return nil
}

// openStore picks PostgreSQL when DATABASE_URL is set, optionally behind a
// Redis cache, and the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, []func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		return store.NewMemoryStore(), nil, nil
	}

	var cleanup []func()

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = cfg.DatabaseMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	cleanup = append(cleanup, pool.Close)

	if err := store.Migrate(pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	var st store.Store = store.NewPostgresStore(pool)
	slog.Info("connected to PostgreSQL", "max_conns", cfg.DatabaseMaxConns)

	// Wrap with Redis read-through cache if configured.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
		slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
	}

	return st, cleanup, nil
}
