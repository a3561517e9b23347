package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/finsim/market-engine/internal/asset"
	"github.com/finsim/market-engine/internal/config"
	"github.com/finsim/market-engine/internal/content"
	"github.com/finsim/market-engine/internal/db"
	"github.com/finsim/market-engine/internal/impact"
	"github.com/finsim/market-engine/internal/market"
	"github.com/finsim/market-engine/internal/metrics"
	"github.com/finsim/market-engine/internal/store"
	"github.com/finsim/market-engine/internal/trade"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("market-engine failed", "err", err)
		os.Exit(1)
	}
	slog.Info("market-engine stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- Initialize store ---
	var st store.Store
	var rdb *redis.Client
	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, pool.Close)
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// Wrap with Redis read-through cache if configured.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
		slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL.String())
	}

	if cfg.SeedAssets {
		if err := asset.Seed(ctx, st, asset.DefaultCatalogue()); err != nil {
			return err
		}
		slog.Info("asset catalogue seeded", "assets", len(asset.DefaultCatalogue()))
	}

	// --- Content ---
	var gen content.Generator
	if cfg.Content.APIURL != "" {
		gen = content.NewHTTPGenerator(cfg.Content.APIURL, cfg.Content.APIKey, cfg.Content.Timeout)
	} else {
		slog.Warn("CONTENT_API_URL not set, serving fallback content")
	}
	var cache content.Cache
	if rdb != nil {
		cache = content.NewRedisCache(rdb, 10*time.Minute)
	}
	contentSvc := content.NewService(gen, cache, content.PerMinute(cfg.Content.RatePerMinute))

	// --- Hub, impact worker, services ---
	wsHub := trade.NewWSHub()
	worker := impact.NewWorker(st, wsHub, cfg.ImpactQueueSize)
	tradeSvc := trade.NewService(st, worker, wsHub, contentSvc, trade.Config{InitialCash: cfg.InitialCash})

	sim := market.NewSimulator(st, wsHub, cfg.Market.TickVolatility, 0)
	if _, err := sim.CloseExpired(ctx); err != nil {
		slog.Warn("initial market close failed", "err", err)
	}
	sched, err := market.NewScheduler(ctx, sim, cfg.Market.TickSchedule, cfg.Market.CloseSchedule)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(cfg, tradeSvc, wsHub),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		// Queued impact is drained by Close during shutdown, not cut off by ctx.
		worker.Run(context.WithoutCancel(gctx))
		return nil
	})
	g.Go(func() error {
		slog.Info("market-engine listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	sched.Start()

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down market-engine...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
		sched.Stop()
		worker.Close()
		return nil
	})

	return g.Wait()
}

func newRouter(cfg *config.Config, tradeSvc *trade.Service, wsHub *trade.WSHub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", trade.HeaderUserID, trade.HeaderUserName},
		ExposedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"market-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	h := trade.NewHandler(tradeSvc)
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time price and odds updates.
		r.Get("/ws", wsHub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			h.Routes(r)
		})
	})
	return r
}
