package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3-frozen/collateral-risk-monitor/internal/cache"
	"github.com/web3-frozen/collateral-risk-monitor/internal/config"
	"github.com/web3-frozen/collateral-risk-monitor/internal/handler"
	"github.com/web3-frozen/collateral-risk-monitor/internal/middleware"
	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor/sources"
	"github.com/web3-frozen/collateral-risk-monitor/internal/store"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var readiness []handler.Pinger

	// Optional Redis response cache (retry up to 30s for ExternalSecret to sync)
	var respCache sources.ResponseCache
	if cfg.RedisURL != "" {
		var (
			rc  *cache.Cache
			err error
		)
		for i := 0; i < 6; i++ {
			rc, err = cache.New(cfg.RedisURL, cfg.RedisPassword)
			if err == nil {
				break
			}
			logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
			time.Sleep(5 * time.Second)
		}
		if err != nil {
			logger.Warn("redis unavailable, upstream responses will not be cached", "error", err)
		} else {
			defer rc.Close()
			respCache = rc
			logger.Info("redis connected for upstream response cache")
		}
	}

	// Optional trove indexer database
	var indexer sources.TroveLister
	if cfg.TrovesDatabaseURL != "" {
		db, err := store.New(ctx, cfg.TrovesDatabaseURL, cfg.TroveManager)
		if err != nil {
			logger.Error("failed to connect to trove database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		indexer = db
		readiness = append(readiness, db)
		logger.Info("trove database connected")
	}

	// Data sources
	srcLogger := logger.With("component", "sources")
	prisma := sources.NewPrisma(cfg.PrismaURL, cfg.CollateralAddress, cfg.TroveManager, respCache, srcLogger)
	prisma.SetCacheTTL(cfg.CacheTTL)
	gecko := sources.NewCoinGecko(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey, respCache, srcLogger)
	gecko.SetCacheTTL(cfg.CacheTTL)

	// Monitoring engine
	asmCfg := monitor.DefaultAssemblerConfig()
	asmCfg.Asset = cfg.OHLCCoinID
	asmCfg.WindowDays = cfg.OHLCDays
	engineLogger := logger.With("component", "engine")
	assembler := monitor.NewAssembler(sources.NewAdapter(prisma, gecko, indexer), asmCfg, engineLogger)
	engine := monitor.NewEngine(monitor.NewStore(), monitor.NewOverrides(), assembler, engineLogger, cfg.RefreshInterval)

	go engine.Run(ctx)

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(engine, readiness...))
	r.Get("/refresh-cache", handler.Refresh(engine, logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/latest", handler.Latest(engine, logger))
		r.Get("/history", handler.History(engine))
		r.Post("/refresh", handler.Refresh(engine, logger))
		r.Get("/override", handler.GetOverride(engine))
		r.Put("/override", handler.SetOverride(engine))
		r.Get("/stream", handler.Stream(engine, middleware.OriginChecker(cfg.FrontendOrigin), logger))
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// long enough for a refresh triggered by a request
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
