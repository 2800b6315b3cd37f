package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/smiling-critters/critter-gateway/internal/auth"
	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/filter/policy"
	"github.com/smiling-critters/critter-gateway/internal/gateway"
	"github.com/smiling-critters/critter-gateway/internal/ratelimit"
	"github.com/smiling-critters/critter-gateway/internal/router"
	"github.com/smiling-critters/critter-gateway/internal/store"
	"github.com/smiling-critters/critter-gateway/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load configuration
	loader := config.NewLoader(*configDir, bootLogger)
	if err := loader.Load(); err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	logger := telemetry.NewLogger(cfg.Telemetry, os.Stdout)
	slog.SetDefault(logger)

	done := make(chan struct{})
	if err := loader.Watch(done); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	// Connect to PostgreSQL
	dbPool, err := store.Connect(context.Background(), cfg.Database.DSN(), int32(cfg.Database.MaxOpenConns), cfg.Database.ConnMaxLifetime)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Connect to Redis
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (settings cache, rate limits and daily usage disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	st := store.New(dbPool, rdb, cfg.Redis.SettingsTTL)
	if err := st.Ping(context.Background()); err != nil {
		logger.Warn("database not reachable (gateway will start but sessions will fail)", "error", err)
	} else {
		logger.Info("database connected")
		if n, err := st.SeedDefaults(context.Background(), config.DefaultSettings()); err != nil {
			logger.Warn("failed to seed default settings", "error", err)
		} else if n > 0 {
			logger.Info("seeded default settings", "count", n)
		}
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	// Backend router. Endpoint, model and key are resolved per call from
	// the settings store so parent changes apply without a restart.
	resolver := config.NewResolver(st, logger)
	routing := func() config.RoutingConfig { return loader.Config().Routing }
	chatRouter := router.BuildFromConfig(resolver, routing, metrics, logger)

	// Screen-time policy
	policyCfg := func() config.PolicyConfig { return loader.Config().Policy }
	evaluator := policy.NewEvaluator(policyCfg, logger)
	if err := evaluator.Load(); err != nil {
		logger.Error("failed to load screen-time policy", "error", err)
		os.Exit(1)
	}
	if !evaluator.Enabled() {
		logger.Warn("screen-time policy disabled, quiet hours and daily limit are not enforced")
	}

	loader.OnReload(func(c *config.Config) {
		if err := evaluator.Load(); err != nil {
			logger.Error("failed to reload screen-time policy", "error", err)
		}
		chatRouter.Reset()
		logger.Info("configuration reloaded", "log_level", c.Telemetry.LogLevel)
	})

	location := gateway.LocationFromConfig(policyCfg, logger)
	limiter := ratelimit.NewLimiter(rdb)
	usage := ratelimit.NewUsageTracker(rdb, location())

	handler := gateway.NewHandler(gateway.Deps{
		Store:    st,
		Router:   chatRouter,
		Prefs:    resolver,
		Policy:   evaluator,
		Usage:    usage,
		Metrics:  metrics,
		Logger:   logger,
		Location: location,
		Version:  version,
	})
	routes := handler.Routes(gateway.RouteOptions{
		ParentAuth: auth.Middleware(st, limiter, metrics, logger),
		TurnLimit: ratelimit.TurnMiddleware(limiter, func() config.RateLimitConfig {
			return loader.Config().RateLimit
		}, metrics, logger),
		TrustProxy: cfg.Server.TrustProxyHeaders,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      routes,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Telemetry.MetricsPort),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// gRPC health mirrors backend availability for orchestrators.
	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	reporter := gateway.NewHealthReporter(chatRouter, 10*time.Second, logger)
	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, reporter.Server())
	go reporter.Run(healthCtx)

	errCh := make(chan error, 3)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		logger.Info("metrics listening", "addr", metricsSrv.Addr)
		errCh <- metricsSrv.ListenAndServe()
	}()
	go func() {
		grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			errCh <- fmt.Errorf("listen grpc: %w", err)
			return
		}
		logger.Info("grpc health listening", "addr", grpcAddr)
		errCh <- grpcSrv.Serve(lis)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	close(done)
	stopHealth()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	grpcSrv.GracefulStop()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Warn("metrics shutdown failed", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		rdb.Close()
	}
	logger.Info("gateway stopped")
}
