package main

import (
	"context"
	"errors"
	_ "expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/ai-sdk-gateway/internal/cli"
	"github.com/nulzo/ai-sdk-gateway/internal/config"
	"github.com/nulzo/ai-sdk-gateway/internal/gateway"
	"github.com/nulzo/ai-sdk-gateway/internal/platform/logger"
	"github.com/nulzo/ai-sdk-gateway/internal/platform/otel"
	"github.com/nulzo/ai-sdk-gateway/internal/server"
	"github.com/nulzo/ai-sdk-gateway/internal/store/cache"
	"github.com/nulzo/ai-sdk-gateway/internal/version"
	"go.uber.org/zap"

	// Import providers to trigger init() registration
	_ "github.com/nulzo/ai-sdk-gateway/internal/llm/anthropic"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	cli.SetEnabled(cfg.Log.Color)

	log, err := logger.Initialize(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Color,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	fmt.Println(cli.Banner("AI SDK Gateway " + version.Version))
	if cfg.Log.Level == "debug" {
		fmt.Println(cli.PrettyFormat(cfg.Redacted()))
	}

	shutdownTracer, err := otel.InitTracer(cfg.Tracing, log, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	if cfg.Server.CheckUpdates {
		go checkForUpdates(log)
	}

	opts := []gateway.Option{gateway.WithLogger(log)}
	if cfg.Cache.Enabled {
		c, err := newCache(cfg.Cache)
		if err != nil {
			log.Fatal("Failed to initialize cache", zap.String("backend", cfg.Cache.Backend), zap.Error(err))
		}
		defer func() {
			_ = c.Close()
		}()
		opts = append(opts, gateway.WithCache(c, cfg.Cache.TTL))
		log.Info("Response cache enabled", zap.String("backend", cfg.Cache.Backend), zap.Duration("ttl", cfg.Cache.TTL))
	}

	manager := gateway.NewManager(opts...)
	gateway.Bootstrap(manager, cfg.AI, log)

	if cfg.Server.DebugAddr != "" {
		go func() {
			log.Info("Debug server listening", zap.String("addr", cfg.Server.DebugAddr))
			if err := http.ListenAndServe(cfg.Server.DebugAddr, http.DefaultServeMux); err != nil {
				log.Warn("Debug server stopped", zap.Error(err))
			}
		}()
	}

	srv := server.New(cfg, log, manager).HTTPServer()

	go func() {
		log.Info(fmt.Sprintf("%s Listening on %s", cli.Arrow(), cli.Stylize(srv.Addr, cli.Cyan)),
			zap.String("base_path", cfg.Server.BasePath),
			zap.String("env", cfg.Server.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	manager.Destroy()

	if err := shutdownTracer(ctx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}

	log.Info("Server exited")
}

func newCache(cfg config.CacheConfig) (cache.CacheService, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemoryCache(time.Minute), nil
	case "redis":
		return cache.NewRedisCache(context.Background(), cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func checkForUpdates(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	latest, outdated, err := version.NewChecker().Latest(ctx)
	if err != nil {
		log.Debug("Update check failed", zap.Error(err))
		return
	}
	if outdated {
		log.Warn(fmt.Sprintf("%s You are running an outdated version (%s). The latest version is %s.",
			cli.WarningSign(), version.Version, latest))
	}
}
