package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskbot/internal/api"
	"taskbot/internal/cache"
	"taskbot/internal/metrics"
	"taskbot/internal/middleware"
	"taskbot/internal/notify"
	"taskbot/internal/repository"
	"taskbot/internal/service"
	"taskbot/internal/telegram"
	"taskbot/pkg/auth"
	"taskbot/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "taskbot",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := repository.Migrate(cfg.Database); err != nil {
		zapLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	var (
		settingsCache service.SettingsCache
		locker        service.Locker
	)
	if cfg.Redis.Addr != "" {
		rc := cache.New(cfg.Redis)
		defer rc.Close()

		if err := rc.Ping(ctx); err != nil {
			zapLogger.Warn("Redis is unreachable, continuing without shared cache", zap.Error(err))
		} else {
			settingsCache = rc
			locker = rc
		}
	}

	bot, err := telegram.New(telegram.Config{
		BotToken:       cfg.TelegramAuth.TelegramBotToken,
		Debug:          cfg.TelegramAuth.Debug,
		RequestTimeout: cfg.TelegramAuth.RequestTimeout,
	})
	if err != nil {
		zapLogger.Fatal("Failed to initialize telegram bot", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hub := notify.NewHub()
	notifier := notify.Multi{bot, hub}

	settings := service.NewSettingsProvider(repo, settingsCache, cfg.Engine.SettingsRefresh)
	ranks := service.NewRankService(repo, settings, bot, notifier, m)
	rewards := service.NewRewardEngine(repo)

	services := api.Services{
		Users:    service.NewUserService(repo, settings, ranks),
		Attempts: service.NewAttemptService(repo, settings, rewards, ranks, notifier, m),
		Ranks:    ranks,
		Premium:  service.NewPremiumService(repo, settings, ranks, notifier, m),
		Tasks:    service.NewTaskService(repo),
		Settings: settings,
	}

	sweeper := service.NewExpirySweeper(repo, ranks, locker, m, cfg.Engine.SweepInterval, cfg.Engine.SweepLockTTL)
	go sweeper.Run(ctx)

	telegramAuth := auth.NewTelegramAuth(cfg.TelegramAuth.TelegramBotToken, cfg.TelegramAuth.Debug)
	authorization := middleware.NewAuthorization(services.Users)

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	a := router.Group("/api/v1")
	api.NewUserRoutes(a, services.Users, telegramAuth)
	api.NewTaskRoutes(a, services.Attempts, telegramAuth)
	api.NewRankRoutes(a, services.Ranks, telegramAuth)
	api.NewPremiumRoutes(a, services.Premium, telegramAuth)
	api.NewWSRoutes(a, hub, telegramAuth, ctx)
	api.NewAdminRoutes(a, services, telegramAuth, authorization.AdminOnly())

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		zapLogger.Info("Starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down server gracefully", zap.Error(err))
	}
}
