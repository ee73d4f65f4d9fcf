package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookrent/gateway/internal/breaker"
	"github.com/bookrent/gateway/internal/client"
	"github.com/bookrent/gateway/internal/config"
	"github.com/bookrent/gateway/internal/handler"
	"github.com/bookrent/gateway/internal/logger"
	"github.com/bookrent/gateway/internal/middleware"
	"github.com/bookrent/gateway/internal/queue"
	"github.com/bookrent/gateway/internal/saga"
	"github.com/bookrent/gateway/internal/service"
	"github.com/bookrent/gateway/internal/telemetry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	log.Info("starting gateway",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.Server.Port))

	ctx := context.Background()
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		log.Fatal("failed to init telemetry", zap.Error(err))
	}

	// One breaker per downstream: failures against one backend must not
	// shut off traffic to the others.
	newBreaker := func(name string) *breaker.CircuitBreaker {
		return breaker.New(breaker.Settings{
			Name:             name,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
			OpenTimeout:      cfg.Breaker.OpenTimeout,
			Logger:           log,
		})
	}
	clientOpts := func(name, baseURL string) client.Options {
		return client.Options{
			BaseURL:        baseURL,
			ConnectTimeout: cfg.Client.ConnectTimeout,
			RequestTimeout: cfg.Client.RequestTimeout,
			Breaker:        newBreaker(name),
			Logger:         log,
		}
	}

	libraryClient := client.NewLibraryClient(clientOpts("library", cfg.Library.BaseURL()))
	reservationClient := client.NewReservationClient(clientOpts("reservation", cfg.Reservation.BaseURL()))
	ratingClient := client.NewRatingClient(clientOpts("rating", cfg.Rating.BaseURL()))

	orchestrator := saga.NewOrchestrator(libraryClient, reservationClient, ratingClient, log)

	retryQueue := queue.New()
	worker := queue.NewWorker(retryQueue, orchestrator, cfg.Retry.FailureDelay, log)
	workerCtx, stopWorker := context.WithCancel(ctx)
	go worker.Run(workerCtx)

	authService := service.NewAuthService(service.AuthConfig{
		Secret:         cfg.JWT.Secret,
		AccessTokenTTL: cfg.JWT.AccessTokenTTL,
		Issuer:         cfg.JWT.Issuer,
	}, service.SeedUsers())

	gatewayHandler := handler.NewGatewayHandler(
		libraryClient, reservationClient, ratingClient, orchestrator, retryQueue, log)
	authHandler := handler.NewAuthHandler(authService, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware())
	}
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS())

	router.GET("/manage/health", gatewayHandler.Health)
	router.POST("/oauth/token", authHandler.Token)

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(authService))
	gatewayHandler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}

	// Deferred sagas are in-process only; stop the worker without
	// draining what remains.
	stopWorker()
	worker.Wait()

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Error("telemetry shutdown failed", zap.Error(err))
	}

	log.Info("gateway stopped")
}
