package main

// @title           Notify Service API
// @version         1.0
// @description     Realtime notification delivery service
// @host            localhost:8080
// @BasePath        /api/v1
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"notify-service/internal/adapters/kafka"
	"notify-service/internal/api/routes"
	"notify-service/internal/config"
	"notify-service/internal/database"
	"notify-service/internal/engine"
	"notify-service/internal/gate"
	"notify-service/internal/service"
	"notify-service/internal/websocket"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting notify service")

	redisClient, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// The engine's slow, failable setup runs behind the readiness gate so
	// the HTTP server starts accepting connections immediately. The factory
	// runs at most once per process.
	engineGate := gate.New(func(ctx context.Context) (engine.Engine, error) {
		db, err := database.NewPostgresConnection(cfg.Database.URI)
		if err != nil {
			return nil, err
		}

		var producer *kafka.Producer
		if cfg.Kafka.Enabled {
			producer, err = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return nil, err
			}
		}

		return engine.NewCenter(engine.Options{
			Storage:  engine.NewGormStorage(db),
			Redis:    redisClient,
			Producer: producer,
		}), nil
	})

	go func() {
		if err := engineGate.Initialize(context.Background()); err != nil {
			slog.Error("Engine initialization failed; dependent operations will be rejected", "error", err)
		}
	}()

	svc := service.New(engineGate)

	hub := websocket.NewHub()
	session := websocket.NewSession(hub, svc)

	bridge := websocket.NewBridge(hub, svc)
	go func() {
		if err := bridge.Run(context.Background()); err != nil {
			slog.Error("Subscription bridge degraded", "error", err)
		}
	}()

	router := routes.NewRouter(svc, session, redisClient, cfg.JWT.Secret)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bridge.Close()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := engineGate.Shutdown(ctx); err != nil {
		slog.Error("Engine shutdown failed", "error", err)
	}

	slog.Info("Server stopped")
}
