package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/railguard/railguard/internal/logger"
	"github.com/railguard/railguard/pkg/config"
	"github.com/railguard/railguard/pkg/guardrail"
	"github.com/railguard/railguard/pkg/infra/httpx"
	"github.com/railguard/railguard/pkg/infra/tracker"
	"github.com/railguard/railguard/pkg/server"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	if err := config.Load("./config"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	logg := logger.NewLogger(cfg.Logging.Level)

	guardCfg, err := guardrail.DecodeConfig(cfg.Guardrail)
	if err != nil {
		logg.WithError(err).Fatal("invalid guardrail config")
	}

	breaker := httpx.NewCircuitBreaker("railguard", guardCfg.Timeout(), 5)
	client := guardrail.NewRailsClient(logg, &http.Client{}, breaker, guardCfg)

	var opts []guardrail.Option
	if guardCfg.TrackViolations {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logg.WithError(err).Fatal("failed to connect to redis")
		}
		opts = append(opts, guardrail.WithViolationTracker(
			tracker.NewRedisTracker(redisClient),
			tracker.DefaultExpiration,
		))
	}

	engine := guardrail.NewEngine(
		logg,
		client,
		guardrail.NewConfigGate(guardCfg),
		guardrail.NewMetadataBypass(guardrail.GuardrailName),
		guardrail.AppliedHeaderRecorder{},
		guardrail.NewLogSink(logg),
		opts...,
	)

	srv := server.NewServer(cfg, logg, engine)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logg.WithError(err).Error("server stopped")
		time.Sleep(100 * time.Millisecond)
		os.Exit(1)
	}
}
