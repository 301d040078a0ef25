package main // Entry point package

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/handler"
	"github.com/iliyamo/smart-parking/internal/hub"
	"github.com/iliyamo/smart-parking/internal/logger"
	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/mqtt"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
	"github.com/iliyamo/smart-parking/internal/router"
	queue_publisher "github.com/iliyamo/smart-parking/internal/service"
	"github.com/iliyamo/smart-parking/internal/telemetry"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// The store connection is the only startup-fatal dependency: without it
	// there is no state to serve, so request handling must not begin.
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	spaces := repository.NewSpaceRepo(db)
	ctx := context.Background()
	if err := spaces.EnsureSchema(ctx); err != nil {
		zl.Fatal("ensure schema", zap.Error(err))
	}
	// Seed before any writer starts so telemetry never targets a
	// not-yet-existing record.
	if err := spaces.SeedIfEmpty(ctx, model.DefaultSpaces); err != nil {
		zl.Fatal("seed parking spaces", zap.Error(err))
	}
	zl.Info("parking store ready", zap.Int("seed_size", len(model.DefaultSpaces)))

	// Redis is optional: a nil client disables caching and rate limiting.
	rdb := config.NewRedisClient()
	if rdb == nil {
		zl.Warn("redis unavailable, cache and rate limiting disabled")
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	broadcast := hub.New(zl)

	// Telemetry ingest.  The MQTT connection is not startup-fatal: sensors
	// can join later, and auto-reconnect picks the subscription back up.
	consumer := telemetry.NewConsumer(spaces, broadcast, func(ctx context.Context) {
		cache.Invalidate(ctx, http.MethodGet, "/api/places")
	}, zl)
	if mq, err := mqtt.Connect(cfg.MQTTBroker, cfg.MQTTClientID, zl); err != nil {
		zl.Warn("MQTT broker unavailable, telemetry ingest disabled", zap.Error(err))
	} else {
		defer mq.Disconnect()
		if err := consumer.Start(mq, cfg.MQTTTopic); err != nil {
			zl.Fatal("subscribe to sensor topic", zap.Error(err))
		}
	}

	// Reservation event trail.
	go queue.StartReservationConsumer(zl)

	parking := handler.NewParkingHandler(spaces, broadcast, cache, queue_publisher.PublishSpaceReserved, zl)
	ws := handler.NewWSHandler(broadcast, spaces, zl)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, parking, ws, cache, limiter)

	addr := ":" + cfg.Port
	zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
