package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/example/rider-dispatch/internal/config"
	"github.com/example/rider-dispatch/internal/directory"
	"github.com/example/rider-dispatch/internal/dispatchq"
	"github.com/example/rider-dispatch/internal/gateway"
	"github.com/example/rider-dispatch/internal/geo"
	"github.com/example/rider-dispatch/internal/httpapi"
	"github.com/example/rider-dispatch/internal/ingest"
	"github.com/example/rider-dispatch/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var reg geo.Registry
	var dir directory.Directory
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		reg = geo.NewRedisRegistry(client, cfg.RedisGeoKey, logger)
		dir = directory.NewRedisDirectory(client, logger)
		logger.Info("using redis-backed registry", "addr", cfg.RedisAddr, "geo_key", cfg.RedisGeoKey)
	} else {
		reg = geo.NewIndex()
		dir = directory.NewTable()
		logger.Info("using in-memory registry")
	}

	sessions := gateway.NewSessionRegistry(logger)
	gw := gateway.New(reg, dir, dispatchq.NewStore(), sessions, logger, gateway.Config{
		RadiusKm:      cfg.DispatchRadiusKm,
		MaxCandidates: cfg.DispatchMaxCandidates,
		OfferTimeout:  cfg.OfferTimeout,
	})

	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		gw.SetPublisher(producer)
		logger.Info("mirroring locations to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	api := httpapi.NewServer(logger, gw, reg, dir, cfg.DispatchRadiusKm, cfg.DispatchMaxCandidates)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("rider-dispatch listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
