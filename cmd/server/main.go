// Command server runs the MechanicOnDemand backend HTTP API.
//
// It loads configuration from the environment, initializes structured
// logging, tracing, storage and the event producer, mounts the HTTP routes,
// and serves until interrupted, then shuts down gracefully.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/mechanicondemand/go-backend/docs"
	"github.com/mechanicondemand/go-backend/internal/config"
	"github.com/mechanicondemand/go-backend/internal/events"
	httpapi "github.com/mechanicondemand/go-backend/internal/http"
	"github.com/mechanicondemand/go-backend/internal/observability"
	"github.com/mechanicondemand/go-backend/internal/repo"
	"github.com/mechanicondemand/go-backend/internal/sysutil"
)

var version = "dev"

// @title           MechanicOnDemand Backend API
// @version         1.0
// @description     Service request lifecycle, notifications and payments for the MechanicOnDemand marketplace.
// @BasePath        /api
//
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
func main() {
	// Optional .env for local development; ignored when absent.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn().Err(err).Msg("kafka producer close")
		}
	}()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, producer, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("stopped")
}
