package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/montygracey/mediaconverter/internal/api"
	"github.com/montygracey/mediaconverter/internal/config"
	"github.com/montygracey/mediaconverter/internal/core/artifact"
	"github.com/montygracey/mediaconverter/internal/core/convert"
	"github.com/montygracey/mediaconverter/internal/core/dispatch"
	"github.com/montygracey/mediaconverter/internal/core/event"
	"github.com/montygracey/mediaconverter/internal/core/service"
	"github.com/montygracey/mediaconverter/internal/database"
	"github.com/montygracey/mediaconverter/internal/fileserver"
)

// Run wires the whole service together and blocks until shutdown.
func Run(ctx context.Context, cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		// Ephemeral secret; sessions and links die with the process.
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate jwt secret: %w", err)
		}
		jwtSecret = hex.EncodeToString(b)
		log.Warn().Msg("auth.jwt_secret not configured, using an ephemeral secret")
	}

	artifacts, err := artifact.NewDir(cfg.Converter.DownloadDir)
	if err != nil {
		return fmt.Errorf("artifact dir: %w", err)
	}

	runner := convert.NewRunner(cfg.Converter.Program, cfg.Converter.Args)
	if err := runner.LookPath(); err != nil {
		return fmt.Errorf("converter program: %w", err)
	}

	timeout, err := time.ParseDuration(cfg.Converter.Timeout)
	if err != nil {
		timeout = 5 * time.Minute
	}
	jwtExpiry, err := time.ParseDuration(cfg.Auth.JWTExpiry)
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}
	linkExpiry, err := time.ParseDuration(cfg.Limits.LinkExpiry)
	if err != nil {
		linkExpiry = 60 * time.Minute
	}

	bus := event.NewBus()
	stats := event.NewStatsCollector(bus)
	setupEventLogging(bus)

	jobStore := database.NewJobStore(pool)
	userStore := database.NewUserStore(pool)

	dispatcher := dispatch.New(jobStore, runner, bus, dispatch.Options{
		MaxConcurrent: cfg.Converter.MaxConcurrent,
		Timeout:       timeout,
	})

	svc := service.NewConversionService(jobStore, artifacts, dispatcher, bus)

	signer := fileserver.NewSigner(jwtSecret)
	fileSrv := fileserver.NewServer(signer, artifacts)

	fileBaseURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)

	e := echo.New()
	e.HideBanner = true

	api.SetupRouter(e, api.RouterConfig{
		Users:       userStore,
		Jobs:        jobStore,
		Svc:         svc,
		Stats:       stats,
		Signer:      signer,
		JWTSecret:   jwtSecret,
		JWTExpiry:   jwtExpiry,
		LinkExpiry:  linkExpiry,
		FileBaseURL: fileBaseURL,
	})

	// File download route, token access instead of session auth
	e.GET("/dl/:token/:filename", echo.WrapHandler(http.HandlerFunc(fileSrv.ServeFile)))

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("downloads", artifacts.BasePath()).
		Int("max_concurrent", cfg.Converter.MaxConcurrent).
		Msg("mediaconverter started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Int64("in_flight", dispatcher.InFlight()).Msg("dispatcher drain incomplete")
	}
	return nil
}

// setupEventLogging mirrors lifecycle events into the log.
func setupEventLogging(bus event.Bus) {
	bus.Subscribe(event.EventJobCompleted, func(_ context.Context, e event.Event) error {
		log.Info().Str("job_id", e.Payload.JobID).Str("title", e.Payload.Title).Str("artifact", e.Payload.ArtifactRef).Msg("job completed")
		return nil
	})
	bus.Subscribe(event.EventJobFailed, func(_ context.Context, e event.Event) error {
		log.Warn().Str("job_id", e.Payload.JobID).Str("error", e.Payload.Error).Msg("job failed")
		return nil
	})
}
