// Command server runs the AI generation and paid-download backend.
//
// Boot order: env file, config, logging, tracing, storage, worker pool,
// router, then the startup requeue of tasks a previous process abandoned.
// Shutdown drains in reverse: HTTP first so no new jobs arrive, then the
// pool, then tracing.
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

	"github.com/fingermelody/ai-generation-codebuddy/internal/config"
	httpapi "github.com/fingermelody/ai-generation-codebuddy/internal/http"
	"github.com/fingermelody/ai-generation-codebuddy/internal/observability"
	"github.com/fingermelody/ai-generation-codebuddy/internal/repo"
	"github.com/fingermelody/ai-generation-codebuddy/internal/secrets"
	"github.com/fingermelody/ai-generation-codebuddy/internal/sysutil"
	"github.com/fingermelody/ai-generation-codebuddy/internal/worker"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	gin.SetMode(cfg.GinMode)

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	box, err := secrets.New(cfg.CredentialMasterKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid credential master key")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("could not open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if cfg.SeedDemoModels {
		if err := repo.SeedDefaultModels(ctx, db, box.Seal); err != nil {
			log.Fatal().Err(err).Msg("model seeding failed")
		}
	}

	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.QueueSize)
	pool.Start(context.Background())

	r := gin.New()
	genSvc := httpapi.RegisterRoutes(r, db, box, pool, cfg)
	pool.FailFn = genSvc.FailTask

	// Tasks a previous process left mid-flight go back on the queue before
	// traffic is accepted.
	if n, err := genSvc.RecoverStuck(ctx); err != nil {
		log.Error().Err(err).Msg("stuck task recovery failed")
	} else if n > 0 {
		log.Info().Int("requeued", n).Msg("recovered abandoned tasks")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}

	pool.Shutdown()

	if err := otelShutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
