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
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Cardeon/internal/config"
	"github.com/Alias1177/Cardeon/internal/database"
	"github.com/Alias1177/Cardeon/internal/inference"
	"github.com/Alias1177/Cardeon/internal/pipeline"
	"github.com/Alias1177/Cardeon/internal/report"
	"github.com/Alias1177/Cardeon/internal/server"
)

func main() {
	gin.SetMode(getEnv("GIN_MODE", gin.ReleaseMode))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogger(cfg.LogLevel)
	config.PrintConfig(cfg)
	logger := log.With().Str("component", "server").Logger()

	ctx := context.Background()
	var store database.CheckupStore
	if cfg.EnableDB {
		db, err := database.New(ctx, config.DSN(cfg))
		if err != nil {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()
		store = db
	}

	generator, err := inference.NewGenerator(cfg, inference.NewTransport(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create inference backend")
	}
	client := inference.NewClient(generator)
	newPipeline := func() *pipeline.Pipeline { return pipeline.New(client, cfg.Timeout()) }

	router := server.New(newPipeline, report.NewExporter(), store).Router()
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// inference may take the whole request timeout before the fallback kicks in
		WriteTimeout: cfg.Timeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server error")
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddr).Str("backend", generator.Name()).Msg("Server listening")
	waitForShutdown(srv)
}

func waitForShutdown(srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
