package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optiroute/backend/internal/config"
	"github.com/optiroute/backend/internal/db"
	"github.com/optiroute/backend/internal/geocode"
	httpapi "github.com/optiroute/backend/internal/http"
	"github.com/optiroute/backend/internal/routing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "optiroute-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var strategy routing.Strategy
	if cfg.SolverURL == "" {
		strategy = routing.NewGreedyRouter()
		logger.Info().Msg("using greedy routing strategy")
	} else {
		strategy = routing.SolverGateway{BaseURL: cfg.SolverURL, APIKey: cfg.SolverAPIKey}
		logger.Info().Str("solver_url", cfg.SolverURL).Msg("using remote solver strategy")
	}

	orchestrator := &routing.Orchestrator{
		Store:        store,
		Strategy:     strategy,
		Runs:         store,
		SolveTimeout: cfg.SolverTimeout,
		Logger:       logger,
	}

	geocoder := &geocode.NominatimGeocoder{
		BaseURL:   cfg.GeocoderURL,
		UserAgent: cfg.GeocoderAgent,
	}

	router := httpapi.Router(cfg, store, orchestrator, geocoder, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
