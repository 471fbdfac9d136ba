package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/breaktracker/backend/internal/config"
	"github.com/breaktracker/backend/internal/db"
	"github.com/breaktracker/backend/internal/monitor"
	"github.com/breaktracker/backend/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "break-monitor").Logger()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("bad timezone")
	}
	durations, err := cfg.Durations()
	if err != nil {
		logger.Fatal().Err(err).Msg("bad break duration overrides")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(observability.Registry, promhttp.HandlerOpts{}))
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listener started")
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				logger.Error().Err(err).Msg("metrics listener error")
			}
		}()
	}

	m := &monitor.Monitor{
		Store:     store,
		Durations: durations,
		Interval:  cfg.MonitorInterval,
		Logger:    logger.With().Str("component", "monitor").Logger(),
		Now:       func() time.Time { return time.Now().In(loc) },
	}
	go m.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	logger.Info().Msg("monitor stopped")
}
