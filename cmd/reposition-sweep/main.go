// README: One-shot expiry sweep for stale COD requests; run from cron.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reposition/internal/config"
	"reposition/internal/infra"
	"reposition/internal/modules/workflow"
	"reposition/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := infra.NewLogger(cfg.Environment).With().Str("job", "cod-expiry").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	shutdownTracer, err := infra.InitTracer(ctx, "reposition-sweep", cfg.Tracing.Endpoint, cfg.Environment)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracer")
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbPool.Close()

	deps := workflow.Deps{
		Store:  workflow.NewPGStore(dbPool),
		Config: cfg.Workflow,
		Log:    log,
	}
	if cfg.Rabbit.URL != "" {
		publisher, err := infra.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			log.Warn().Err(err).Msg("notifications disabled")
		} else {
			defer publisher.Close()
			deps.Notifier = publisher
		}
	}

	n, err := workflow.NewService(deps).ExpireStaleRequests(ctx, types.SystemActor, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Int("expired", n).Msg("sweep failed")
		os.Exit(1)
	}
	log.Info().Int("expired", n).Msg("sweep finished")
}
