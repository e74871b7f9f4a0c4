// README: Entry point; loads config, wires infra and modules, serves the HTTP API until signalled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"reposition/internal/config"
	httptransport "reposition/internal/http"
	"reposition/internal/infra"
	"reposition/internal/modules/distance"
	"reposition/internal/modules/feematrix"
	"reposition/internal/modules/matching"
	"reposition/internal/modules/rules"
	"reposition/internal/modules/workflow"
	"reposition/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := infra.NewLogger(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("reposition-api stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	shutdownTracer, err := infra.InitTracer(ctx, "reposition-api", cfg.Tracing.Endpoint, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var notifier workflow.Notifier
	if cfg.Rabbit.URL != "" {
		publisher, err := infra.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		notifier = publisher
	} else {
		log.Warn().Msg("RABBIT_URL not set; transition notifications disabled")
	}

	feeStore := feematrix.NewPGStore(dbPool)
	matrix, err := feeStore.LoadMatrix(ctx)
	if err != nil {
		return fmt.Errorf("load fee matrix: %w", err)
	}
	log.Info().Int("routes", matrix.Len()).Msg("fee matrix loaded")
	fees := feematrix.NewService(feematrix.NewSnapshot(matrix, feeStore))
	locations := distance.NewLocationStore(dbPool)
	distances, err := newDistanceChain(ctx, cfg, log, fees, locations, redisClient)
	if err != nil {
		return err
	}

	ruleSvc := rules.NewService(rules.NewPGStore(dbPool), log.With().Str("module", "rules").Logger())
	matchingSvc := matching.NewService(distances, fees, matching.NewReputationStore(dbPool), cfg.Matching,
		log.With().Str("module", "matching").Logger())
	workflowSvc := workflow.NewService(workflow.Deps{
		Store:     workflow.NewPGStore(dbPool),
		Fees:      fees,
		Rules:     ruleSvc,
		Distances: distances,
		Suggester: matchingSvc,
		Addresses: locations,
		Notifier:  notifier,
		Config:    cfg.Workflow,
		Log:       log.With().Str("module", "workflow").Logger(),
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Workflow:    workflowSvc,
		Rules:       ruleSvc,
		Verifier:    verifier,
		Currency:    cfg.Workflow.Currency,
		Environment: cfg.Environment,
		Log:         log,
	})
	return httptransport.Serve(ctx, cfg.HTTP.Addr, router, log)
}

func newVerifier(ctx context.Context, cfg config.Config) (infra.TokenVerifier, error) {
	if cfg.Auth.Mode == "firebase" {
		v, err := infra.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseProjectID, cfg.Auth.FirebaseCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("firebase init: %w", err)
		}
		return v, nil
	}
	return infra.NewJWTVerifier(cfg.Auth.JWTSecret), nil
}

// newDistanceChain prefers the fee matrix, then road distance from Maps, then
// great-circle distance from the Redis GEO index and finally from memory.
func newDistanceChain(ctx context.Context, cfg config.Config, log zerolog.Logger, fees *feematrix.Service,
	locations *distance.LocationStore, redisClient *redis.Client) (distance.Chain, error) {
	known, err := locations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	points := make(map[types.ID]types.Point, len(known))
	for _, l := range known {
		points[l.ID] = l.Point
	}

	geo := distance.NewGeoResolver(redisClient)
	if err := geo.Index(ctx, known); err != nil {
		return nil, fmt.Errorf("index depots: %w", err)
	}

	chain := distance.Chain{fees}
	if cfg.Maps.APIKey != "" {
		m, err := distance.NewMapsResolver(cfg.Maps.APIKey, locations, redisClient, cfg.Maps.CacheTTL)
		if err != nil {
			return nil, err
		}
		chain = append(chain, m)
	} else {
		log.Warn().Msg("MAPS_API_KEY not set; road distance lookups disabled")
	}
	// The point resolver repeats the geo lookup in memory and only answers
	// when Redis is unreachable.
	chain = append(chain, geo, distance.NewPointResolver(points))
	log.Info().Int("locations", len(known)).Int("resolvers", len(chain)).Msg("distance resolvers ready")
	return chain, nil
}
