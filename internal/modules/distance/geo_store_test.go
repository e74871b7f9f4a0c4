// README: Redis GEO resolver tests; skipped without a Redis address.
package distance

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"reposition/internal/types"
)

func TestGeoResolver(t *testing.T) {
	redisAddr := os.Getenv("REPOSITION_REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("REPOSITION_REDIS_ADDR not set; skipping integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	ctx := context.Background()
	g := NewGeoResolver(rdb)
	err := g.Index(ctx, []Location{
		{ID: "geo-test-rotterdam", Point: types.Point{Lat: 51.9244, Lng: 4.4777}},
		{ID: "geo-test-antwerp", Point: types.Point{Lat: 51.2194, Lng: 4.4025}},
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	km, err := g.DistanceKm(ctx, "geo-test-rotterdam", "geo-test-antwerp")
	if err != nil {
		t.Fatalf("geodist: %v", err)
	}
	if km < 70 || km > 90 {
		t.Fatalf("unexpected distance %v", km)
	}

	if _, err := g.DistanceKm(ctx, "geo-test-rotterdam", "geo-test-missing"); !errors.Is(err, ErrUnknownDistance) {
		t.Fatalf("expected ErrUnknownDistance, got %v", err)
	}
}
