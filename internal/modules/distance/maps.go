// README: Road distance via Google Maps Distance Matrix, cached in Redis.
package distance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"googlemaps.github.io/maps"

	"reposition/internal/types"
)

const mapsCacheKeyPrefix = "reposition:distance:%s:%s"

type AddressBook interface {
	Address(ctx context.Context, id types.ID) (string, error)
}

// MapsResolver handles interactions with the Google Maps API.
type MapsResolver struct {
	client   *maps.Client
	cache    *redis.Client
	cacheTTL time.Duration
	book     AddressBook
}

// NewMapsResolver creates a resolver with the given API key; cache may be nil.
func NewMapsResolver(apiKey string, book AddressBook, cache *redis.Client, cacheTTL time.Duration) (*MapsResolver, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &MapsResolver{client: client, cache: cache, cacheTTL: cacheTTL, book: book}, nil
}

func (m *MapsResolver) DistanceKm(ctx context.Context, from, to types.ID) (float64, error) {
	if km, ok := m.cached(ctx, from, to); ok {
		return km, nil
	}

	origin, err := m.book.Address(ctx, from)
	if err != nil {
		return 0, err
	}
	destination, err := m.book.Address(ctx, to)
	if err != nil {
		return 0, err
	}

	resp, err := m.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{origin},
		Destinations: []string{destination},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	})
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, ErrUnknownDistance
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf("%w: maps element status %s", ErrUnknownDistance, el.Status)
	}

	km := float64(el.Distance.Meters) / 1000.0
	m.store(ctx, from, to, km)
	return km, nil
}

func (m *MapsResolver) cached(ctx context.Context, from, to types.ID) (float64, bool) {
	if m.cache == nil {
		return 0, false
	}
	val, err := m.cache.Get(ctx, fmt.Sprintf(mapsCacheKeyPrefix, from, to)).Result()
	if errors.Is(err, redis.Nil) || err != nil {
		return 0, false
	}
	km, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return km, true
}

func (m *MapsResolver) store(ctx context.Context, from, to types.ID, km float64) {
	if m.cache == nil {
		return
	}
	_ = m.cache.Set(ctx, fmt.Sprintf(mapsCacheKeyPrefix, from, to), strconv.FormatFloat(km, 'f', 3, 64), m.cacheTTL).Err()
}
