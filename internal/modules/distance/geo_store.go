// README: Redis GEO index of location coordinates; answers GEODIST lookups.
package distance

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"reposition/internal/types"
)

const locationGeoKey = "reposition:locations"

type GeoResolver struct {
	redis *redis.Client
}

func NewGeoResolver(redis *redis.Client) *GeoResolver {
	return &GeoResolver{redis: redis}
}

// Index (re)loads location coordinates into the GEO set.
func (g *GeoResolver) Index(ctx context.Context, locations []Location) error {
	if len(locations) == 0 {
		return nil
	}
	members := make([]*redis.GeoLocation, 0, len(locations))
	for _, l := range locations {
		members = append(members, &redis.GeoLocation{
			Name:      string(l.ID),
			Longitude: l.Point.Lng,
			Latitude:  l.Point.Lat,
		})
	}
	return g.redis.GeoAdd(ctx, locationGeoKey, members...).Err()
}

func (g *GeoResolver) DistanceKm(ctx context.Context, from, to types.ID) (float64, error) {
	km, err := g.redis.GeoDist(ctx, locationGeoKey, string(from), string(to), "km").Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrUnknownDistance
	}
	if err != nil {
		return 0, err
	}
	return km, nil
}
