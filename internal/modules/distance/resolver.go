// README: Distance resolvers between two known locations (depots, yards, terminals).
package distance

import (
	"context"
	"errors"
	"fmt"

	"reposition/internal/types"
)

var ErrUnknownDistance = errors.New("distance unknown")

// Resolver returns the distance in kilometres between two location ids.
type Resolver interface {
	DistanceKm(ctx context.Context, from, to types.ID) (float64, error)
}

// Chain asks each resolver in order and returns the first answer.
type Chain []Resolver

func (c Chain) DistanceKm(ctx context.Context, from, to types.ID) (float64, error) {
	if from == to {
		return 0, nil
	}
	var last error
	for _, r := range c {
		if r == nil {
			continue
		}
		km, err := r.DistanceKm(ctx, from, to)
		if err == nil {
			return km, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		last = err
	}
	if last != nil {
		return 0, fmt.Errorf("%w: %s -> %s: %v", ErrUnknownDistance, from, to, last)
	}
	return 0, fmt.Errorf("%w: %s -> %s", ErrUnknownDistance, from, to)
}

// PointResolver computes great-circle distance from in-memory coordinates.
type PointResolver struct {
	points map[types.ID]types.Point
}

func NewPointResolver(points map[types.ID]types.Point) *PointResolver {
	cp := make(map[types.ID]types.Point, len(points))
	for id, p := range points {
		cp[id] = p
	}
	return &PointResolver{points: cp}
}

func (r *PointResolver) DistanceKm(_ context.Context, from, to types.ID) (float64, error) {
	a, okA := r.points[from]
	b, okB := r.points[to]
	if !okA || !okB {
		return 0, ErrUnknownDistance
	}
	return haversineKm(a.Lat, a.Lng, b.Lat, b.Lng), nil
}
