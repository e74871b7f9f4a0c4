// README: Fee matrix service; pure lookup that never defaults a missing route to zero.
package feematrix

import (
	"context"
	"errors"
	"fmt"

	"reposition/internal/types"
)

var (
	ErrNotPriced    = errors.New("route not priced")
	ErrInvalidRoute = errors.New("invalid route")
)

type Store interface {
	GetEntry(ctx context.Context, route Route) (Entry, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Lookup returns the fee and distance for a directional depot pair.
// A missing entry yields ErrNotPriced.
func (s *Service) Lookup(ctx context.Context, origin, destination types.ID) (Quote, error) {
	if origin == "" || destination == "" {
		return Quote{}, fmt.Errorf("%w: origin and destination are required", ErrInvalidRoute)
	}
	if origin == destination {
		return Quote{}, fmt.Errorf("%w: origin and destination depot are the same", ErrInvalidRoute)
	}
	e, err := s.store.GetEntry(ctx, Route{Origin: origin, Destination: destination})
	if err != nil {
		if errors.Is(err, ErrNotPriced) {
			return Quote{}, fmt.Errorf("%w: %s -> %s", ErrNotPriced, origin, destination)
		}
		return Quote{}, err
	}
	return Quote{
		Origin:      origin,
		Destination: destination,
		Fee:         e.Fee,
		DistanceKm:  e.DistanceKm,
	}, nil
}

// DistanceKm exposes the matrix as a distance source for the matching engine.
func (s *Service) DistanceKm(ctx context.Context, from, to types.ID) (float64, error) {
	q, err := s.Lookup(ctx, from, to)
	if err != nil {
		return 0, err
	}
	return q.DistanceKm, nil
}

// Matrix is an immutable in-memory Store, used for preloaded reference data.
type Matrix struct {
	entries map[Route]Entry
}

func NewMatrix(entries []Entry) *Matrix {
	m := &Matrix{entries: make(map[Route]Entry, len(entries))}
	for _, e := range entries {
		m.entries[e.Route] = e
	}
	return m
}

func (m *Matrix) GetEntry(_ context.Context, route Route) (Entry, error) {
	e, ok := m.entries[route]
	if !ok {
		return Entry{}, ErrNotPriced
	}
	return e, nil
}

func (m *Matrix) Len() int {
	return len(m.entries)
}

// Snapshot serves entries from a preloaded Matrix and asks the live store
// only for routes missing from it.
type Snapshot struct {
	matrix *Matrix
	live   Store
}

func NewSnapshot(matrix *Matrix, live Store) *Snapshot {
	return &Snapshot{matrix: matrix, live: live}
}

func (s *Snapshot) GetEntry(ctx context.Context, route Route) (Entry, error) {
	e, err := s.matrix.GetEntry(ctx, route)
	if err == nil || !errors.Is(err, ErrNotPriced) || s.live == nil {
		return e, err
	}
	return s.live.GetEntry(ctx, route)
}
