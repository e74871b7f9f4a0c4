// README: Fee matrix store backed by PostgreSQL.
package feematrix

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reposition/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) GetEntry(ctx context.Context, route Route) (Entry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT fee_amount, currency, distance_km
		FROM fee_matrix
		WHERE origin_depot_id = $1 AND destination_depot_id = $2`,
		string(route.Origin), string(route.Destination),
	)
	e := Entry{Route: route}
	err := row.Scan(&e.Fee.Amount, &e.Fee.Currency, &e.DistanceKm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotPriced
	}
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// LoadMatrix snapshots the whole table into an in-memory Matrix.
func (s *PGStore) LoadMatrix(ctx context.Context) (*Matrix, error) {
	rows, err := s.db.Query(ctx, `
		SELECT origin_depot_id, destination_depot_id, fee_amount, currency, distance_km
		FROM fee_matrix`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var origin, dest string
		var e Entry
		if err := rows.Scan(&origin, &dest, &e.Fee.Amount, &e.Fee.Currency, &e.DistanceKm); err != nil {
			return nil, err
		}
		e.Route = Route{Origin: types.ID(origin), Destination: types.ID(dest)}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewMatrix(entries), nil
}
