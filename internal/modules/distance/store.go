// README: Location store backed by PostgreSQL (addresses and coordinates of depots/yards).
package distance

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reposition/internal/types"
)

type Location struct {
	ID      types.ID
	Name    string
	Address string
	Point   types.Point
}

type LocationStore struct {
	db *pgxpool.Pool
}

func NewLocationStore(db *pgxpool.Pool) *LocationStore {
	return &LocationStore{db: db}
}

func (s *LocationStore) Address(ctx context.Context, id types.ID) (string, error) {
	var addr string
	err := s.db.QueryRow(ctx, `SELECT address FROM locations WHERE id = $1`, string(id)).Scan(&addr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUnknownDistance
	}
	return addr, err
}

func (s *LocationStore) List(ctx context.Context) ([]Location, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, address, lat, lng FROM locations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var l Location
		var id string
		if err := rows.Scan(&id, &l.Name, &l.Address, &l.Point.Lat, &l.Point.Lng); err != nil {
			return nil, err
		}
		l.ID = types.ID(id)
		out = append(out, l)
	}
	return out, rows.Err()
}
