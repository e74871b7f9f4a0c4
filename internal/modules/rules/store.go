// README: Auto-approval rule store backed by PostgreSQL (read-only to the engine).
package rules

import (
	"context"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"

	"reposition/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// ListRules reads all of a carrier's rules in one statement, so an evaluation
// never observes a half-applied admin edit.
func (s *PGStore) ListRules(ctx context.Context, carrierID types.ID) ([]Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, carrier_id, name, priority, is_active,
		       container_types, applies_to_all_trucking_cos, allowed_trucking_co_ids,
		       has_distance_limit, max_distance_km, updated_at
		FROM auto_approval_rules
		WHERE carrier_id = $1
		ORDER BY priority ASC, id ASC`, string(carrierID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var r Rule
		var id, carrier string
		var allowed []string
		var maxKm *float64
		if err := rows.Scan(
			&id, &carrier, &r.Name, &r.Priority, &r.IsActive,
			&r.ContainerTypes.Types, &r.TruckingCompanies.AllCompanies, &allowed,
			&r.Distance.Enabled, &maxKm, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		r.ID = types.ID(id)
		r.CarrierID = types.ID(carrier)
		for _, a := range allowed {
			r.TruckingCompanies.Allowed = append(r.TruckingCompanies.Allowed, types.ID(a))
		}
		switch {
		case maxKm != nil:
			r.Distance.MaxKm = *maxKm
		case r.Distance.Enabled:
			// limit without a ceiling; Validate rejects it
			r.Distance.MaxKm = math.NaN()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
