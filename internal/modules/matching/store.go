// README: Reputation store aggregating reviews and request history from Postgres.
package matching

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"reposition/internal/types"
)

type ReputationStore struct {
	db *pgxpool.Pool
}

func NewReputationStore(db *pgxpool.Pool) *ReputationStore {
	return &ReputationStore{db: db}
}

// Reputation returns nil when the organization has neither reviews nor requests.
// Request history counts both sides: truckers by requested_by_org_id and
// carriers by approving_org_id.
func (s *ReputationStore) Reputation(ctx context.Context, orgID types.ID) (*OrgReputation, error) {
	rep := OrgReputation{OrgID: orgID}
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*)
		FROM organization_reviews
		WHERE org_id = $1
	`, string(orgID)).Scan(&rep.RatingAverage, &rep.ReviewCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status IN ('APPROVED', 'COMPLETED'))
		FROM street_turn_requests
		WHERE requested_by_org_id = $1 OR approving_org_id = $1
	`, string(orgID)).Scan(&rep.CompletedRequests, &rep.TotalRequests)
	if err != nil {
		return nil, err
	}

	if rep.ReviewCount == 0 && rep.TotalRequests == 0 {
		return nil, nil
	}
	return &rep, nil
}
