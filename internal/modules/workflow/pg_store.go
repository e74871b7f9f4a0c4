// README: Workflow store backed by PostgreSQL; transitions run in one transaction with the container row locked.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const containerColumns = `id, container_number, container_type, origin_depot_id, available_from,
	shipping_line_id, trucking_company_id, status, marketplace_listed, created_at`

const bookingColumns = `id, booking_number, required_container_type, pickup_location_id, needed_by,
	trucking_company_id, shipping_line_id, status, created_at`

const streetTurnColumns = `id, import_container_id, export_booking_id, requested_by_org_id, approving_org_id,
	status, status_version, estimated_cost_saving_amount, estimated_cost_saving_currency,
	estimated_co2_saving_kg, auto_approved_rule_id, reason_for_decision,
	created_at, decided_at, completed_at`

const codColumns = `id, dropoff_order_id, requesting_org_id, approving_org_id, original_depot_id,
	original_depot_address, requested_depot_id, quoted_fee_amount, fee_currency, distance_km,
	cod_fee_amount, status, status_version, reason_for_request, reason_for_decision,
	additional_info, expires_at, payment_confirmed_at, depot_processing_started_at,
	completed_at, created_at`

func (s *PGStore) CreateContainer(ctx context.Context, c *Container) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO import_containers (`+containerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(c.ID), c.Number, c.Type, string(c.OriginDepotID), c.AvailableFrom,
		string(c.ShippingLineID), string(c.TruckingCompanyID), string(c.Status), c.MarketplaceListed, c.CreatedAt,
	)
	return err
}

func (s *PGStore) CreateBooking(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO export_bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(b.ID), b.Number, b.RequiredType, string(b.PickupLocationID), b.NeededBy,
		string(b.TruckingCompanyID), string(b.ShippingLineID), string(b.Status), b.CreatedAt,
	)
	return err
}

func (s *PGStore) GetContainer(ctx context.Context, id types.ID) (*Container, error) {
	row := s.db.QueryRow(ctx, `SELECT `+containerColumns+` FROM import_containers WHERE id = $1`, string(id))
	c, err := scanContainer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: container %s", ErrNotFound, id)
	}
	return c, err
}

func (s *PGStore) GetBooking(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM export_bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	return b, err
}

func (s *PGStore) ListOpenContainers(ctx context.Context, orgID types.ID) ([]Container, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+containerColumns+`
		FROM import_containers
		WHERE status = ANY($1)
		  AND (trucking_company_id = $2 OR marketplace_listed)
		ORDER BY available_from ASC, id ASC`,
		statusStrings(availableForRequests), string(orgID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PGStore) ListOpenBookings(ctx context.Context, orgID types.ID) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM export_bookings
		WHERE status = $1 AND trucking_company_id = $2
		ORDER BY needed_by ASC, id ASC`,
		string(BookingAvailable), string(orgID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateStreetTurn(ctx context.Context, r *StreetTurnRequest, container ContainerChange, booking BookingChange) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		cur, err := lockContainer(ctx, tx, container.ID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO street_turn_requests (`+streetTurnColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			string(r.ID), string(r.ContainerID), string(r.BookingID), string(r.RequestingOrgID), string(r.ApprovingOrgID),
			string(r.Status), r.StatusVersion, r.EstimatedCostSaving.Amount, r.EstimatedCostSaving.Currency,
			r.EstimatedCo2SavingKg, toStringPtr(r.AutoApprovedRuleID), r.ReasonForDecision,
			r.CreatedAt, r.DecidedAt, r.CompletedAt,
		)
		if err != nil {
			return err
		}
		if err := applyContainer(ctx, tx, cur, container); err != nil {
			return err
		}
		return applyBooking(ctx, tx, booking)
	})
}

func (s *PGStore) GetStreetTurn(ctx context.Context, id types.ID) (*StreetTurnRequest, error) {
	row := s.db.QueryRow(ctx, `SELECT `+streetTurnColumns+` FROM street_turn_requests WHERE id = $1`, string(id))
	r, err := scanStreetTurn(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: street-turn request %s", ErrNotFound, id)
	}
	return r, err
}

func (s *PGStore) TransitionStreetTurn(ctx context.Context, t StreetTurnTransition) ([]types.ID, error) {
	var superseded []types.ID
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var cur ContainerStatus
		if t.Container != nil {
			var err error
			if cur, err = lockContainer(ctx, tx, t.Container.ID); err != nil {
				return err
			}
		}

		n := t.Next
		tag, err := tx.Exec(ctx, `
			UPDATE street_turn_requests
			SET status = $1,
			    status_version = status_version + 1,
			    auto_approved_rule_id = $2,
			    reason_for_decision = $3,
			    decided_at = $4,
			    completed_at = $5,
			    updated_at = NOW()
			WHERE id = $6 AND status = $7 AND status_version = $8`,
			string(n.Status), toStringPtr(n.AutoApprovedRuleID), n.ReasonForDecision,
			n.DecidedAt, n.CompletedAt,
			string(n.ID), string(t.From), t.Version,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("%w: street-turn request %s", ErrConflict, n.ID)
		}

		if t.SupersedeReason != "" {
			if superseded, err = supersedePending(ctx, tx, n, t.SupersedeReason); err != nil {
				return err
			}
		}
		if t.Container != nil {
			if err := applyContainer(ctx, tx, cur, *t.Container); err != nil {
				return err
			}
		}
		if t.Booking != nil {
			return applyBooking(ctx, tx, *t.Booking)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return superseded, nil
}

func supersedePending(ctx context.Context, tx pgx.Tx, winner *StreetTurnRequest, reason string) ([]types.ID, error) {
	rows, err := tx.Query(ctx, `
		UPDATE street_turn_requests
		SET status = $1,
		    status_version = status_version + 1,
		    reason_for_decision = $2,
		    decided_at = $3,
		    updated_at = NOW()
		WHERE import_container_id = $4 AND status = $5 AND id <> $6
		RETURNING id, export_booking_id`,
		string(StreetTurnDeclined), reason, winner.DecidedAt,
		string(winner.ContainerID), string(StreetTurnPending), string(winner.ID),
	)
	if err != nil {
		return nil, err
	}
	var ids []types.ID
	var bookings []string
	for rows.Next() {
		var id, booking string
		if err := rows.Scan(&id, &booking); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, types.ID(id))
		bookings = append(bookings, booking)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, nil
	}
	_, err = tx.Exec(ctx, `
		UPDATE export_bookings
		SET status = $1, updated_at = NOW()
		WHERE id = ANY($2) AND status = $3`,
		string(BookingAvailable), bookings, string(BookingAwaitingApproval),
	)
	return ids, err
}

func (s *PGStore) CreateCod(ctx context.Context, r *CodRequest, container ContainerChange) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		cur, err := lockContainer(ctx, tx, container.ID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO cod_requests (`+codColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			string(r.ID), string(r.ContainerID), string(r.RequestingOrgID), string(r.ApprovingOrgID), string(r.OriginalDepotID),
			r.OriginalDepotAddress, string(r.RequestedDepotID), r.QuotedFee.Amount, r.QuotedFee.Currency, r.DistanceKm,
			feeAmount(r.Fee), string(r.Status), r.StatusVersion, r.ReasonForRequest, r.ReasonForDecision,
			r.AdditionalInfo, r.ExpiresAt, r.PaymentConfirmedAt, r.DepotProcessingStartedAt,
			r.CompletedAt, r.CreatedAt,
		)
		if err != nil {
			return err
		}
		return applyContainer(ctx, tx, cur, container)
	})
}

func (s *PGStore) GetCod(ctx context.Context, id types.ID) (*CodRequest, error) {
	row := s.db.QueryRow(ctx, `SELECT `+codColumns+` FROM cod_requests WHERE id = $1`, string(id))
	r, err := scanCod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: COD request %s", ErrNotFound, id)
	}
	return r, err
}

func (s *PGStore) TransitionCod(ctx context.Context, t CodTransition) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var cur ContainerStatus
		if t.Container != nil {
			var err error
			if cur, err = lockContainer(ctx, tx, t.Container.ID); err != nil {
				return err
			}
		}

		n := t.Next
		tag, err := tx.Exec(ctx, `
			UPDATE cod_requests
			SET status = $1,
			    status_version = status_version + 1,
			    cod_fee_amount = $2,
			    reason_for_decision = $3,
			    additional_info = $4,
			    expires_at = $5,
			    payment_confirmed_at = $6,
			    depot_processing_started_at = $7,
			    completed_at = $8,
			    updated_at = NOW()
			WHERE id = $9 AND status = $10 AND status_version = $11`,
			string(n.Status), feeAmount(n.Fee), n.ReasonForDecision, n.AdditionalInfo,
			n.ExpiresAt, n.PaymentConfirmedAt, n.DepotProcessingStartedAt, n.CompletedAt,
			string(n.ID), string(t.From), t.Version,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("%w: COD request %s", ErrConflict, n.ID)
		}
		if t.Container != nil {
			return applyContainer(ctx, tx, cur, *t.Container)
		}
		return nil
	})
}

func (s *PGStore) ListExpiredCod(ctx context.Context, now time.Time) ([]CodRequest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+codColumns+`
		FROM cod_requests
		WHERE status IN ($1, $2) AND expires_at < $3
		ORDER BY expires_at ASC, id ASC`,
		string(CodPending), string(CodAwaitingInfo), now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CodRequest
	for rows.Next() {
		r, err := scanCod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO workflow_events (
			entity_kind, entity_id, from_status, to_status, actor_org_id, actor_role, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(e.EntityKind), string(e.EntityID), e.FromStatus, e.ToStatus,
		string(e.ActorOrgID), string(e.ActorRole), e.Reason, e.CreatedAt,
	)
	return err
}

// lockContainer serializes every transition touching the same container.
func lockContainer(ctx context.Context, tx pgx.Tx, id types.ID) (ContainerStatus, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM import_containers WHERE id = $1 FOR UPDATE`, string(id)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: container %s", ErrNotFound, id)
	}
	return ContainerStatus(status), err
}

func applyContainer(ctx context.Context, tx pgx.Tx, cur ContainerStatus, ch ContainerChange) error {
	if err := ch.check(cur); err != nil {
		return err
	}
	if ch.KeepWhilePending {
		var pending bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM street_turn_requests
				WHERE import_container_id = $1 AND status = $2
			)`, string(ch.ID), string(StreetTurnPending),
		).Scan(&pending)
		if err != nil {
			return err
		}
		if pending {
			return nil
		}
	}
	if cur == ch.To {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE import_containers SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(ch.To), string(ch.ID),
	)
	return err
}

func applyBooking(ctx context.Context, tx pgx.Tx, ch BookingChange) error {
	tag, err := tx.Exec(ctx, `
		UPDATE export_bookings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(ch.To), string(ch.ID), string(ch.From),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: booking %s is not %s", ErrConflict, ch.ID, ch.From)
	}
	return nil
}

func scanContainer(row pgx.Row) (*Container, error) {
	var c Container
	var id, depot, line, trucker, status string
	err := row.Scan(&id, &c.Number, &c.Type, &depot, &c.AvailableFrom, &line, &trucker, &status, &c.MarketplaceListed, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ID = types.ID(id)
	c.OriginDepotID = types.ID(depot)
	c.ShippingLineID = types.ID(line)
	c.TruckingCompanyID = types.ID(trucker)
	c.Status = ContainerStatus(status)
	return &c, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var id, pickup, trucker, line, status string
	err := row.Scan(&id, &b.Number, &b.RequiredType, &pickup, &b.NeededBy, &trucker, &line, &status, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.ID = types.ID(id)
	b.PickupLocationID = types.ID(pickup)
	b.TruckingCompanyID = types.ID(trucker)
	b.ShippingLineID = types.ID(line)
	b.Status = BookingStatus(status)
	return &b, nil
}

func scanStreetTurn(row pgx.Row) (*StreetTurnRequest, error) {
	var r StreetTurnRequest
	var id, container, booking, requester, approver, status string
	var ruleID *string
	err := row.Scan(
		&id, &container, &booking, &requester, &approver,
		&status, &r.StatusVersion, &r.EstimatedCostSaving.Amount, &r.EstimatedCostSaving.Currency,
		&r.EstimatedCo2SavingKg, &ruleID, &r.ReasonForDecision,
		&r.CreatedAt, &r.DecidedAt, &r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID = types.ID(id)
	r.ContainerID = types.ID(container)
	r.BookingID = types.ID(booking)
	r.RequestingOrgID = types.ID(requester)
	r.ApprovingOrgID = types.ID(approver)
	r.Status = StreetTurnStatus(status)
	if ruleID != nil {
		v := types.ID(*ruleID)
		r.AutoApprovedRuleID = &v
	}
	return &r, nil
}

func scanCod(row pgx.Row) (*CodRequest, error) {
	var r CodRequest
	var id, container, requester, approver, origin, requested, status string
	var fee *int64
	err := row.Scan(
		&id, &container, &requester, &approver, &origin,
		&r.OriginalDepotAddress, &requested, &r.QuotedFee.Amount, &r.QuotedFee.Currency, &r.DistanceKm,
		&fee, &status, &r.StatusVersion, &r.ReasonForRequest, &r.ReasonForDecision,
		&r.AdditionalInfo, &r.ExpiresAt, &r.PaymentConfirmedAt, &r.DepotProcessingStartedAt,
		&r.CompletedAt, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID = types.ID(id)
	r.ContainerID = types.ID(container)
	r.RequestingOrgID = types.ID(requester)
	r.ApprovingOrgID = types.ID(approver)
	r.OriginalDepotID = types.ID(origin)
	r.RequestedDepotID = types.ID(requested)
	r.Status = CodStatus(status)
	if fee != nil {
		r.Fee = &types.Money{Amount: *fee, Currency: r.QuotedFee.Currency}
	}
	return &r, nil
}

func statusStrings[S ~string](in []S) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func feeAmount(m *types.Money) *int64 {
	if m == nil {
		return nil
	}
	n := m.Amount
	return &n
}

var _ Store = (*PGStore)(nil)
