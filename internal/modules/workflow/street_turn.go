// README: Street-turn request lifecycle: create (with auto-approval), decide, complete.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"reposition/internal/modules/matching"
	"reposition/internal/modules/rules"
	"reposition/internal/types"
)

type CreateStreetTurnCommand struct {
	Actor                types.Actor
	ContainerID          types.ID
	BookingID            types.ID
	EstimatedCostSaving  types.Money
	EstimatedCo2SavingKg float64
}

type DecideStreetTurnCommand struct {
	Actor     types.Actor
	RequestID types.ID
	Decision  Decision
	Reason    string
}

// CreateStreetTurnRequest re-validates the pairing against current state,
// persists a PENDING request and then applies the first matching
// auto-approval rule of the container's shipping line, if any.
func (s *Service) CreateStreetTurnRequest(ctx context.Context, cmd CreateStreetTurnCommand) (_ *StreetTurnRequest, err error) {
	ctx, done := s.span(ctx, "CreateStreetTurnRequest", cmd.ContainerID)
	defer done(&err)

	if err := requireRole(cmd.Actor, types.RoleDispatcher); err != nil {
		return nil, err
	}
	if cmd.ContainerID == "" || cmd.BookingID == "" {
		return nil, fmt.Errorf("%w: container and booking are required", ErrValidation)
	}
	if cmd.EstimatedCostSaving.Amount < 0 || cmd.EstimatedCo2SavingKg < 0 || math.IsNaN(cmd.EstimatedCo2SavingKg) {
		return nil, fmt.Errorf("%w: estimated savings must not be negative", ErrValidation)
	}

	c, err := s.store.GetContainer(ctx, cmd.ContainerID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetBooking(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	ownsContainer := cmd.Actor.OrgID == c.TruckingCompanyID
	ownsBooking := cmd.Actor.OrgID == b.TruckingCompanyID
	if !ownsBooking {
		return nil, fmt.Errorf("%w: organization %s does not own booking %s", ErrPermissionDenied, cmd.Actor.OrgID, b.ID)
	}
	if !ownsContainer && !c.MarketplaceListed {
		return nil, fmt.Errorf("%w: organization %s cannot pair container %s", ErrPermissionDenied, cmd.Actor.OrgID, c.ID)
	}

	if !c.Status.AvailableForRequests() && c.Status != ContainerAwaitingReuseApproval {
		return nil, fmt.Errorf("%w: container is %s", ErrInvalidTransition, c.Status)
	}
	if b.Status != BookingAvailable {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
	}
	if err := matching.Feasible(toMatchContainer(c), toMatchBooking(b)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInfeasiblePairing, err)
	}

	km, known := s.distanceKm(ctx, c.OriginDepotID, b.PickupLocationID)
	decision := s.evaluateRules(ctx, c.ShippingLineID, rules.Input{
		ContainerType:     c.Type,
		TruckingCompanyID: cmd.Actor.OrgID,
		DistanceKm:        km,
		DistanceKnown:     known,
	})

	saving := cmd.EstimatedCostSaving
	if saving.Currency == "" {
		saving.Currency = s.cfg.Currency
	}
	r := &StreetTurnRequest{
		ID:                   types.NewID(),
		ContainerID:          c.ID,
		BookingID:            b.ID,
		RequestingOrgID:      cmd.Actor.OrgID,
		ApprovingOrgID:       c.ShippingLineID,
		Status:               StreetTurnPending,
		EstimatedCostSaving:  saving,
		EstimatedCo2SavingKg: cmd.EstimatedCo2SavingKg,
		CreatedAt:            s.now(),
	}
	containerCh := ContainerChange{
		ID:   c.ID,
		From: append(append([]ContainerStatus{}, availableForRequests...), ContainerAwaitingReuseApproval),
		To:   ContainerAwaitingReuseApproval,
	}
	bookingCh := BookingChange{ID: b.ID, From: BookingAvailable, To: BookingAwaitingApproval}
	if err := s.store.CreateStreetTurn(ctx, r, containerCh, bookingCh); err != nil {
		return nil, err
	}

	s.record(ctx, KindStreetTurn, r.ID, "", string(r.Status), cmd.Actor, "")
	if c.Status != ContainerAwaitingReuseApproval {
		s.record(ctx, KindContainer, c.ID, string(c.Status), string(containerCh.To), cmd.Actor, "")
	}
	s.record(ctx, KindBooking, b.ID, string(bookingCh.From), string(bookingCh.To), cmd.Actor, "")
	s.notify(ctx, KindStreetTurn, "created", r)

	if !decision.AutoApprove {
		return r, nil
	}
	ruleID := decision.RuleID
	approved, err := s.approveStreetTurn(ctx, r, types.SystemActor, &ruleID, "auto-approved by rule "+decision.RuleName)
	if err != nil {
		s.log.Warn().Err(err).Str("request_id", string(r.ID)).Str("rule_id", string(ruleID)).Msg("auto-approval lost, request stays pending")
		return r, nil
	}
	s.log.Info().Str("request_id", string(r.ID)).Str("rule_id", string(ruleID)).Int("priority", decision.Priority).Msg("street-turn auto-approved")
	return approved, nil
}

// DecideStreetTurnRequest applies a carrier decision to a PENDING request.
// A decline requires a reason.
func (s *Service) DecideStreetTurnRequest(ctx context.Context, cmd DecideStreetTurnCommand) (_ *StreetTurnRequest, err error) {
	ctx, done := s.span(ctx, "DecideStreetTurnRequest", cmd.RequestID)
	defer done(&err)

	var to StreetTurnStatus
	switch cmd.Decision {
	case DecisionApprove:
		to = StreetTurnApproved
	case DecisionDecline:
		if cmd.Reason == "" {
			return nil, fmt.Errorf("%w: a reason is required to decline", ErrValidation)
		}
		to = StreetTurnDeclined
	default:
		return nil, fmt.Errorf("%w: unsupported decision %q", ErrValidation, cmd.Decision)
	}

	r, err := s.store.GetStreetTurn(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if !canDecide(cmd.Actor, r.ApprovingOrgID) {
		return nil, ErrPermissionDenied
	}
	if !CanStreetTurnTransition(r.Status, to) {
		return nil, fmt.Errorf("%w: street-turn request is %s", ErrInvalidTransition, r.Status)
	}

	if to == StreetTurnApproved {
		return s.approveStreetTurn(ctx, r, cmd.Actor, nil, cmd.Reason)
	}
	return s.declineStreetTurn(ctx, r, cmd.Actor, cmd.Reason)
}

// CompleteStreetTurnRequest records depot confirmation of an approved reuse.
func (s *Service) CompleteStreetTurnRequest(ctx context.Context, actor types.Actor, id types.ID) (_ *StreetTurnRequest, err error) {
	ctx, done := s.span(ctx, "CompleteStreetTurnRequest", id)
	defer done(&err)

	r, err := s.store.GetStreetTurn(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canDecide(actor, r.ApprovingOrgID) {
		return nil, ErrPermissionDenied
	}
	if !CanStreetTurnTransition(r.Status, StreetTurnCompleted) {
		return nil, fmt.Errorf("%w: street-turn request is %s", ErrInvalidTransition, r.Status)
	}

	now := s.now()
	next := *r
	next.Status = StreetTurnCompleted
	next.StatusVersion = r.StatusVersion + 1
	next.CompletedAt = &now
	t := StreetTurnTransition{
		Next:    &next,
		From:    r.Status,
		Version: r.StatusVersion,
		Container: &ContainerChange{
			ID:   r.ContainerID,
			From: []ContainerStatus{ContainerOnGoingReuse, ContainerAwaitingReusePayment},
			To:   ContainerCompleted,
		},
	}
	if _, err := s.store.TransitionStreetTurn(ctx, t); err != nil {
		return nil, s.streetTurnLost(ctx, r, err)
	}
	s.record(ctx, KindStreetTurn, r.ID, string(r.Status), string(next.Status), actor, "")
	s.recordContainer(ctx, t.Container, actor, "")
	s.notify(ctx, KindStreetTurn, string(next.Status), &next)
	return &next, nil
}

func (s *Service) GetStreetTurnRequest(ctx context.Context, actor types.Actor, id types.ID) (*StreetTurnRequest, error) {
	r, err := s.store.GetStreetTurn(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, r.RequestingOrgID, r.ApprovingOrgID) {
		return nil, ErrPermissionDenied
	}
	return r, nil
}

func (s *Service) approveStreetTurn(ctx context.Context, r *StreetTurnRequest, actor types.Actor, ruleID *types.ID, reason string) (*StreetTurnRequest, error) {
	now := s.now()
	next := *r
	next.Status = StreetTurnApproved
	next.StatusVersion = r.StatusVersion + 1
	next.DecidedAt = &now
	next.AutoApprovedRuleID = ruleID
	next.ReasonForDecision = reason

	t := StreetTurnTransition{
		Next:    &next,
		From:    r.Status,
		Version: r.StatusVersion,
		Container: &ContainerChange{
			ID:   r.ContainerID,
			From: []ContainerStatus{ContainerAwaitingReuseApproval},
			To:   ContainerOnGoingReuse,
		},
		Booking:         &BookingChange{ID: r.BookingID, From: BookingAwaitingApproval, To: BookingConfirmed},
		SupersedeReason: "container assigned to street-turn request " + string(r.ID),
	}
	superseded, err := s.store.TransitionStreetTurn(ctx, t)
	if err != nil {
		return nil, s.streetTurnLost(ctx, r, err)
	}

	s.record(ctx, KindStreetTurn, r.ID, string(r.Status), string(next.Status), actor, reason)
	s.recordContainer(ctx, t.Container, actor, "")
	s.record(ctx, KindBooking, r.BookingID, string(t.Booking.From), string(t.Booking.To), actor, "")
	for _, id := range superseded {
		s.record(ctx, KindStreetTurn, id, string(StreetTurnPending), string(StreetTurnDeclined), actor, t.SupersedeReason)
		s.notify(ctx, KindStreetTurn, string(StreetTurnDeclined), map[string]any{"id": id, "reason": t.SupersedeReason})
	}
	s.notify(ctx, KindStreetTurn, string(next.Status), &next)
	return &next, nil
}

func (s *Service) declineStreetTurn(ctx context.Context, r *StreetTurnRequest, actor types.Actor, reason string) (*StreetTurnRequest, error) {
	now := s.now()
	next := *r
	next.Status = StreetTurnDeclined
	next.StatusVersion = r.StatusVersion + 1
	next.DecidedAt = &now
	next.ReasonForDecision = reason

	t := StreetTurnTransition{
		Next:    &next,
		From:    r.Status,
		Version: r.StatusVersion,
		Container: &ContainerChange{
			ID:               r.ContainerID,
			From:             []ContainerStatus{ContainerAwaitingReuseApproval},
			To:               ContainerReuseRejected,
			KeepWhilePending: true,
		},
		Booking: &BookingChange{ID: r.BookingID, From: BookingAwaitingApproval, To: BookingAvailable},
	}
	if _, err := s.store.TransitionStreetTurn(ctx, t); err != nil {
		return nil, s.streetTurnLost(ctx, r, err)
	}

	s.record(ctx, KindStreetTurn, r.ID, string(r.Status), string(next.Status), actor, reason)
	s.record(ctx, KindBooking, r.BookingID, string(t.Booking.From), string(t.Booking.To), actor, "")
	s.notify(ctx, KindStreetTurn, string(next.Status), &next)
	return &next, nil
}

// streetTurnLost turns a lost compare-and-swap into InvalidTransition when the
// request itself has moved on, so the caller sees the winning status.
func (s *Service) streetTurnLost(ctx context.Context, r *StreetTurnRequest, err error) error {
	if !errors.Is(err, ErrConflict) {
		return err
	}
	cur, gerr := s.store.GetStreetTurn(ctx, r.ID)
	if gerr != nil || cur.StatusVersion == r.StatusVersion {
		return err
	}
	return fmt.Errorf("%w: street-turn request is now %s", ErrInvalidTransition, cur.Status)
}
