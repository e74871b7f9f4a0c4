// README: Change-of-destination lifecycle: quote, create, decide, info, payment, depot processing, reversal, expiry.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reposition/internal/modules/feematrix"
	"reposition/internal/types"
)

type CreateCodCommand struct {
	Actor              types.Actor
	ContainerID        types.ID
	DestinationDepotID types.ID
	Reason             string
}

type DecideCodCommand struct {
	Actor     types.Actor
	RequestID types.ID
	Decision  Decision
	// Fee overrides the quoted fee on approval.
	Fee    *types.Money
	Reason string
}

// codReachable lists the container statuses a live COD request can leave its
// container in.
var codReachable = []ContainerStatus{
	ContainerAwaitingCodApproval,
	ContainerAwaitingCodInfo,
	ContainerAwaitingCodPayment,
	ContainerOnGoingCod,
	ContainerDepotProcessing,
}

// QuoteCodFee prices a depot change. A missing matrix entry is ErrNotPriced,
// never a zero fee.
func (s *Service) QuoteCodFee(ctx context.Context, origin, destination types.ID) (_ feematrix.Quote, err error) {
	ctx, done := s.span(ctx, "QuoteCodFee", origin)
	defer done(&err)

	q, err := s.fees.Lookup(ctx, origin, destination)
	if errors.Is(err, feematrix.ErrInvalidRoute) {
		return feematrix.Quote{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return q, err
}

func (s *Service) CreateCodRequest(ctx context.Context, cmd CreateCodCommand) (_ *CodRequest, err error) {
	ctx, done := s.span(ctx, "CreateCodRequest", cmd.ContainerID)
	defer done(&err)

	if err := requireRole(cmd.Actor, types.RoleDispatcher); err != nil {
		return nil, err
	}
	if cmd.ContainerID == "" || cmd.DestinationDepotID == "" {
		return nil, fmt.Errorf("%w: container and destination depot are required", ErrValidation)
	}
	if cmd.Reason == "" {
		return nil, fmt.Errorf("%w: a reason for the request is required", ErrValidation)
	}

	c, err := s.store.GetContainer(ctx, cmd.ContainerID)
	if err != nil {
		return nil, err
	}
	if cmd.Actor.OrgID != c.TruckingCompanyID {
		return nil, fmt.Errorf("%w: container %s belongs to another trucking company", ErrPermissionDenied, c.ID)
	}
	if cmd.DestinationDepotID == c.OriginDepotID {
		return nil, fmt.Errorf("%w: destination depot equals the current depot", ErrValidation)
	}
	if !c.Status.AvailableForRequests() {
		return nil, fmt.Errorf("%w: container is %s", ErrInvalidTransition, c.Status)
	}

	q, err := s.QuoteCodFee(ctx, c.OriginDepotID, cmd.DestinationDepotID)
	if err != nil {
		return nil, err
	}

	var address string
	if s.addresses != nil {
		addr, aerr := s.addresses.Address(ctx, c.OriginDepotID)
		if aerr != nil {
			s.log.Warn().Err(aerr).Str("depot_id", string(c.OriginDepotID)).Msg("resolve depot address")
		}
		address = addr
	}

	now := s.now()
	r := &CodRequest{
		ID:                   types.NewID(),
		ContainerID:          c.ID,
		RequestingOrgID:      cmd.Actor.OrgID,
		ApprovingOrgID:       c.ShippingLineID,
		OriginalDepotID:      c.OriginDepotID,
		OriginalDepotAddress: address,
		RequestedDepotID:     cmd.DestinationDepotID,
		QuotedFee:            q.Fee,
		DistanceKm:           q.DistanceKm,
		Status:               CodPending,
		ReasonForRequest:     cmd.Reason,
		ExpiresAt:            now.Add(s.cfg.CodRequestTTL),
		CreatedAt:            now,
	}
	ch := ContainerChange{ID: c.ID, From: availableForRequests, To: ContainerAwaitingCodApproval}
	if err := s.store.CreateCod(ctx, r, ch); err != nil {
		return nil, err
	}
	s.record(ctx, KindCod, r.ID, "", string(r.Status), cmd.Actor, cmd.Reason)
	s.record(ctx, KindContainer, c.ID, string(c.Status), string(ch.To), cmd.Actor, "")
	s.notify(ctx, KindCod, "created", r)
	return r, nil
}

// DecideCodRequest approves (free or pending payment), declines, or asks the
// requester for more information.
func (s *Service) DecideCodRequest(ctx context.Context, cmd DecideCodCommand) (_ *CodRequest, err error) {
	ctx, done := s.span(ctx, "DecideCodRequest", cmd.RequestID)
	defer done(&err)

	switch cmd.Decision {
	case DecisionApprove:
		if cmd.Fee != nil && cmd.Fee.Amount < 0 {
			return nil, fmt.Errorf("%w: fee must not be negative", ErrValidation)
		}
	case DecisionDecline, DecisionRequestInfo:
		if cmd.Reason == "" {
			return nil, fmt.Errorf("%w: a reason is required for %s", ErrValidation, cmd.Decision)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported decision %q", ErrValidation, cmd.Decision)
	}

	r, err := s.loadCod(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if !canDecide(cmd.Actor, r.ApprovingOrgID) {
		return nil, ErrPermissionDenied
	}

	now := s.now()
	next := *r
	next.ReasonForDecision = cmd.Reason
	ch := &ContainerChange{ID: r.ContainerID, From: []ContainerStatus{ContainerAwaitingCodApproval}}
	switch cmd.Decision {
	case DecisionApprove:
		fee := r.QuotedFee
		if cmd.Fee != nil {
			fee = *cmd.Fee
			if fee.Currency == "" {
				fee.Currency = r.QuotedFee.Currency
			}
		}
		next.Fee = &fee
		if fee.IsZero() {
			next.Status, ch.To = CodApproved, ContainerOnGoingCod
		} else {
			next.Status, ch.To = CodPendingPayment, ContainerAwaitingCodPayment
		}
	case DecisionDecline:
		next.Status, ch.To = CodDeclined, ContainerCodRejected
	case DecisionRequestInfo:
		next.Status, ch.To = CodAwaitingInfo, ContainerAwaitingCodInfo
		next.ExpiresAt = now.Add(s.cfg.CodRequestTTL)
	}
	return s.transitionCod(ctx, r, &next, ch, cmd.Actor, cmd.Reason)
}

// SupplyCodInfo answers an information request and restarts the deadline.
func (s *Service) SupplyCodInfo(ctx context.Context, actor types.Actor, id types.ID, info string) (_ *CodRequest, err error) {
	ctx, done := s.span(ctx, "SupplyCodInfo", id)
	defer done(&err)

	if info == "" {
		return nil, fmt.Errorf("%w: information must not be empty", ErrValidation)
	}
	r, err := s.loadCod(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != types.RoleDispatcher || actor.OrgID != r.RequestingOrgID {
		return nil, ErrPermissionDenied
	}

	next := *r
	next.Status = CodPending
	next.AdditionalInfo = info
	next.ExpiresAt = s.now().Add(s.cfg.CodRequestTTL)
	ch := &ContainerChange{ID: r.ContainerID, From: []ContainerStatus{ContainerAwaitingCodInfo}, To: ContainerAwaitingCodApproval}
	return s.transitionCod(ctx, r, &next, ch, actor, "")
}

// ConfirmCodPayment is called by the payment collaborator once the fee is settled.
func (s *Service) ConfirmCodPayment(ctx context.Context, actor types.Actor, id types.ID) (_ *CodRequest, err error) {
	ctx, done := s.span(ctx, "ConfirmCodPayment", id)
	defer done(&err)

	r, err := s.loadCod(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canDecide(actor, r.ApprovingOrgID) {
		return nil, ErrPermissionDenied
	}

	now := s.now()
	next := *r
	next.Status = CodPaid
	next.PaymentConfirmedAt = &now
	ch := &ContainerChange{ID: r.ContainerID, From: []ContainerStatus{ContainerAwaitingCodPayment}, To: ContainerOnGoingCod}
	return s.transitionCod(ctx, r, &next, ch, actor, "")
}

// AdvanceCodRequest moves an approved or paid request into depot processing,
// and a processing one to completion.
func (s *Service) AdvanceCodRequest(ctx context.Context, actor types.Actor, id types.ID) (_ *CodRequest, err error) {
	ctx, done := s.span(ctx, "AdvanceCodRequest", id)
	defer done(&err)

	r, err := s.loadCod(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canDecide(actor, r.ApprovingOrgID) {
		return nil, ErrPermissionDenied
	}

	now := s.now()
	next := *r
	ch := &ContainerChange{ID: r.ContainerID}
	switch r.Status {
	case CodApproved, CodPaid:
		next.Status = CodProcessingAtDepot
		next.DepotProcessingStartedAt = &now
		ch.From, ch.To = []ContainerStatus{ContainerOnGoingCod}, ContainerDepotProcessing
	case CodProcessingAtDepot:
		next.Status = CodCompleted
		next.CompletedAt = &now
		ch.From, ch.To = []ContainerStatus{ContainerDepotProcessing}, ContainerCompleted
	default:
		return nil, fmt.Errorf("%w: COD request is %s", ErrInvalidTransition, r.Status)
	}
	return s.transitionCod(ctx, r, &next, ch, actor, "")
}

// AdvanceDepotProcessing dispatches depot confirmation to the street-turn or
// COD machine.
func (s *Service) AdvanceDepotProcessing(ctx context.Context, actor types.Actor, kind EntityKind, id types.ID) (any, error) {
	switch kind {
	case KindStreetTurn:
		return s.CompleteStreetTurnRequest(ctx, actor, id)
	case KindCod:
		return s.AdvanceCodRequest(ctx, actor, id)
	default:
		return nil, fmt.Errorf("%w: unknown request kind %q", ErrValidation, kind)
	}
}

// ReverseCodRequest administratively cancels any non-terminal request.
func (s *Service) ReverseCodRequest(ctx context.Context, actor types.Actor, id types.ID, reason string) (_ *CodRequest, err error) {
	ctx, done := s.span(ctx, "ReverseCodRequest", id)
	defer done(&err)

	if reason == "" {
		return nil, fmt.Errorf("%w: a reason is required to reverse", ErrValidation)
	}
	r, err := s.loadCod(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canDecide(actor, r.ApprovingOrgID) {
		return nil, ErrPermissionDenied
	}

	next := *r
	next.Status = CodReversed
	next.ReasonForDecision = reason
	ch := &ContainerChange{ID: r.ContainerID, From: codReachable, To: ContainerPaymentCancelled}
	return s.transitionCod(ctx, r, &next, ch, actor, reason)
}

// ExpireStaleRequests expires PENDING and AWAITING_INFO requests whose
// deadline is before now. Running it again with the same now expires nothing
// further. Carrier admins only sweep their own requests.
func (s *Service) ExpireStaleRequests(ctx context.Context, actor types.Actor, now time.Time) (_ int, err error) {
	ctx, done := s.span(ctx, "ExpireStaleRequests", actor.OrgID)
	defer done(&err)

	if err := requireRole(actor, types.RoleSystem, types.RoleCarrierAdmin); err != nil {
		return 0, err
	}
	stale, err := s.store.ListExpiredCod(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range stale {
		r := &stale[i]
		if !actor.IsSystem() && r.ApprovingOrgID != actor.OrgID {
			continue
		}
		if _, err := s.expireCod(ctx, r, actor); err != nil {
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition) {
				s.log.Debug().Err(err).Str("request_id", string(r.ID)).Msg("skip expiry")
				continue
			}
			return count, err
		}
		count++
	}
	if count > 0 {
		s.log.Info().Int("expired", count).Time("now", now).Msg("expired stale COD requests")
	}
	return count, nil
}

func (s *Service) GetCodRequest(ctx context.Context, actor types.Actor, id types.ID) (*CodRequest, error) {
	r, err := s.loadCod(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, r.RequestingOrgID, r.ApprovingOrgID) {
		return nil, ErrPermissionDenied
	}
	return r, nil
}

// loadCod fetches a request and expires it first when its deadline passed.
func (s *Service) loadCod(ctx context.Context, id types.ID) (*CodRequest, error) {
	r, err := s.store.GetCod(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.expirable() || !s.now().After(r.ExpiresAt) {
		return r, nil
	}
	expired, err := s.expireCod(ctx, r, types.SystemActor)
	if err == nil {
		return expired, nil
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition) {
		return s.store.GetCod(ctx, id)
	}
	return nil, err
}

func (s *Service) expireCod(ctx context.Context, r *CodRequest, actor types.Actor) (*CodRequest, error) {
	next := *r
	next.Status = CodExpired
	ch := &ContainerChange{
		ID:   r.ContainerID,
		From: []ContainerStatus{ContainerAwaitingCodApproval, ContainerAwaitingCodInfo},
		To:   ContainerExpired,
	}
	return s.transitionCod(ctx, r, &next, ch, actor, "deadline passed")
}

func (s *Service) transitionCod(ctx context.Context, r, next *CodRequest, ch *ContainerChange, actor types.Actor, reason string) (*CodRequest, error) {
	if !CanCodTransition(r.Status, next.Status) {
		return nil, fmt.Errorf("%w: COD request is %s", ErrInvalidTransition, r.Status)
	}
	next.StatusVersion = r.StatusVersion + 1
	err := s.store.TransitionCod(ctx, CodTransition{Next: next, From: r.Status, Version: r.StatusVersion, Container: ch})
	if err != nil {
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		if cur, gerr := s.store.GetCod(ctx, r.ID); gerr == nil && cur.StatusVersion != r.StatusVersion {
			return nil, fmt.Errorf("%w: COD request is now %s", ErrInvalidTransition, cur.Status)
		}
		return nil, err
	}
	s.record(ctx, KindCod, r.ID, string(r.Status), string(next.Status), actor, reason)
	s.recordContainer(ctx, ch, actor, reason)
	s.notify(ctx, KindCod, string(next.Status), next)
	return next, nil
}
