// README: Workflow service wires collaborators and shared helpers for the state machine operations.
package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"reposition/internal/config"
	"reposition/internal/modules/distance"
	"reposition/internal/modules/feematrix"
	"reposition/internal/modules/matching"
	"reposition/internal/modules/rules"
	"reposition/internal/types"
)

type FeeQuoter interface {
	Lookup(ctx context.Context, origin, destination types.ID) (feematrix.Quote, error)
}

type RuleEvaluator interface {
	Evaluate(ctx context.Context, carrierID types.ID, in rules.Input) (rules.Decision, error)
}

type Suggester interface {
	ComputeSuggestions(ctx context.Context, containers []matching.Container, bookings []matching.Booking) ([]matching.Suggestion, error)
}

type AddressBook interface {
	Address(ctx context.Context, id types.ID) (string, error)
}

// Notifier receives transition events; delivery failures never fail an operation.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Deps struct {
	Store     Store
	Fees      FeeQuoter
	Rules     RuleEvaluator
	Distances distance.Resolver
	Suggester Suggester
	Addresses AddressBook
	Notifier  Notifier
	Config    config.WorkflowConfig
	Log       zerolog.Logger
}

type Service struct {
	store     Store
	fees      FeeQuoter
	rules     RuleEvaluator
	distances distance.Resolver
	suggester Suggester
	addresses AddressBook
	notifier  Notifier
	cfg       config.WorkflowConfig
	log       zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(d Deps) *Service {
	if d.Config.CodRequestTTL <= 0 {
		d.Config.CodRequestTTL = 72 * time.Hour
	}
	return &Service{
		store:     d.Store,
		fees:      d.Fees,
		rules:     d.Rules,
		distances: d.Distances,
		suggester: d.Suggester,
		addresses: d.Addresses,
		notifier:  d.Notifier,
		cfg:       d.Config,
		log:       d.Log,
		tracer:    otel.Tracer("reposition/workflow"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// span opens a span for op; the returned func records a non-nil *err and ends it.
func (s *Service) span(ctx context.Context, op string, id types.ID) (context.Context, func(*error)) {
	ctx, sp := s.tracer.Start(ctx, "workflow."+op, trace.WithAttributes(attribute.String("entity.id", string(id))))
	return ctx, func(err *error) {
		if err != nil && *err != nil {
			sp.RecordError(*err)
			sp.SetStatus(codes.Error, (*err).Error())
		}
		sp.End()
	}
}

func (s *Service) record(ctx context.Context, kind EntityKind, id types.ID, from, to string, actor types.Actor, reason string) {
	err := s.store.AppendEvent(ctx, &Event{
		EntityKind: kind,
		EntityID:   id,
		FromStatus: from,
		ToStatus:   to,
		ActorOrgID: actor.OrgID,
		ActorRole:  actor.Role,
		Reason:     reason,
		CreatedAt:  s.now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("entity", string(kind)).Str("id", string(id)).Msg("append workflow event")
	}
}

func (s *Service) recordContainer(ctx context.Context, ch *ContainerChange, actor types.Actor, reason string) {
	if ch == nil {
		return
	}
	from := ""
	if len(ch.From) == 1 {
		from = string(ch.From[0])
	}
	s.record(ctx, KindContainer, ch.ID, from, string(ch.To), actor, reason)
}

func (s *Service) notify(ctx context.Context, kind EntityKind, event string, payload any) {
	if s.notifier == nil {
		return
	}
	key := string(kind) + "." + strings.ToLower(event)
	if err := s.notifier.Publish(ctx, key, payload); err != nil {
		s.log.Warn().Err(err).Str("routing_key", key).Msg("publish workflow event")
	}
}

// distanceKm reports an unknown distance as (0, false) instead of failing.
func (s *Service) distanceKm(ctx context.Context, from, to types.ID) (float64, bool) {
	if from == to {
		return 0, true
	}
	if s.distances == nil {
		return 0, false
	}
	km, err := s.distances.DistanceKm(ctx, from, to)
	if err != nil {
		s.log.Debug().Err(err).Str("from", string(from)).Str("to", string(to)).Msg("distance unavailable")
		return 0, false
	}
	return km, true
}

func (s *Service) evaluateRules(ctx context.Context, carrierID types.ID, in rules.Input) rules.Decision {
	if s.rules == nil {
		return rules.NoMatch
	}
	d, err := s.rules.Evaluate(ctx, carrierID, in)
	if err != nil {
		s.log.Warn().Err(err).Str("carrier_id", string(carrierID)).Msg("rule evaluation failed, leaving request for manual review")
		return rules.NoMatch
	}
	return d
}

func requireRole(a types.Actor, roles ...types.Role) error {
	if a.OrgID == "" {
		return ErrPermissionDenied
	}
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	return ErrPermissionDenied
}

// canDecide: the approving carrier's admin, or an external system collaborator.
func canDecide(a types.Actor, approvingOrg types.ID) bool {
	return a.IsSystem() || (a.Role == types.RoleCarrierAdmin && a.OrgID != "" && a.OrgID == approvingOrg)
}

func canView(a types.Actor, orgs ...types.ID) bool {
	if a.IsSystem() {
		return true
	}
	for _, o := range orgs {
		if a.OrgID != "" && a.OrgID == o {
			return true
		}
	}
	return false
}

func toMatchContainer(c *Container) matching.Container {
	return matching.Container{
		ID:                c.ID,
		Number:            c.Number,
		Type:              c.Type,
		DepotID:           c.OriginDepotID,
		AvailableFrom:     c.AvailableFrom,
		ShippingLineID:    c.ShippingLineID,
		TruckingCompanyID: c.TruckingCompanyID,
		MarketplaceListed: c.MarketplaceListed,
	}
}

func toMatchBooking(b *Booking) matching.Booking {
	return matching.Booking{
		ID:                b.ID,
		Number:            b.Number,
		RequiredType:      b.RequiredType,
		PickupLocationID:  b.PickupLocationID,
		NeededBy:          b.NeededBy,
		ShippingLineID:    b.ShippingLineID,
		TruckingCompanyID: b.TruckingCompanyID,
	}
}
