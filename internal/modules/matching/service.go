// README: Matching service ranks feasible container/booking pairings per container.
package matching

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"reposition/internal/config"
	"reposition/internal/modules/distance"
	"reposition/internal/modules/feematrix"
	"reposition/internal/types"
)

// Reputation returns history for an organization; a nil result means no history.
type Reputation interface {
	Reputation(ctx context.Context, orgID types.ID) (*OrgReputation, error)
}

type FeeQuoter interface {
	Lookup(ctx context.Context, origin, destination types.ID) (feematrix.Quote, error)
}

type Service struct {
	distances  distance.Resolver
	fees       FeeQuoter
	reputation Reputation
	cfg        config.MatchingConfig
	log        zerolog.Logger
}

func NewService(distances distance.Resolver, fees FeeQuoter, reputation Reputation, cfg config.MatchingConfig, log zerolog.Logger) *Service {
	return &Service{distances: distances, fees: fees, reputation: reputation, cfg: cfg, log: log}
}

// ComputeSuggestions scores every feasible pairing. Containers without a
// feasible booking are omitted. Matches are ordered by total score, then
// quality, then booking ID.
func (s *Service) ComputeSuggestions(ctx context.Context, containers []Container, bookings []Booking) ([]Suggestion, error) {
	memo := newLookupMemo(s)
	out := make([]Suggestion, len(containers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, c := range containers {
		g.Go(func() error {
			matches, err := s.rankContainer(gctx, memo, c, bookings)
			if err != nil {
				return err
			}
			out[i] = Suggestion{Container: c, Matches: matches}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	suggestions := out[:0]
	for _, sg := range out {
		if len(sg.Matches) > 0 {
			suggestions = append(suggestions, sg)
		}
	}
	return suggestions, nil
}

func (s *Service) rankContainer(ctx context.Context, memo *lookupMemo, c Container, bookings []Booking) ([]Candidate, error) {
	var matches []Candidate
	for _, b := range bookings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if Feasible(c, b) != nil {
			continue
		}
		cand, err := s.evaluate(ctx, memo, c, b)
		if err != nil {
			return nil, err
		}
		matches = append(matches, cand)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score.Total != b.Score.Total {
			return a.Score.Total > b.Score.Total
		}
		if a.Score.Quality != b.Score.Quality {
			return a.Score.Quality > b.Score.Quality
		}
		return a.Booking.ID < b.Booking.ID
	})
	return matches, nil
}

func (s *Service) evaluate(ctx context.Context, memo *lookupMemo, c Container, b Booking) (Candidate, error) {
	km, known, err := memo.distance(ctx, c.DepotID, b.PickupLocationID)
	if err != nil {
		return Candidate{}, err
	}
	rep := memo.loadReputation(ctx, Counterparty(c, b))
	scenario := Scenario(c, b)

	cand := Candidate{
		Booking:       b,
		Score:         Score(c, b, km, known, rep, s.cfg),
		Scenario:      scenario,
		DistanceKm:    km,
		DistanceKnown: known,
	}
	cand.RequiredActions = requiredActions(c, b, scenario, known)
	cand.AdditionalFees = s.additionalFees(ctx, memo, c, b, scenario)
	return cand, nil
}

func requiredActions(c Container, b Booking, scenario ScenarioType, known bool) []string {
	var actions []string
	if c.DepotID != b.PickupLocationID {
		actions = append(actions, actionCrossDepot)
	}
	switch scenario {
	case ScenarioSameShippingLine:
		actions = append(actions, actionHandOver)
	case ScenarioMarketplace:
		actions = append(actions, actionHandOver, actionInterchange, actionLineInterchange)
	}
	if !known {
		actions = append(actions, actionUnknownDistance)
	}
	return actions
}

func (s *Service) additionalFees(ctx context.Context, memo *lookupMemo, c Container, b Booking, scenario ScenarioType) []Fee {
	var fees []Fee
	if c.DepotID != b.PickupLocationID {
		if q, ok := memo.fee(ctx, c.DepotID, b.PickupLocationID); ok && q.Fee.Amount > 0 {
			fees = append(fees, Fee{Label: feeLabelRelocation, Amount: q.Fee})
		}
	}
	if scenario == ScenarioMarketplace && s.cfg.MarketplaceFee > 0 {
		fees = append(fees, Fee{
			Label:  feeLabelMarketplace,
			Amount: types.Money{Amount: s.cfg.MarketplaceFee, Currency: s.cfg.Currency},
		})
	}
	return fees
}

type distanceResult struct {
	km    float64
	known bool
}

type feeResult struct {
	quote feematrix.Quote
	ok    bool
}

// lookupMemo caches per-call lookups shared by the fan-out workers.
type lookupMemo struct {
	svc *Service

	mu         sync.Mutex
	distances  map[feematrix.Route]distanceResult
	fees       map[feematrix.Route]feeResult
	reputation map[types.ID]*OrgReputation
	repLoaded  map[types.ID]bool
}

func newLookupMemo(svc *Service) *lookupMemo {
	return &lookupMemo{
		svc:        svc,
		distances:  make(map[feematrix.Route]distanceResult),
		fees:       make(map[feematrix.Route]feeResult),
		reputation: make(map[types.ID]*OrgReputation),
		repLoaded:  make(map[types.ID]bool),
	}
}

// distance resolves a route distance. Only context cancellation is fatal;
// an unknown distance scores zero on that component.
func (m *lookupMemo) distance(ctx context.Context, from, to types.ID) (float64, bool, error) {
	key := feematrix.Route{Origin: from, Destination: to}
	m.mu.Lock()
	r, ok := m.distances[key]
	m.mu.Unlock()
	if ok {
		return r.km, r.known, nil
	}

	if m.svc.distances == nil {
		return 0, from == to, nil
	}
	km, err := m.svc.distances.DistanceKm(ctx, from, to)
	switch {
	case err == nil:
		r = distanceResult{km: km, known: true}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 0, false, err
	default:
		m.svc.log.Debug().Err(err).Str("from", string(from)).Str("to", string(to)).Msg("distance unavailable")
		r = distanceResult{}
	}

	m.mu.Lock()
	m.distances[key] = r
	m.mu.Unlock()
	return r.km, r.known, nil
}

func (m *lookupMemo) fee(ctx context.Context, from, to types.ID) (feematrix.Quote, bool) {
	key := feematrix.Route{Origin: from, Destination: to}
	m.mu.Lock()
	r, ok := m.fees[key]
	m.mu.Unlock()
	if ok {
		return r.quote, r.ok
	}
	if m.svc.fees == nil {
		return feematrix.Quote{}, false
	}
	q, err := m.svc.fees.Lookup(ctx, from, to)
	r = feeResult{quote: q, ok: err == nil}
	if err != nil && !errors.Is(err, feematrix.ErrNotPriced) {
		m.svc.log.Warn().Err(err).Str("from", string(from)).Str("to", string(to)).Msg("fee lookup failed")
	}
	m.mu.Lock()
	m.fees[key] = r
	m.mu.Unlock()
	return r.quote, r.ok
}

// loadReputation falls back to neutral (nil) when the source fails.
func (m *lookupMemo) loadReputation(ctx context.Context, orgID types.ID) *OrgReputation {
	m.mu.Lock()
	if m.repLoaded[orgID] {
		rep := m.reputation[orgID]
		m.mu.Unlock()
		return rep
	}
	m.mu.Unlock()

	var rep *OrgReputation
	if m.svc.reputation != nil && orgID != "" {
		r, err := m.svc.reputation.Reputation(ctx, orgID)
		if err != nil {
			m.svc.log.Warn().Err(err).Str("org_id", string(orgID)).Msg("reputation unavailable, using neutral quality")
		} else {
			rep = r
		}
	}

	m.mu.Lock()
	m.reputation[orgID] = rep
	m.repLoaded[orgID] = true
	m.mu.Unlock()
	return rep
}
