// README: Matching unit tests covering feasibility, score bounds and ranking order.
package matching

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"reposition/internal/config"
	"reposition/internal/modules/distance"
	"reposition/internal/modules/feematrix"
	"reposition/internal/types"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type routeDistances map[[2]types.ID]float64

func (r routeDistances) DistanceKm(_ context.Context, from, to types.ID) (float64, error) {
	if from == to {
		return 0, nil
	}
	km, ok := r[[2]types.ID{from, to}]
	if !ok {
		return 0, distance.ErrUnknownDistance
	}
	return km, nil
}

type reputations struct {
	byOrg map[types.ID]*OrgReputation
	err   error
}

func (r reputations) Reputation(_ context.Context, orgID types.ID) (*OrgReputation, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.byOrg[orgID], nil
}

func testConfig() config.MatchingConfig {
	return config.MatchingConfig{
		MaxDistanceKm:    150,
		IdleHorizon:      336 * time.Hour,
		ReviewConfidence: 10,
		Currency:         "USD",
	}
}

func at(raw string) time.Time {
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return ts
}

func container(id types.ID) Container {
	return Container{
		ID:                id,
		Number:            "MSCU1234565",
		Type:              "40HC",
		DepotID:           "depot-1",
		AvailableFrom:     at("2025-02-01T08:00:00Z"),
		ShippingLineID:    "line-1",
		TruckingCompanyID: "truck-1",
	}
}

func booking(id types.ID) Booking {
	return Booking{
		ID:                id,
		Number:            "BK-" + string(id),
		RequiredType:      "40HC",
		PickupLocationID:  "depot-1",
		NeededBy:          at("2025-02-01T08:00:00Z"),
		ShippingLineID:    "line-1",
		TruckingCompanyID: "truck-1",
	}
}

func newTestService(d distance.Resolver, rep Reputation, cfg config.MatchingConfig) *Service {
	fees := feematrix.NewService(feematrix.NewMatrix([]feematrix.Entry{
		{
			Route:      feematrix.Route{Origin: "depot-1", Destination: "depot-2"},
			Fee:        types.Money{Amount: 15000, Currency: "USD"},
			DistanceKm: 75,
		},
	}))
	return NewService(d, fees, rep, cfg, zerolog.Nop())
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// ---------------------------------------------------------------------------
// Feasibility
// ---------------------------------------------------------------------------

func TestFeasible(t *testing.T) {
	late := container("c-late")
	late.AvailableFrom = at("2025-02-02T10:00:00Z")

	wrongType := container("c-20")
	wrongType.Type = "20GP"

	tests := []struct {
		name    string
		c       Container
		wantErr error
	}{
		{"same instant is feasible", container("c-1"), nil},
		{"available after needed", late, ErrTooLate},
		{"type mismatch", wrongType, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Feasible(tt.c, booking("b-1"))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected feasible, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestComputeSuggestions_InfeasibleContainerOmitted(t *testing.T) {
	svc := newTestService(routeDistances{}, nil, testConfig())
	late := container("c-late")
	late.AvailableFrom = at("2025-02-02T10:00:00Z")

	got, err := svc.ComputeSuggestions(context.Background(), []Container{late}, []Booking{booking("b-1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no suggestions, got %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Score components
// ---------------------------------------------------------------------------

func TestScore_PerfectSameTruckerPair(t *testing.T) {
	s := Score(container("c-1"), booking("b-1"), 0, true, nil, testConfig())
	if s.Distance != 40 || s.Time != 20 || s.Complexity != 15 || s.Quality != 15 {
		t.Fatalf("unexpected components: %+v", s)
	}
	if s.Total != 90 {
		t.Fatalf("expected total 90, got %v", s.Total)
	}
}

func TestDistanceScore(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		km    float64
		known bool
		want  float64
	}{
		{0, true, 40},
		{75, true, 20},
		{150, true, 0},
		{400, true, 0},
		{10, false, 0},
	}
	for _, tt := range tests {
		if got := distanceScore(tt.km, tt.known, cfg); got != tt.want {
			t.Errorf("distanceScore(%v, %v) = %v, want %v", tt.km, tt.known, got, tt.want)
		}
	}
}

func TestTimeScore(t *testing.T) {
	cfg := testConfig()
	from := at("2025-02-01T08:00:00Z")
	tests := []struct {
		idle time.Duration
		want float64
	}{
		{0, 20},
		{168 * time.Hour, 10},
		{336 * time.Hour, 0},
		{1000 * time.Hour, 0},
	}
	for _, tt := range tests {
		if got := timeScore(from, from.Add(tt.idle), cfg); got != tt.want {
			t.Errorf("timeScore(idle=%v) = %v, want %v", tt.idle, got, tt.want)
		}
	}
}

func TestComplexityScore(t *testing.T) {
	sameLine := booking("b-2")
	sameLine.TruckingCompanyID = "truck-2"
	market := booking("b-3")
	market.TruckingCompanyID = "truck-2"
	market.ShippingLineID = "line-2"

	c := container("c-1")
	if got := Scenario(c, booking("b-1")); got != ScenarioSameTruckingCompany {
		t.Fatalf("expected same trucking company, got %s", got)
	}
	if got := complexityScore(Scenario(c, sameLine)); got != 10 {
		t.Fatalf("expected 10 for same shipping line, got %v", got)
	}
	if got := complexityScore(Scenario(c, market)); got != 5 {
		t.Fatalf("expected 5 for marketplace, got %v", got)
	}
}

func TestQualityScore(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name string
		rep  *OrgReputation
		want float64
	}{
		{"no history is neutral", nil, 15},
		{"full confidence perfect", &OrgReputation{RatingAverage: 5, ReviewCount: 20, CompletedRequests: 20, TotalRequests: 20}, 25},
		{"half confidence rating only", &OrgReputation{RatingAverage: 5, ReviewCount: 5}, 18},
		{"poor record", &OrgReputation{RatingAverage: 0, ReviewCount: 10, CompletedRequests: 0, TotalRequests: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := qualityScore(tt.rep, cfg); !approxEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestScore_BoundsAndSum(t *testing.T) {
	cfg := testConfig()
	reps := []*OrgReputation{
		nil,
		{RatingAverage: 3.7, ReviewCount: 3, CompletedRequests: 2, TotalRequests: 7},
		{RatingAverage: 9, ReviewCount: 100, CompletedRequests: 50, TotalRequests: 10},
	}
	for _, km := range []float64{0, 12.345, 149.9, 1e6} {
		for _, idle := range []time.Duration{0, 37 * time.Hour, 10000 * time.Hour} {
			for _, rep := range reps {
				c := container("c-1")
				b := booking("b-1")
				b.NeededBy = c.AvailableFrom.Add(idle)
				s := Score(c, b, km, true, rep, cfg)

				if s.Distance < 0 || s.Distance > 40 || s.Time < 0 || s.Time > 20 ||
					s.Complexity < 0 || s.Complexity > 15 || s.Quality < 0 || s.Quality > 25 {
					t.Fatalf("component out of range: %+v", s)
				}
				if s.Total < 0 || s.Total > 100 {
					t.Fatalf("total out of range: %+v", s)
				}
				if !approxEqual(s.Total, s.Distance+s.Time+s.Complexity+s.Quality) {
					t.Fatalf("total is not the component sum: %+v", s)
				}
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Ranking
// ---------------------------------------------------------------------------

func TestComputeSuggestions_Ordering(t *testing.T) {
	// b-high shares the line but not the trucker: complexity 10, quality 20.
	// b-low shares the trucker: complexity 15, quality 15. Both total 90.
	high := booking("b-high")
	high.TruckingCompanyID = "truck-2"
	low := booking("b-low")
	tieA := booking("b-a")
	tieA.NeededBy = tieA.NeededBy.Add(168 * time.Hour)
	tieB := booking("b-b")
	tieB.NeededBy = tieB.NeededBy.Add(168 * time.Hour)

	rep := reputations{byOrg: map[types.ID]*OrgReputation{
		"truck-2": {OrgID: "truck-2", RatingAverage: 5, ReviewCount: 10, CompletedRequests: 5, TotalRequests: 10},
	}}
	svc := newTestService(routeDistances{}, rep, testConfig())

	got, err := svc.ComputeSuggestions(context.Background(),
		[]Container{container("c-1")},
		[]Booking{tieB, low, tieA, high})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}

	want := []types.ID{"b-high", "b-low", "b-a", "b-b"}
	matches := got[0].Matches
	if len(matches) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(matches))
	}
	for i, id := range want {
		if matches[i].Booking.ID != id {
			t.Fatalf("position %d: expected %s, got %s (%+v)", i, id, matches[i].Booking.ID, matches[i].Score)
		}
	}
	if matches[0].Score.Total != matches[1].Score.Total {
		t.Fatalf("expected tied totals, got %v and %v", matches[0].Score.Total, matches[1].Score.Total)
	}
}

func TestComputeSuggestions_OnlyFeasibleMatches(t *testing.T) {
	svc := newTestService(routeDistances{}, nil, testConfig())
	wrong := booking("b-20")
	wrong.RequiredType = "20GP"
	early := booking("b-early")
	early.NeededBy = at("2025-01-30T00:00:00Z")

	idle := container("c-idle")
	idle.Type = "45HC"

	got, err := svc.ComputeSuggestions(context.Background(),
		[]Container{container("c-1"), idle},
		[]Booking{wrong, early, booking("b-ok")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Container.ID != "c-1" {
		t.Fatalf("expected only c-1, got %+v", got)
	}
	if len(got[0].Matches) != 1 || got[0].Matches[0].Booking.ID != "b-ok" {
		t.Fatalf("expected only b-ok, got %+v", got[0].Matches)
	}
}

func TestComputeSuggestions_ActionsAndFees(t *testing.T) {
	cfg := testConfig()
	cfg.MarketplaceFee = 2500

	remote := booking("b-remote")
	remote.PickupLocationID = "depot-2"
	remote.TruckingCompanyID = "truck-9"
	remote.ShippingLineID = "line-9"

	d := routeDistances{{"depot-1", "depot-2"}: 75}
	svc := newTestService(d, nil, cfg)

	got, err := svc.ComputeSuggestions(context.Background(), []Container{container("c-1")}, []Booking{remote})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := got[0].Matches[0]
	if m.Scenario != ScenarioMarketplace {
		t.Fatalf("expected marketplace scenario, got %s", m.Scenario)
	}
	if !m.DistanceKnown || m.DistanceKm != 75 || m.Score.Distance != 20 {
		t.Fatalf("unexpected distance: %+v", m)
	}
	for _, action := range []string{actionCrossDepot, actionHandOver, actionInterchange, actionLineInterchange} {
		if !contains(m.RequiredActions, action) {
			t.Fatalf("missing action %q in %v", action, m.RequiredActions)
		}
	}
	if len(m.AdditionalFees) != 2 {
		t.Fatalf("expected relocation and marketplace fees, got %+v", m.AdditionalFees)
	}
	if m.AdditionalFees[0].Amount.Amount != 15000 || m.AdditionalFees[1].Amount.Amount != 2500 {
		t.Fatalf("unexpected fees: %+v", m.AdditionalFees)
	}
}

func TestComputeSuggestions_UnknownDistance(t *testing.T) {
	remote := booking("b-remote")
	remote.PickupLocationID = "depot-unmapped"
	svc := newTestService(routeDistances{}, nil, testConfig())

	got, err := svc.ComputeSuggestions(context.Background(), []Container{container("c-1")}, []Booking{remote})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := got[0].Matches[0]
	if m.DistanceKnown || m.Score.Distance != 0 {
		t.Fatalf("expected zero distance score for unknown distance, got %+v", m)
	}
	if !contains(m.RequiredActions, actionUnknownDistance) {
		t.Fatalf("expected manual route action, got %v", m.RequiredActions)
	}
	if len(m.AdditionalFees) != 0 {
		t.Fatalf("expected no fees for unpriced route, got %+v", m.AdditionalFees)
	}
}

func TestComputeSuggestions_ReputationFailureIsNeutral(t *testing.T) {
	svc := newTestService(routeDistances{}, reputations{err: errors.New("db down")}, testConfig())

	got, err := svc.ComputeSuggestions(context.Background(), []Container{container("c-1")}, []Booking{booking("b-1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q := got[0].Matches[0].Score.Quality; q != 15 {
		t.Fatalf("expected neutral quality 15, got %v", q)
	}
}

func TestComputeSuggestions_CancelledContext(t *testing.T) {
	svc := newTestService(routeDistances{}, nil, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ComputeSuggestions(ctx, []Container{container("c-1")}, []Booking{booking("b-1")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCounterparty(t *testing.T) {
	c := container("c-1")
	if got := Counterparty(c, booking("b-1")); got != "line-1" {
		t.Fatalf("expected shipping line when truckers match, got %s", got)
	}
	other := booking("b-2")
	other.TruckingCompanyID = "truck-2"
	if got := Counterparty(c, other); got != "truck-2" {
		t.Fatalf("expected booking trucker, got %s", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
