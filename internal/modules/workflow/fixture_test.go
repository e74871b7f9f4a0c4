// README: Shared fixtures for workflow tests: seeded store, fake collaborators, fixed clock.
package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"reposition/internal/config"
	"reposition/internal/modules/distance"
	"reposition/internal/modules/feematrix"
	"reposition/internal/modules/rules"
	"reposition/internal/types"
)

var (
	dispatcher   = types.Actor{OrgID: "truck-1", Role: types.RoleDispatcher}
	otherTrucker = types.Actor{OrgID: "truck-2", Role: types.RoleDispatcher}
	carrier      = types.Actor{OrgID: "line-1", Role: types.RoleCarrierAdmin}
	otherCarrier = types.Actor{OrgID: "line-2", Role: types.RoleCarrierAdmin}

	t0 = time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
)

type ruleSet map[types.ID][]rules.Rule

func (r ruleSet) ListRules(_ context.Context, carrierID types.ID) ([]rules.Rule, error) {
	return r[carrierID], nil
}

type brokenRules struct{}

func (brokenRules) Evaluate(context.Context, types.ID, rules.Input) (rules.Decision, error) {
	return rules.NoMatch, context.DeadlineExceeded
}

type routeKm map[[2]types.ID]float64

func (r routeKm) DistanceKm(_ context.Context, from, to types.ID) (float64, error) {
	km, ok := r[[2]types.ID{from, to}]
	if !ok {
		return 0, distance.ErrUnknownDistance
	}
	return km, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	keys []string
}

func (n *recordingNotifier) Publish(_ context.Context, key string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.keys = append(n.keys, key)
	return nil
}

func (n *recordingNotifier) has(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return containsStatus(n.keys, key)
}

type fixture struct {
	svc      *Service
	store    *memStore
	notifier *recordingNotifier
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRules(t, nil)
}

// newFixtureWithRules wires the real rule engine unless evaluator is given.
func newFixtureWithRules(t *testing.T, evaluator RuleEvaluator) *fixture {
	t.Helper()
	store := newMemStore()
	if evaluator == nil {
		evaluator = rules.NewService(ruleSet{
			"line-1": {
				{
					ID: "r-100", CarrierID: "line-1", Name: "truck-9 anywhere", Priority: 100, IsActive: true,
					TruckingCompanies: rules.TruckingFilter{Allowed: []types.ID{"truck-9"}},
				},
				{
					ID: "r-10", CarrierID: "line-1", Name: "nearby 40HC", Priority: 10, IsActive: true,
					ContainerTypes:    rules.ContainerTypeFilter{Types: []string{"40HC"}},
					TruckingCompanies: rules.TruckingFilter{AllCompanies: true},
					Distance:          rules.DistanceLimit{Enabled: true, MaxKm: 30},
				},
			},
		}, zerolog.Nop())
	}
	fees := feematrix.NewService(feematrix.NewMatrix([]feematrix.Entry{
		{Route: feematrix.Route{Origin: "depot-1", Destination: "depot-2"}, Fee: types.Money{Amount: 0, Currency: "USD"}, DistanceKm: 10},
		{Route: feematrix.Route{Origin: "depot-1", Destination: "depot-3"}, Fee: types.Money{Amount: 12500, Currency: "USD"}, DistanceKm: 40},
	}))
	notifier := &recordingNotifier{}
	svc := NewService(Deps{
		Store: store,
		Fees:  fees,
		Rules: evaluator,
		Distances: routeKm{
			{"depot-1", "depot-2"}:   10,
			{"depot-1", "depot-far"}: 80,
		},
		Notifier: notifier,
		Config:   config.WorkflowConfig{CodRequestTTL: 72 * time.Hour, Currency: "USD"},
		Log:      zerolog.Nop(),
	})
	f := &fixture{svc: svc, store: store, notifier: notifier, clock: t0}
	svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) seedContainer(id types.ID, mutate ...func(*Container)) {
	c := Container{
		ID:                id,
		Number:            "CSQU3054383",
		Type:              "40HC",
		OriginDepotID:     "depot-1",
		AvailableFrom:     t0,
		ShippingLineID:    "line-1",
		TruckingCompanyID: "truck-1",
		Status:            ContainerAvailable,
		CreatedAt:         t0,
	}
	for _, m := range mutate {
		m(&c)
	}
	_ = f.store.CreateContainer(context.Background(), &c)
}

func (f *fixture) seedBooking(id types.ID, mutate ...func(*Booking)) {
	b := Booking{
		ID:                id,
		Number:            "BK-" + string(id),
		RequiredType:      "40HC",
		PickupLocationID:  "depot-2",
		NeededBy:          t0.Add(48 * time.Hour),
		TruckingCompanyID: "truck-1",
		ShippingLineID:    "line-1",
		Status:            BookingAvailable,
		CreatedAt:         t0,
	}
	for _, m := range mutate {
		m(&b)
	}
	_ = f.store.CreateBooking(context.Background(), &b)
}

func farPickup(b *Booking) { b.PickupLocationID = "depot-far" }

func (f *fixture) assertContainer(t *testing.T, id types.ID, want ContainerStatus) {
	t.Helper()
	if got := f.store.containerStatus(id); got != want {
		t.Fatalf("container %s: expected %s, got %s", id, want, got)
	}
}

func (f *fixture) assertBooking(t *testing.T, id types.ID, want BookingStatus) {
	t.Helper()
	if got := f.store.bookingStatus(id); got != want {
		t.Fatalf("booking %s: expected %s, got %s", id, want, got)
	}
}
