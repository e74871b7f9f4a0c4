// README: Transition table, label, ISO 6346 and suggestion query tests.
package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"reposition/internal/config"
	"reposition/internal/modules/matching"
	"reposition/internal/types"
)

func TestCanCodTransition(t *testing.T) {
	cases := []struct {
		from, to CodStatus
		want     bool
	}{
		{CodPending, CodApproved, true},
		{CodPending, CodPendingPayment, true},
		{CodPending, CodDeclined, true},
		{CodPending, CodAwaitingInfo, true},
		{CodAwaitingInfo, CodPending, true},
		{CodPendingPayment, CodPaid, true},
		{CodPaid, CodProcessingAtDepot, true},
		{CodApproved, CodProcessingAtDepot, true},
		{CodProcessingAtDepot, CodCompleted, true},
		// expiry only while waiting on a decision or on information
		{CodPending, CodExpired, true},
		{CodAwaitingInfo, CodExpired, true},
		{CodPendingPayment, CodExpired, false},
		// reversal from every non-terminal state
		{CodPending, CodReversed, true},
		{CodPaid, CodReversed, true},
		{CodProcessingAtDepot, CodReversed, true},
		// terminal
		{CodCompleted, CodReversed, false},
		{CodDeclined, CodPending, false},
		{CodExpired, CodPending, false},
		{CodReversed, CodPending, false},
		// skipping states
		{CodPendingPayment, CodProcessingAtDepot, false},
		{CodAwaitingInfo, CodApproved, false},
	}
	for _, tc := range cases {
		if got := CanCodTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanCodTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
	for _, s := range []CodStatus{CodDeclined, CodCompleted, CodExpired, CodReversed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestCanStreetTurnTransition(t *testing.T) {
	cases := []struct {
		from, to StreetTurnStatus
		want     bool
	}{
		{StreetTurnPending, StreetTurnApproved, true},
		{StreetTurnPending, StreetTurnDeclined, true},
		{StreetTurnApproved, StreetTurnCompleted, true},
		{StreetTurnPending, StreetTurnCompleted, false},
		{StreetTurnApproved, StreetTurnDeclined, false},
		{StreetTurnDeclined, StreetTurnApproved, false},
		{StreetTurnCompleted, StreetTurnPending, false},
	}
	for _, tc := range cases {
		if got := CanStreetTurnTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanStreetTurnTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestContainerTransitions(t *testing.T) {
	if len(labelsFor(KindContainer)) != 14 {
		t.Fatalf("expected 14 labelled container statuses, got %d", len(labelsFor(KindContainer)))
	}
	for _, s := range []ContainerStatus{ContainerCompleted, ContainerExpired, ContainerPaymentCancelled} {
		if len(ContainerTransitions[s]) != 0 {
			t.Errorf("%s should be terminal", s)
		}
	}
	// every status a request can start from must reach both awaiting states
	for _, s := range availableForRequests {
		if !CanContainerTransition(s, ContainerAwaitingReuseApproval) || !CanContainerTransition(s, ContainerAwaitingCodApproval) {
			t.Errorf("%s should admit new requests", s)
		}
	}
	// every awaiting/ongoing status can fail terminally
	for s, next := range ContainerTransitions {
		if s.AvailableForRequests() {
			continue
		}
		if !containsStatus(next, ContainerPaymentCancelled) {
			t.Errorf("%s cannot be cancelled", s)
		}
	}
	if CanContainerTransition(ContainerAvailable, ContainerOnGoingReuse) {
		t.Error("approval must pass through an awaiting state")
	}
	if !CanBookingTransition(BookingAwaitingApproval, BookingAvailable) || CanBookingTransition(BookingConfirmed, BookingAvailable) {
		t.Error("unexpected booking transitions")
	}
}

func TestContainerChange_Check(t *testing.T) {
	tests := []struct {
		name    string
		cur     ContainerStatus
		ch      ContainerChange
		wantErr error
	}{
		{"allowed", ContainerAvailable, ContainerChange{ID: "c-1", From: []ContainerStatus{ContainerAvailable}, To: ContainerAwaitingReuseApproval}, nil},
		{"self loop", ContainerAwaitingReuseApproval, ContainerChange{ID: "c-1", From: []ContainerStatus{ContainerAwaitingReuseApproval}, To: ContainerAwaitingReuseApproval}, nil},
		{"unchanged terminal", ContainerCompleted, ContainerChange{ID: "c-1", From: []ContainerStatus{ContainerCompleted}, To: ContainerCompleted}, nil},
		{"outside from", ContainerOnGoingCod, ContainerChange{ID: "c-1", From: []ContainerStatus{ContainerAvailable}, To: ContainerAwaitingCodApproval}, ErrConflict},
		{"skips awaiting state", ContainerAvailable, ContainerChange{ID: "c-1", From: []ContainerStatus{ContainerAvailable}, To: ContainerOnGoingReuse}, ErrInvalidTransition},
		{"leaves terminal", ContainerCompleted, ContainerChange{ID: "c-1", From: []ContainerStatus{ContainerCompleted}, To: ContainerAvailable}, ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ch.check(tt.cur)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStore_RejectsContainerMoveOutsideLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seedContainer("c-1")
	f.seedBooking("b-1")

	r := &StreetTurnRequest{
		ID: "st-bad", ContainerID: "c-1", BookingID: "b-1",
		RequestingOrgID: "truck-1", ApprovingOrgID: "line-1", Status: StreetTurnPending,
	}
	err := f.store.CreateStreetTurn(context.Background(), r,
		ContainerChange{ID: "c-1", From: []ContainerStatus{ContainerAvailable}, To: ContainerCompleted},
		BookingChange{ID: "b-1", From: BookingAvailable, To: BookingAwaitingApproval},
	)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.store.GetStreetTurn(context.Background(), "st-bad"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("request must not be written, got %v", err)
	}
	f.assertContainer(t, "c-1", ContainerAvailable)
	f.assertBooking(t, "b-1", BookingAvailable)
}

func labelsFor(kind EntityKind) []string {
	var out []string
	prefix := string(kind) + "/"
	for k := range labels {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	return out
}

func TestLabel(t *testing.T) {
	if got := Label(KindCod, CodPendingPayment); got != "Awaiting payment" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := Label(KindContainer, ContainerStatus("UNKNOWN")); got != "UNKNOWN" {
		t.Fatalf("expected raw fallback, got %q", got)
	}
}

func TestValidContainerNumber(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"CSQU3054383", true},
		{"MSCU1234566", true},
		{"msku1234566", false}, // wrong owner code for this check digit
		{"mscu1234566", true},
		{"CSQU3054384", false},
		{"CSQX3054383", false}, // invalid category identifier
		{"CSQU305438", false},
		{"C5QU3054383", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidContainerNumber(tc.in); got != tc.want {
			t.Errorf("ValidContainerNumber(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDecision(t *testing.T) {
	if d, ok := ParseDecision("REJECT"); !ok || d != DecisionDecline {
		t.Fatalf("expected REJECT to map to DECLINE, got %q %v", d, ok)
	}
	if _, ok := ParseDecision("MAYBE"); ok {
		t.Fatal("unexpected decision accepted")
	}
}

func TestRegisterContainer(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.RegisterContainer(context.Background(), RegisterContainerCommand{
		Actor: dispatcher, Number: " csqu3054383 ", Type: "40HC", OriginDepotID: "depot-1",
		AvailableFrom: t0, ShippingLineID: "line-1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if c.Number != "CSQU3054383" || c.TruckingCompanyID != "truck-1" || c.Status != ContainerAvailable {
		t.Fatalf("unexpected container: %+v", c)
	}

	_, err = f.svc.RegisterContainer(context.Background(), RegisterContainerCommand{
		Actor: dispatcher, Number: "CSQU3054384", Type: "40HC", OriginDepotID: "depot-1",
		AvailableFrom: t0, ShippingLineID: "line-1",
	})
	if err == nil {
		t.Fatal("expected check digit failure")
	}
}

func TestGetSuggestions(t *testing.T) {
	f := newFixture(t)
	f.svc.suggester = matching.NewService(nil, nil, nil, config.MatchingConfig{
		MaxDistanceKm: 150, IdleHorizon: 336 * time.Hour, ReviewConfidence: 10, Currency: "USD",
	}, zerolog.Nop())

	f.seedContainer("c-own")
	f.seedContainer("c-market", func(c *Container) {
		c.TruckingCompanyID = "truck-2"
		c.MarketplaceListed = true
	})
	f.seedContainer("c-private", func(c *Container) { c.TruckingCompanyID = "truck-2" })
	f.seedContainer("c-late", func(c *Container) { c.AvailableFrom = t0.AddDate(0, 1, 0) })
	f.seedBooking("b-1")
	f.seedBooking("b-other", func(b *Booking) { b.TruckingCompanyID = "truck-2" })

	got, err := f.svc.GetSuggestions(context.Background(), dispatcher)
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	seen := map[types.ID]bool{}
	for _, s := range got {
		seen[s.Container.ID] = true
		for _, m := range s.Matches {
			if m.Booking.ID != "b-1" {
				t.Fatalf("foreign booking suggested: %s", m.Booking.ID)
			}
		}
	}
	if !seen["c-own"] || !seen["c-market"] || seen["c-private"] || seen["c-late"] {
		t.Fatalf("unexpected containers: %v", seen)
	}
}
