// README: Container/booking registration entry points and the suggestion query.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reposition/internal/modules/matching"
	"reposition/internal/types"
)

type RegisterContainerCommand struct {
	Actor             types.Actor
	Number            string
	Type              string
	OriginDepotID     types.ID
	AvailableFrom     time.Time
	ShippingLineID    types.ID
	MarketplaceListed bool
}

type RegisterBookingCommand struct {
	Actor            types.Actor
	Number           string
	RequiredType     string
	PickupLocationID types.ID
	NeededBy         time.Time
	ShippingLineID   types.ID
}

// RegisterContainer records an empty import container for the actor's
// trucking company.
func (s *Service) RegisterContainer(ctx context.Context, cmd RegisterContainerCommand) (_ *Container, err error) {
	ctx, done := s.span(ctx, "RegisterContainer", "")
	defer done(&err)

	if err := requireRole(cmd.Actor, types.RoleDispatcher); err != nil {
		return nil, err
	}
	number := strings.ToUpper(strings.TrimSpace(cmd.Number))
	if !ValidContainerNumber(number) {
		return nil, fmt.Errorf("%w: container number %q fails the ISO 6346 check", ErrValidation, cmd.Number)
	}
	if cmd.Type == "" || cmd.OriginDepotID == "" || cmd.ShippingLineID == "" || cmd.AvailableFrom.IsZero() {
		return nil, fmt.Errorf("%w: container type, depot, shipping line and available_from are required", ErrValidation)
	}

	c := &Container{
		ID:                types.NewID(),
		Number:            number,
		Type:              cmd.Type,
		OriginDepotID:     cmd.OriginDepotID,
		AvailableFrom:     cmd.AvailableFrom.UTC(),
		ShippingLineID:    cmd.ShippingLineID,
		TruckingCompanyID: cmd.Actor.OrgID,
		Status:            ContainerAvailable,
		MarketplaceListed: cmd.MarketplaceListed,
		CreatedAt:         s.now(),
	}
	if err := s.store.CreateContainer(ctx, c); err != nil {
		return nil, err
	}
	s.record(ctx, KindContainer, c.ID, "", string(c.Status), cmd.Actor, "")
	return c, nil
}

func (s *Service) RegisterBooking(ctx context.Context, cmd RegisterBookingCommand) (_ *Booking, err error) {
	ctx, done := s.span(ctx, "RegisterBooking", "")
	defer done(&err)

	if err := requireRole(cmd.Actor, types.RoleDispatcher); err != nil {
		return nil, err
	}
	if cmd.Number == "" || cmd.RequiredType == "" || cmd.PickupLocationID == "" || cmd.ShippingLineID == "" || cmd.NeededBy.IsZero() {
		return nil, fmt.Errorf("%w: booking number, container type, pickup location, shipping line and needed_by are required", ErrValidation)
	}

	b := &Booking{
		ID:                types.NewID(),
		Number:            cmd.Number,
		RequiredType:      cmd.RequiredType,
		PickupLocationID:  cmd.PickupLocationID,
		NeededBy:          cmd.NeededBy.UTC(),
		TruckingCompanyID: cmd.Actor.OrgID,
		ShippingLineID:    cmd.ShippingLineID,
		Status:            BookingAvailable,
		CreatedAt:         s.now(),
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, err
	}
	s.record(ctx, KindBooking, b.ID, "", string(b.Status), cmd.Actor, "")
	return b, nil
}

// GetSuggestions ranks the actor's open bookings against its own open
// containers and every marketplace-listed one. Nothing is persisted.
func (s *Service) GetSuggestions(ctx context.Context, actor types.Actor) (_ []matching.Suggestion, err error) {
	ctx, done := s.span(ctx, "GetSuggestions", actor.OrgID)
	defer done(&err)

	if actor.OrgID == "" {
		return nil, ErrPermissionDenied
	}
	if s.suggester == nil {
		return nil, nil
	}
	containers, err := s.store.ListOpenContainers(ctx, actor.OrgID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.ListOpenBookings(ctx, actor.OrgID)
	if err != nil {
		return nil, err
	}

	mc := make([]matching.Container, 0, len(containers))
	for i := range containers {
		mc = append(mc, toMatchContainer(&containers[i]))
	}
	mb := make([]matching.Booking, 0, len(bookings))
	for i := range bookings {
		mb = append(mb, toMatchBooking(&bookings[i]))
	}
	return s.suggester.ComputeSuggestions(ctx, mc, mb)
}
