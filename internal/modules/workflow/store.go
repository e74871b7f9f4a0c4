// README: Persistence contract for workflow state; every transition is one atomic unit.
package workflow

import (
	"context"
	"fmt"
	"time"

	"reposition/internal/types"
)

// ContainerChange moves a container from one of From to To, failing the
// enclosing transition with ErrConflict when the current status is elsewhere
// and with ErrInvalidTransition when the lifecycle forbids the move.
type ContainerChange struct {
	ID   types.ID
	From []ContainerStatus
	To   ContainerStatus
	// KeepWhilePending leaves the container untouched while another PENDING
	// street-turn request still references it.
	KeepWhilePending bool
}

// check validates the change against the container's current status.
func (ch ContainerChange) check(cur ContainerStatus) error {
	if !containsStatus(ch.From, cur) {
		return fmt.Errorf("%w: container %s is %s", ErrConflict, ch.ID, cur)
	}
	if cur != ch.To && !CanContainerTransition(cur, ch.To) {
		return fmt.Errorf("%w: container %s cannot move from %s to %s", ErrInvalidTransition, ch.ID, cur, ch.To)
	}
	return nil
}

type BookingChange struct {
	ID   types.ID
	From BookingStatus
	To   BookingStatus
}

// StreetTurnTransition writes Next over the stored request when it is still at
// (From, Version), together with the linked container and booking changes.
type StreetTurnTransition struct {
	Next      *StreetTurnRequest
	From      StreetTurnStatus
	Version   int
	Container *ContainerChange
	Booking   *BookingChange
	// SupersedeReason, when set, declines the other PENDING requests on the
	// container and releases their bookings.
	SupersedeReason string
}

type CodTransition struct {
	Next      *CodRequest
	From      CodStatus
	Version   int
	Container *ContainerChange
}

type Store interface {
	CreateContainer(ctx context.Context, c *Container) error
	CreateBooking(ctx context.Context, b *Booking) error
	GetContainer(ctx context.Context, id types.ID) (*Container, error)
	GetBooking(ctx context.Context, id types.ID) (*Booking, error)
	// ListOpenContainers returns containers available for new requests that
	// belong to orgID or are listed on the marketplace.
	ListOpenContainers(ctx context.Context, orgID types.ID) ([]Container, error)
	ListOpenBookings(ctx context.Context, orgID types.ID) ([]Booking, error)

	// CreateStreetTurn inserts r and applies both linked changes atomically.
	CreateStreetTurn(ctx context.Context, r *StreetTurnRequest, container ContainerChange, booking BookingChange) error
	GetStreetTurn(ctx context.Context, id types.ID) (*StreetTurnRequest, error)
	// TransitionStreetTurn returns the IDs of superseded requests.
	TransitionStreetTurn(ctx context.Context, t StreetTurnTransition) ([]types.ID, error)

	CreateCod(ctx context.Context, r *CodRequest, container ContainerChange) error
	GetCod(ctx context.Context, id types.ID) (*CodRequest, error)
	TransitionCod(ctx context.Context, t CodTransition) error
	ListExpiredCod(ctx context.Context, now time.Time) ([]CodRequest, error)

	AppendEvent(ctx context.Context, e *Event) error
}
