// README: In-memory Store used by the workflow unit and race tests.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reposition/internal/types"
)

type memStore struct {
	mu          sync.Mutex
	containers  map[types.ID]Container
	bookings    map[types.ID]Booking
	streetTurns map[types.ID]StreetTurnRequest
	cods        map[types.ID]CodRequest
	events      []Event
}

func newMemStore() *memStore {
	return &memStore{
		containers:  make(map[types.ID]Container),
		bookings:    make(map[types.ID]Booking),
		streetTurns: make(map[types.ID]StreetTurnRequest),
		cods:        make(map[types.ID]CodRequest),
	}
}

var _ Store = (*memStore)(nil)

func (m *memStore) CreateContainer(_ context.Context, c *Container) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[c.ID] = *c
	return nil
}

func (m *memStore) CreateBooking(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
	return nil
}

func (m *memStore) GetContainer(_ context.Context, id types.ID) (*Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	if !ok {
		return nil, fmt.Errorf("%w: container %s", ErrNotFound, id)
	}
	return &c, nil
}

func (m *memStore) GetBooking(_ context.Context, id types.ID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	return &b, nil
}

func (m *memStore) ListOpenContainers(_ context.Context, orgID types.ID) ([]Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Container
	for _, c := range m.containers {
		if c.Status.AvailableForRequests() && (c.TruckingCompanyID == orgID || c.MarketplaceListed) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListOpenBookings(_ context.Context, orgID types.ID) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.Status == BookingAvailable && b.TruckingCompanyID == orgID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateStreetTurn(_ context.Context, r *StreetTurnRequest, container ContainerChange, booking BookingChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkContainer(container); err != nil {
		return err
	}
	if err := m.checkBooking(booking); err != nil {
		return err
	}
	m.streetTurns[r.ID] = *r
	m.applyContainer(container)
	m.applyBooking(booking)
	return nil
}

func (m *memStore) GetStreetTurn(_ context.Context, id types.ID) (*StreetTurnRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.streetTurns[id]
	if !ok {
		return nil, fmt.Errorf("%w: street-turn request %s", ErrNotFound, id)
	}
	return &r, nil
}

func (m *memStore) TransitionStreetTurn(_ context.Context, t StreetTurnTransition) ([]types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.streetTurns[t.Next.ID]
	if !ok || cur.Status != t.From || cur.StatusVersion != t.Version {
		return nil, fmt.Errorf("%w: street-turn request %s", ErrConflict, t.Next.ID)
	}
	if t.Container != nil {
		if err := m.checkContainer(*t.Container); err != nil {
			return nil, err
		}
	}
	if t.Booking != nil {
		if err := m.checkBooking(*t.Booking); err != nil {
			return nil, err
		}
	}

	m.streetTurns[t.Next.ID] = *t.Next
	var superseded []types.ID
	if t.SupersedeReason != "" {
		for id, other := range m.streetTurns {
			if other.ContainerID != t.Next.ContainerID || other.Status != StreetTurnPending {
				continue
			}
			other.Status = StreetTurnDeclined
			other.StatusVersion++
			other.ReasonForDecision = t.SupersedeReason
			other.DecidedAt = t.Next.DecidedAt
			m.streetTurns[id] = other
			if b, ok := m.bookings[other.BookingID]; ok && b.Status == BookingAwaitingApproval {
				b.Status = BookingAvailable
				m.bookings[b.ID] = b
			}
			superseded = append(superseded, id)
		}
	}
	if t.Container != nil {
		m.applyContainer(*t.Container)
	}
	if t.Booking != nil {
		m.applyBooking(*t.Booking)
	}
	return superseded, nil
}

func (m *memStore) CreateCod(_ context.Context, r *CodRequest, container ContainerChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkContainer(container); err != nil {
		return err
	}
	m.cods[r.ID] = *r
	m.applyContainer(container)
	return nil
}

func (m *memStore) GetCod(_ context.Context, id types.ID) (*CodRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.cods[id]
	if !ok {
		return nil, fmt.Errorf("%w: COD request %s", ErrNotFound, id)
	}
	return &r, nil
}

func (m *memStore) TransitionCod(_ context.Context, t CodTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.cods[t.Next.ID]
	if !ok || cur.Status != t.From || cur.StatusVersion != t.Version {
		return fmt.Errorf("%w: COD request %s", ErrConflict, t.Next.ID)
	}
	if t.Container != nil {
		if err := m.checkContainer(*t.Container); err != nil {
			return err
		}
	}
	m.cods[t.Next.ID] = *t.Next
	if t.Container != nil {
		m.applyContainer(*t.Container)
	}
	return nil
}

func (m *memStore) ListExpiredCod(_ context.Context, now time.Time) ([]CodRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CodRequest
	for _, r := range m.cods {
		if r.Status.expirable() && r.ExpiresAt.Before(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *memStore) checkContainer(ch ContainerChange) error {
	c, ok := m.containers[ch.ID]
	if !ok {
		return fmt.Errorf("%w: container %s", ErrNotFound, ch.ID)
	}
	return ch.check(c.Status)
}

func (m *memStore) checkBooking(ch BookingChange) error {
	b, ok := m.bookings[ch.ID]
	if !ok || b.Status != ch.From {
		return fmt.Errorf("%w: booking %s is not %s", ErrConflict, ch.ID, ch.From)
	}
	return nil
}

// applyContainer runs after the request row is written, so pending counts
// already exclude a request that was just decided.
func (m *memStore) applyContainer(ch ContainerChange) {
	if ch.KeepWhilePending {
		for _, r := range m.streetTurns {
			if r.ContainerID == ch.ID && r.Status == StreetTurnPending {
				return
			}
		}
	}
	c := m.containers[ch.ID]
	c.Status = ch.To
	m.containers[ch.ID] = c
}

func (m *memStore) applyBooking(ch BookingChange) {
	b := m.bookings[ch.ID]
	b.Status = ch.To
	m.bookings[ch.ID] = b
}

func (m *memStore) containerStatus(id types.ID) ContainerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.containers[id].Status
}

func (m *memStore) bookingStatus(id types.ID) BookingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id].Status
}
