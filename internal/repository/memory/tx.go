package memory

import (
	"context"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
)

// tx works on a private copy of the state. Row locks are implicit: the
// store mutex is held for the whole transaction.
type tx struct {
	st  *state
	now time.Time
}

func (t *tx) LockPackage(_ context.Context, id string, _ bool) (*domain.Package, error) {
	p, ok := t.st.packages[id]
	if !ok {
		return nil, domain.NotFound("package %s not found", id)
	}
	return &p, nil
}

func (t *tx) InsertPackage(_ context.Context, p *domain.Package) error {
	if _, ok := t.st.packages[p.ID]; ok {
		return domain.Conflict("package %s already exists", p.ID)
	}
	p.Version = 1
	p.CreatedAt = t.now
	p.UpdatedAt = t.now
	t.st.packages[p.ID] = *p
	return nil
}

func (t *tx) UpdatePackage(_ context.Context, p *domain.Package) error {
	cur, ok := t.st.packages[p.ID]
	if !ok || cur.Version != p.Version {
		return domain.Conflict("package %s was modified concurrently", p.ID)
	}
	cur.Title = p.Title
	cur.Destination = p.Destination
	cur.Duration = p.Duration
	cur.Description = p.Description
	cur.Price = p.Price
	cur.TourStart = p.TourStart
	cur.TourEnd = p.TourEnd
	cur.Status = p.Status
	cur.DecidedBy = p.DecidedBy
	cur.Version++
	cur.UpdatedAt = t.now
	t.st.packages[p.ID] = cur
	p.Version = cur.Version
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

func (t *tx) DeletePackage(_ context.Context, id string) error {
	if _, ok := t.st.packages[id]; !ok {
		return domain.NotFound("package %s not found", id)
	}
	delete(t.st.packages, id)
	return nil
}

func (t *tx) CountLiveBookings(_ context.Context, packageID string) (int, error) {
	n := 0
	for _, b := range t.st.bookings {
		if b.PackageID == packageID && b.Status.Live() {
			n++
		}
	}
	return n, nil
}

func (t *tx) LockBooking(_ context.Context, id string) (*domain.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return nil, domain.NotFound("booking %s not found", id)
	}
	return &b, nil
}

func (t *tx) InsertBooking(_ context.Context, b *domain.Booking) error {
	if _, ok := t.st.bookings[b.ID]; ok {
		return domain.Conflict("booking %s already exists", b.ID)
	}
	b.Version = 1
	b.CreatedAt = t.now
	b.UpdatedAt = t.now
	t.st.bookings[b.ID] = *b
	return nil
}

func (t *tx) UpdateBooking(_ context.Context, b *domain.Booking) error {
	cur, ok := t.st.bookings[b.ID]
	if !ok || cur.Version != b.Version {
		return domain.Conflict("booking %s was modified concurrently", b.ID)
	}
	cur.Status = b.Status
	cur.DecidedBy = b.DecidedBy
	cur.HiddenFromCustomer = b.HiddenFromCustomer
	cur.Version++
	cur.UpdatedAt = t.now
	t.st.bookings[b.ID] = cur
	b.Version = cur.Version
	b.UpdatedAt = cur.UpdatedAt
	return nil
}

func (t *tx) LockPayment(_ context.Context, id string) (*domain.Payment, error) {
	p, ok := t.st.payments[id]
	if !ok {
		return nil, domain.NotFound("payment %s not found", id)
	}
	return &p, nil
}

func (t *tx) LockActivePayment(_ context.Context, bookingID string) (*domain.Payment, error) {
	for _, p := range t.st.payments {
		if p.BookingID == bookingID && p.Status.Active() {
			return &p, nil
		}
	}
	return nil, domain.NotFound("active payment for booking %s not found", bookingID)
}

func (t *tx) InsertPayment(_ context.Context, p *domain.Payment) error {
	if _, ok := t.st.payments[p.ID]; ok {
		return domain.Conflict("payment %s already exists", p.ID)
	}
	if p.Status.Active() {
		for _, other := range t.st.payments {
			if other.BookingID == p.BookingID && other.Status.Active() {
				return domain.Conflict("booking %s already has an active payment", p.BookingID)
			}
		}
	}
	p.Version = 1
	p.CreatedAt = t.now
	p.UpdatedAt = t.now
	t.st.payments[p.ID] = *p
	return nil
}

func (t *tx) UpdatePayment(_ context.Context, p *domain.Payment) error {
	cur, ok := t.st.payments[p.ID]
	if !ok || cur.Version != p.Version {
		return domain.Conflict("payment %s was modified concurrently", p.ID)
	}
	cur.Status = p.Status
	cur.GatewayRef = p.GatewayRef
	cur.FailureReason = p.FailureReason
	cur.Version++
	cur.UpdatedAt = t.now
	t.st.payments[p.ID] = cur
	p.Version = cur.Version
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

func (t *tx) Enqueue(_ context.Context, msg *domain.OutboxMessage) error {
	msg.CreatedAt = t.now
	t.st.outbox[msg.ID] = *msg
	return nil
}

var _ repository.Tx = (*tx)(nil)
