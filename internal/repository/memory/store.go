// Package memory is an in-process repository.Store. Transactions are
// serialized by a single mutex and applied to a private copy of the data
// that replaces the shared state only when the transaction function
// succeeds, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
)

type state struct {
	packages map[string]domain.Package
	bookings map[string]domain.Booking
	payments map[string]domain.Payment
	outbox   map[string]domain.OutboxMessage
}

func newState() *state {
	return &state{
		packages: make(map[string]domain.Package),
		bookings: make(map[string]domain.Booking),
		payments: make(map[string]domain.Payment),
		outbox:   make(map[string]domain.OutboxMessage),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.packages {
		c.packages[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{state: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work, now: s.now()}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) GetPackage(_ context.Context, id string) (*domain.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.packages[id]
	if !ok {
		return nil, domain.NotFound("package %s not found", id)
	}
	return &p, nil
}

func (s *Store) ListPackages(_ context.Context, filter repository.PackageFilter) ([]domain.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Package, 0)
	for _, p := range s.state.packages {
		if filter.AgentID != "" && p.AgentID != filter.AgentID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.state.bookings[id]
	if !ok {
		return nil, domain.NotFound("booking %s not found", id)
	}
	return &b, nil
}

func (s *Store) ListBookings(_ context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Booking, 0)
	for _, b := range s.state.bookings {
		if filter.CustomerID != "" && b.CustomerID != filter.CustomerID {
			continue
		}
		if filter.AgentID != "" && b.AgentID != filter.AgentID {
			continue
		}
		if filter.PackageID != "" && b.PackageID != filter.PackageID {
			continue
		}
		if filter.ExcludeHidden && b.HiddenFromCustomer {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.payments[id]
	if !ok {
		return nil, domain.NotFound("payment %s not found", id)
	}
	return &p, nil
}

func (s *Store) ListPayments(_ context.Context, filter repository.PaymentFilter) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Payment, 0)
	for _, p := range s.state.payments {
		if filter.CustomerID != "" && p.CustomerID != filter.CustomerID {
			continue
		}
		if filter.BookingID != "" && p.BookingID != filter.BookingID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.ExpiredBefore != nil && p.ExpiresAt.After(*filter.ExpiredBefore) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

// Outbox returns every queued message, delivered or not, oldest first.
func (s *Store) Outbox() []domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.OutboxMessage, 0, len(s.state.outbox))
	for _, m := range s.state.outbox {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return olderFirst(out[i], out[j]) })
	return out
}

func (s *Store) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]domain.OutboxMessage, 0)
	for _, m := range s.state.outbox {
		if m.DoneAt == nil && !m.NextAttemptAt.After(now) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool { return olderFirst(due[i], due[j]) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		due[i].NextAttemptAt = now.Add(lease)
		s.state.outbox[due[i].ID] = due[i]
	}
	return due, nil
}

func (s *Store) MarkDone(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.state.outbox[id]
	if !ok {
		return domain.NotFound("outbox message %s not found", id)
	}
	m.Attempts++
	m.DoneAt = &at
	m.LastError = ""
	s.state.outbox[id] = m
	return nil
}

func (s *Store) MarkRetry(_ context.Context, id string, next time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.state.outbox[id]
	if !ok {
		return domain.NotFound("outbox message %s not found", id)
	}
	m.Attempts++
	m.NextAttemptAt = next
	m.LastError = lastErr
	s.state.outbox[id] = m
	return nil
}

func newerFirst(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID < bID
}

func olderFirst(a, b domain.OutboxMessage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

var (
	_ repository.Store  = (*Store)(nil)
	_ repository.Outbox = (*Store)(nil)
)
