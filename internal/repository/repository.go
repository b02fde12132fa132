package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
)

// Store is the storage contract of the lifecycle coordinator. Status fields
// are only writable through a Tx handed out by InTx; fn runs as one atomic
// unit and nothing it wrote survives if it returns an error.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Reader interface {
	GetPackage(ctx context.Context, id string) (*domain.Package, error)
	ListPackages(ctx context.Context, filter PackageFilter) ([]domain.Package, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]domain.Payment, error)
}

// Tx is a storage transaction. Lock* methods return the current row and hold
// it until the transaction ends. Update* methods compare-and-swap on Version
// and return a Conflict error when the row changed underneath; on success the
// passed entity carries the new Version.
type Tx interface {
	LockPackage(ctx context.Context, id string, shared bool) (*domain.Package, error)
	InsertPackage(ctx context.Context, p *domain.Package) error
	UpdatePackage(ctx context.Context, p *domain.Package) error
	DeletePackage(ctx context.Context, id string) error
	CountLiveBookings(ctx context.Context, packageID string) (int, error)

	LockBooking(ctx context.Context, id string) (*domain.Booking, error)
	InsertBooking(ctx context.Context, b *domain.Booking) error
	UpdateBooking(ctx context.Context, b *domain.Booking) error

	LockPayment(ctx context.Context, id string) (*domain.Payment, error)
	// LockActivePayment returns the PENDING or SUCCESS payment of a booking,
	// or a NotFound error when there is none.
	LockActivePayment(ctx context.Context, bookingID string) (*domain.Payment, error)
	InsertPayment(ctx context.Context, p *domain.Payment) error
	UpdatePayment(ctx context.Context, p *domain.Payment) error

	Enqueue(ctx context.Context, msg *domain.OutboxMessage) error
}

// Outbox is the reconciler's view of queued side effects.
type Outbox interface {
	// ClaimDue returns up to limit undelivered messages due at now and pushes
	// their next attempt to now+lease so concurrent workers skip them.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.OutboxMessage, error)
	MarkDone(ctx context.Context, id string, at time.Time) error
	MarkRetry(ctx context.Context, id string, next time.Time, lastErr string) error
}

type PackageFilter struct {
	AgentID string
	Status  domain.PackageStatus
}

type BookingFilter struct {
	CustomerID    string
	AgentID       string
	PackageID     string
	ExcludeHidden bool
}

type PaymentFilter struct {
	CustomerID    string
	BookingID     string
	Status        domain.PaymentStatus
	ExpiredBefore *time.Time
}
