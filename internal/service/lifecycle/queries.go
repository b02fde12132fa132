package lifecycle

import (
	"context"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
)

func (c *Coordinator) ListAgentPackages(ctx context.Context, actor domain.Actor) ([]domain.Package, error) {
	if err := requireRole(actor, domain.RoleAgent); err != nil {
		return nil, err
	}
	return c.store.ListPackages(ctx, repository.PackageFilter{AgentID: actor.ID})
}

// ListPackagesByStatus is the admin review queue. An empty status lists all.
func (c *Coordinator) ListPackagesByStatus(ctx context.Context, actor domain.Actor, status domain.PackageStatus) ([]domain.Package, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return c.store.ListPackages(ctx, repository.PackageFilter{Status: status})
}

// GetBooking is visible to the booking customer, the package agent and admins.
func (c *Coordinator) GetBooking(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	b, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Is(domain.RoleAdmin),
		actor.Is(domain.RoleCustomer) && b.CustomerID == actor.ID,
		actor.Is(domain.RoleAgent) && b.AgentID == actor.ID:
		return b, nil
	}
	return nil, domain.Forbidden("booking %s is not visible to the caller", bookingID)
}

// ListCustomerBookings leaves out bookings the customer has hidden.
func (c *Coordinator) ListCustomerBookings(ctx context.Context, actor domain.Actor) ([]domain.Booking, error) {
	if err := requireRole(actor, domain.RoleCustomer); err != nil {
		return nil, err
	}
	return c.store.ListBookings(ctx, repository.BookingFilter{CustomerID: actor.ID, ExcludeHidden: true})
}

func (c *Coordinator) ListAgentBookings(ctx context.Context, actor domain.Actor) ([]domain.Booking, error) {
	if err := requireRole(actor, domain.RoleAgent); err != nil {
		return nil, err
	}
	return c.store.ListBookings(ctx, repository.BookingFilter{AgentID: actor.ID})
}

func (c *Coordinator) ListAllBookings(ctx context.Context, actor domain.Actor) ([]domain.Booking, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return c.store.ListBookings(ctx, repository.BookingFilter{})
}

func (c *Coordinator) GetPayment(ctx context.Context, actor domain.Actor, paymentID string) (*domain.Payment, error) {
	p, err := c.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if actor.Is(domain.RoleAdmin) || (actor.Is(domain.RoleCustomer) && p.CustomerID == actor.ID) {
		return p, nil
	}
	return nil, domain.Forbidden("payment %s is not visible to the caller", paymentID)
}

func (c *Coordinator) ListCustomerPayments(ctx context.Context, actor domain.Actor) ([]domain.Payment, error) {
	if err := requireRole(actor, domain.RoleCustomer); err != nil {
		return nil, err
	}
	return c.store.ListPayments(ctx, repository.PaymentFilter{CustomerID: actor.ID})
}

func (c *Coordinator) ListAllPayments(ctx context.Context, actor domain.Actor, status domain.PaymentStatus) ([]domain.Payment, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return c.store.ListPayments(ctx, repository.PaymentFilter{Status: status})
}

// PaymentStats counts every payment by status for the admin dashboard.
func (c *Coordinator) PaymentStats(ctx context.Context, actor domain.Actor) (domain.PaymentStats, error) {
	var stats domain.PaymentStats
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return stats, err
	}
	payments, err := c.store.ListPayments(ctx, repository.PaymentFilter{})
	if err != nil {
		return stats, err
	}
	for _, p := range payments {
		stats.Add(p)
	}
	return stats, nil
}
