package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/sirupsen/logrus"
)

type CreateBookingInput struct {
	PackageID     string    `json:"package_id"`
	TouristsCount int       `json:"tourists_count"`
	TourStartDate time.Time `json:"tour_start_date"`
}

func (c *Coordinator) CreateBooking(ctx context.Context, actor domain.Actor, input CreateBookingInput) (*domain.Booking, error) {
	if err := requireRole(actor, domain.RoleCustomer); err != nil {
		return nil, err
	}
	if input.PackageID == "" {
		return nil, domain.Validation("package_id is required")
	}
	if input.TouristsCount < 1 {
		return nil, domain.Validation("tourists_count must be at least 1")
	}
	if input.TourStartDate.IsZero() {
		return nil, domain.Validation("tour_start_date is required")
	}
	now := c.now()
	if domain.Day(input.TourStartDate).Before(domain.Day(now)) {
		return nil, domain.Validation("tour_start_date is in the past")
	}

	var booking *domain.Booking
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		// A shared lock keeps the package from being rejected or deleted
		// until the booking row is in.
		pkg, err := tx.LockPackage(ctx, input.PackageID, true)
		if err != nil {
			return err
		}
		if !pkg.Bookable() {
			return domain.InvalidTransition("package is %s, not open for booking", pkg.Status)
		}
		if !pkg.InWindow(input.TourStartDate) {
			return domain.Validation("tour_start_date is outside the package tour dates")
		}

		booking = &domain.Booking{
			ID:            c.newID(),
			PackageID:     pkg.ID,
			CustomerID:    actor.ID,
			AgentID:       pkg.AgentID,
			TouristsCount: input.TouristsCount,
			TourStartDate: domain.Day(input.TourStartDate),
			BookingDate:   now,
			Amount:        pkg.Price,
			Status:        domain.BookingStatusPending,
		}
		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}
		return c.notify(ctx, tx, booking.ID, bookingEvent(domain.EventBookingCreated, booking, actor.ID))
	})
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"package_id": booking.PackageID,
		"actor_id":   actor.ID,
	}).Info("booking created")
	return booking, nil
}

func (c *Coordinator) AgentDecision(ctx context.Context, actor domain.Actor, bookingID string, decision domain.Action) (*domain.Booking, error) {
	if err := requireRole(actor, domain.RoleAgent); err != nil {
		return nil, err
	}
	if decision != domain.ActionApprove && decision != domain.ActionReject {
		return nil, domain.Validation("unknown agent decision %q", decision)
	}

	eventType := domain.EventBookingAgentApproved
	if decision == domain.ActionReject {
		eventType = domain.EventBookingAgentRejected
	}
	owner := func(b *domain.Booking) error {
		if b.AgentID != actor.ID {
			return domain.Forbidden("booking %s is for another agent's package", b.ID)
		}
		return nil
	}
	return c.transitionBooking(ctx, actor, bookingID, decision, owner, nil, eventType)
}

func (c *Coordinator) AdminDecision(ctx context.Context, actor domain.Actor, bookingID string, decision domain.Action) (*domain.Booking, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}

	switch decision {
	case domain.ActionConfirm:
		return c.transitionBooking(ctx, actor, bookingID, decision, nil, c.requirePaid, domain.EventBookingConfirmed)
	case domain.ActionCancel:
		settle := func(ctx context.Context, tx repository.Tx, b *domain.Booking) error {
			return c.settlePayment(ctx, tx, b, actor.ID)
		}
		return c.transitionBooking(ctx, actor, bookingID, decision, nil, settle, domain.EventBookingCancelled)
	default:
		return nil, domain.Validation("unknown admin decision %q", decision)
	}
}

func (c *Coordinator) CustomerCancel(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	if err := requireRole(actor, domain.RoleCustomer); err != nil {
		return nil, err
	}
	return c.transitionBooking(ctx, actor, bookingID, domain.ActionCustomerCancel, customerOwns(actor), nil, domain.EventBookingCustomerCancel)
}

// HideBooking removes a finished booking from the customer's own list. It
// does not change the booking status.
func (c *Coordinator) HideBooking(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	if err := requireRole(actor, domain.RoleCustomer); err != nil {
		return nil, err
	}

	var out *domain.Booking
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := customerOwns(actor)(b); err != nil {
			return err
		}
		if b.HiddenFromCustomer {
			out = b
			return nil
		}
		if !b.Status.Terminal() {
			return domain.InvalidTransition("booking is %s, only finished bookings can be hidden", b.Status)
		}
		b.HiddenFromCustomer = true
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// requirePaid is the CONFIRM guard. The payment row is read under lock in the
// confirming transaction, never taken from an earlier read.
func (c *Coordinator) requirePaid(ctx context.Context, tx repository.Tx, b *domain.Booking) error {
	p, err := tx.LockActivePayment(ctx, b.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.InvalidTransition("payment not completed")
	}
	if err != nil {
		return err
	}
	if p.Status != domain.PaymentStatusSuccess {
		return domain.InvalidTransition("payment not completed")
	}
	return nil
}

// settlePayment handles the payment of a booking being cancelled by an admin:
// money already taken is refunded, a charge still in flight is voided.
func (c *Coordinator) settlePayment(ctx context.Context, tx repository.Tx, b *domain.Booking, actorID string) error {
	p, err := tx.LockActivePayment(ctx, b.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	switch p.Status {
	case domain.PaymentStatusSuccess:
		return c.refund(ctx, tx, p, actorID)
	case domain.PaymentStatusPending:
		p.Status = domain.PaymentStatusFailed
		p.FailureReason = reasonCancelled
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		return c.notify(ctx, tx, p.ID, paymentEvent(domain.EventPaymentFailed, p, actorID))
	}
	return nil
}

type bookingEffect func(ctx context.Context, tx repository.Tx, b *domain.Booking) error

// transitionBooking moves a booking along one edge of the booking state
// machine. authorize runs before any state check so a caller without rights
// learns nothing about the booking's state. effect runs after the edge is
// validated and before the booking row is written; it may reject the move.
//
// A call that finds the booking already in the target status of the same
// action lost a race or is a retry, whoever sent it. It returns the booking
// as it is and writes nothing.
func (c *Coordinator) transitionBooking(
	ctx context.Context,
	actor domain.Actor,
	bookingID string,
	action domain.Action,
	authorize func(b *domain.Booking) error,
	effect bookingEffect,
	eventType string,
) (*domain.Booking, error) {
	var (
		out     *domain.Booking
		changed bool
	)
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(b); err != nil {
				return err
			}
		}

		if target, ok := domain.BookingTarget(action, actor.Role); ok && b.Status == target {
			out = b
			return nil
		}

		next, ok := domain.NextBookingStatus(b.Status, action, actor.Role)
		if !ok {
			return domain.InvalidTransition("booking is %s, cannot %s", b.Status, action)
		}
		if effect != nil {
			if err := effect(ctx, tx, b); err != nil {
				return err
			}
		}

		b.Status = next
		b.DecidedBy = actor.ID
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		out, changed = b, true
		return c.notify(ctx, tx, b.ID, bookingEvent(eventType, b, actor.ID))
	})
	if err != nil {
		return nil, err
	}

	if changed {
		c.log.WithFields(logrus.Fields{
			"booking_id": out.ID,
			"actor_id":   actor.ID,
			"status":     out.Status,
		}).Info("booking status changed")
	}
	return out, nil
}

func customerOwns(actor domain.Actor) func(b *domain.Booking) error {
	return func(b *domain.Booking) error {
		if b.CustomerID != actor.ID {
			return domain.Forbidden("booking %s belongs to another customer", b.ID)
		}
		return nil
	}
}
