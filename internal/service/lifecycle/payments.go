package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/gateway"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	reasonDeclined  = "declined by payment gateway"
	reasonExpired   = "payment expired"
	reasonCancelled = "booking cancelled"
)

// InitiatePayment opens a payment for an agent-approved booking and starts
// the charge. The payment stays PENDING until the gateway reports back. When
// the charge cannot be started the payment is failed right away so the
// customer may try again.
func (c *Coordinator) InitiatePayment(ctx context.Context, actor domain.Actor, bookingID, method string) (*domain.Payment, error) {
	if err := requireRole(actor, domain.RoleCustomer); err != nil {
		return nil, err
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, domain.Validation("payment method is required")
	}

	var payment *domain.Payment
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := customerOwns(actor)(b); err != nil {
			return err
		}
		if b.Status != domain.BookingStatusAgentApproved {
			return domain.InvalidTransition("booking is %s, payment is accepted only after agent approval", b.Status)
		}

		active, err := tx.LockActivePayment(ctx, b.ID)
		switch {
		case err == nil && active.Status == domain.PaymentStatusSuccess:
			return domain.InvalidTransition("booking already paid")
		case err == nil:
			return domain.InvalidTransition("payment already in progress")
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		now := c.now()
		payment = &domain.Payment{
			ID:         c.newID(),
			BookingID:  b.ID,
			CustomerID: b.CustomerID,
			Amount:     b.Amount,
			Method:     method,
			Status:     domain.PaymentStatusPending,
			ExpiresAt:  now.Add(c.paymentTTL),
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		return c.notify(ctx, tx, payment.ID, paymentEvent(domain.EventPaymentInitiated, payment, actor.ID))
	})
	if err != nil {
		return nil, err
	}

	log := c.log.WithFields(logrus.Fields{"payment_id": payment.ID, "booking_id": bookingID, "actor_id": actor.ID})

	chargeCtx, cancel := context.WithTimeout(ctx, c.gatewayTimeout)
	defer cancel()
	ref, chargeErr := c.gateway.Charge(chargeCtx, gateway.ChargeRequest{
		PaymentID: payment.ID,
		BookingID: payment.BookingID,
		Amount:    payment.Amount,
		Method:    payment.Method,
	})

	// The request context may already be done; the bookkeeping below must
	// still land.
	bg := context.WithoutCancel(ctx)
	if chargeErr != nil {
		if !errors.Is(chargeErr, domain.ErrGatewayTimeout) && !errors.Is(chargeErr, domain.ErrGatewayError) {
			if errors.Is(chargeErr, context.DeadlineExceeded) {
				chargeErr = domain.Wrap(domain.CodeGatewayTimeout, "payment gateway timed out", chargeErr)
			} else {
				chargeErr = domain.Wrap(domain.CodeGatewayError, "payment gateway request failed", chargeErr)
			}
		}
		log.WithError(chargeErr).Warn("charge failed")
		if _, err := c.failPayment(bg, payment.ID, domain.MessageOf(chargeErr), false); err != nil {
			log.WithError(err).Error("mark payment failed after charge error")
		}
		return nil, chargeErr
	}

	updated, err := c.attachReference(bg, payment.ID, ref)
	if err != nil {
		log.WithError(err).Error("store gateway reference")
		return nil, err
	}
	log.Info("payment initiated")
	return updated, nil
}

// ResolvePayment applies the outcome reported by the payment gateway.
func (c *Coordinator) ResolvePayment(ctx context.Context, paymentID string, outcome domain.PaymentStatus) (*domain.Payment, error) {
	return c.resolvePayment(ctx, "", paymentID, outcome)
}

// AdminResolvePayment lets an administrator settle a payment by hand, for
// example when the gateway callback was lost.
func (c *Coordinator) AdminResolvePayment(ctx context.Context, actor domain.Actor, paymentID string, outcome domain.PaymentStatus) (*domain.Payment, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return c.resolvePayment(ctx, actor.ID, paymentID, outcome)
}

func (c *Coordinator) resolvePayment(ctx context.Context, actorID, paymentID string, outcome domain.PaymentStatus) (*domain.Payment, error) {
	if outcome != domain.PaymentStatusSuccess && outcome != domain.PaymentStatusFailed {
		return nil, domain.Validation("unknown payment outcome %q", outcome)
	}

	var (
		out     *domain.Payment
		changed bool
	)
	err := c.inPaymentTx(ctx, paymentID, func(tx repository.Tx, b *domain.Booking, p *domain.Payment) error {
		if p.Status == outcome {
			out = p
			return nil
		}
		if outcome == domain.PaymentStatusSuccess {
			switch {
			case p.Status == domain.PaymentStatusRefunded:
				// A repeated SUCCESS for money already on its way back.
				out = p
				return nil
			case p.Status == domain.PaymentStatusFailed && p.FailureReason != reasonDeclined:
				// We gave up on the charge but the gateway captured it anyway.
				out, changed = p, true
				return c.queueRefund(ctx, tx, p, actorID)
			}
		}
		if !domain.CanTransitionPayment(p.Status, outcome) {
			return domain.InvalidTransition("payment already %s", p.Status)
		}

		p.Status = outcome
		eventType := domain.EventPaymentSucceeded
		if outcome == domain.PaymentStatusFailed {
			p.FailureReason = reasonDeclined
			eventType = domain.EventPaymentFailed
		}
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		if err := c.notify(ctx, tx, p.ID, paymentEvent(eventType, p, actorID)); err != nil {
			return err
		}
		out, changed = p, true

		// Money arrived for a booking that can no longer be confirmed.
		if outcome == domain.PaymentStatusSuccess && b.Status != domain.BookingStatusAgentApproved {
			return c.refund(ctx, tx, p, actorID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		c.log.WithFields(logrus.Fields{
			"payment_id": out.ID,
			"booking_id": out.BookingID,
			"status":     out.Status,
		}).Info("payment resolved")
	}
	return out, nil
}

// RefundPayment returns a successful payment to the customer and cancels the
// booking it paid for, if that booking is still open or confirmed.
func (c *Coordinator) RefundPayment(ctx context.Context, actor domain.Actor, paymentID string) (*domain.Payment, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		out     *domain.Payment
		changed bool
	)
	err := c.inPaymentTx(ctx, paymentID, func(tx repository.Tx, b *domain.Booking, p *domain.Payment) error {
		out = p
		if p.Status == domain.PaymentStatusRefunded {
			return nil
		}
		if err := c.refund(ctx, tx, p, actor.ID); err != nil {
			return err
		}
		changed = true

		next, ok := domain.NextBookingStatus(b.Status, domain.ActionCancel, domain.RoleAdmin)
		if !ok {
			return nil
		}
		b.Status = next
		b.DecidedBy = actor.ID
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		return c.notify(ctx, tx, b.ID, bookingEvent(domain.EventBookingCancelled, b, actor.ID))
	})
	if err != nil {
		return nil, err
	}

	if changed {
		c.log.WithFields(logrus.Fields{"payment_id": paymentID, "actor_id": actor.ID}).Info("payment refunded")
	}
	return out, nil
}

// ExpireStalePayments fails PENDING payments whose gateway outcome never
// arrived. It returns the payments it failed.
func (c *Coordinator) ExpireStalePayments(ctx context.Context) ([]domain.Payment, error) {
	now := c.now()
	stale, err := c.store.ListPayments(ctx, repository.PaymentFilter{
		Status:        domain.PaymentStatusPending,
		ExpiredBefore: &now,
	})
	if err != nil {
		return nil, err
	}

	expired := make([]domain.Payment, 0, len(stale))
	for _, p := range stale {
		updated, err := c.failPayment(ctx, p.ID, reasonExpired, true)
		if err != nil {
			c.log.WithError(err).WithField("payment_id", p.ID).Warn("expire payment")
			continue
		}
		if updated != nil {
			expired = append(expired, *updated)
		}
	}
	if len(expired) > 0 {
		c.log.WithField("count", len(expired)).Info("expired stale payments")
	}
	return expired, nil
}

// failPayment moves a PENDING payment to FAILED. It returns nil without error
// when the payment was resolved in the meantime. With onlyExpired set, a
// payment whose deadline has not passed is left alone.
func (c *Coordinator) failPayment(ctx context.Context, paymentID, reason string, onlyExpired bool) (*domain.Payment, error) {
	var out *domain.Payment
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != domain.PaymentStatusPending {
			return nil
		}
		if onlyExpired && p.ExpiresAt.After(c.now()) {
			return nil
		}

		p.Status = domain.PaymentStatusFailed
		p.FailureReason = reason
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		out = p
		return c.notify(ctx, tx, p.ID, paymentEvent(domain.EventPaymentFailed, p, ""))
	})
	return out, err
}

func (c *Coordinator) attachReference(ctx context.Context, paymentID, ref string) (*domain.Payment, error) {
	var out *domain.Payment
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		out = p
		if p.GatewayRef != "" {
			return nil
		}
		p.GatewayRef = ref
		return tx.UpdatePayment(ctx, p)
	})
	return out, err
}

// inPaymentTx locks the payment's booking and then the payment. Every
// transaction touching both rows takes them in this order.
func (c *Coordinator) inPaymentTx(ctx context.Context, paymentID string, fn func(tx repository.Tx, b *domain.Booking, p *domain.Payment) error) error {
	snapshot, err := c.store.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	return c.store.InTx(ctx, func(tx repository.Tx) error {
		b, err := tx.LockBooking(ctx, snapshot.BookingID)
		if err != nil {
			return err
		}
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		return fn(tx, b, p)
	})
}
