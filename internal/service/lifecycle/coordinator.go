// Package lifecycle applies every status change of packages, bookings and
// payments. Each operation checks the caller, re-reads the current state and
// writes the new state inside one storage transaction; side effects that
// reach outside the service are queued in the outbox of that transaction.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/gateway"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type UseCase interface {
	SubmitPackage(ctx context.Context, actor domain.Actor, input SubmitPackageInput) (*domain.Package, error)
	DecidePackage(ctx context.Context, actor domain.Actor, packageID string, decision domain.Action) (*domain.Package, error)
	UpdatePackage(ctx context.Context, actor domain.Actor, packageID string, input SubmitPackageInput) (*domain.Package, error)
	RequestPackageDelete(ctx context.Context, actor domain.Actor, packageID string) (*domain.Package, error)
	FinalizePackageDelete(ctx context.Context, actor domain.Actor, packageID string) (*domain.Package, error)
	ListAgentPackages(ctx context.Context, actor domain.Actor) ([]domain.Package, error)
	ListPackagesByStatus(ctx context.Context, actor domain.Actor, status domain.PackageStatus) ([]domain.Package, error)

	CreateBooking(ctx context.Context, actor domain.Actor, input CreateBookingInput) (*domain.Booking, error)
	AgentDecision(ctx context.Context, actor domain.Actor, bookingID string, decision domain.Action) (*domain.Booking, error)
	AdminDecision(ctx context.Context, actor domain.Actor, bookingID string, decision domain.Action) (*domain.Booking, error)
	CustomerCancel(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error)
	HideBooking(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error)
	GetBooking(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error)
	ListCustomerBookings(ctx context.Context, actor domain.Actor) ([]domain.Booking, error)
	ListAgentBookings(ctx context.Context, actor domain.Actor) ([]domain.Booking, error)
	ListAllBookings(ctx context.Context, actor domain.Actor) ([]domain.Booking, error)

	InitiatePayment(ctx context.Context, actor domain.Actor, bookingID, method string) (*domain.Payment, error)
	ResolvePayment(ctx context.Context, paymentID string, outcome domain.PaymentStatus) (*domain.Payment, error)
	AdminResolvePayment(ctx context.Context, actor domain.Actor, paymentID string, outcome domain.PaymentStatus) (*domain.Payment, error)
	RefundPayment(ctx context.Context, actor domain.Actor, paymentID string) (*domain.Payment, error)
	ExpireStalePayments(ctx context.Context) ([]domain.Payment, error)
	GetPayment(ctx context.Context, actor domain.Actor, paymentID string) (*domain.Payment, error)
	ListCustomerPayments(ctx context.Context, actor domain.Actor) ([]domain.Payment, error)
	ListAllPayments(ctx context.Context, actor domain.Actor, status domain.PaymentStatus) ([]domain.Payment, error)
	PaymentStats(ctx context.Context, actor domain.Actor) (domain.PaymentStats, error)
}

// Gateway starts a charge. The outcome is reported later through ResolvePayment.
type Gateway interface {
	Charge(ctx context.Context, req gateway.ChargeRequest) (string, error)
}

// PackageCache is the public catalogue cache, dropped whenever the set of
// bookable packages may have changed.
type PackageCache interface {
	InvalidateApprovedPackages(ctx context.Context) error
}

type Coordinator struct {
	store          repository.Store
	gateway        Gateway
	cache          PackageCache
	log            logrus.FieldLogger
	now            func() time.Time
	newID          func() string
	gatewayTimeout time.Duration
	paymentTTL     time.Duration
}

type Option func(*Coordinator)

func WithPackageCache(cache PackageCache) Option {
	return func(c *Coordinator) {
		c.cache = cache
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) {
		c.newID = newID
	}
}

// WithGatewayTimeout bounds every Charge call.
func WithGatewayTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.gatewayTimeout = d
	}
}

// WithPaymentTTL sets how long a payment may stay PENDING before the expiry
// sweep fails it.
func WithPaymentTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		c.paymentTTL = d
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

func NewCoordinator(store repository.Store, gw Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		gateway:        gw,
		log:            logrus.StandardLogger(),
		now:            time.Now,
		newID:          uuid.NewString,
		gatewayTimeout: 10 * time.Second,
		paymentTTL:     30 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// notify queues ev for the notification sink.
func (c *Coordinator) notify(ctx context.Context, tx repository.Tx, key string, ev domain.Event) error {
	ev.OccurredAt = c.now()
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	return tx.Enqueue(ctx, &domain.OutboxMessage{
		ID:            c.newID(),
		Kind:          domain.OutboxKindNotify,
		Key:           key,
		Payload:       payload,
		NextAttemptAt: ev.OccurredAt,
	})
}

// refund marks a settled payment REFUNDED and queues the gateway refund.
func (c *Coordinator) refund(ctx context.Context, tx repository.Tx, p *domain.Payment, actorID string) error {
	if !domain.CanTransitionPayment(p.Status, domain.PaymentStatusRefunded) {
		return domain.InvalidTransition("payment is %s, only successful payments can be refunded", p.Status)
	}
	return c.queueRefund(ctx, tx, p, actorID)
}

// queueRefund marks p REFUNDED and enqueues the gateway refund command. The
// caller has already decided that the gateway holds money for p.
func (c *Coordinator) queueRefund(ctx context.Context, tx repository.Tx, p *domain.Payment, actorID string) error {
	p.Status = domain.PaymentStatusRefunded
	if err := tx.UpdatePayment(ctx, p); err != nil {
		return err
	}

	payload, err := json.Marshal(domain.RefundCommand{
		PaymentID:  p.ID,
		BookingID:  p.BookingID,
		GatewayRef: p.GatewayRef,
		Amount:     p.Amount,
	})
	if err != nil {
		return fmt.Errorf("marshal refund command: %w", err)
	}
	if err := tx.Enqueue(ctx, &domain.OutboxMessage{
		ID:            c.newID(),
		Kind:          domain.OutboxKindRefund,
		Key:           p.ID,
		Payload:       payload,
		NextAttemptAt: c.now(),
	}); err != nil {
		return err
	}

	return c.notify(ctx, tx, p.ID, paymentEvent(domain.EventPaymentRefunded, p, actorID))
}

func (c *Coordinator) invalidateCatalog(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateApprovedPackages(ctx); err != nil {
		c.log.WithError(err).Warn("invalidate package catalogue cache")
	}
}

func packageEvent(eventType string, p *domain.Package, actorID string) domain.Event {
	recipients := []string{p.AgentID}
	// admins review submissions, edits and delete requests
	switch eventType {
	case domain.EventPackageSubmitted, domain.EventPackageUpdated, domain.EventPackageDeleteRequested:
		recipients = append(recipients, domain.RecipientAdmins)
	}
	return domain.Event{
		Type:       eventType,
		PackageID:  p.ID,
		Status:     string(p.Status),
		ActorID:    actorID,
		Recipients: recipients,
	}
}

func bookingEvent(eventType string, b *domain.Booking, actorID string) domain.Event {
	recipients := []string{b.CustomerID, b.AgentID}
	if b.Status == domain.BookingStatusAgentApproved || b.Status == domain.BookingStatusConfirmed || b.Status == domain.BookingStatusCancelled {
		recipients = append(recipients, domain.RecipientAdmins)
	}
	return domain.Event{
		Type:       eventType,
		PackageID:  b.PackageID,
		BookingID:  b.ID,
		Status:     string(b.Status),
		ActorID:    actorID,
		Recipients: recipients,
	}
}

func paymentEvent(eventType string, p *domain.Payment, actorID string) domain.Event {
	recipients := []string{p.CustomerID}
	if p.Status == domain.PaymentStatusSuccess {
		recipients = append(recipients, domain.RecipientAdmins)
	}
	return domain.Event{
		Type:       eventType,
		BookingID:  p.BookingID,
		PaymentID:  p.ID,
		Status:     string(p.Status),
		ActorID:    actorID,
		Recipients: recipients,
	}
}

func requireRole(actor domain.Actor, role domain.Role) error {
	if !actor.Is(role) {
		return domain.Forbidden("%s role required", role)
	}
	return nil
}

func positive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}

var _ UseCase = (*Coordinator)(nil)
