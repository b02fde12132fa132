package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventPackageSubmitted       = "package_submitted"
	EventPackageUpdated         = "package_updated"
	EventPackageApproved        = "package_approved"
	EventPackageRejected        = "package_rejected"
	EventPackageDeleteRequested = "package_delete_requested"
	EventPackageDeleted         = "package_deleted"
	EventBookingCreated         = "booking_created"
	EventBookingAgentApproved   = "booking_agent_approved"
	EventBookingAgentRejected   = "booking_agent_rejected"
	EventBookingConfirmed       = "booking_confirmed"
	EventBookingCancelled       = "booking_cancelled"
	EventBookingCustomerCancel  = "booking_cancelled_by_customer"
	EventPaymentInitiated       = "payment_initiated"
	EventPaymentSucceeded       = "payment_succeeded"
	EventPaymentFailed          = "payment_failed"
	EventPaymentRefunded        = "payment_refunded"
)

// RecipientAdmins addresses an event to every administrator.
const RecipientAdmins = "role:ADMIN"

// Event is a lifecycle notification addressed to Recipients.
type Event struct {
	Type       string    `json:"type"`
	PackageID  string    `json:"package_id,omitempty"`
	BookingID  string    `json:"booking_id,omitempty"`
	PaymentID  string    `json:"payment_id,omitempty"`
	Status     string    `json:"status"`
	ActorID    string    `json:"actor_id,omitempty"`
	Recipients []string  `json:"recipients"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RefundCommand asks the payment gateway to return money for a payment that
// has already been marked REFUNDED. PaymentID is the idempotency key.
type RefundCommand struct {
	PaymentID  string          `json:"payment_id"`
	BookingID  string          `json:"booking_id"`
	GatewayRef string          `json:"gateway_ref"`
	Amount     decimal.Decimal `json:"amount"`
}

type OutboxKind string

const (
	OutboxKindNotify OutboxKind = "notify"
	OutboxKindRefund OutboxKind = "refund"
)

// OutboxMessage is a side effect recorded in the same transaction as the
// status change that caused it, dispatched later by the reconciler.
type OutboxMessage struct {
	ID            string
	Kind          OutboxKind
	Key           string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DoneAt        *time.Time
}
