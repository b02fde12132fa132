package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// PaymentStats summarises the payment ledger. Collected sums SUCCESS amounts.
type PaymentStats struct {
	Pending   int
	Success   int
	Failed    int
	Refunded  int
	Total     int
	Collected decimal.Decimal
}

// Add counts one payment into the summary.
func (s *PaymentStats) Add(p Payment) {
	s.Total++
	switch p.Status {
	case PaymentStatusPending:
		s.Pending++
	case PaymentStatusSuccess:
		s.Success++
		s.Collected = s.Collected.Add(p.Amount)
	case PaymentStatusFailed:
		s.Failed++
	case PaymentStatusRefunded:
		s.Refunded++
	}
}

func ParsePaymentOutcome(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusSuccess, PaymentStatusFailed:
		return PaymentStatus(s), nil
	default:
		return "", fmt.Errorf("unknown payment outcome: %s", s)
	}
}

var allowedPaymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentStatusPending:  {PaymentStatusSuccess: true, PaymentStatusFailed: true},
	PaymentStatusSuccess:  {PaymentStatusRefunded: true},
	PaymentStatusFailed:   {},
	PaymentStatusRefunded: {},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	m, ok := allowedPaymentTransitions[from]
	if !ok {
		return false
	}
	return m[to]
}

// Active reports whether the payment still counts against its booking:
// at most one active payment exists per booking.
func (s PaymentStatus) Active() bool {
	return s == PaymentStatusPending || s == PaymentStatusSuccess
}

type Payment struct {
	ID            string
	BookingID     string
	CustomerID    string
	Amount        decimal.Decimal
	Method        string
	GatewayRef    string
	Status        PaymentStatus
	FailureReason string
	ExpiresAt     time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
