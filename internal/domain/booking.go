package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending             BookingStatus = "PENDING"
	BookingStatusAgentApproved       BookingStatus = "AGENT_APPROVED"
	BookingStatusAgentRejected       BookingStatus = "AGENT_REJECTED"
	BookingStatusConfirmed           BookingStatus = "CONFIRMED"
	BookingStatusCancelled           BookingStatus = "CANCELLED"
	BookingStatusCancelledByCustomer BookingStatus = "CANCELLED_BY_CUSTOMER"
)

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case BookingStatusPending, BookingStatusAgentApproved, BookingStatusAgentRejected,
		BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCancelledByCustomer:
		return BookingStatus(s), nil
	default:
		return "", fmt.Errorf("unknown booking status: %s", s)
	}
}

// Terminal reports whether no edge leaves the status.
func (s BookingStatus) Terminal() bool {
	return len(bookingEdgesFrom(s)) == 0
}

// Live reports whether a booking in this status still holds its package:
// it is open, or confirmed and therefore still cancellable with a refund.
func (s BookingStatus) Live() bool {
	return s == BookingStatusPending || s == BookingStatusAgentApproved || s == BookingStatusConfirmed
}

// LiveBookingStatuses lists the statuses for which Live is true.
var LiveBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAgentApproved,
	BookingStatusConfirmed,
}

// Booking is a customer reservation. Amount is the package price captured at
// creation and never changes afterwards. AgentID is the package owner at the
// time of booking.
type Booking struct {
	ID                 string
	PackageID          string
	CustomerID         string
	AgentID            string
	TouristsCount      int
	TourStartDate      time.Time
	BookingDate        time.Time
	Amount             decimal.Decimal
	Status             BookingStatus
	DecidedBy          string
	HiddenFromCustomer bool
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
