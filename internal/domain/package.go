package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PackageStatus string

const (
	PackageStatusPending       PackageStatus = "PENDING"
	PackageStatusApproved      PackageStatus = "APPROVED"
	PackageStatusRejected      PackageStatus = "REJECTED"
	PackageStatusPendingDelete PackageStatus = "PENDING_DELETE"
)

func ParsePackageStatus(s string) (PackageStatus, error) {
	switch PackageStatus(s) {
	case PackageStatusPending, PackageStatusApproved, PackageStatusRejected, PackageStatusPendingDelete:
		return PackageStatus(s), nil
	default:
		return "", fmt.Errorf("unknown package status: %s", s)
	}
}

// Package is a tour product owned by an agent. TourStart and TourEnd, when
// both set, bound the dates a customer may book.
type Package struct {
	ID          string
	AgentID     string
	Title       string
	Destination string
	Duration    string
	Description string
	Price       decimal.Decimal
	TourStart   *time.Time
	TourEnd     *time.Time
	Status      PackageStatus
	DecidedBy   string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Bookable reports whether new bookings may reference the package.
func (p Package) Bookable() bool {
	return p.Status == PackageStatusApproved
}

// InWindow reports whether day falls inside the package booking window.
// Packages without a window accept any day.
func (p Package) InWindow(day time.Time) bool {
	if p.TourStart == nil || p.TourEnd == nil {
		return true
	}
	d := Day(day)
	return !d.Before(Day(*p.TourStart)) && !d.After(Day(*p.TourEnd))
}

// Day drops the time of day, keeping the calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
