package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const bookingColumns = `id, package_id, customer_id, agent_id, tourists_count, tour_start_date, booking_date, amount::text, status, decided_by, hidden_from_customer, version, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var amount string
	if err := row.Scan(&b.ID, &b.PackageID, &b.CustomerID, &b.AgentID, &b.TouristsCount, &b.TourStartDate, &b.BookingDate, &amount, &b.Status, &b.DecidedBy, &b.HiddenFromCustomer, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	v, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse booking amount %q: %w", amount, err)
	}
	b.Amount = v
	return &b, nil
}

func (s *PGStore) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if err != nil {
		return nil, mapError(err, "booking "+id)
	}
	return b, nil
}

func (s *PGStore) ListBookings(ctx context.Context, filter BookingFilter) ([]domain.Booking, error) {
	rows, err := s.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE ($1::text = '' OR customer_id = $1)
		  AND ($2::text = '' OR agent_id = $2)
		  AND ($3::text = '' OR package_id = $3)
		  AND (NOT $4::bool OR NOT hidden_from_customer)
		ORDER BY created_at DESC`, filter.CustomerID, filter.AgentID, filter.PackageID, filter.ExcludeHidden)
	if err != nil {
		return nil, mapError(err, "list bookings")
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (t *pgTx) LockBooking(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(t.q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapError(err, "booking "+id)
	}
	return b, nil
}

func (t *pgTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	err := t.q.QueryRow(ctx, `INSERT INTO bookings (id, package_id, customer_id, agent_id, tourists_count, tour_start_date, booking_date, amount, status, decided_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10)
		RETURNING version, created_at, updated_at`,
		b.ID, b.PackageID, b.CustomerID, b.AgentID, b.TouristsCount, b.TourStartDate, b.BookingDate, b.Amount.String(), b.Status, b.DecidedBy).
		Scan(&b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return mapError(err, "insert booking")
	}
	return nil
}

// UpdateBooking writes the mutable columns only; amount and ownership are
// fixed at insert.
func (t *pgTx) UpdateBooking(ctx context.Context, b *domain.Booking) error {
	err := t.q.QueryRow(ctx, `UPDATE bookings SET status=$2, decided_by=$3, hidden_from_customer=$4, version=version+1, updated_at=now()
		WHERE id=$1 AND version=$5
		RETURNING version, updated_at`, b.ID, b.Status, b.DecidedBy, b.HiddenFromCustomer, b.Version).
		Scan(&b.Version, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return domain.Conflict("booking %s was modified concurrently", b.ID)
	}
	if err != nil {
		return mapError(err, "update booking")
	}
	return nil
}
