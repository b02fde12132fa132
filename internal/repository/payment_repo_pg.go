package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const paymentColumns = `id, booking_id, customer_id, amount::text, method, gateway_ref, status, failure_reason, expires_at, version, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var amount string
	if err := row.Scan(&p.ID, &p.BookingID, &p.CustomerID, &amount, &p.Method, &p.GatewayRef, &p.Status, &p.FailureReason, &p.ExpiresAt, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	v, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse payment amount %q: %w", amount, err)
	}
	p.Amount = v
	return &p, nil
}

func (s *PGStore) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	p, err := scanPayment(s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
	if err != nil {
		return nil, mapError(err, "payment "+id)
	}
	return p, nil
}

func (s *PGStore) ListPayments(ctx context.Context, filter PaymentFilter) ([]domain.Payment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE ($1::text = '' OR customer_id = $1)
		  AND ($2::text = '' OR booking_id = $2)
		  AND ($3::text = '' OR status = $3)
		  AND ($4::timestamptz IS NULL OR expires_at <= $4)
		ORDER BY created_at DESC`, filter.CustomerID, filter.BookingID, string(filter.Status), filter.ExpiredBefore)
	if err != nil {
		return nil, mapError(err, "list payments")
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (t *pgTx) LockPayment(ctx context.Context, id string) (*domain.Payment, error) {
	p, err := scanPayment(t.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapError(err, "payment "+id)
	}
	return p, nil
}

func (t *pgTx) LockActivePayment(ctx context.Context, bookingID string) (*domain.Payment, error) {
	p, err := scanPayment(t.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE booking_id=$1 AND status IN ('PENDING', 'SUCCESS')
		ORDER BY created_at DESC LIMIT 1 FOR UPDATE`, bookingID))
	if err != nil {
		return nil, mapError(err, "active payment for booking "+bookingID)
	}
	return p, nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p *domain.Payment) error {
	err := t.q.QueryRow(ctx, `INSERT INTO payments (id, booking_id, customer_id, amount, method, gateway_ref, status, failure_reason, expires_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
		RETURNING version, created_at, updated_at`,
		p.ID, p.BookingID, p.CustomerID, p.Amount.String(), p.Method, p.GatewayRef, p.Status, p.FailureReason, p.ExpiresAt).
		Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError(err, "insert payment")
	}
	return nil
}

func (t *pgTx) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	err := t.q.QueryRow(ctx, `UPDATE payments SET status=$2, gateway_ref=$3, failure_reason=$4, version=version+1, updated_at=now()
		WHERE id=$1 AND version=$5
		RETURNING version, updated_at`, p.ID, p.Status, p.GatewayRef, p.FailureReason, p.Version).
		Scan(&p.Version, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return domain.Conflict("payment %s was modified concurrently", p.ID)
	}
	if err != nil {
		return mapError(err, "update payment")
	}
	return nil
}
