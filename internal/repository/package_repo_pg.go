package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const packageColumns = `id, agent_id, title, destination, duration, description, price::text, tour_start, tour_end, status, decided_by, version, created_at, updated_at`

func scanPackage(row pgx.Row) (*domain.Package, error) {
	var p domain.Package
	var price string
	if err := row.Scan(&p.ID, &p.AgentID, &p.Title, &p.Destination, &p.Duration, &p.Description, &price, &p.TourStart, &p.TourEnd, &p.Status, &p.DecidedBy, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse package price %q: %w", price, err)
	}
	p.Price = amount
	return &p, nil
}

func (s *PGStore) GetPackage(ctx context.Context, id string) (*domain.Package, error) {
	p, err := scanPackage(s.db.QueryRow(ctx, `SELECT `+packageColumns+` FROM packages WHERE id=$1`, id))
	if err != nil {
		return nil, mapError(err, "package "+id)
	}
	return p, nil
}

func (s *PGStore) ListPackages(ctx context.Context, filter PackageFilter) ([]domain.Package, error) {
	rows, err := s.db.Query(ctx, `SELECT `+packageColumns+` FROM packages
		WHERE ($1::text = '' OR agent_id = $1) AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC`, filter.AgentID, string(filter.Status))
	if err != nil {
		return nil, mapError(err, "list packages")
	}
	defer rows.Close()

	packages := make([]domain.Package, 0)
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, *p)
	}
	return packages, rows.Err()
}

func (t *pgTx) LockPackage(ctx context.Context, id string, shared bool) (*domain.Package, error) {
	lock := "FOR UPDATE"
	if shared {
		lock = "FOR SHARE"
	}
	p, err := scanPackage(t.q.QueryRow(ctx, `SELECT `+packageColumns+` FROM packages WHERE id=$1 `+lock, id))
	if err != nil {
		return nil, mapError(err, "package "+id)
	}
	return p, nil
}

func (t *pgTx) InsertPackage(ctx context.Context, p *domain.Package) error {
	err := t.q.QueryRow(ctx, `INSERT INTO packages (id, agent_id, title, destination, duration, description, price, tour_start, tour_end, status, decided_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11)
		RETURNING version, created_at, updated_at`,
		p.ID, p.AgentID, p.Title, p.Destination, p.Duration, p.Description, p.Price.String(), p.TourStart, p.TourEnd, p.Status, p.DecidedBy).
		Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError(err, "insert package")
	}
	return nil
}

func (t *pgTx) UpdatePackage(ctx context.Context, p *domain.Package) error {
	err := t.q.QueryRow(ctx, `UPDATE packages SET title=$2, destination=$3, duration=$4, description=$5, price=$6,
			tour_start=$7, tour_end=$8, status=$9, decided_by=$10, version=version+1, updated_at=now()
		WHERE id=$1 AND version=$11
		RETURNING version, updated_at`,
		p.ID, p.Title, p.Destination, p.Duration, p.Description, p.Price.String(),
		p.TourStart, p.TourEnd, p.Status, p.DecidedBy, p.Version).
		Scan(&p.Version, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return domain.Conflict("package %s was modified concurrently", p.ID)
	}
	if err != nil {
		return mapError(err, "update package")
	}
	return nil
}

func (t *pgTx) DeletePackage(ctx context.Context, id string) error {
	cmd, err := t.q.Exec(ctx, `DELETE FROM packages WHERE id=$1`, id)
	if err != nil {
		return mapError(err, "delete package")
	}
	if cmd.RowsAffected() == 0 {
		return domain.NotFound("package %s not found", id)
	}
	return nil
}

func (t *pgTx) CountLiveBookings(ctx context.Context, packageID string) (int, error) {
	statuses := make([]string, 0, len(domain.LiveBookingStatuses))
	for _, s := range domain.LiveBookingStatuses {
		statuses = append(statuses, string(s))
	}
	var n int
	if err := t.q.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE package_id=$1 AND status = ANY($2)`, packageID, statuses).Scan(&n); err != nil {
		return 0, mapError(err, "count bookings")
	}
	return n, nil
}
