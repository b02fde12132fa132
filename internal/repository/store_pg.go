package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewStore returns a Postgres-backed Store. A positive lockTimeout bounds how
// long a transaction waits on a row lock before failing with Conflict.
func NewStore(db *pgxpool.Pool, lockTimeout time.Duration) *PGStore {
	return &PGStore{db: db, lockTimeout: lockTimeout}
}

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return mapError(err, "set lock timeout")
		}
	}

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit transaction")
	}
	return nil
}

type pgTx struct {
	q querier
}

// mapError turns driver errors into lifecycle errors. Lock timeouts,
// deadlocks, serialization failures and unique violations all mean another
// transaction won a race, which callers see as Conflict.
func mapError(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "23505":
			return domain.Wrap(domain.CodeConflict, what+": concurrent update", err)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

var (
	_ Store  = (*PGStore)(nil)
	_ Outbox = (*PGStore)(nil)
	_ Tx     = (*pgTx)(nil)
)
