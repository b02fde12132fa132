package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

const outboxColumns = `id, kind, key, payload, attempts, next_attempt_at, last_error, created_at, done_at`

func scanOutbox(row pgx.Row) (*domain.OutboxMessage, error) {
	var m domain.OutboxMessage
	if err := row.Scan(&m.ID, &m.Kind, &m.Key, &m.Payload, &m.Attempts, &m.NextAttemptAt, &m.LastError, &m.CreatedAt, &m.DoneAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *pgTx) Enqueue(ctx context.Context, msg *domain.OutboxMessage) error {
	err := t.q.QueryRow(ctx, `INSERT INTO outbox (id, kind, key, payload, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`, msg.ID, msg.Kind, msg.Key, msg.Payload, msg.NextAttemptAt).
		Scan(&msg.CreatedAt)
	if err != nil {
		return mapError(err, "enqueue outbox message")
	}
	return nil
}

func (s *PGStore) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.OutboxMessage, error) {
	rows, err := s.db.Query(ctx, `UPDATE outbox SET next_attempt_at = $2
		WHERE id IN (
			SELECT id FROM outbox
			WHERE done_at IS NULL AND next_attempt_at <= $1
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+outboxColumns, now, now.Add(lease), limit)
	if err != nil {
		return nil, mapError(err, "claim outbox messages")
	}
	defer rows.Close()

	var out []domain.OutboxMessage
	for rows.Next() {
		m, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *PGStore) MarkDone(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE outbox SET done_at=$2, attempts=attempts+1, last_error='' WHERE id=$1`, id, at)
	if err != nil {
		return mapError(err, "mark outbox message done")
	}
	return nil
}

func (s *PGStore) MarkRetry(ctx context.Context, id string, next time.Time, lastErr string) error {
	_, err := s.db.Exec(ctx, `UPDATE outbox SET attempts=attempts+1, next_attempt_at=$2, last_error=$3 WHERE id=$1`, id, next, lastErr)
	if err != nil {
		return mapError(err, "reschedule outbox message")
	}
	return nil
}
