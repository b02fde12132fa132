// Package reconciler delivers the side effects queued in the outbox:
// notifications go to Kafka, refund commands go to the payment gateway.
// Failed deliveries are retried with backoff until they succeed.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/gateway"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type Refunder interface {
	Refund(ctx context.Context, req gateway.RefundRequest) error
}

type Reconciler struct {
	outbox    repository.Outbox
	publisher Publisher
	refunder  Refunder
	topic     string
	batchSize int
	lease     time.Duration
	backoff   Backoff
	now       func() time.Time
	log       logrus.FieldLogger
}

type Option func(*Reconciler)

func WithBatchSize(n int) Option {
	return func(r *Reconciler) {
		r.batchSize = n
	}
}

// WithLease sets how long a claimed message is hidden from other workers.
func WithLease(d time.Duration) Option {
	return func(r *Reconciler) {
		r.lease = d
	}
}

func WithBackoff(b Backoff) Option {
	return func(r *Reconciler) {
		r.backoff = b
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

func NewReconciler(outbox repository.Outbox, publisher Publisher, refunder Refunder, topic string, log logrus.FieldLogger, opts ...Option) *Reconciler {
	r := &Reconciler{
		outbox:    outbox,
		publisher: publisher,
		refunder:  refunder,
		topic:     topic,
		batchSize: 50,
		lease:     time.Minute,
		backoff:   NewBackoff(2*time.Second, 5*time.Minute),
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce claims one batch of due messages and dispatches them. It returns
// how many were delivered.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	msgs, err := r.outbox.ClaimDue(ctx, r.now(), r.batchSize, r.lease)
	if err != nil {
		return 0, fmt.Errorf("claim outbox: %w", err)
	}

	delivered := 0
	for _, msg := range msgs {
		log := r.log.WithFields(logrus.Fields{"outbox_id": msg.ID, "kind": msg.Kind, "key": msg.Key})

		if err := r.dispatch(ctx, msg); err != nil {
			next := r.now().Add(r.backoff.Delay(msg.Attempts + 1))
			log.WithError(err).WithField("attempt", msg.Attempts+1).Warn("outbox delivery failed")
			if err := r.outbox.MarkRetry(ctx, msg.ID, next, err.Error()); err != nil {
				log.WithError(err).Error("schedule outbox retry")
			}
			continue
		}

		if err := r.outbox.MarkDone(ctx, msg.ID, r.now()); err != nil {
			log.WithError(err).Error("mark outbox message done")
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.WithError(err).Error("outbox reconciliation")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) dispatch(ctx context.Context, msg domain.OutboxMessage) error {
	switch msg.Kind {
	case domain.OutboxKindNotify:
		return r.publisher.Publish(ctx, r.topic, msg.Key, msg.Payload)
	case domain.OutboxKindRefund:
		var cmd domain.RefundCommand
		if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
			return fmt.Errorf("decode refund command: %w", err)
		}
		return r.refunder.Refund(ctx, gateway.RefundRequest{
			PaymentID: cmd.PaymentID,
			Reference: cmd.GatewayRef,
			Amount:    cmd.Amount,
		})
	default:
		return fmt.Errorf("unknown outbox kind %q", msg.Kind)
	}
}
