// Package notify is the notification sink. Delivery channels are out of
// scope; events are recorded in the log, one entry per recipient.
package notify

import (
	"context"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/sirupsen/logrus"
)

type Sink struct {
	log logrus.FieldLogger
}

func NewSink(log logrus.FieldLogger) *Sink {
	return &Sink{log: log}
}

func (s *Sink) Deliver(ctx context.Context, ev domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, recipient := range ev.Recipients {
		s.log.WithFields(logrus.Fields{
			"recipient":  recipient,
			"event":      ev.Type,
			"booking_id": ev.BookingID,
			"package_id": ev.PackageID,
			"payment_id": ev.PaymentID,
			"status":     ev.Status,
		}).Info("notification delivered")
	}
	return nil
}
