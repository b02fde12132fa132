package bootstrap

import (
	"context"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/sirupsen/logrus"
)

type PaymentExpirer interface {
	ExpireStalePayments(ctx context.Context) ([]domain.Payment, error)
}

// RunExpirySweeper fails stale pending payments every interval until ctx is
// cancelled.
func RunExpirySweeper(ctx context.Context, expirer PaymentExpirer, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := expirer.ExpireStalePayments(ctx)
			if err != nil {
				log.WithError(err).Error("expire stale payments")
				continue
			}
			if len(expired) > 0 {
				log.WithField("count", len(expired)).Info("expired stale payments")
			}
		}
	}
}
