package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PayoutProcessor initiates disbursement for every pending payout.
type PayoutProcessor interface {
	ProcessPendingPayouts(ctx context.Context) (int, error)
}

// DisbursePendingPayouts returns the cron job body. Each run is bounded by
// timeout so a slow disbursement channel cannot pile runs up.
func DisbursePendingPayouts(p PayoutProcessor, timeout time.Duration, logger *zap.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logger.Debug("running job: disburse pending payouts")
		n, err := p.ProcessPendingPayouts(ctx)
		if err != nil {
			logger.Error("payout disbursement run failed", zap.Int("initiated", n), zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("payout disbursement run finished", zap.Int("initiated", n))
		}
	}
}

// NewScheduler registers the settlement jobs. Overlapping runs are skipped.
func NewScheduler(spec string, p PayoutProcessor, timeout time.Duration, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, DisbursePendingPayouts(p, timeout, logger)); err != nil {
		return nil, err
	}
	return c, nil
}
