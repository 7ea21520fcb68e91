package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/metrics"
)

const orderExpiryBatchSize = 100

// orderExpirer is the slice of the order service this job needs.
type orderExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

// OrderExpiryJobParams configure the stale order sweep.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    orderExpirer
	Metrics   *metrics.CronJobMetrics
	BatchSize int
}

// NewOrderExpiryJob builds the job that force-fails orders past their TTL
// that never reached wholesaler acceptance.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = orderExpiryBatchSize
	}
	return &orderExpiryJob{
		logg:    params.Logger,
		orders:  params.Orders,
		metrics: params.Metrics,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg    *logger.Logger
	orders  orderExpirer
	metrics *metrics.CronJobMetrics
	batch   int
	now     func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	expired, err := j.orders.ExpireStale(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return fmt.Errorf("expire stale orders: %w", err)
	}
	j.metrics.AddExpired(j.Name(), int64(expired))
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return nil
}
