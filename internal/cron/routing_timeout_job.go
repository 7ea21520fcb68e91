package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/metrics"
)

const routingTimeoutBatchSize = 50

// routingSweeper is the slice of the routing service this job needs.
type routingSweeper interface {
	SweepExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// RoutingTimeoutJobParams configure the routing deadline sweep.
type RoutingTimeoutJobParams struct {
	Logger    *logger.Logger
	Routing   routingSweeper
	Metrics   *metrics.CronJobMetrics
	BatchSize int
}

// NewRoutingTimeoutJob builds the job that times out unanswered routing
// rounds and fails their orders.
func NewRoutingTimeoutJob(params RoutingTimeoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Routing == nil {
		return nil, fmt.Errorf("routing service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = routingTimeoutBatchSize
	}
	return &routingTimeoutJob{
		logg:    params.Logger,
		routing: params.Routing,
		metrics: params.Metrics,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type routingTimeoutJob struct {
	logg    *logger.Logger
	routing routingSweeper
	metrics *metrics.CronJobMetrics
	batch   int
	now     func() time.Time
}

func (j *routingTimeoutJob) Name() string { return "routing-timeout" }

func (j *routingTimeoutJob) Run(ctx context.Context) error {
	resolved, err := j.routing.SweepExpired(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return fmt.Errorf("sweep expired routings: %w", err)
	}
	j.metrics.AddExpired(j.Name(), int64(resolved))
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": resolved})
	j.logg.Info(logCtx, "routing timeout sweep complete")
	return nil
}
