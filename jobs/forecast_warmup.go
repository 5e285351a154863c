package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/plforecast/internal/jobs"
)

// CacheWarmer computes statements to fill the input cache.
type CacheWarmer interface {
	Warm(ctx context.Context, companyID int64) (int, error)
}

// ForecastWarmupJob pre-populates the forecast cache for every period.
type ForecastWarmupJob struct {
	Service CacheWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
	clock   func() time.Time
}

// NewForecastWarmupJob wires dependencies for the warmup handler.
func NewForecastWarmupJob(svc CacheWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics, timeout time.Duration) *ForecastWarmupJob {
	return &ForecastWarmupJob{
		Service: svc,
		Logger:  logger,
		Metrics: metrics,
		Timeout: timeout,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes warmup tasks.
func (j *ForecastWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("forecast warmup: handler not configured")
	}
	var payload CacheWarmupPayload
	if len(t.Payload()) > 0 {
		if err := decodePayload(t, &payload); err != nil {
			return err
		}
	}

	tracker := j.metrics().Track(TaskForecastCacheWarmup)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.Int64("company_id", payload.CompanyID))
	logger.InfoContext(ctx, "starting forecast warmup")

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := j.now()
	n, err := j.Service.Warm(ctx, payload.CompanyID)
	if err != nil {
		logger.ErrorContext(ctx, "warm forecast cache", slog.Any("error", err))
		return err
	}
	j.metrics().AddWarmed(n)
	logger.InfoContext(ctx, "completed forecast warmup", slog.Int("statements", n), slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *ForecastWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskForecastCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskForecastCacheWarmup))
}

func (j *ForecastWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ForecastWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
