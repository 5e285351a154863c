package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/plforecast/internal/forecast"
	jobmetrics "github.com/odyssey-erp/plforecast/internal/jobs"
	"github.com/odyssey-erp/plforecast/internal/scenario"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ScenarioMaterializer persists an adjusted scenario forecast.
type ScenarioMaterializer interface {
	MaterializeScenario(ctx context.Context, periodID int64, sc scenario.Scenario, rate *float64) (int, error)
}

// ScenarioMaterializeJob handles TaskScenarioMaterialize.
type ScenarioMaterializeJob struct {
	Service ScenarioMaterializer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewScenarioMaterializeJob wires dependencies for the handler.
func NewScenarioMaterializeJob(svc ScenarioMaterializer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ScenarioMaterializeJob {
	return &ScenarioMaterializeJob{Service: svc, Logger: logger, Metrics: metrics}
}

// Handle materializes one scenario. Malformed payloads and missing periods are
// not retried.
func (j *ScenarioMaterializeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("scenario materialize: handler not configured")
	}
	var payload ScenarioMaterializePayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	sc, err := scenario.Parse(payload.Scenario)
	if err != nil || payload.PeriodID <= 0 {
		return fmt.Errorf("%w: invalid payload period=%d scenario=%q", asynq.SkipRetry, payload.PeriodID, payload.Scenario)
	}

	tracker := j.metrics().Track(TaskScenarioMaterialize)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.String("run_id", payload.RunID), slog.Int64("period_id", payload.PeriodID), slog.String("scenario", string(sc)))
	logger.InfoContext(ctx, "starting scenario materialization")

	n, err := j.Service.MaterializeScenario(ctx, payload.PeriodID, sc, payload.Rate)
	if err != nil {
		logger.ErrorContext(ctx, "materialize scenario", slog.Any("error", err))
		if errors.Is(err, forecast.ErrPeriodNotFound) || errors.Is(err, forecast.ErrValidation) {
			return errors.Join(asynq.SkipRetry, err)
		}
		return err
	}
	j.metrics().AddMaterialized(string(sc), n)
	logger.InfoContext(ctx, "completed scenario materialization", slog.Int("facts", n))
	return nil
}

func (j *ScenarioMaterializeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskScenarioMaterialize))
	}
	return slog.Default().With(slog.String("job", TaskScenarioMaterialize))
}

func (j *ScenarioMaterializeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
