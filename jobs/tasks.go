package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault carries user-triggered jobs.
	QueueDefault = "default"
	// QueueLow carries scheduled maintenance jobs.
	QueueLow = "low"

	// TaskScenarioMaterialize persists an adjusted scenario forecast.
	TaskScenarioMaterialize = "forecast:scenario_materialize"
	// TaskForecastCacheWarmup precomputes statements to fill the input cache.
	TaskForecastCacheWarmup = "forecast:cache_warmup"
)

// ScenarioMaterializePayload identifies one materialization run. A nil Rate
// uses the configured scenario rate.
type ScenarioMaterializePayload struct {
	PeriodID int64    `json:"period_id"`
	Scenario string   `json:"scenario"`
	Rate     *float64 `json:"rate,omitempty"`
	RunID    string   `json:"run_id"`
}

// CacheWarmupPayload narrows warmup to one company. Zero warms every company.
type CacheWarmupPayload struct {
	CompanyID int64 `json:"company_id,omitempty"`
}

// NewScenarioMaterializeTask constructs the task, assigning a run id when the
// payload has none. The run id doubles as the asynq task id.
func NewScenarioMaterializeTask(payload ScenarioMaterializePayload) (*asynq.Task, error) {
	if payload.RunID == "" {
		payload.RunID = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScenarioMaterialize, data,
		asynq.TaskID(payload.RunID),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	), nil
}

// NewCacheWarmupTask constructs a warmup task.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskForecastCacheWarmup, data,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(1),
		asynq.Unique(10*time.Minute),
	), nil
}
