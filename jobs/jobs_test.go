package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/plforecast/internal/forecast"
	jobmetrics "github.com/odyssey-erp/plforecast/internal/jobs"
	"github.com/odyssey-erp/plforecast/internal/scenario"
	_ "github.com/odyssey-erp/plforecast/testing"
)

type stubMaterializer struct {
	periodID int64
	scenario scenario.Scenario
	rate     *float64
	n        int
	err      error
}

func (s *stubMaterializer) MaterializeScenario(ctx context.Context, periodID int64, sc scenario.Scenario, rate *float64) (int, error) {
	s.periodID, s.scenario, s.rate = periodID, sc, rate
	return s.n, s.err
}

type stubWarmer struct {
	companyID int64
	deadline  bool
	n         int
	err       error
}

func (s *stubWarmer) Warm(ctx context.Context, companyID int64) (int, error) {
	s.companyID = companyID
	_, s.deadline = ctx.Deadline()
	return s.n, s.err
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestNewScenarioMaterializeTaskAssignsRunID(t *testing.T) {
	rate := 0.2
	task, err := NewScenarioMaterializeTask(ScenarioMaterializePayload{PeriodID: 3, Scenario: "optimistic", Rate: &rate})
	require.NoError(t, err)
	require.Equal(t, TaskScenarioMaterialize, task.Type())

	var payload ScenarioMaterializePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.NotEmpty(t, payload.RunID)
	assert.Equal(t, int64(3), payload.PeriodID)
	require.NotNil(t, payload.Rate)
	assert.Equal(t, 0.2, *payload.Rate)
}

func TestScenarioMaterializeJobHandle(t *testing.T) {
	svc := &stubMaterializer{n: 12}
	job := NewScenarioMaterializeJob(svc, nil, testMetrics())

	task, err := NewScenarioMaterializeTask(ScenarioMaterializePayload{PeriodID: 7, Scenario: "pessimistic"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, int64(7), svc.periodID)
	assert.Equal(t, scenario.Pessimistic, svc.scenario)
	assert.Nil(t, svc.rate)
}

func TestScenarioMaterializeJobSkipsRetry(t *testing.T) {
	job := NewScenarioMaterializeJob(&stubMaterializer{}, nil, testMetrics())

	err := job.Handle(context.Background(), asynq.NewTask(TaskScenarioMaterialize, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskScenarioMaterialize, []byte(`{"period_id":1,"scenario":"bullish"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	missing := NewScenarioMaterializeJob(&stubMaterializer{err: forecast.ErrPeriodNotFound}, nil, testMetrics())
	err = missing.Handle(context.Background(), asynq.NewTask(TaskScenarioMaterialize, []byte(`{"period_id":1,"scenario":"optimistic"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, forecast.ErrPeriodNotFound)
}

func TestScenarioMaterializeJobRetriesTransientErrors(t *testing.T) {
	boom := errors.New("connection reset")
	job := NewScenarioMaterializeJob(&stubMaterializer{err: boom}, nil, testMetrics())

	err := job.Handle(context.Background(), asynq.NewTask(TaskScenarioMaterialize, []byte(`{"period_id":1,"scenario":"optimistic"}`)))
	require.ErrorIs(t, err, boom)
	require.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestForecastWarmupJobHandle(t *testing.T) {
	svc := &stubWarmer{n: 6}
	job := NewForecastWarmupJob(svc, nil, testMetrics(), time.Second)

	task, err := NewCacheWarmupTask(CacheWarmupPayload{CompanyID: 4})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, int64(4), svc.companyID)
	assert.True(t, svc.deadline)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskForecastCacheWarmup, nil)))
	assert.Zero(t, svc.companyID)
}

type fakeInspector struct {
	info map[string]*asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	if info, ok := f.info[queue]; ok {
		return info, nil
	}
	return nil, asynq.ErrQueueNotFound
}

func TestHandlerHealth(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(fakeInspector{info: map[string]*asynq.QueueInfo{
		QueueDefault: {Queue: QueueDefault, Pending: 2, Active: 1},
	}}, nil).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Queues []queueHealth `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Queues, 2)
	assert.Equal(t, queueHealth{Queue: QueueDefault, Pending: 2, Active: 1}, body.Queues[0])
	assert.Equal(t, queueHealth{Queue: QueueLow}, body.Queues[1])

	r = chi.NewRouter()
	NewHandler(fakeInspector{err: errors.New("redis down")}, nil).MountRoutes(r)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
