// Package forecasthttp exposes the P&L forecast over a JSON API.
package forecasthttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/plforecast/internal/analysis"
	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/fiscal"
	"github.com/odyssey-erp/plforecast/internal/forecast"
	"github.com/odyssey-erp/plforecast/internal/forecast/export"
	"github.com/odyssey-erp/plforecast/internal/pl"
	"github.com/odyssey-erp/plforecast/internal/platform/httpx"
	"github.com/odyssey-erp/plforecast/internal/scenario"
	"github.com/odyssey-erp/plforecast/internal/subaccount"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
	"github.com/odyssey-erp/plforecast/jobs"
)

const (
	requestTimeout = 2 * time.Second
	maxUploadBytes = 5 << 20
	xlsxType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Service is the forecast contract used by the handler.
type Service interface {
	CreateCompany(ctx context.Context, name string) (forecast.Company, error)
	ListCompanies(ctx context.Context) ([]forecast.Company, error)
	CreatePeriod(ctx context.Context, in forecast.CreatePeriodInput) (forecast.PeriodView, error)
	ListPeriods(ctx context.Context, companyID int64) ([]forecast.PeriodView, error)
	Period(ctx context.Context, periodID int64) (forecast.PeriodView, error)

	Statement(ctx context.Context, req forecast.Request) (pl.Statement, error)
	Summary(ctx context.Context, req forecast.Request) (analysis.Summary, error)
	Indicators(ctx context.Context, req forecast.Request) ([]analysis.Indicator, error)
	Breakeven(ctx context.Context, req forecast.Request) (analysis.Breakeven, error)
	Cashflow(ctx context.Context, req forecast.Request) ([]analysis.CashflowPoint, error)
	ForecastVsActual(ctx context.Context, req forecast.Request, threshold *float64) ([]analysis.ComparisonRow, error)
	PeriodVsPeriod(ctx context.Context, req forecast.Request, otherPeriodID int64, threshold *float64) ([]analysis.ComparisonRow, error)

	PutActuals(ctx context.Context, in forecast.ValuesInput) error
	ImportActuals(ctx context.Context, periodID int64, facts []timeseries.Fact) (int, error)
	PutForecasts(ctx context.Context, in forecast.ValuesInput) error
	ImportForecasts(ctx context.Context, periodID int64, sc scenario.Scenario, facts []timeseries.Fact) (int, error)
	ForecastTable(ctx context.Context, periodID int64, sc scenario.Scenario) (*timeseries.Table, error)

	SubAccounts(ctx context.Context, periodID int64, sc scenario.Scenario, parent string) ([]subaccount.Entry, error)
	PutSubAccount(ctx context.Context, in forecast.SubAccountInput) error
	DeleteSubAccount(ctx context.Context, key forecast.SubAccountKey) error
	CopySubAccountToAllPeriods(ctx context.Context, key forecast.SubAccountKey) (int, error)
	DeleteSubAccountFromAllPeriods(ctx context.Context, companyID int64, sc scenario.Scenario, parent, name string) (int, error)

	MaterializeScenario(ctx context.Context, periodID int64, sc scenario.Scenario, rate *float64) (int, error)
}

// Enqueuer schedules background materialization. Without one the handler
// materializes inline.
type Enqueuer interface {
	EnqueueScenarioMaterialize(ctx context.Context, payload jobs.ScenarioMaterializePayload) (string, error)
}

// Options tunes the handler.
type Options struct {
	ExportRateLimit int
}

// Handler serves the forecast API.
type Handler struct {
	logger    *slog.Logger
	service   Service
	jobs      Enqueuer
	validator *validator.Validate
	opts      Options
	bufPool   sync.Pool
}

// NewHandler constructs the forecast HTTP handler. enqueuer may be nil.
func NewHandler(logger *slog.Logger, service Service, enqueuer Enqueuer, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ExportRateLimit <= 0 {
		opts.ExportRateLimit = 10
	}
	h := &Handler{
		logger:    logger.With(slog.String("component", "forecast_http")),
		service:   service,
		jobs:      enqueuer,
		validator: validator.New(),
		opts:      opts,
	}
	h.bufPool.New = func() any { return new(bytes.Buffer) }
	return h
}

type createCompanyRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type createPeriodRequest struct {
	PeriodNum int    `json:"period_num" validate:"required,min=1"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type valuesRequest struct {
	Scenario string             `json:"scenario" validate:"omitempty,oneof=realistic optimistic pessimistic"`
	Item     string             `json:"item_name" validate:"required"`
	Values   map[string]float64 `json:"values" validate:"required,min=1"`
}

type importRequest struct {
	Facts []timeseries.Fact `json:"facts" validate:"required,min=1"`
}

type subAccountKeyRequest struct {
	Scenario string `json:"scenario" validate:"omitempty,oneof=realistic optimistic pessimistic"`
	Parent   string `json:"parent_item" validate:"required"`
	Name     string `json:"sub_account_name" validate:"required,max=100"`
}

type subAccountRequest struct {
	subAccountKeyRequest
	Values map[string]float64 `json:"values" validate:"required,min=1"`
}

type statementResponse struct {
	Scenario scenario.Scenario `json:"scenario"`
	pl.Statement
}

type tableResponse struct {
	Scenario scenario.Scenario    `json:"scenario"`
	Months   []string             `json:"months"`
	Rows     []timeseries.RowView `json:"rows"`
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": catalog.Describe()})
}

func (h *Handler) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	company, err := h.service.CreateCompany(ctx, req.Name)
	if err != nil {
		h.respondError(w, "create company", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, company)
}

func (h *Handler) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	companies, err := h.service.ListCompanies(ctx)
	if err != nil {
		h.respondError(w, "list companies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"companies": companies})
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.pathID(w, r, "companyID")
	if !ok {
		return
	}
	var req createPeriodRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := fiscal.ParseDate(req.StartDate)
	if err != nil {
		h.respondError(w, "create period", fmt.Errorf("%w: %w", forecast.ErrValidation, err))
		return
	}
	end, err := fiscal.ParseDate(req.EndDate)
	if err != nil {
		h.respondError(w, "create period", fmt.Errorf("%w: %w", forecast.ErrValidation, err))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	period, err := h.service.CreatePeriod(ctx, forecast.CreatePeriodInput{
		CompanyID: companyID,
		Number:    req.PeriodNum,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.respondError(w, "create period", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.pathID(w, r, "companyID")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	periods, err := h.service.ListPeriods(ctx, companyID)
	if err != nil {
		h.respondError(w, "list periods", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": periods})
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	period, err := h.service.Period(ctx, periodID)
	if err != nil {
		h.respondError(w, "get period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	st, err := h.service.Statement(ctx, req)
	if err != nil {
		h.respondError(w, "compute statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, statementResponse{Scenario: req.Scenario, Statement: st})
}

func (h *Handler) handleStatementCSV(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	st, err := h.service.Statement(ctx, req)
	if err != nil {
		h.respondError(w, "compute statement", err)
		return
	}

	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()
	if err := export.WriteStatementCSV(buf, st); err != nil {
		h.respondError(w, "write statement csv", err)
		return
	}

	filename := fmt.Sprintf("pl-%d-%s.csv", req.PeriodID, req.Scenario)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	summary, err := h.service.Summary(ctx, req)
	if err != nil {
		h.respondError(w, "summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"scenario": req.Scenario,
		"summary":  summary,
		"display": map[string]string{
			"sales":            export.FormatYen(summary.Sales),
			"gross_profit":     export.FormatYen(summary.GrossProfit),
			"operating_income": export.FormatYen(summary.OperatingIncome),
			"ordinary_income":  export.FormatYen(summary.OrdinaryIncome),
			"net_income":       export.FormatYen(summary.NetIncome),
		},
	})
}

func (h *Handler) handleIndicators(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	indicators, err := h.service.Indicators(ctx, req)
	if err != nil {
		h.respondError(w, "indicators", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"scenario": req.Scenario, "indicators": indicators})
}

func (h *Handler) handleBreakeven(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	result, err := h.service.Breakeven(ctx, req)
	if err != nil {
		h.respondError(w, "breakeven", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"scenario": req.Scenario, "breakeven": result})
}

func (h *Handler) handleCashflow(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	points, err := h.service.Cashflow(ctx, req)
	if err != nil {
		h.respondError(w, "cashflow", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"scenario": req.Scenario, "cashflow": points})
}

func (h *Handler) handleForecastVsActual(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	threshold, ok := h.queryFloat(w, r, "threshold")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	rows, err := h.service.ForecastVsActual(ctx, req, threshold)
	if err != nil {
		h.respondError(w, "forecast vs actual", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"scenario": req.Scenario, "rows": rows})
}

func (h *Handler) handlePeriodVsPeriod(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	otherID, ok := h.pathID(w, r, "otherPeriodID")
	if !ok {
		return
	}
	threshold, ok := h.queryFloat(w, r, "threshold")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	rows, err := h.service.PeriodVsPeriod(ctx, req, otherID, threshold)
	if err != nil {
		h.respondError(w, "period vs period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"scenario": req.Scenario, "rows": rows})
}

func (h *Handler) handlePutActuals(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	var req valuesRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := h.service.PutActuals(ctx, forecast.ValuesInput{PeriodID: periodID, Item: req.Item, Values: req.Values}); err != nil {
		h.respondError(w, "put actuals", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleImportActuals(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	var req importRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	n, err := h.service.ImportActuals(ctx, periodID, req.Facts)
	if err != nil {
		h.respondError(w, "import actuals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"facts": n})
}

func (h *Handler) handleGetForecasts(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	sc, ok := h.queryScenario(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	table, err := h.service.ForecastTable(ctx, periodID, sc)
	if err != nil {
		h.respondError(w, "forecast table", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tableResponse{Scenario: sc, Months: table.Months(), Rows: table.Rows()})
}

func (h *Handler) handlePutForecasts(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	var req valuesRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	in := forecast.ValuesInput{PeriodID: periodID, Scenario: scenarioOrDefault(req.Scenario), Item: req.Item, Values: req.Values}
	if err := h.service.PutForecasts(ctx, in); err != nil {
		h.respondError(w, "put forecasts", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	sc, ok := h.queryScenario(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	table, err := h.service.ForecastTable(ctx, periodID, sc)
	if err != nil {
		h.respondError(w, "forecast template", err)
		return
	}

	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()
	if err := export.WriteForecastTemplate(buf, table); err != nil {
		h.respondError(w, "write template", err)
		return
	}

	filename := fmt.Sprintf("forecast-%d-%s.xlsx", periodID, sc)
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("stream xlsx", slog.Any("error", err))
	}
}

func (h *Handler) handleImportForecasts(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	sc, ok := h.queryScenario(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		h.respondError(w, "read template", fmt.Errorf("%w: %w", forecast.ErrValidation, err))
		return
	}
	facts, err := export.ReadForecastTemplate(bytes.NewReader(body))
	if err != nil {
		h.respondError(w, "parse template", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	n, err := h.service.ImportForecasts(ctx, periodID, sc, facts)
	if err != nil {
		h.respondError(w, "import forecasts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"facts": n})
}

func (h *Handler) handleListSubAccounts(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	sc, ok := h.queryScenario(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	entries, err := h.service.SubAccounts(ctx, periodID, sc, r.URL.Query().Get("parent_item"))
	if err != nil {
		h.respondError(w, "list sub-accounts", err)
		return
	}
	if entries == nil {
		entries = []subaccount.Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"scenario": sc, "sub_accounts": entries})
}

func (h *Handler) handlePutSubAccount(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	var req subAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	in := forecast.SubAccountInput{SubAccountKey: req.key(periodID), Values: req.Values}
	if err := h.service.PutSubAccount(ctx, in); err != nil {
		h.respondError(w, "put sub-account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteSubAccount(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	var req subAccountKeyRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := h.service.DeleteSubAccount(ctx, req.key(periodID)); err != nil {
		h.respondError(w, "delete sub-account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCopySubAccount(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	var req subAccountKeyRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	n, err := h.service.CopySubAccountToAllPeriods(ctx, req.key(periodID))
	if err != nil {
		h.respondError(w, "copy sub-account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"periods": n})
}

func (h *Handler) handleDeleteSubAccountEverywhere(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.pathID(w, r, "companyID")
	if !ok {
		return
	}
	var req subAccountKeyRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	n, err := h.service.DeleteSubAccountFromAllPeriods(ctx, companyID, scenarioOrDefault(req.Scenario), req.Parent, req.Name)
	if err != nil {
		h.respondError(w, "delete sub-account everywhere", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"periods": n})
}

func (h *Handler) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return
	}
	sc, err := scenario.Parse(chi.URLParam(r, "scenario"))
	if err != nil {
		h.respondError(w, "materialize", err)
		return
	}
	rate, ok := h.queryFloat(w, r, "rate")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if h.jobs != nil {
		runID, err := h.jobs.EnqueueScenarioMaterialize(ctx, jobs.ScenarioMaterializePayload{PeriodID: periodID, Scenario: string(sc), Rate: rate})
		if err != nil {
			h.respondError(w, "enqueue materialize", err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
		return
	}
	n, err := h.service.MaterializeScenario(ctx, periodID, sc, rate)
	if err != nil {
		h.respondError(w, "materialize", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"facts": n})
}

func (r subAccountKeyRequest) key(periodID int64) forecast.SubAccountKey {
	return forecast.SubAccountKey{
		PeriodID: periodID,
		Scenario: scenarioOrDefault(r.Scenario),
		Parent:   r.Parent,
		Name:     strings.TrimSpace(r.Name),
	}
}

func scenarioOrDefault(value string) scenario.Scenario {
	if value == "" {
		return scenario.Realistic
	}
	return scenario.Scenario(value)
}

// parseRequest builds the projection scope from the path and query.
func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request) (forecast.Request, bool) {
	periodID, ok := h.pathID(w, r, "periodID")
	if !ok {
		return forecast.Request{}, false
	}
	sc, ok := h.queryScenario(w, r)
	if !ok {
		return forecast.Request{}, false
	}
	rate, ok := h.queryFloat(w, r, "rate")
	if !ok {
		return forecast.Request{}, false
	}
	cutover := strings.TrimSpace(r.URL.Query().Get("cutover"))
	if cutover != "" && !fiscal.ValidMonth(cutover) {
		h.respondError(w, "parse cutover", fmt.Errorf("%w: cutover must be YYYY-MM", forecast.ErrValidation))
		return forecast.Request{}, false
	}
	return forecast.Request{PeriodID: periodID, Scenario: sc, Rate: rate, CutoverMonth: cutover}, true
}

func (h *Handler) queryScenario(w http.ResponseWriter, r *http.Request) (scenario.Scenario, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("scenario"))
	if raw == "" {
		return scenario.Realistic, true
	}
	sc, err := scenario.Parse(raw)
	if err != nil {
		h.respondError(w, "parse scenario", err)
		return "", false
	}
	return sc, true
}

func (h *Handler) queryFloat(w http.ResponseWriter, r *http.Request, name string) (*float64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		h.respondError(w, "parse "+name, fmt.Errorf("%w: %s must be a number", forecast.ErrValidation, name))
		return nil, false
	}
	return &v, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, "parse "+name, fmt.Errorf("%w: invalid %s", forecast.ErrValidation, name))
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(w, r, dest); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			err = errors.New(strings.Join(msgs, "; "))
		}
		httpx.RespondError(w, httpx.Classify(httpx.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	classified := classify(err)
	if !isClassified(classified) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, classified)
}

func classify(err error) error {
	switch {
	case errors.Is(err, forecast.ErrPeriodNotFound),
		errors.Is(err, forecast.ErrCompanyNotFound),
		errors.Is(err, forecast.ErrSubAccountNotFound):
		return httpx.Classify(httpx.ErrNotFound, err)
	case errors.Is(err, forecast.ErrDuplicate):
		return httpx.Classify(httpx.ErrDuplicate, err)
	case errors.Is(err, catalog.ErrUnknownAccount),
		errors.Is(err, scenario.ErrUnknownScenario),
		errors.Is(err, subaccount.ErrNotAllowed),
		errors.Is(err, forecast.ErrComputedAccount),
		errors.Is(err, export.ErrTemplate):
		return httpx.Classify(httpx.ErrUnprocessable, err)
	case errors.Is(err, forecast.ErrValidation):
		return httpx.Classify(httpx.ErrValidation, err)
	default:
		return err
	}
}

func isClassified(err error) bool {
	return errors.Is(err, httpx.ErrNotFound) ||
		errors.Is(err, httpx.ErrDuplicate) ||
		errors.Is(err, httpx.ErrValidation) ||
		errors.Is(err, httpx.ErrUnprocessable)
}
