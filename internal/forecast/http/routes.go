package forecasthttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/plforecast/internal/platform/httpx"
)

// MountRoutes registers the forecast API under /api/v1.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	exportLimiter := httprate.Limit(h.opts.ExportRateLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", h.handleCatalog)

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", h.handleListCompanies)
			r.Post("/", h.handleCreateCompany)
			r.Get("/{companyID}/periods", h.handleListPeriods)
			r.Post("/{companyID}/periods", h.handleCreatePeriod)
			r.Post("/{companyID}/sub-accounts/delete", h.handleDeleteSubAccountEverywhere)
		})

		r.Route("/periods/{periodID}", func(r chi.Router) {
			r.Get("/", h.handleGetPeriod)
			r.Get("/pl", h.handleStatement)
			r.Get("/summary", h.handleSummary)
			r.Get("/indicators", h.handleIndicators)
			r.Get("/breakeven", h.handleBreakeven)
			r.Get("/cashflow", h.handleCashflow)
			r.Get("/comparison", h.handleForecastVsActual)
			r.Get("/comparison/{otherPeriodID}", h.handlePeriodVsPeriod)

			r.Put("/actuals", h.handlePutActuals)
			r.Post("/actuals/import", h.handleImportActuals)

			r.Get("/forecasts", h.handleGetForecasts)
			r.Put("/forecasts", h.handlePutForecasts)
			r.Post("/forecasts/import", h.handleImportForecasts)

			r.Get("/sub-accounts", h.handleListSubAccounts)
			r.Put("/sub-accounts", h.handlePutSubAccount)
			r.Delete("/sub-accounts", h.handleDeleteSubAccount)
			r.Post("/sub-accounts/copy", h.handleCopySubAccount)

			r.Post("/scenarios/{scenario}/materialize", h.handleMaterialize)

			r.Group(func(gr chi.Router) {
				gr.Use(exportLimiter)
				gr.Get("/pl.csv", h.handleStatementCSV)
				gr.Get("/forecasts/template.xlsx", h.handleTemplate)
			})
		})
	})
}
