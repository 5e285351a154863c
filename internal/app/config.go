package app

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/plforecast/internal/analysis"
	"github.com/odyssey-erp/plforecast/internal/fiscal"
	"github.com/odyssey-erp/plforecast/internal/forecast"
	"github.com/odyssey-erp/plforecast/internal/scenario"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	AppRateLimit      int           `envconfig:"APP_RATE_LIMIT" default:"120"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	PGDSN      string `envconfig:"PG_DSN"`
	PGMigrate  bool   `envconfig:"PG_MIGRATE" default:"false"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"10"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	ForecastCacheTTL        time.Duration `envconfig:"FORECAST_CACHE_TTL" default:"30s"`
	ScenarioOptimisticRate  float64       `envconfig:"SCENARIO_OPTIMISTIC_RATE" default:"0.10"`
	ScenarioPessimisticRate float64       `envconfig:"SCENARIO_PESSIMISTIC_RATE" default:"-0.10"`
	CutoverPolicy           string        `envconfig:"CUTOVER_POLICY" default:"last_actual"`
	ExportRateLimit         int           `envconfig:"EXPORT_RATE_LIMIT" default:"10"`

	CashflowCollectionRatio  float64 `envconfig:"CASHFLOW_COLLECTION_RATIO" default:"0.9"`
	CashflowInvestingMonthly float64 `envconfig:"CASHFLOW_INVESTING_MONTHLY" default:"-5000000"`
	CashflowFinancingMonthly float64 `envconfig:"CASHFLOW_FINANCING_MONTHLY" default:"-2000000"`

	WarmupCron    string        `envconfig:"WARMUP_CRON" default:"@every 1h"`
	WarmupTimeout time.Duration `envconfig:"WARMUP_TIMEOUT" default:"30s"`
}

// LoadConfig reads configuration from a .env file when present, then from
// environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if _, err := fiscal.ParsePolicy(cfg.CutoverPolicy); err != nil {
		return nil, err
	}
	if cfg.ExportRateLimit <= 0 {
		return nil, errors.New("export rate limit must be positive")
	}
	if cfg.PGMigrate && cfg.PGDSN == "" {
		return nil, errors.New("PG_MIGRATE requires PG_DSN")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// ForecastConfig translates the environment into projection settings.
func (c *Config) ForecastConfig() forecast.Config {
	out := forecast.DefaultConfig()
	if c == nil {
		return out
	}
	out.Rates = scenario.Rates{Optimistic: c.ScenarioOptimisticRate, Pessimistic: c.ScenarioPessimisticRate}
	if policy, err := fiscal.ParsePolicy(c.CutoverPolicy); err == nil {
		out.Policy = policy
	}
	out.Cashflow = analysis.CashflowOptions{
		CollectionRatio:  c.CashflowCollectionRatio,
		InvestingMonthly: c.CashflowInvestingMonthly,
		FinancingMonthly: c.CashflowFinancingMonthly,
	}
	return out
}
