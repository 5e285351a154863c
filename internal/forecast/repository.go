package forecast

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/plforecast/internal/fiscal"
	"github.com/odyssey-erp/plforecast/internal/platform/db"
	"github.com/odyssey-erp/plforecast/internal/scenario"
	"github.com/odyssey-erp/plforecast/internal/subaccount"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repo.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateCompany inserts a company.
func (r *Repository) CreateCompany(ctx context.Context, name string) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx,
		`INSERT INTO companies (name) VALUES ($1) RETURNING id, name, created_at`, name,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return Company{}, mapWriteError(err)
	}
	return c, nil
}

// GetCompany fetches by id.
func (r *Repository) GetCompany(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrCompanyNotFound
		}
		return Company{}, err
	}
	return c, nil
}

// ListCompanies returns companies ordered by name.
func (r *Repository) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM companies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Company, error) {
		var c Company
		err := row.Scan(&c.ID, &c.Name, &c.CreatedAt)
		return c, err
	})
}

// CreatePeriod inserts a fiscal period.
func (r *Repository) CreatePeriod(ctx context.Context, in CreatePeriodInput) (fiscal.Period, error) {
	const query = `INSERT INTO fiscal_periods (company_id, period_num, start_date, end_date)
VALUES ($1, $2, $3, $4)
RETURNING id, company_id, period_num, start_date, end_date`
	p, err := scanPeriod(r.pool.QueryRow(ctx, query, in.CompanyID, in.Number, in.StartDate, in.EndDate))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fiscal.Period{}, ErrCompanyNotFound
		}
		return fiscal.Period{}, mapWriteError(err)
	}
	return p, nil
}

// GetPeriod fetches a period by id.
func (r *Repository) GetPeriod(ctx context.Context, id int64) (fiscal.Period, error) {
	const query = `SELECT id, company_id, period_num, start_date, end_date FROM fiscal_periods WHERE id = $1`
	p, err := scanPeriod(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fiscal.Period{}, ErrPeriodNotFound
		}
		return fiscal.Period{}, err
	}
	return p, nil
}

// ListPeriods returns the periods of a company, newest first.
func (r *Repository) ListPeriods(ctx context.Context, companyID int64) ([]fiscal.Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, period_num, start_date, end_date
FROM fiscal_periods WHERE company_id = $1 ORDER BY period_num DESC`, companyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (fiscal.Period, error) {
		return scanPeriod(row)
	})
}

// ActualFacts returns the actual facts of a period.
func (r *Repository) ActualFacts(ctx context.Context, periodID int64) ([]timeseries.Fact, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_name, month, amount FROM actual_data
WHERE fiscal_period_id = $1 ORDER BY item_name, month`, periodID)
	if err != nil {
		return nil, err
	}
	return collectFacts(rows)
}

// PutActuals upserts actual facts in one batch.
func (r *Repository) PutActuals(ctx context.Context, periodID int64, facts []timeseries.Fact) error {
	return r.sendBatch(ctx, r.pool, actualUpserts(periodID, facts))
}

// ReplaceActuals deletes the actual set of a period and inserts the non-zero facts.
func (r *Repository) ReplaceActuals(ctx context.Context, periodID int64, facts []timeseries.Fact) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM actual_data WHERE fiscal_period_id = $1`, periodID); err != nil {
			return fmt.Errorf("forecast: clear actuals: %w", err)
		}
		return r.sendBatch(ctx, tx, actualUpserts(periodID, nonZero(facts)))
	})
}

// ForecastFacts returns the forecast facts of a period and scenario.
func (r *Repository) ForecastFacts(ctx context.Context, periodID int64, sc scenario.Scenario) ([]timeseries.Fact, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_name, month, amount FROM forecast_data
WHERE fiscal_period_id = $1 AND scenario = $2 ORDER BY item_name, month`, periodID, string(sc))
	if err != nil {
		return nil, err
	}
	return collectFacts(rows)
}

// PutForecasts upserts forecast facts in one batch.
func (r *Repository) PutForecasts(ctx context.Context, periodID int64, sc scenario.Scenario, facts []timeseries.Fact) error {
	return r.sendBatch(ctx, r.pool, forecastUpserts(periodID, sc, facts))
}

// ReplaceForecasts swaps the forecast set of a period and scenario.
func (r *Repository) ReplaceForecasts(ctx context.Context, periodID int64, sc scenario.Scenario, facts []timeseries.Fact) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM forecast_data WHERE fiscal_period_id = $1 AND scenario = $2`, periodID, string(sc)); err != nil {
			return fmt.Errorf("forecast: clear forecasts: %w", err)
		}
		return r.sendBatch(ctx, tx, forecastUpserts(periodID, sc, nonZero(facts)))
	})
}

// SubAccountRows returns the sub-account rows of a period and scenario.
func (r *Repository) SubAccountRows(ctx context.Context, periodID int64, sc scenario.Scenario) ([]subaccount.Row, error) {
	rows, err := r.pool.Query(ctx, `SELECT parent_item, sub_account_name, month, amount FROM sub_accounts
WHERE fiscal_period_id = $1 AND scenario = $2
ORDER BY parent_item, sub_account_name, month`, periodID, string(sc))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (subaccount.Row, error) {
		var out subaccount.Row
		err := row.Scan(&out.Parent, &out.Name, &out.Month, &out.Amount)
		return out, err
	})
}

// PutSubAccountRows upserts sub-account rows in one batch.
func (r *Repository) PutSubAccountRows(ctx context.Context, periodID int64, sc scenario.Scenario, rows []subaccount.Row) error {
	const query = `INSERT INTO sub_accounts (fiscal_period_id, scenario, parent_item, sub_account_name, month, amount)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (fiscal_period_id, scenario, parent_item, sub_account_name, month)
DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()`
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query, periodID, string(sc), row.Parent, row.Name, row.Month, row.Amount)
	}
	return r.sendBatch(ctx, r.pool, batch)
}

// DeleteSubAccount removes every month of one sub-account.
func (r *Repository) DeleteSubAccount(ctx context.Context, key SubAccountKey) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sub_accounts
WHERE fiscal_period_id = $1 AND scenario = $2 AND parent_item = $3 AND sub_account_name = $4`,
		key.PeriodID, string(key.Scenario), key.Parent, key.Name)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (r *Repository) sendBatch(ctx context.Context, conn batchSender, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := conn.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("forecast: batch item %d: %w", i, err)
		}
	}
	return results.Close()
}

func actualUpserts(periodID int64, facts []timeseries.Fact) *pgx.Batch {
	const query = `INSERT INTO actual_data (fiscal_period_id, item_name, month, amount)
VALUES ($1, $2, $3, $4)
ON CONFLICT (fiscal_period_id, item_name, month)
DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()`
	batch := &pgx.Batch{}
	for _, f := range facts {
		batch.Queue(query, periodID, f.Item, f.Month, f.Amount)
	}
	return batch
}

func forecastUpserts(periodID int64, sc scenario.Scenario, facts []timeseries.Fact) *pgx.Batch {
	const query = `INSERT INTO forecast_data (fiscal_period_id, scenario, item_name, month, amount)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (fiscal_period_id, scenario, item_name, month)
DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()`
	batch := &pgx.Batch{}
	for _, f := range facts {
		batch.Queue(query, periodID, string(sc), f.Item, f.Month, f.Amount)
	}
	return batch
}

func collectFacts(rows pgx.Rows) ([]timeseries.Fact, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (timeseries.Fact, error) {
		var f timeseries.Fact
		err := row.Scan(&f.Item, &f.Month, &f.Amount)
		return f, err
	})
}

func scanPeriod(row pgx.Row) (fiscal.Period, error) {
	var p fiscal.Period
	err := row.Scan(&p.ID, &p.CompanyID, &p.Number, &p.StartDate, &p.EndDate)
	return p, err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
