package analysis

import (
	"math"

	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/pl"
)

// ComparisonRow compares the totals of one account across two statements.
type ComparisonRow struct {
	Item            string     `json:"item_name"`
	Type            pl.RowType `json:"type"`
	Actual          float64    `json:"actual"`
	Forecast        float64    `json:"forecast"`
	Diff            float64    `json:"diff"`
	AchievementRate float64    `json:"achievement_rate"`
	Flagged         bool       `json:"flagged"`
}

// Compare lines up the totals of actual against forecast in catalog order.
// When threshold is set, rows whose achievement deviates from 100% by at
// least threshold points are flagged.
func Compare(actual, forecast pl.Statement, threshold *float64) []ComparisonRow {
	rows := make([]ComparisonRow, 0, catalog.Count)
	for _, a := range catalog.All() {
		act := actual.Row(a).Total
		fc := forecast.Row(a).Total
		row := ComparisonRow{
			Item:            a.Name(),
			Type:            pl.TypeOf(a),
			Actual:          act,
			Forecast:        fc,
			Diff:            act - fc,
			AchievementRate: percent(act, fc),
		}
		row.Flagged = exceedsThreshold(row, threshold)
		rows = append(rows, row)
	}
	return rows
}

func exceedsThreshold(row ComparisonRow, threshold *float64) bool {
	if threshold == nil || row.Forecast == 0 {
		return false
	}
	return math.Abs(100-row.AchievementRate) >= *threshold
}
