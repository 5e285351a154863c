package export

import (
	"encoding/csv"
	"io"

	"github.com/odyssey-erp/plforecast/internal/pl"
)

// WriteStatementCSV emits one row per account: item, type, each month, then
// the actual, forecast and total columns. Amounts are whole yen.
func WriteStatementCSV(w io.Writer, st pl.Statement) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := append([]string{"Item", "Type"}, st.Months...)
	header = append(header, "Actual", "Forecast", "Total")
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range st.Rows {
		record := make([]string, 0, len(header))
		record = append(record, row.Item, string(row.Type))
		for i := range st.Months {
			record = append(record, formatAmount(st.Value(row.Account, i)))
		}
		record = append(record,
			formatAmount(row.ActualSubtotal),
			formatAmount(row.ForecastSubtotal),
			formatAmount(row.Total),
		)
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
