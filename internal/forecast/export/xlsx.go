package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/plforecast/internal/catalog"
	"github.com/odyssey-erp/plforecast/internal/timeseries"
)

// TemplateSheet is the worksheet holding the forecast grid.
const TemplateSheet = "Forecast"

// ErrTemplate indicates a workbook that does not follow the template layout.
var ErrTemplate = errors.New("export: malformed forecast template")

// WriteForecastTemplate writes an XLSX workbook with one row per enterable
// account and one column per month of table, prefilled with its values.
func WriteForecastTemplate(w io.Writer, table *timeseries.Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return err
	}
	months := table.Months()
	header := make([]any, 0, len(months)+1)
	header = append(header, "Item")
	for _, m := range months {
		header = append(header, m)
	}
	if err := f.SetSheetRow(TemplateSheet, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, a := range catalog.All() {
		if a.IsComputed() {
			continue
		}
		values := make([]any, 0, len(months)+1)
		values = append(values, a.Name())
		for i := range months {
			values = append(values, table.At(a, i))
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(TemplateSheet, cell, &values); err != nil {
			return err
		}
		row++
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(TemplateSheet, 1, 1, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(TemplateSheet, "A", "A", 32); err != nil {
		return err
	}
	if err := f.SetPanes(TemplateSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return err
	}
	return f.Write(w)
}

// ReadForecastTemplate parses a workbook produced by WriteForecastTemplate.
// Blank cells are skipped; items and months are returned as written and
// validated by the caller.
func ReadForecastTemplate(r io.Reader) ([]timeseries.Fact, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(TemplateSheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 || rows[0][0] != "Item" {
		return nil, fmt.Errorf("%w: missing header row", ErrTemplate)
	}
	months := rows[0][1:]

	var facts []timeseries.Fact
	for i, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		item := strings.TrimSpace(row[0])
		for j, raw := range row[1:] {
			raw = strings.TrimSpace(raw)
			if raw == "" || j >= len(months) {
				continue
			}
			d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %s: %v", ErrTemplate, i+2, months[j], err)
			}
			facts = append(facts, timeseries.Fact{Item: item, Month: months[j], Amount: d.InexactFloat64()})
		}
	}
	return facts, nil
}
