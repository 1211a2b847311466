// Package export renders fetch results into tabular formats. It consumes
// the result model read-only and owns no state of its own.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hydrodata-kr/waterlink/pkg/batch"
	"github.com/hydrodata-kr/waterlink/pkg/series"
)

// columns derives a stable, sorted header from the measurement names seen
// across all rows, since different facilities report different items.
func columns(rows []batch.MergedRow) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for name := range row.Values {
			seen[name] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for name := range seen {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

func cell(m series.Measurement) string {
	if m.Value.IsNull() {
		return ""
	}
	return strconv.FormatFloat(m.Value.Float(), 'f', -1, 64)
}

// WriteCSV writes a merged batch as CSV: key, time, then one column per
// measurement item. Null readings become empty cells.
func WriteCSV(w io.Writer, result *batch.Result) error {
	rows := batch.Merge(result)
	cols := columns(rows)

	cw := csv.NewWriter(w)
	header := append([]string{"key", "time"}, cols...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, 0, len(header))
		record = append(record, row.Key, row.Time.Format(time.RFC3339))
		for _, col := range cols {
			record = append(record, cell(row.Values[col]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a merged batch as a two-sheet workbook: "data" with the
// merged rows and "status" with one line per key describing its outcome.
func WriteXLSX(w io.Writer, result *batch.Result) error {
	rows := batch.Merge(result)
	cols := columns(rows)

	f := excelize.NewFile()
	dataSheet, statusSheet := "data", "status"
	f.SetSheetName("Sheet1", dataSheet)
	if _, err := f.NewSheet(statusSheet); err != nil {
		return err
	}

	_ = f.SetCellValue(dataSheet, "A1", "key")
	_ = f.SetCellValue(dataSheet, "B1", "time")
	for i, col := range cols {
		axis, _ := excelize.CoordinatesToCellName(i+3, 1)
		_ = f.SetCellValue(dataSheet, axis, col)
	}
	for i, row := range rows {
		line := i + 2
		_ = f.SetCellValue(dataSheet, fmt.Sprintf("A%d", line), row.Key)
		_ = f.SetCellValue(dataSheet, fmt.Sprintf("B%d", line), row.Time.Format(time.RFC3339))
		for j, col := range cols {
			if m, ok := row.Values[col]; ok && !m.Value.IsNull() {
				axis, _ := excelize.CoordinatesToCellName(j+3, line)
				_ = f.SetCellValue(dataSheet, axis, m.Value.Float())
			}
		}
	}

	_ = f.SetCellValue(statusSheet, "A1", "key")
	_ = f.SetCellValue(statusSheet, "B1", "success")
	_ = f.SetCellValue(statusSheet, "C1", "message")
	line := 2
	result.Each(func(key string, res series.SingleResult) {
		_ = f.SetCellValue(statusSheet, fmt.Sprintf("A%d", line), key)
		_ = f.SetCellValue(statusSheet, fmt.Sprintf("B%d", line), res.Success)
		_ = f.SetCellValue(statusSheet, fmt.Sprintf("C%d", line), res.Message)
		line++
	})

	return f.Write(w)
}

// WriteSeriesCSV writes a single result's series as CSV without the key
// column. Failed results produce only the header.
func WriteSeriesCSV(w io.Writer, res series.SingleResult) error {
	single := seriesRows(res)
	cols := columns(single)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"time"}, cols...)); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range single {
		record := make([]string, 0, len(cols)+1)
		record = append(record, row.Time.Format(time.RFC3339))
		for _, col := range cols {
			record = append(record, cell(row.Values[col]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func seriesRows(res series.SingleResult) []batch.MergedRow {
	if !res.Success {
		return nil
	}
	rows := make([]batch.MergedRow, 0, res.Series.Len())
	for i := 0; i < res.Series.Len(); i++ {
		p := res.Series.At(i)
		rows = append(rows, batch.MergedRow{
			Site:   res.Series.Site(),
			Time:   p.Time,
			Values: p.Values,
		})
	}
	return rows
}
