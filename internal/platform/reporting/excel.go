package reporting

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

// ExportXLSX renders a measure report as a single-sheet XLSX workbook.
// Columns are the union of result keys in sorted order, so the layout is
// stable across exports of the same measure.
func ExportXLSX(report *MeasureReport) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := report.MeasureName
	if sheetName == "" {
		sheetName = "Report"
	}
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headers := columnOrder(report.Results)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header style: %w", err)
		}

		colName, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, colName, colName, 22); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for rowIdx, result := range report.Results {
		for col, header := range headers {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("convert coordinates: %w", err)
			}
			value := result[header]
			if value == nil {
				continue
			}
			if err := f.SetCellValue(sheetName, cell, fmt.Sprintf("%v", value)); err != nil {
				f.Close()
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func columnOrder(results []map[string]interface{}) []string {
	seen := map[string]bool{}
	var headers []string
	for _, r := range results {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	sort.Strings(headers)
	return headers
}
