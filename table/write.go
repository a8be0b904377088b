package table

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet to be written by WriteXLSX.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
	Width  float64 // column width; 0 keeps the default
}

// WriteXLSX writes sheets to a new workbook at path. A nil cell is left
// blank so that missing values stay distinguishable from zero.
func WriteXLSX(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("write %s: no sheets", path)
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return err
		}

		header := make([]any, len(s.Header))
		for j, h := range s.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
			return err
		}
		if s.Width > 0 && len(s.Header) > 0 {
			last, _ := excelize.ColumnNumberToName(len(s.Header))
			if err := f.SetColWidth(s.Name, "A", last, s.Width); err != nil {
				return err
			}
		}
		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			vals := row
			if err := f.SetSheetRow(s.Name, cell, &vals); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(path)
}
