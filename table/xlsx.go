package table

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/zalepa/indicadores/logger"
)

// readXLSX concatenates every sheet whose header matches the first non-empty
// sheet. Regional workbooks are sometimes split across sheets such as
// "Region_13_1" and "Region_13_2".
func readXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var t *Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		header := normalizeHeader(rows[0])
		if len(header) == 0 {
			continue
		}
		if t == nil {
			t = &Table{Source: path, Header: header}
		} else if !sameHeader(t.Header, header) {
			logger.L().Warn("table_sheet_skipped",
				"file", filepath.Base(path),
				"sheet", sheet,
				"reason", "header differs from first sheet")
			continue
		}
		for _, r := range rows[1:] {
			if blankRow(r) {
				continue
			}
			t.Rows = append(t.Rows, fitRow(r, len(t.Header)))
		}
	}
	if t == nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmpty)
	}
	return t, nil
}
