package sheets

import (
	"context"
	"fmt"
	"strings"

	"orders_sync/internal/orders"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// FileSource reads order rows from a local .xlsx workbook. The file is
// reopened on every call so edits between polls are picked up.
type FileSource struct {
	path      string
	sheet     string
	readRange string
}

func NewFileSource(path, sheet, readRange string) *FileSource {
	if readRange == "" {
		readRange = DefaultRange
	}
	if prefix, _ := SplitRange(readRange); prefix != "" {
		sheet = prefix
	}
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &FileSource{path: path, sheet: sheet, readRange: readRange}
}

// GetRows returns the range's rows the way the Sheets API would: trailing
// empty cells and trailing empty rows are dropped.
func (s *FileSource) GetRows(ctx context.Context) (orders.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", orders.ErrSourceUnavailable, err)
	}

	_, cells := SplitRange(s.readRange)
	b, err := parseBounds(cells)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orders.ErrSourceUnavailable, err)
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", orders.ErrSourceUnavailable, err)
	}
	defer f.Close()

	all, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", orders.ErrSourceUnavailable, s.sheet, err)
	}

	var rows orders.Snapshot
	for r := b.firstRow; r <= b.lastRow && r <= len(all); r++ {
		rows = append(rows, cropRow(all[r-1], b.firstCol, b.lastCol))
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}

	log.Debug().
		Str("path", s.path).
		Str("sheet", s.sheet).
		Int("rows", len(rows)).
		Msg("Read workbook rows")
	return rows, nil
}

func cropRow(cells []string, firstCol, lastCol int) orders.Row {
	row := orders.Row{}
	for c := firstCol; c <= lastCol && c <= len(cells); c++ {
		row = append(row, strings.TrimSpace(cells[c-1]))
	}
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}
