package sheets

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultRange covers the order rows below the header line.
const DefaultRange = "A2:D999"

// SplitRange separates an optional "Sheet!" prefix from the cell range.
func SplitRange(sheetRange string) (sheet, cells string) {
	parts := strings.SplitN(sheetRange, "!", 2)
	if len(parts) == 2 {
		return strings.Trim(parts[0], "'"), parts[1]
	}
	return "", parts[0]
}

// bounds holds 1-based inclusive coordinates of a cell range.
type bounds struct {
	firstCol, firstRow int
	lastCol, lastRow   int
}

func parseBounds(cells string) (bounds, error) {
	ends := strings.SplitN(cells, ":", 2)
	if len(ends) != 2 {
		return bounds{}, fmt.Errorf("range %q must have the form A1:B2", cells)
	}
	c1, r1, err := excelize.CellNameToCoordinates(ends[0])
	if err != nil {
		return bounds{}, fmt.Errorf("invalid range start: %w", err)
	}
	c2, r2, err := excelize.CellNameToCoordinates(ends[1])
	if err != nil {
		return bounds{}, fmt.Errorf("invalid range end: %w", err)
	}
	if c2 < c1 || r2 < r1 {
		return bounds{}, fmt.Errorf("range %q is inverted", cells)
	}
	return bounds{firstCol: c1, firstRow: r1, lastCol: c2, lastRow: r2}, nil
}
