package sheets

import (
	"context"
	"fmt"

	"orders_sync/internal/orders"

	"github.com/rs/zerolog/log"
)

// ValueReader reads a rectangular range of cell values.
type ValueReader interface {
	ReadSheet(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error)
}

// Source reads order rows from a fixed range of one spreadsheet.
type Source struct {
	reader        ValueReader
	spreadsheetID string
	readRange     string
}

func NewSource(reader ValueReader, spreadsheetID, readRange string) *Source {
	if readRange == "" {
		readRange = DefaultRange
	}
	return &Source{
		reader:        reader,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
	}
}

// GetRows returns the current rows top to bottom. Any failure wraps
// orders.ErrSourceUnavailable.
func (s *Source) GetRows(ctx context.Context) (orders.Snapshot, error) {
	log.Debug().
		Str("spreadsheet_id", s.spreadsheetID).
		Str("range", s.readRange).
		Msg("Reading sheet rows")

	values, err := s.reader.ReadSheet(ctx, s.spreadsheetID, s.readRange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orders.ErrSourceUnavailable, err)
	}

	rows := ToSnapshot(values)
	log.Debug().Int("rows", len(rows)).Msg("Retrieved sheet rows")
	return rows, nil
}

// ToSnapshot stringifies API cell values the way the sheet displays them.
func ToSnapshot(values [][]interface{}) orders.Snapshot {
	rows := make(orders.Snapshot, 0, len(values))
	for _, raw := range values {
		row := make(orders.Row, len(raw))
		for i := range raw {
			row[i] = extractStringField(raw, i)
		}
		rows = append(rows, row)
	}
	return rows
}

// extractStringField safely extracts a string field from a row at the given index
func extractStringField(row []interface{}, index int) string {
	if len(row) > index && row[index] != nil {
		return fmt.Sprintf("%v", row[index])
	}
	return ""
}
