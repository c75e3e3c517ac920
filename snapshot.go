package sheetedit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Snapshot is one sheet's rows as of a single read
type Snapshot struct {
	Table
	Sheet     string
	FetchedAt time.Time
}

// LoadSnapshot reads the whole sheet and tags every data row with its row number
func LoadSnapshot(ctx context.Context, adapter Adapter, sheet string) (*Snapshot, error) {
	grid, err := adapter.ReadAllRows(ctx, sheet)
	if err != nil {
		return nil, &LoadError{Sheet: sheet, Err: err}
	}

	snap, err := snapshotFromGrid(sheet, grid)
	if err != nil {
		return nil, &LoadError{Sheet: sheet, Err: err}
	}
	snap.FetchedAt = time.Now()
	return snap, nil
}

func snapshotFromGrid(sheet string, grid [][]interface{}) (*Snapshot, error) {
	snap := &Snapshot{Sheet: sheet}
	snap.Columns = []string{}
	snap.Rows = []*Row{}

	if len(grid) == 0 {
		return snap, nil
	}

	columns, err := parseHeader(grid[0])
	if err != nil {
		return nil, err
	}
	snap.Columns = columns

	for i, raw := range grid[HeaderRows:] {
		row := &Row{
			Key:    FirstDataRow + i,
			Values: make(map[string]Value, len(columns)),
		}
		for j, col := range columns {
			if j < len(raw) {
				row.Values[col] = ParseCell(raw[j])
			} else {
				row.Values[col] = Empty()
			}
		}
		// Blank rows keep their numbering but are not part of the data
		if row.IsBlank() {
			continue
		}
		snap.Rows = append(snap.Rows, row)
	}

	return snap, nil
}

// parseHeader validates the first row. Trailing blank cells are ignored.
func parseHeader(raw []interface{}) ([]string, error) {
	names := make([]string, len(raw))
	last := -1
	for i, cell := range raw {
		names[i] = ParseCell(cell).String()
		if names[i] != "" {
			last = i
		}
	}
	names = names[:last+1]

	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("%w: blank column name at position %d", errMalformedHeader, i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column %q", errMalformedHeader, name)
		}
		seen[name] = true
	}
	return names, nil
}

var errMalformedHeader = errors.New("malformed header row")
