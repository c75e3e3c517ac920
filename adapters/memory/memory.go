// Package memory provides an in-process store for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sheetedit "github.com/ideamans/go-sheetedit"
)

// Adapter keeps sheets as grids of text cells, the way a remote
// spreadsheet returns formatted values
type Adapter struct {
	mu       sync.RWMutex
	sheets   map[string][][]string
	failRows map[int]error
	reads    int
	writes   int
}

// New creates an empty store
func New() *Adapter {
	return &Adapter{
		sheets:   make(map[string][][]string),
		failRows: make(map[int]error),
	}
}

// Put replaces a sheet with the given grid (header first)
func (a *Adapter) Put(sheet string, grid [][]string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sheets[sheet] = copyGrid(grid)
}

// Grid returns a copy of a sheet's cells
func (a *Adapter) Grid(sheet string) [][]string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return copyGrid(a.sheets[sheet])
}

// FailRow makes every write addressing row fail with err
func (a *Adapter) FailRow(row int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failRows[row] = err
}

// Reads returns how many times ReadAllRows was called
func (a *Adapter) Reads() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.reads
}

// Writes returns how many row writes succeeded
func (a *Adapter) Writes() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.writes
}

func (a *Adapter) ListWorksheets(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.sheets))
	for name := range a.sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (a *Adapter) ReadAllRows(ctx context.Context, sheet string) ([][]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.reads++
	grid, ok := a.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheetedit.ErrNoSheet, sheet)
	}

	out := make([][]interface{}, len(grid))
	for i, row := range grid {
		out[i] = make([]interface{}, len(row))
		for j, cell := range row {
			out[i][j] = cell
		}
	}
	return out, nil
}

// WriteRows applies every write it can and reports the rows that failed.
// A write covers only its own cells; the rest of the row is kept.
func (a *Adapter) WriteRows(ctx context.Context, sheet string, writes []sheetedit.RowWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	grid, ok := a.sheets[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", sheetedit.ErrNoSheet, sheet)
	}

	var failed []int
	var firstErr error
	for _, w := range writes {
		if err, ok := a.failRows[w.Row]; ok {
			failed = append(failed, w.Row)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if w.Row < 1 {
			failed = append(failed, w.Row)
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid row %d", w.Row)
			}
			continue
		}
		for len(grid) < w.Row {
			grid = append(grid, []string{})
		}
		row := grid[w.Row-1]
		for len(row) < len(w.Values) {
			row = append(row, "")
		}
		copy(row, w.Values)
		grid[w.Row-1] = row
		a.writes++
	}
	a.sheets[sheet] = grid

	if len(failed) > 0 {
		return sheetedit.NewWriteError(failed, firstErr)
	}
	return nil
}

func (a *Adapter) Clear(ctx context.Context, sheet string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.sheets[sheet]; !ok {
		return fmt.Errorf("%w: %s", sheetedit.ErrNoSheet, sheet)
	}
	a.sheets[sheet] = [][]string{}
	return nil
}

func (a *Adapter) Save(ctx context.Context, sheet string, table *sheetedit.Table) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sheets[sheet] = table.Grid()
	a.writes += table.Len()
	return nil
}

func copyGrid(grid [][]string) [][]string {
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}
	return out
}
