package excel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sheetedit "github.com/ideamans/go-sheetedit"
	"github.com/xuri/excelize/v2"
)

// Adapter implements the sheetedit.Adapter interface for Excel files
type Adapter struct {
	config *Config
	mu     sync.RWMutex
}

// New creates a new Excel adapter with the given configuration
func New(config *Config) (*Adapter, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create a copy of config to avoid external modifications
	configCopy := *config

	return &Adapter{
		config: &configCopy,
	}, nil
}

// ListWorksheets returns the sheet names of the workbook
func (a *Adapter) ListWorksheets(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	f, err := a.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// ReadAllRows returns every row of the sheet as text cells, header first
func (a *Adapter) ReadAllRows(ctx context.Context, sheet string) ([][]interface{}, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	// Check if context is cancelled
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := a.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := requireSheet(f, sheet); err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = make([]interface{}, len(row))
		for j, cell := range row {
			out[i][j] = cell
		}
	}
	return out, nil
}

// WriteRows replaces the addressed rows and saves the workbook once.
// Rows are applied in memory first, so a failed save fails every row.
func (a *Adapter) WriteRows(ctx context.Context, sheet string, writes []sheetedit.RowWrite) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	f, err := a.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := requireSheet(f, sheet); err != nil {
		return err
	}

	var failed []int
	var firstErr error
	written := make([]int, 0, len(writes))
	for _, w := range writes {
		if err := writeRow(f, sheet, w.Row, w.Values); err != nil {
			failed = append(failed, w.Row)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written = append(written, w.Row)
	}

	if err := f.SaveAs(a.config.FilePath); err != nil {
		return sheetedit.NewWriteError(append(failed, written...), fmt.Errorf("failed to save Excel file: %w", err))
	}
	if len(failed) > 0 {
		return sheetedit.NewWriteError(failed, firstErr)
	}
	return nil
}

// Clear removes all rows from the sheet, keeping the sheet itself
func (a *Adapter) Clear(ctx context.Context, sheet string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := a.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := requireSheet(f, sheet); err != nil {
		return err
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to get rows: %w", err)
	}
	// Remove from the bottom so indices stay valid
	for i := len(rows); i >= 1; i-- {
		if err := f.RemoveRow(sheet, i); err != nil {
			return fmt.Errorf("failed to remove row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(a.config.FilePath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

// Save writes the header and all rows into the sheet, creating file and sheet if needed
func (a *Adapter) Save(ctx context.Context, sheet string, table *sheetedit.Table) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Check if context is cancelled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(a.config.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Create a new Excel file or open existing one
	var f *excelize.File
	if _, err := os.Stat(a.config.FilePath); err == nil {
		f, err = excelize.OpenFile(a.config.FilePath)
		if err != nil {
			return fmt.Errorf("failed to open Excel file: %w", err)
		}
	} else {
		f = excelize.NewFile()
	}
	defer f.Close()

	sheetIndex, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("failed to get sheet index: %w", err)
	}

	if sheetIndex == -1 {
		index, err := f.NewSheet(sheet)
		if err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		f.SetActiveSheet(index)

		// Drop the default sheet of a fresh workbook
		if defaultSheet := f.GetSheetName(0); defaultSheet != sheet && len(f.GetSheetList()) > 1 {
			if rows, _ := f.GetRows(defaultSheet); len(rows) == 0 {
				_ = f.DeleteSheet(defaultSheet) // Ignore error - not critical
			}
		}
	} else {
		// The table replaces the sheet's contents
		rows, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("failed to get rows: %w", err)
		}
		for i := len(rows); i >= 1; i-- {
			if err := f.RemoveRow(sheet, i); err != nil {
				return fmt.Errorf("failed to remove row %d: %w", i, err)
			}
		}
	}

	for i, row := range table.Grid() {
		if err := writeRow(f, sheet, i+1, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(a.config.FilePath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}

	return nil
}

// open opens the workbook, mapping a missing file to ErrNoSheet
func (a *Adapter) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(a.config.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, a.config.FilePath)
		}
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	return f, nil
}

func requireSheet(f *excelize.File, sheet string) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("failed to get sheet index: %w", err)
	}
	if idx == -1 {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	return nil
}

// writeRow writes values into the first len(values) cells of row.
// Cells to the right of the span keep their content.
func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	if row < 1 {
		return fmt.Errorf("invalid row %d", row)
	}

	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}

	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
