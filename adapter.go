package sheetedit

import "context"

// RowWrite replaces one whole row, starting at column A
type RowWrite struct {
	Row    int      // 1-based row number
	Values []string // cells in header order
}

// Adapter interface defines methods for interacting with different spreadsheet backends
type Adapter interface {
	// ListWorksheets returns the sheet names of the workbook
	ListWorksheets(ctx context.Context) ([]string, error)

	// ReadAllRows returns every row of the sheet, header first
	ReadAllRows(ctx context.Context, sheet string) ([][]interface{}, error)

	// WriteRows replaces the addressed rows in a single request where the backend allows it.
	// Failures naming specific rows should be returned as *WriteError.
	WriteRows(ctx context.Context, sheet string, writes []RowWrite) error

	// Clear removes all values from the sheet
	Clear(ctx context.Context, sheet string) error

	// Save writes the header and all rows starting at A1
	Save(ctx context.Context, sheet string, table *Table) error
}
