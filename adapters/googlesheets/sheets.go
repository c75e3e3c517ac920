package googlesheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	sheetedit "github.com/ideamans/go-sheetedit"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// valueInputOption keeps written cells exactly as sent; every value is text
const valueInputOption = "RAW"

// SheetsAdaptor implements the Adapter interface for Google Sheets
type SheetsAdaptor struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewSheetsAdaptor creates a new Google Sheets adaptor with provided options
func NewSheetsAdaptor(ctx context.Context, config Config, opts ...option.ClientOption) (*SheetsAdaptor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsAdaptor{
		service:       service,
		spreadsheetID: config.SpreadsheetID,
	}, nil
}

// ListWorksheets returns the titles of all sheets in the spreadsheet
func (a *SheetsAdaptor) ListWorksheets(ctx context.Context) ([]string, error) {
	resp, err := a.service.Spreadsheets.Get(a.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", classify(err))
	}

	names := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			names = append(names, s.Properties.Title)
		}
	}
	return names, nil
}

// ReadAllRows retrieves every row of the sheet, header first
func (a *SheetsAdaptor) ReadAllRows(ctx context.Context, sheet string) ([][]interface{}, error) {
	readRange := fmt.Sprintf("%s!A:ZZ", quoteSheet(sheet))
	resp, err := a.service.Spreadsheets.Values.Get(a.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get sheet data: %w", classify(err))
	}

	if resp.Values == nil {
		return [][]interface{}{}, nil
	}
	return resp.Values, nil
}

// WriteRows replaces each addressed row in one values:batchUpdate request.
// The request is all-or-nothing, so a failure is reported for every row.
func (a *SheetsAdaptor) WriteRows(ctx context.Context, sheet string, writes []sheetedit.RowWrite) error {
	if len(writes) == 0 {
		return nil
	}

	rows := make([]int, len(writes))
	data := make([]*sheets.ValueRange, len(writes))
	for i, w := range writes {
		rows[i] = w.Row
		data[i] = &sheets.ValueRange{
			Range:  rowRange(sheet, w.Row, len(w.Values)),
			Values: [][]interface{}{toInterfaces(w.Values)},
		}
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputOption,
		Data:             data,
	}
	_, err := a.service.Spreadsheets.Values.BatchUpdate(a.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return sheetedit.NewWriteError(rows, fmt.Errorf("failed to batch update rows: %w", classify(err)))
	}
	return nil
}

// Clear removes all values from the sheet
func (a *SheetsAdaptor) Clear(ctx context.Context, sheet string) error {
	clearRange := fmt.Sprintf("%s!A:ZZ", quoteSheet(sheet))
	_, err := a.service.Spreadsheets.Values.Clear(a.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear sheet: %w", classify(err))
	}
	return nil
}

// Save writes the header and all rows starting at A1
func (a *SheetsAdaptor) Save(ctx context.Context, sheet string, table *sheetedit.Table) error {
	grid := table.Grid()
	values := make([][]interface{}, len(grid))
	for i, row := range grid {
		values[i] = toInterfaces(row)
	}

	writeRange := fmt.Sprintf("%s!A1", quoteSheet(sheet))
	vr := &sheets.ValueRange{
		Values: values,
	}
	_, err := a.service.Spreadsheets.Values.Update(a.spreadsheetID, writeRange, vr).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update sheet: %w", classify(err))
	}
	return nil
}

// rowRange addresses one row from column A to the last written column, e.g. Sheet1!A5:D5
func rowRange(sheet string, row, width int) string {
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, sheetedit.ColumnName(width), row)
}

// quoteSheet wraps sheet names that are not plain identifiers in single quotes
func quoteSheet(name string) string {
	plain := name != ""
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toInterfaces(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

// classify marks missing sheets so callers can stop retrying
func classify(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch {
		case gErr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %v", sheetedit.ErrNoSheet, err)
		case gErr.Code == http.StatusBadRequest && strings.Contains(gErr.Message, "Unable to parse range"):
			return fmt.Errorf("%w: %v", sheetedit.ErrNoSheet, err)
		}
	}
	return err
}
