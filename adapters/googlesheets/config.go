package googlesheets

import (
	"errors"

	"google.golang.org/api/sheets/v4"
)

// ErrMissingSpreadsheetID is returned when no spreadsheet is configured
var ErrMissingSpreadsheetID = errors.New("spreadsheet id is required")

// Config represents configuration specific to Google Sheets adapter
type Config struct {
	SpreadsheetID string
	ReadOnly      bool // request the read-only scope; writes will be rejected by the API
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.SpreadsheetID == "" {
		return ErrMissingSpreadsheetID
	}
	return nil
}

// Scopes returns the OAuth scopes matching the configured access
func (c Config) Scopes() []string {
	if c.ReadOnly {
		return []string{sheets.SpreadsheetsReadonlyScope}
	}
	return []string{sheets.SpreadsheetsScope}
}
