package excel

import (
	"errors"

	sheetedit "github.com/ideamans/go-sheetedit"
)

var (
	// ErrMissingFilePath is returned when file path is not specified
	ErrMissingFilePath = errors.New("file path is required")

	// ErrSheetNotFound is returned when the workbook or the sheet doesn't exist
	ErrSheetNotFound = sheetedit.ErrNoSheet
)
