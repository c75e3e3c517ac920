package sheetedit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrClosed      = errors.New("client is closed")
	ErrUnknownRow  = errors.New("row is not part of the view")
	ErrNoSheet     = errors.New("sheet not found")
	ErrSchema      = errors.New("sheet header does not fit")
	ErrConflict    = errors.New("remote rows changed")
	ErrInvalidCell = errors.New("edited cell breaks a column rule")
)

// LoadError reports a failed fetch: network, auth, missing sheet or malformed header
type LoadError struct {
	Sheet string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load sheet %q: %v", e.Sheet, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchemaError reports a column the remote header does not provide
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("schema: column %q: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("schema: column %q not found", e.Column)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// WriteError reports row writes that failed. Rows is empty when the store
// could not tell which rows were affected.
type WriteError struct {
	Rows []int
	Err  error
}

func (e *WriteError) Error() string {
	if len(e.Rows) == 0 {
		return fmt.Sprintf("write failed: %v", e.Err)
	}
	return fmt.Sprintf("write failed for rows %s: %v", joinRows(e.Rows), e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ConflictError reports rows changed remotely since the view was fetched.
// Rows is empty when the sheet as a whole moved on.
type ConflictError struct {
	Rows []int
}

func (e *ConflictError) Error() string {
	if len(e.Rows) == 0 {
		return "sheet changed since it was loaded"
	}
	return fmt.Sprintf("rows %s changed since they were loaded", joinRows(e.Rows))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewWriteError builds a WriteError with sorted, de-duplicated rows
func NewWriteError(rows []int, err error) *WriteError {
	return &WriteError{Rows: uniqueSorted(rows), Err: err}
}

func uniqueSorted(rows []int) []int {
	if len(rows) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(rows))
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Ints(out)
	return out
}

func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return strings.Join(parts, ", ")
}
