package sheetedit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Change is one row that needs a remote write
type Change struct {
	Key      int     // remote row number
	Values   []Value // full row, header order
	Previous []Value // values of the view row
	Version  string  // fingerprint of the values the edit started from
}

// ChangeSet is the result of diffing a view against its edited form
type ChangeSet struct {
	Columns []string
	Changes []Change

	// Rows the row-addressed strategy does not write
	Added   []*Row
	Deleted []int
}

// Empty reports whether no row needs writing
func (cs *ChangeSet) Empty() bool {
	return cs == nil || len(cs.Changes) == 0
}

// Keys returns the row numbers of all changes in order
func (cs *ChangeSet) Keys() []int {
	keys := make([]int, len(cs.Changes))
	for i, c := range cs.Changes {
		keys[i] = c.Key
	}
	return keys
}

// ComputeChangeSet diffs candidate against view. Rows are matched by key;
// candidate rows without a key are additions, view rows missing from the
// candidate are deletions.
//
// A candidate row carrying a Version was edited from the values with that
// fingerprint. When those are no longer the view's values the row counts as
// changed only if the editor changed it, and its Change keeps the editor's
// Version so ApplyOptions.VerifyVersions can refuse it.
func ComputeChangeSet(view *View, candidate *Table) (*ChangeSet, error) {
	if !sameColumns(view.Columns, candidate.Columns) {
		return nil, &SchemaError{
			Column: fmt.Sprintf("%v", candidate.Columns),
			Reason: fmt.Sprintf("edited columns do not match %v", view.Columns),
		}
	}

	cs := &ChangeSet{
		Columns: append([]string(nil), view.Columns...),
		Changes: []Change{},
	}

	original := view.Index()
	edited := make(map[int]*Row, len(candidate.Rows))
	for _, r := range candidate.Rows {
		if r.Key == 0 {
			added := r.Clone()
			if added.TempID == "" {
				added.TempID = uuid.NewString()
			}
			cs.Added = append(cs.Added, added)
			continue
		}
		if _, ok := original[r.Key]; !ok {
			return nil, fmt.Errorf("%w: row %d", ErrUnknownRow, r.Key)
		}
		if _, dup := edited[r.Key]; dup {
			return nil, fmt.Errorf("row %d appears more than once", r.Key)
		}
		edited[r.Key] = r
	}

	for _, before := range view.Rows {
		after, ok := edited[before.Key]
		if !ok {
			cs.Deleted = append(cs.Deleted, before.Key)
			continue
		}
		prev := before.Cells(view.Columns)
		next := after.Cells(view.Columns)
		version := Fingerprint(prev)
		if after.Version != "" && after.Version != version {
			// The view moved on since the editor loaded this row
			if Fingerprint(next) == after.Version {
				continue
			}
			version = after.Version
		}
		if cellsEqual(prev, next) {
			continue
		}
		cs.Changes = append(cs.Changes, Change{
			Key:      before.Key,
			Values:   next,
			Previous: prev,
			Version:  version,
		})
	}

	return cs, nil
}

// Fingerprint hashes the text form of a row
func Fingerprint(cells []Value) string {
	h := sha256.New()
	for _, c := range cells {
		s := c.String()
		fmt.Fprintf(h, "%d:%s;", len(s), s)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func cellsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// ApplyOptions tunes ApplyChangeSet
type ApplyOptions struct {
	// VerifyVersions re-reads the sheet and refuses to write when a row
	// no longer matches the values it was loaded with
	VerifyVersions bool
}

// ApplyChangeSet writes every change as a full-row range in one batch.
// Rows that succeeded are neither retried nor rolled back when others fail.
func ApplyChangeSet(ctx context.Context, adapter Adapter, sheet string, cs *ChangeSet, opts ApplyOptions) error {
	if cs.Empty() {
		return nil
	}

	if opts.VerifyVersions {
		if err := verifyVersions(ctx, adapter, sheet, cs); err != nil {
			return err
		}
	}

	writes := make([]RowWrite, len(cs.Changes))
	for i, c := range cs.Changes {
		writes[i] = RowWrite{Row: c.Key, Values: TextCells(c.Values)}
	}

	if err := adapter.WriteRows(ctx, sheet, writes); err != nil {
		return asWriteError(err, cs.Keys())
	}
	return nil
}

func verifyVersions(ctx context.Context, adapter Adapter, sheet string, cs *ChangeSet) error {
	current, err := LoadSnapshot(ctx, adapter, sheet)
	if err != nil {
		return err
	}
	if !sameColumns(current.Columns, cs.Columns) {
		return &SchemaError{
			Column: fmt.Sprintf("%v", cs.Columns),
			Reason: fmt.Sprintf("remote header is now %v", current.Columns),
		}
	}

	idx := current.Index()
	var conflicts []int
	for _, c := range cs.Changes {
		row, ok := idx[c.Key]
		if !ok || Fingerprint(row.Cells(cs.Columns)) != c.Version {
			conflicts = append(conflicts, c.Key)
		}
	}
	if len(conflicts) > 0 {
		return &ConflictError{Rows: conflicts}
	}
	return nil
}

// asWriteError converts any adapter failure into a *WriteError
func asWriteError(err error, attempted []int) error {
	var we *WriteError
	if errors.As(err, &we) {
		return we
	}
	return NewWriteError(attempted, err)
}
