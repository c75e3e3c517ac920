package sheetedit

import (
	"sort"
	"time"
)

// View is the part of a snapshot that belongs to one identity
type View struct {
	Table
	Sheet          string
	IdentityColumn string
	Identity       string
	FetchedAt      time.Time // when the underlying snapshot was read
}

// FilterView returns the rows whose identity column equals identity.
// Order and row keys are preserved. No match yields an empty view.
func FilterView(snap *Snapshot, column, identity string) (*View, error) {
	if !snap.HasColumn(column) {
		return nil, &SchemaError{Column: column}
	}

	rows := ApplyQuery(snap.Rows, Query{
		Conditions: []Condition{Eq(column, Text(identity))},
	})

	view := &View{
		Sheet:          snap.Sheet,
		IdentityColumn: column,
		Identity:       identity,
		FetchedAt:      snap.FetchedAt,
	}
	view.Columns = make([]string, len(snap.Columns))
	copy(view.Columns, snap.Columns)
	view.Rows = make([]*Row, len(rows))
	for i, r := range rows {
		view.Rows[i] = r.Clone()
	}
	return view, nil
}

// Identities lists the distinct non-empty values of the identity column, sorted
func Identities(snap *Snapshot, column string) ([]string, error) {
	if !snap.HasColumn(column) {
		return nil, &SchemaError{Column: column}
	}

	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, r := range snap.Rows {
		name := r.Get(column).String()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
