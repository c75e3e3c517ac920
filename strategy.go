package sheetedit

import (
	"context"
	"fmt"
)

// Strategy names how edited rows are written back
type Strategy string

const (
	// StrategyRows writes only the changed rows, addressed by row number
	StrategyRows Strategy = "rows"
	// StrategyRewrite clears the sheet and writes the whole merged table
	StrategyRewrite Strategy = "rewrite"
)

// ParseStrategy validates a configured strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyRows:
		return StrategyRows, nil
	case StrategyRewrite:
		return StrategyRewrite, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (expected %q or %q)", s, StrategyRows, StrategyRewrite)
	}
}

// Reconciler writes a computed change set back to the store
type Reconciler interface {
	Reconcile(ctx context.Context, adapter Adapter, snap *Snapshot, cs *ChangeSet) error
}

// NewReconciler returns the reconciler for a strategy
func NewReconciler(strategy Strategy, opts ApplyOptions) Reconciler {
	if strategy == StrategyRewrite {
		return &RewriteReconciler{}
	}
	return &RowReconciler{Options: opts}
}

// RowReconciler issues one full-row write per changed row.
// Added and deleted rows are left untouched.
type RowReconciler struct {
	Options ApplyOptions
}

func (r *RowReconciler) Reconcile(ctx context.Context, adapter Adapter, snap *Snapshot, cs *ChangeSet) error {
	return ApplyChangeSet(ctx, adapter, snap.Sheet, cs, r.Options)
}

// RewriteReconciler replaces the whole sheet with the snapshot plus local edits.
// Changes made by other writers since the snapshot was fetched are lost.
type RewriteReconciler struct{}

func (r *RewriteReconciler) Reconcile(ctx context.Context, adapter Adapter, snap *Snapshot, cs *ChangeSet) error {
	merged := Overlay(snap, cs)

	if err := adapter.Clear(ctx, snap.Sheet); err != nil {
		return &WriteError{Err: fmt.Errorf("failed to clear sheet: %w", err)}
	}
	if err := adapter.Save(ctx, snap.Sheet, merged); err != nil {
		return &WriteError{Err: fmt.Errorf("failed to write sheet: %w", err)}
	}
	return nil
}

// Overlay merges a change set into the full snapshot: changed rows are
// replaced by key, deleted rows dropped and added rows appended.
// Row keys of the result are renumbered to their new positions.
func Overlay(snap *Snapshot, cs *ChangeSet) *Table {
	changed := make(map[int]Change, len(cs.Changes))
	for _, c := range cs.Changes {
		changed[c.Key] = c
	}
	deleted := make(map[int]bool, len(cs.Deleted))
	for _, k := range cs.Deleted {
		deleted[k] = true
	}

	out := &Table{
		Columns: append([]string(nil), snap.Columns...),
		Rows:    make([]*Row, 0, len(snap.Rows)+len(cs.Added)),
	}
	for _, r := range snap.Rows {
		if deleted[r.Key] {
			continue
		}
		row := r.Clone()
		if c, ok := changed[r.Key]; ok {
			for i, col := range cs.Columns {
				row.Set(col, c.Values[i])
			}
		}
		out.Rows = append(out.Rows, row)
	}
	for _, r := range cs.Added {
		row := &Row{Values: make(map[string]Value, len(out.Columns))}
		for _, col := range out.Columns {
			row.Values[col] = r.Get(col)
		}
		out.Rows = append(out.Rows, row)
	}

	for i, r := range out.Rows {
		r.Key = FirstDataRow + i
		r.TempID = ""
	}
	return out
}
