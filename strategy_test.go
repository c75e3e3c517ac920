package sheetedit_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	sheetedit "github.com/ideamans/go-sheetedit"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    sheetedit.Strategy
		wantErr bool
	}{
		{"", sheetedit.StrategyRows, false},
		{"rows", sheetedit.StrategyRows, false},
		{"rewrite", sheetedit.StrategyRewrite, false},
		{"gap-preserving", "", true},
	}
	for _, tt := range tests {
		got, err := sheetedit.ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOverlay(t *testing.T) {
	store := newStore(commissionGrid())
	snap, err := sheetedit.LoadSnapshot(context.Background(), store, testSheet)
	if err != nil {
		t.Fatal(err)
	}
	view, _ := sheetedit.FilterView(snap, "영업자", "김철수")

	candidate := view.Table.Clone()
	// change row 2, drop row 4, append one
	candidate.Rows[0].Set("수수료율입력", sheetedit.Number(9))
	candidate.Rows = append(candidate.Rows[:1], candidate.Rows[2:]...)
	candidate.Rows = append(candidate.Rows, &sheetedit.Row{Values: map[string]sheetedit.Value{
		"영업자": sheetedit.Text("김철수"),
		"고객명": sheetedit.Text("F상사"),
	}})

	cs, err := sheetedit.ComputeChangeSet(view, candidate)
	if err != nil {
		t.Fatal(err)
	}

	merged := sheetedit.Overlay(snap, cs)
	want := [][]string{
		{"영업자", "고객명", "전화번호", "수수료율입력"},
		{"김철수", "A상사", "010-1111-1111", "9"},
		{"이영희", "B물산", "010-2222-2222", "4"},
		{"김철수", "D건설", "010-5555-5555", ""},
		{"박민수", "E식품", "", "5"},
		{"김철수", "F상사", "", ""},
	}
	if got := merged.Grid(); !reflect.DeepEqual(got, want) {
		t.Errorf("Overlay() grid = %v, want %v", got, want)
	}
	if got := keys(merged.Rows); !reflect.DeepEqual(got, []int{2, 3, 4, 5, 6}) {
		t.Errorf("Overlay() keys = %v, want [2 3 4 5 6]", got)
	}
	for _, r := range merged.Rows {
		if r.TempID != "" {
			t.Errorf("merged row %d kept a temporary id", r.Key)
		}
	}

	// the snapshot itself is not modified
	if snap.Rows[0].Get("수수료율입력").String() != "3.5" {
		t.Errorf("Overlay() modified the snapshot")
	}
}

func TestRewriteReconciler(t *testing.T) {
	store := newStore(commissionGrid())
	snap, _ := sheetedit.LoadSnapshot(context.Background(), store, testSheet)
	view, _ := sheetedit.FilterView(snap, "영업자", "이영희")

	candidate := view.Table.Clone()
	candidate.Rows[0].Set("전화번호", sheetedit.Text("010-0000-0000"))
	cs, err := sheetedit.ComputeChangeSet(view, candidate)
	if err != nil {
		t.Fatal(err)
	}

	r := sheetedit.NewReconciler(sheetedit.StrategyRewrite, sheetedit.ApplyOptions{})
	if err := r.Reconcile(context.Background(), store, snap, cs); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	grid := store.Grid(testSheet)
	// the blank row is squeezed out by the rewrite
	if len(grid) != 6 {
		t.Fatalf("rows after rewrite = %d, want 6", len(grid))
	}
	if grid[2][2] != "010-0000-0000" {
		t.Errorf("edited cell = %q", grid[2][2])
	}
	if grid[1][3] != "3.5" {
		t.Errorf("other rows should be rewritten unchanged, got %v", grid[1])
	}
}

func TestRowReconciler_LeavesAddedAndDeletedAlone(t *testing.T) {
	store := newStore(commissionGrid())
	snap, _ := sheetedit.LoadSnapshot(context.Background(), store, testSheet)
	view, _ := sheetedit.FilterView(snap, "영업자", "김철수")

	candidate := view.Table.Clone()
	candidate.Rows = candidate.Rows[:2]
	candidate.Rows = append(candidate.Rows, &sheetedit.Row{Values: map[string]sheetedit.Value{"영업자": sheetedit.Text("김철수")}})
	cs, _ := sheetedit.ComputeChangeSet(view, candidate)

	r := sheetedit.NewReconciler(sheetedit.StrategyRows, sheetedit.ApplyOptions{})
	if err := r.Reconcile(context.Background(), store, snap, cs); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(store.Grid(testSheet), commissionGrid()) {
		t.Errorf("row strategy wrote added or deleted rows")
	}
}

func TestRewriteReconciler_Failure(t *testing.T) {
	store := newStore(commissionGrid())
	snap, _ := sheetedit.LoadSnapshot(context.Background(), store, testSheet)
	snap.Sheet = "gone"

	r := &sheetedit.RewriteReconciler{}
	err := r.Reconcile(context.Background(), store, snap, &sheetedit.ChangeSet{Columns: snap.Columns})
	var we *sheetedit.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("Reconcile() error = %v, want *WriteError", err)
	}
	if !errors.Is(err, sheetedit.ErrNoSheet) {
		t.Errorf("WriteError should wrap the store error")
	}
}
