package sheetedit_test

import (
	"errors"
	"reflect"
	"testing"

	sheetedit "github.com/ideamans/go-sheetedit"
)

func TestParseColumnType(t *testing.T) {
	tests := []struct {
		in      string
		want    sheetedit.ColumnType
		wantErr bool
	}{
		{"", sheetedit.ColumnText, false},
		{"text", sheetedit.ColumnText, false},
		{"number", sheetedit.ColumnNumber, false},
		{"date", "", true},
	}
	for _, tt := range tests {
		got, err := sheetedit.ParseColumnType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColumnType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColumnType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColumnRules_Normalize(t *testing.T) {
	view := kimView(t, newStore(commissionGrid()))
	table := view.Table.Clone()
	table.Rows[0].Set("수수료율입력", sheetedit.Text("4.25"))
	table.Rows[1].Set("수수료율입력", sheetedit.Text("약 2"))
	table.Rows[2].Set("전화번호", sheetedit.Text("01055550000"))

	rules := sheetedit.ColumnRules{
		{Name: "수수료율입력", Type: sheetedit.ColumnNumber},
		{Name: "전화번호", Type: sheetedit.ColumnText},
		{Name: "전기차보조금", Type: sheetedit.ColumnNumber},
	}
	rules.Normalize(table)

	if got := table.Rows[0].Get("수수료율입력"); !got.Equal(sheetedit.Number(4.25)) || got.Kind() != sheetedit.KindNumber {
		t.Errorf("numeric text should become a number, got %v", got)
	}
	if got := table.Rows[1].Get("수수료율입력"); got.Kind() != sheetedit.KindText {
		t.Errorf("non-numeric text should stay text, got kind %v", got.Kind())
	}
	if got := table.Rows[2].Get("전화번호"); got.Kind() != sheetedit.KindText {
		t.Errorf("text columns are not normalized, got kind %v", got.Kind())
	}
}

func TestColumnRules_Check(t *testing.T) {
	view := kimView(t, newStore(commissionGrid()))
	rules := sheetedit.CommissionColumns()

	t.Run("untouched rows are not checked", func(t *testing.T) {
		// row 6 has no rate but nobody edited it
		candidate := view.Table.Clone()
		candidate.Rows[0].Set("고객명", sheetedit.Text("A상사2"))

		cs, err := sheetedit.ComputeChangeSet(view, candidate)
		if err != nil {
			t.Fatal(err)
		}
		if err := rules.Check(cs); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})

	t.Run("edited and added rows", func(t *testing.T) {
		candidate := view.Table.Clone()
		candidate.Rows[0].Set("수수료율입력", sheetedit.Text("많이"))
		candidate.Rows[1].Set("전화번호", sheetedit.Text("  "))
		candidate.Rows = append(candidate.Rows, &sheetedit.Row{
			TempID: "new-1",
			Values: map[string]sheetedit.Value{
				"영업자":  sheetedit.Text("김철수"),
				"전화번호": sheetedit.Text("010-7777-7777"),
			},
		})

		cs, err := sheetedit.ComputeChangeSet(view, candidate)
		if err != nil {
			t.Fatal(err)
		}
		err = rules.Check(cs)

		var ve *sheetedit.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Check() error = %v, want *ValidationError", err)
		}
		if !errors.Is(err, sheetedit.ErrInvalidCell) {
			t.Errorf("ValidationError should unwrap to ErrInvalidCell")
		}
		want := []sheetedit.CellProblem{
			{Row: 2, Column: "수수료율입력", Reason: `"많이" is not a number`},
			{Row: 4, Column: "전화번호", Reason: "is required"},
			{TempID: "new-1", Column: "수수료율입력", Reason: "is required"},
		}
		if !reflect.DeepEqual(ve.Problems, want) {
			t.Errorf("Problems = %+v, want %+v", ve.Problems, want)
		}
	})

	t.Run("no rules", func(t *testing.T) {
		candidate := view.Table.Clone()
		candidate.Rows[0].Set("수수료율입력", sheetedit.Empty())
		cs, _ := sheetedit.ComputeChangeSet(view, candidate)

		var none sheetedit.ColumnRules
		if err := none.Check(cs); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})
}

func TestCellProblem_String(t *testing.T) {
	if got := (sheetedit.CellProblem{Row: 3, Column: "전화번호", Reason: "is required"}).String(); got != "row 3: 전화번호 is required" {
		t.Errorf("String() = %q", got)
	}
	if got := (sheetedit.CellProblem{TempID: "t1", Column: "전화번호", Reason: "is required"}).String(); got != "new row t1: 전화번호 is required" {
		t.Errorf("String() = %q", got)
	}
}
