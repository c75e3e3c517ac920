// Package adaptertest holds the behaviour every sheetedit.Adapter must share.
// Backend packages run it from their own tests with a factory that seeds
// one sheet.
package adaptertest

import (
	"context"
	"fmt"
	"testing"

	sheetedit "github.com/ideamans/go-sheetedit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SheetName is the sheet every case seeds
const SheetName = "Records"

// Factory returns an adapter whose sheet holds grid, header first
type Factory func(t *testing.T, sheet string, grid [][]string) sheetedit.Adapter

// Run executes the conformance cases against adapters built by factory
func Run(t *testing.T, factory Factory) {
	t.Helper()

	seed := [][]string{
		{"영업자", "전화번호", "수수료율입력"},
		{"김철수", "010-1234-5678", "3.5"},
		{"이영희", "010-9876-5432", "4"},
		{"김철수", "010-5555-0000", "2"},
	}

	t.Run("ListWorksheets", func(t *testing.T) {
		a := factory(t, SheetName, seed)
		names, err := a.ListWorksheets(context.Background())
		require.NoError(t, err)
		assert.Contains(t, names, SheetName)
	})

	t.Run("ReadAllRows", func(t *testing.T) {
		a := factory(t, SheetName, seed)
		rows, err := a.ReadAllRows(context.Background(), SheetName)
		require.NoError(t, err)
		assert.Equal(t, seed, Normalize(rows))
	})

	t.Run("WriteRows replaces whole rows", func(t *testing.T) {
		a := factory(t, SheetName, seed)
		ctx := context.Background()

		err := a.WriteRows(ctx, SheetName, []sheetedit.RowWrite{
			{Row: 2, Values: []string{"김철수", "010-0000-0000", "5"}},
			{Row: 4, Values: []string{"김철수", "", "2"}},
		})
		require.NoError(t, err)

		rows, err := a.ReadAllRows(ctx, SheetName)
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"영업자", "전화번호", "수수료율입력"},
			{"김철수", "010-0000-0000", "5"},
			{"이영희", "010-9876-5432", "4"},
			{"김철수", "", "2"},
		}, Normalize(rows))
	})

	t.Run("WriteRows keeps cells beyond the written span", func(t *testing.T) {
		memo := [][]string{
			{"영업자", "전화번호"},
			{"김철수", "010-1", "memo kept by ops"},
			{"이영희", "010-2"},
		}
		a := factory(t, SheetName, memo)
		ctx := context.Background()

		err := a.WriteRows(ctx, SheetName, []sheetedit.RowWrite{
			{Row: 2, Values: []string{"김철수", "010-9"}},
		})
		require.NoError(t, err)

		rows, err := a.ReadAllRows(ctx, SheetName)
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"영업자", "전화번호"},
			{"김철수", "010-9", "memo kept by ops"},
			{"이영희", "010-2"},
		}, Normalize(rows))
	})

	t.Run("WriteRows with no rows", func(t *testing.T) {
		a := factory(t, SheetName, seed)
		ctx := context.Background()

		require.NoError(t, a.WriteRows(ctx, SheetName, nil))

		rows, err := a.ReadAllRows(ctx, SheetName)
		require.NoError(t, err)
		assert.Equal(t, seed, Normalize(rows))
	})

	t.Run("Clear and Save", func(t *testing.T) {
		a := factory(t, SheetName, seed)
		ctx := context.Background()

		table := &sheetedit.Table{
			Columns: []string{"영업자", "전화번호"},
			Rows: []*sheetedit.Row{
				{Key: 2, Values: map[string]sheetedit.Value{
					"영업자":  sheetedit.Text("박민수"),
					"전화번호": sheetedit.Text("010-1111-2222"),
				}},
			},
		}

		require.NoError(t, a.Clear(ctx, SheetName))
		require.NoError(t, a.Save(ctx, SheetName, table))

		rows, err := a.ReadAllRows(ctx, SheetName)
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"영업자", "전화번호"},
			{"박민수", "010-1111-2222"},
		}, Normalize(rows))
	})
}

// Normalize renders raw cells as text and drops trailing blank cells and rows,
// which backends are free to omit.
func Normalize(rows [][]interface{}) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			if c != nil {
				cells[i] = fmt.Sprint(c)
			}
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		out = append(out, cells)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}
