package sheetedit

// HeaderRows is the number of rows above the data; row 1 holds the column names
const HeaderRows = 1

// FirstDataRow is the remote position of the first data row
const FirstDataRow = HeaderRows + 1

// Row is one data row of a sheet.
// Key is the row's position in the sheet; rows not yet persisted have Key 0
// and are told apart by TempID.
type Row struct {
	Key     int              // sheet row number, FirstDataRow or higher
	TempID  string           // temporary id of an unsaved row
	Version string           // fingerprint of the cells an edit started from, empty when unknown
	Values  map[string]Value // cells by column name
}

// Get returns the cell for col, Empty when unset
func (r *Row) Get(col string) Value {
	if r.Values == nil {
		return Empty()
	}
	return r.Values[col]
}

// Set stores a cell value
func (r *Row) Set(col string, v Value) {
	if r.Values == nil {
		r.Values = make(map[string]Value)
	}
	r.Values[col] = v
}

// Cells returns the row's values in column order
func (r *Row) Cells(columns []string) []Value {
	cells := make([]Value, len(columns))
	for i, col := range columns {
		cells[i] = r.Get(col)
	}
	return cells
}

// IsBlank reports whether every cell of the row is empty
func (r *Row) IsBlank() bool {
	for _, v := range r.Values {
		if !v.IsEmpty() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the row
func (r *Row) Clone() *Row {
	c := &Row{
		Key:     r.Key,
		TempID:  r.TempID,
		Version: r.Version,
		Values:  make(map[string]Value, len(r.Values)),
	}
	for k, v := range r.Values {
		c.Values[k] = v
	}
	return c
}

// Table is an ordered set of rows sharing one header
type Table struct {
	Columns []string
	Rows    []*Row
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether col is part of the header
func (t *Table) HasColumn(col string) bool {
	return hasColumn(t.Columns, col)
}

// Index maps persisted row keys to rows
func (t *Table) Index() map[int]*Row {
	idx := make(map[int]*Row, len(t.Rows))
	for _, r := range t.Rows {
		if r.Key > 0 {
			idx[r.Key] = r
		}
	}
	return idx
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	c := &Table{
		Columns: make([]string, len(t.Columns)),
		Rows:    make([]*Row, len(t.Rows)),
	}
	copy(c.Columns, t.Columns)
	for i, r := range t.Rows {
		c.Rows[i] = r.Clone()
	}
	return c
}

// Grid renders the table as header plus text-coerced data rows
func (t *Table) Grid() [][]string {
	grid := make([][]string, 0, len(t.Rows)+1)
	header := make([]string, len(t.Columns))
	copy(header, t.Columns)
	grid = append(grid, header)
	for _, r := range t.Rows {
		grid = append(grid, TextCells(r.Cells(t.Columns)))
	}
	return grid
}

// TextCells coerces cells to their written text form
func TextCells(cells []Value) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.String()
	}
	return out
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ColumnName converts a column number to its letter name (1 -> A, 26 -> Z, 27 -> AA)
func ColumnName(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
