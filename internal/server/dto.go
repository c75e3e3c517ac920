package server

import (
	"fmt"
	"time"

	sheetedit "github.com/ideamans/go-sheetedit"
)

// RowDTO is one row on the wire. Row is the sheet row number; new rows omit it.
// Version fingerprints the cells as served and must be sent back unchanged.
type RowDTO struct {
	Row     int               `json:"row,omitempty"`
	TempID  string            `json:"temp_id,omitempty"`
	Version string            `json:"version,omitempty"`
	Cells   []sheetedit.Value `json:"cells"`
}

// ViewResponse is the body of GET /api/rows
type ViewResponse struct {
	Sheet     string    `json:"sheet"`
	Identity  string    `json:"identity"`
	Columns   []string  `json:"columns"`
	Rows      []RowDTO  `json:"rows"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SaveRequest is the body of PUT /api/rows. FetchedAt echoes the value
// of the ViewResponse the edit started from.
type SaveRequest struct {
	Columns   []string  `json:"columns"`
	Rows      []RowDTO  `json:"rows"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error    string                  `json:"error"`
	Rows     []int                   `json:"rows,omitempty"`
	Problems []sheetedit.CellProblem `json:"problems,omitempty"`
}

func toViewResponse(view *sheetedit.View) ViewResponse {
	resp := ViewResponse{
		Sheet:     view.Sheet,
		Identity:  view.Identity,
		Columns:   view.Columns,
		Rows:      make([]RowDTO, len(view.Rows)),
		FetchedAt: view.FetchedAt,
	}
	for i, r := range view.Rows {
		cells := r.Cells(view.Columns)
		resp.Rows[i] = RowDTO{
			Row:     r.Key,
			TempID:  r.TempID,
			Version: sheetedit.Fingerprint(cells),
			Cells:   cells,
		}
	}
	return resp
}

// toTable validates a SaveRequest and turns it into a candidate table
func (req SaveRequest) toTable() (*sheetedit.Table, error) {
	if len(req.Columns) == 0 {
		return nil, fmt.Errorf("columns are required")
	}
	table := &sheetedit.Table{
		Columns: req.Columns,
		Rows:    make([]*sheetedit.Row, len(req.Rows)),
	}
	for i, dto := range req.Rows {
		if len(dto.Cells) != len(req.Columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i+1, len(dto.Cells), len(req.Columns))
		}
		if dto.Row < 0 {
			return nil, fmt.Errorf("row %d has a negative row number", i+1)
		}
		if dto.Row > 0 && dto.Version == "" {
			return nil, fmt.Errorf("row %d has no version", dto.Row)
		}
		row := &sheetedit.Row{
			Key:     dto.Row,
			TempID:  dto.TempID,
			Version: dto.Version,
			Values:  make(map[string]sheetedit.Value, len(req.Columns)),
		}
		for j, col := range req.Columns {
			row.Values[col] = dto.Cells[j]
		}
		table.Rows[i] = row
	}
	return table, nil
}
