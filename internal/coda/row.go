package coda

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// rowMeta holds the fields of the row payload the exporter reads. Cell
// values stay raw JSON until rendered, so numbers keep their exact literal
// form instead of round-tripping through float64.
type rowMeta struct {
	ID     string                     `json:"id"`
	Index  int                        `json:"index"`
	Values map[string]json.RawMessage `json:"values"`
}

// Row is a table row as returned by the API. Cells are keyed by column id.
type Row struct {
	meta rowMeta
}

// ParseRow parses a raw row payload as returned by the rows list endpoint.
func ParseRow(raw json.RawMessage) (*Row, error) {
	var meta rowMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse row payload: %w", err)
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("row payload has no id: %s", string(raw))
	}
	return &Row{meta: meta}, nil
}

// ID returns the row id.
func (r *Row) ID() string { return r.meta.ID }

// Index returns the display position of the row within its table.
func (r *Row) Index() int { return r.meta.Index }

// CellCount returns the number of cells in the row.
func (r *Row) CellCount() int { return len(r.meta.Values) }

// CellString returns the cell for the given column rendered as text.
// Returns an error if the row has no cell for that column.
func (r *Row) CellString(columnID string) (string, error) {
	raw, ok := r.meta.Values[columnID]
	if !ok {
		return "", fmt.Errorf("row %s has no cell for column %s", r.meta.ID, columnID)
	}
	return renderCellValue(raw)
}

// renderCellValue turns a raw JSON cell value into the text form used in
// CSV/HTML output and archived rows:
//
//	string  → verbatim
//	number  → the JSON literal, unchanged (no float round-trip)
//	bool    → "true" / "false"
//	null    → ""
//	other   → compact JSON (arrays and rich-value objects)
func renderCellValue(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("decode cell value %q: %w", string(raw), err)
	}

	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case json.Number:
		return x.String(), nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", fmt.Errorf("compact cell value: %w", err)
		}
		return buf.String(), nil
	}
}
