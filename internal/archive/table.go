package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"

	"github.com/smessmer/codaio-exporter/internal/coda"
	"github.com/smessmer/codaio-exporter/internal/model"
)

// Column is the archived form of a table column.
type Column struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Calculated bool    `json:"calculated"`
	Formula    *string `json:"formula,omitempty"`
}

// Row is the archived form of a table row. Cells are stored in column order,
// i.e. Cells[i] belongs to Table.Columns[i].
type Row struct {
	Cells []string `json:"cells"`
}

// Table is the archived form of a table. This is what table.json contains
// and what reimport consumes.
type Table struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Kind    model.TableKind `json:"kind"`
	Columns []Column        `json:"columns"`
	Rows    []Row           `json:"rows"`
}

// BuildTable converts API columns and rows into an archived Table.
//
// Rows are sorted by their display index so the archive reflects the order
// a user sees in Coda. Each row must have exactly one cell per column;
// a mismatch means the listing raced a schema change and aborts the export
// of this table rather than archiving a torn snapshot.
func BuildTable(id, name string, kind model.TableKind, columns []*coda.Column, rows []*coda.Row) (*Table, error) {
	sorted := make([]*coda.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index() < sorted[j].Index()
	})

	archived := &Table{
		ID:      id,
		Name:    name,
		Kind:    kind,
		Columns: make([]Column, 0, len(columns)),
		Rows:    make([]Row, 0, len(sorted)),
	}

	for _, column := range columns {
		archivedColumn := Column{
			ID:         column.ID(),
			Name:       column.Name(),
			Calculated: column.Calculated(),
		}
		if formula, ok := column.Formula(); ok {
			archivedColumn.Formula = &formula
		}
		archived.Columns = append(archived.Columns, archivedColumn)
	}

	for _, row := range sorted {
		if row.CellCount() != len(columns) {
			return nil, fmt.Errorf("row %s has wrong number of cells: expected %d columns but found %d",
				row.ID(), len(columns), row.CellCount())
		}
		cells := make([]string, 0, len(columns))
		for _, column := range columns {
			cell, err := row.CellString(column.ID())
			if err != nil {
				return nil, fmt.Errorf("row %s: %w", row.ID(), err)
			}
			cells = append(cells, cell)
		}
		archived.Rows = append(archived.Rows, Row{Cells: cells})
	}

	return archived, nil
}

// Validate checks the structural invariants of an archived table. It is
// called after reading table.json from disk, where the file may have been
// hand-edited or truncated.
func (t *Table) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("archived table has no id")
	}
	if t.Name == "" {
		return fmt.Errorf("archived table %s has no name", t.ID)
	}
	if !t.Kind.IsValid() {
		return fmt.Errorf("archived table %s has invalid kind %q", t.ID, string(t.Kind))
	}
	for i, row := range t.Rows {
		if len(row.Cells) != len(t.Columns) {
			return fmt.Errorf("archived table %s: row %d has %d cells but table has %d columns",
				t.ID, i, len(row.Cells), len(t.Columns))
		}
	}
	return nil
}

// WriteJSON writes the table as indented JSON (the table.json format).
func (t *Table) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode table %s: %w", t.ID, err)
	}
	return nil
}

// ReadTableJSON reads and validates a table from its table.json content.
func ReadTableJSON(r io.Reader) (*Table, error) {
	var t Table
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode archived table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// WriteCSV writes the table as CSV: one header row with the column names,
// then one record per row. Every field is quoted, not just the ones that
// need it, so the files stay byte-stable across cell content changes.
// encoding/csv only quotes on demand, hence the manual record writer.
func (t *Table) WriteCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)

	header := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		header = append(header, column.Name)
	}
	if err := writeCSVRecord(bw, header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i, row := range t.Rows {
		if err := writeCSVRecord(bw, row.Cells); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	return bw.Flush()
}

// writeCSVRecord writes one record with every field quoted. Quotes inside a
// field are doubled per RFC 4180.
func writeCSVRecord(bw *bufio.Writer, fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := bw.WriteByte(','); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('"'); err != nil {
			return err
		}
		if _, err := bw.WriteString(strings.ReplaceAll(field, `"`, `""`)); err != nil {
			return err
		}
		if err := bw.WriteByte('"'); err != nil {
			return err
		}
	}
	return bw.WriteByte('\n')
}

// htmlTableTemplate renders a table as a standalone HTML page. Column
// headers carry the formula in the title attribute so hovering a header
// shows how a calculated column was computed. html/template escapes all
// interpolated text and attribute values.
var htmlTableTemplate = template.Must(template.New("table").Parse(
	`<html><head></head><body><table><thead><tr>` +
		`{{range .Headers}}<th title="{{.Title}}">{{.Name}}</th>{{end}}` +
		`</tr></thead><tbody>` +
		`{{range .Rows}}<tr>{{range .Cells}}<td>{{.}}</td>{{end}}</tr>{{end}}` +
		`</tbody></table></body></html>`))

// htmlHeader is the template model for one column header.
type htmlHeader struct {
	Name  string
	Title string
}

// WriteHTML writes the table as a standalone HTML page.
func (t *Table) WriteHTML(w io.Writer) error {
	headers := make([]htmlHeader, 0, len(t.Columns))
	for _, column := range t.Columns {
		title := "no formula"
		if column.Formula != nil {
			title = *column.Formula
		}
		headers = append(headers, htmlHeader{Name: column.Name, Title: title})
	}

	data := struct {
		Headers []htmlHeader
		Rows    []Row
	}{Headers: headers, Rows: t.Rows}

	if err := htmlTableTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render table %s as html: %w", t.ID, err)
	}
	return nil
}
