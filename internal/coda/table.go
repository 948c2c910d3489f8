package coda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/smessmer/codaio-exporter/internal/model"
)

// tableMeta holds the fields of the table payload the exporter reads.
type tableMeta struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TableType string `json:"tableType"`
}

// Table is a table or view as returned by the API.
type Table struct {
	c       *Client
	apiRoot string
	meta    tableMeta
	kind    model.TableKind
}

// newTable parses a raw table payload. The tableType field must be a known
// kind; an unknown kind is an error rather than a silent skip, because it
// would otherwise produce an archive that reimport cannot interpret.
func newTable(c *Client, docRoot string, raw json.RawMessage) (*Table, error) {
	var meta tableMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse table payload: %w", err)
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("table payload has no id: %s", string(raw))
	}
	kind, err := model.ParseTableKind(meta.TableType)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", meta.ID, err)
	}
	return &Table{
		c:       c,
		apiRoot: docRoot + "/tables/" + url.PathEscape(meta.ID),
		meta:    meta,
		kind:    kind,
	}, nil
}

// ID returns the table id.
func (t *Table) ID() string { return t.meta.ID }

// Name returns the table name.
func (t *Table) Name() string { return t.meta.Name }

// Kind reports whether this is a real table or a view.
func (t *Table) Kind() model.TableKind { return t.kind }

// Columns iterates over all columns of the table, calling fn for each.
func (t *Table) Columns(ctx context.Context, fn func(*Column) error) error {
	return t.c.forEach(ctx, t.apiRoot+"/columns", nil, func(item json.RawMessage) error {
		column, err := ParseColumn(item)
		if err != nil {
			return err
		}
		return fn(column)
	})
}

// Rows iterates over all rows of the table, calling fn for each. Rows come
// back in API order, which is not necessarily display order; callers sort
// by Row.Index before rendering.
func (t *Table) Rows(ctx context.Context, fn func(*Row) error) error {
	return t.c.forEach(ctx, t.apiRoot+"/rows", nil, func(item json.RawMessage) error {
		row, err := ParseRow(item)
		if err != nil {
			return err
		}
		return fn(row)
	})
}
