package coda

import (
	"encoding/json"
	"fmt"
)

// columnMeta holds the fields of the column payload the exporter reads.
// Formula is a pointer because the API omits the field entirely for
// non-formula columns.
type columnMeta struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Calculated bool    `json:"calculated"`
	Formula    *string `json:"formula"`
}

// Column is a table column as returned by the API.
type Column struct {
	raw  json.RawMessage
	meta columnMeta
}

// ParseColumn parses a raw column payload as returned by the columns
// list endpoint.
func ParseColumn(raw json.RawMessage) (*Column, error) {
	var meta columnMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse column payload: %w", err)
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("column payload has no id: %s", string(raw))
	}
	return &Column{raw: raw, meta: meta}, nil
}

// Raw returns the unmodified API payload of the column.
func (c *Column) Raw() json.RawMessage { return c.raw }

// ID returns the column id.
func (c *Column) ID() string { return c.meta.ID }

// Name returns the column name.
func (c *Column) Name() string { return c.meta.Name }

// Calculated reports whether the column's cells are computed by a formula.
// Calculated cells are exported but never reimported.
func (c *Column) Calculated() bool { return c.meta.Calculated }

// Formula returns the column formula and whether one is set.
func (c *Column) Formula() (string, bool) {
	if c.meta.Formula == nil {
		return "", false
	}
	return *c.meta.Formula, true
}
