package coda

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseRow verifies the parsed accessors of a row payload.
func TestParseRow(t *testing.T) {
	row, err := ParseRow(json.RawMessage(`{
		"id": "i-1", "index": 7,
		"values": {"c-1": "hello", "c-2": 42}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "i-1", row.ID())
	assert.Equal(t, 7, row.Index())
	assert.Equal(t, 2, row.CellCount())
}

// TestParseRow_MissingID verifies that a row without an id is rejected.
func TestParseRow_MissingID(t *testing.T) {
	_, err := ParseRow(json.RawMessage(`{"index": 0, "values": {}}`))
	assert.Error(t, err)
}

// TestRow_CellString covers the text rendering of all JSON cell value
// shapes the API can return.
func TestRow_CellString(t *testing.T) {
	row, err := ParseRow(json.RawMessage(`{
		"id": "i-1", "index": 0,
		"values": {
			"str":    "plain text",
			"int":    42,
			"float":  3.14,
			"bigint": 90071992547409921,
			"bool":   true,
			"null":   null,
			"list":   ["a", "b"],
			"obj":    {"name": "Alice", "url": "https://example.com"}
		}
	}`))
	require.NoError(t, err)

	tests := []struct {
		column   string
		expected string
	}{
		{"str", "plain text"},
		{"int", "42"},
		{"float", "3.14"},
		// Large integers must not round-trip through float64.
		{"bigint", "90071992547409921"},
		{"bool", "true"},
		{"null", ""},
		{"list", `["a","b"]`},
		{"obj", `{"name":"Alice","url":"https://example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got, err := row.CellString(tt.column)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestRow_CellString_MissingColumn verifies the error for an unknown column id.
func TestRow_CellString_MissingColumn(t *testing.T) {
	row, err := ParseRow(json.RawMessage(`{"id": "i-1", "index": 0, "values": {"c-1": "x"}}`))
	require.NoError(t, err)

	_, err = row.CellString("c-unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c-unknown")
}

// TestParseColumn verifies the parsed accessors of a column payload,
// including the optional formula.
func TestParseColumn(t *testing.T) {
	withFormula, err := ParseColumn(json.RawMessage(`{
		"id": "c-1", "name": "Total", "calculated": true, "formula": "Sum(Amount)"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "c-1", withFormula.ID())
	assert.Equal(t, "Total", withFormula.Name())
	assert.True(t, withFormula.Calculated())
	formula, ok := withFormula.Formula()
	require.True(t, ok)
	assert.Equal(t, "Sum(Amount)", formula)

	withoutFormula, err := ParseColumn(json.RawMessage(`{"id": "c-2", "name": "Amount"}`))
	require.NoError(t, err)
	assert.False(t, withoutFormula.Calculated())
	_, ok = withoutFormula.Formula()
	assert.False(t, ok)
}
