// Package model defines the domain types shared across the codaio-exporter
// CLI: the table kind enumeration, identifier validation, and the
// exit-code-carrying error type used at the CLI boundary.
package model
