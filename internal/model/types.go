package model

import (
	"fmt"
	"strings"
)

// TableKind distinguishes real tables from views in a Coda document.
// Views are saved filtered/sorted projections of a table; they are exported
// like tables but never reimported, because their cells are derived from
// the underlying table.
type TableKind string

const (
	// KindTable is a regular table that owns its rows.
	KindTable TableKind = "table"

	// KindView is a saved view onto another table.
	KindView TableKind = "view"
)

// String returns the string representation of the TableKind.
// It satisfies fmt.Stringer for CLI output and path construction.
func (k TableKind) String() string {
	return string(k)
}

// IsValid checks whether the TableKind is one of the values the Coda API
// reports in the "tableType" field.
func (k TableKind) IsValid() bool {
	switch k {
	case KindTable, KindView:
		return true
	default:
		return false
	}
}

// ParseTableKind converts a string to a TableKind.
// Returns an error if the string does not match any known kind.
func ParseTableKind(s string) (TableKind, error) {
	kind := TableKind(strings.ToLower(s))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid table kind: %q (valid: table, view)", s)
	}
	return kind, nil
}

// ValidateDocID checks that a document identifier is usable in API paths.
// Coda document ids are short opaque tokens; we only reject values that
// would break URL or filesystem path construction.
func ValidateDocID(id string) error {
	if id == "" {
		return fmt.Errorf("document id must not be empty")
	}
	if strings.ContainsAny(id, "/ \t\n") {
		return fmt.Errorf("invalid document id %q: must not contain slashes or whitespace", id)
	}
	return nil
}

// ExitCode defines the CLI exit codes. These codes allow scripts and CI
// systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitAuthError indicates the API token is missing or was rejected.
	ExitAuthError ExitCode = 2

	// ExitAPIError indicates the Coda API was unreachable or kept failing
	// after all retries were exhausted.
	ExitAPIError ExitCode = 3

	// ExitNotFound indicates a document id or archive directory does not exist.
	ExitNotFound ExitCode = 4

	// ExitArchiveError indicates a previously exported archive is malformed.
	ExitArchiveError ExitCode = 5
)

// CLIError is an error that carries an exit code. The CLI layer translates
// domain errors into CLIErrors so Execute can map them to process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface. The message includes the underlying
// error when present.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error, enabling errors.Is/errors.As checks
// through the CLIError wrapper.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError without an underlying cause.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a CLIError wrapping an underlying error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
