package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smessmer/codaio-exporter/internal/coda"
	"github.com/smessmer/codaio-exporter/internal/model"
)

// File and directory names inside an export tree.
const (
	DocFileName      = "doc.json"
	TablesDirName    = "tables"
	TableFileName    = "table.json"
	ColumnsDirName   = "columns"
	RowsCSVFileName  = "rows.csv"
	RowsHTMLFileName = "rows.html"
)

// SanitizePathComponent makes a name safe to use as a single path element.
// Slashes and NUL bytes are replaced with underscores; everything else is
// kept verbatim so archive directories stay recognizable.
func SanitizePathComponent(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "\x00", "_")
	return name
}

// pathComponent builds the "<name> <id>" directory naming used throughout
// the archive. Folder names can be empty when the token cannot see them.
func pathComponent(name, id string) string {
	return SanitizePathComponent(strings.TrimSpace(name + " " + id))
}

// InitRoot creates the export root directory. The directory must not exist
// yet: an export never overwrites or mixes into a previous one.
func InitRoot(root string) error {
	if _, err := os.Stat(root); err == nil {
		return fmt.Errorf("export directory %q already exists", root)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat export directory %q: %w", root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create export directory %q: %w", root, err)
	}
	return nil
}

// DocDir returns the archive directory for a document:
// <root>/<folderName folderId>/<docName docId>.
func DocDir(root string, doc *coda.Doc) string {
	folder := pathComponent(doc.FolderName(), doc.FolderID())
	name := pathComponent(doc.Name(), doc.ID())
	return filepath.Join(root, folder, name)
}

// WriteDoc creates the document directory and writes doc.json.
// Returns the document directory path.
func WriteDoc(root string, doc *coda.Doc) (string, error) {
	docDir := DocDir(root, doc)
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		return "", fmt.Errorf("create document directory: %w", err)
	}
	if err := writeJSONFile(filepath.Join(docDir, DocFileName), doc.Raw()); err != nil {
		return "", err
	}
	return docDir, nil
}

// TableDir returns the archive directory for a table:
// <docDir>/tables/<kind>/<tableName tableId>.
func TableDir(docDir string, t *Table) string {
	return filepath.Join(docDir, TablesDirName, t.Kind.String(), pathComponent(t.Name, t.ID))
}

// WriteTable writes a complete table directory: table.json, the raw column
// payloads, and the CSV and HTML renderings. Returns the table directory.
func WriteTable(docDir string, t *Table, columns []*coda.Column) (string, error) {
	tableDir := TableDir(docDir, t)
	if err := os.MkdirAll(tableDir, 0o755); err != nil {
		return "", fmt.Errorf("create table directory: %w", err)
	}

	tableFile, err := os.Create(filepath.Join(tableDir, TableFileName))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", TableFileName, err)
	}
	if err := t.WriteJSON(tableFile); err != nil {
		_ = tableFile.Close()
		return "", err
	}
	if err := tableFile.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", TableFileName, err)
	}

	columnsDir := filepath.Join(tableDir, ColumnsDirName)
	if err := os.MkdirAll(columnsDir, 0o755); err != nil {
		return "", fmt.Errorf("create columns directory: %w", err)
	}
	for _, column := range columns {
		file := filepath.Join(columnsDir, pathComponent(column.Name(), column.ID())+".json")
		if err := writeJSONFile(file, column.Raw()); err != nil {
			return "", err
		}
	}

	csvFile, err := os.Create(filepath.Join(tableDir, RowsCSVFileName))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", RowsCSVFileName, err)
	}
	if err := t.WriteCSV(csvFile); err != nil {
		_ = csvFile.Close()
		return "", err
	}
	if err := csvFile.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", RowsCSVFileName, err)
	}

	htmlFile, err := os.Create(filepath.Join(tableDir, RowsHTMLFileName))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", RowsHTMLFileName, err)
	}
	if err := t.WriteHTML(htmlFile); err != nil {
		_ = htmlFile.Close()
		return "", err
	}
	if err := htmlFile.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", RowsHTMLFileName, err)
	}

	return tableDir, nil
}

// ReadTables reads every archived table of the given kind from a document
// directory. Returns an empty slice when the kind directory does not exist
// (a document can legitimately have no tables or no views).
func ReadTables(docDir string, kind model.TableKind) ([]*Table, error) {
	kindDir := filepath.Join(docDir, TablesDirName, kind.String())
	entries, err := os.ReadDir(kindDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive directory %q: %w", kindDir, err)
	}

	var tables []*Table
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tablePath := filepath.Join(kindDir, entry.Name(), TableFileName)
		file, err := os.Open(tablePath)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", tablePath, err)
		}
		table, err := ReadTableJSON(file)
		_ = file.Close()
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", tablePath, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// writeJSONFile writes a raw JSON payload to a file, indented for
// readability. Invalid JSON is written verbatim rather than lost.
func writeJSONFile(path string, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}
