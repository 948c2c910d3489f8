package reimport

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/smessmer/codaio-exporter/internal/archive"
	"github.com/smessmer/codaio-exporter/internal/coda"
	"github.com/smessmer/codaio-exporter/internal/export"
	"github.com/smessmer/codaio-exporter/internal/model"
)

// defaultBatchSize is how many rows go into one upsert request. The Coda
// API accepts large mutations, but smaller batches keep request bodies
// modest and make progress reporting useful.
const defaultBatchSize = 100

// ErrNoArchivedTables is returned when the source directory contains no
// archived tables, which usually means the path points somewhere other
// than a document directory of a previous export.
var ErrNoArchivedTables = errors.New("no archived tables found")

// Options configures a Reimporter. All fields are optional.
type Options struct {
	// BatchSize is the number of rows per upsert request.
	BatchSize int

	// DryRun computes the full summary without sending any mutation.
	DryRun bool

	// Reporter receives progress events. Defaults to export.NopReporter.
	Reporter export.Reporter

	// Logger receives per-table logs.
	Logger *zap.Logger
}

// TableSummary describes what was (or would be) pushed for one table.
type TableSummary struct {
	// Name is the table name, shared between archive and destination.
	Name string `json:"name"`

	// DestTableID is the id of the matched table in the destination doc.
	DestTableID string `json:"destTableId"`

	// Rows is the number of rows upserted.
	Rows int `json:"rows"`

	// SkippedColumns lists calculated columns whose cells were not pushed.
	SkippedColumns []string `json:"skippedColumns,omitempty"`
}

// Summary describes a finished (or dry-run) reimport.
type Summary struct {
	// DryRun records whether mutations were actually sent.
	DryRun bool `json:"dryRun"`

	// Tables has one entry per reimported table.
	Tables []TableSummary `json:"tables"`
}

// Reimporter pushes archived tables into a destination document.
type Reimporter struct {
	client    *coda.Client
	batchSize int
	dryRun    bool
	reporter  export.Reporter
	log       *zap.Logger
}

// NewReimporter creates a Reimporter on top of an API client.
func NewReimporter(client *coda.Client, opts Options) *Reimporter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Reporter == nil {
		opts.Reporter = export.NopReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Reimporter{
		client:    client,
		batchSize: opts.BatchSize,
		dryRun:    opts.DryRun,
		reporter:  opts.Reporter,
		log:       opts.Logger,
	}
}

// Doc reimports all archived tables from srcDir (a document directory of an
// export tree) into the document with the given id. A nonexistent srcDir is
// reported as such, distinct from an existing directory holding no tables.
func (r *Reimporter) Doc(ctx context.Context, srcDir, docID string) (*Summary, error) {
	if _, err := os.Stat(srcDir); err != nil {
		return nil, fmt.Errorf("source directory %q: %w", srcDir, err)
	}

	tables, err := archive.ReadTables(srcDir, model.KindTable)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w in %q: expected a document directory of a previous export", ErrNoArchivedTables, srcDir)
	}

	destTables, err := r.destTablesByName(ctx, docID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{DryRun: r.dryRun}
	for _, table := range tables {
		tableSummary, err := r.reimportTable(ctx, docID, table, destTables)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", table.Name, err)
		}
		summary.Tables = append(summary.Tables, *tableSummary)
	}
	return summary, nil
}

// destTablesByName fetches the destination document's tables and indexes
// them by name. Views are excluded: rows can only be upserted into real
// tables.
func (r *Reimporter) destTablesByName(ctx context.Context, docID string) (map[string]*coda.Table, error) {
	doc, err := r.client.GetDoc(ctx, docID)
	if err != nil {
		return nil, err
	}

	tables := make(map[string]*coda.Table)
	err = doc.Tables(ctx, func(table *coda.Table) error {
		if table.Kind() != model.KindTable {
			return nil
		}
		if existing, ok := tables[table.Name()]; ok {
			return fmt.Errorf("destination document has two tables named %q (%s and %s): cannot match archived tables by name",
				table.Name(), existing.ID(), table.ID())
		}
		tables[table.Name()] = table
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// reimportTable pushes one archived table into its destination counterpart.
func (r *Reimporter) reimportTable(ctx context.Context, docID string, table *archive.Table, destTables map[string]*coda.Table) (*TableSummary, error) {
	dest, ok := destTables[table.Name]
	if !ok {
		return nil, fmt.Errorf("destination document has no table named %q", table.Name)
	}

	rows, skipped := buildRowEdits(table)
	summary := &TableSummary{
		Name:           table.Name,
		DestTableID:    dest.ID(),
		Rows:           len(rows),
		SkippedColumns: skipped,
	}

	tracker := r.reporter.TaskStarted(table.Name)
	defer tracker.Done()
	tracker.AddTotal(int64(len(rows)))

	if r.dryRun {
		r.log.Info("dry run, not pushing rows",
			zap.String("table", table.Name), zap.Int("rows", len(rows)))
		tracker.AddDone(int64(len(rows)))
		return summary, nil
	}

	for start := 0; start < len(rows); start += r.batchSize {
		end := start + r.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		req := coda.UpsertRowsRequest{Rows: rows[start:end]}
		if err := r.client.UpsertRows(ctx, docID, dest.ID(), req); err != nil {
			return nil, err
		}
		tracker.AddDone(int64(end - start))
	}
	return summary, nil
}

// buildRowEdits converts archived rows into upsert payloads, dropping
// cells of calculated columns. Returns the edits and the names of the
// skipped columns.
func buildRowEdits(table *archive.Table) ([]coda.RowEdit, []string) {
	var skipped []string
	pushable := make([]int, 0, len(table.Columns))
	for i, column := range table.Columns {
		if column.Calculated {
			skipped = append(skipped, column.Name)
			continue
		}
		pushable = append(pushable, i)
	}

	rows := make([]coda.RowEdit, 0, len(table.Rows))
	for _, row := range table.Rows {
		cells := make([]coda.CellEdit, 0, len(pushable))
		for _, i := range pushable {
			cells = append(cells, coda.CellEdit{
				Column: table.Columns[i].Name,
				Value:  row.Cells[i],
			})
		}
		rows = append(rows, coda.RowEdit{Cells: cells})
	}
	return rows, skipped
}
