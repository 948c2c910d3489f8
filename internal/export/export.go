package export

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smessmer/codaio-exporter/internal/archive"
	"github.com/smessmer/codaio-exporter/internal/coda"
)

// defaultConcurrency limits how many tables of one document are exported
// in parallel.
const defaultConcurrency = 10

// Options configures an Exporter. All fields are optional.
type Options struct {
	// Concurrency is the maximum number of tables exported in parallel
	// per document.
	Concurrency int

	// Reporter receives progress events. Defaults to NopReporter.
	Reporter Reporter

	// Logger receives per-table errors as they happen.
	Logger *zap.Logger
}

// Stats summarizes a finished export.
type Stats struct {
	// Docs is the number of documents written.
	Docs int64 `json:"docs"`

	// Tables is the number of tables and views written.
	Tables int64 `json:"tables"`
}

// Exporter writes documents from the Coda API into an archive tree.
type Exporter struct {
	client      *coda.Client
	concurrency int
	reporter    Reporter
	log         *zap.Logger
}

// NewExporter creates an Exporter on top of an API client.
func NewExporter(client *coda.Client, opts Options) *Exporter {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Exporter{
		client:      client,
		concurrency: opts.Concurrency,
		reporter:    opts.Reporter,
		log:         opts.Logger,
	}
}

// All exports every document the API token can access into root.
// The root directory must not exist yet.
func (e *Exporter) All(ctx context.Context, root string) (*Stats, error) {
	if err := archive.InitRoot(root); err != nil {
		return nil, err
	}

	stats := &Stats{}
	g, gctx := errgroup.WithContext(ctx)

	listErr := e.client.Docs(gctx, func(doc *coda.Doc) error {
		g.Go(func() error {
			return e.exportDoc(gctx, root, doc, stats)
		})
		return nil
	})

	// Even when the listing fails midway, wait for the exports that
	// already started before reporting anything.
	if err := errors.Join(listErr, g.Wait()); err != nil {
		return nil, err
	}
	return stats, nil
}

// Doc exports a single document into root. The root directory must not
// exist yet.
func (e *Exporter) Doc(ctx context.Context, root, docID string) (*Stats, error) {
	doc, err := e.client.GetDoc(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := archive.InitRoot(root); err != nil {
		return nil, err
	}

	stats := &Stats{}
	if err := e.exportDoc(ctx, root, doc, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// exportDoc writes one document directory and all of its tables.
func (e *Exporter) exportDoc(ctx context.Context, root string, doc *coda.Doc, stats *Stats) error {
	docDir, err := archive.WriteDoc(root, doc)
	if err != nil {
		return fmt.Errorf("document %q (%s): %w", doc.Name(), doc.ID(), err)
	}

	tracker := e.reporter.TaskStarted(doc.Name())
	defer tracker.Done()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	listErr := doc.Tables(gctx, func(table *coda.Table) error {
		tracker.AddTotal(1)
		g.Go(func() error {
			if err := e.exportTable(gctx, docDir, table); err != nil {
				// Log here so every table failure is visible even
				// though only the first one propagates.
				e.log.Error("table export failed",
					zap.String("doc", doc.Name()),
					zap.String("table", table.Name()),
					zap.Error(err))
				return fmt.Errorf("table %q (%s): %w", table.Name(), table.ID(), err)
			}
			tracker.AddDone(1)
			atomic.AddInt64(&stats.Tables, 1)
			return nil
		})
		return nil
	})

	if err := errors.Join(listErr, g.Wait()); err != nil {
		return fmt.Errorf("document %q (%s): %w", doc.Name(), doc.ID(), err)
	}

	atomic.AddInt64(&stats.Docs, 1)
	return nil
}

// exportTable fetches a table's columns and rows (concurrently, they are
// independent listings) and writes the table directory.
func (e *Exporter) exportTable(ctx context.Context, docDir string, table *coda.Table) error {
	var columns []*coda.Column
	var rows []*coda.Row

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return table.Columns(gctx, func(column *coda.Column) error {
			columns = append(columns, column)
			return nil
		})
	})
	g.Go(func() error {
		return table.Rows(gctx, func(row *coda.Row) error {
			rows = append(rows, row)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	archived, err := archive.BuildTable(table.ID(), table.Name(), table.Kind(), columns, rows)
	if err != nil {
		return err
	}
	if _, err := archive.WriteTable(docDir, archived, columns); err != nil {
		return err
	}
	return nil
}
