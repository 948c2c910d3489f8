package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smessmer/codaio-exporter/internal/export"
	"github.com/smessmer/codaio-exporter/internal/model"
)

// exportFlags holds the flag values for the export command.
type exportFlags struct {
	outDir string // --out-dir: destination directory, must not exist yet
	docID  string // --doc-id: limit the export to one document
}

// NewExportCommand creates the "export" cobra command.
func NewExportCommand() *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export coda.io documents to a local directory",
		Long: `Export the tables of all documents the API token can access (or a single
document with --doc-id) into a new directory.

Each table is written as table.json (the authoritative archive format),
rows.csv and rows.html, alongside the raw document and column metadata.
The destination directory must not exist yet; exports never overwrite.

Examples:
  codaio-exporter export --out-dir ./backup
  codaio-exporter export --out-dir ./backup --doc-id AbCDewqjJk`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.outDir, "out-dir", "", "Destination directory to export to (required)")
	cmd.Flags().StringVar(&flags.docID, "doc-id", "", "Limit export to the document with the given id")
	cmd.Flags().Int("concurrency", 0, "Max tables exported in parallel per document (overrides config)")
	_ = cmd.MarkFlagRequired("out-dir")

	return cmd
}

// runExport is the main logic function for the export command.
func runExport(cmd *cobra.Command, flags *exportFlags) error {
	if flags.docID != "" {
		if err := model.ValidateDocID(flags.docID); err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "invalid --doc-id", err)
		}
	}

	cfg, logger, client, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reporter, stopReporter := newReporter()
	exporter := export.NewExporter(client, export.Options{
		Concurrency: cfg.Concurrency,
		Reporter:    reporter,
		Logger:      logger,
	})

	var stats *export.Stats
	var exportErr error
	if flags.docID == "" {
		stats, exportErr = exporter.All(cmd.Context(), flags.outDir)
	} else {
		stats, exportErr = exporter.Doc(cmd.Context(), flags.outDir, flags.docID)
	}
	stopReporter()

	if exportErr != nil {
		return wrapRunError("export failed", exportErr)
	}

	printExportResult(flags.outDir, stats)
	return nil
}

// printExportResult outputs the export summary in text or JSON format.
func printExportResult(outDir string, stats *export.Stats) {
	if IsJSONOutput() {
		result := struct {
			OutDir string `json:"outDir"`
			Docs   int64  `json:"docs"`
			Tables int64  `json:"tables"`
		}{OutDir: outDir, Docs: stats.Docs, Tables: stats.Tables}

		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Exported %d document(s) with %d table(s) to %s\n", stats.Docs, stats.Tables, outDir)
}
