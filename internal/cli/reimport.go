package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smessmer/codaio-exporter/internal/model"
	"github.com/smessmer/codaio-exporter/internal/reimport"
)

// reimportFlags holds the flag values for the reimport command.
type reimportFlags struct {
	srcDir string // --src-dir: document directory of a previous export
	docID  string // --doc-id: destination document
	dryRun bool   // --dry-run: report without mutating
}

// NewReimportCommand creates the "reimport" cobra command.
func NewReimportCommand() *cobra.Command {
	flags := &reimportFlags{}

	cmd := &cobra.Command{
		Use:   "reimport",
		Short: "Reimport previously exported tables into a coda.io document",
		Long: `Read a document directory produced by the export command and upsert its
table rows into the destination document.

Archived tables are matched to destination tables by name. Views and
calculated columns are skipped; their content is derived and will be
recomputed by the destination document.

Examples:
  codaio-exporter reimport --src-dir "./backup/My Folder f-1/My Doc d-1" --doc-id AbCDewqjJk
  codaio-exporter reimport --src-dir ./backup/... --doc-id AbCDewqjJk --dry-run`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runReimport(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.srcDir, "src-dir", "", "Document directory of a previous export (required)")
	cmd.Flags().StringVar(&flags.docID, "doc-id", "", "Id of the destination coda.io document (required)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Report what would be pushed without modifying the document")
	_ = cmd.MarkFlagRequired("src-dir")
	_ = cmd.MarkFlagRequired("doc-id")

	return cmd
}

// runReimport is the main logic function for the reimport command.
func runReimport(cmd *cobra.Command, flags *reimportFlags) error {
	if err := model.ValidateDocID(flags.docID); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid --doc-id", err)
	}

	_, logger, client, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reporter, stopReporter := newReporter()
	reimporter := reimport.NewReimporter(client, reimport.Options{
		DryRun:   flags.dryRun,
		Reporter: reporter,
		Logger:   logger,
	})

	summary, runErr := reimporter.Doc(cmd.Context(), flags.srcDir, flags.docID)
	stopReporter()

	if runErr != nil {
		if errors.Is(runErr, fs.ErrNotExist) {
			return model.WrapCLIError(model.ExitNotFound, "source directory not found", runErr)
		}
		if errors.Is(runErr, reimport.ErrNoArchivedTables) {
			return model.WrapCLIError(model.ExitArchiveError, "reimport failed", runErr)
		}
		return wrapRunError("reimport failed", runErr)
	}

	printReimportResult(summary)
	return nil
}

// printReimportResult outputs the reimport summary in text or JSON format.
func printReimportResult(summary *reimport.Summary) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(data))
		return
	}

	verb := "Reimported"
	if summary.DryRun {
		verb = "Would reimport"
	}

	totalRows := 0
	for _, t := range summary.Tables {
		totalRows += t.Rows
	}
	fmt.Printf("%s %d row(s) into %d table(s)\n", verb, totalRows, len(summary.Tables))

	for _, t := range summary.Tables {
		line := fmt.Sprintf("  %s: %d row(s)", t.Name, t.Rows)
		if len(t.SkippedColumns) > 0 {
			line += fmt.Sprintf(" (skipped calculated columns: %s)", strings.Join(t.SkippedColumns, ", "))
		}
		fmt.Println(line)
	}
}
