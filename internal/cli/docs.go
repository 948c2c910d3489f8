package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/smessmer/codaio-exporter/internal/coda"
)

// docEntry is one row of the docs listing, in both text and JSON output.
type docEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Folder string `json:"folder"`
	Owner  string `json:"owner"`
}

// NewDocsCommand creates the "docs" cobra command.
func NewDocsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List the coda.io documents the API token can access",
		Long: `List all documents visible to the configured API token, with the ids
needed for the --doc-id flags of export and reimport.

Examples:
  codaio-exporter docs
  codaio-exporter docs --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocs(cmd)
		},
	}

	return cmd
}

// runDocs is the main logic function for the docs command.
func runDocs(cmd *cobra.Command) error {
	_, logger, client, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var entries []docEntry
	listErr := client.Docs(cmd.Context(), func(doc *coda.Doc) error {
		entries = append(entries, docEntry{
			ID:     doc.ID(),
			Name:   doc.Name(),
			Folder: doc.FolderName(),
			Owner:  doc.OwnerName(),
		})
		return nil
	})
	if listErr != nil {
		return wrapRunError("failed to list documents", listErr)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	printDocsResult(entries)
	return nil
}

// printDocsResult outputs the document list in text or JSON format.
func printDocsResult(entries []docEntry) {
	if IsJSONOutput() {
		result := struct {
			Documents []docEntry `json:"documents"`
		}{
			// Empty slice instead of nil so JSON shows [] rather than null.
			Documents: make([]docEntry, 0, len(entries)),
		}
		result.Documents = append(result.Documents, entries...)

		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(entries) == 0 {
		fmt.Println("No documents found.")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "NAME", "FOLDER", "OWNER"})
	for _, entry := range entries {
		tw.AppendRow(table.Row{entry.ID, entry.Name, entry.Folder, entry.Owner})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}
