package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sitenotes/internal/archive"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

func newExportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export DIR",
		Short: "Write every note and payload to a directory",
		Long: `Export writes textNotes.jsonl, audioNotes.jsonl and imageNotes.jsonl plus
the media payloads to DIR. The directory can be kept in version control
and read back with import.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.store()
			if err != nil {
				return err
			}
			rep, err := archive.Export(cmd.Context(), store, args[0], archive.WithLogger(e.logger))
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), "Exported", rep, e.jsonMode)
		},
	}
}

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import DIR",
		Short: "Load notes and payloads from an export directory",
		Long: `Import reads a directory written by export. Notes with an ID already in
the store are replaced. Malformed lines are skipped and counted.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.store()
			if err != nil {
				return err
			}
			rep, err := archive.Import(cmd.Context(), store, args[0], archive.WithLogger(e.logger))
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), "Imported", rep, e.jsonMode)
		},
	}
}

func printReport(w io.Writer, verb string, rep archive.Report, jsonMode bool) error {
	if jsonMode {
		return printJSON(w, rep)
	}
	total := 0
	for _, k := range types.Kinds() {
		total += rep.Records[k]
	}
	fmt.Fprintf(w, "%s %d note(s) and %d payload(s)\n", verb, total, rep.Blobs)
	if rep.Orphans > 0 {
		fmt.Fprintf(w, "Notes without payload: %d\n", rep.Orphans)
	}
	if rep.Skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d\n", rep.Skipped)
	}
	return nil
}
