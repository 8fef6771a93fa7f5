package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sitenotes/internal/paths"
)

func newInitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file and note database",
		Long: `Init writes a default config.yaml if none exists and creates the note
database in the data directory. Running it again is harmless.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.store()
			if err != nil {
				return err
			}
			out := struct {
				ConfigFile string `json:"config_file"`
				DataDir    string `json:"data_dir"`
				Database   string `json:"database"`
			}{
				ConfigFile: filepath.Join(e.configDir, paths.ConfigFileName),
				DataDir:    e.dataDir,
				Database:   store.Path(),
			}
			if e.jsonMode {
				return printJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Config:   %s\n", out.ConfigFile)
			fmt.Fprintf(w, "Database: %s\n", out.Database)
			return nil
		},
	}
}
