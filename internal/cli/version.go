package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the release version, overridable at link time with
// -ldflags "-X github.com/mesh-intelligence/sitenotes/internal/cli.Version=...".
var Version = "0.1.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  usageArgs(cobra.NoArgs),
		// version needs no config or store.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "sitenotes %s\n", Version)
			return nil
		},
	}
}
