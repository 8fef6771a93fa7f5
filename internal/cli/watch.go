package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sitenotes/internal/inbox"
	"github.com/mesh-intelligence/sitenotes/internal/media"
	"github.com/mesh-intelligence/sitenotes/internal/paths"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

func newWatchCmd(e *env) *cobra.Command {
	var (
		site, dir string
		settle    time.Duration
		once      bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Import audio and image files dropped into a folder",
		Long: `Watch imports every audio or image file that appears in the inbox folder
as a note at --site, then moves the file into imported/. It runs until
interrupted; --once imports the files already present and exits.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = paths.InboxDir(e.dataDir)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating inbox: %w", err)
			}
			store, err := e.store()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			in := inbox.New(dir, site, media.New(store, media.WithLogger(e.logger)),
				inbox.WithSettle(settle),
				inbox.WithLogger(e.logger),
				inbox.WithImportHandler(func(r types.Record) {
					if e.jsonMode {
						_ = printJSON(w, r)
						return
					}
					fmt.Fprintf(w, "Imported %s %s\n", r.Kind(), r.Common().ID)
				}),
			)

			if once {
				_, err := in.Scan(cmd.Context())
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if !e.jsonMode {
				fmt.Fprintf(w, "Watching %s\n", dir)
			}
			return in.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site for imported notes")
	cmd.Flags().StringVar(&dir, "dir", "", "folder to watch (default: <data-dir>/inbox)")
	cmd.Flags().DurationVar(&settle, "settle", inbox.DefaultSettle, "quiet period before a file is imported")
	cmd.Flags().BoolVar(&once, "once", false, "import files already present and exit")
	return cmd
}

