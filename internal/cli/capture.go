package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sitenotes/internal/inbox"
	"github.com/mesh-intelligence/sitenotes/internal/media"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

func newCaptureCmd(e *env) *cobra.Command {
	var site, title, kind string
	cmd := &cobra.Command{
		Use:   "capture FILE",
		Short: "Store an audio or image file as a note",
		Long: `Capture stores the contents of an audio or image file as a new note.
The kind is taken from the file extension unless --kind is given.

Example:
  sitenotes capture --site Bahjí --title "Evening bells" bells.m4a
  sitenotes capture --site "Shrine of the Báb" --kind image photo.dat`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			k, err := captureKind(path, kind)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			store, err := e.store()
			if err != nil {
				return err
			}

			b := media.New(store, media.WithLogger(e.logger))
			rec, err := b.SaveMedia(cmd.Context(), k, data, inbox.ContentType(path, data), site, title)
			if err != nil {
				return err
			}
			if e.jsonMode {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.Common().ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site the note belongs to")
	cmd.Flags().StringVar(&title, "title", "", "note title")
	cmd.Flags().StringVar(&kind, "kind", "", "audio or image (default: from extension)")
	return cmd
}

func captureKind(path, flag string) (types.Kind, error) {
	if flag != "" {
		k, err := types.ParseKind(flag)
		if err != nil {
			return "", err
		}
		if !k.IsMedia() {
			return "", fmt.Errorf("%w: capture needs audio or image, got %q", types.ErrInvalidKind, flag)
		}
		return k, nil
	}
	k, ok := inbox.Classify(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", inbox.ErrUnsupported, filepath.Base(path))
	}
	return k, nil
}
