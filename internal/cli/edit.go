package cli

import (
	"bufio"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sitenotes/internal/app"
	"github.com/mesh-intelligence/sitenotes/internal/autosave"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

func newEditCmd(e *env) *cobra.Command {
	var site, title string
	cmd := &cobra.Command{
		Use:   "edit [ID]",
		Short: "Type a text note with autosave",
		Long: `Edit opens an autosaving editor on a new note, or on the text note ID.
Each line read from standard input is appended to the body as it arrives.
The note is first stored once the autosave threshold of active typing
has passed; a session shorter than that is discarded, as in the app.
End input (Ctrl-D) to close the editor.

Example:
  sitenotes edit --site "Shrine of the Báb" --title Terraces
  sitenotes edit 0192f4c1-7d2a-7c55-9c1e-5b8a0d6f3e21`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := e.store()
			if err != nil {
				return err
			}

			shell := app.New(store, e.config,
				app.WithLogger(e.logger),
				app.WithClock(e.clock),
				app.WithNotifier(func(n app.Notification) {
					if n.Err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", n.Message, n.Err)
					}
				}),
			)
			defer shell.Close(ctx)

			var ed *autosave.Editor
			if len(args) == 1 {
				ed, err = shell.EditTextNote(ctx, args[0])
				if err != nil {
					return err
				}
				if title != "" {
					ed.SetTitle(title)
				}
			} else {
				ed = shell.NewTextNoteFrom(ctx, autosave.Draft{Site: site, Title: title})
			}

			body := ed.Draft().Body
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if body != "" {
					body += "\n"
				}
				body += scanner.Text()
				ed.SetBody(body)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			typed := ed.ActiveTyping()
			shell.Back(ctx)

			rec, ok, err := store.Get(ctx, types.KindText, ed.ID())
			if err != nil {
				return err
			}
			saved := ok && types.Payload(rec) == ed.Draft().Body
			w := cmd.OutOrStdout()
			if e.jsonMode {
				if saved {
					return printJSON(w, rec)
				}
				return printJSON(w, map[string]any{"id": ed.ID(), "saved": false, "typed": typed.String()})
			}
			if !saved {
				fmt.Fprintf(w, "Not saved: %s of typing is under the %s threshold\n",
					typed.Round(100*time.Millisecond), e.config.WithDefaults().Autosave.Threshold)
				return nil
			}
			fmt.Fprintln(w, ed.ID())
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site for a new note")
	cmd.Flags().StringVar(&title, "title", "", "note title")
	return cmd
}
