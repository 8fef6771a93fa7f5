package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sitenotes/internal/media"
	"github.com/mesh-intelligence/sitenotes/internal/query"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

func newAddCmd(e *env) *cobra.Command {
	var site, title string
	cmd := &cobra.Command{
		Use:   "add [body]",
		Short: "Add a text note",
		Long: `Add stores a text note at a site. The body is taken from the
arguments, or from standard input when no argument or "-" is given.

Example:
  sitenotes add --site "Shrine of the Báb" --title Terraces "nineteen terraces"
  echo "<p>gardens</p>" | sitenotes add --site Bahjí`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			store, err := e.store()
			if err != nil {
				return err
			}
			note := &types.TextNote{
				Meta: types.Meta{
					ID:      types.NewID(),
					Title:   title,
					Site:    site,
					Created: time.Now(),
				},
				Body: body,
			}
			if err := store.Put(cmd.Context(), note); err != nil {
				return err
			}
			if e.jsonMode {
				return printJSON(cmd.OutOrStdout(), note)
			}
			fmt.Fprintln(cmd.OutOrStdout(), note.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site the note belongs to")
	cmd.Flags().StringVar(&title, "title", "", "note title")
	return cmd
}

func readBody(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func newListCmd(e *env) *cobra.Command {
	var (
		site, kind, search, fuzzy string
		limit                     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first",
		Long: `List shows notes of every kind, newest first.

Example:
  sitenotes list --site Bahjí
  sitenotes list --kind image --limit 10
  sitenotes list --search terraces
  sitenotes list --fuzzy shrn --json`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.store()
			if err != nil {
				return err
			}
			svc := query.NewService(store)

			var records []types.Record
			switch {
			case kind != "":
				k, err := types.ParseKind(kind)
				if err != nil {
					return err
				}
				records, err = svc.Kind(cmd.Context(), k)
				if err != nil {
					return err
				}
				if site != "" {
					records = query.BySite(records, site)
				}
			case site != "":
				records, err = svc.Site(cmd.Context(), site)
			default:
				records, err = svc.All(cmd.Context())
			}
			if err != nil {
				return err
			}

			if search != "" {
				records = query.Search(records, search)
			}
			if fuzzy != "" {
				records = query.Rank(records, fuzzy)
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			return printRecords(cmd.OutOrStdout(), records, e.jsonMode)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "only notes at this site")
	cmd.Flags().StringVar(&kind, "kind", "", "only notes of this kind (text, audio, image)")
	cmd.Flags().StringVar(&search, "search", "", "only notes whose text contains this term")
	cmd.Flags().StringVar(&fuzzy, "fuzzy", "", "rank notes by fuzzy title match")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (0 = no limit)")
	return cmd
}

func newShowCmd(e *env) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "show KIND ID",
		Short: "Show one note",
		Long: `Show prints one note. For audio and image notes, --out writes the
stored payload to a file.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseKind(args[0])
			if err != nil {
				return err
			}
			store, err := e.store()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if !kind.IsMedia() {
				rec, ok, err := store.Get(cmd.Context(), kind, args[1])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s %s: %w", kind, args[1], types.ErrNotFound)
				}
				if e.jsonMode {
					return printJSON(w, rec)
				}
				printMeta(w, rec)
				fmt.Fprintf(w, "\n%s\n", query.PlainText(types.Payload(rec)))
				return nil
			}

			m, err := media.New(store, media.WithLogger(e.logger)).Open(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			if outFile != "" {
				if !m.Available {
					return fmt.Errorf("%s %s has no stored payload: %w", kind, args[1], types.ErrNotFound)
				}
				if err := os.WriteFile(outFile, m.Blob.Data, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", outFile, err)
				}
			}
			if e.jsonMode {
				out := struct {
					Record      types.Record `json:"record"`
					Available   bool         `json:"available"`
					ContentType string       `json:"contentType,omitempty"`
					Size        int64        `json:"size,omitempty"`
				}{Record: m.Record, Available: m.Available}
				if m.Available {
					out.ContentType = m.Blob.ContentType
					out.Size = m.Blob.Size()
				}
				return printJSON(w, out)
			}
			printMeta(w, m.Record)
			if !m.Available {
				fmt.Fprintln(w, "Payload: unavailable")
				return nil
			}
			fmt.Fprintf(w, "Payload: %s, %s\n", m.Blob.ContentType, humanize.Bytes(uint64(m.Blob.Size())))
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "write the media payload to this file")
	return cmd
}

func printMeta(w io.Writer, r types.Record) {
	m := r.Common()
	fmt.Fprintf(w, "ID:      %s\n", m.ID)
	fmt.Fprintf(w, "Kind:    %s\n", r.Kind())
	fmt.Fprintf(w, "Title:   %s\n", m.Title)
	fmt.Fprintf(w, "Site:    %s\n", m.Site)
	fmt.Fprintf(w, "Created: %s\n", m.EasyCreatedTime())
}

func newRenameCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rename KIND ID TITLE",
		Short: "Change the title of a note",
		Args:  usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseKind(args[0])
			if err != nil {
				return err
			}
			store, err := e.store()
			if err != nil {
				return err
			}
			rec, err := media.New(store, media.WithLogger(e.logger)).UpdateTitle(cmd.Context(), kind, args[1], args[2])
			if err != nil {
				return err
			}
			if e.jsonMode {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s %s\n", kind, args[1])
			return nil
		},
	}
}

func newDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KIND ID",
		Short: "Delete a note",
		Long: `Delete removes a note. Audio and image notes lose their stored payload
too. Deleting a note that does not exist succeeds.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseKind(args[0])
			if err != nil {
				return err
			}
			store, err := e.store()
			if err != nil {
				return err
			}
			if kind.IsMedia() {
				err = media.New(store, media.WithLogger(e.logger)).DeleteMedia(cmd.Context(), kind, args[1])
			} else {
				err = store.Delete(cmd.Context(), kind, args[1])
			}
			if err != nil {
				return err
			}
			if e.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[1], "kind": string(kind)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", kind, args[1])
			return nil
		},
	}
}
