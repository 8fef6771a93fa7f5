package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sitenotes/internal/query"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

func newStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show note counts and storage use",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.store()
			if err != nil {
				return err
			}
			st, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			quota := e.config.BlobQuotaBytes

			if e.jsonMode {
				records := make(map[string]int, len(st.Records))
				for k, n := range st.Records {
					records[string(k)] = n
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"records":          records,
					"blobs":            st.Blobs,
					"blob_bytes":       st.BlobBytes,
					"blob_quota_bytes": quota,
					"database":         store.Path(),
				})
			}

			w := cmd.OutOrStdout()
			for _, k := range types.Kinds() {
				fmt.Fprintf(w, "%-8s %d\n", k.String()+":", st.Records[k])
			}
			limit := "unlimited"
			if quota > 0 {
				limit = humanize.Bytes(uint64(quota))
			}
			fmt.Fprintf(w, "Media:   %d blob(s), %s of %s\n", st.Blobs, humanize.Bytes(uint64(st.BlobBytes)), limit)
			fmt.Fprintf(w, "Store:   %s\n", store.Path())
			return nil
		},
	}
}

// siteRow is one line of the sites listing.
type siteRow struct {
	Name      string `json:"name"`
	City      string `json:"city,omitempty"`
	Notes     int    `json:"notes"`
	Cataloged bool   `json:"cataloged"`
}

func newSitesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List catalog sites and sites with notes",
		Long: `Sites lists every site from the catalog file together with any other
site that has notes, and how many notes each holds.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := e.catalog()
			if err != nil {
				return err
			}
			store, err := e.store()
			if err != nil {
				return err
			}
			counts, err := query.NewService(store).Sites(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([]siteRow, 0, cat.Len()+len(counts))
			seen := make(map[string]bool, cat.Len())
			for _, s := range cat.Sites() {
				seen[s.Name] = true
				rows = append(rows, siteRow{Name: s.Name, City: s.City, Notes: counts[s.Name], Cataloged: true})
			}
			var extra []string
			for name := range counts {
				if !seen[name] {
					extra = append(extra, name)
				}
			}
			sort.Strings(extra)
			for _, name := range extra {
				rows = append(rows, siteRow{Name: name, Notes: counts[name]})
			}

			if e.jsonMode {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sites found.")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				name := r.Name
				if name == "" {
					name = "(none)"
				}
				table = append(table, []string{name, r.City, strconv.Itoa(r.Notes)})
			}
			printTable(cmd.OutOrStdout(), []string{"SITE", "CITY", "NOTES"}, table)
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %d site(s)\n", len(rows))
			return nil
		},
	}
}
