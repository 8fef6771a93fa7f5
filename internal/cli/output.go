package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/sitenotes/internal/query"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

const (
	shortIDLen   = 8
	snippetWidth = 40
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// printTable renders rows under header with tab-separated columns, trimming
// trailing padding from each line.
func printTable(w io.Writer, header []string, rows [][]string) {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	rule := make([]string, len(header))
	for i, h := range header {
		rule[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	fmt.Fprintln(tw, strings.Join(rule, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()

	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// printRecords prints notes as a table, or as a JSON array in JSON mode.
func printRecords(w io.Writer, records []types.Record, jsonMode bool) error {
	if jsonMode {
		if records == nil {
			records = []types.Record{}
		}
		return printJSON(w, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No notes found.")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		m := r.Common()
		rows = append(rows, []string{
			shortID(m.ID),
			string(r.Kind()),
			m.Site,
			query.Snippet(r, snippetWidth),
			m.EasyCreatedTime(),
		})
	}
	printTable(w, []string{"ID", "KIND", "SITE", "PREVIEW", "CREATED"}, rows)
	fmt.Fprintf(w, "Total: %d note(s)\n", len(records))
	return nil
}
