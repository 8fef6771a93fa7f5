// Package query filters, sorts and searches note records. The functions
// are pure; Service applies them to the contents of a store.
package query

import (
	"html"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sahilm/fuzzy"

	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

var strict = bluemonday.StrictPolicy()

// PlainText strips markup from a text note body.
func PlainText(markup string) string {
	text := html.UnescapeString(strict.Sanitize(markup))
	return strings.Join(strings.Fields(text), " ")
}

// BySite keeps the records whose site equals site exactly.
func BySite(records []types.Record, site string) []types.Record {
	var out []types.Record
	for _, r := range records {
		if r.Common().Site == site {
			out = append(out, r)
		}
	}
	return out
}

// Search keeps the records whose title, site or body text contains term,
// ignoring case. An empty term matches everything.
func Search(records []types.Record, term string) []types.Record {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return append([]types.Record(nil), records...)
	}
	var out []types.Record
	for _, r := range records {
		if strings.Contains(strings.ToLower(searchText(r)), term) {
			out = append(out, r)
		}
	}
	return out
}

func searchText(r types.Record) string {
	m := r.Common()
	parts := []string{m.Title, m.Site}
	if n, ok := r.(*types.TextNote); ok {
		parts = append(parts, PlainText(n.Body))
	}
	return strings.Join(parts, "\n")
}

// SortByCreated orders records by creation time in place. Ties are broken
// by ID so the order is stable across calls.
func SortByCreated(records []types.Record, newestFirst bool) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Common(), records[j].Common()
		if !a.Created.Equal(b.Created) {
			if newestFirst {
				return a.Created.After(b.Created)
			}
			return a.Created.Before(b.Created)
		}
		return a.ID < b.ID
	})
}

// Merge concatenates record lists, typically one per kind, newest first.
func Merge(lists ...[]types.Record) []types.Record {
	var n int
	for _, l := range lists {
		n += len(l)
	}
	out := make([]types.Record, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	SortByCreated(out, true)
	return out
}

// CountBySite returns the number of records per site.
func CountBySite(records []types.Record) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Common().Site]++
	}
	return counts
}

// titles adapts records to fuzzy.Source. Untitled records match on their
// site.
type titles []types.Record

func (t titles) String(i int) string {
	m := t[i].Common()
	if m.Title != "" {
		return m.Title
	}
	return m.Site
}

func (t titles) Len() int { return len(t) }

// Rank orders records by how well their titles fuzzy-match pattern, best
// first. Records that do not match are dropped.
func Rank(records []types.Record, pattern string) []types.Record {
	if pattern == "" {
		return append([]types.Record(nil), records...)
	}
	matches := fuzzy.FindFrom(pattern, titles(records))
	out := make([]types.Record, 0, len(matches))
	for _, m := range matches {
		out = append(out, records[m.Index])
	}
	return out
}

// Snippet returns a one-line preview of a record no wider than width
// display cells. Text notes preview their body, media notes their title.
func Snippet(r types.Record, width int) string {
	var s string
	if n, ok := r.(*types.TextNote); ok {
		s = PlainText(n.Body)
	}
	if s == "" {
		s = r.Common().Title
	}
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
