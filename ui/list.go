package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"

	"github.com/kolradio/synthline/internal/catalog"
)

// entrySource adapts catalog entries to the fuzzy matcher.
type entrySource []catalog.Entry

func (s entrySource) String(i int) string {
	e := s[i]
	return e.Asset.Title + " " + e.Asset.Artist + " " + e.Asset.ID + " " + string(e.Asset.Type)
}

func (s entrySource) Len() int { return len(s) }

// filterEntries returns the entries matching the query, best match first.
// An empty query returns everything in catalog order.
func filterEntries(entries []catalog.Entry, query string) []catalog.Entry {
	if query == "" {
		out := make([]catalog.Entry, len(entries))
		copy(out, entries)
		return out
	}
	matches := fuzzy.FindFrom(query, entrySource(entries))
	out := make([]catalog.Entry, 0, len(matches))
	for _, m := range matches {
		out = append(out, entries[m.Index])
	}
	return out
}

// formatDuration renders a track length as m:ss.
func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// listRow renders one catalog line fitted to width.
func listRow(e catalog.Entry, selected, onAir bool, now time.Time, width int) string {
	marker := "  "
	style := titleStyle
	switch {
	case selected:
		marker = "> "
		style = selectedStyle
	case onAir:
		marker = "● "
		style = onAirStyle
	}

	left := fmt.Sprintf("%s%s — %s", marker, e.Asset.Title, e.Asset.Artist)
	right := fmt.Sprintf("%-7s %5s  %s",
		e.Asset.Type, formatDuration(e.Asset.Duration), humanize.RelTime(e.AddedAt, now, "ago", "from now"))

	pad := width - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	if pad < 1 {
		return style.Render(truncate.StringWithTail(left, uint(max(0, width)), ellipsis))
	}
	for i := 0; i < pad; i++ {
		left += " "
	}
	return style.Render(left) + subtleStyle.Render(right)
}
