package ui

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

const helpMarkdown = `# Synthline

Every catalog entry is synthesized live from its metadata. The same track
always sounds the same; nothing is decoded or streamed.

## Playback

* ` + "`enter`" + ` plays the selected entry from the top.
* ` + "`l`" + ` tunes into the live rotation, joining mid-track the way a
  listener would.
* ` + "`s`" + ` fades the current track out.

## Mixer

* ` + "`m`" + ` toggles mute. The volume setting survives muting.
* ` + "`+`" + ` / ` + "`-`" + ` nudge the master volume.

## Catalog

* ` + "`/`" + ` filters the catalog; matching is fuzzy across title,
  artist, id and type.
* ` + "`c`" + ` copies the now-playing line to the clipboard.

Edits to the config file are picked up while the app runs: volume and
mute re-apply live.
`

// renderHelp renders the help screen, fitted to width. Falls back to the
// raw markdown when glamour is disabled or fails.
func renderHelp(cfg Config, width int) string {
	if !cfg.GlamourEnabled {
		return helpMarkdown
	}
	style := cfg.GlamourStyle
	if style == "" {
		style = styles.AutoStyle
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}
