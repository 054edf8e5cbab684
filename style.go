package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	te "github.com/muesli/termenv"
)

const wrapAt = 78

// keyword colorizes a word or phrase in help text.
func keyword(s string) string {
	return te.String(s).Foreground(te.ColorProfile().Color("#EE6FF8")).String()
}

// paragraph wraps and indents a block of help text.
func paragraph(s string) string {
	return strings.TrimRight(indent.String(wordwrap.String(s, wrapAt-4), 2), "\n")
}

// expandPath expands a leading tilde or environment variables in a path.
func expandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		path = s
	}
	return filepath.Clean(os.ExpandEnv(path))
}
