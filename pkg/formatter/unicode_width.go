package formatter

import (
	"github.com/mattn/go-runewidth"
)

// MAX_VALUE_WIDTH defines the maximum width for tag value columns
const MAX_VALUE_WIDTH = 24

// StringWidth returns the display width of a string, counting CJK characters as 2
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// FitString truncates s to width display cells with a ".." tail and pads it
// on the right so tabwriter columns line up for wide characters.
func FitString(s string, width int) string {
	if s == "" {
		s = "N/A"
	}
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "..")
	}
	return runewidth.FillRight(s, width)
}
