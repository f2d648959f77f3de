package fields

import "strings"

// FixedWidth renders a value into an exact positional slot: values longer
// than the slot keep their leftmost characters, shorter values are padded on
// the right with spaces, and an absent value fills the slot with spaces.
// Export consumers are byte-position dependent, so this single rule is reused
// for every export field.
func FixedWidth(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Spaces returns a slot of the given width with no value.
func Spaces(width int) string {
	return strings.Repeat(" ", width)
}
