package qualname

import "strings"

// LineTable holds a file's lines with a sentinel empty entry at index 0, so
// LineTable[n] is line n as counted by the parser.
type LineTable []string

// NewLineTable splits source into a LineTable. A trailing newline does not
// produce an extra empty line; "\r\n" endings are treated as "\n".
func NewLineTable(source []byte) LineTable {
	text := string(source)
	text = strings.TrimSuffix(text, "\n")
	lines := LineTable{""}
	if text == "" {
		return lines
	}
	for _, l := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimSuffix(l, "\r"))
	}
	return lines
}

// Len returns the number of source lines, excluding the sentinel.
func (t LineTable) Len() int {
	if len(t) == 0 {
		return 0
	}
	return len(t) - 1
}

// Line returns line n, or "" when n is out of range.
func (t LineTable) Line(n int) string {
	if n < 1 || n >= len(t) {
		return ""
	}
	return t[n]
}

// IsDecorator reports whether line n, trimmed, starts with marker.
func (t LineTable) IsDecorator(n int, marker string) bool {
	return strings.HasPrefix(strings.TrimSpace(t.Line(n)), marker)
}
