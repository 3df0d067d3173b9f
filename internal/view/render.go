// Package view draws supervisor snapshots on a raw-mode terminal.
package view

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"cursedprocs/internal/process"
	"cursedprocs/internal/supervisor"
)

const (
	topMargin = 2
	indent    = "    "
	marker    = "  * "
)

// Styles colors finished processes.
type Styles struct {
	Succeeded lipgloss.Style
	Failed    lipgloss.Style
	Notice    lipgloss.Style
}

// NewStyles builds the palette on r so the color profile follows the
// output the frames are written to.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Succeeded: r.NewStyle().Foreground(lipgloss.Color("2")),
		Failed:    r.NewStyle().Foreground(lipgloss.Color("1")),
		Notice:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	}
}

// Render lays out one frame. Lines are separated by CRLF because the
// terminal is in raw mode. Lines wider than width are cut, and when the
// rows do not fit in height a window around the cursor is shown.
func Render(snap supervisor.Snapshot, notice string, width, height int, st Styles) string {
	lines := make([]string, 0, len(snap.Rows)+topMargin+4)
	for range topMargin {
		lines = append(lines, "")
	}
	lines = append(lines, fmt.Sprintf("%s---- %06d ---- (autostart=%t)", indent, snap.Tick, snap.Autostart))

	trailer := 2
	if notice != "" {
		trailer++
	}
	first, last := visibleRows(len(snap.Rows), snap.Cursor, height-len(lines)-trailer)
	for i := first; i < last; i++ {
		prefix := indent
		if i == snap.Cursor {
			prefix = marker
		}
		lines = append(lines, prefix+renderRow(snap.Rows[i], st))
	}

	lines = append(lines,
		fmt.Sprintf("%s---- ------ ---- (%s)", indent, snap.LastKey),
		indent+supervisor.Help,
	)
	if notice != "" {
		lines = append(lines, indent+st.Notice.Render(notice))
	}

	if height > 0 && len(lines) > height {
		lines = lines[:height]
	}
	if width > 0 {
		for i, l := range lines {
			lines[i] = ansi.Truncate(l, width, "")
		}
	}
	return strings.Join(lines, "\r\n")
}

// visibleRows returns the half-open range of rows to draw. When avail is
// too small for even one row, everything is drawn and the frame is cut at
// the bottom instead.
func visibleRows(n, cursor, avail int) (int, int) {
	if avail >= n || avail < 1 {
		return 0, n
	}
	first := max(0, cursor-avail+1)
	return first, first + avail
}

func renderRow(row supervisor.Row, st Styles) string {
	line := row.LastLine
	if row.State.Status == process.StatusErrored && line == "" {
		line = "ERROR: " + row.State.Message
	}
	text := fmt.Sprintf("%s %s (%s): %s", row.Group, row.Name, row.State.Symbol(), cleanLine(line))
	switch {
	case row.State.Succeeded():
		return st.Succeeded.Render(text)
	case row.State.Status == process.StatusExited, row.State.Status == process.StatusErrored:
		return st.Failed.Render(text)
	}
	return text
}

// cleanLine makes raw process output safe to place on one screen row.
func cleanLine(s string) string {
	s = ansi.Strip(strings.TrimRight(s, "\r\n"))
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
