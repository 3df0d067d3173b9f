package view

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"cursedprocs/internal/process"
	"cursedprocs/internal/supervisor"
)

func stylesFor(p termenv.Profile) Styles {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(p)
	return NewStyles(r)
}

func sampleSnapshot() supervisor.Snapshot {
	return supervisor.Snapshot{
		Tick:      42,
		Autostart: true,
		Cursor:    1,
		LastKey:   "#",
		Running:   1,
		Rows: []supervisor.Row{
			{Group: "build", Name: "lint", State: process.Exited(0), LastLine: "ok"},
			{Group: "build", Name: "test", State: process.Running(), LastLine: "PASS"},
			{Group: "deploy", Name: "push", State: process.Exited(2), LastLine: "denied"},
			{Group: "deploy", Name: "tag", State: process.Idle()},
		},
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	got := Render(sampleSnapshot(), "", 300, 50, stylesFor(termenv.Ascii))
	want := strings.Join([]string{
		"",
		"",
		"    ---- 000042 ---- (autostart=true)",
		"    build lint (0): ok",
		"  * build test (*): PASS",
		"    deploy push (2): denied",
		"    deploy tag (#): ",
		"    ---- ------ ---- (#)",
		"    " + supervisor.Help,
	}, "\r\n")
	require.Equal(t, want, got)
}

func TestRenderNotice(t *testing.T) {
	t.Parallel()

	got := Render(sampleSnapshot(), "catalog changed on disk; restart to reload", 300, 50, stylesFor(termenv.Ascii))
	lines := strings.Split(got, "\r\n")
	require.Equal(t, "    catalog changed on disk; restart to reload", lines[len(lines)-1])
}

func TestRenderErroredShowsMessage(t *testing.T) {
	t.Parallel()

	snap := supervisor.Snapshot{Rows: []supervisor.Row{
		{Group: "g", Name: "n", State: process.Errored("exec: \"nope\": executable file not found in $PATH")},
	}}
	got := Render(snap, "", 300, 50, stylesFor(termenv.Ascii))
	require.Contains(t, got, `  * g n (E): ERROR: exec: "nope": executable file not found in $PATH`)
}

func TestRenderColors(t *testing.T) {
	t.Parallel()

	got := Render(sampleSnapshot(), "", 300, 50, stylesFor(termenv.ANSI))
	lines := strings.Split(got, "\r\n")

	require.Contains(t, lines[3], "\x1b[32m", "exit 0 is green")
	require.Contains(t, lines[5], "\x1b[31m", "non-zero exit is red")
	require.NotContains(t, lines[4], "\x1b[", "running rows are plain")
	require.NotContains(t, lines[6], "\x1b[", "idle rows are plain")
}

func TestRenderTruncatesWidth(t *testing.T) {
	t.Parallel()

	for _, p := range []termenv.Profile{termenv.Ascii, termenv.ANSI} {
		got := Render(sampleSnapshot(), "", 20, 50, stylesFor(p))
		for _, l := range strings.Split(got, "\r\n") {
			require.LessOrEqual(t, lipgloss.Width(l), 20, "%q", l)
		}
	}
}

func TestRenderHeight(t *testing.T) {
	t.Parallel()

	snap := sampleSnapshot()

	// Room for two rows: the window follows the cursor.
	snap.Cursor = 3
	got := Render(snap, "", 300, 7, stylesFor(termenv.Ascii))
	lines := strings.Split(got, "\r\n")
	require.Len(t, lines, 7)
	require.Equal(t, "    deploy push (2): denied", lines[3])
	require.Equal(t, "  * deploy tag (#): ", lines[4])
	require.Equal(t, "    ---- ------ ---- (#)", lines[5])

	// No room for any row: the frame is cut at the bottom.
	got = Render(snap, "", 300, 4, stylesFor(termenv.Ascii))
	lines = strings.Split(got, "\r\n")
	require.Len(t, lines, 4)
	require.Equal(t, "    build lint (0): ok", lines[3])
}

func TestVisibleRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, cursor, avail int
		first, last      int
	}{
		{5, 0, 10, 0, 5},
		{5, 0, 0, 0, 5},
		{5, 0, 2, 0, 2},
		{5, 1, 2, 0, 2},
		{5, 2, 2, 1, 3},
		{5, 4, 2, 3, 5},
		{0, 0, 3, 0, 0},
	}
	for _, tt := range tests {
		first, last := visibleRows(tt.n, tt.cursor, tt.avail)
		require.Equal(t, tt.first, first, "%+v", tt)
		require.Equal(t, tt.last, last, "%+v", tt)
	}
}

func TestCleanLine(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b", cleanLine("a\tb\r\n"))
	require.Equal(t, "red", cleanLine("\x1b[31mred\x1b[0m"))
	require.Equal(t, "bell", cleanLine("be\all"))
}

func TestScreenDrawsChangedFramesOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewScreen(&buf, func() (int, int) { return 100, 30 })

	snap := sampleSnapshot()
	s.Draw(snap)
	require.Contains(t, buf.String(), "---- 000042 ----")

	buf.Reset()
	s.Draw(snap)
	require.Empty(t, buf.String())

	s.SetNotice("catalog changed on disk; restart to reload")
	s.Draw(snap)
	require.Contains(t, buf.String(), "restart to reload")
}

func TestTerminalSizeFallback(t *testing.T) {
	t.Parallel()

	w, h := TerminalSize(&bytes.Buffer{})()
	require.Equal(t, 80, w)
	require.Equal(t, 24, h)
}
