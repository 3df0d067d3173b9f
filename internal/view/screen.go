package view

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"cursedprocs/internal/supervisor"
)

// Fallback size when the output is not a terminal.
const (
	defaultWidth  = 80
	defaultHeight = 24
)

// ErrNotTerminal is returned by MakeRaw for redirected input.
var ErrNotTerminal = errors.New("input is not a terminal")

// SizeFunc reports the drawable width and height.
type SizeFunc func() (width, height int)

// Screen owns the alternate screen and redraws it when the frame changes.
type Screen struct {
	out    *termenv.Output
	styles Styles
	size   SizeFunc

	mu     sync.Mutex
	notice string
	prev   string
}

// NewScreen writes frames to w. size may be nil, in which case w's terminal
// size is used when w is one.
func NewScreen(w io.Writer, size SizeFunc) *Screen {
	out := termenv.NewOutput(w)
	renderer := lipgloss.NewRenderer(w)
	renderer.SetColorProfile(out.Profile)
	if size == nil {
		size = TerminalSize(w)
	}
	return &Screen{
		out:    out,
		styles: NewStyles(renderer),
		size:   size,
	}
}

// Open switches to the alternate screen and hides the cursor.
func (s *Screen) Open() {
	s.out.AltScreen()
	s.out.HideCursor()
	s.out.ClearScreen()
}

// Close restores the cursor and the primary screen.
func (s *Screen) Close() {
	s.out.ShowCursor()
	s.out.ExitAltScreen()
}

// SetNotice shows msg under the key help. It may be called from any
// goroutine and takes effect on the next Draw.
func (s *Screen) SetNotice(msg string) {
	s.mu.Lock()
	s.notice = msg
	s.mu.Unlock()
}

// Draw renders snap and repaints only when the frame differs from the last
// one drawn.
func (s *Screen) Draw(snap supervisor.Snapshot) {
	width, height := s.size()

	s.mu.Lock()
	defer s.mu.Unlock()

	frame := Render(snap, s.notice, width, height, s.styles)
	if frame == s.prev {
		return
	}
	s.prev = frame

	s.out.ClearScreen()
	s.out.MoveCursor(1, 1)
	fmt.Fprint(s.out, frame)
}

// TerminalSize returns a SizeFunc that queries w when it is a terminal and
// falls back to 80x24 otherwise.
func TerminalSize(w io.Writer) SizeFunc {
	f, ok := w.(*os.File)
	return func() (int, int) {
		if !ok {
			return defaultWidth, defaultHeight
		}
		width, height, err := term.GetSize(int(f.Fd()))
		if err != nil || width <= 0 || height <= 0 {
			return defaultWidth, defaultHeight
		}
		return width, height
	}
}

// Terminal remembers the mode to restore after raw input.
type Terminal struct {
	fd    int
	state *term.State
}

// MakeRaw puts f in raw mode so keys arrive byte by byte without echo.
func MakeRaw(f *os.File) (*Terminal, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("set raw mode: %w", err)
	}
	return &Terminal{fd: fd, state: state}, nil
}

// Restore returns the terminal to the mode it had before MakeRaw.
func (t *Terminal) Restore() error {
	if err := term.Restore(t.fd, t.state); err != nil {
		return fmt.Errorf("restore terminal: %w", err)
	}
	return nil
}
