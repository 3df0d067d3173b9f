// Package process owns the lifecycle of one supervised external command:
// spawning it, signalling it, observing its exit and summarising its output
// as a single most-recent line.
//
// A Handle has exactly one mutating owner, the supervisor loop. The only
// other goroutines touching a Handle's data are its output reader, which
// only pushes into the line queue, and the spawner's waiter, which only
// publishes the exit code.
package process

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Handle is one catalog entry and the state of its current run.
type Handle struct {
	Group       string
	Name        string
	CommandLine string

	spawner  Spawner
	logger   *slog.Logger
	state    State
	lastLine string
	lines    *LineQueue
	proc     Proc
	runID    string
}

// NewHandle creates an idle handle.
func NewHandle(group, name, commandLine string, spawner Spawner) *Handle {
	return &Handle{
		Group:       group,
		Name:        name,
		CommandLine: commandLine,
		spawner:     spawner,
		logger:      slog.Default().With("group", group, "name", name),
		state:       Idle(),
		lines:       NewLineQueue(),
	}
}

// State returns the recorded lifecycle state.
func (h *Handle) State() State {
	return h.state
}

// LastLine returns the most recent non-blank output line.
func (h *Handle) LastLine() string {
	return h.lastLine
}

// RunID identifies the current or last run; empty before the first
// successful start and after a reset.
func (h *Handle) RunID() string {
	return h.runID
}

// Backlog is the number of output lines read but not yet surfaced.
func (h *Handle) Backlog() int {
	return h.lines.Len()
}

// Start spawns the command. It is legal from every state but Running and
// reports whether it was applied. A spawn failure leaves the handle Errored.
func (h *Handle) Start() bool {
	if !h.state.CanStart() {
		return false
	}

	proc, err := h.spawner.Spawn(h.CommandLine)
	if err != nil {
		h.proc = nil
		h.state = Errored(err.Error())
		h.logger.Warn("spawn failed", "command", h.CommandLine, "error", err)
		return true
	}

	h.proc = proc
	h.runID = uuid.NewString()
	h.state = Running()
	h.logger.Info("started", "run_id", h.runID, "pid", proc.Pid())

	go readLines(proc.Output(), h.lines, h.logger.With("run_id", h.runID))
	return true
}

// Terminate asks a running process to stop gracefully.
func (h *Handle) Terminate() bool {
	return h.signal(unix.SIGTERM)
}

// Kill stops a running process forcefully.
func (h *Handle) Kill() bool {
	return h.signal(unix.SIGKILL)
}

// Interrupt sends a running process an interrupt.
func (h *Handle) Interrupt() bool {
	return h.signal(unix.SIGINT)
}

// signal delivers sig when Running. The state changes later, once Poll
// observes the exit.
func (h *Handle) signal(sig os.Signal) bool {
	if h.state.Status != StatusRunning || h.proc == nil {
		return false
	}
	err := h.proc.Signal(sig)
	switch {
	case errors.Is(err, os.ErrProcessDone):
		h.logger.Debug("already exited", "run_id", h.runID, "signal", sig.String())
		return true
	case err != nil:
		h.logger.Warn("signal failed", "run_id", h.runID, "signal", sig.String(), "error", err)
		return true
	}
	h.logger.Info("signalled", "run_id", h.runID, "signal", sig.String())
	return true
}

// Reset returns an Exited or Errored handle to Idle with no output. Lines
// still arriving from the old run land in a discarded queue. Exited is only
// recorded once the process is reaped, so the kill below guards a Proc that
// reports otherwise.
func (h *Handle) Reset() bool {
	if !h.state.CanReset() {
		return false
	}
	if h.proc != nil {
		if _, done := h.proc.Exited(); !done {
			h.logger.Warn("reset of live process, killing", "run_id", h.runID)
			_ = h.proc.Signal(unix.SIGKILL)
		}
	}

	h.proc = nil
	h.runID = ""
	h.lastLine = ""
	h.lines = NewLineQueue()
	h.state = Idle()
	return true
}

// Poll runs once per tick. It records a completed run as Exited and
// surfaces at most one queued line, reporting whether the last line changed.
func (h *Handle) Poll() bool {
	h.Refresh()

	line, ok := h.lines.Pop()
	if !ok {
		return false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	h.lastLine = line
	return true
}

// Refresh records a completed run as Exited without surfacing output.
func (h *Handle) Refresh() State {
	if h.state.Status == StatusRunning && h.proc != nil {
		if code, done := h.proc.Exited(); done {
			h.state = Exited(code)
			h.logger.Info("exited", "run_id", h.runID, "code", code)
		}
	}
	return h.state
}
