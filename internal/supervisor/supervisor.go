// Package supervisor runs the single control loop that owns every process
// handle.
//
// Each tick the loop
//  1. takes at most one pending key (or, failing that, one remote command),
//  2. polls every process once for exit and output,
//  3. counts running processes per group and in total,
//  4. auto-starts idle processes in catalog order while under the limits,
//  5. applies the tick's operator command ignoring the limits,
//  6. drops the command, and
//  7. emits a Snapshot.
//
// The loop sleeps for the idle delay only after a tick without output
// updates. Automatic admission always prefers earlier processes; there is no
// rotation across ticks. Manual commands bypass the limits.
package supervisor

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"cursedprocs/internal/catalog"
	"cursedprocs/internal/keys"
	"cursedprocs/internal/process"
)

// Config holds the admission limits and loop pacing.
type Config struct {
	PerGroupLimit int
	TotalLimit    int
	Autostart     bool
	IdleDelay     time.Duration
	PageSize      int
}

// DefaultConfig matches the command-line defaults.
func DefaultConfig() Config {
	return Config{
		PerGroupLimit: 1,
		TotalLimit:    12,
		Autostart:     true,
		IdleDelay:     100 * time.Millisecond,
		PageSize:      10,
	}
}

// Supervisor is not safe for concurrent use: Tick, Run and Shutdown must be
// called from one goroutine.
type Supervisor struct {
	cfg     Config
	handles []*process.Handle
	keys    <-chan keys.Event
	remote  <-chan Command

	cursor    int
	autostart bool
	lastKey   string
	tick      uint64
	quit      bool
}

// NewHandles creates one idle handle per catalog entry.
func NewHandles(entries []catalog.Entry, spawner process.Spawner) []*process.Handle {
	handles := make([]*process.Handle, 0, len(entries))
	for _, e := range entries {
		handles = append(handles, process.NewHandle(e.Group, e.Name, e.CommandLine, spawner))
	}
	return handles
}

// New orders handles by group name, keeping declaration order inside a
// group, and reads operator keys from keyEvents.
func New(cfg Config, handles []*process.Handle, keyEvents <-chan keys.Event) *Supervisor {
	ordered := slices.Clone(handles)
	slices.SortStableFunc(ordered, func(a, b *process.Handle) int {
		return cmp.Compare(a.Group, b.Group)
	})
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	return &Supervisor{
		cfg:       cfg,
		handles:   ordered,
		keys:      keyEvents,
		autostart: cfg.Autostart,
		lastKey:   "#",
	}
}

// WithRemote adds a second command source, consulted only on ticks where no
// key produced a command.
func (s *Supervisor) WithRemote(remote <-chan Command) *Supervisor {
	s.remote = remote
	return s
}

// Handles returns the handles in supervision order.
func (s *Supervisor) Handles() []*process.Handle {
	return s.handles
}

// QuitRequested reports whether the operator asked to quit.
func (s *Supervisor) QuitRequested() bool {
	return s.quit
}

// Tick runs one iteration of the control loop. It returns the snapshot to
// render and whether any process surfaced a new output line.
func (s *Supervisor) Tick() (Snapshot, bool) {
	cmd := s.nextCommand()

	updates := 0
	for _, h := range s.handles {
		if h.Poll() {
			updates++
		}
	}

	perGroup := make(map[string]int)
	total := 0
	for _, h := range s.handles {
		if h.State().Status == process.StatusRunning {
			perGroup[h.Group]++
			total++
		}
	}

	if s.autostart {
		for _, h := range s.handles {
			if h.State().Status != process.StatusIdle {
				continue
			}
			if perGroup[h.Group] >= s.cfg.PerGroupLimit || total >= s.cfg.TotalLimit {
				continue
			}
			h.Start()
			perGroup[h.Group]++
			total++
		}
	}

	s.apply(cmd)

	snap := s.snapshot()
	s.tick++
	return snap, updates > 0
}

// nextCommand drains at most one key, then at most one remote command if
// the key asked for nothing.
func (s *Supervisor) nextCommand() Command {
	select {
	case ev := <-s.keys:
		if cmd := s.interpret(ev); cmd.Action != ActionNone {
			return cmd
		}
	default:
	}

	select {
	case cmd := <-s.remote:
		return cmd
	default:
	}
	return Command{}
}

// Run ticks until the operator quits or ctx is done, handing every snapshot
// to sink. It returns nil in both cases.
func (s *Supervisor) Run(ctx context.Context, sink func(Snapshot)) error {
	slog.DebugContext(ctx, "starting supervisor loop",
		"processes", len(s.handles),
		"per_group_limit", s.cfg.PerGroupLimit,
		"total_limit", s.cfg.TotalLimit,
		"autostart", s.autostart)

	for {
		if ctx.Err() != nil {
			return nil
		}

		snap, updated := s.Tick()
		sink(snap)

		if s.quit {
			slog.DebugContext(ctx, "quit requested", "tick", s.tick)
			return nil
		}
		if updated {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.IdleDelay):
		}
	}
}

// Shutdown terminates every process still running and writes one line per
// process to w. It returns how many processes it stopped. Exits since the
// last tick are observed first.
func (s *Supervisor) Shutdown(w io.Writer) int {
	stopped := 0
	for _, h := range s.handles {
		if h.Refresh().Status != process.StatusRunning {
			continue
		}
		if _, err := fmt.Fprintf(w, "Had to stop %s %s\n", h.Group, h.Name); err != nil {
			slog.Error("writing shutdown report", "error", err)
		}
		h.Terminate()
		stopped++
	}
	return stopped
}
