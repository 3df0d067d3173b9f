// Package processtest provides an in-memory Spawner for tests that need
// deterministic process lifecycles.
package processtest

import (
	"errors"
	"io"
	"os"
	"sync"

	"cursedprocs/internal/process"
)

// Proc is a fake process. Its output is an io.Pipe fed by Emit, and it
// completes only when Exit is called.
type Proc struct {
	pid int
	r   *io.PipeReader
	w   *io.PipeWriter

	mu      sync.Mutex
	signals []os.Signal
	done    bool
	code    int
}

func newProc(pid int) *Proc {
	r, w := io.Pipe()
	return &Proc{pid: pid, r: r, w: w}
}

func (p *Proc) Output() io.ReadCloser {
	return p.r
}

func (p *Proc) Pid() int {
	return p.pid
}

// Signal records sig. It fails with os.ErrProcessDone once the fake exited.
func (p *Proc) Signal(sig os.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return os.ErrProcessDone
	}
	p.signals = append(p.signals, sig)
	return nil
}

func (p *Proc) Exited() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, p.done
}

// Emit writes raw output. It blocks until the output reader consumed it.
func (p *Proc) Emit(s string) error {
	_, err := io.WriteString(p.w, s)
	return err
}

// Exit completes the process with code and closes its output.
func (p *Proc) Exit(code int) {
	p.mu.Lock()
	p.done = true
	p.code = code
	p.mu.Unlock()
	_ = p.w.Close()
}

// Signals returns every signal delivered so far.
func (p *Proc) Signals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

// Spawner hands out fake processes keyed by command line.
type Spawner struct {
	mu    sync.Mutex
	pid   int
	procs map[string][]*Proc
	fail  map[string]error
}

func NewSpawner() *Spawner {
	return &Spawner{
		pid:   1000,
		procs: make(map[string][]*Proc),
		fail:  make(map[string]error),
	}
}

// FailWith makes every spawn of commandLine fail with err.
func (s *Spawner) FailWith(commandLine string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[commandLine] = err
}

func (s *Spawner) Spawn(commandLine string) (process.Proc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail[commandLine]; err != nil {
		return nil, err
	}
	if commandLine == "" {
		return nil, process.ErrEmptyCommand
	}
	s.pid++
	p := newProc(s.pid)
	s.procs[commandLine] = append(s.procs[commandLine], p)
	return p, nil
}

// Spawned returns how many times commandLine was started.
func (s *Spawner) Spawned(commandLine string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs[commandLine])
}

// Last returns the most recent fake process for commandLine.
func (s *Spawner) Last(commandLine string) (*Proc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	procs := s.procs[commandLine]
	if len(procs) == 0 {
		return nil, errors.New("never spawned: " + commandLine)
	}
	return procs[len(procs)-1], nil
}

// ExitAll completes every fake process still running with code 0.
func (s *Spawner) ExitAll() {
	s.mu.Lock()
	var all []*Proc
	for _, procs := range s.procs {
		all = append(all, procs...)
	}
	s.mu.Unlock()

	for _, p := range all {
		if _, done := p.Exited(); !done {
			p.Exit(0)
		}
	}
}
