package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/google/shlex"
)

// ErrEmptyCommand is returned when a command line has no words.
var ErrEmptyCommand = errors.New("empty command line")

// Proc is a started OS process as seen by a Handle.
type Proc interface {
	// Output is the merged stdout/stderr stream. The reader closes it.
	Output() io.ReadCloser
	// Signal delivers sig to the process.
	Signal(sig os.Signal) error
	// Exited reports, without blocking, whether the process has completed
	// and with which code.
	Exited() (code int, done bool)
	Pid() int
}

// Spawner starts external processes.
type Spawner interface {
	Spawn(commandLine string) (Proc, error)
}

// ExecSpawner starts commands with os/exec. Stdin is the null device so a
// child can never compete with the dashboard for terminal input.
type ExecSpawner struct {
	Dir string
	Env []string
}

// Spawn splits commandLine with shell word rules and starts it with stdout
// and stderr merged into one pipe.
func (s ExecSpawner) Spawn(commandLine string) (Proc, error) {
	args, err := shlex.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("parse command line: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = s.Dir
	if s.Env != nil {
		cmd.Env = s.Env
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return nil, err
	}

	// The child holds its own copy of the write end now.
	_ = pw.Close()

	p := &execProc{
		cmd:  cmd,
		out:  pr,
		done: make(chan int, 1),
	}
	go p.wait()
	return p, nil
}

type execProc struct {
	cmd  *exec.Cmd
	out  *os.File
	done chan int

	// owned by the caller of Exited
	exited bool
	code   int
}

func (p *execProc) Output() io.ReadCloser {
	return p.out
}

func (p *execProc) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProc) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProc) Exited() (int, bool) {
	if p.exited {
		return p.code, true
	}
	select {
	case code := <-p.done:
		p.exited = true
		p.code = code
		return code, true
	default:
		return 0, false
	}
}

// wait reaps the child and publishes its exit code.
func (p *execProc) wait() {
	err := p.cmd.Wait()
	p.done <- exitCode(p.cmd.ProcessState, err)
}

// exitCode mirrors the POSIX convention of reporting death by signal N as -N.
func exitCode(state *os.ProcessState, err error) int {
	if state == nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			state = exitErr.ProcessState
		}
	}
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return state.ExitCode()
}
