package supervisor

import (
	"fmt"

	"cursedprocs/internal/keys"
)

// Action is an operator command applied to one process, or to all of them
// for ActionResetAll.
type Action uint8

const (
	ActionNone Action = iota
	ActionStart
	ActionTerminate
	ActionKill
	ActionInterrupt
	ActionResetAll
)

var actionNames = map[Action]string{
	ActionNone:      "none",
	ActionStart:     "start",
	ActionTerminate: "terminate",
	ActionKill:      "kill",
	ActionInterrupt: "interrupt",
	ActionResetAll:  "reset",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// ParseAction maps a name produced by Action.String back to the Action.
func ParseAction(name string) (Action, error) {
	for a, n := range actionNames {
		if a != ActionNone && n == name {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("unknown action %q", name)
}

// Command is the single-shot operator intent of one tick. Target indexes the
// ordered process list and is ignored for ActionResetAll.
type Command struct {
	Action Action
	Target int
}

// Operator keys.
const (
	keyKill      = 'k'
	keyInterrupt = 'i'
	keyAutostart = 'a'
	keyResetAll  = 'r'
	keyQuit      = 'q'
)

// Help is the key legend shown under the process list.
const Help = "(ENTER - start/retry, BACKSPACE - terminate, k - kill, i - interrupt, a - toggle autostart, r - reset failed, q - quit)"

// interpret applies navigation and toggles directly and returns the command
// the key asks for, if any.
func (s *Supervisor) interpret(ev keys.Event) Command {
	s.lastKey = ev.String()

	switch ev.Kind {
	case keys.KindEnter:
		return Command{Action: ActionStart, Target: s.cursor}
	case keys.KindBackspace:
		return Command{Action: ActionTerminate, Target: s.cursor}
	case keys.KindUp, keys.KindDown, keys.KindHome, keys.KindEnd, keys.KindPageUp, keys.KindPageDown:
		s.move(ev.Kind)
		return Command{}
	case keys.KindPrintable:
	default:
		return Command{}
	}

	switch ev.Rune {
	case keyKill:
		return Command{Action: ActionKill, Target: s.cursor}
	case keyInterrupt:
		return Command{Action: ActionInterrupt, Target: s.cursor}
	case keyResetAll:
		return Command{Action: ActionResetAll}
	case keyAutostart:
		s.autostart = !s.autostart
	case keyQuit:
		s.quit = true
	}
	return Command{}
}

// move adjusts the cursor. Up and Down wrap around, paging clamps.
func (s *Supervisor) move(k keys.Kind) {
	n := len(s.handles)
	if n == 0 {
		return
	}
	switch k {
	case keys.KindUp:
		s.cursor = (s.cursor - 1 + n) % n
	case keys.KindDown:
		s.cursor = (s.cursor + 1) % n
	case keys.KindHome:
		s.cursor = 0
	case keys.KindEnd:
		s.cursor = n - 1
	case keys.KindPageUp:
		s.cursor = max(0, s.cursor-s.cfg.PageSize)
	case keys.KindPageDown:
		s.cursor = min(n-1, s.cursor+s.cfg.PageSize)
	}
}

// apply executes cmd regardless of admission limits. Commands that are not
// legal for the target's state are ignored by the handle itself.
func (s *Supervisor) apply(cmd Command) {
	if cmd.Action == ActionNone {
		return
	}
	if cmd.Action == ActionResetAll {
		for _, h := range s.handles {
			h.Reset()
		}
		return
	}
	if cmd.Target < 0 || cmd.Target >= len(s.handles) {
		return
	}

	h := s.handles[cmd.Target]
	switch cmd.Action {
	case ActionStart:
		h.Start()
	case ActionTerminate:
		h.Terminate()
	case ActionKill:
		h.Kill()
	case ActionInterrupt:
		h.Interrupt()
	}
}
