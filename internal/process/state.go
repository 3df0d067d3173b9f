package process

import "strconv"

// Status is the lifecycle phase of a supervised process.
type Status uint8

const (
	StatusIdle Status = iota
	StatusRunning
	StatusExited
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusExited:
		return "exited"
	case StatusErrored:
		return "errored"
	}
	return "unknown"
}

// State is a tagged variant: Code is meaningful only for StatusExited and
// Message only for StatusErrored.
type State struct {
	Status  Status
	Code    int
	Message string
}

func Idle() State {
	return State{Status: StatusIdle}
}

func Running() State {
	return State{Status: StatusRunning}
}

func Exited(code int) State {
	return State{Status: StatusExited, Code: code}
}

func Errored(message string) State {
	return State{Status: StatusErrored, Message: message}
}

// CanStart reports whether start is a legal transition from s.
func (s State) CanStart() bool {
	return s.Status != StatusRunning
}

// CanReset reports whether reset is a legal transition from s.
func (s State) CanReset() bool {
	return s.Status == StatusExited || s.Status == StatusErrored
}

// Succeeded is true only for a clean zero exit.
func (s State) Succeeded() bool {
	return s.Status == StatusExited && s.Code == 0
}

// Symbol is the one-glyph status shown on the dashboard.
func (s State) Symbol() string {
	switch s.Status {
	case StatusRunning:
		return "*"
	case StatusExited:
		return strconv.Itoa(s.Code)
	case StatusErrored:
		return "E"
	}
	return "#"
}

func (s State) String() string {
	switch s.Status {
	case StatusExited:
		return "exited(" + strconv.Itoa(s.Code) + ")"
	case StatusErrored:
		return "errored(" + s.Message + ")"
	}
	return s.Status.String()
}
