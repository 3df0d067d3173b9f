package process

import "sync"

// LineQueue is an unbounded FIFO of raw output lines with one producer (the
// output reader) and one consumer (the supervisor).
type LineQueue struct {
	mu    sync.Mutex
	lines []string
}

// NewLineQueue creates an empty queue.
func NewLineQueue() *LineQueue {
	return &LineQueue{}
}

// Push appends a line.
func (q *LineQueue) Push(line string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lines = append(q.lines, line)
}

// Pop removes and returns the oldest line without blocking.
func (q *LineQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.lines) == 0 {
		return "", false
	}
	line := q.lines[0]
	q.lines[0] = ""
	q.lines = q.lines[1:]
	if len(q.lines) == 0 {
		q.lines = nil
	}
	return line, true
}

// Len returns the number of queued lines.
func (q *LineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}
