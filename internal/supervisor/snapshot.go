package supervisor

import (
	"slices"

	"cursedprocs/internal/process"
)

// Row is the render-ready view of one process.
type Row struct {
	Group    string
	Name     string
	State    process.State
	LastLine string
	RunID    string
	Backlog  int
}

// Snapshot is everything a view needs to draw one tick.
type Snapshot struct {
	Tick      uint64
	Rows      []Row
	Cursor    int
	Autostart bool
	LastKey   string
	Running   int
}

// Selected returns the row under the cursor.
func (s Snapshot) Selected() (Row, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Rows) {
		return Row{}, false
	}
	return s.Rows[s.Cursor], true
}

// SameContent reports whether two snapshots render the same, ignoring the
// tick counter.
func (s Snapshot) SameContent(o Snapshot) bool {
	return s.Cursor == o.Cursor &&
		s.Autostart == o.Autostart &&
		s.LastKey == o.LastKey &&
		s.Running == o.Running &&
		slices.Equal(s.Rows, o.Rows)
}

func (s *Supervisor) snapshot() Snapshot {
	snap := Snapshot{
		Tick:      s.tick,
		Rows:      make([]Row, len(s.handles)),
		Cursor:    s.cursor,
		Autostart: s.autostart,
		LastKey:   s.lastKey,
	}
	for i, h := range s.handles {
		st := h.State()
		if st.Status == process.StatusRunning {
			snap.Running++
		}
		snap.Rows[i] = Row{
			Group:    h.Group,
			Name:     h.Name,
			State:    st,
			LastLine: h.LastLine(),
			RunID:    h.RunID(),
			Backlog:  h.Backlog(),
		}
	}
	return snap
}
