package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cursedprocs/internal/process"
	"cursedprocs/internal/protocol"
	"cursedprocs/internal/supervisor"
)

// snapshotPayload converts a snapshot to its wire form.
func snapshotPayload(snap supervisor.Snapshot) protocol.SnapshotPayload {
	p := protocol.SnapshotPayload{
		Tick:      snap.Tick,
		Autostart: snap.Autostart,
		Cursor:    snap.Cursor,
		LastKey:   snap.LastKey,
		Running:   snap.Running,
		Processes: make([]protocol.ProcessPayload, len(snap.Rows)),
	}
	for i, row := range snap.Rows {
		p.Processes[i] = processPayload(i, row)
	}
	return p
}

func processPayload(index int, row supervisor.Row) protocol.ProcessPayload {
	p := protocol.ProcessPayload{
		Index:    index,
		Group:    row.Group,
		Name:     row.Name,
		Status:   row.State.Status.String(),
		Symbol:   row.State.Symbol(),
		Message:  row.State.Message,
		LastLine: row.LastLine,
		RunID:    row.RunID,
		Backlog:  row.Backlog,
	}
	if row.State.Status == process.StatusExited {
		code := row.State.Code
		p.Code = &code
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, protocol.ErrorPayload{Code: code, Message: message})
}

func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotPayload(s.Latest()).Processes)
}

func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	snap := s.Latest()
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 || index >= len(snap.Rows) {
		writeError(w, http.StatusNotFound, protocol.ErrNoSuchProcess, "process not found")
		return
	}

	writeJSON(w, http.StatusOK, processPayload(index, snap.Rows[index]))
}

func (s *Server) handleProcessAction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("action")
	if !protocol.ValidAction(name) {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidMessage, "unknown action "+strconv.Quote(name))
		return
	}
	action, err := supervisor.ParseAction(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidMessage, err.Error())
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusNotFound, protocol.ErrNoSuchProcess, "process not found")
		return
	}

	s.submitHTTP(w, supervisor.Command{Action: action, Target: index})
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	s.submitHTTP(w, supervisor.Command{Action: supervisor.ActionResetAll})
}

func (s *Server) submitHTTP(w http.ResponseWriter, cmd supervisor.Command) {
	err := s.Submit(cmd)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	case errors.Is(err, ErrBusy):
		writeError(w, http.StatusConflict, protocol.ErrBusy, err.Error())
	case errors.Is(err, ErrNoSuchProcess):
		writeError(w, http.StatusNotFound, protocol.ErrNoSuchProcess, err.Error())
	default:
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidMessage, err.Error())
	}
}
