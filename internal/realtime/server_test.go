package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cursedprocs/internal/process"
	"cursedprocs/internal/protocol"
	"cursedprocs/internal/supervisor"

	"github.com/gorilla/websocket"
)

func testSnapshot() supervisor.Snapshot {
	return supervisor.Snapshot{
		Tick:      3,
		Autostart: true,
		LastKey:   "#",
		Running:   1,
		Rows: []supervisor.Row{
			{Group: "build", Name: "lint", State: process.Exited(0), LastLine: "ok"},
			{Group: "build", Name: "test", State: process.Running(), LastLine: "PASS", RunID: "run-1"},
			{Group: "deploy", Name: "push", State: process.Errored("exec: not found")},
		},
	}
}

func newTestServer() *Server {
	srv := New(nil)
	srv.Publish(testSnapshot())
	return srv
}

func dial(t *testing.T, httpSrv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read message failed: %v", err)
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func TestServer_Handler(t *testing.T) {
	srv := newTestServer()
	handler := srv.Handler()
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}
}

func TestServer_ListProcesses(t *testing.T) {
	handler := newTestServer().Handler()

	req := httptest.NewRequest("GET", "/processes", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var procs []protocol.ProcessPayload
	json.NewDecoder(w.Body).Decode(&procs)
	if len(procs) != 3 {
		t.Fatalf("expected 3 processes, got %d", len(procs))
	}
	if procs[0].Code == nil || *procs[0].Code != 0 || procs[0].Symbol != "0" {
		t.Errorf("expected exited(0), got %+v", procs[0])
	}
	if procs[1].Status != "running" || procs[1].RunID != "run-1" {
		t.Errorf("unexpected running row %+v", procs[1])
	}
	if procs[2].Status != "errored" || procs[2].Symbol != "E" || procs[2].Message == "" {
		t.Errorf("unexpected errored row %+v", procs[2])
	}
}

func TestServer_ListProcessesBeforePublish(t *testing.T) {
	handler := New(nil).Handler()

	req := httptest.NewRequest("GET", "/processes", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("expected empty list, got %s", got)
	}
}

func TestServer_GetProcess(t *testing.T) {
	handler := newTestServer().Handler()

	tests := []struct {
		path string
		want int
	}{
		{"/processes/1", http.StatusOK},
		{"/processes/3", http.StatusNotFound},
		{"/processes/-1", http.StatusNotFound},
		{"/processes/abc", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.want, w.Code)
		}
	}
}

func TestServer_ProcessAction(t *testing.T) {
	srv := newTestServer()
	handler := srv.Handler()

	req := httptest.NewRequest("POST", "/processes/2/start", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", w.Code)
	}

	// The slot holds one command until the supervisor drains it.
	req = httptest.NewRequest("POST", "/processes/1/kill", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}

	select {
	case cmd := <-srv.Commands():
		if cmd.Action != supervisor.ActionStart || cmd.Target != 2 {
			t.Errorf("unexpected command %+v", cmd)
		}
	default:
		t.Fatal("expected a queued command")
	}

	req = httptest.NewRequest("POST", "/processes/1/kill", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 after drain, got %d", w.Code)
	}
}

func TestServer_ProcessActionErrors(t *testing.T) {
	handler := newTestServer().Handler()

	tests := []struct {
		path string
		want int
	}{
		{"/processes/0/explode", http.StatusBadRequest},
		{"/processes/0/reset", http.StatusBadRequest},
		{"/processes/9/start", http.StatusNotFound},
		{"/processes/x/start", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("POST", tt.path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.want, w.Code)
		}
	}
}

func TestServer_ResetAll(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("POST", "/processes/reset", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", w.Code)
	}

	cmd := <-srv.Commands()
	if cmd.Action != supervisor.ActionResetAll {
		t.Errorf("expected reset, got %v", cmd.Action)
	}
}

func TestServer_Submit(t *testing.T) {
	srv := newTestServer()

	err := srv.Submit(supervisor.Command{Action: supervisor.ActionTerminate, Target: 3})
	if !errors.Is(err, ErrNoSuchProcess) {
		t.Fatalf("expected ErrNoSuchProcess, got %v", err)
	}
	if err := srv.Submit(supervisor.Command{Action: supervisor.ActionResetAll, Target: 99}); err != nil {
		t.Fatalf("reset ignores the target: %v", err)
	}
	if err := srv.Submit(supervisor.Command{Action: supervisor.ActionResetAll}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestServer_WebSocketSnapshotOnConnect(t *testing.T) {
	srv := newTestServer()
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ws := dial(t, httpSrv)

	msg := readMessage(t, ws)
	if msg.Type != protocol.TypeSnapshot {
		t.Fatalf("expected snapshot, got %s", msg.Type)
	}
	var p protocol.SnapshotPayload
	json.Unmarshal(msg.Payload, &p)
	if p.Tick != 3 || len(p.Processes) != 3 || p.Running != 1 {
		t.Errorf("unexpected snapshot %+v", p)
	}
}

func TestServer_WebSocketBroadcastsChanges(t *testing.T) {
	srv := newTestServer()
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ws := dial(t, httpSrv)
	readMessage(t, ws)

	// Same content on a later tick is not rebroadcast.
	same := testSnapshot()
	same.Tick = 4
	srv.Publish(same)

	changed := testSnapshot()
	changed.Tick = 5
	changed.Rows[1].LastLine = "FAIL"
	srv.Publish(changed)

	msg := readMessage(t, ws)
	var p protocol.SnapshotPayload
	json.Unmarshal(msg.Payload, &p)
	if p.Tick != 5 || p.Processes[1].LastLine != "FAIL" {
		t.Errorf("expected the changed snapshot, got %+v", p)
	}
}

func TestServer_WebSocketAction(t *testing.T) {
	srv := newTestServer()
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ws := dial(t, httpSrv)
	readMessage(t, ws)

	msg := map[string]any{
		"type":      protocol.TypeProcessAction,
		"payload":   map[string]any{"index": 1, "action": protocol.ActionInterrupt},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, _ := json.Marshal(msg)
	ws.WriteMessage(websocket.TextMessage, data)

	select {
	case cmd := <-srv.Commands():
		if cmd.Action != supervisor.ActionInterrupt || cmd.Target != 1 {
			t.Errorf("unexpected command %+v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for command")
	}
}

func TestServer_WebSocketBusy(t *testing.T) {
	srv := newTestServer()
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	if err := srv.Submit(supervisor.Command{Action: supervisor.ActionResetAll}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ws := dial(t, httpSrv)
	readMessage(t, ws)

	ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"processes.reset"}`))

	resp := readMessage(t, ws)
	if resp.Type != protocol.TypeError {
		t.Fatalf("expected error type, got %s", resp.Type)
	}
	var p protocol.ErrorPayload
	json.Unmarshal(resp.Payload, &p)
	if p.Code != protocol.ErrBusy {
		t.Errorf("expected code %s, got %s", protocol.ErrBusy, p.Code)
	}
}

func TestServer_WebSocketInvalidMessage(t *testing.T) {
	srv := newTestServer()
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	ws := dial(t, httpSrv)
	readMessage(t, ws)

	// Send invalid message.
	ws.WriteMessage(websocket.TextMessage, []byte("not json"))

	// Should get an error message back.
	resp := readMessage(t, ws)
	if resp.Type != protocol.TypeError {
		t.Errorf("expected error type, got %s", resp.Type)
	}
	var p protocol.ErrorPayload
	json.Unmarshal(resp.Payload, &p)
	if p.Code != protocol.ErrInvalidMessage {
		t.Errorf("expected code %s, got %s", protocol.ErrInvalidMessage, p.Code)
	}
}

func TestServer_CORSHeaders(t *testing.T) {
	handler := newTestServer().Handler()

	req := httptest.NewRequest("OPTIONS", "/processes", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS Allow-Origin header")
	}
}
