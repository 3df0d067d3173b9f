// Package realtime serves the process dashboard to remote clients over a
// WebSocket and a small REST API, and feeds their commands back into the
// supervisor loop.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"cursedprocs/internal/protocol"
	"cursedprocs/internal/supervisor"

	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

var (
	// ErrBusy means a remote command is already waiting for the next tick.
	ErrBusy = errors.New("another command is pending")
	// ErrNoSuchProcess means the command targets an index outside the list.
	ErrNoSuchProcess = errors.New("no such process")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard is meant for localhost.
	},
}

// Server broadcasts published snapshots to WebSocket clients and queues at
// most one remote command at a time.
type Server struct {
	logger   *slog.Logger
	commands chan supervisor.Command

	clients   map[*client]bool
	clientsMu sync.RWMutex

	latest    supervisor.Snapshot
	published bool
	latestMu  sync.RWMutex
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// New creates a new realtime server.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:   logger.With("component", "realtime"),
		commands: make(chan supervisor.Command, 1),
		clients:  make(map[*client]bool),
	}
}

// Commands is the channel the supervisor drains, one command per tick.
func (s *Server) Commands() <-chan supervisor.Command {
	return s.commands
}

// Submit queues cmd without blocking. Start, terminate, kill and interrupt
// must target a process in the latest snapshot.
func (s *Server) Submit(cmd supervisor.Command) error {
	if cmd.Action != supervisor.ActionResetAll {
		s.latestMu.RLock()
		n := len(s.latest.Rows)
		s.latestMu.RUnlock()
		if cmd.Target < 0 || cmd.Target >= n {
			return fmt.Errorf("%w: index %d", ErrNoSuchProcess, cmd.Target)
		}
	}

	select {
	case s.commands <- cmd:
		s.logger.Debug("remote command queued", "action", cmd.Action.String(), "target", cmd.Target)
		return nil
	default:
		return ErrBusy
	}
}

// Publish records snap as the latest state and broadcasts it when it differs
// from the previous one. It never blocks on slow clients.
func (s *Server) Publish(snap supervisor.Snapshot) {
	s.latestMu.Lock()
	changed := !s.published || !snap.SameContent(s.latest)
	s.latest = snap
	s.published = true
	s.latestMu.Unlock()

	if !changed {
		return
	}
	msg, err := protocol.NewMessage(protocol.TypeSnapshot, snapshotPayload(snap))
	if err != nil {
		s.logger.Error("encode snapshot", "error", err)
		return
	}
	s.broadcast(msg)
}

// Latest returns the most recently published snapshot.
func (s *Server) Latest() supervisor.Snapshot {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint.
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API endpoints.
	mux.HandleFunc("GET /processes", s.handleListProcesses)
	mux.HandleFunc("GET /processes/{index}", s.handleGetProcess)
	mux.HandleFunc("POST /processes/reset", s.handleResetAll)
	mux.HandleFunc("POST /processes/{index}/{action}", s.handleProcessAction)

	return corsMiddleware(mux)
}

// Close disconnects every WebSocket client.
func (s *Server) Close() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for c := range s.clients {
		c.conn.Close()
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleWebSocket upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, 64),
		server: s,
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()

	// New clients start from the latest state.
	s.latestMu.RLock()
	snap, published := s.latest, s.published
	s.latestMu.RUnlock()
	if published {
		if msg, err := protocol.NewMessage(protocol.TypeSnapshot, snapshotPayload(snap)); err == nil {
			c.enqueue(msg)
		}
	}

	go c.writePump()
	go c.readPump()
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("websocket read", "error", err)
			}
			return
		}

		c.server.handleMessage(c, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue drops the message when the client is too far behind.
func (c *client) enqueue(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// removeClient cleans up a disconnected client.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()

	close(c.send)
}

// handleMessage processes a validated client message.
func (s *Server) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ValidateClientMessage(raw)
	if err != nil {
		s.sendError(c, protocol.ErrInvalidMessage, err.Error())
		return
	}

	var cmd supervisor.Command
	switch msg.Type {
	case protocol.TypeProcessAction:
		var p protocol.ProcessActionPayload
		json.Unmarshal(msg.Payload, &p)
		action, err := supervisor.ParseAction(p.Action)
		if err != nil {
			s.sendError(c, protocol.ErrInvalidMessage, err.Error())
			return
		}
		cmd = supervisor.Command{Action: action, Target: *p.Index}
	case protocol.TypeProcessesReset:
		cmd = supervisor.Command{Action: supervisor.ActionResetAll}
	}

	if err := s.Submit(cmd); err != nil {
		s.sendError(c, errorCode(err), err.Error())
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrBusy):
		return protocol.ErrBusy
	case errors.Is(err, ErrNoSuchProcess):
		return protocol.ErrNoSuchProcess
	}
	return protocol.ErrInvalidMessage
}

// broadcast sends a message to all connected clients.
func (s *Server) broadcast(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, skip.
		}
	}
}

func (s *Server) sendError(c *client, code, message string) {
	msg, _ := protocol.NewErrorMessage(code, message)
	c.enqueue(msg)
}
