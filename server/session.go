package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/raniellyferreira/heos-mock-device/protocol"
)

// SessionState is the lifecycle state of a Session
type SessionState int32

const (
	// SessionActive means the session is reading and serving commands
	SessionActive SessionState = iota
	// SessionClosing means the session left its read loop
	SessionClosing
	// SessionClosed means the session was removed from the server
	SessionClosed
)

// String returns the state name
func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionClosing:
		return "closing"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one accepted connection to the mock device
type Session struct {
	id     string
	conn   net.Conn
	reader *protocol.Reader
	server *Server

	// writeMu keeps every framed line whole when events and responses interleave
	writeMu sync.Mutex
	writer  *protocol.Writer

	mu                  sync.RWMutex
	registeredForEvents bool
	commands            map[protocol.Command][]string
	state               atomic.Int32
	connectedAt         time.Time
}

func newSession(conn net.Conn, srv *Server) *Session {
	return &Session{
		id:          uuid.NewString(),
		conn:        conn,
		reader:      protocol.NewReader(conn),
		writer:      protocol.NewWriter(conn),
		server:      srv,
		commands:    make(map[protocol.Command][]string),
		connectedAt: time.Now(),
	}
}

// ID returns a unique identifier for the session
func (s *Session) ID() string {
	return s.id
}

// RemoteAddr returns the peer address
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// ConnectedAt returns when the connection was accepted
func (s *Session) ConnectedAt() time.Time {
	return s.connectedAt
}

// State returns the lifecycle state
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// IsRegisteredForEvents reports whether the connection enabled change events
func (s *Session) IsRegisteredForEvents() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registeredForEvents
}

func (s *Session) setRegisteredForEvents(registered bool) {
	s.mu.Lock()
	s.registeredForEvents = registered
	s.mu.Unlock()
}

// Commands returns a copy of the raw lines received, grouped by command
func (s *Session) Commands() map[protocol.Command][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[protocol.Command][]string, len(s.commands))
	for cmd, lines := range s.commands {
		out[cmd] = append([]string(nil), lines...)
	}
	return out
}

// CommandLines returns the raw lines received for cmd in arrival order
func (s *Session) CommandLines(cmd protocol.Command) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.commands[cmd]...)
}

func (s *Session) record(req *protocol.Request) {
	s.mu.Lock()
	s.commands[req.Command] = append(s.commands[req.Command], req.Raw)
	s.mu.Unlock()
}

// WriteLine writes one framed line to the connection
func (s *Session) WriteLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writer.WriteLine(line)
}

// writeLines writes each line as its own frame; other writers may slip in
// between lines but never inside one
func (s *Session) writeLines(lines []string) error {
	for _, line := range lines {
		if err := s.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

// serve runs the read/resolve/write cycle until the peer goes away, the
// server stops or a request fails
func (s *Session) serve(ctx context.Context) {
	defer s.server.wg.Done()
	defer s.close()

	logger := s.server.logger
	logger.Debug("Connection opened", "session", s.id, "remote", s.RemoteAddr())

	for s.server.running.Load() {
		if timeout := s.server.readTimeout; timeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(timeout))
		}

		line, err := s.reader.ReadLine()
		if err != nil {
			if !s.server.running.Load() || protocol.IsIncomplete(err) || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Debug("Read failed", "session", s.id, "error", err)
			return
		}
		if !s.server.running.Load() {
			return
		}

		req, err := protocol.ParseRequest(line)
		if err != nil {
			s.server.fail(s, &ProtocolError{Line: line, Err: err})
			return
		}
		s.record(req)
		s.server.commandCount.Add(1)

		lines, err := s.server.resolver.Resolve(ctx, s, req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.server.fail(s, err)
			return
		}

		if err := s.writeLines(lines); err != nil {
			logger.Debug("Write failed", "session", s.id, "error", err)
			return
		}
	}
}

// interrupt unblocks a pending read without touching the write side
func (s *Session) interrupt() {
	if cr, ok := s.conn.(interface{ CloseRead() error }); ok {
		if err := cr.CloseRead(); err == nil {
			return
		}
	}
	_ = s.conn.SetReadDeadline(time.Now())
}

func (s *Session) close() {
	s.state.Store(int32(SessionClosing))

	// wait for an in-flight event write before closing the socket
	s.writeMu.Lock()
	_ = s.conn.Close()
	s.writeMu.Unlock()

	s.server.removeSession(s)
	s.state.Store(int32(SessionClosed))
	s.server.logger.Debug("Connection closed", "session", s.id, "duration", time.Since(s.ConnectedAt()))
}
