package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raniellyferreira/heos-mock-device/fixture"
	"github.com/raniellyferreira/heos-mock-device/protocol"
)

// DefaultAddr is the loopback address on the HEOS CLI port
var DefaultAddr = "127.0.0.1:" + strconv.Itoa(protocol.DefaultPort)

// Server is the mock HEOS device
type Server struct {
	resolver *Resolver

	// Server configuration
	addr        string
	readTimeout time.Duration
	logger      Logger
	onFailure   func(error)

	// Connection management
	listener net.Listener
	running  atomic.Bool
	started  bool
	stopped  bool
	sessions []*Session

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	connCount    atomic.Int64
	commandCount atomic.Int64
	eventCount   atomic.Int64

	failures []error
	mu       sync.RWMutex
}

// NewServer creates a mock device listening on addr and answering from fixtures
func NewServer(addr string, fixtures fixture.Provider) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		resolver: NewResolver(fixtures),
		addr:     addr,
		logger:   nopLogger{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetLogger sets the logger; nil disables logging
func (s *Server) SetLogger(logger Logger) {
	if logger == nil {
		logger = nopLogger{}
	}
	s.logger = logger
}

// SetFailureHandler sets a function called with every hard failure
func (s *Server) SetFailureHandler(fn func(error)) {
	s.mu.Lock()
	s.onFailure = fn
	s.mu.Unlock()
}

// SetReadTimeout closes connections idle for longer than timeout; zero disables it
func (s *Server) SetReadTimeout(timeout time.Duration) {
	s.readTimeout = timeout
}

// Resolver returns the response resolver
func (s *Server) Resolver() *Resolver {
	return s.resolver
}

// Start binds the listening socket and begins accepting connections
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.started = true
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptConnections()

	s.logger.Info("Mock device listening", "addr", listener.Addr().String())
	return nil
}

// Stop closes the listener and waits for every connection to finish its
// current request. Pending reads are interrupted; writes in progress are not.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.running.Store(false)
	_ = s.listener.Close()
	sessions := append([]*Session(nil), s.sessions...)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.interrupt()
	}

	s.wg.Wait()
	s.cancel()

	s.logger.Info("Mock device stopped", "addr", s.Addr())
	return nil
}

// Addr returns the listening address
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Port returns the listening TCP port, or 0 before Start
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return 0
	}
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Register adds a matcher answering cmd with fixtureName whenever the query
// carries every required parameter. Matchers are checked in registration order.
func (s *Server) Register(cmd protocol.Command, required protocol.Query, fixtureName string) {
	s.resolver.AddMatcher(NewMatcher(cmd, required, fixtureName))
}

// RegisterOneTime queues a handler that answers the next request for cmd
// not taken by a matcher
func (s *Server) RegisterOneTime(cmd protocol.Command, h Handler) {
	s.resolver.Enqueue(cmd, h)
}

// LoadScript caches a Lua script for ScriptSHA handlers and returns its hash
func (s *Server) LoadScript(source string) string {
	return s.resolver.Scripts().LoadScript(source)
}

// Reset forgets every matcher, queued one-shot handler and cached script.
// Open connections keep their event registration and command log.
func (s *Server) Reset() {
	s.resolver.Reset()
}

// RegisterCommand queues a one-shot callback for the command named by
// fixtureName (dots become slashes) that checks the request targets
// playerID and carries every target argument, then answers with the fixture
func (s *Server) RegisterCommand(fixtureName string, playerID int, target protocol.Query) {
	s.RegisterCommandAs(protocol.CommandFromFixture(fixtureName), fixtureName, playerID, target)
}

// RegisterCommandAs is RegisterCommand with an explicit command
func (s *Server) RegisterCommandAs(cmd protocol.Command, fixtureName string, playerID int, target protocol.Query) {
	target = target.Clone()
	expectedPID := strconv.Itoa(playerID)

	s.RegisterOneTime(cmd, TextCallback(func(ctx context.Context, req *protocol.Request) (string, error) {
		text, err := s.resolver.fetch(ctx, req.Command, fixtureName)
		if err != nil {
			return "", err
		}
		if req.Command != cmd {
			return "", &AssertionError{Command: req.Command, Field: "command", Expected: string(cmd), Actual: string(req.Command)}
		}
		if pid := req.Query["pid"]; pid != expectedPID {
			return "", &AssertionError{Command: req.Command, Field: "pid", Expected: expectedPID, Actual: pid}
		}
		for k, v := range target {
			if got := req.Query[k]; got != v {
				return "", &AssertionError{Command: req.Command, Field: k, Expected: v, Actual: got}
			}
		}
		return text, nil
	}))
}

// WriteEvent pushes event to the first connection, in connection order,
// that registered for change events
func (s *Server) WriteEvent(event string) error {
	s.mu.RLock()
	var target *Session
	for _, sess := range s.sessions {
		if sess.IsRegisteredForEvents() {
			target = sess
			break
		}
	}
	s.mu.RUnlock()

	if target == nil {
		return ErrNoEventSubscriber
	}
	if err := target.WriteLine(event); err != nil {
		return fmt.Errorf("failed to write event to session %s: %w", target.ID(), err)
	}
	s.eventCount.Add(1)
	return nil
}

// Connections returns the live sessions in connection order
func (s *Server) Connections() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Session(nil), s.sessions...)
}

// Failures returns the hard failures recorded so far
func (s *Server) Failures() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]error(nil), s.failures...)
}

// Err joins every recorded failure, or returns nil
func (s *Server) Err() error {
	return errors.Join(s.Failures()...)
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"connected_clients": len(s.sessions),
		"total_connections": s.connCount.Load(),
		"total_commands":    s.commandCount.Load(),
		"total_events":      s.eventCount.Load(),
		"total_failures":    len(s.failures),
	}
}

// acceptConnections accepts new client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return // Server is shutting down
			}
			s.logger.Error("Accept failed", "error", err)
			continue
		}

		s.handleNewClient(conn)
	}
}

// handleNewClient registers a session for conn and starts serving it
func (s *Server) handleNewClient(conn net.Conn) {
	sess := newSession(conn, s)

	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.sessions = append(s.sessions, sess)
	s.wg.Add(1)
	s.mu.Unlock()

	s.connCount.Add(1)
	go sess.serve(s.ctx)
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, other := range s.sessions {
		if other == sess {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			return
		}
	}
}

// fail records a hard failure raised while serving sess
func (s *Server) fail(sess *Session, err error) {
	s.mu.Lock()
	s.failures = append(s.failures, err)
	onFailure := s.onFailure
	s.mu.Unlock()

	s.logger.Error("Request failed", "session", sess.ID(), "error", err)
	if onFailure != nil {
		onFailure(err)
	}
}
