package server

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/raniellyferreira/heos-mock-device/fixture"
	"github.com/raniellyferreira/heos-mock-device/protocol"
	"github.com/raniellyferreira/heos-mock-device/script"
)

// Built-in commands
const (
	CommandRegisterForChangeEvents protocol.Command = "system/register_for_change_events"
	CommandGetPlayers              protocol.Command = "player/get_players"
	CommandGetPlayState            protocol.Command = "player/get_play_state"
	CommandGetNowPlayingMedia      protocol.Command = "player/get_now_playing_media"
	CommandGetVolume               protocol.Command = "player/get_volume"
	CommandGetMute                 protocol.Command = "player/get_mute"
	CommandGetPlayMode             protocol.Command = "player/get_play_mode"
)

// eventRegistrar is the per-connection state a built-in may change
type eventRegistrar interface {
	setRegisteredForEvents(registered bool)
}

type builtinFunc func(ctx context.Context, r *Resolver, conn eventRegistrar, req *protocol.Request) ([]string, error)

var builtins = map[protocol.Command]builtinFunc{
	CommandRegisterForChangeEvents: registerForChangeEvents,
	CommandGetPlayers:              plainFixture,
	CommandGetPlayState:            playerFixture,
	CommandGetNowPlayingMedia:      playerFixture,
	CommandGetVolume:               playerFixture,
	CommandGetMute:                 playerFixture,
	CommandGetPlayMode:             playerFixture,
}

// IsBuiltin reports whether cmd is answered by the built-in tier
func IsBuiltin(cmd protocol.Command) bool {
	_, ok := builtins[cmd]
	return ok
}

// Resolver computes responses for requests. It owns the matcher list and
// the one-shot handler queues and is safe for concurrent use.
type Resolver struct {
	fixtures fixture.Provider
	scripts  *script.Engine

	mu       sync.Mutex
	matchers []Matcher
	oneShot  map[protocol.Command][]Handler
}

// NewResolver creates a resolver answering from fixtures
func NewResolver(fixtures fixture.Provider) *Resolver {
	return &Resolver{
		fixtures: fixtures,
		scripts:  script.NewEngine(fixtures),
		oneShot:  make(map[protocol.Command][]Handler),
	}
}

// Scripts returns the Lua engine used for script handlers
func (r *Resolver) Scripts() *script.Engine {
	return r.scripts
}

// AddMatcher appends a matcher; earlier matchers take priority
func (r *Resolver) AddMatcher(m Matcher) {
	r.mu.Lock()
	r.matchers = append(r.matchers, m)
	r.mu.Unlock()
}

// Matchers returns a copy of the registered matchers in priority order
func (r *Resolver) Matchers() []Matcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Matcher(nil), r.matchers...)
}

// Enqueue appends a one-shot handler for cmd
func (r *Resolver) Enqueue(cmd protocol.Command, h Handler) {
	r.mu.Lock()
	r.oneShot[cmd] = append(r.oneShot[cmd], h)
	r.mu.Unlock()
}

// Pending returns how many one-shot handlers are queued for cmd
func (r *Resolver) Pending(cmd protocol.Command) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.oneShot[cmd])
}

// Reset drops every matcher, queued one-shot handler and cached script
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.matchers = nil
	r.oneShot = make(map[protocol.Command][]Handler)
	r.mu.Unlock()
	r.scripts.ScriptFlush()
}

// Resolve returns the response lines for req. conn receives the event
// registration state change of system/register_for_change_events.
func (r *Resolver) Resolve(ctx context.Context, conn eventRegistrar, req *protocol.Request) ([]string, error) {
	if m, ok := r.match(req); ok {
		text, err := r.fetch(ctx, req.Command, m.Fixture)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	}

	if h, ok := r.pop(req.Command); ok {
		return r.runHandler(ctx, h, req)
	}

	if fn, ok := builtins[req.Command]; ok {
		return fn(ctx, r, conn, req)
	}

	return nil, &UnrecognizedCommandError{Command: req.Command, Line: req.Raw}
}

func (r *Resolver) match(req *protocol.Request) (Matcher, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matchers {
		if m.Matches(req) {
			return m, true
		}
	}
	return Matcher{}, false
}

// pop removes the front handler for cmd; check and removal share one critical section
func (r *Resolver) pop(cmd protocol.Command) (Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.oneShot[cmd]
	if len(queue) == 0 {
		return Handler{}, false
	}
	h := queue[0]
	if len(queue) == 1 {
		delete(r.oneShot, cmd)
	} else {
		r.oneShot[cmd] = queue[1:]
	}
	return h, true
}

func (r *Resolver) runHandler(ctx context.Context, h Handler, req *protocol.Request) ([]string, error) {
	switch h.kind {
	case HandlerFixture:
		text, err := r.fetch(ctx, req.Command, h.fixture)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	case HandlerCallback:
		lines, err := h.callback(ctx, req)
		if err != nil {
			return nil, &HandlerError{Command: req.Command, Kind: h.kind, Err: err}
		}
		return lines, nil
	case HandlerScript:
		var lines []string
		var err error
		if h.sha != "" {
			lines, err = r.scripts.EvalSHA(ctx, h.sha, req)
		} else {
			lines, err = r.scripts.Eval(ctx, h.script, req)
		}
		if err != nil {
			return nil, &HandlerError{Command: req.Command, Kind: h.kind, Err: err}
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("unknown handler kind %d", h.kind)
	}
}

func (r *Resolver) fetch(ctx context.Context, cmd protocol.Command, name string) (string, error) {
	if r.fixtures == nil {
		return "", &FixtureError{Command: cmd, Name: name, Err: &fixture.NotFoundError{Name: name}}
	}
	text, err := r.fixtures.Fetch(ctx, name)
	if err != nil {
		return "", &FixtureError{Command: cmd, Name: name, Err: err}
	}
	return text, nil
}

func requireParam(req *protocol.Request, name string) (string, error) {
	v, ok := req.Query[name]
	if !ok {
		return "", &MissingParameterError{Command: req.Command, Parameter: name}
	}
	return v, nil
}

func registerForChangeEvents(ctx context.Context, r *Resolver, conn eventRegistrar, req *protocol.Request) ([]string, error) {
	enable, err := requireParam(req, "enable")
	if err != nil {
		return nil, err
	}
	switch enable {
	case "on":
		conn.setRegisteredForEvents(true)
	case "off":
		conn.setRegisteredForEvents(false)
	}

	text, err := r.fetch(ctx, req.Command, req.FixtureName())
	if err != nil {
		return nil, err
	}
	return []string{strings.ReplaceAll(text, "{enable}", enable)}, nil
}

func plainFixture(ctx context.Context, r *Resolver, _ eventRegistrar, req *protocol.Request) ([]string, error) {
	text, err := r.fetch(ctx, req.Command, req.FixtureName())
	if err != nil {
		return nil, err
	}
	return []string{text}, nil
}

func playerFixture(ctx context.Context, r *Resolver, _ eventRegistrar, req *protocol.Request) ([]string, error) {
	pid, err := requireParam(req, "pid")
	if err != nil {
		return nil, err
	}
	sequence, err := requireParam(req, "sequence")
	if err != nil {
		return nil, err
	}

	text, err := r.fetch(ctx, req.Command, req.FixtureName())
	if err != nil {
		return nil, err
	}
	text = strings.NewReplacer("{player_id}", pid, "{sequence}", sequence).Replace(text)
	return []string{text}, nil
}
