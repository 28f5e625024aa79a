package server

import (
	"context"

	"github.com/raniellyferreira/heos-mock-device/protocol"
)

// HandlerKind tags the variant held by a Handler
type HandlerKind int

const (
	// HandlerFixture answers with a named fixture
	HandlerFixture HandlerKind = iota
	// HandlerCallback answers with the lines returned by a Go function
	HandlerCallback
	// HandlerScript answers with the lines returned by a Lua script
	HandlerScript
)

// String returns the kind name
func (k HandlerKind) String() string {
	switch k {
	case HandlerFixture:
		return "fixture"
	case HandlerCallback:
		return "callback"
	case HandlerScript:
		return "script"
	default:
		return "unknown"
	}
}

// CallbackFunc produces the response lines for a request. Returning an
// error fails the request.
type CallbackFunc func(ctx context.Context, req *protocol.Request) ([]string, error)

// Handler is a one-shot response: a fixture name, a callback or a script
type Handler struct {
	kind     HandlerKind
	fixture  string
	callback CallbackFunc
	script   string
	sha      string
}

// Fixture returns a handler answering with the named fixture
func Fixture(name string) Handler {
	return Handler{kind: HandlerFixture, fixture: name}
}

// Callback returns a handler answering with fn's lines
func Callback(fn CallbackFunc) Handler {
	return Handler{kind: HandlerCallback, callback: fn}
}

// TextCallback returns a handler answering with the single line fn returns
func TextCallback(fn func(ctx context.Context, req *protocol.Request) (string, error)) Handler {
	return Callback(func(ctx context.Context, req *protocol.Request) ([]string, error) {
		text, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	})
}

// Script returns a handler answering with the result of a Lua script
func Script(source string) Handler {
	return Handler{kind: HandlerScript, script: source}
}

// ScriptSHA returns a handler running a script cached with
// Server.LoadScript. An unknown hash fails the request.
func ScriptSHA(sha string) Handler {
	return Handler{kind: HandlerScript, sha: sha}
}

// Kind returns the handler variant
func (h Handler) Kind() HandlerKind {
	return h.kind
}
