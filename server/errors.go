package server

import (
	"errors"
	"fmt"

	"github.com/raniellyferreira/heos-mock-device/protocol"
)

var (
	// ErrUnrecognizedCommand indicates no matcher, one-shot handler or
	// built-in answers a command
	ErrUnrecognizedCommand = errors.New("unrecognized command")

	// ErrNoEventSubscriber indicates no connection is registered for change events
	ErrNoEventSubscriber = errors.New("no connection registered for events")

	// ErrAlreadyStarted indicates Start was called on a running server
	ErrAlreadyStarted = errors.New("server already started")

	// ErrStopped indicates the server was stopped and cannot be reused
	ErrStopped = errors.New("server stopped")
)

// UnrecognizedCommandError reports a command line nothing could answer
type UnrecognizedCommandError struct {
	Command protocol.Command
	Line    string
}

// Error implements the error interface
func (e *UnrecognizedCommandError) Error() string {
	return "unrecognized command: " + e.Line
}

// Unwrap returns ErrUnrecognizedCommand
func (e *UnrecognizedCommandError) Unwrap() error {
	return ErrUnrecognizedCommand
}

// FixtureError wraps a failed fixture lookup
type FixtureError struct {
	Command protocol.Command
	Name    string
	Err     error
}

// Error implements the error interface
func (e *FixtureError) Error() string {
	return fmt.Sprintf("fixture %q for %s: %v", e.Name, e.Command, e.Err)
}

// Unwrap returns the wrapped error
func (e *FixtureError) Unwrap() error {
	return e.Err
}

// HandlerError wraps an error returned by a one-shot callback or script
type HandlerError struct {
	Command protocol.Command
	Kind    HandlerKind
	Err     error
}

// Error implements the error interface
func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler for %s: %v", e.Kind, e.Command, e.Err)
}

// Unwrap returns the wrapped error
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// AssertionError reports a request that did not carry what a handler expected
type AssertionError struct {
	Command  protocol.Command
	Field    string
	Expected string
	Actual   string
}

// Error implements the error interface
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed for %s: %s expected %q, got %q", e.Command, e.Field, e.Expected, e.Actual)
}

// MissingParameterError reports a built-in command sent without a parameter it needs
type MissingParameterError struct {
	Command   protocol.Command
	Parameter string
}

// Error implements the error interface
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s: missing parameter %q", e.Command, e.Parameter)
}

// ProtocolError represents a line that could not be parsed as a command
type ProtocolError struct {
	Line string
	Err  error
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

// Unwrap returns the wrapped error
func (e *ProtocolError) Unwrap() error {
	return e.Err
}
