package heosmock

import (
	"errors"
	"fmt"

	"github.com/raniellyferreira/heos-mock-device/server"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosed indicates the device has been stopped
	ErrClosed = errors.New("device is stopped")

	// ErrUnrecognizedCommand indicates a command no tier could answer
	ErrUnrecognizedCommand = server.ErrUnrecognizedCommand

	// ErrNoEventSubscriber indicates no connection is registered for change events
	ErrNoEventSubscriber = server.ErrNoEventSubscriber

	// ErrAlreadyStarted indicates Start was called twice
	ErrAlreadyStarted = server.ErrAlreadyStarted
)

// ConnectionError represents a failure to reach a fixture backend or to
// bind the listening socket
type ConnectionError struct {
	Addr string
	Err  error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error to %s: %v", e.Addr, e.Err)
}

// Unwrap returns the wrapped error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}
