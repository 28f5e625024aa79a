package fixture

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates that no fixture exists under the requested name
var ErrNotFound = errors.New("fixture not found")

// Provider looks up fixture text by name
type Provider interface {
	// Fetch returns the text of the named fixture or an error wrapping
	// ErrNotFound when the name is unknown
	Fetch(ctx context.Context, name string) (string, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, name string) (string, error)

// Fetch calls f(ctx, name)
func (f ProviderFunc) Fetch(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// NotFoundError names the fixture that could not be found
type NotFoundError struct {
	Name   string
	Source string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("fixture %q not found", e.Name)
	}
	return fmt.Sprintf("fixture %q not found in %s", e.Name, e.Source)
}

// Unwrap returns ErrNotFound
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Chain queries providers in order and returns the first hit. Errors other
// than ErrNotFound stop the lookup.
type Chain []Provider

// Fetch implements Provider
func (c Chain) Fetch(ctx context.Context, name string) (string, error) {
	for _, p := range c {
		text, err := p.Fetch(ctx, name)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", &NotFoundError{Name: name}
}
