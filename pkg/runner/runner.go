// Package runner runs long-lived service units side by side.
package runner

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Unit is a long-running part of the service, such as the HTTP server or the
// scheduler. It should return promptly once ctx is cancelled.
type Unit struct {
	Name string
	Run  func(ctx context.Context) error
}

// ErrUnitExited wraps the result of a unit that returned without an error,
// so it still ends the group.
var ErrUnitExited = errors.New("unit exited")

type exitError struct {
	name string
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.name, ErrUnitExited)
	}
	return fmt.Sprintf("%s: %v", e.name, e.err)
}

func (e *exitError) Unwrap() error {
	if e.err == nil {
		return ErrUnitExited
	}
	return e.err
}

// FirstToFinish runs all units concurrently. As soon as any of them returns,
// with or without an error, the others are cancelled, and once they have all
// returned the first unit's result is reported. A nil-returning first unit
// yields a nil error; the name of the unit that finished first is returned
// either way.
func FirstToFinish(ctx context.Context, units ...Unit) (string, error) {
	if len(units) == 0 {
		return "", nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range units {
		g.Go(func() error {
			return &exitError{name: u.Name, err: u.Run(gctx)}
		})
	}

	err := g.Wait()
	var exit *exitError
	if !errors.As(err, &exit) {
		return "", err
	}
	return exit.name, exit.err
}
