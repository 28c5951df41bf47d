// Package gate decouples "this service object exists" from "the engine has
// finished its slow, failable startup". Dependents are constructed against
// the gate immediately; only operations that truly need the engine wait.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"notify-service/internal/engine"
)

// ErrUnavailable is surfaced by every dependent operation once
// initialization has failed. The failure is permanent for the process
// lifetime; there is no silent retry.
var ErrUnavailable = errors.New("notification engine unavailable")

// State is the gate's lifecycle position. Ready and Failed are terminal.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Factory constructs the engine. It runs at most once per process; the
// returned engine's Start is invoked as part of the same attempt.
type Factory func(ctx context.Context) (engine.Engine, error)

// Gate is a single-flight asynchronous initializer around engine
// construction.
type Gate struct {
	factory Factory

	mu    sync.Mutex
	state State
	eng   engine.Engine
	err   error
	done  chan struct{}
}

func New(factory Factory) *Gate {
	return &Gate{
		factory: factory,
		done:    make(chan struct{}),
	}
}

// Initialize starts the single engine construction if none has run and waits
// for the attempt's terminal outcome. Concurrent and repeated callers share
// the one attempt: after the gate is Ready or Failed it returns the recorded
// outcome without re-invoking the factory.
func (g *Gate) Initialize(ctx context.Context) error {
	g.mu.Lock()
	if g.state == StateUninitialized {
		g.state = StateInitializing
		go g.run()
	}
	g.mu.Unlock()

	_, err := g.AwaitReady(ctx)
	return err
}

// AwaitReady suspends the calling operation until the gate reaches a
// terminal state. It never blocks construction of dependent components;
// those hold the gate itself, not the engine.
func (g *Gate) AwaitReady(ctx context.Context) (engine.Engine, error) {
	select {
	case <-g.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.eng, nil
}

// State reports the current lifecycle position without blocking.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Err returns the recorded initialization failure, if any.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Shutdown stops the engine if initialization succeeded.
func (g *Gate) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	eng := g.eng
	g.mu.Unlock()
	if eng == nil {
		return nil
	}
	return eng.Stop(ctx)
}

// run executes the one construction attempt. It deliberately uses a
// background context: callers abandoning Initialize must not cancel the
// shared attempt for everyone else.
func (g *Gate) run() {
	ctx := context.Background()

	eng, err := g.factory(ctx)
	if err == nil {
		err = eng.Start(ctx)
	}

	g.mu.Lock()
	if err != nil {
		g.state = StateFailed
		g.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		slog.Error("Notification engine initialization failed", "error", err)
	} else {
		g.state = StateReady
		g.eng = eng
		slog.Info("Notification engine ready")
	}
	g.mu.Unlock()

	close(g.done)
}
