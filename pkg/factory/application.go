package factory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	bridgeerrors "github.com/wehubfusion/rackbridge/pkg/errors"
	"github.com/wehubfusion/rackbridge/pkg/jsruntime"
	"github.com/wehubfusion/rackbridge/pkg/rack"
	"github.com/wehubfusion/rackbridge/pkg/rack/env"
	"github.com/wehubfusion/rackbridge/pkg/script"
	"go.uber.org/zap"
)

// Application is a unit that can be initialized, called with an
// environment, and destroyed.
type Application interface {
	Init(ctx context.Context) error
	Call(ctx context.Context, e *env.Env) (*rack.Response, error)
	Destroy()
}

// State is the lifecycle state of an Instance.
type State int

const (
	StateCreated State = iota
	StateInitialized
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Instance is an application bound to its own runtime. The runtime exists
// from construction and is released by Destroy.
type Instance struct {
	id       string
	rt       *jsruntime.Runtime
	location script.Location
	metrics  *Metrics
	logger   *zap.Logger

	// onInitError runs when Init fails, before the error is returned
	onInitError func(rt *jsruntime.Runtime, err error)

	mu    sync.Mutex
	state State
}

// ID returns the instance identifier.
func (a *Instance) ID() string {
	return a.id
}

// State returns the lifecycle state.
func (a *Instance) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Runtime returns the runtime backing the instance.
func (a *Instance) Runtime() *jsruntime.Runtime {
	return a.rt
}

// Init builds the application object from the instance's script. Calling
// Init on an initialized instance is a no-op. Loading runs to completion
// regardless of cancellation.
func (a *Instance) Init(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateInitialized:
		return nil
	case StateDestroyed:
		return bridgeerrors.ErrDestroyed
	}

	if err := a.rt.Load(a.location.Script, a.location.Label); err != nil {
		if a.onInitError != nil {
			a.onInitError(a.rt, err)
		}
		return err
	}

	a.state = StateInitialized
	a.logger.Debug("application initialized",
		zap.String("id", a.id),
		zap.String("location", a.location.Label))
	return nil
}

// Call invokes the application.
func (a *Instance) Call(ctx context.Context, e *env.Env) (*rack.Response, error) {
	switch a.State() {
	case StateCreated:
		return nil, bridgeerrors.ErrNotInitialized
	case StateDestroyed:
		return nil, bridgeerrors.ErrDestroyed
	}
	return a.rt.Call(ctx, e)
}

// Destroy tears down the runtime. Safe to call more than once.
func (a *Instance) Destroy() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateDestroyed {
		return
	}
	a.state = StateDestroyed
	a.rt.TearDown()
	a.metrics.runtimeDestroyed()
	a.logger.Debug("application destroyed", zap.String("id", a.id))
}

// defaultErrorApplication answers every request with a plain 500 and never
// allocates a runtime.
type defaultErrorApplication struct {
	logger *zap.Logger
}

func newDefaultErrorApplication(logger *zap.Logger) *defaultErrorApplication {
	return &defaultErrorApplication{logger: logger}
}

func (a *defaultErrorApplication) Init(context.Context) error {
	return nil
}

func (a *defaultErrorApplication) Call(_ context.Context, e *env.Env) (*rack.Response, error) {
	msg := "Internal Server Error"
	if v, ok := e.Get(env.KeyException); ok {
		if err, ok := v.(error); ok {
			msg += ": " + err.Error()
			a.logger.Error("request failed", zap.Error(err))
		}
	}
	return &rack.Response{
		Status:  500,
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    []byte(msg),
	}, nil
}

func (a *defaultErrorApplication) Destroy() {}

var (
	_ Application = (*Instance)(nil)
	_ Application = (*defaultErrorApplication)(nil)
)

func newInstanceID() string {
	return uuid.NewString()
}
