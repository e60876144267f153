package factory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	bridgeerrors "github.com/wehubfusion/rackbridge/pkg/errors"
	"github.com/wehubfusion/rackbridge/pkg/resources"
	"github.com/wehubfusion/rackbridge/pkg/script"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// DefaultErrorScript builds the error application when none is configured
	DefaultErrorScript = "use(Rack.ShowStatus);\nrun(new Rack.ErrorApp());"

	defaultErrorLabel = "error_app.js"
)

type appRef struct {
	app Application
}

// errorAppCell holds the shared error application. Reads take the atomic
// fast path; construction, replacement and teardown serialize on mu.
type errorAppCell struct {
	mu  sync.Mutex
	ref atomic.Pointer[appRef]
}

func (c *errorAppCell) get() Application {
	if r := c.ref.Load(); r != nil {
		return r.app
	}
	return nil
}

func (c *errorAppCell) getOrCreate(create func() Application) Application {
	if r := c.ref.Load(); r != nil {
		return r.app
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if r := c.ref.Load(); r != nil {
		return r.app
	}
	app := create()
	c.ref.Store(&appRef{app: app})
	return app
}

func (c *errorAppCell) set(app Application) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if app == nil {
		c.ref.Store(nil)
		return
	}
	c.ref.Store(&appRef{app: app})
}

// destroy tears the current application down exactly once.
func (c *errorAppCell) destroy() {
	if c.ref.Load() == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.ref.Load()
	if r == nil {
		return
	}
	c.ref.Store(nil)
	r.app.Destroy()
}

// GetErrorApplication returns the shared error application, building it on
// first use. It never fails: when the configured error application cannot
// be built a minimal responder is used instead. Construction outlives the
// first caller, so cancellation of ctx does not affect it.
func (f *Factory) GetErrorApplication(ctx context.Context) Application {
	return f.errorApp.getOrCreate(func() Application {
		return f.newErrorApplication(context.WithoutCancel(ctx))
	})
}

// SetErrorApplication replaces the shared error application. The previous
// one is not destroyed.
func (f *Factory) SetErrorApplication(app Application) {
	f.errorApp.set(app)
}

func (f *Factory) newErrorApplication(ctx context.Context) Application {
	if f.config().ErrorAppDisabled() {
		return newDefaultErrorApplication(f.logger)
	}

	ctx, span := f.tracer.Start(ctx, "factory.new_error_application")
	defer span.End()

	app, err := f.buildErrorApplication(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error application could not be initialized")
		f.logger.Warn("error application could not be initialized", zap.Error(err))
		f.metrics.errorAppFallback()
		return newDefaultErrorApplication(f.logger)
	}
	return app
}

// buildErrorApplication converts a construction panic into an error.
func (f *Factory) buildErrorApplication(ctx context.Context) (app Application, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			app = nil
			err = bridgeerrors.NewError(bridgeerrors.CodeErrorAppConstruction,
				"error application construction panicked", fmt.Errorf("%v", rec))
		}
	}()

	build := f.errorAppBuilder
	if build == nil {
		build = f.constructErrorApplication
	}
	app, err = build(ctx)
	if err != nil {
		return nil, bridgeerrors.NewError(bridgeerrors.CodeErrorAppConstruction,
			"error application construction failed", err)
	}
	return app, nil
}

func (f *Factory) constructErrorApplication(ctx context.Context) (Application, error) {
	inst, err := f.newInstance(f.errorScript(), nil)
	if err != nil {
		return nil, err
	}
	if err := inst.Init(ctx); err != nil {
		inst.Destroy()
		return nil, err
	}
	return inst, nil
}

// errorScript picks the error application source: inline configuration,
// then a configured resource, then the built-in default.
func (f *Factory) errorScript() script.Location {
	cfg := f.config().Error
	if cfg.App != nil {
		return script.Location{Script: *cfg.App, Label: script.ConfigLabel}
	}

	if cfg.AppPath != nil {
		path := *cfg.AppPath
		ns := f.rctx.Resources()
		if ns == nil {
			f.logger.Warn("failed to read error.app_path, using default error application",
				zap.String("path", path),
				zap.String("reason", "no resource namespace"))
		} else if src, err := resources.ReadString(ns, path); err != nil {
			f.logger.Warn("failed to read error.app_path, using default error application",
				zap.String("path", path),
				zap.Error(err))
		} else {
			label, _ := ns.RealPath(path)
			if label == "" {
				label = path
			}
			return script.Location{Script: src, Label: label}
		}
	}

	return script.Location{Script: DefaultErrorScript, Label: defaultErrorLabel}
}
