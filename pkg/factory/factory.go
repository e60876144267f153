// Package factory creates, initializes and destroys applications, each in
// its own runtime, and manages the shared error application.
//
// Applications are not pooled: every GetApplication builds a fresh runtime
// that the caller hands back through FinishedWithApplication. The error
// application is the only state shared between callers.
package factory

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/wehubfusion/rackbridge/pkg/config"
	bridgeerrors "github.com/wehubfusion/rackbridge/pkg/errors"
	"github.com/wehubfusion/rackbridge/pkg/jsruntime"
	"github.com/wehubfusion/rackbridge/pkg/rack"
	"github.com/wehubfusion/rackbridge/pkg/script"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName   = "github.com/wehubfusion/rackbridge/pkg/factory"
	flushTimeout = 2 * time.Second
)

// emptyLocation is used when no entry script is found.
var emptyLocation = script.Location{Script: "", Label: script.ConfigLabel}

// Factory builds applications from the resolved entry script.
type Factory struct {
	rctx          *rack.Context
	logger        *zap.Logger
	location      script.Location
	runtimeConfig jsruntime.Config
	initialized   bool

	metrics *Metrics
	tracer  trace.Tracer
	hub     *sentry.Hub

	errorApp errorAppCell

	// errorAppBuilder replaces error application construction in tests
	errorAppBuilder func(ctx context.Context) (Application, error)
}

// Option configures a Factory.
type Option func(*Factory)

// WithMetrics enables lifecycle metrics.
func WithMetrics(m *Metrics) Option {
	return func(f *Factory) {
		f.metrics = m
	}
}

// WithTracerProvider sets the tracer provider. The global provider is used
// by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(f *Factory) {
		f.tracer = tp.Tracer(tracerName)
	}
}

// WithSentryHub sets the hub initialization failures are reported to. When
// unset and sentry.dsn is configured, Init creates one.
func WithSentryHub(hub *sentry.Hub) Option {
	return func(f *Factory) {
		f.hub = hub
	}
}

// New creates an uninitialized factory.
func New(opts ...Option) *Factory {
	f := &Factory{
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Init resolves the entry script, prepares the runtime configuration and
// buffer policy, and registers rctx as the process fallback context. Init is
// not safe for concurrent use and must complete before applications are
// requested.
func (f *Factory) Init(ctx context.Context, rctx *rack.Context) error {
	if rctx == nil {
		return bridgeerrors.MissingContext()
	}
	_, span := f.tracer.Start(ctx, "factory.init")
	defer span.End()

	f.rctx = rctx
	f.logger = rctx.Logger().Named("factory")
	cfg := rctx.Config()

	loc, err := script.NewResolver(cfg, rctx.Resources(), f.logger).Resolve()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rackup resolution failed")
		return err
	}
	if loc == nil {
		f.logger.Warn("no rackup script found - starting empty application")
		loc = &emptyLocation
	}
	f.location = *loc
	span.SetAttributes(attribute.String("rackup.location", f.location.Label))

	f.runtimeConfig = jsruntime.NewConfig(cfg, f.logger)
	if err := f.runtimeConfig.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid runtime configuration")
		return err
	}
	version := f.runtimeConfig.VersionString()
	f.logger.Info(version)
	rctx.SetRuntimeVersion(version)

	configureBufferPolicy(rctx, f.logger)
	rack.SetDefault(rctx)

	if f.hub == nil && cfg.Sentry.DSN != "" {
		client, err := sentry.NewClient(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		})
		if err != nil {
			f.logger.Warn("failed to initialize sentry client", zap.Error(err))
		} else {
			f.hub = sentry.NewHub(client, sentry.NewScope())
		}
	}

	f.initialized = true
	return nil
}

// Context returns the rack context the factory was initialized with.
func (f *Factory) Context() *rack.Context {
	return f.rctx
}

// Location returns the resolved entry script.
func (f *Factory) Location() script.Location {
	return f.location
}

// RuntimeConfig returns the configuration shared by every runtime.
func (f *Factory) RuntimeConfig() jsruntime.Config {
	return f.runtimeConfig
}

func (f *Factory) config() *config.Config {
	if f.rctx == nil {
		return config.Default()
	}
	return f.rctx.Config()
}

// NewApplication creates an application in a fresh runtime without
// initializing it.
func (f *Factory) NewApplication() (*Instance, error) {
	return f.newInstance(f.location, f.captureFailure)
}

func (f *Factory) newInstance(loc script.Location, onInitError func(*jsruntime.Runtime, error)) (*Instance, error) {
	if !f.initialized {
		return nil, bridgeerrors.ErrNotInitialized
	}

	rt, err := jsruntime.New(f.runtimeConfig, f.rctx)
	if err != nil {
		return nil, err
	}
	f.metrics.runtimeCreated()

	return &Instance{
		id:          newInstanceID(),
		rt:          rt,
		location:    loc,
		metrics:     f.metrics,
		logger:      f.logger,
		onInitError: onInitError,
		state:       StateCreated,
	}, nil
}

// GetApplication creates and initializes an application. When
// initialization fails the failure is captured, the runtime is released and
// the original error is returned wrapped as an application init error.
func (f *Factory) GetApplication(ctx context.Context) (Application, error) {
	ctx, span := f.tracer.Start(ctx, "factory.get_application")
	defer span.End()

	app, err := f.NewApplication()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "runtime creation failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("application.id", app.ID()))

	if err := app.Init(ctx); err != nil {
		f.metrics.initFailed()
		app.Destroy()
		span.RecordError(err)
		span.SetStatus(codes.Error, "application initialization failed")
		f.logger.Error("application initialization failed",
			zap.String("location", f.location.Label),
			zap.Error(err))
		return nil, bridgeerrors.ApplicationInit(err)
	}
	return app, nil
}

// FinishedWithApplication destroys an application obtained from this
// factory. A nil application is ignored.
func (f *Factory) FinishedWithApplication(app Application) {
	if app == nil {
		return
	}
	if inst, ok := app.(*Instance); ok && inst == nil {
		return
	}
	app.Destroy()
}

// Destroy tears down the shared error application. Safe to call more than
// once.
func (f *Factory) Destroy() {
	f.errorApp.destroy()
	if f.hub != nil {
		f.hub.Flush(flushTimeout)
	}
}
