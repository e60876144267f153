package factory

import (
	"context"
	"net/http"

	"github.com/wehubfusion/rackbridge/pkg/rack"
	"github.com/wehubfusion/rackbridge/pkg/rack/env"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Dispatcher serves HTTP requests with applications from a Factory. Each
// request gets its own application; failures are answered by the shared
// error application with the failure stored under rack.exception.
type Dispatcher struct {
	factory    *Factory
	scriptName string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMountPrefix sets the SCRIPT_NAME the dispatcher is mounted under.
func WithMountPrefix(prefix string) DispatcherOption {
	return func(d *Dispatcher) {
		d.scriptName = prefix
	}
}

// NewDispatcher creates a dispatcher for an initialized factory.
func NewDispatcher(f *Factory, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{factory: f}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx, span := d.factory.tracer.Start(req.Context(), "factory.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.URL.Path))

	if rctx := d.factory.Context(); rctx != nil {
		ctx = rack.IntoContext(ctx, rctx)
	}
	req = req.WithContext(ctx)

	adapter, err := env.NewAdapter(
		env.NewHTTPSource(req, env.WithScriptName(d.scriptName)),
		env.WithResponse(w))
	if err != nil {
		d.factory.logger.Error("failed to build request environment", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer adapter.Close()
	e := adapter.Env()

	app, err := d.factory.GetApplication(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "application unavailable")
		d.serveError(ctx, w, e, err)
		return
	}
	defer d.factory.FinishedWithApplication(app)

	resp, err := app.Call(ctx, e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "application call failed")
		d.serveError(ctx, w, e, err)
		return
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	if err := resp.WriteTo(w); err != nil {
		d.factory.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (d *Dispatcher) serveError(ctx context.Context, w http.ResponseWriter, e *env.Env, cause error) {
	d.factory.logger.Error("request failed", zap.Error(cause))

	errEnv := e.Dup()
	_ = errEnv.Set(env.KeyException, cause)

	resp, err := d.factory.GetErrorApplication(ctx).Call(ctx, errEnv)
	if err != nil {
		d.factory.logger.Error("error application failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := resp.WriteTo(w); err != nil {
		d.factory.logger.Warn("failed to write error response", zap.Error(err))
	}
}
