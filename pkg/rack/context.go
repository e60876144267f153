// Package rack holds the context shared by the environment adapter, the
// runtimes and the application factory.
package rack

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/wehubfusion/rackbridge/pkg/config"
	"github.com/wehubfusion/rackbridge/pkg/resources"
	"github.com/wehubfusion/rackbridge/pkg/rewind"
	"go.uber.org/zap"
)

// DefaultServerInfo is reported as SERVER_SOFTWARE unless overridden.
const DefaultServerInfo = "rackbridge"

// Context is the enclosing context of every application the factory builds:
// configuration, logging, the resource namespace and the buffering policy.
//
// The buffer policy and runtime version are written once by the factory's
// Init and are read-only afterwards.
type Context struct {
	config     *config.Config
	logger     *zap.Logger
	resources  resources.Namespace
	serverInfo string
	native     any

	bufferPolicy   rewind.Policy
	runtimeVersion string
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithLogger sets the context logger.
func WithLogger(logger *zap.Logger) ContextOption {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithServerInfo sets the server software string.
func WithServerInfo(info string) ContextOption {
	return func(c *Context) {
		c.serverInfo = info
	}
}

// WithNative attaches the container's own context object.
func WithNative(native any) ContextOption {
	return func(c *Context) {
		c.native = native
	}
}

// NewContext creates a context. A nil cfg uses defaults.
func NewContext(cfg *config.Config, ns resources.Namespace, opts ...ContextOption) *Context {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Context{
		config:       cfg,
		logger:       zap.NewNop(),
		resources:    ns,
		serverInfo:   DefaultServerInfo,
		bufferPolicy: rewind.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the bridge configuration.
func (c *Context) Config() *config.Config {
	return c.config
}

// Logger returns the context logger.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// Resources returns the resource namespace, which may be nil.
func (c *Context) Resources() resources.Namespace {
	return c.resources
}

// ServerInfo is reported as SERVER_SOFTWARE.
func (c *Context) ServerInfo() string {
	return c.serverInfo
}

// BufferPolicy returns the policy for request body buffers.
func (c *Context) BufferPolicy() rewind.Policy {
	return c.bufferPolicy
}

// RuntimeVersion returns the version string logged at factory init.
func (c *Context) RuntimeVersion() string {
	return c.runtimeVersion
}

// Native returns the container's context object, or the Context itself when
// none was attached.
func (c *Context) Native() any {
	if c.native != nil {
		return c.native
	}
	return c
}

// SetBufferPolicy installs the policy used for every request body created
// after the call. Must happen before requests are served.
func (c *Context) SetBufferPolicy(p rewind.Policy) {
	c.bufferPolicy = p
}

// SetRuntimeVersion records the runtime version string.
func (c *Context) SetRuntimeVersion(v string) {
	c.runtimeVersion = v
}

// Log writes msg at a level named by a string (DEBUG, INFO, WARN, ERROR).
// Unknown levels log at info.
func (c *Context) Log(level, msg string, fields ...zap.Field) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		c.logger.Debug(msg, fields...)
	case "WARN", "WARNING":
		c.logger.Warn(msg, fields...)
	case "ERROR", "FATAL":
		c.logger.Error(msg, fields...)
	default:
		c.logger.Info(msg, fields...)
	}
}

// ErrorStream returns a new rack.errors stream bound to the context logger.
func (c *Context) ErrorStream() *ErrorStream {
	return NewErrorStream(c.logger.With(zap.String("stream", "rack.errors")))
}

var defaultContext atomic.Pointer[Context]

// SetDefault registers the process fallback context used when a request
// does not carry one. Passing nil clears it.
func SetDefault(c *Context) {
	defaultContext.Store(c)
}

// Default returns the process fallback context, or nil.
func Default() *Context {
	return defaultContext.Load()
}

type contextKey struct{}

// IntoContext returns a copy of parent carrying c.
func IntoContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, contextKey{}, c)
}

// FromContext returns the Context carried by ctx, or nil.
func FromContext(ctx context.Context) *Context {
	c, _ := ctx.Value(contextKey{}).(*Context)
	return c
}
