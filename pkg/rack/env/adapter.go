package env

import (
	"fmt"
	goruntime "runtime"
	"strconv"
	"strings"

	bridgeerrors "github.com/wehubfusion/rackbridge/pkg/errors"
	"github.com/wehubfusion/rackbridge/pkg/rack"
	"github.com/wehubfusion/rackbridge/pkg/rewind"
)

// Adapter turns a RequestSource into an Env.
type Adapter struct {
	src      RequestSource
	ctx      *rack.Context
	response any
	env      *Env
	input    *rewind.Input
}

type options struct {
	ctx      *rack.Context
	response any
}

// Option configures an Adapter.
type Option func(*options)

// WithContext sets the rack context explicitly.
func WithContext(ctx *rack.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithResponse attaches the container's response object.
func WithResponse(response any) Option {
	return func(o *options) {
		o.response = response
	}
}

// NewAdapter creates an adapter for src. Attributes are loaded immediately
// so they take precedence over every computed value.
//
// The rack context comes from WithContext, then from src if it implements
// ContextProvider, then from the process fallback (rack.Default). Without
// any of these NewAdapter fails with a missing-context error.
func NewAdapter(src RequestSource, opts ...Option) (*Adapter, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx := resolveContext(src, o.ctx)
	if ctx == nil {
		return nil, bridgeerrors.MissingContext()
	}

	a := &Adapter{
		src:      src,
		ctx:      ctx,
		response: o.response,
	}
	a.env = newLazy(a)
	a.env.populate(func() { a.loadAttributes(a.env) })
	return a, nil
}

func resolveContext(src RequestSource, explicit *rack.Context) *rack.Context {
	if explicit != nil {
		return explicit
	}
	if p, ok := src.(ContextProvider); ok {
		if ctx := p.RackContext(); ctx != nil {
			return ctx
		}
	}
	return rack.Default()
}

// Env returns the lazily populated environment.
func (a *Adapter) Env() *Env {
	return a.env
}

// Populate loads every attribute, builtin, variable and header, then
// returns the environment.
func (a *Adapter) Populate() *Env {
	e := a.env
	e.populate(func() {
		a.loadAttributes(e)
		for _, key := range builtinKeys {
			a.loadBuiltin(e, key)
		}
		for _, key := range variableKeys {
			a.loadVariable(e, key)
		}
		a.loadHeaders(e)
	})
	return e
}

// Context returns the rack context the adapter resolved.
func (a *Adapter) Context() *rack.Context {
	return a.ctx
}

// Close releases the request body buffer, if one was created.
func (a *Adapter) Close() error {
	if a.input == nil {
		return nil
	}
	return a.input.Close()
}

// load implements loader.
func (a *Adapter) load(e *Env, key string) {
	switch classify(key) {
	case kindBuiltin:
		a.loadBuiltin(e, key)
	case kindHeader:
		a.loadHeader(e, key)
	default:
		a.loadVariable(e, key)
	}
}

func (a *Adapter) loadBuiltin(e *Env, key string) {
	switch key {
	case KeyVersion:
		e.putIfAbsent(key, Version)
	case KeyMultithread:
		e.putIfAbsent(key, true)
	case KeyMultiprocess, KeyRunOnce:
		e.putIfAbsent(key, false)
	case KeyInput:
		if a.input == nil {
			a.input = rewind.NewInput(a.src.Body(), a.ctx.BufferPolicy())
		}
		e.putIfAbsent(key, a.input)
	case KeyErrors:
		e.putIfAbsent(key, a.ctx.ErrorStream())
	case KeyURLScheme:
		if _, ok := e.values[key]; !ok {
			scheme := a.src.Scheme()
			if scheme == "" {
				scheme = "http"
			}
			e.putIfAbsent(key, scheme)
		}
		// HTTPS follows the stored scheme, which an attribute may have set
		if scheme, _ := e.values[key].(string); strings.EqualFold(scheme, "https") {
			e.putIfAbsent(VarHTTPS, "on")
		}
	case KeyRequest:
		putNonNil(e, key, a.src.Native())
	case KeyResponse:
		putNonNil(e, key, a.response)
	case KeyContainerContext:
		e.putIfAbsent(key, a.ctx.Native())
	case KeyContext:
		e.putIfAbsent(key, a.ctx)
	case KeyRuntimeVersion:
		if v := a.ctx.RuntimeVersion(); v != "" {
			e.putIfAbsent(key, v)
		}
	case KeyPlatformVersion:
		e.putIfAbsent(key, goruntime.Version())
	}
}

func (a *Adapter) loadVariable(e *Env, key string) {
	switch key {
	case VarContentType:
		if ct := a.src.ContentType(); ct != "" {
			e.putIfAbsent(key, ct)
		}
	case VarContentLength:
		if n := a.src.ContentLength(); n >= 0 {
			e.putIfAbsent(key, strconv.FormatInt(n, 10))
		}
	case VarPathInfo:
		e.putIfAbsent(key, a.src.PathInfo())
	case VarRequestURI:
		e.putIfAbsent(key, a.src.RequestURI())
	case VarScriptName:
		e.putIfAbsent(key, a.src.ScriptName())
	case VarQueryString:
		e.putIfAbsent(key, a.src.QueryString())
	case VarRemoteAddr:
		e.putIfAbsent(key, a.src.RemoteAddr())
	case VarRemoteHost:
		e.putIfAbsent(key, a.src.RemoteHost())
	case VarRemoteUser:
		e.putIfAbsent(key, a.src.RemoteUser())
	case VarServerName:
		e.putIfAbsent(key, a.src.ServerName())
	case VarRequestMethod:
		method := a.src.Method()
		if method == "" {
			method = "GET"
		}
		e.putIfAbsent(key, method)
	case VarServerPort:
		e.putIfAbsent(key, strconv.Itoa(a.src.ServerPort()))
	case VarServerSoftware:
		e.putIfAbsent(key, a.ctx.ServerInfo())
	case VarHTTPS:
		a.loadBuiltin(e, KeyURLScheme)
	}
}

func (a *Adapter) loadHeaders(e *Env) {
	names, ok := a.src.HeaderNames()
	if !ok {
		return
	}
	for _, name := range names {
		if bodyHeader(name) {
			continue
		}
		if value, ok := a.src.Header(name); ok {
			e.putIfAbsent(HeaderKey(name), value)
		}
	}
}

func (a *Adapter) loadHeader(e *Env, key string) {
	name := HeaderName(key)
	if bodyHeader(name) {
		return
	}
	if value, ok := a.src.Header(name); ok {
		e.putIfAbsent(key, value)
	}
}

func (a *Adapter) loadAttributes(e *Env) {
	for _, name := range a.src.AttributeNames() {
		value := a.src.Attribute(name)
		switch name {
		case VarServerPort, VarContentLength:
			if n, ok := toInt64(value); ok && n >= 0 {
				e.putIfAbsent(name, strconv.FormatInt(n, 10))
			}
		case VarContentType:
			if value != nil {
				e.putIfAbsent(name, fmt.Sprint(value))
			}
		default:
			if value == nil {
				e.putIfAbsent(name, "")
			} else {
				e.putIfAbsent(name, fmt.Sprint(value))
			}
		}
	}
}

func putNonNil(e *Env, key string, value any) {
	if value != nil {
		e.putIfAbsent(key, value)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

var _ loader = (*Adapter)(nil)
