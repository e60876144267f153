// Package jsruntime hosts applications in embedded goja runtimes.
//
// Each Runtime owns one goja VM. A VM is not safe for concurrent use, so
// every entry into it is serialized by the runtime's mutex.
package jsruntime

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http/httputil"
	"strings"
	"sync"

	"github.com/dop251/goja"
	bridgeerrors "github.com/wehubfusion/rackbridge/pkg/errors"
	"github.com/wehubfusion/rackbridge/pkg/rack"
	"github.com/wehubfusion/rackbridge/pkg/rack/env"
	"go.uber.org/zap"
)

//go:embed boot.js
var bootSource string

var (
	bootOnce    sync.Once
	bootProgram *goja.Program
	bootErr     error
)

func compileBoot() (*goja.Program, error) {
	bootOnce.Do(func() {
		bootProgram, bootErr = goja.Compile("boot.js", bootSource, false)
	})
	return bootProgram, bootErr
}

// Runtime is a single script runtime and the application built in it.
type Runtime struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	cfg    Config
	ctx    *rack.Context
	logger *zap.Logger

	rack     *goja.Object
	callFn   goja.Callable
	app      goja.Value
	captured string
	closed   bool
}

// New creates a runtime, installs its globals and evaluates the boot
// library. A nil ctx uses a default rack context.
func New(cfg Config, ctx *rack.Context) (*Runtime, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = rack.NewContext(nil, nil)
	}

	prg, err := compileBoot()
	if err != nil {
		return nil, fmt.Errorf("failed to compile boot library: %w", err)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("js", true))

	r := &Runtime{
		vm:     vm,
		cfg:    cfg,
		ctx:    ctx,
		logger: ctx.Logger().Named("jsruntime"),
	}

	if err := registerGlobals(vm,
		envGlobal{ignore: cfg.IgnoreEnvironment},
		argvGlobal{args: cfg.Arguments},
		consoleGlobal{ctx: ctx},
		hostGlobal{rt: r},
	); err != nil {
		return nil, err
	}

	if _, err := vm.RunProgram(prg); err != nil {
		return nil, newScriptError("boot.js", err)
	}

	r.rack = vm.Get("Rack").ToObject(vm)
	callFn, ok := goja.AssertFunction(r.rack.Get("call"))
	if !ok {
		return nil, fmt.Errorf("boot library does not define Rack.call")
	}
	r.callFn = callFn

	if cfg.Dechunk != nil {
		if err := r.rack.Get("Response").ToObject(vm).Set("dechunk", *cfg.Dechunk); err != nil {
			return nil, fmt.Errorf("failed to configure dechunk: %w", err)
		}
	}

	return r, nil
}

// Config returns the runtime configuration.
func (r *Runtime) Config() Config {
	return r.cfg
}

// Load evaluates src as the body of an application builder and keeps the
// resulting application. label names the script in stack traces. Loading
// always runs to completion; only Call observes cancellation.
func (r *Runtime) Load(src, label string) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return bridgeerrors.ErrDestroyed
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = &ScriptError{Type: ErrorTypeInternal, Message: fmt.Sprintf("panic during load: %v", rec), Label: label}
		}
	}()

	app, err := r.vm.RunScript(label, wrapBuilder(src, r.cfg.Strict()))
	if err != nil {
		return newScriptError(label, err)
	}
	r.app = app
	return nil
}

// wrapBuilder keeps the script on its original line numbers.
func wrapBuilder(src string, strict bool) string {
	var b strings.Builder
	b.WriteString("Rack.build(function (use, run, map) { ")
	if strict {
		b.WriteString(`"use strict"; `)
	}
	b.WriteString(src)
	b.WriteString("\n})")
	return b.String()
}

// Loaded reports whether an application has been built.
func (r *Runtime) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.app != nil
}

// Call invokes the application with e and converts its result.
func (r *Runtime) Call(ctx context.Context, e *env.Env) (resp *rack.Response, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, bridgeerrors.ErrDestroyed
	}
	if r.app == nil {
		return nil, bridgeerrors.ErrNotInitialized
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = &ScriptError{Type: ErrorTypeInternal, Message: fmt.Sprintf("panic during call: %v", rec)}
		}
	}()

	stop := r.watch(ctx)
	defer stop()

	res, err := r.callFn(goja.Undefined(), r.app, newEnvObject(r.vm, e))
	if err != nil {
		return nil, newScriptError("", err)
	}

	resp, err = r.toResponse(res)
	if err != nil {
		return nil, err
	}
	if r.rack.Get("Response").ToObject(r.vm).Get("dechunk").ToBoolean() {
		dechunk(resp)
	}
	return resp, nil
}

func (r *Runtime) toResponse(v goja.Value) (*rack.Response, error) {
	obj := v.ToObject(r.vm)

	var headers map[string]string
	if err := r.vm.ExportTo(obj.Get("1"), &headers); err != nil {
		return nil, fmt.Errorf("invalid response headers: %w", err)
	}
	if headers == nil {
		headers = make(map[string]string)
	}

	return &rack.Response{
		Status:  int(obj.Get("0").ToInteger()),
		Headers: headers,
		Body:    []byte(obj.Get("2").String()),
	}, nil
}

// dechunk decodes a chunked body in place and drops Transfer-Encoding.
// Bodies that fail to decode are left untouched.
func dechunk(resp *rack.Response) {
	for name, value := range resp.Headers {
		if !strings.EqualFold(name, "Transfer-Encoding") || !strings.EqualFold(strings.TrimSpace(value), "chunked") {
			continue
		}
		body, err := io.ReadAll(httputil.NewChunkedReader(bytes.NewReader(resp.Body)))
		if err != nil {
			return
		}
		resp.Body = body
		delete(resp.Headers, name)
		return
	}
}

// watch interrupts the VM when ctx is done. The returned func must be called
// once the VM is idle again.
func (r *Runtime) watch(ctx context.Context) func() {
	if ctx == nil || ctx.Done() == nil {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	return func() {
		close(done)
		wg.Wait()
		r.vm.ClearInterrupt()
	}
}

// Capture asks a thrown script error to record its details through its
// capture and store hooks. Errors not thrown by a script are ignored.
func (r *Runtime) Capture(err error) error {
	var exc *goja.Exception
	if !errors.As(err, &exc) {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return bridgeerrors.ErrDestroyed
	}

	val := exc.Value()
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return fmt.Errorf("thrown value cannot capture")
	}
	obj := val.ToObject(r.vm)
	for _, hook := range []string{"capture", "store"} {
		fn, ok := goja.AssertFunction(obj.Get(hook))
		if !ok {
			return fmt.Errorf("thrown value does not respond to %s", hook)
		}
		if _, err := fn(obj); err != nil {
			return fmt.Errorf("%s failed: %w", hook, err)
		}
	}
	return nil
}

// store is called from scripts with captured error details.
func (r *Runtime) store(details string) {
	r.captured = details
	r.logger.Error("application error captured", zap.String("details", details))
}

// Captured returns the details stored by the last captured error.
func (r *Runtime) Captured() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captured
}

// TearDown releases the runtime. Safe to call more than once.
func (r *Runtime) TearDown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.app = nil
	r.callFn = nil
	r.rack = nil
	r.logger.Debug("runtime torn down")
}

// Closed reports whether TearDown has run.
func (r *Runtime) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
