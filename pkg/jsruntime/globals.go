package jsruntime

import (
	"fmt"
	"os"
	"strings"

	"github.com/dop251/goja"
	"github.com/wehubfusion/rackbridge/pkg/rack"
	"go.uber.org/zap"
)

// hostObjectName is the global the boot library reads its host hooks from.
const hostObjectName = "__rackbridge__"

// global installs one name into a fresh runtime.
type global interface {
	Name() string
	Register(vm *goja.Runtime) error
}

// registerGlobals installs every global in order.
func registerGlobals(vm *goja.Runtime, globals ...global) error {
	for _, g := range globals {
		if err := g.Register(vm); err != nil {
			return fmt.Errorf("failed to register global %s: %w", g.Name(), err)
		}
	}
	return nil
}

// envGlobal exposes a copy of the process environment as ENV. Writes stay
// inside the runtime.
type envGlobal struct {
	ignore bool
}

func (g envGlobal) Name() string { return "ENV" }

func (g envGlobal) Register(vm *goja.Runtime) error {
	obj := vm.NewObject()
	if g.ignore {
		// scripts commonly split PATH, so keep it defined
		return setAll(vm, obj, map[string]string{"PATH": ""})
	}
	values := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		values[k] = v
	}
	return setAll(vm, obj, values)
}

func setAll(vm *goja.Runtime, obj *goja.Object, values map[string]string) error {
	for k, v := range values {
		if err := obj.Set(k, v); err != nil {
			return err
		}
	}
	return vm.Set("ENV", obj)
}

type argvGlobal struct {
	args []string
}

func (g argvGlobal) Name() string { return "ARGV" }

func (g argvGlobal) Register(vm *goja.Runtime) error {
	args := make([]any, len(g.args))
	for i, a := range g.args {
		args[i] = a
	}
	return vm.Set("ARGV", vm.NewArray(args...))
}

// consoleGlobal routes console output to the rack context logger.
type consoleGlobal struct {
	ctx *rack.Context
}

func (g consoleGlobal) Name() string { return "console" }

func (g consoleGlobal) Register(vm *goja.Runtime) error {
	console := vm.NewObject()
	for method, level := range map[string]string{
		"log":   "INFO",
		"info":  "INFO",
		"debug": "DEBUG",
		"warn":  "WARN",
		"error": "ERROR",
	} {
		if err := console.Set(method, func(call goja.FunctionCall) goja.Value {
			g.ctx.Log(level, joinArgs(call.Arguments), zap.String("source", "console"))
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// hostGlobal exposes the rack context and runtime details to the boot
// library.
type hostGlobal struct {
	rt *Runtime
}

func (g hostGlobal) Name() string { return hostObjectName }

func (g hostGlobal) Register(vm *goja.Runtime) error {
	host := vm.NewObject()
	context := vm.NewObject()
	if err := context.Set("log", func(level, msg string) {
		g.rt.ctx.Log(level, msg)
	}); err != nil {
		return err
	}
	if err := context.Set("serverInfo", g.rt.ctx.ServerInfo()); err != nil {
		return err
	}

	for name, value := range map[string]any{
		"context": context,
		"version": g.rt.cfg.VersionString(),
		"home":    g.rt.cfg.Home,
		"store":   g.rt.store,
	} {
		if err := host.Set(name, value); err != nil {
			return err
		}
	}
	return vm.Set(hostObjectName, host)
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}
