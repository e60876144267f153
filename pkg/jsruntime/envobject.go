package jsruntime

import (
	"github.com/dop251/goja"
	"github.com/wehubfusion/rackbridge/pkg/rack/env"
)

// envObject exposes an Env to scripts. Property reads go through Env.Get so
// lazily computed keys appear on first access.
type envObject struct {
	vm  *goja.Runtime
	env *env.Env
}

func newEnvObject(vm *goja.Runtime, e *env.Env) *goja.Object {
	return vm.NewDynamicObject(&envObject{vm: vm, env: e})
}

func (o *envObject) Get(key string) goja.Value {
	v, ok := o.env.Get(key)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case goja.Value:
		return val
	case error:
		return o.errorValue(val)
	default:
		return o.vm.ToValue(val)
	}
}

// errorValue converts a Go error to a script Error. Errors carrying an HTTP
// status expose it as the status property.
func (o *envObject) errorValue(err error) goja.Value {
	obj := o.vm.NewGoError(err)
	if s, ok := err.(interface{ StatusCode() int }); ok {
		_ = obj.Set("status", s.StatusCode())
	}
	return obj
}

// Set keeps script objects as values so they round-trip with identity;
// primitives are exported to plain Go values.
func (o *envObject) Set(key string, val goja.Value) bool {
	var stored any
	if obj, ok := val.(*goja.Object); ok {
		stored = obj
	} else {
		stored = val.Export()
	}
	return o.env.Set(key, stored) == nil
}

func (o *envObject) Has(key string) bool {
	_, ok := o.env.Get(key)
	return ok
}

func (o *envObject) Delete(key string) bool {
	return o.env.Delete(key) == nil
}

func (o *envObject) Keys() []string {
	return o.env.Keys()
}

var _ goja.DynamicObject = (*envObject)(nil)
