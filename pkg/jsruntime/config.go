package jsruntime

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"

	"github.com/wehubfusion/rackbridge/pkg/config"
	"go.uber.org/zap"
)

const gojaModule = "github.com/dop251/goja"

// Config is shared by every runtime a factory creates.
type Config struct {
	// Arguments are exposed to scripts as ARGV
	Arguments []string

	// CompatVersion selects the language mode (default or strict)
	CompatVersion string

	// IgnoreEnvironment hides the process environment from scripts
	IgnoreEnvironment bool

	// Home is the runtime home directory reported to scripts
	Home string

	// Dechunk decodes chunked response bodies. nil leaves the boot default,
	// which is off.
	Dechunk *bool
}

// NewConfig derives a runtime configuration from the bridge configuration.
// When no home is configured the directory of the running executable is
// used.
func NewConfig(cfg *config.Config, logger *zap.Logger) Config {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := Config{
		Arguments:         append([]string(nil), cfg.Runtime.Arguments...),
		CompatVersion:     cfg.Runtime.CompatVersion,
		IgnoreEnvironment: cfg.Runtime.IgnoreEnvironment,
		Home:              cfg.Runtime.Home,
		Dechunk:           cfg.Response.Dechunk,
	}
	if c.Home == "" {
		exe, err := os.Executable()
		if err != nil {
			logger.Debug("won't set up runtime home from executable", zap.Error(err))
		} else {
			c.Home = filepath.Dir(exe)
		}
	}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults sets default values for configuration fields
func (c *Config) ApplyDefaults() {
	if c.CompatVersion == "" {
		c.CompatVersion = config.CompatDefault
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.CompatVersion != config.CompatDefault && c.CompatVersion != config.CompatStrict {
		return fmt.Errorf("invalid compat version: %s", c.CompatVersion)
	}
	return nil
}

// Strict reports whether entry scripts run in strict mode.
func (c Config) Strict() bool {
	return c.CompatVersion == config.CompatStrict
}

// VersionString describes the engine, the language mode and the platform.
func (c Config) VersionString() string {
	return fmt.Sprintf("goja %s (%s mode) [%s %s/%s]",
		engineVersion(), c.CompatVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func engineVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(devel)"
	}
	for _, dep := range info.Deps {
		if dep.Path == gojaModule {
			if dep.Replace != nil {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	return "(devel)"
}
