// Package script locates the entry script an application is built from.
package script

import (
	"errors"
	"os"
	"strings"

	"github.com/wehubfusion/rackbridge/pkg/config"
	bridgeerrors "github.com/wehubfusion/rackbridge/pkg/errors"
	"github.com/wehubfusion/rackbridge/pkg/resources"
	"go.uber.org/zap"
)

const (
	// ConfigLabel labels scripts supplied inline through configuration
	ConfigLabel = "<config>"

	// FileName is the conventional entry script name
	FileName = "config.js"

	// SearchRoot is the directory searched for FileName
	SearchRoot = "/app/"

	// searchDepth is how many directory levels below SearchRoot are searched
	searchDepth = 1
)

var errNoNamespace = errors.New("no resource namespace")

// Location is a resolved entry script and the label it reports errors under.
type Location struct {
	Script string
	Label  string
}

// Resolver finds the entry script for a factory.
type Resolver struct {
	cfg       *config.Config
	resources resources.Namespace
	logger    *zap.Logger
}

// NewResolver creates a resolver. ns may be nil, in which case only inline
// configuration is considered and a configured rackup_path cannot be read.
func NewResolver(cfg *config.Config, ns resources.Namespace, logger *zap.Logger) *Resolver {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, resources: ns, logger: logger}
}

// Resolve returns the entry script, or nil when none is found. A script that
// was located but cannot be read is an error.
func (r *Resolver) Resolve() (*Location, error) {
	if r.cfg.Rackup != nil {
		return &Location{Script: *r.cfg.Rackup, Label: ConfigLabel}, nil
	}
	if r.resources == nil {
		if r.cfg.RackupPath != nil {
			path := *r.cfg.RackupPath
			r.logger.Error("failed to read rackup",
				zap.String("path", path),
				zap.String("reason", "no resource namespace"))
			return nil, bridgeerrors.ResolutionRead(path, errNoNamespace)
		}
		return nil, nil
	}

	path := r.locate()
	if path == "" {
		return nil, nil
	}

	label, _ := r.resources.RealPath(path)
	if label == "" {
		label = path
	}

	src, err := resources.ReadString(r.resources, path)
	if err != nil {
		r.logger.Error("failed to read rackup",
			zap.String("path", path),
			zap.Error(err))
		return nil, bridgeerrors.ResolutionRead(path, err)
	}

	r.logger.Debug("resolved rackup script",
		zap.String("path", path),
		zap.String("location", label))
	return &Location{Script: src, Label: label}, nil
}

// locate returns the namespace path of the entry script, or "".
func (r *Resolver) locate() string {
	if r.cfg.RackupPath != nil {
		return *r.cfg.RackupPath
	}
	if p := Search(r.resources, SearchRoot, searchDepth); p != "" {
		return p
	}

	root := "/" + FileName
	if real, local := r.resources.RealPath(root); local {
		if _, err := os.Stat(real); err == nil {
			return root
		}
	}
	return ""
}

// Search looks for FileName in dir and up to depth levels of subdirectories,
// returning the first match in enumeration order.
func Search(ns resources.Namespace, dir string, depth int) string {
	entries, ok := ns.List(dir)
	if !ok {
		return ""
	}

	candidate := dir + FileName
	for _, entry := range entries {
		if entry == candidate {
			return candidate
		}
	}

	if depth <= 0 {
		return ""
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry, "/") {
			continue
		}
		if p := Search(ns, entry, depth-1); p != "" {
			return p
		}
	}
	return ""
}
