package factory

import (
	"github.com/wehubfusion/rackbridge/pkg/config"
	"github.com/wehubfusion/rackbridge/pkg/rack"
	"github.com/wehubfusion/rackbridge/pkg/rewind"
	"go.uber.org/zap"
)

// BufferPolicy derives the request body buffer policy from configuration.
// Unset sizes use the rewind defaults and the initial size never exceeds
// the maximum.
func BufferPolicy(cfg *config.Config) rewind.Policy {
	p := rewind.DefaultPolicy()
	if cfg == nil {
		return p
	}
	if cfg.Request.InitialBufferSize != nil {
		p.InitialSize = cfg.Request.InitialBufferSize.Int()
	}
	if cfg.Request.MaximumBufferSize != nil {
		p.MaximumSize = cfg.Request.MaximumBufferSize.Int()
	}
	if p.InitialSize > p.MaximumSize {
		p.InitialSize = p.MaximumSize
	}
	return p
}

// configureBufferPolicy installs the configured policy on the context.
func configureBufferPolicy(rctx *rack.Context, logger *zap.Logger) {
	p := BufferPolicy(rctx.Config())
	rctx.SetBufferPolicy(p)
	logger.Debug("request buffer policy configured",
		zap.Int("initial_size", p.InitialSize),
		zap.Int("maximum_size", p.MaximumSize))
}
