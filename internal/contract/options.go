package contract

import (
	"github.com/born-ml/qtensor/internal/logger"
	"github.com/born-ml/qtensor/internal/parallel"
)

// Option configures block-sparse and symmetric contractions.
type Option func(*options)

type options struct {
	parallel parallel.Config
	log      *logger.Logger
}

func newOptions(opts []Option) options {
	o := options{
		parallel: parallel.DefaultConfig(),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithParallel sets how output blocks are distributed over workers.
func WithParallel(cfg parallel.Config) Option {
	return func(o *options) {
		o.parallel = cfg
	}
}

// WithLogger reports contraction progress at debug level.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
