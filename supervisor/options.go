package supervisor

import (
	"github.com/hupe1980/eventidx/logging"
)

// Option configures supervisors and worker pools.
type Option func(*options)

type options struct {
	logger *logging.Logger
}

func defaultOptions() options {
	return options{
		logger: logging.NoopLogger(),
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = logging.OrNoop(l)
	}
}
