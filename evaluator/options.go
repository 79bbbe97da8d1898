package evaluator

import (
	"runtime"

	"github.com/hupe1980/eventidx/logging"
	"github.com/hupe1980/eventidx/metrics"
)

// Option configures a State or an Evaluator.
type Option func(*options)

type options struct {
	logger      *logging.Logger
	metrics     metrics.Observer
	concurrency int
}

func defaultOptions() options {
	return options{
		logger:      logging.NoopLogger(),
		metrics:     metrics.Noop{},
		concurrency: runtime.GOMAXPROCS(0),
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = logging.OrNoop(l)
	}
}

// WithMetricsObserver sets the metrics observer.
func WithMetricsObserver(m metrics.Observer) Option {
	return func(o *options) {
		o.metrics = metrics.OrNoop(m)
	}
}

// WithConcurrency limits the number of lookups in flight. Values below one
// select GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		o.concurrency = n
	}
}
