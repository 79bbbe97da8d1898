package columnindex

import (
	"github.com/hupe1980/eventidx/internal/compress"
	"github.com/hupe1980/eventidx/internal/fs"
	"github.com/hupe1980/eventidx/internal/resource"
	"github.com/hupe1980/eventidx/logging"
	"github.com/hupe1980/eventidx/metrics"
	"github.com/hupe1980/eventidx/valueindex"
)

// Option configures a ColumnIndex.
type Option func(*options)

type options struct {
	logger      *logging.Logger
	metrics     metrics.Observer
	registry    *valueindex.Registry
	fs          fs.FileSystem
	compression compress.Algorithm
	rc          *resource.Controller
}

func defaultOptions() options {
	return options{
		logger:      logging.NoopLogger(),
		metrics:     metrics.Noop{},
		registry:    valueindex.DefaultRegistry(),
		fs:          fs.Default,
		compression: compress.None,
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

// WithRegistry sets the value index factory registry.
func WithRegistry(r *valueindex.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithFileSystem sets the filesystem the index file lives on.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fs.OrDefault(fsys)
	}
}

// WithCompression compresses the persisted value index state.
func WithCompression(a compress.Algorithm) Option {
	return func(o *options) {
		o.compression = a
	}
}

// WithResourceController throttles flush writes.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}
