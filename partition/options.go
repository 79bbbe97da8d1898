package partition

import (
	"github.com/hupe1980/eventidx/blobstore"
	"github.com/hupe1980/eventidx/columnindex"
	"github.com/hupe1980/eventidx/internal/compress"
	"github.com/hupe1980/eventidx/internal/resource"
	"github.com/hupe1980/eventidx/logging"
	"github.com/hupe1980/eventidx/metrics"
	"github.com/hupe1980/eventidx/synopsis"
)

// Option configures a Partition.
type Option func(*options)

type options struct {
	logger       *logging.Logger
	metrics      metrics.Observer
	store        blobstore.BlobStore
	synopses     *synopsis.Registry
	synopsisOpts synopsis.Options
	columnOpts   []columnindex.Option
	rc           *resource.Controller
	compression  compress.Algorithm
}

func defaultOptions() options {
	return options{
		logger:      logging.NoopLogger(),
		metrics:     metrics.Noop{},
		synopses:    synopsis.DefaultRegistry(),
		compression: compress.None,
	}
}

// WithLogger sets the logger of the partition and its column indexes.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = logging.OrNoop(l)
	}
}

// WithMetricsObserver sets the metrics observer of the partition and its
// column indexes.
func WithMetricsObserver(m metrics.Observer) Option {
	return func(o *options) {
		o.metrics = metrics.OrNoop(m)
	}
}

// WithBlobStore sets where sealed synopses are stored. The default is a
// local store in the partition's parent directory.
func WithBlobStore(s blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithSynopsisRegistry sets the synopsis factories.
func WithSynopsisRegistry(r *synopsis.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.synopses = r
		}
	}
}

// WithSynopsisOptions sets the synopsis sizing options.
func WithSynopsisOptions(so synopsis.Options) Option {
	return func(o *options) {
		o.synopsisOpts = so
	}
}

// WithColumnIndexOptions passes options to every column index. They are
// applied after the logger, metrics and resource options of the partition.
func WithColumnIndexOptions(opts ...columnindex.Option) Option {
	return func(o *options) {
		o.columnOpts = append(o.columnOpts, opts...)
	}
}

// WithResourceController bounds parallel flushes and flush I/O.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithCompression sets the compression of the synopses blob.
func WithCompression(a compress.Algorithm) Option {
	return func(o *options) {
		o.compression = a
	}
}
