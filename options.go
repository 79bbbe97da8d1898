package eventidx

import (
	"github.com/hupe1980/eventidx/blobstore"
	"github.com/hupe1980/eventidx/internal/compress"
	"github.com/hupe1980/eventidx/internal/resource"
	"github.com/hupe1980/eventidx/logging"
	"github.com/hupe1980/eventidx/metrics"
	"github.com/hupe1980/eventidx/synopsis"
)

// DefaultMaxPartitionSize is the number of rows after which the active
// partition is sealed.
const DefaultMaxPartitionSize = 1 << 20

// Compression selects the block compression of persisted index files.
type Compression = compress.Algorithm

const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZstd = compress.Zstd
)

// ResourceLimits bounds background work. Zero values mean unlimited.
type ResourceLimits = resource.Config

// Option configures an Index.
type Option func(*options)

type options struct {
	logger           *logging.Logger
	metrics          metrics.Observer
	store            blobstore.BlobStore
	compression      Compression
	limits           *ResourceLimits
	maxPartitionSize uint64
	settings         map[string]any
	synopses         *synopsis.Registry
	workers          int
	concurrency      int
}

func defaultOptions() options {
	return options{
		logger:           logging.NoopLogger(),
		metrics:          metrics.Noop{},
		compression:      CompressionNone,
		maxPartitionSize: DefaultMaxPartitionSize,
	}
}

// WithLogger sets the logger. The default discards all records.
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

// WithBlobStore sets where synopses and partition metadata are stored.
func WithBlobStore(s blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithCompression sets the compression of column index files and synopses.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceLimits bounds parallel flushes and flush I/O.
func WithResourceLimits(l ResourceLimits) Option {
	return func(o *options) {
		o.limits = &l
	}
}

// WithMaxPartitionSize sets the row count at which the active partition is
// sealed. It also sizes the Bloom filter synopses.
func WithMaxPartitionSize(n uint64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPartitionSize = n
		}
	}
}

// WithSynopsisSettings configures synopses from a settings map using the
// keys understood by synopsis.ParseOptions. A max-partition-size entry
// takes precedence over WithMaxPartitionSize.
func WithSynopsisSettings(settings map[string]any) Option {
	return func(o *options) {
		o.settings = settings
	}
}

// WithSynopsisRegistry replaces the synopsis factories.
func WithSynopsisRegistry(r *synopsis.Registry) Option {
	return func(o *options) {
		o.synopses = r
	}
}

// WithWorkers sets the number of queries that run at the same time.
// n <= 0 selects GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithEvaluatorConcurrency bounds the concurrent lookups of one partition
// evaluator. n <= 0 selects GOMAXPROCS.
func WithEvaluatorConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}
