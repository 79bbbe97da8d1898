package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exports Observer events as Prometheus metrics.
type Prometheus struct {
	appendRows    prometheus.Counter
	appendLatency prometheus.Histogram
	lookups       *prometheus.CounterVec
	lookupLatency prometheus.Histogram
	lookupHits    prometheus.Histogram
	flushes       *prometheus.CounterVec
	flushBytes    prometheus.Counter
	loads         *prometheus.CounterVec
	shrinks       prometheus.Counter
	deltas        prometheus.Counter
	deltaHits     prometheus.Counter
	queries       *prometheus.CounterVec
	queryLatency  prometheus.Histogram
}

// NewPrometheus creates the collectors under namespace and registers them
// with reg. A nil reg skips registration.
func NewPrometheus(namespace string, reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		appendRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "column_index", Name: "appended_rows_total",
			Help: "Rows appended to column indexes.",
		}),
		appendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "column_index", Name: "append_duration_seconds",
			Help: "Latency of appending a table slice to a column index.", Buckets: prometheus.DefBuckets,
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "column_index", Name: "lookups_total",
			Help: "Column index lookups by outcome.",
		}, []string{"outcome"}),
		lookupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "column_index", Name: "lookup_duration_seconds",
			Help: "Latency of column index lookups.", Buckets: prometheus.DefBuckets,
		}),
		lookupHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "column_index", Name: "lookup_hits",
			Help: "Number of row ids returned by a lookup.", Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "column_index", Name: "flushes_total",
			Help: "Column index flushes by outcome.",
		}, []string{"outcome"}),
		flushBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "column_index", Name: "flushed_bytes_total",
			Help: "Bytes written by column index flushes.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "column_index", Name: "loads_total",
			Help: "Persisted column index loads by outcome.",
		}, []string{"outcome"}),
		shrinks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "synopsis", Name: "shrinks_total",
			Help: "Buffered synopses converted to Bloom filter synopses.",
		}),
		deltas: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "evaluator", Name: "deltas_total",
			Help: "Result deltas emitted to clients.",
		}),
		deltaHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "evaluator", Name: "delta_hits_total",
			Help: "Row ids emitted to clients.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "evaluator", Name: "completed_total",
			Help: "Completed evaluator sessions by outcome.",
		}, []string{"outcome"}),
		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "evaluator", Name: "duration_seconds",
			Help: "Lifetime of evaluator sessions.", Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		for _, c := range p.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (p *Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.appendRows, p.appendLatency, p.lookups, p.lookupLatency, p.lookupHits,
		p.flushes, p.flushBytes, p.loads, p.shrinks, p.deltas, p.deltaHits,
		p.queries, p.queryLatency,
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// OnAppend implements Observer.
func (p *Prometheus) OnAppend(rows int, d time.Duration, err error) {
	if err == nil {
		p.appendRows.Add(float64(rows))
	}
	p.appendLatency.Observe(d.Seconds())
}

// OnLookup implements Observer.
func (p *Prometheus) OnLookup(hits uint64, d time.Duration, err error) {
	p.lookups.WithLabelValues(outcome(err)).Inc()
	p.lookupLatency.Observe(d.Seconds())
	if err == nil {
		p.lookupHits.Observe(float64(hits))
	}
}

// OnFlush implements Observer.
func (p *Prometheus) OnFlush(bytes int64, _ time.Duration, err error) {
	p.flushes.WithLabelValues(outcome(err)).Inc()
	p.flushBytes.Add(float64(bytes))
}

// OnLoad implements Observer.
func (p *Prometheus) OnLoad(_ time.Duration, err error) {
	p.loads.WithLabelValues(outcome(err)).Inc()
}

// OnShrink implements Observer.
func (p *Prometheus) OnShrink(uint64, uint64) {
	p.shrinks.Inc()
}

// OnDelta implements Observer.
func (p *Prometheus) OnDelta(hits uint64) {
	p.deltas.Inc()
	p.deltaHits.Add(float64(hits))
}

// OnQuery implements Observer.
func (p *Prometheus) OnQuery(_ int, d time.Duration, cancelled bool) {
	if cancelled {
		p.queries.WithLabelValues("cancelled").Inc()
	} else {
		p.queries.WithLabelValues("done").Inc()
	}
	p.queryLatency.Observe(d.Seconds())
}
