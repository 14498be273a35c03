package objectstore

import "github.com/prometheus/client_golang/prometheus"

// metrics mirrors the counters conexus registers per-service
// (internal/observability in that repo) but scoped to a single object
// store instance rather than a process-wide default registry, so multiple
// Store instances in one process never collide on the same metric names.
type metrics struct {
	registry    *prometheus.Registry
	putNew      prometheus.Counter
	putDedup    prometheus.Counter
	bytesStored prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		putNew: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dits_objects_put_new_total",
			Help: "Objects written to the store for the first time.",
		}),
		putDedup: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dits_objects_put_dedup_total",
			Help: "Put calls that resolved to an already-stored object.",
		}),
		bytesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dits_objects_bytes_stored_total",
			Help: "On-disk bytes written for newly stored objects (post-compression).",
		}),
	}
	reg.MustRegister(m.putNew, m.putDedup, m.bytesStored)
	return m
}
