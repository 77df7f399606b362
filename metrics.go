package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram maintained by the
// engine. IDs are dense and stable within a release; exporters enumerate
// them through metrics/export/internaldefs.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful password logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected password logins, whatever the reason.
	MetricLoginFailure
	// MetricFederatedLoginSuccess counts successful federated logins.
	MetricFederatedLoginSuccess
	// MetricFederatedLoginFailure counts rejected federated logins.
	MetricFederatedLoginFailure
	// MetricResolveCacheHit counts token resolutions served from the cache.
	MetricResolveCacheHit
	// MetricResolveCacheMiss counts token resolutions that had to verify.
	MetricResolveCacheMiss
	// MetricResolveSuccess counts successful local token resolutions.
	MetricResolveSuccess
	// MetricResolveFailure counts failed local token resolutions.
	MetricResolveFailure
	// MetricFederatedResolveSuccess counts successful federated resolutions.
	MetricFederatedResolveSuccess
	// MetricFederatedResolveFailure counts failed federated resolutions.
	MetricFederatedResolveFailure
	// MetricTokenRevoked counts tokens rejected because they were revoked.
	MetricTokenRevoked
	// MetricLogout counts logout operations.
	MetricLogout
	// MetricSessionCreated counts session records written on login.
	MetricSessionCreated
	// MetricPasswordChangeSuccess counts successful password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeInvalidOld counts password changes rejected because
	// the old password did not verify.
	MetricPasswordChangeInvalidOld
	// MetricAccountCreationSuccess counts created accounts.
	MetricAccountCreationSuccess
	// MetricAccountCreationDuplicate counts creations rejected as duplicates.
	MetricAccountCreationDuplicate
	// MetricResolveLatency is the token-resolution latency histogram.
	MetricResolveLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine's in-process counters and histograms. Writes are
// single atomic adds on cache-line-padded slots; the zero-value disabled
// form makes every write a cheap no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histogram
// buckets, suitable for handing to an exporter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a metrics store per cfg. With Enabled false the store
// records nothing and Snapshot returns empty maps.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the resolve latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a resolve duration into the latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricResolveLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram bucket. The snapshot is not
// atomic across metrics; individual values are consistent.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricResolveLatency].buckets[i])
		}
		s.Histograms[MetricResolveLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
