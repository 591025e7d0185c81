package authcore

import "sync/atomic"

// MetricID identifies a counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricFlowInitiated counts InitiateFlow calls.
	MetricFlowInitiated MetricID = iota
	// MetricStepAdvanced counts successful step transitions.
	MetricStepAdvanced
	// MetricFlowCompleted counts flows reaching AUTHENTICATED.
	MetricFlowCompleted
	// MetricDeadEnd counts transitions with no eligible next step.
	MetricDeadEnd
	// MetricOtpSent counts passcode send requests.
	MetricOtpSent
	// MetricOtpVerified counts successful passcode verifications.
	MetricOtpVerified
	// MetricOtpFailure counts rejected passcodes.
	MetricOtpFailure
	// MetricTokenAcquired counts successful token acquisitions.
	MetricTokenAcquired
	// MetricTokenRefreshFailure counts failed refresh exchanges.
	MetricTokenRefreshFailure
	// MetricPinSet counts PIN creations and overwrites.
	MetricPinSet
	// MetricPinFailure counts wrong-PIN attempts.
	MetricPinFailure
	// MetricPinLockout counts lockouts arming.
	MetricPinLockout
	// MetricSessionActivated counts session unlocks.
	MetricSessionActivated
	// MetricSessionLocked counts locks, manual and idle.
	MetricSessionLocked
	// MetricLogout counts logouts.
	MetricLogout

	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds atomic counters. A nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a Metrics instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current value of the counter for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot deep-copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	if m == nil || !m.enabled {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
