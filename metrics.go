package authcore

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID int

const (
	// MetricLoginSuccess is an exported constant or variable used by the authentication engine.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure is an exported constant or variable used by the authentication engine.
	MetricLoginFailure
	// MetricLoginRateLimited is an exported constant or variable used by the authentication engine.
	MetricLoginRateLimited
	// MetricValidateSuccess is an exported constant or variable used by the authentication engine.
	MetricValidateSuccess
	// MetricValidateFailure is an exported constant or variable used by the authentication engine.
	MetricValidateFailure
	// MetricRefreshSuccess is an exported constant or variable used by the authentication engine.
	MetricRefreshSuccess
	// MetricRefreshFailure is an exported constant or variable used by the authentication engine.
	MetricRefreshFailure
	// MetricRefreshReplay counts refresh attempts with an already-rotated token.
	MetricRefreshReplay
	// MetricLogout is an exported constant or variable used by the authentication engine.
	MetricLogout
	// MetricRateLimitFailOpen counts limiter decisions allowed because Redis
	// was unreachable. A non-zero rate here means degraded enforcement.
	MetricRateLimitFailOpen

	metricCount
)

var metricNames = [metricCount]string{
	MetricLoginSuccess:      "login_success",
	MetricLoginFailure:      "login_failure",
	MetricLoginRateLimited:  "login_rate_limited",
	MetricValidateSuccess:   "validate_success",
	MetricValidateFailure:   "validate_failure",
	MetricRefreshSuccess:    "refresh_success",
	MetricRefreshFailure:    "refresh_failure",
	MetricRefreshReplay:     "refresh_replay",
	MetricLogout:            "logout",
	MetricRateLimitFailOpen: "rate_limit_fail_open",
}

// String returns the stable snake_case name of the metric.
func (m MetricID) String() string {
	if m < 0 || m >= metricCount {
		return "unknown"
	}
	return metricNames[m]
}

// Metrics is a fixed set of lock-free counters. A nil *Metrics is valid and
// counts nothing.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc bumps one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id < 0 || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns one counter's current value.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id < 0 || id >= metricCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a point-in-time copy of every counter keyed by name.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, metricCount)
	for id := MetricID(0); id < metricCount; id++ {
		out[id.String()] = m.Get(id)
	}
	return out
}
