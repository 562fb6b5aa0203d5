package metrics

import "github.com/prometheus/client_golang/prometheus"

// FunnelMetrics exposes counters for funnel sessions and their side channels.
type FunnelMetrics struct {
	transitionsTotal *prometheus.CounterVec
	submissionsTotal *prometheus.CounterVec
	analyticsTotal   *prometheus.CounterVec
}

func NewFunnelMetrics(reg prometheus.Registerer) *FunnelMetrics {
	m := &FunnelMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "esc",
			Subsystem: "funnel",
			Name:      "transitions_total",
			Help:      "Funnel step transitions by variant and target",
		}, []string{"variant", "from", "to"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "esc",
			Subsystem: "funnel",
			Name:      "submissions_total",
			Help:      "Lead submissions by tenant and outcome",
		}, []string{"tenant", "outcome"}),
		analyticsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "esc",
			Subsystem: "analytics",
			Name:      "events_total",
			Help:      "Analytics notifications by event and delivery status",
		}, []string{"event", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.submissionsTotal, m.analyticsTotal)
	return m
}

func (m *FunnelMetrics) ObserveTransition(variant, from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(variant, from, to).Inc()
}

func (m *FunnelMetrics) ObserveSubmission(tenant, outcome string) {
	if m == nil {
		return
	}
	if tenant == "" {
		tenant = "default"
	}
	m.submissionsTotal.WithLabelValues(tenant, outcome).Inc()
}

func (m *FunnelMetrics) ObserveAnalytics(event, status string) {
	if m == nil {
		return
	}
	m.analyticsTotal.WithLabelValues(event, status).Inc()
}

// RelayMetrics exposes counters/histograms for the ClickUp relay.
type RelayMetrics struct {
	requestsTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "esc",
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Relay requests by destination mode and HTTP status",
		}, []string{"mode", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "esc",
			Subsystem: "relay",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of ClickUp task creation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.upstreamLatency)
	return m
}

func (m *RelayMetrics) ObserveRequest(mode string, status int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(mode, statusLabel(status)).Inc()
}

func (m *RelayMetrics) ObserveUpstream(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(outcome).Observe(seconds)
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200 && status < 300:
		return "2xx"
	default:
		return "other"
	}
}
