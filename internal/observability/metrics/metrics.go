package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for AI chat generation.
type ChatMetrics struct {
	attemptsTotal  *prometheus.CounterVec
	fallbackDepth  *prometheus.HistogramVec
	requestLatency *prometheus.HistogramVec
	tokensTotal    *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "ai",
			Name:      "provider_attempts_total",
			Help:      "Provider generation attempts by outcome",
		}, []string{"provider", "outcome"}),
		fallbackDepth: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portfolio",
			Subsystem: "ai",
			Name:      "fallback_depth",
			Help:      "How many providers were tried before one succeeded",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
		}, []string{"status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portfolio",
			Subsystem: "ai",
			Name:      "generation_latency_seconds",
			Help:      "End-to-end latency of chat generation requests",
			// Sub-10s resolution with a few higher buckets for slow providers.
			Buckets: []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30},
		}, []string{"provider", "status"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "ai",
			Name:      "tokens_total",
			Help:      "Tokens used by chat generation",
		}, []string{"provider", "type"}), // type: input, output, total
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.fallbackDepth, m.requestLatency, m.tokensTotal)
	return m
}

func (m *ChatMetrics) ObserveAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *ChatMetrics) ObserveFallbackDepth(status string, depth int) {
	if m == nil {
		return
	}
	m.fallbackDepth.WithLabelValues(status).Observe(float64(depth))
}

func (m *ChatMetrics) ObserveLatency(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(provider, status).Observe(seconds)
}

func (m *ChatMetrics) ObserveTokens(provider string, prompt, completion, total int) {
	if m == nil {
		return
	}
	m.tokensTotal.WithLabelValues(provider, "input").Add(float64(prompt))
	m.tokensTotal.WithLabelValues(provider, "output").Add(float64(completion))
	m.tokensTotal.WithLabelValues(provider, "total").Add(float64(total))
}
