package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestChatMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)
	m.ObserveAttempt("mistral", "success")
	m.ObserveFallbackDepth("success", 1)
	m.ObserveLatency("mistral", "success", 0.5)
	m.ObserveTokens("mistral", 100, 50, 150)
}

func TestChatMetricsNilSafe(t *testing.T) {
	var m *ChatMetrics
	m.ObserveAttempt("openai", "error")
	m.ObserveFallbackDepth("exhausted", 3)
	m.ObserveLatency("openai", "error", 0.1)
	m.ObserveTokens("openai", 1, 1, 2)
}
