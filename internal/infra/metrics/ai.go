package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		assistantCallsLatencyMs,
		assistantTokens,
		assistantErrorsTotal,
		selfTestsTotal,
	)
}

var (
	assistantCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_calls_latency_ms",
			Help:    "Assistant call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 20000, 30000},
		},
		[]string{"provider", "op", "success"},
	)

	assistantTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_tokens_total",
			Help: "Estimated tokens exchanged with the assistant, by direction.",
		},
		[]string{"provider", "direction"}, // direction: in | out
	)

	assistantErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_errors_total",
			Help: "Assistant failures by kind (status, timeout, transport, no_conversation).",
		},
		[]string{"provider", "kind"},
	)

	selfTestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_selftests_total",
			Help: "Connectivity self-test outcomes.",
		},
		[]string{"result"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func ObserveAssistantCall(provider, op string, latency time.Duration, success bool) {
	assistantCallsLatencyMs.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(success)).
		Observe(float64(latency.Milliseconds()))
}

func AddTokens(provider string, in, out int) {
	assistantTokens.WithLabelValues(norm(provider), "in").Add(float64(in))
	assistantTokens.WithLabelValues(norm(provider), "out").Add(float64(out))
}

func IncAssistantError(provider, kind string) {
	assistantErrorsTotal.WithLabelValues(norm(provider), norm(kind)).Inc()
}

func IncSelfTest(result string) {
	selfTestsTotal.WithLabelValues(norm(result)).Inc()
}
