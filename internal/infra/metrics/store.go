package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storeOpsTotal) }

var storeOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "history_store_ops_total",
		Help: "Chat history store operations by backend, op and result.",
	},
	[]string{"backend", "op", "result"}, // e.g. backend="redis", op="load", result="hit"
)

func IncStoreOp(backend, op, result string) {
	storeOpsTotal.WithLabelValues(norm(backend), norm(op), norm(result)).Inc()
}
