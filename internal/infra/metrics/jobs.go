package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(persistJobsTotal, purgedRecordsTotal) }

var (
	persistJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_persist_jobs_total",
			Help: "Background history saves, labeled by status.",
		},
		[]string{"status"}, // 'queued', 'inline'
	)

	purgedRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "history_purged_records_total",
			Help: "Expired chat records removed by the purge job.",
		},
	)
)

func IncPersistJob(status string) {
	persistJobsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPurged(n int64) {
	if n > 0 {
		purgedRecordsTotal.Add(float64(n))
	}
}
