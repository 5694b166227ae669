package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "maizey_chat_build_info",
		Help: "Always 1; labels carry the running version, assistant provider and history backend.",
	},
	[]string{"version", "go_version", "provider", "backend"},
)

func SetBuildInfo(version, provider, backend string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, runtime.Version(), norm(provider), norm(backend)).Set(1)
}
