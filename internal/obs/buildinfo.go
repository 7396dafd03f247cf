package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	// build_info{version,commit} is always 1.
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "merchantapi_build_info",
			Help: "Merchant API build information.",
		},
		[]string{"version", "commit"},
	)

	readyOnce sync.Once

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "merchantapi_ready",
		Help: "1 when every collaborator service is configured, 0 otherwise.",
	})
)

// InitBuildInfo registers build_info once and sets the current labels.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(version, commit).Set(1)
}

// SetReady mirrors the readiness probe into a gauge.
func SetReady(ready bool) {
	readyOnce.Do(func() {
		prometheus.MustRegister(readyGauge)
	})
	if ready {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}
