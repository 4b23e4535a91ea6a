package foundry

import "github.com/prometheus/client_golang/prometheus"

var (
	discoveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localchat",
			Subsystem: "foundry",
			Name:      "discovery_total",
			Help:      "Endpoint discovery attempts by method and result",
		},
		[]string{"method", "result"},
	)

	downloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localchat",
			Subsystem: "foundry",
			Name:      "downloads_total",
			Help:      "Finished model downloads by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(discoveryTotal, downloadsTotal)
}
