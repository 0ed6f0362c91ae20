package consensus

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics tracking this node's own consensus progress: the
// view number of the current round and the block height at which the
// latest round started, which together are the signal an operator
// watches to notice a stalled or badly-connected validator.
var (
	viewNumberGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "neonode",
		Subsystem: "consensus",
		Name:      "view_number",
		Help:      "Current dBFT view number for the in-progress block.",
	})
	consensusRestartGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "neonode",
		Subsystem: "consensus",
		Name:      "restart_height",
		Help:      "Block height at which the consensus service last (re)started.",
	})
)

func init() {
	prometheus.MustRegister(viewNumberGauge, consensusRestartGauge)
}

func updateViewNumberMetric(view byte) {
	viewNumberGauge.Set(float64(view))
}

func updateConsensusRestartMetric(height uint32) {
	consensusRestartGauge.Set(float64(height))
}
