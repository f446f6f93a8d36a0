package finalize

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	finalizeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "finalize_total",
		Help:      "Finalized orders by result.",
	}, []string{"result"})

	finalizeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "checkout",
		Name:      "finalize_duration_seconds",
		Help:      "Duration of the order commit.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(finalizeTotal, finalizeDuration)
}

func observeFinalize(res *Result, err error, d time.Duration) {
	result := "committed"
	switch {
	case err != nil:
		result = "failed"
	case res.Offline:
		result = "offline"
	case res.CommitErr != nil:
		result = "invoicing_error"
	}
	finalizeTotal.WithLabelValues(result).Inc()
	finalizeDuration.Observe(d.Seconds())
}
