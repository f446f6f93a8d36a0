package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var terminalOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "checkout",
	Subsystem: "terminal",
	Name:      "operations_total",
	Help:      "Payment terminal operations by result.",
}, []string{"operation", "result"})

func init() {
	prometheus.MustRegister(terminalOperations)
}

func observeTerminalOperation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	terminalOperations.WithLabelValues(op, result).Inc()
}
