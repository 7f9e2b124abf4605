package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sendAttempts) }

var sendAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "send_attempts_total",
		Help: "Upload attempts by media kind and result.",
	},
	[]string{"kind", "result"}, // ok | rate_limited | timeout | error
)

func IncSendAttempt(kind, result string) {
	sendAttempts.WithLabelValues(norm(kind), norm(result)).Inc()
}
