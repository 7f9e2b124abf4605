package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(telegramCommands) }

var telegramCommands = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "telegram_commands_total",
		Help: "Bot commands and callbacks by status.",
	},
	[]string{"command", "status"}, // ok | denied | rate_limited | error
)

func IncCommand(command, status string) {
	telegramCommands.WithLabelValues(norm(command), norm(status)).Inc()
}
