package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(tasksTotal, taskDuration, queueDepth, splitParts) }

var (
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_total",
			Help: "Finished tasks by kind and outcome.",
		},
		[]string{"kind", "outcome", "reason"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "task_duration_seconds",
			Help:    "Wall-clock task run time.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Tasks queued or running.",
	})

	splitParts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "split_parts_total",
		Help: "Media parts produced by the splitter.",
	})
)

func ObserveTask(kind, outcome, reason string, elapsed time.Duration) {
	tasksTotal.WithLabelValues(norm(kind), norm(outcome), norm(reason)).Inc()
	taskDuration.WithLabelValues(norm(kind)).Observe(elapsed.Seconds())
}

func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }

func AddSplitParts(n int) { splitParts.Add(float64(n)) }
